package trader

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/truongcongthanh2000/command-trade/internal/exchange"
	"github.com/truongcongthanh2000/command-trade/internal/journal"
	"github.com/truongcongthanh2000/command-trade/internal/models"
	"go.uber.org/zap"
)

// Trader 是命令与交易所之间的核心: 把开仓/平仓命令转换为订单批次,
// 提交后按下标回配响应, 并把结果写入订单流水。
type Trader struct {
	ex         exchange.Exchange
	journal    journal.Repository // 可以为nil, 此时不记流水
	quoteAsset string
	logger     *zap.SugaredLogger
}

// New 创建一个Trader实例。
func New(ex exchange.Exchange, jr journal.Repository, quoteAsset string, logger *zap.SugaredLogger) *Trader {
	return &Trader{
		ex:         ex,
		journal:    jr,
		quoteAsset: quoteAsset,
		logger:     logger,
	}
}

// Symbol 把用户输入的币种代码转换为交易对, 如 "btc" -> "BTCUSDT"。
func (t *Trader) Symbol(coin string) string {
	return strings.ToUpper(coin) + t.quoteAsset
}

// OpenResult 是一次开仓操作的结果, Responses与Orders按下标对齐。
type OpenResult struct {
	Symbol    string
	Orders    []models.BatchOrder
	Responses []models.BatchOrderResponse
	Ok        bool
}

// Closure 记录了单个平仓单的对账结果: 该订单全部成交的已实现盈亏之和。
// 手续费单独累计, 不从盈亏中扣除; NoFills 表示查不到成交记录
// (交易所延迟等), 此时盈亏记零, 需要人工复核。
type Closure struct {
	OrderID    int64
	PnL        float64
	Commission float64
	NoFills    bool
}

// CloseResult 是一次平仓操作的结果。
// CancelErr 单独记录撤销剩余挂单的失败: 此时平仓单本身已全部成交,
// 止损/止盈挂单还留在交易所上, 对账结果照常填充, 调用方必须把这一情况
// 原样报告出去而不是当作下单被拒处理。
type CloseResult struct {
	Symbol    string
	Orders    []models.BatchOrder
	Responses []models.BatchOrderResponse
	Closures  []Closure
	CancelErr error
	Ok        bool
}

// OpenPosition 处理开仓命令: 先对齐杠杆与保证金模式, 再按当前价格和
// 交易规则构造订单批次并提交。任一订单被拒绝时整体标记为不成功。
func (t *Trader) OpenPosition(side, coin string, leverage int, margin float64, stopPrice, takeProfitPrice string) (*OpenResult, error) {
	symbol := t.Symbol(coin)

	if err := t.ensureLeverageAndMarginType(symbol, leverage); err != nil {
		return nil, err
	}

	price, err := t.ex.GetPrice(symbol)
	if err != nil {
		return nil, err
	}

	precision := DefaultQuantityPrecision
	if info, err := t.ex.GetSymbolInfo(symbol); err != nil {
		// 拿不到交易规则时退回默认精度, 数量舍入可能与实际规则不符
		t.logger.Warnw("获取交易规则失败, 使用默认数量精度", "symbol", symbol, "precision", precision, "error", err)
	} else {
		precision = info.QuantityPrecision
	}

	orders := BuildEntryOrders(NormalizeSide(side), symbol, leverage, margin, price, precision, stopPrice, takeProfitPrice)
	t.logger.Infow("提交开仓订单", "symbol", symbol, "side", orders[0].Side, "quantity", orders[0].Quantity, "count", len(orders))

	responses, err := t.ex.PlaceBatchOrders(orders)
	if err != nil {
		return nil, err
	}

	result := &OpenResult{Symbol: symbol, Orders: orders, Responses: responses, Ok: true}
	for idx := range responses {
		if responses[idx].Rejected() {
			t.logger.Errorw("订单被交易所拒绝",
				"symbol", symbol, "side", orders[idx].Side, "type", orders[idx].Type, "msg", responses[idx].Msg)
			result.Ok = false
			continue
		}
		kind := journal.KindEntry
		if idx > 0 {
			kind = journal.KindProtect
		}
		t.record(journal.FromOrder(kind, orders[idx], responses[idx]))
	}
	return result, nil
}

// ClosePosition 处理平仓命令: 为每个有效持仓构造反向全量市价单并提交。
// 批次全部成功后撤掉该交易对剩余的止损/止盈挂单 (否则它们会在没有仓位时
// 被触发), 然后逐单对账已实现盈亏。
func (t *Trader) ClosePosition(coin string) (*CloseResult, error) {
	symbol := t.Symbol(coin)

	positions, err := t.ex.GetPositions(symbol)
	if err != nil {
		return nil, err
	}

	orders := BuildCloseOrders(positions)
	result := &CloseResult{Symbol: symbol, Orders: orders, Ok: true}
	if len(orders) == 0 {
		return result, nil
	}

	t.logger.Infow("提交平仓订单", "symbol", symbol, "count", len(orders))
	responses, err := t.ex.PlaceBatchOrders(orders)
	if err != nil {
		return nil, err
	}
	result.Responses = responses

	for idx := range responses {
		if responses[idx].Rejected() {
			t.logger.Errorw("平仓订单被交易所拒绝",
				"symbol", symbol, "side", orders[idx].Side, "quantity", orders[idx].Quantity, "msg", responses[idx].Msg)
			result.Ok = false
		}
	}
	if !result.Ok {
		// 有订单被拒时跳过撤单和对账, 避免在仓位状态不明时动剩余挂单
		return result, nil
	}

	if err := t.ex.CancelAllOpenOrders(symbol); err != nil {
		// 仓位已平但挂单还在, 触发时会在没有仓位的情况下开出新仓
		t.logger.Errorw("撤销剩余挂单失败", "symbol", symbol, "error", err)
		result.CancelErr = err
		result.Ok = false
	}

	for idx := range orders {
		closure := t.reconcile(symbol, responses[idx].OrderID)
		result.Closures = append(result.Closures, closure)

		entry := journal.FromOrder(journal.KindClose, orders[idx], responses[idx])
		entry.PnL = closure.PnL
		entry.Commission = closure.Commission
		t.record(entry)
	}
	return result, nil
}

// reconcile 汇总归属于指定订单的全部成交的已实现盈亏。
func (t *Trader) reconcile(symbol string, orderID int64) Closure {
	closure := Closure{OrderID: orderID}

	trades, err := t.ex.GetUserTrades(symbol, orderID)
	if err != nil {
		t.logger.Errorw("查询成交记录失败, 盈亏记零", "symbol", symbol, "orderId", orderID, "error", err)
		closure.NoFills = true
		return closure
	}
	if len(trades) == 0 {
		closure.NoFills = true
		return closure
	}

	for _, trade := range trades {
		pnl, _ := strconv.ParseFloat(trade.RealizedPnl, 64)
		fee, _ := strconv.ParseFloat(trade.Commission, 64)
		closure.PnL += pnl
		closure.Commission += fee
	}
	return closure
}

// Summary 获取账户快照并生成汇总报告。
func (t *Trader) Summary(skipWhenEmpty bool) (string, float64, float64, error) {
	accInfo, err := t.ex.GetAccountInfo()
	if err != nil {
		return "", 0, 0, err
	}
	report, totalROI, totalPnl := Summarize(accInfo, t.quoteAsset, skipWhenEmpty)
	return report, totalROI, totalPnl, nil
}

// History 返回指定币种最近的订单流水。
func (t *Trader) History(coin string, limit int) ([]journal.Entry, error) {
	if t.journal == nil {
		return nil, fmt.Errorf("订单流水未启用")
	}
	return t.journal.List(t.Symbol(coin), limit)
}

// ensureLeverageAndMarginType 把交易对的杠杆倍数和保证金模式对齐到目标值,
// 只在与当前设置不一致时才调用修改接口。
func (t *Trader) ensureLeverageAndMarginType(symbol string, leverage int) error {
	risks, err := t.ex.GetPositionRisk(symbol)
	if err != nil {
		return err
	}
	if len(risks) == 0 {
		return fmt.Errorf("未找到交易对 %s 的持仓风险信息", symbol)
	}

	current, _ := strconv.Atoi(risks[0].Leverage)
	if current != leverage {
		if err := t.ex.SetLeverage(symbol, leverage); err != nil {
			return err
		}
	}
	if !strings.EqualFold(risks[0].MarginType, "cross") {
		if err := t.ex.SetMarginType(symbol, "CROSSED"); err != nil {
			return err
		}
	}
	return nil
}

// record 写入一条订单流水, 失败只记日志, 不影响交易主流程。
func (t *Trader) record(entry journal.Entry) {
	if t.journal == nil {
		return
	}
	if err := t.journal.Append(entry); err != nil {
		t.logger.Errorw("写入订单流水失败", "symbol", entry.Symbol, "orderId", entry.OrderID, "error", err)
	}
}
