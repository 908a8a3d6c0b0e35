package trader

import (
	"strings"
	"time"

	"github.com/jxskiss/base62"
	"github.com/shopspring/decimal"
	"github.com/truongcongthanh2000/command-trade/internal/models"
)

const (
	SideBuy  = "BUY"
	SideSell = "SELL"

	orderTypeMarket           = "MARKET"
	orderTypeStopMarket       = "STOP_MARKET"
	orderTypeTakeProfitMarket = "TAKE_PROFIT_MARKET"
)

// DefaultQuantityPrecision 是交易规则查询失败时使用的数量精度。
// 注意: 该默认值会直接影响下单数量的舍入, 精度与交易对实际规则不符时订单可能被拒。
const DefaultQuantityPrecision = 3

// NormalizeSide 把用户输入的方向词归一化为 BUY/SELL。
// 规则刻意宽松: 只要包含字母'b'(不区分大小写)就视为买入, 其余一律视为卖出,
// 所以 "buy"、"b"、"BULL" 都是买, 而拼错的词会静默变成卖。
func NormalizeSide(token string) string {
	if strings.Contains(strings.ToLower(token), "b") {
		return SideBuy
	}
	return SideSell
}

// OppositeSide 返回相反的交易方向。
func OppositeSide(side string) string {
	if side == SideSell {
		return SideBuy
	}
	return SideSell
}

// FormatQuantity 计算下单数量: round(margin * leverage / price, precision),
// 用decimal做舍入并直接产出数量字符串, 避免浮点格式化的尾数噪声。
func FormatQuantity(margin float64, leverage int, price float64, precision int) string {
	if price == 0 {
		// 除零保护: 产出一个必然被交易所拒绝的数量, 校验责任在交易所侧
		return "0"
	}
	quantity := decimal.NewFromFloat(margin).
		Mul(decimal.NewFromInt(int64(leverage))).
		Div(decimal.NewFromFloat(price)).
		Round(int32(precision)).
		String()
	// decimal会保留舍入位数上的尾随零 ("0.020"), 这里裁剪成最短形式
	if strings.Contains(quantity, ".") {
		quantity = strings.TrimRight(quantity, "0")
		quantity = strings.TrimSuffix(quantity, ".")
	}
	return quantity
}

// newClientOrderID 生成自定义订单ID, 纳秒时间戳的base62编码保证足够短且唯一。
func newClientOrderID() string {
	return "ct" + string(base62.FormatInt(time.Now().UnixNano()))
}

// BuildEntryOrders 把一条开仓命令转换为有序的订单批次:
// 市价入场单在前, 之后按需追加止损单和止盈单。
// 止损/止盈挂在相反方向上并设置 closePosition=true, 触发时平掉整个仓位, 不携带数量。
// 这里不校验价格/保证金/杠杆的正负, 非法输入会产出非法订单, 由交易所拒绝。
func BuildEntryOrders(side, symbol string, leverage int, margin, price float64, precision int, stopPrice, takeProfitPrice string) []models.BatchOrder {
	entry := models.BatchOrder{
		Type:             orderTypeMarket,
		Side:             side,
		Symbol:           symbol,
		Quantity:         FormatQuantity(margin, leverage, price, precision),
		NewClientOrderID: newClientOrderID(),
	}
	batchOrders := []models.BatchOrder{entry}

	if stopPrice != "" {
		batchOrders = append(batchOrders, models.BatchOrder{
			Type:          orderTypeStopMarket,
			Side:          OppositeSide(side),
			Symbol:        symbol,
			StopPrice:     stopPrice,
			ClosePosition: "true",
		})
	}
	if takeProfitPrice != "" {
		batchOrders = append(batchOrders, models.BatchOrder{
			Type:          orderTypeTakeProfitMarket,
			Side:          OppositeSide(side),
			Symbol:        symbol,
			StopPrice:     takeProfitPrice,
			ClosePosition: "true",
		})
	}
	return batchOrders
}
