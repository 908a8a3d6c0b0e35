package models

import "fmt"

// Config 结构体定义了机器人的所有配置参数
type Config struct {
	BaseURL        string         `json:"base_url"`        // 币安合约REST API基础地址
	WSBaseURL      string         `json:"ws_base_url"`     // 币安合约WebSocket基础地址
	QuoteAsset     string         `json:"quote_asset"`     // 计价资产, 固定拼接在币种后面, 如 "USDT"
	ReportTimezone string         `json:"report_timezone"` // 报告时间戳使用的时区, 如 "Asia/Ho_Chi_Minh"
	DBPath         string         `json:"db_path"`         // 订单流水数据库文件路径
	Telegram       TelegramConfig `json:"telegram"`        // Telegram相关配置
	LogConfig      LogConfig      `json:"log"`             // 日志配置
}

// TelegramConfig 定义了消息通道相关的配置。BotToken 从环境变量读取, 不放在配置文件里。
type TelegramConfig struct {
	GroupChatID int64   `json:"group_chat_id"` // 命令交互的群聊ID
	PnlChatID   int64   `json:"pnl_chat_id"`   // 定时盈亏报告发送的聊天ID
	AlertChatID int64   `json:"alert_chat_id"` // 价格提醒发送的聊天ID
	Me          string  `json:"me"`            // ROI信号行中提及的用户名
	ROISignal   float64 `json:"roi_signal"`    // 触发信号行的总ROI阈值(百分比, 取绝对值比较)
}

// LogConfig 定义了日志相关的配置
type LogConfig struct {
	Level      string `json:"level"`       // 日志级别, e.g., "debug", "info", "warn", "error"
	Output     string `json:"output"`      // 输出模式: "console", "file", "both"
	File       string `json:"file"`        // 日志文件路径
	MaxSize    int    `json:"max_size"`    // 单个日志文件的最大大小 (MB)
	MaxBackups int    `json:"max_backups"` // 保留的旧日志文件最大数量
	MaxAge     int    `json:"max_age"`     // 旧日志文件的最大保留天数
	Compress   bool   `json:"compress"`    // 是否压缩旧日志文件
}

// AccountInfo 定义了币安合约账户信息, 各项汇总金额均为API原始字符串
type AccountInfo struct {
	TotalWalletBalance          string     `json:"totalWalletBalance"`
	TotalInitialMargin          string     `json:"totalInitialMargin"`
	TotalPositionInitialMargin  string     `json:"totalPositionInitialMargin"`
	TotalOpenOrderInitialMargin string     `json:"totalOpenOrderInitialMargin"`
	AvailableBalance            string     `json:"availableBalance"`
	TotalUnrealizedProfit       string     `json:"totalUnrealizedProfit"`
	TotalMarginBalance          string     `json:"totalMarginBalance"`
	Positions                   []Position `json:"positions"`
}

// Position 定义了持仓信息。positionAmt 带符号: 正数为多头, 负数为空头。
type Position struct {
	Symbol                 string `json:"symbol"`
	PositionAmt            string `json:"positionAmt"`
	EntryPrice             string `json:"entryPrice"`
	MarkPrice              string `json:"markPrice"`
	Notional               string `json:"notional"`
	PositionInitialMargin  string `json:"positionInitialMargin"`
	OpenOrderInitialMargin string `json:"openOrderInitialMargin"`
	UnrealizedProfit       string `json:"unrealizedProfit"`
}

// PositionRisk 定义了 /fapi/v2/positionRisk 返回的持仓风险条目,
// 用于读取交易对当前的杠杆倍数和保证金模式。
type PositionRisk struct {
	Symbol      string `json:"symbol"`
	PositionAmt string `json:"positionAmt"`
	Leverage    string `json:"leverage"`
	MarginType  string `json:"marginType"` // API返回小写: "cross" / "isolated"
}

// BatchOrder 定义了批量下单接口中的单个订单请求。
// 构造完成后不再修改; 一个批次内的顺序有意义 (入场单在前, 止损/止盈在后),
// 交易所按位置返回响应, 下游按下标回配。
type BatchOrder struct {
	Type             string `json:"type"` // MARKET / STOP_MARKET / TAKE_PROFIT_MARKET
	Side             string `json:"side"` // BUY / SELL
	Symbol           string `json:"symbol"`
	Quantity         string `json:"quantity,omitempty"`         // 仅入场单携带
	StopPrice        string `json:"stopPrice,omitempty"`        // 仅止损/止盈单携带
	ClosePosition    string `json:"closePosition,omitempty"`    // "true" 表示平掉整个仓位, 忽略数量
	NewClientOrderID string `json:"newClientOrderId,omitempty"` // 自定义订单ID
}

// BatchOrderResponse 是批量下单接口中与请求下标对齐的单个响应。
// 成功时携带 orderId, 失败时携带负数 code 和 msg。
type BatchOrderResponse struct {
	OrderID       int64  `json:"orderId"`
	Symbol        string `json:"symbol"`
	Status        string `json:"status"`
	ClientOrderID string `json:"clientOrderId"`
	Code          int    `json:"code"`
	Msg           string `json:"msg"`
}

// Rejected 判断该订单是否被交易所拒绝。
func (r *BatchOrderResponse) Rejected() bool {
	return r.Code < 0
}

// ExchangeInfo holds the full exchange information response
type ExchangeInfo struct {
	Symbols []SymbolInfo `json:"symbols"`
}

// SymbolInfo 定义了交易对的交易规则中我们关心的精度字段
type SymbolInfo struct {
	Symbol            string `json:"symbol"`
	PricePrecision    int    `json:"pricePrecision"`
	QuantityPrecision int    `json:"quantityPrecision"`
}

// Trade 定义了单次成交的信息
type Trade struct {
	Symbol          string `json:"symbol"`
	ID              int64  `json:"id"`
	OrderID         int64  `json:"orderId"`
	Side            string `json:"side"`
	Price           string `json:"price"`
	Qty             string `json:"qty"`
	RealizedPnl     string `json:"realizedPnl"`
	QuoteQty        string `json:"quoteQty"`
	Commission      string `json:"commission"`
	CommissionAsset string `json:"commissionAsset"`
	Time            int64  `json:"time"`
	Buyer           bool   `json:"buyer"`
	Maker           bool   `json:"maker"`
}

// MarkPrice 定义了 /fapi/v1/premiumIndex 返回的标记价格条目
type MarkPrice struct {
	Symbol    string `json:"symbol"`
	MarkPrice string `json:"markPrice"`
}

// Error 定义了币安API返回的错误信息结构
type Error struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// Error 方法使得 Error 实现了 error 接口
func (e *Error) Error() string {
	return fmt.Sprintf("API Error: code=%d, msg=%s", e.Code, e.Msg)
}
