package exchange

import "github.com/truongcongthanh2000/command-trade/internal/models"

// Exchange 定义了交易核心所依赖的交易所网关方法。
// 这使得命令处理逻辑可以在真实交易所和测试替身之间轻松切换。
type Exchange interface {
	GetPrice(symbol string) (float64, error)
	GetSymbolInfo(symbol string) (*models.SymbolInfo, error)
	// PlaceBatchOrders 按给定顺序提交订单, 返回与请求下标对齐的响应数组。
	PlaceBatchOrders(orders []models.BatchOrder) ([]models.BatchOrderResponse, error)
	CancelAllOpenOrders(symbol string) error
	// GetUserTrades 返回完全归属于指定订单的成交记录。
	GetUserTrades(symbol string, orderID int64) ([]models.Trade, error)
	// GetPositions 返回指定交易对的持仓; symbol为空时返回全部活跃持仓。
	GetPositions(symbol string) ([]models.Position, error)
	GetAccountInfo() (*models.AccountInfo, error)
	GetPositionRisk(symbol string) ([]models.PositionRisk, error)
	SetLeverage(symbol string, leverage int) error
	SetMarginType(symbol string, marginType string) error
}
