package trader

import (
	"math"
	"strconv"
	"strings"

	"github.com/truongcongthanh2000/command-trade/internal/models"
)

// Epsilon 是仓位数量的噪声阈值: 绝对值不超过该值的仓位视为已平,
// 用来吸收交易所舍入残留出来的粉尘仓位。
const Epsilon = 1e-2

// BuildCloseOrders 为每个超过噪声阈值的持仓构造反方向的市价平仓单。
// 数量直接取交易所返回的原文并去掉符号, 不做任何重新舍入, 避免平仓后留下粉尘。
func BuildCloseOrders(positions []models.Position) []models.BatchOrder {
	var batchOrders []models.BatchOrder
	for _, position := range positions {
		amount, _ := strconv.ParseFloat(position.PositionAmt, 64)
		if math.Abs(amount) <= Epsilon {
			// 只有挂单保证金没有实际敞口, 跳过
			continue
		}

		side := SideSell
		if amount < 0 {
			side = SideBuy
		}
		batchOrders = append(batchOrders, models.BatchOrder{
			Type:     orderTypeMarket,
			Side:     side,
			Symbol:   position.Symbol,
			Quantity: strings.TrimPrefix(position.PositionAmt, "-"),
		})
	}
	return batchOrders
}
