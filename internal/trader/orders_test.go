package trader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeSide(t *testing.T) {
	// Only tokens containing the letter 'b' map to BUY; everything else,
	// typos included, silently becomes SELL.
	cases := map[string]string{
		"buy":   SideBuy,
		"b":     SideBuy,
		"BULL":  SideBuy,
		"Buy":   SideBuy,
		"sell":  SideSell,
		"short": SideSell,
		"s":     SideSell,
		"xyz":   SideSell,
		"":      SideSell,
	}
	for token, want := range cases {
		assert.Equal(t, want, NormalizeSide(token), "token %q", token)
	}
}

func TestOppositeSide(t *testing.T) {
	assert.Equal(t, SideSell, OppositeSide(SideBuy))
	assert.Equal(t, SideBuy, OppositeSide(SideSell))
}

func TestFormatQuantity(t *testing.T) {
	// quantity = round(margin * leverage / price, precision)
	assert.Equal(t, "0.02", FormatQuantity(100, 10, 50000, 3))
	assert.Equal(t, "0.117", FormatQuantity(7, 5, 300, 3))
	assert.Equal(t, "2", FormatQuantity(100, 2, 100, 0))

	// division-by-zero guard produces a quantity the exchange will reject
	assert.Equal(t, "0", FormatQuantity(100, 10, 0, 3))
}

func TestBuildEntryOrdersMarketOnly(t *testing.T) {
	orders := BuildEntryOrders(SideBuy, "BTCUSDT", 10, 100, 50000, 3, "", "")
	require.Len(t, orders, 1)

	entry := orders[0]
	assert.Equal(t, "MARKET", entry.Type)
	assert.Equal(t, SideBuy, entry.Side)
	assert.Equal(t, "BTCUSDT", entry.Symbol)
	assert.Equal(t, "0.02", entry.Quantity)
	assert.Empty(t, entry.StopPrice)
	assert.Empty(t, entry.ClosePosition)
	assert.NotEmpty(t, entry.NewClientOrderID)
}

func TestBuildEntryOrdersWithStopAndTakeProfit(t *testing.T) {
	orders := BuildEntryOrders(SideBuy, "ETHUSDT", 5, 200, 2000, 2, "1900", "2200")
	require.Len(t, orders, 3)

	// order inside the batch matters: entry, then stop, then take-profit
	assert.Equal(t, "MARKET", orders[0].Type)
	assert.Equal(t, "STOP_MARKET", orders[1].Type)
	assert.Equal(t, "TAKE_PROFIT_MARKET", orders[2].Type)

	for _, protect := range orders[1:] {
		assert.Equal(t, SideSell, protect.Side, "protective orders sit on the opposite side")
		assert.Equal(t, "true", protect.ClosePosition)
		assert.Empty(t, protect.Quantity, "closePosition orders carry no quantity")
	}
	assert.Equal(t, "1900", orders[1].StopPrice)
	assert.Equal(t, "2200", orders[2].StopPrice)
}

func TestBuildEntryOrdersStopOnly(t *testing.T) {
	orders := BuildEntryOrders(SideSell, "BNBUSDT", 3, 90, 300, 1, "330", "")
	require.Len(t, orders, 2)
	assert.Equal(t, "STOP_MARKET", orders[1].Type)
	assert.Equal(t, SideBuy, orders[1].Side)
}

func TestBuildEntryOrdersNoValidation(t *testing.T) {
	// invalid inputs still produce a batch; rejection is the exchange's job
	orders := BuildEntryOrders(SideBuy, "BTCUSDT", -1, -100, 50000, 3, "", "")
	require.Len(t, orders, 1)
	assert.Equal(t, "0.002", orders[0].Quantity)
}
