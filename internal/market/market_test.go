package market

import (
	"strings"
	"testing"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildCaption(t *testing.T) {
	stats := &futures.PriceChangeStats{
		Symbol:             "BTCUSDT",
		LastPrice:          "50500.123456",
		PriceChangePercent: "1.250",
		OpenPrice:          "50000",
		HighPrice:          "51000",
		LowPrice:           "49500",
	}

	caption := buildCaption("BTCUSDT", stats, 4)
	assert.Contains(t, caption, "[BTCUSDT](https://www.binance.com/en/futures/BTCUSDT)")
	assert.Contains(t, caption, "**50500.1235**")
	assert.Contains(t, caption, "**1.250%**")
	assert.Contains(t, caption, "**50000**")
	// high/low carry their move relative to the open
	assert.Contains(t, caption, "**51000 (2.00%)**")
	assert.Contains(t, caption, "**49500 (-1.00%)**")
}

func TestBuildCaptionZeroOpenPrice(t *testing.T) {
	stats := &futures.PriceChangeStats{
		OpenPrice: "0",
		HighPrice: "1",
		LowPrice:  "1",
	}
	caption := buildCaption("NEWUSDT", stats, 4)
	assert.Contains(t, caption, "(0.00%)")
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "50500.1235", formatPrice("50500.123456", 4))
	assert.Equal(t, "50000", formatPrice("50000.0000", 4))
	assert.Equal(t, "0.1", formatPrice("0.1000", 4))
	// unparseable input passes through untouched
	assert.Equal(t, "n/a", formatPrice("n/a", 4))
}

func TestRenderSpotReport(t *testing.T) {
	balances := []binance.Balance{
		{Asset: "USDT", Free: "100.5", Locked: "0"},
		{Asset: "BNB", Free: "2", Locked: "1"},
		{Asset: "DOGE", Free: "0.001", Locked: "0"}, // dust
	}

	report := renderSpotReport(balances, "USDT")
	require.True(t, strings.HasPrefix(report, "**SPOT Account**"))
	assert.Contains(t, report, "USDT: $100.50")
	assert.Contains(t, report, "[BNB](https://www.binance.com/en/trade/BNB_USDT?type=spot): $3.00")
	assert.NotContains(t, report, "DOGE")
	assert.Contains(t, report, "**Total balance**: 103.50")
}

func TestRenderKlineTable(t *testing.T) {
	klines := []*futures.Kline{
		{
			OpenTime: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC).UnixMilli(),
			Open:     "50000",
			High:     "50500",
			Low:      "49800",
			Close:    "50200",
			Volume:   "123.4",
		},
	}

	out := renderKlineTable("BTCUSDT", "15m", klines, time.UTC)
	assert.Contains(t, out, "BTCUSDT - 15m")
	assert.Contains(t, out, "05-01 12:00")
	assert.Contains(t, out, "50200")
	assert.Contains(t, out, "VOLUME")
}
