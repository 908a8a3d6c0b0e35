package journal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/truongcongthanh2000/command-trade/internal/models"
)

func newTestJournal(t *testing.T) Repository {
	t.Helper()
	jr, err := NewBadgerJournal(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { jr.Close() })
	return jr
}

func entryAt(symbol, kind string, ts time.Time) Entry {
	return Entry{
		Symbol:  symbol,
		Kind:    kind,
		Side:    "BUY",
		Type:    "MARKET",
		OrderID: ts.UnixNano(),
		Time:    ts,
	}
}

func TestAppendAndList(t *testing.T) {
	jr := newTestJournal(t)

	base := time.Now()
	require.NoError(t, jr.Append(entryAt("BTCUSDT", KindEntry, base)))
	require.NoError(t, jr.Append(entryAt("BTCUSDT", KindClose, base.Add(time.Second))))

	entries, err := jr.List("BTCUSDT", 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// newest first
	assert.Equal(t, KindClose, entries[0].Kind)
	assert.Equal(t, KindEntry, entries[1].Kind)
}

func TestListLimit(t *testing.T) {
	jr := newTestJournal(t)

	base := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, jr.Append(entryAt("BTCUSDT", KindEntry, base.Add(time.Duration(i)*time.Second))))
	}

	entries, err := jr.List("BTCUSDT", 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.True(t, entries[0].Time.After(entries[1].Time))
}

func TestListIsolatesSymbols(t *testing.T) {
	jr := newTestJournal(t)

	base := time.Now()
	require.NoError(t, jr.Append(entryAt("BTCUSDT", KindEntry, base)))
	require.NoError(t, jr.Append(entryAt("ETHUSDT", KindEntry, base.Add(time.Millisecond))))
	require.NoError(t, jr.Append(entryAt("BTCDOMUSDT", KindEntry, base.Add(2*time.Millisecond))))

	entries, err := jr.List("BTCUSDT", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "BTCUSDT", entries[0].Symbol)
}

func TestListUnknownSymbol(t *testing.T) {
	jr := newTestJournal(t)
	entries, err := jr.List("DOGEUSDT", 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestEntryRoundTripFields(t *testing.T) {
	jr := newTestJournal(t)

	order := models.BatchOrder{
		Type:      "STOP_MARKET",
		Side:      "SELL",
		Symbol:    "ETHUSDT",
		StopPrice: "1900",
	}
	response := models.BatchOrderResponse{OrderID: 42, Symbol: "ETHUSDT", Status: "NEW"}

	entry := FromOrder(KindProtect, order, response)
	entry.PnL = 12.5
	entry.Commission = 0.04
	require.NoError(t, jr.Append(entry))

	entries, err := jr.List("ETHUSDT", 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	got := entries[0]
	assert.Equal(t, KindProtect, got.Kind)
	assert.Equal(t, "SELL", got.Side)
	assert.Equal(t, "1900", got.StopPrice)
	assert.Equal(t, int64(42), got.OrderID)
	assert.Equal(t, 12.5, got.PnL)
	assert.Equal(t, 0.04, got.Commission)
}
