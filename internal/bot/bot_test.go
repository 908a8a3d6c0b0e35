package bot

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/truongcongthanh2000/command-trade/internal/models"
	"github.com/truongcongthanh2000/command-trade/internal/notify"
	"github.com/truongcongthanh2000/command-trade/internal/trader"
	"go.uber.org/zap"
)

// stubExchange serves canned data for the close flow.
type stubExchange struct {
	positions []models.Position
	responses []models.BatchOrderResponse
	trades    map[int64][]models.Trade
	cancelErr error
}

func (s *stubExchange) GetPrice(symbol string) (float64, error) { return 0, nil }

func (s *stubExchange) GetSymbolInfo(symbol string) (*models.SymbolInfo, error) {
	return &models.SymbolInfo{Symbol: symbol, QuantityPrecision: 3, PricePrecision: 2}, nil
}

func (s *stubExchange) PlaceBatchOrders(orders []models.BatchOrder) ([]models.BatchOrderResponse, error) {
	if s.responses != nil {
		return s.responses, nil
	}
	responses := make([]models.BatchOrderResponse, len(orders))
	for idx := range orders {
		responses[idx] = models.BatchOrderResponse{OrderID: int64(idx + 1), Symbol: orders[idx].Symbol, Status: "NEW"}
	}
	return responses, nil
}

func (s *stubExchange) CancelAllOpenOrders(symbol string) error { return s.cancelErr }

func (s *stubExchange) GetUserTrades(symbol string, orderID int64) ([]models.Trade, error) {
	return s.trades[orderID], nil
}

func (s *stubExchange) GetPositions(symbol string) ([]models.Position, error) {
	return s.positions, nil
}

func (s *stubExchange) GetAccountInfo() (*models.AccountInfo, error) { return nil, nil }

func (s *stubExchange) GetPositionRisk(symbol string) ([]models.PositionRisk, error) {
	return []models.PositionRisk{{Symbol: symbol, Leverage: "10", MarginType: "cross"}}, nil
}

func (s *stubExchange) SetLeverage(symbol string, leverage int) error      { return nil }
func (s *stubExchange) SetMarginType(symbol string, marginType string) error { return nil }

type capturingSender struct {
	mu   sync.Mutex
	sent []notify.Message
}

func (c *capturingSender) Send(msg notify.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg)
	return nil
}

func (c *capturingSender) messages() []notify.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]notify.Message, len(c.sent))
	copy(out, c.sent)
	return out
}

func newTestBot(ex *stubExchange) (*Bot, *capturingSender, *notify.Notifier) {
	sender := &capturingSender{}
	logger := zap.NewNop().Sugar()
	notifier := notify.New(sender, logger)
	cfg := &models.Config{
		QuoteAsset: "USDT",
		Telegram: models.TelegramConfig{
			GroupChatID: 100,
			PnlChatID:   200,
			ROISignal:   10,
		},
	}
	b := New(Options{
		Config:   cfg,
		Trader:   trader.New(ex, nil, cfg.QuoteAsset, logger),
		Exchange: ex,
		Notifier: notifier,
		Logger:   logger,
	})
	return b, sender, notifier
}

func TestHandleCloseCancelFailureMessage(t *testing.T) {
	ex := &stubExchange{
		positions: []models.Position{{Symbol: "BTCUSDT", PositionAmt: "-0.5"}},
		cancelErr: fmt.Errorf("rate limited"),
		trades: map[int64][]models.Trade{
			1: {{OrderID: 1, RealizedPnl: "10", Commission: "0.05"}},
		},
	}
	b, sender, notifier := newTestBot(ex)

	b.handleClose([]string{"BTC"})
	notifier.Close()

	sent := sender.messages()
	require.Len(t, sent, 1)
	text := sent[0].Text()
	require.NotEmpty(t, text)

	// the cancel failure is called out and the reconciliation still shows
	assert.Contains(t, text, "BTCUSDT")
	assert.Contains(t, text, "cancelling the leftover open orders failed")
	assert.Contains(t, text, "rate limited")
	assert.Contains(t, text, "pnl: **$10.00**")
}

func TestHandleCloseRejectionMessage(t *testing.T) {
	ex := &stubExchange{
		positions: []models.Position{{Symbol: "BTCUSDT", PositionAmt: "-0.5"}},
		responses: []models.BatchOrderResponse{
			{Code: -1021, Msg: "Timestamp for this request is outside of the recvWindow."},
		},
	}
	b, sender, notifier := newTestBot(ex)

	b.handleClose([]string{"BTC"})
	notifier.Close()

	sent := sender.messages()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Text(), "Error Command.fclose")
	assert.Contains(t, sent[0].Text(), "recvWindow")
}

func TestReplyBatchErrorsNeverEmpty(t *testing.T) {
	b, sender, notifier := newTestBot(&stubExchange{})

	// no rejected responses: a generic failure line still goes out
	b.replyBatchErrors("Error Command.fclose", "BTCUSDT", nil, nil)
	notifier.Close()

	sent := sender.messages()
	require.Len(t, sent, 1)
	assert.NotEmpty(t, sent[0].Text())
	assert.Contains(t, sent[0].Text(), "BTCUSDT")
}

func TestStatsJobKeyPerChannel(t *testing.T) {
	assert.Equal(t, "200", statsJobKey(200))
	assert.NotEqual(t, statsJobKey(200), statsJobKey(300))
}
