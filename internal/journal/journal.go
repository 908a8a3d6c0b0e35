package journal

import (
	"time"

	"github.com/truongcongthanh2000/command-trade/internal/models"
)

// Entry kinds recorded by the trader.
const (
	KindEntry   = "ENTRY"   // market entry order
	KindProtect = "PROTECT" // stop-loss / take-profit order
	KindClose   = "CLOSE"   // market close order
)

// Entry is a single executed-order record.
// Close entries additionally carry the realized PnL and the summed
// commission of their fills (commission is informational, it is not
// subtracted from the PnL).
type Entry struct {
	Symbol     string    `json:"symbol"`
	Kind       string    `json:"kind"`
	Side       string    `json:"side"`
	Type       string    `json:"type"`
	Quantity   string    `json:"quantity,omitempty"`
	StopPrice  string    `json:"stop_price,omitempty"`
	OrderID    int64     `json:"order_id"`
	PnL        float64   `json:"pnl,omitempty"`
	Commission float64   `json:"commission,omitempty"`
	Time       time.Time `json:"time"`
}

// FromOrder builds an entry from an accepted batch order and its response.
func FromOrder(kind string, order models.BatchOrder, response models.BatchOrderResponse) Entry {
	return Entry{
		Symbol:    order.Symbol,
		Kind:      kind,
		Side:      order.Side,
		Type:      order.Type,
		Quantity:  order.Quantity,
		StopPrice: order.StopPrice,
		OrderID:   response.OrderID,
		Time:      time.Now(),
	}
}

// Repository defines the interface for the order journal.
// It abstracts the underlying storage mechanism from the trader.
type Repository interface {
	// Append records one executed order.
	Append(entry Entry) error

	// List returns up to limit entries for a symbol, newest first.
	List(symbol string, limit int) ([]Entry, error)

	// Close gracefully closes the connection to the database.
	Close() error
}
