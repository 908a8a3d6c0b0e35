package alert

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Alert is a one-shot price trigger on a futures symbol. Above records
// which way the price has to move: it is fixed when the alert is created
// by comparing the target against the price at that moment.
type Alert struct {
	Symbol string
	Target float64
	Above  bool
}

// Triggered reports whether price satisfies the alert condition.
func (a Alert) Triggered(price float64) bool {
	if a.Above {
		return price >= a.Target
	}
	return price <= a.Target
}

func (a Alert) String() string {
	direction := "<="
	if a.Above {
		direction = ">="
	}
	return fmt.Sprintf("%s %s %s", a.Symbol, direction, strconv.FormatFloat(a.Target, 'f', -1, 64))
}

// Handler receives the alert and the mark price that fired it.
type Handler func(alert Alert, price float64)

// markPriceEvent is the markPrice stream payload; only the price field
// is needed here.
type markPriceEvent struct {
	Price string `json:"p"`
}

type tracked struct {
	alert Alert
	stop  chan struct{}
	done  chan struct{}
}

// Watcher maintains one mark-price websocket stream per tracked symbol
// and fires each alert exactly once. A symbol carries at most one alert;
// tracking it again replaces the previous target.
type Watcher struct {
	wsBaseURL string
	handler   Handler
	logger    *zap.SugaredLogger

	mu     sync.Mutex
	alerts map[string]*tracked
}

// NewWatcher creates a watcher dialing streams under wsBaseURL.
func NewWatcher(wsBaseURL string, handler Handler, logger *zap.SugaredLogger) *Watcher {
	return &Watcher{
		wsBaseURL: wsBaseURL,
		handler:   handler,
		logger:    logger,
		alerts:    make(map[string]*tracked),
	}
}

// Track registers an alert for symbol at the target price. currentPrice
// decides the trigger direction: a target at or above the current price
// fires on the way up, otherwise on the way down.
func (w *Watcher) Track(symbol string, target, currentPrice float64) Alert {
	alert := Alert{
		Symbol: symbol,
		Target: target,
		Above:  target >= currentPrice,
	}

	tr := &tracked{
		alert: alert,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}

	w.mu.Lock()
	old, replaced := w.alerts[symbol]
	w.alerts[symbol] = tr
	w.mu.Unlock()
	// drain outside the lock, the old goroutine may be mid-fire
	if replaced {
		close(old.stop)
		<-old.done
	}

	w.logger.Infow("price alert registered", "symbol", symbol, "target", target, "above", alert.Above)
	go w.watch(tr)
	return alert
}

// List returns the active alerts sorted by symbol.
func (w *Watcher) List() []Alert {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]Alert, 0, len(w.alerts))
	for _, tr := range w.alerts {
		out = append(out, tr.alert)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Remove drops the alert for symbol, reporting whether one existed.
func (w *Watcher) Remove(symbol string) bool {
	w.mu.Lock()
	tr, ok := w.alerts[symbol]
	if ok {
		delete(w.alerts, symbol)
	}
	w.mu.Unlock()

	if !ok {
		return false
	}
	close(tr.stop)
	<-tr.done
	return true
}

// Stop drops every alert and waits for the stream goroutines to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	drained := make([]*tracked, 0, len(w.alerts))
	for symbol, tr := range w.alerts {
		drained = append(drained, tr)
		delete(w.alerts, symbol)
	}
	w.mu.Unlock()

	for _, tr := range drained {
		close(tr.stop)
		<-tr.done
	}
}

// active reports whether the alert is still wanted.
func (w *Watcher) active(tr *tracked) bool {
	select {
	case <-tr.stop:
		return false
	default:
		return true
	}
}

// streamURL builds the markPrice stream endpoint for a symbol.
func (w *Watcher) streamURL(symbol string) string {
	return fmt.Sprintf("%s/ws/%s@markPrice@1s", w.wsBaseURL, strings.ToLower(symbol))
}

// watch owns the websocket connection for one alert. It reconnects on
// stream errors and exits after the alert fires or is removed.
func (w *Watcher) watch(tr *tracked) {
	defer close(tr.done)

	for {
		fired, err := w.follow(tr)
		if fired || !w.active(tr) {
			return
		}
		if err != nil {
			w.logger.Warnw("mark price stream interrupted, reconnecting",
				"symbol", tr.alert.Symbol, "error", err)
		}
		select {
		case <-tr.stop:
			return
		case <-time.After(5 * time.Second):
		}
	}
}

// follow reads one connection until the alert fires, the alert is
// stopped, or the stream breaks.
func (w *Watcher) follow(tr *tracked) (bool, error) {
	conn, _, err := websocket.DefaultDialer.Dial(w.streamURL(tr.alert.Symbol), nil)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	// unblock the blocking read when the alert is removed
	closed := make(chan struct{})
	defer close(closed)
	go func() {
		select {
		case <-tr.stop:
			conn.Close()
		case <-closed:
		}
	}()

	for {
		var event markPriceEvent
		if err := conn.ReadJSON(&event); err != nil {
			return false, err
		}
		price, err := strconv.ParseFloat(event.Price, 64)
		if err != nil {
			continue
		}
		if tr.alert.Triggered(price) {
			w.fire(tr, price)
			return true, nil
		}
	}
}

// fire unregisters the alert and invokes the handler, unless a
// concurrent Remove or Track already superseded it.
func (w *Watcher) fire(tr *tracked, price float64) {
	w.mu.Lock()
	current, ok := w.alerts[tr.alert.Symbol]
	if !ok || current != tr {
		w.mu.Unlock()
		return
	}
	delete(w.alerts, tr.alert.Symbol)
	w.mu.Unlock()

	w.logger.Infow("price alert fired", "symbol", tr.alert.Symbol, "target", tr.alert.Target, "price", price)
	w.handler(tr.alert, price)
}
