package notify

import (
	"sync"

	"go.uber.org/zap"
)

// Message is a single outbound chat notification.
type Message struct {
	ChatID int64
	Title  string
	Body   string
}

// Text renders the message as one markdown block, title first.
func (m Message) Text() string {
	if m.Title == "" {
		return m.Body
	}
	if m.Body == "" {
		return m.Title
	}
	return m.Title + "\n" + m.Body
}

// Sender delivers a rendered message to a chat backend.
type Sender interface {
	Send(msg Message) error
}

// Notifier decouples command handling from chat delivery: messages are
// queued on a buffered channel and drained by a single worker goroutine,
// so a slow or flaky backend never blocks the trading path.
type Notifier struct {
	sender Sender
	queue  chan Message
	logger *zap.SugaredLogger
	wg     sync.WaitGroup
	once   sync.Once
}

const defaultQueueSize = 256

// New creates a notifier and starts its delivery worker.
func New(sender Sender, logger *zap.SugaredLogger) *Notifier {
	n := &Notifier{
		sender: sender,
		queue:  make(chan Message, defaultQueueSize),
		logger: logger,
	}
	n.wg.Add(1)
	go n.worker()
	return n
}

// Push enqueues a message without blocking. When the queue is full the
// message is dropped and logged; notifications are best effort.
func (n *Notifier) Push(msg Message) {
	select {
	case n.queue <- msg:
	default:
		n.logger.Warnw("notification queue full, dropping message", "chatId", msg.ChatID, "title", msg.Title)
	}
}

// Close stops accepting messages, drains the queue and waits for the
// worker to finish delivering what was already enqueued.
func (n *Notifier) Close() {
	n.once.Do(func() {
		close(n.queue)
	})
	n.wg.Wait()
}

func (n *Notifier) worker() {
	defer n.wg.Done()
	for msg := range n.queue {
		if err := n.sender.Send(msg); err != nil {
			n.logger.Errorw("failed to deliver notification", "chatId", msg.ChatID, "error", err)
		}
	}
}
