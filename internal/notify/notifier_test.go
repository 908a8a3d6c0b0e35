package notify

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingSender struct {
	mu       sync.Mutex
	sent     []Message
	sendErr  error
	blockFor time.Duration
}

func (s *recordingSender) Send(msg Message) error {
	if s.blockFor > 0 {
		time.Sleep(s.blockFor)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return s.sendErr
}

func (s *recordingSender) messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.sent))
	copy(out, s.sent)
	return out
}

func TestMessageText(t *testing.T) {
	assert.Equal(t, "title\nbody", Message{Title: "title", Body: "body"}.Text())
	assert.Equal(t, "body", Message{Body: "body"}.Text())
	assert.Equal(t, "title", Message{Title: "title"}.Text())
}

func TestNotifierDeliversInOrder(t *testing.T) {
	sender := &recordingSender{}
	n := New(sender, zap.NewNop().Sugar())

	for i := 0; i < 5; i++ {
		n.Push(Message{ChatID: 1, Body: fmt.Sprintf("msg-%d", i)})
	}
	n.Close()

	sent := sender.messages()
	require.Len(t, sent, 5)
	for i, msg := range sent {
		assert.Equal(t, fmt.Sprintf("msg-%d", i), msg.Body)
	}
}

func TestNotifierPushNeverBlocks(t *testing.T) {
	// a stalled backend must not stall the caller
	sender := &recordingSender{blockFor: 50 * time.Millisecond}
	n := New(sender, zap.NewNop().Sugar())
	defer n.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < defaultQueueSize+10; i++ {
			n.Push(Message{ChatID: 1, Body: "x"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Push blocked on a full queue")
	}
}

func TestNotifierSurvivesSendErrors(t *testing.T) {
	sender := &recordingSender{sendErr: fmt.Errorf("chat not found")}
	n := New(sender, zap.NewNop().Sugar())

	n.Push(Message{ChatID: 1, Body: "first"})
	n.Push(Message{ChatID: 1, Body: "second"})
	n.Close()

	// errors are logged, delivery of later messages still happens
	assert.Len(t, sender.messages(), 2)
}
