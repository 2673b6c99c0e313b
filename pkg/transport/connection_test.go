package transport

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func newTestConnection(wg *sync.WaitGroup) *Connection {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	// The websocket conn can be nil as long as the pumps never run.
	return NewConnection(context.Background(), wg, nil, ConnectionConfig{ReadTimeout: time.Second}, nil, nil, logger)
}

// Send must stay safe against a concurrent Close: broadcasting
// goroutines queue frames to other users' connections with no way to
// know a disconnect is in flight.
func TestSendRacingCloseDoesNotPanic(t *testing.T) {
	for i := 0; i < 100; i++ {
		var wg sync.WaitGroup
		conn := newTestConnection(&wg)

		var senders sync.WaitGroup
		senders.Add(1)
		go func() {
			defer senders.Done()
			for j := 0; j < 50; j++ {
				conn.Send([]byte(`{"event":"x"}`))
			}
		}()

		conn.Close(nil)
		senders.Wait()
		wg.Wait()
	}
}

func TestSendEventAfterClose(t *testing.T) {
	var wg sync.WaitGroup
	conn := newTestConnection(&wg)
	conn.Close(nil)

	// Frames queued after close are dropped, never a panic or an error.
	if err := conn.SendEvent("userOnline", map[string]any{"userId": "u1"}); err != nil {
		t.Fatalf("SendEvent after close returned error: %v", err)
	}
	wg.Wait()
}

func TestCloseBeforeRunBalancesWaitGroup(t *testing.T) {
	var wg sync.WaitGroup
	conn := newTestConnection(&wg)
	conn.Close(nil)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("wait group never drained after closing an unstarted connection")
	}

	select {
	case <-conn.Done():
	default:
		t.Fatal("Done channel not closed after Close")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	var wg sync.WaitGroup
	conn := newTestConnection(&wg)
	conn.Close(nil)
	conn.Close(nil) // second close must not panic or double-count
	wg.Wait()
}
