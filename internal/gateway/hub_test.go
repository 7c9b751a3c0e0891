package gateway

import (
	"io"
	"log/slog"
	"testing"

	"github.com/phonescreen-labs/phonescreen-core/internal/protocol"
)

func newTestHub() *Hub {
	return NewHub(slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError})))
}

func TestBroadcastDropsSaturatedObserver(t *testing.T) {
	h := newTestHub()
	c := &client{send: make(chan protocol.ClientEnvelope, 1)}
	h.register(c)

	update := protocol.ClientEnvelope{Type: protocol.TypeInterviewUpdate, CallID: "CA1"}
	h.Broadcast(update) // fills the buffer
	h.Broadcast(update) // no room left: observer must be dropped

	if h.Len() != 0 {
		t.Fatalf("saturated observer still registered, len=%d", h.Len())
	}
}

func TestEnqueueAfterDropIsSilent(t *testing.T) {
	h := newTestHub()
	c := &client{send: make(chan protocol.ClientEnvelope, 1)}
	h.register(c)

	update := protocol.ClientEnvelope{Type: protocol.TypeInterviewUpdate, CallID: "CA1"}
	h.Broadcast(update)
	h.Broadcast(update)

	// The read loop can race the drop and still try to answer this client;
	// that must be reported as a failed enqueue, never a panic.
	if c.enqueue(protocol.ClientEnvelope{Type: protocol.TypeError, Message: "late reply"}) {
		t.Fatal("enqueue on a dropped observer reported success")
	}
	c.shut() // second shutdown must also be harmless
}

func TestCloseAllShutsEveryObserverOnce(t *testing.T) {
	h := newTestHub()
	a := &client{send: make(chan protocol.ClientEnvelope, 1)}
	b := &client{send: make(chan protocol.ClientEnvelope, 1)}
	h.register(a)
	h.register(b)

	h.CloseAll()
	if h.Len() != 0 {
		t.Fatalf("observers left after close, len=%d", h.Len())
	}
	if _, open := <-a.send; open {
		t.Fatal("send channel still open after close")
	}
	if a.enqueue(protocol.ClientEnvelope{Type: protocol.TypeError}) {
		t.Fatal("enqueue after close reported success")
	}
}
