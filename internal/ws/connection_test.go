package ws

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"parley/internal/models"
)

type mockWS struct {
	readCh      chan models.ClientEvent
	writeCh     chan any
	closeCh     chan struct{}
	closed      bool
	errToReturn error
}

func newMockWS() *mockWS {
	return &mockWS{
		readCh:  make(chan models.ClientEvent, 10),
		writeCh: make(chan any, 10),
		closeCh: make(chan struct{}),
	}
}

func (m *mockWS) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	close(m.closeCh)
	return nil
}

func (m *mockWS) WriteJSON(v any) error {
	if m.errToReturn != nil {
		return m.errToReturn
	}
	m.writeCh <- v
	return nil
}

func (m *mockWS) ReadJSON(v any) error {
	if m.errToReturn != nil {
		return m.errToReturn
	}
	select {
	case ev, ok := <-m.readCh:
		if !ok {
			return errors.New("closed")
		}
		if ptr, ok := v.(*models.ClientEvent); ok {
			*ptr = ev
		}
		return nil
	case <-m.closeCh:
		return errors.New("connection closed")
	}
}

type mockHub struct {
	attachCh chan string
	detachCh chan string
	eventCh  chan models.ClientEvent
	// per connection outbound channel
	connChans map[string]chan models.ServerEvent
}

func newMockHub() *mockHub {
	return &mockHub{
		attachCh:  make(chan string, 10),
		detachCh:  make(chan string, 10),
		eventCh:   make(chan models.ClientEvent, 10),
		connChans: make(map[string]chan models.ServerEvent),
	}
}

func (m *mockHub) Attach(connID string) chan models.ServerEvent {
	m.attachCh <- connID
	ch := make(chan models.ServerEvent, 10)
	m.connChans[connID] = ch
	return ch
}

func (m *mockHub) Detach(connID string) {
	m.detachCh <- connID
	if ch, ok := m.connChans[connID]; ok {
		close(ch)
		delete(m.connChans, connID)
	}
}

func (m *mockHub) HandleEvent(_ context.Context, connID string, ev models.ClientEvent) {
	m.eventCh <- ev
}

func TestConnection_Lifecycle(t *testing.T) {
	hub := newMockHub()
	ws := newMockWS()
	connID := "conn1"

	conn := NewConnection(hub, ws, connID)
	if conn == nil {
		t.Fatal("NewConnection returned nil")
	}

	// Verify Attach was called
	select {
	case id := <-hub.attachCh:
		if id != connID {
			t.Errorf("Expected Attach with %s, got %s", connID, id)
		}
	default:
		t.Error("Attach not called on NewConnection")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error)
	go func() {
		done <- conn.Handle(ctx)
	}()

	// 1. Inbound frame from client -> hub
	clientEv := models.ClientEvent{
		Event: models.EventJoinChat,
		Data:  json.RawMessage(`{"from":"u1","to":"u2"}`),
	}
	ws.readCh <- clientEv

	select {
	case received := <-hub.eventCh:
		if received.Event != clientEv.Event {
			t.Errorf("Hub received wrong event: %v", received)
		}
	case <-time.After(1 * time.Second):
		t.Error("Hub did not receive dispatched event")
	}

	// 2. Outbound event from hub -> client
	serverEv := models.ServerEvent{
		Event: models.EventUserOnline,
		Data:  "u2",
	}
	hub.connChans[connID] <- serverEv

	select {
	case received := <-ws.writeCh:
		sEv, ok := received.(models.ServerEvent)
		if !ok {
			t.Fatalf("WS received wrong type: %T", received)
		}
		if sEv.Event != models.EventUserOnline || sEv.Data != "u2" {
			t.Errorf("WS received wrong payload: %v", sEv)
		}
	case <-time.After(1 * time.Second):
		t.Error("WS did not receive server event")
	}

	// 3. Stop
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Handle returned error: %v", err)
		}
	case <-time.After(1 * time.Second):
		t.Error("Handle did not return after cancel")
	}

	// Verify Detach called
	select {
	case id := <-hub.detachCh:
		if id != connID {
			t.Errorf("Expected Detach with %s, got %s", connID, id)
		}
	default:
		t.Error("Detach not called")
	}

	// Verify WS Close called
	if !ws.closed {
		t.Error("WS Close not called")
	}
}

func TestConnection_WSError(t *testing.T) {
	hub := newMockHub()
	ws := newMockWS()

	conn := NewConnection(hub, ws, "conn2")

	// Simulate ReadJSON error immediately
	ws.errToReturn = errors.New("read error")

	done := make(chan error)
	go func() {
		done <- conn.Handle(context.Background())
	}()

	select {
	case err := <-done:
		if err == nil {
			t.Error("Expected error from Handle, got nil")
		}
	case <-time.After(1 * time.Second):
		t.Error("Handle did not return on error")
	}

	if !ws.closed {
		t.Error("WS Close not called")
	}
}
