package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"parley/internal/call"
	"parley/internal/content"
	"parley/internal/models"
	"parley/internal/presence"
	"parley/internal/registry"
	"parley/internal/relay"
	"parley/internal/rooms"

	"go.uber.org/zap"
)

const sendBuffer = 100

// Store is the persistence collaborator the hub's components write through.
type Store interface {
	UpdatePresence(ctx context.Context, userID string, online bool, lastSeen int64) error
	SaveMessage(ctx context.Context, msg models.Message) (models.Message, error)
}

// Hub is the single event dispatcher. It owns the per-connection outbound
// channels and composes the registry, presence tracker, message relay, call
// machine and room index; every inbound frame is routed through HandleEvent
// and any failure stays contained in its handler.
type Hub struct {
	clients map[string]chan models.ServerEvent

	registry *registry.Registry
	tracker  *presence.Tracker
	relay    *relay.Relay
	calls    *call.Machine
	rooms    *rooms.Index
	log      *zap.Logger

	mu sync.RWMutex
}

func NewHub(ctx context.Context, store Store, notifier relay.Notifier, dedupeTTL time.Duration, log *zap.Logger) *Hub {
	h := &Hub{
		clients:  make(map[string]chan models.ServerEvent),
		registry: registry.New(),
		rooms:    rooms.NewIndex(),
		log:      log,
	}
	h.tracker = presence.NewTracker(store, h.registry, h, log)
	h.relay = relay.New(ctx, dedupeTTL, store, h.registry, h.rooms, h, notifier, log)
	h.calls = call.NewMachine(h.registry, h, log)
	return h
}

// Attach creates the outbound channel for a new connection. The connection
// carries no identity until it announces one via register-user.
func (h *Hub) Attach(connID string) chan models.ServerEvent {
	ch := make(chan models.ServerEvent, sendBuffer)

	h.mu.Lock()
	h.clients[connID] = ch
	h.mu.Unlock()

	return ch
}

// Detach tears a closed connection down: outbound channel, room
// memberships, registry entry. If this was the owner's last connection the
// presence tracker fires the offline transition and any live call the user
// was party to is ended towards the peer.
func (h *Hub) Detach(connID string) {
	h.mu.Lock()
	if ch, ok := h.clients[connID]; ok {
		close(ch)
		delete(h.clients, connID)
	}
	h.mu.Unlock()

	h.rooms.Evict(connID)

	userID, wentOffline := h.registry.Unregister(connID)
	if wentOffline {
		h.tracker.WentOffline(userID)
		h.calls.HandleDisconnect(userID)
	}
}

// SendTo delivers an event to one connection. A full outbound buffer drops
// the event rather than blocking the dispatcher.
func (h *Hub) SendTo(connID string, ev models.ServerEvent) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ch, ok := h.clients[connID]
	if !ok {
		return false
	}

	select {
	case ch <- ev:
		return true
	default:
		h.log.Warn("outbound buffer full, dropping event",
			zap.String("connId", connID), zap.String("event", string(ev.Event)))
		return false
	}
}

// Broadcast delivers an event to every live connection.
func (h *Hub) Broadcast(ev models.ServerEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for connID, ch := range h.clients {
		select {
		case ch <- ev:
		default:
			h.log.Warn("outbound buffer full, dropping broadcast",
				zap.String("connId", connID), zap.String("event", string(ev.Event)))
		}
	}
}

// Register announces an identity on a connection. Exposed for transports
// that carry the identity in the handshake instead of a register-user
// frame.
func (h *Hub) Register(connID, userID string) {
	if userID == "" {
		return
	}

	if cameOnline := h.registry.Register(userID, connID); cameOnline {
		h.tracker.WentOnline(userID)
	}

	h.SendTo(connID, models.ServerEvent{
		Event: models.EventUserRegistered,
		Data:  models.UserRegistered{UserID: userID, ConnectionID: connID},
	})
	h.SendTo(connID, models.ServerEvent{
		Event: models.EventOnlineUsers,
		Data:  h.tracker.Snapshot(),
	})
}

// HandleEvent routes one inbound frame. Malformed payloads are rejected
// before any shared state is touched.
func (h *Hub) HandleEvent(ctx context.Context, connID string, ev models.ClientEvent) {
	switch ev.Event {
	case models.EventRegisterUser:
		var userID string
		if !h.decode(connID, ev, &userID) {
			return
		}
		h.Register(connID, userID)

	case models.EventGetOnlineUsers:
		h.SendTo(connID, models.ServerEvent{
			Event: models.EventOnlineUsers,
			Data:  h.tracker.Snapshot(),
		})

	case models.EventJoinChat:
		var req models.JoinChat
		if !h.decode(connID, ev, &req) {
			return
		}
		if req.From == "" || req.To == "" {
			return
		}
		h.rooms.Join(rooms.PairKey(req.From, req.To), connID)

	case models.EventSendMessage:
		var req models.SendMessage
		if !h.decode(connID, ev, &req) {
			return
		}
		if req.From == "" || req.To == "" {
			return
		}
		if err := h.relay.Relay(ctx, connID, req); err != nil {
			h.log.Error("message relay failed",
				zap.String("from", req.From), zap.String("to", req.To), zap.Error(err))
		}

	case models.EventUserOffline:
		var req models.UserOffline
		if !h.decode(connID, ev, &req) {
			return
		}
		h.tracker.ReportOffline(req.UserID, req.LastSeen)

	case models.EventProfileUpdated:
		var req models.ProfileUpdate
		if !h.decode(connID, ev, &req) {
			return
		}
		if req.UserID == "" {
			return
		}
		req.UpdatedData = content.SanitizeProfile(req.UpdatedData)
		h.Broadcast(models.ServerEvent{Event: models.EventProfileUpdated, Data: req})

	case models.EventInitiateCall:
		var data models.CallData
		if !h.decode(connID, ev, &data) {
			return
		}
		h.calls.Initiate(connID, data)

	case models.EventAcceptCall:
		var data models.CallData
		if !h.decode(connID, ev, &data) {
			return
		}
		h.calls.Accept(data)

	case models.EventRejectCall:
		var data models.CallData
		if !h.decode(connID, ev, &data) {
			return
		}
		h.calls.Reject(data)

	case models.EventUserBusy:
		var data models.UserBusy
		if !h.decode(connID, ev, &data) {
			return
		}
		h.calls.Busy(data)

	case models.EventEndCall:
		var data models.CallData
		if !h.decode(connID, ev, &data) {
			return
		}
		h.calls.End(data)

	case models.EventOffer, models.EventAnswer, models.EventICECandidate:
		var sig models.Signal
		if !h.decode(connID, ev, &sig) {
			return
		}
		h.calls.Forward(ev.Event, sig)

	default:
		h.log.Debug("unknown event", zap.String("event", string(ev.Event)))
	}
}

// Online exposes the presence snapshot for the REST surface.
func (h *Hub) Online() []string {
	return h.tracker.Snapshot()
}

func (h *Hub) decode(connID string, ev models.ClientEvent, v any) bool {
	if err := json.Unmarshal(ev.Data, v); err != nil {
		h.log.Debug("malformed payload",
			zap.String("connId", connID), zap.String("event", string(ev.Event)), zap.Error(err))
		return false
	}
	return true
}
