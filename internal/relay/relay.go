// Package relay fans a submitted message out to every live connection of
// its recipient, echoes an acknowledgment to every connection of the
// sender, and hands the envelope to the persistence collaborator. Delivery
// is best-effort: an offline recipient catches up from history on next
// connect.
package relay

import (
	"context"
	"time"

	"parley/internal/models"
	"parley/internal/rooms"

	"github.com/c-pro/geche"
	"go.uber.org/zap"
)

const (
	// DefaultDedupeTTL bounds the window in which a re-sent message ID is
	// treated as a duplicate client emit and dropped.
	DefaultDedupeTTL = 5 * time.Second

	dedupeSweep   = time.Second
	notifyTimeout = 10 * time.Second
)

// MessageStore persists envelopes and assigns durable IDs.
type MessageStore interface {
	SaveMessage(ctx context.Context, msg models.Message) (models.Message, error)
}

// ConnSource resolves a user to their live connection IDs.
type ConnSource interface {
	ConnectionsFor(userID string) []string
}

// RoomSource lists the connections that joined a conversation room. Used as
// a redundant delivery path to protect against registry staleness.
type RoomSource interface {
	Members(room string) []string
}

// Sender writes an event to a single connection.
type Sender interface {
	SendTo(connID string, ev models.ServerEvent) bool
}

// Notifier pushes an out-of-band notification when the recipient has no
// live connections. Best-effort.
type Notifier interface {
	NotifyOffline(ctx context.Context, userID string, msg models.Message)
}

type Relay struct {
	dedupe geche.Geche[string, int64]
	store  MessageStore
	conns  ConnSource
	rooms  RoomSource
	send   Sender
	notify Notifier
	log    *zap.Logger
	now    func() time.Time
}

func New(ctx context.Context, ttl time.Duration, store MessageStore, conns ConnSource, roomSrc RoomSource, send Sender, notify Notifier, log *zap.Logger) *Relay {
	if ttl <= 0 {
		ttl = DefaultDedupeTTL
	}
	return &Relay{
		dedupe: geche.NewMapTTLCache[string, int64](ctx, ttl, dedupeSweep),
		store:  store,
		conns:  conns,
		rooms:  roomSrc,
		send:   send,
		notify: notify,
		log:    log,
		now:    time.Now,
	}
}

// Relay processes one send-message request arriving on originConn.
//
// Persistence failure aborts the whole operation: an unpersisted message is
// never fanned out, and the error is reported to the originating connection
// only. A duplicate message ID within the dedupe window is dropped
// silently.
func (r *Relay) Relay(ctx context.Context, originConn string, req models.SendMessage) error {
	msg := req.Message
	msg.SenderID = req.From
	msg.ReceiverID = req.To
	if msg.Timestamp == 0 {
		msg.Timestamp = r.now().UnixMilli()
	}

	if msg.ID != "" {
		if _, err := r.dedupe.Get(msg.ID); err == nil {
			r.log.Debug("duplicate message dropped", zap.String("messageId", msg.ID))
			return nil
		}
		r.dedupe.Set(msg.ID, r.now().UnixMilli())
	}

	saved, err := r.store.SaveMessage(ctx, msg)
	if err != nil {
		r.send.SendTo(originConn, models.ServerEvent{
			Event: models.EventMessageError,
			Data:  models.MessageError{Error: "Failed to send message"},
		})
		return err
	}

	receiverConns := r.conns.ConnectionsFor(req.To)

	// Deliver once per connection across both paths: direct registry
	// resolution and the pair room.
	delivered := make(map[string]bool)
	receive := models.ServerEvent{
		Event: models.EventReceiveMessage,
		Data:  models.ReceiveMessage{From: req.From, Message: saved},
	}
	for _, connID := range receiverConns {
		delivered[connID] = true
		r.send.SendTo(connID, receive)
	}
	for _, connID := range r.rooms.Members(rooms.PairKey(req.From, req.To)) {
		if delivered[connID] {
			continue
		}
		delivered[connID] = true
		r.send.SendTo(connID, receive)
	}

	// Every one of the sender's devices converges on the same state.
	ack := models.ServerEvent{
		Event: models.EventMessageSent,
		Data:  models.MessageSent{Message: saved},
	}
	acked := map[string]bool{originConn: true}
	r.send.SendTo(originConn, ack)
	for _, connID := range r.conns.ConnectionsFor(req.From) {
		if acked[connID] {
			continue
		}
		acked[connID] = true
		r.send.SendTo(connID, ack)
	}

	if len(receiverConns) == 0 && r.notify != nil {
		go func() {
			nctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
			defer cancel()
			r.notify.NotifyOffline(nctx, req.To, saved)
		}()
	}

	return nil
}
