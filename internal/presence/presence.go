// Package presence derives online/offline state from connection registry
// transitions, persists last-seen timestamps and broadcasts transitions to
// every connected client.
package presence

import (
	"context"
	"time"

	"parley/internal/models"

	"github.com/c-pro/geche"
	"go.uber.org/zap"
)

const persistTimeout = 5 * time.Second

// UserStore is the persistence collaborator. Writes are best-effort:
// presence is ephemeral and self-corrects on the next transition.
type UserStore interface {
	UpdatePresence(ctx context.Context, userID string, online bool, lastSeen int64) error
}

// Broadcaster delivers an event to every live connection.
type Broadcaster interface {
	Broadcast(ev models.ServerEvent)
}

// OnlineSource answers the bulk presence query. Backed by the connection
// registry, so a snapshot never blocks on persistence.
type OnlineSource interface {
	Online() []string
}

type Tracker struct {
	records *geche.Locker[string, models.Presence]
	store   UserStore
	online  OnlineSource
	bcast   Broadcaster
	log     *zap.Logger
	now     func() time.Time
}

func NewTracker(store UserStore, online OnlineSource, bcast Broadcaster, log *zap.Logger) *Tracker {
	return &Tracker{
		records: geche.NewLocker[string, models.Presence](geche.NewMapCache[string, models.Presence]()),
		store:   store,
		online:  online,
		bcast:   bcast,
		log:     log,
		now:     time.Now,
	}
}

// WentOnline handles a registry offline -> online transition.
func (t *Tracker) WentOnline(userID string) {
	lastSeen := t.now().UnixMilli()
	t.set(userID, models.Presence{Online: true, LastSeen: lastSeen})
	t.persist(userID, true, lastSeen)
	t.bcast.Broadcast(models.ServerEvent{Event: models.EventUserOnline, Data: userID})
}

// WentOffline handles a registry online -> offline transition.
func (t *Tracker) WentOffline(userID string) {
	lastSeen := t.now().UnixMilli()
	t.set(userID, models.Presence{Online: false, LastSeen: lastSeen})
	t.persist(userID, false, lastSeen)
	t.bcast.Broadcast(models.ServerEvent{
		Event: models.EventUserOffline,
		Data:  models.UserOffline{UserID: userID, LastSeen: lastSeen},
	})
}

// ReportOffline handles a client's own offline report (e.g. logout) with a
// client-supplied last-seen. Idempotent with the registry-driven
// transition: the recorded last-seen never moves backwards.
func (t *Tracker) ReportOffline(userID string, lastSeen int64) {
	if userID == "" {
		return
	}
	if lastSeen == 0 {
		lastSeen = t.now().UnixMilli()
	}

	tx := t.records.Lock()
	if rec, err := tx.Get(userID); err == nil && rec.LastSeen > lastSeen {
		lastSeen = rec.LastSeen
	}
	tx.Set(userID, models.Presence{Online: false, LastSeen: lastSeen})
	tx.Unlock()

	t.persist(userID, false, lastSeen)
	t.bcast.Broadcast(models.ServerEvent{
		Event: models.EventUserOffline,
		Data:  models.UserOffline{UserID: userID, LastSeen: lastSeen},
	})
}

// Snapshot returns the sorted list of online user IDs.
func (t *Tracker) Snapshot() []string {
	return t.online.Online()
}

// Get returns the recorded presence for userID.
func (t *Tracker) Get(userID string) (models.Presence, bool) {
	tx := t.records.Lock()
	defer tx.Unlock()

	rec, err := tx.Get(userID)
	if err != nil {
		return models.Presence{}, false
	}
	return rec, true
}

func (t *Tracker) set(userID string, rec models.Presence) {
	tx := t.records.Lock()
	defer tx.Unlock()
	tx.Set(userID, rec)
}

func (t *Tracker) persist(userID string, online bool, lastSeen int64) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()

		if err := t.store.UpdatePresence(ctx, userID, online, lastSeen); err != nil {
			t.log.Warn("presence persist failed",
				zap.String("userId", userID),
				zap.Bool("online", online),
				zap.Error(err))
		}
	}()
}
