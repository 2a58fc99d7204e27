// Package notify delivers web-push notifications to users with no live
// connections. Push is strictly best-effort: the durable message history is
// the catch-up path, this only wakes the recipient's devices up.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"parley/internal/models"
	"parley/internal/storage"

	webpush "github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"
)

// SubscriptionStore persists per-device push subscriptions.
type SubscriptionStore interface {
	ListSubscriptions(ctx context.Context, userID string) ([]storage.PushSubscription, error)
	DeleteSubscription(ctx context.Context, userID, endpoint string) error
}

type Config struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	// Contact is the subscriber mailto/URL required by the push services.
	Contact string
}

type Pusher struct {
	cfg   Config
	store SubscriptionStore
	log   *zap.Logger
}

func NewPusher(cfg Config, store SubscriptionStore, log *zap.Logger) *Pusher {
	return &Pusher{cfg: cfg, store: store, log: log}
}

// Enabled reports whether VAPID keys were configured.
func (p *Pusher) Enabled() bool {
	return p.cfg.VAPIDPublicKey != "" && p.cfg.VAPIDPrivateKey != ""
}

// NotifyOffline pushes a notification about msg to every subscribed device
// of userID. Failures are logged, never retried; dead endpoints are
// dropped.
func (p *Pusher) NotifyOffline(ctx context.Context, userID string, msg models.Message) {
	if !p.Enabled() {
		return
	}

	subs, err := p.store.ListSubscriptions(ctx, userID)
	if err != nil {
		p.log.Warn("push subscription lookup failed", zap.String("userId", userID), zap.Error(err))
		return
	}
	if len(subs) == 0 {
		return
	}

	payload, err := json.Marshal(map[string]string{
		"title": fmt.Sprintf("New message from %s", msg.SenderID),
		"body":  preview(msg),
		"from":  msg.SenderID,
	})
	if err != nil {
		return
	}

	for _, sub := range subs {
		resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys: webpush.Keys{
				P256dh: sub.P256dh,
				Auth:   sub.Auth,
			},
		}, &webpush.Options{
			Subscriber:      p.cfg.Contact,
			VAPIDPublicKey:  p.cfg.VAPIDPublicKey,
			VAPIDPrivateKey: p.cfg.VAPIDPrivateKey,
			TTL:             60,
		})
		if err != nil {
			p.log.Warn("push delivery failed",
				zap.String("userId", userID),
				zap.String("endpoint", sub.Endpoint),
				zap.Error(err))
			continue
		}
		if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
			// Subscription expired or revoked on the push service side.
			if err := p.store.DeleteSubscription(ctx, userID, sub.Endpoint); err != nil {
				p.log.Warn("failed to drop dead subscription", zap.Error(err))
			}
		}
		_ = resp.Body.Close()
	}
}

func preview(msg models.Message) string {
	switch msg.Type {
	case models.MessageTypeText, "":
		return msg.Text
	case models.MessageTypeGif:
		return "GIF"
	default:
		return string(msg.Type)
	}
}
