package notify

import (
	"context"
	"testing"

	"parley/internal/models"
	"parley/internal/storage"

	"go.uber.org/zap"
)

type fakeStore struct {
	listed  int
	deleted int
}

func (f *fakeStore) ListSubscriptions(_ context.Context, userID string) ([]storage.PushSubscription, error) {
	f.listed++
	return nil, nil
}

func (f *fakeStore) DeleteSubscription(_ context.Context, userID, endpoint string) error {
	f.deleted++
	return nil
}

func TestPusher_DisabledWithoutKeys(t *testing.T) {
	store := &fakeStore{}
	p := NewPusher(Config{}, store, zap.NewNop())

	if p.Enabled() {
		t.Error("pusher without VAPID keys should be disabled")
	}

	// disabled pusher never touches the store
	p.NotifyOffline(context.Background(), "u1", models.Message{Text: "hi"})
	if store.listed != 0 {
		t.Error("disabled pusher hit the subscription store")
	}
}

func TestPusher_NoSubscriptionsIsNoop(t *testing.T) {
	store := &fakeStore{}
	p := NewPusher(Config{VAPIDPublicKey: "pub", VAPIDPrivateKey: "priv", Contact: "mailto:x@y"}, store, zap.NewNop())

	if !p.Enabled() {
		t.Error("pusher with keys should be enabled")
	}

	p.NotifyOffline(context.Background(), "u1", models.Message{Text: "hi"})
	if store.listed != 1 {
		t.Error("expected one subscription lookup")
	}
	if store.deleted != 0 {
		t.Error("nothing to delete")
	}
}

func TestPreview(t *testing.T) {
	cases := []struct {
		msg  models.Message
		want string
	}{
		{models.Message{Type: models.MessageTypeText, Text: "hello"}, "hello"},
		{models.Message{Text: "untyped"}, "untyped"},
		{models.Message{Type: models.MessageTypeGif}, "GIF"},
		{models.Message{Type: models.MessageTypeImage}, "image"},
		{models.Message{Type: models.MessageTypeDocument}, "document"},
	}
	for _, tc := range cases {
		if got := preview(tc.msg); got != tc.want {
			t.Errorf("preview(%+v) = %q, want %q", tc.msg, got, tc.want)
		}
	}
}
