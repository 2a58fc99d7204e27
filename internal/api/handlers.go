package api

import (
	"context"
	"encoding/json"
	"net/http"

	"parley/internal/models"
	"parley/internal/storage"

	"go.uber.org/zap"
)

// Store is the slice of the persistence collaborator the REST surface
// needs.
type Store interface {
	ListMessages(ctx context.Context, a, b string) ([]models.Message, error)
	SaveSubscription(ctx context.Context, sub storage.PushSubscription) error
}

// OnlineSource answers the bulk presence query.
type OnlineSource interface {
	Online() []string
}

type Handlers struct {
	store  Store
	online OnlineSource
	log    *zap.Logger
}

func New(store Store, online OnlineSource, log *zap.Logger) *Handlers {
	return &Handlers{store: store, online: online, log: log}
}

// MessagesHandler returns the conversation history between two users,
// ordered by timestamp. This is the catch-up path for recipients that were
// offline during live fan-out.
func (h *Handlers) MessagesHandler(w http.ResponseWriter, r *http.Request) {
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if from == "" || to == "" {
		http.Error(w, `{"error":"Missing required parameters"}`, http.StatusBadRequest)
		return
	}

	messages, err := h.store.ListMessages(r.Context(), from, to)
	if err != nil {
		h.log.Error("history fetch failed", zap.String("from", from), zap.String("to", to), zap.Error(err))
		http.Error(w, `{"error":"Failed to fetch messages"}`, http.StatusInternalServerError)
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}

	writeJSON(w, map[string]any{"messages": messages})
}

// OnlineHandler returns the current presence snapshot.
func (h *Handlers) OnlineHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"online": h.online.Online()})
}

type subscribeRequest struct {
	UserID       string `json:"userId"`
	Subscription struct {
		Endpoint string `json:"endpoint"`
		Keys     struct {
			P256dh string `json:"p256dh"`
			Auth   string `json:"auth"`
		} `json:"keys"`
	} `json:"subscription"`
}

// SubscribeHandler stores a web-push subscription for one of the user's
// devices.
func (h *Handlers) SubscribeHandler(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"Invalid request body"}`, http.StatusBadRequest)
		return
	}
	if req.UserID == "" || req.Subscription.Endpoint == "" {
		http.Error(w, `{"error":"Missing required parameters"}`, http.StatusBadRequest)
		return
	}

	err := h.store.SaveSubscription(r.Context(), storage.PushSubscription{
		UserID:   req.UserID,
		Endpoint: req.Subscription.Endpoint,
		P256dh:   req.Subscription.Keys.P256dh,
		Auth:     req.Subscription.Keys.Auth,
	})
	if err != nil {
		h.log.Error("subscription save failed", zap.String("userId", req.UserID), zap.Error(err))
		http.Error(w, `{"error":"Failed to save subscription"}`, http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
