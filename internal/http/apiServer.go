package http

import (
	"context"
	"net/http"
	"sync"

	"parley/internal/api"
	"parley/internal/ws"

	"go.uber.org/zap"
)

type APIServer struct {
	server *http.Server
	log    *zap.Logger
	wg     sync.WaitGroup
}

func NewAPIServer(hub *ws.Hub, handlers *api.Handlers, addr string, log *zap.Logger) *APIServer {
	server := ws.NewServer(hub, log)

	mux := http.NewServeMux()

	// REST surface: history catch-up, presence snapshot, push subscriptions
	mux.HandleFunc("GET /api/messages", handlers.MessagesHandler)
	mux.HandleFunc("GET /api/online", handlers.OnlineHandler)
	mux.HandleFunc("POST /api/push/subscribe", handlers.SubscribeHandler)
	mux.HandleFunc("GET /healthz", handlers.HealthHandler)

	// WebSocket endpoint
	mux.HandleFunc("/ws", server.HandleConnections)

	if addr == "" {
		addr = ":8080"
	}

	return &APIServer{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		log: log,
	}
}

func (s *APIServer) Start() error {
	s.log.Info("server started", zap.String("addr", s.server.Addr))
	s.wg.Add(1)
	defer s.wg.Done()

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *APIServer) Shutdown(ctx context.Context) error {
	defer s.wg.Wait()
	return s.server.Shutdown(ctx)
}
