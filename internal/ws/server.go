package ws

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Server upgrades HTTP requests to websockets and hands each accepted
// socket to the hub as a fresh connection. Identity is asserted by the
// caller, either as a userId query parameter or later via register-user.
type Server struct {
	hub      *Hub
	upgrader *websocket.Upgrader
	log      *zap.Logger
}

func NewServer(hub *Hub, log *zap.Logger) *Server {
	return &Server{
		hub: hub,
		upgrader: &websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // identity provider fronts this, allow all origins
			},
		},
		log: log,
	}
}

func (s *Server) HandleConnections(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	connID := uuid.NewString()
	conn := NewConnection(s.hub, ws, connID)

	if userID := r.URL.Query().Get("userId"); userID != "" {
		s.hub.Register(connID, userID)
	}

	if err := conn.Handle(r.Context()); err != nil {
		s.log.Debug("connection closed", zap.String("connId", connID), zap.Error(err))
	}
}
