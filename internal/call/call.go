// Package call manages the two-party call lifecycle (invite, accept,
// reject, busy, end) and relays WebRTC session-negotiation payloads between
// the parties. The protocol is deliberately state-light: the machine routes
// identity-addressed events and tracks only the coarse lifecycle needed for
// both clients to agree on when a call is alive, trusting the client side
// for media renegotiation and timeouts.
package call

import (
	"sync"
	"time"

	"parley/internal/models"

	"go.uber.org/zap"
)

type Status string

const (
	StatusInitiated Status = "initiated"
	StatusRinging   Status = "ringing"
	StatusAccepted  Status = "accepted"
	StatusConnected Status = "connected"
	StatusRejected  Status = "rejected"
	StatusBusy      Status = "busy"
	StatusEnded     Status = "ended"
	StatusFailed    Status = "failed"
)

// Session is one call attempt, keyed by the ordered (from, to) pair.
// Terminal transitions discard it.
type Session struct {
	Type   models.CallType
	From   string
	To     string
	Status Status
}

// ConnSource resolves a user to their live connection IDs.
type ConnSource interface {
	ConnectionsFor(userID string) []string
}

// Sender writes an event to a single connection.
type Sender interface {
	SendTo(connID string, ev models.ServerEvent) bool
}

type Machine struct {
	sessions map[string]*Session
	conns    ConnSource
	send     Sender
	log      *zap.Logger
	now      func() time.Time

	mu sync.Mutex
}

func NewMachine(conns ConnSource, send Sender, log *zap.Logger) *Machine {
	return &Machine{
		sessions: make(map[string]*Session),
		conns:    conns,
		send:     send,
		log:      log,
		now:      time.Now,
	}
}

func sessionKey(from, to string) string {
	return from + "|" + to
}

// Initiate starts a call attempt. An offline callee yields call_failed to
// the originating connection only and the attempt is terminal; otherwise
// the invite is fanned out to every connection of the callee and the
// session starts ringing.
func (m *Machine) Initiate(originConn string, data models.CallData) {
	if data.From == "" || data.To == "" {
		return
	}

	targets := m.conns.ConnectionsFor(data.To)
	if len(targets) == 0 {
		m.log.Info("call failed, callee offline",
			zap.String("from", data.From), zap.String("to", data.To))
		m.send.SendTo(originConn, models.ServerEvent{
			Event: models.EventCallFailed,
			Data:  models.CallFailed{Message: "User is not online"},
		})
		return
	}

	data.Timestamp = m.now().UnixMilli()
	for _, connID := range targets {
		m.send.SendTo(connID, models.ServerEvent{Event: models.EventIncomingCall, Data: data})
	}

	m.mu.Lock()
	m.sessions[sessionKey(data.From, data.To)] = &Session{
		Type:   data.Type,
		From:   data.From,
		To:     data.To,
		Status: StatusRinging,
	}
	m.mu.Unlock()
}

// Accept forwards call_accepted to every connection of the original caller
// and authorizes the subsequent offer/answer exchange.
func (m *Machine) Accept(data models.CallData) {
	data.Timestamp = m.now().UnixMilli()
	m.fanToUser(data.From, models.ServerEvent{Event: models.EventCallAccepted, Data: data})
	m.transition(data.From, data.To, StatusAccepted)
}

// Reject forwards call_rejected to every connection of the caller.
// Terminal.
func (m *Machine) Reject(data models.CallData) {
	data.Timestamp = m.now().UnixMilli()
	m.fanToUser(data.From, models.ServerEvent{Event: models.EventCallRejected, Data: data})
	m.discard(data.From, data.To, StatusRejected)
}

// Busy reports a concurrent-call conflict back to the caller. The busy
// check itself is the callee side's job; the machine treats the signal
// symmetrically to a rejection.
func (m *Machine) Busy(data models.UserBusy) {
	m.fanToUser(data.To, models.ServerEvent{Event: models.EventUserBusy, Data: data})
	m.discard(data.To, data.From, StatusBusy)
}

// End forwards call_ended to every connection of both parties. Either side
// may hang up and both local UIs must converge. Terminal.
func (m *Machine) End(data models.CallData) {
	data.Timestamp = m.now().UnixMilli()
	ev := models.ServerEvent{Event: models.EventCallEnded, Data: data}
	m.fanToUser(data.From, ev)
	m.fanToUser(data.To, ev)
	m.discard(data.From, data.To, StatusEnded)
	m.discard(data.To, data.From, StatusEnded)
}

// Forward relays an offer, answer or ICE candidate verbatim to every
// connection of sig.To, annotated with the sender. No state gating: a
// payload with no live target connection is silently dropped and the
// originating peer times out client-side.
func (m *Machine) Forward(event models.EventType, sig models.Signal) {
	out := models.Signal{
		From:      sig.From,
		Offer:     sig.Offer,
		Answer:    sig.Answer,
		Candidate: sig.Candidate,
	}
	m.fanToUser(sig.To, models.ServerEvent{Event: event, Data: out})

	// An answered call has both descriptions exchanged.
	if event == models.EventAnswer {
		m.transition(sig.To, sig.From, StatusConnected)
	}
}

// HandleDisconnect ends every live call the user was party to, notifying
// the peer. Fires when the user's last connection closes without a proper
// end_call (crash, network drop). No timers are involved.
func (m *Machine) HandleDisconnect(userID string) {
	m.mu.Lock()
	var orphaned []*Session
	for key, s := range m.sessions {
		if s.From == userID || s.To == userID {
			orphaned = append(orphaned, s)
			delete(m.sessions, key)
		}
	}
	m.mu.Unlock()

	for _, s := range orphaned {
		peer := s.From
		if peer == userID {
			peer = s.To
		}
		m.log.Info("call ended by disconnect",
			zap.String("userId", userID), zap.String("peer", peer))
		m.fanToUser(peer, models.ServerEvent{
			Event: models.EventCallEnded,
			Data: models.CallData{
				Type:      s.Type,
				From:      s.From,
				To:        s.To,
				Timestamp: m.now().UnixMilli(),
			},
		})
	}
}

// Current returns the live session for the ordered (from, to) pair.
func (m *Machine) Current(from, to string) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionKey(from, to)]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

func (m *Machine) fanToUser(userID string, ev models.ServerEvent) {
	for _, connID := range m.conns.ConnectionsFor(userID) {
		m.send.SendTo(connID, ev)
	}
}

func (m *Machine) transition(from, to string, status Status) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[sessionKey(from, to)]; ok {
		s.Status = status
	}
}

func (m *Machine) discard(from, to string, status Status) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[sessionKey(from, to)]; ok {
		s.Status = status
		delete(m.sessions, sessionKey(from, to))
	}
}
