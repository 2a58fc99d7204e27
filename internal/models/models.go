package models

import (
	"encoding/json"
	"errors"
)

var (
	ErrNotFound = errors.New("not found")
)

// EventType is the closed set of named events carried over the websocket.
type EventType string

const (
	// client -> server
	EventRegisterUser   EventType = "register-user"
	EventGetOnlineUsers EventType = "get-online-users"
	EventJoinChat       EventType = "join-chat"
	EventSendMessage    EventType = "send-message"
	EventInitiateCall   EventType = "initiate_call"
	EventAcceptCall     EventType = "accept_call"
	EventRejectCall     EventType = "reject_call"
	EventEndCall        EventType = "end_call"

	// server -> client
	EventUserRegistered EventType = "user-registered"
	EventUserOnline     EventType = "user-online"
	EventUserOffline    EventType = "user-offline" // also client -> server (explicit offline report)
	EventOnlineUsers    EventType = "online-users"
	EventReceiveMessage EventType = "receive-message"
	EventMessageSent    EventType = "message-sent"
	EventMessageError   EventType = "message-error"
	EventIncomingCall   EventType = "incoming_call"
	EventCallAccepted   EventType = "call_accepted"
	EventCallRejected   EventType = "call_rejected"
	EventCallFailed     EventType = "call_failed"
	EventCallEnded      EventType = "call_ended"

	// relayed both ways
	EventProfileUpdated EventType = "profile-updated"
	EventUserBusy       EventType = "user_busy"
	EventOffer          EventType = "offer"
	EventAnswer         EventType = "answer"
	EventICECandidate   EventType = "ice_candidate"
)

// ClientEvent is one inbound frame. Data stays raw until the hub dispatches
// on Event and decodes it into the payload type for that kind.
type ClientEvent struct {
	Event EventType       `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ServerEvent is one outbound frame.
type ServerEvent struct {
	Event EventType `json:"event"`
	Data  any       `json:"data,omitempty"`
}

type MessageType string

const (
	MessageTypeText     MessageType = "text"
	MessageTypeImage    MessageType = "image"
	MessageTypeVideo    MessageType = "video"
	MessageTypeAudio    MessageType = "audio"
	MessageTypeDocument MessageType = "document"
	MessageTypeGif      MessageType = "gif"
)

// ReplyRef points at the message being replied to.
type ReplyRef struct {
	ID       string `json:"id,omitempty"`
	Text     string `json:"text,omitempty"`
	SenderID string `json:"senderId,omitempty"`
}

// Message is the relayed envelope. The relay never mutates it beyond
// replacing the client-supplied transient ID with the durable one assigned
// by the store. Media messages carry a file URL, never the bytes.
type Message struct {
	ID         string      `json:"id"`
	Type       MessageType `json:"type"`
	Text       string      `json:"text,omitempty"`
	File       string      `json:"file,omitempty"`
	FileName   string      `json:"fileName,omitempty"`
	FileSize   int64       `json:"fileSize,omitempty"`
	SenderID   string      `json:"senderId"`
	ReceiverID string      `json:"receiverId"`
	Timestamp  int64       `json:"timestamp"` // Unix timestamp (milliseconds)
	ReplyTo    *ReplyRef   `json:"replyTo,omitempty"`
}

// Presence represents the online status of a user.
type Presence struct {
	Online   bool  `json:"online"`
	LastSeen int64 `json:"lastSeen"` // Unix timestamp (milliseconds)
}

type CallType string

const (
	CallTypeVoice CallType = "voice"
	CallTypeVideo CallType = "video"
)

// CallData travels with every call lifecycle event.
type CallData struct {
	Type       CallType `json:"type,omitempty"`
	From       string   `json:"from"`
	To         string   `json:"to"`
	CallerName string   `json:"callerName,omitempty"`
	CallerPic  string   `json:"callerPic,omitempty"`
	Timestamp  int64    `json:"timestamp,omitempty"`
}

// Payload types for the remaining events.

type JoinChat struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type SendMessage struct {
	From    string  `json:"from"`
	To      string  `json:"to"`
	Message Message `json:"message"`
}

type ReceiveMessage struct {
	From    string  `json:"from"`
	Message Message `json:"message"`
}

type MessageSent struct {
	Message Message `json:"message"`
}

type MessageError struct {
	Error string `json:"error"`
}

type UserRegistered struct {
	UserID       string `json:"userId"`
	ConnectionID string `json:"connectionId"`
}

type UserOffline struct {
	UserID   string `json:"userId"`
	LastSeen int64  `json:"lastSeen,omitempty"`
}

type ProfileUpdate struct {
	UserID      string         `json:"userId"`
	UpdatedData map[string]any `json:"updatedData"`
}

type UserBusy struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type CallFailed struct {
	Message string `json:"message"`
}

// Signal carries WebRTC session-negotiation metadata. Exactly one of Offer,
// Answer or Candidate is set depending on the event kind; the relay forwards
// it verbatim and never looks inside.
type Signal struct {
	From      string          `json:"from"`
	To        string          `json:"to,omitempty"`
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}
