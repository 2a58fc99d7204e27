package storage

import (
	"encoding"
	"encoding/binary"

	"github.com/vmihailenco/msgpack/v5"
)

type Storeable interface {
	Key() []byte
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

// DBUser holds the durable presence record for one user.
type DBUser struct {
	ID       string `msgpack:"id"`
	IsOnline bool   `msgpack:"isOnline"`
	LastSeen int64  `msgpack:"lastSeen"`
}

func (u *DBUser) Key() []byte {
	return []byte(u.ID)
}

func (u *DBUser) MarshalBinary() (data []byte, err error) {
	type alias DBUser
	return msgpack.Marshal((*alias)(u))
}

func (u *DBUser) UnmarshalBinary(data []byte) error {
	type alias DBUser
	return msgpack.Unmarshal(data, (*alias)(u))
}

// DBMessage is one persisted envelope. Messages live in a sub-bucket per
// conversation pair key, ordered by timestamp.
type DBMessage struct {
	ID          string `msgpack:"id"`
	Type        string `msgpack:"type"`
	Text        string `msgpack:"text"`
	File        string `msgpack:"file"`
	FileName    string `msgpack:"fileName"`
	FileSize    int64  `msgpack:"fileSize"`
	SenderID    string `msgpack:"senderId"`
	ReceiverID  string `msgpack:"receiverId"`
	Timestamp   int64  `msgpack:"timestamp"`
	ReplyID     string `msgpack:"replyId"`
	ReplyText   string `msgpack:"replyText"`
	ReplySender string `msgpack:"replySender"`
}

// Key orders messages by timestamp within a conversation, with the ID as a
// tiebreaker for messages sharing a millisecond.
func (m *DBMessage) Key() []byte {
	key := make([]byte, 8, 8+len(m.ID))
	binary.BigEndian.PutUint64(key, uint64(m.Timestamp))
	return append(key, m.ID...)
}

func (m *DBMessage) MarshalBinary() (data []byte, err error) {
	type alias DBMessage
	return msgpack.Marshal((*alias)(m))
}

func (m *DBMessage) UnmarshalBinary(data []byte) error {
	type alias DBMessage
	return msgpack.Unmarshal(data, (*alias)(m))
}

// DBSubscription is one web-push subscription for a user's device.
type DBSubscription struct {
	UserID   string `msgpack:"userId"`
	Endpoint string `msgpack:"endpoint"`
	P256dh   string `msgpack:"p256dh"`
	Auth     string `msgpack:"auth"`
}

func (s *DBSubscription) Key() []byte {
	return append(append([]byte(s.UserID), 0), s.Endpoint...)
}

func (s *DBSubscription) MarshalBinary() (data []byte, err error) {
	type alias DBSubscription
	return msgpack.Marshal((*alias)(s))
}

func (s *DBSubscription) UnmarshalBinary(data []byte) error {
	type alias DBSubscription
	return msgpack.Unmarshal(data, (*alias)(s))
}
