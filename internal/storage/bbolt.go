package storage

import (
	"context"
	"fmt"
	"time"

	"parley/internal/models"
	"parley/internal/rooms"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

var (
	bucketUsers         = []byte("users")
	bucketMessages      = []byte("messages")
	bucketSubscriptions = []byte("push_subscriptions")
)

// PushSubscription is a stored web-push subscription.
type PushSubscription struct {
	UserID   string
	Endpoint string
	P256dh   string
	Auth     string
}

type BboltStorage struct {
	db *bbolt.DB
}

func NewBboltStorage(path string) (*BboltStorage, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketUsers); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(bucketMessages); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(bucketSubscriptions); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &BboltStorage{db: db}, nil
}

func (s *BboltStorage) Close() error {
	return s.db.Close()
}

// UpdatePresence stores the durable presence record for a user. The
// in-memory tracker is the live source of truth; this record survives
// restarts.
func (s *BboltStorage) UpdatePresence(_ context.Context, userID string, online bool, lastSeen int64) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketUsers)
		dbUser := &DBUser{
			ID:       userID,
			IsOnline: online,
			LastSeen: lastSeen,
		}
		data, err := dbUser.MarshalBinary()
		if err != nil {
			return err
		}
		return b.Put(dbUser.Key(), data)
	})
}

// GetPresence returns the stored presence record for a user.
func (s *BboltStorage) GetPresence(_ context.Context, userID string) (models.Presence, error) {
	var rec models.Presence
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketUsers).Get([]byte(userID))
		if data == nil {
			return models.ErrNotFound
		}
		var dbUser DBUser
		if err := dbUser.UnmarshalBinary(data); err != nil {
			return err
		}
		rec = models.Presence{Online: dbUser.IsOnline, LastSeen: dbUser.LastSeen}
		return nil
	})
	return rec, err
}

// SaveMessage persists the envelope and returns it with the durable ID
// assigned, overwriting the client-supplied transient one.
func (s *BboltStorage) SaveMessage(_ context.Context, msg models.Message) (models.Message, error) {
	if msg.SenderID == "" || msg.ReceiverID == "" {
		return models.Message{}, fmt.Errorf("message missing sender or receiver")
	}

	msg.ID = uuid.NewString()
	if msg.Type == "" {
		msg.Type = models.MessageTypeText
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		pairBucket, err := tx.Bucket(bucketMessages).CreateBucketIfNotExists(
			[]byte(rooms.PairKey(msg.SenderID, msg.ReceiverID)))
		if err != nil {
			return fmt.Errorf("failed to create conversation bucket: %w", err)
		}

		dbMessage := DBMessage{
			ID:         msg.ID,
			Type:       string(msg.Type),
			Text:       msg.Text,
			File:       msg.File,
			FileName:   msg.FileName,
			FileSize:   msg.FileSize,
			SenderID:   msg.SenderID,
			ReceiverID: msg.ReceiverID,
			Timestamp:  msg.Timestamp,
		}
		if msg.ReplyTo != nil {
			dbMessage.ReplyID = msg.ReplyTo.ID
			dbMessage.ReplyText = msg.ReplyTo.Text
			dbMessage.ReplySender = msg.ReplyTo.SenderID
		}

		data, err := dbMessage.MarshalBinary()
		if err != nil {
			return fmt.Errorf("failed to marshal message: %w", err)
		}
		return pairBucket.Put(dbMessage.Key(), data)
	})
	if err != nil {
		return models.Message{}, err
	}

	return msg, nil
}

// ListMessages returns the conversation between a and b ordered by
// timestamp.
func (s *BboltStorage) ListMessages(_ context.Context, a, b string) ([]models.Message, error) {
	var messages []models.Message
	err := s.db.View(func(tx *bbolt.Tx) error {
		pairBucket := tx.Bucket(bucketMessages).Bucket([]byte(rooms.PairKey(a, b)))
		if pairBucket == nil {
			return nil // no messages for this conversation
		}

		return pairBucket.ForEach(func(k, v []byte) error {
			var dbMsg DBMessage
			if err := dbMsg.UnmarshalBinary(v); err != nil {
				return err
			}
			msg := models.Message{
				ID:         dbMsg.ID,
				Type:       models.MessageType(dbMsg.Type),
				Text:       dbMsg.Text,
				File:       dbMsg.File,
				FileName:   dbMsg.FileName,
				FileSize:   dbMsg.FileSize,
				SenderID:   dbMsg.SenderID,
				ReceiverID: dbMsg.ReceiverID,
				Timestamp:  dbMsg.Timestamp,
			}
			if dbMsg.ReplyID != "" || dbMsg.ReplyText != "" {
				msg.ReplyTo = &models.ReplyRef{
					ID:       dbMsg.ReplyID,
					Text:     dbMsg.ReplyText,
					SenderID: dbMsg.ReplySender,
				}
			}
			messages = append(messages, msg)
			return nil
		})
	})
	return messages, err
}

// SaveSubscription stores a web-push subscription for one of the user's
// devices. Re-subscribing the same endpoint overwrites.
func (s *BboltStorage) SaveSubscription(_ context.Context, sub PushSubscription) error {
	if sub.UserID == "" || sub.Endpoint == "" {
		return fmt.Errorf("subscription missing user or endpoint")
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		dbSub := &DBSubscription{
			UserID:   sub.UserID,
			Endpoint: sub.Endpoint,
			P256dh:   sub.P256dh,
			Auth:     sub.Auth,
		}
		data, err := dbSub.MarshalBinary()
		if err != nil {
			return err
		}
		return tx.Bucket(bucketSubscriptions).Put(dbSub.Key(), data)
	})
}

// ListSubscriptions returns every stored subscription for a user.
func (s *BboltStorage) ListSubscriptions(_ context.Context, userID string) ([]PushSubscription, error) {
	var subs []PushSubscription
	prefix := append([]byte(userID), 0)
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketSubscriptions).Cursor()
		for k, v := c.Seek(prefix); k != nil && len(k) >= len(prefix) && string(k[:len(prefix)]) == string(prefix); k, v = c.Next() {
			var dbSub DBSubscription
			if err := dbSub.UnmarshalBinary(v); err != nil {
				return err
			}
			subs = append(subs, PushSubscription{
				UserID:   dbSub.UserID,
				Endpoint: dbSub.Endpoint,
				P256dh:   dbSub.P256dh,
				Auth:     dbSub.Auth,
			})
		}
		return nil
	})
	return subs, err
}

// DeleteSubscription drops a dead endpoint (push service returned
// 404/410).
func (s *BboltStorage) DeleteSubscription(_ context.Context, userID, endpoint string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		dbSub := &DBSubscription{UserID: userID, Endpoint: endpoint}
		return tx.Bucket(bucketSubscriptions).Delete(dbSub.Key())
	})
}
