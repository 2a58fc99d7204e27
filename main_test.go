package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"parley/internal/models"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

const testAddr = "127.0.0.1:18087"

func dialClient(t *testing.T, userID string) *websocket.Conn {
	t.Helper()
	url := fmt.Sprintf("ws://%s/ws?userId=%s", testAddr, userID)

	var conn *websocket.Conn
	var err error
	for i := 0; i < 50; i++ {
		conn, _, err = websocket.DefaultDialer.Dial(url, nil)
		if err == nil {
			t.Cleanup(func() { _ = conn.Close() })
			return conn
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("failed to dial %s: %v", url, err)
	return nil
}

// readUntil skips frames until the wanted event arrives.
func readUntil(t *testing.T, conn *websocket.Conn, event models.EventType) json.RawMessage {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	require.NoError(t, conn.SetReadDeadline(deadline))
	for {
		var ev struct {
			Event models.EventType `json:"event"`
			Data  json.RawMessage  `json:"data"`
		}
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("waiting for %s: %v", event, err)
		}
		if ev.Event == event {
			return ev.Data
		}
	}
}

func sendEvent(t *testing.T, conn *websocket.Conn, event models.EventType, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(models.ClientEvent{Event: event, Data: raw}))
}

func TestIntegration(t *testing.T) {
	dbFile := filepath.Join(t.TempDir(), "integration_test.db")

	_ = os.Setenv("PARLEY_DB", dbFile)
	_ = os.Setenv("API_ADDR", testAddr)
	defer func() {
		_ = os.Unsetenv("PARLEY_DB")
		_ = os.Unsetenv("API_ADDR")
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- run(ctx)
	}()

	// u1 announces identity in the handshake
	conn1 := dialClient(t, "u1")
	var reg models.UserRegistered
	require.NoError(t, json.Unmarshal(readUntil(t, conn1, models.EventUserRegistered), &reg))
	require.Equal(t, "u1", reg.UserID)

	var online []string
	require.NoError(t, json.Unmarshal(readUntil(t, conn1, models.EventOnlineUsers), &online))
	require.Contains(t, online, "u1")

	// u2 announces identity via register-user
	conn2 := dialClient(t, "")
	sendEvent(t, conn2, models.EventRegisterUser, "u2")
	readUntil(t, conn2, models.EventUserRegistered)

	// u1 sees u2 come online
	var cameOnline string
	require.NoError(t, json.Unmarshal(readUntil(t, conn1, models.EventUserOnline), &cameOnline))
	require.Equal(t, "u2", cameOnline)

	// u2 -> u1 text message
	sendEvent(t, conn2, models.EventSendMessage, models.SendMessage{
		From: "u2",
		To:   "u1",
		Message: models.Message{
			ID:   "transient-1",
			Type: models.MessageTypeText,
			Text: "hello u1",
		},
	})

	var received models.ReceiveMessage
	require.NoError(t, json.Unmarshal(readUntil(t, conn1, models.EventReceiveMessage), &received))
	require.Equal(t, "u2", received.From)
	require.Equal(t, "hello u1", received.Message.Text)
	require.NotEqual(t, "transient-1", received.Message.ID, "durable id assigned")

	var ack models.MessageSent
	require.NoError(t, json.Unmarshal(readUntil(t, conn2, models.EventMessageSent), &ack))
	require.Equal(t, received.Message.ID, ack.Message.ID)

	// history catch-up over REST
	resp, err := http.Get(fmt.Sprintf("http://%s/api/messages?from=u1&to=u2", testAddr))
	require.NoError(t, err)
	var history struct {
		Messages []models.Message `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&history))
	_ = resp.Body.Close()
	require.Len(t, history.Messages, 1)
	require.Equal(t, "hello u1", history.Messages[0].Text)

	// presence snapshot over REST
	resp, err = http.Get(fmt.Sprintf("http://%s/api/online", testAddr))
	require.NoError(t, err)
	var snapshot struct {
		Online []string `json:"online"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snapshot))
	_ = resp.Body.Close()
	require.ElementsMatch(t, []string{"u1", "u2"}, snapshot.Online)

	// u2 calls u1, u1 accepts, signaling flows, u2 hangs up
	sendEvent(t, conn2, models.EventInitiateCall, models.CallData{
		Type: models.CallTypeVideo, From: "u2", To: "u1", CallerName: "User Two",
	})
	var invite models.CallData
	require.NoError(t, json.Unmarshal(readUntil(t, conn1, models.EventIncomingCall), &invite))
	require.Equal(t, "u2", invite.From)
	require.Equal(t, models.CallTypeVideo, invite.Type)

	sendEvent(t, conn1, models.EventAcceptCall, models.CallData{From: "u2", To: "u1"})
	readUntil(t, conn2, models.EventCallAccepted)

	sendEvent(t, conn2, models.EventOffer, models.Signal{
		From: "u2", To: "u1", Offer: json.RawMessage(`{"sdp":"v=0"}`),
	})
	var sig models.Signal
	require.NoError(t, json.Unmarshal(readUntil(t, conn1, models.EventOffer), &sig))
	require.Equal(t, "u2", sig.From)
	require.JSONEq(t, `{"sdp":"v=0"}`, string(sig.Offer))

	sendEvent(t, conn2, models.EventEndCall, models.CallData{From: "u2", To: "u1"})
	readUntil(t, conn1, models.EventCallEnded)
	readUntil(t, conn2, models.EventCallEnded)

	// shutdown
	cancel()
	select {
	case err := <-serverDone:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
