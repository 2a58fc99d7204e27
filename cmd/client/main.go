// Command client is a small interactive websocket client for poking at a
// running relay: it registers an identity, prints every inbound frame and
// turns simple slash commands into events.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"parley/internal/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

func main() {
	addr := flag.String("addr", "ws://localhost:8080/ws", "relay websocket URL")
	user := flag.String("user", "", "identity to register (required)")
	flag.Parse()

	if *user == "" {
		log.Fatal("-user is required")
	}

	conn, _, err := websocket.DefaultDialer.Dial(*addr, nil)
	if err != nil {
		log.Fatalf("dial %s: %v", *addr, err)
	}
	defer conn.Close()

	send := func(event models.EventType, data any) {
		if err := conn.WriteJSON(models.ClientEvent{Event: event, Data: mustMarshal(data)}); err != nil {
			log.Fatalf("write: %v", err)
		}
	}

	send(models.EventRegisterUser, *user)

	go func() {
		for {
			var ev models.ServerEvent
			if err := conn.ReadJSON(&ev); err != nil {
				log.Fatalf("read: %v", err)
			}
			data, _ := json.Marshal(ev.Data)
			fmt.Printf("<- %s %s\n", ev.Event, data)
		}
	}()

	fmt.Println("commands: /msg <to> <text> | /join <to> | /call <to> | /accept <to> | /reject <to> | /end <to> | /who")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "/who":
			send(models.EventGetOnlineUsers, nil)
		case "/join":
			if len(fields) < 2 {
				continue
			}
			send(models.EventJoinChat, models.JoinChat{From: *user, To: fields[1]})
		case "/msg":
			if len(fields) < 3 {
				continue
			}
			send(models.EventSendMessage, models.SendMessage{
				From: *user,
				To:   fields[1],
				Message: models.Message{
					ID:        uuid.NewString(),
					Type:      models.MessageTypeText,
					Text:      strings.Join(fields[2:], " "),
					Timestamp: time.Now().UnixMilli(),
				},
			})
		case "/call":
			if len(fields) < 2 {
				continue
			}
			send(models.EventInitiateCall, models.CallData{
				Type: models.CallTypeVideo, From: *user, To: fields[1], CallerName: *user,
			})
		case "/accept":
			if len(fields) < 2 {
				continue
			}
			// the callee accepts, so the original caller is the peer
			send(models.EventAcceptCall, models.CallData{From: fields[1], To: *user})
		case "/reject":
			if len(fields) < 2 {
				continue
			}
			send(models.EventRejectCall, models.CallData{From: fields[1], To: *user})
		case "/end":
			if len(fields) < 2 {
				continue
			}
			send(models.EventEndCall, models.CallData{From: *user, To: fields[1]})
		default:
			fmt.Println("unknown command")
		}
	}
}

func mustMarshal(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		log.Fatalf("marshal: %v", err)
	}
	return data
}
