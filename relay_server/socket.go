package main

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return isWebSocketOriginAllowed(r.Header.Get("Origin"))
	},
}

func HandleSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Println("WebSocket upgrade failed:", err)
		return
	}
	conn.SetReadLimit(256 * 1024)
	defer conn.Close()

	client := &Client{
		Conn:       conn,
		ClientUUID: uuid.NewString(),
		SendQueue:  make(chan interface{}, 32),
		Done:       make(chan struct{}),
	}
	go client.WritePump()

	for {
		_, msgBytes, err := conn.ReadMessage()
		if err != nil {
			break
		}

		var envelope actionEnvelope
		if err := json.Unmarshal(msgBytes, &envelope); err != nil {
			safeSend(client, conn, ErrorResponse{Error: "Invalid message format."})
			continue
		}

		if dispatchAction(client, conn, envelope.Action, msgBytes) {
			break
		}
	}

	cleanupClient(client)
}

func cleanupClient(client *Client) {
	owned := false
	if client.IsAuthenticated {
		owned = unregisterPresenceIf(client.Username, client)
		if owned {
			if err := userStore.SetOnline(client.Username, false); err != nil {
				log.Printf("cleanupClient: clearing online flag for %s: %v", client.Username, err)
			}
		}
	}
	for sender := range client.relaySenders {
		// A replacement session owns this username's bucket now.
		if sender == client.Username && client.IsAuthenticated && !owned {
			continue
		}
		clearMessageLimiter(sender)
	}
	close(client.Done)
}

// trySend queues a message without blocking. A closed or saturated client
// counts as a delivery failure.
func trySend(client *Client, msg interface{}) bool {
	select {
	case <-client.Done:
		return false
	default:
	}
	select {
	case client.SendQueue <- msg:
		return true
	default:
		return false
	}
}

func safeSend(client *Client, conn *websocket.Conn, msg interface{}) {
	if client != nil && client.SendQueue != nil {
		if !trySend(client, msg) {
			log.Printf("safeSend: dropping message for client %s", client.ClientUUID)
		}
		return
	}
	_ = conn.WriteJSON(msg)
}
