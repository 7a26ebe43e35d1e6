package main

import (
	"encoding/json"
	"log"

	"guardchat/store"

	"github.com/gorilla/websocket"
)

// Client is one live websocket session. Username stays empty until the
// connection authenticates.
type Client struct {
	Conn            *websocket.Conn
	ClientUUID      string
	Username        string
	IsAuthenticated bool
	SendQueue       chan interface{}
	Done            chan struct{}

	// relaySenders records limiter buckets touched over this connection.
	// Only the read loop goroutine writes it, so no lock is needed.
	relaySenders map[string]struct{}
}

// rememberSender marks a limiter bucket for cleanup on disconnect. The
// token subject can differ from the logged-in username, so cleanup cannot
// rely on Username alone.
func (c *Client) rememberSender(sender string) {
	if c.relaySenders == nil {
		c.relaySenders = make(map[string]struct{})
	}
	c.relaySenders[sender] = struct{}{}
}

func (c *Client) WritePump() {
	defer c.Conn.Close()

	for {
		select {
		case msg := <-c.SendQueue:
			if err := c.Conn.WriteJSON(msg); err != nil {
				log.Println("WritePump error:", err)
				return
			}
		case <-c.Done:
			// Flush anything queued before shutdown, such as the
			// suspension notice sent right before a forced close.
			for {
				select {
				case msg := <-c.SendQueue:
					if err := c.Conn.WriteJSON(msg); err != nil {
						return
					}
				default:
					return
				}
			}
		}
	}
}

// actionEnvelope carries only the dispatch tag; each handler decodes the
// full payload from the raw bytes.
type actionEnvelope struct {
	Action string `json:"action"`
}

type SignupRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RelayMessageRequest is the send action. EncryptedAESKey is kept raw
// because clients may submit it either as a string or as a structured
// object that gets normalized before persisting.
type RelayMessageRequest struct {
	Token            string          `json:"token"`
	Receiver         string          `json:"receiver"`
	EncryptedMessage string          `json:"encrypted_message"`
	EncryptedAESKey  json.RawMessage `json:"encrypted_aes_key"`
}

type SuccessResponse struct {
	Success string `json:"success"`
}

type ErrorResponse struct {
	Error interface{} `json:"error"`
}

type LoginResponse struct {
	Message string `json:"message"`
	User    string `json:"user"`
	Token   string `json:"token"`
}

type UserListBroadcast struct {
	Action string               `json:"action"`
	Users  []store.UserPresence `json:"users"`
}

type PongResponse struct {
	Action string `json:"action"`
}

// RelayMessagePayload is delivered to the receiver and echoed to the
// sender as the acknowledgment.
type RelayMessagePayload struct {
	Action           string `json:"action"`
	From             string `json:"from"`
	EncryptedMessage string `json:"encrypted_message"`
	EncryptedAESKey  string `json:"encrypted_aes_key"`
	SessionToken     string `json:"session_token"`
}
