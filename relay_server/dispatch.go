package main

import (
	"strings"

	"github.com/gorilla/websocket"
)

// dispatchAction routes one inbound record by its action tag, matched
// case-insensitively. The return value tells the read loop to close the
// connection (only the lockout path uses it).
func dispatchAction(client *Client, conn *websocket.Conn, action string, raw []byte) bool {
	switch strings.ToLower(action) {
	case "signup":
		handleSignup(client, conn, raw)
	case "login":
		return handleLogin(client, conn, raw)
	case "list_users":
		broadcastUserList()
	case "message":
		handleRelayMessage(client, conn, raw)
	case "ping":
		safeSend(client, conn, PongResponse{Action: "pong"})
	default:
		safeSend(client, conn, ErrorResponse{Error: "Invalid action."})
	}
	return false
}
