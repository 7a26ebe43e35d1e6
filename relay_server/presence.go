package main

import (
	"log"
	"sync"
)

var (
	onlineClientsMu sync.Mutex
	onlineClients   = map[string]*Client{}
)

// registerPresence records the live connection for a username. A fresh
// login overwrites any stale handle left by a prior connection.
func registerPresence(username string, client *Client) {
	onlineClientsMu.Lock()
	onlineClients[username] = client
	onlineClientsMu.Unlock()

	broadcastUserList()
}

func unregisterPresence(username string) {
	onlineClientsMu.Lock()
	delete(onlineClients, username)
	onlineClientsMu.Unlock()

	broadcastUserList()
}

// unregisterPresenceIf removes the entry only while client still owns it, so
// a stale connection's teardown cannot evict the session that replaced it.
func unregisterPresenceIf(username string, client *Client) bool {
	onlineClientsMu.Lock()
	current, ok := onlineClients[username]
	if !ok || current != client {
		onlineClientsMu.Unlock()
		return false
	}
	delete(onlineClients, username)
	onlineClientsMu.Unlock()

	broadcastUserList()
	return true
}

func isOnline(username string) bool {
	onlineClientsMu.Lock()
	defer onlineClientsMu.Unlock()
	_, ok := onlineClients[username]
	return ok
}

func lookupClient(username string) (*Client, bool) {
	onlineClientsMu.Lock()
	defer onlineClientsMu.Unlock()
	client, ok := onlineClients[username]
	return client, ok
}

// broadcastUserList sends the full presence snapshot to every registered
// connection. Delivery failures to individual clients are swallowed so one
// dead connection cannot block the rest.
func broadcastUserList() {
	users, err := userStore.ListUsers()
	if err != nil {
		log.Println("broadcastUserList: listing users:", err)
		return
	}
	msg := UserListBroadcast{Action: "user_list", Users: users}

	onlineClientsMu.Lock()
	clients := make([]*Client, 0, len(onlineClients))
	for _, client := range onlineClients {
		clients = append(clients, client)
	}
	onlineClientsMu.Unlock()

	for _, client := range clients {
		if !trySend(client, msg) {
			log.Printf("broadcastUserList: dropping snapshot for client %s", client.ClientUUID)
		}
	}
}
