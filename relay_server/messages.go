package main

import (
	"bytes"
	"encoding/json"
	"log"
	"time"

	"guardchat/store"

	"github.com/gorilla/websocket"
)

// handleRelayMessage drives one encrypted send: resolve the sender from the
// auth token, check the receiver is online, apply the rate limit, persist,
// then forward. The limiter runs before persistence so an over-limit send
// never leaves a durable record.
func handleRelayMessage(client *Client, conn *websocket.Conn, raw []byte) {
	if !relayMessagingEnabled {
		safeSend(client, conn, ErrorResponse{Error: "Messaging is disabled on this relay."})
		return
	}

	var data RelayMessageRequest
	if err := json.Unmarshal(raw, &data); err != nil {
		safeSend(client, conn, ErrorResponse{Error: "Invalid message data."})
		return
	}

	if data.Token == "" || data.Receiver == "" || data.EncryptedMessage == "" || len(data.EncryptedAESKey) == 0 {
		safeSend(client, conn, ErrorResponse{Error: "Token, receiver, encrypted message and encrypted key are required."})
		return
	}
	if err := validatePayloadForRelay(data.EncryptedMessage); err != nil {
		safeSend(client, conn, ErrorResponse{Error: err.Error()})
		return
	}

	sender, err := verifyAuthToken(data.Token)
	if err != nil {
		safeSend(client, conn, ErrorResponse{Error: "Invalid or expired token."})
		return
	}

	receiverClient, receiverOnline := lookupClient(data.Receiver)
	if !receiverOnline {
		safeSend(client, conn, ErrorResponse{Error: "Receiver is offline."})
		return
	}

	encryptedKey, err := normalizeEncryptedKey(data.EncryptedAESKey)
	if err != nil {
		safeSend(client, conn, ErrorResponse{Error: "Invalid encrypted key format."})
		return
	}

	now := time.Now().UTC()
	client.rememberSender(sender)
	if !allowMessageSend(sender, now) {
		safeSend(client, conn, ErrorResponse{Error: "Rate limit exceeded. Slow down."})
		return
	}

	sessionToken := deriveSessionToken([]string{sender, data.Receiver}, "")

	err = messageStore.Append(store.Message{
		SessionToken:     sessionToken,
		Sender:           sender,
		Receiver:         data.Receiver,
		EncryptedPayload: data.EncryptedMessage,
		EncryptedKey:     encryptedKey,
		Timestamp:        now,
	})
	if err != nil {
		log.Println("handleRelayMessage: persisting message:", err)
		safeSend(client, conn, ErrorResponse{Error: "Failed to store message."})
		return
	}

	payload := RelayMessagePayload{
		Action:           "message",
		From:             sender,
		EncryptedMessage: data.EncryptedMessage,
		EncryptedAESKey:  encryptedKey,
		SessionToken:     sessionToken,
	}

	// Persistence is the durability boundary; a forwarding failure is
	// reported to the sender but the stored record stands.
	if !trySend(receiverClient, payload) {
		safeSend(client, conn, ErrorResponse{Error: "Failed to deliver message to receiver."})
		return
	}

	safeSend(client, conn, payload)
}

// normalizeEncryptedKey canonicalizes the encrypted AES key field. A JSON
// string passes through as its value; a structured object is stored in
// compact serialized form.
func normalizeEncryptedKey(raw json.RawMessage) (string, error) {
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString, nil
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return "", err
	}
	return compact.String(), nil
}
