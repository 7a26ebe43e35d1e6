package store

import (
	"errors"
	"time"
)

var (
	ErrUserExists   = errors.New("username is already taken")
	ErrUserNotFound = errors.New("user not found")
)

type User struct {
	Username       string
	PasswordHash   string
	Email          string
	Online         bool
	Suspended      bool
	SuspendedUntil time.Time
}

type UserPresence struct {
	Username string `json:"username"`
	Online   bool   `json:"online"`
}

type Message struct {
	SessionToken     string
	Sender           string
	Receiver         string
	EncryptedPayload string
	EncryptedKey     string
	Timestamp        time.Time
}

// UserStore is the credential and presence record backing the relay.
// Suspension timestamps are persisted as Unix seconds so that every reader
// sees a single canonical representation.
type UserStore interface {
	CreateUser(username, passwordHash, email string) error
	GetUser(username string) (*User, error)
	SetOnline(username string, online bool) error
	SetSuspended(username string, until time.Time) error
	ClearSuspension(username string) error
	ListUsers() ([]UserPresence, error)
}

// MessageStore is an append-only log of relayed ciphertext, partitioned by
// session token and readable in ascending timestamp order.
type MessageStore interface {
	Append(msg Message) error
	History(sessionToken string) ([]Message, error)
}
