package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) ensureSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL UNIQUE,
			password TEXT NOT NULL,
			email TEXT,
			online INTEGER DEFAULT 0,
			suspended INTEGER DEFAULT 0,
			suspended_until INTEGER DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_token TEXT NOT NULL,
			sender TEXT NOT NULL,
			receiver TEXT NOT NULL,
			encrypted_payload TEXT NOT NULL,
			encrypted_key TEXT NOT NULL,
			timestamp INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_session
			ON messages (session_token, timestamp)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("schema exec failed: %w", err)
		}
	}
	return nil
}

// ResetOnlineFlags clears stale online markers left behind by an unclean
// shutdown. Called once at startup before any connection is accepted.
func (s *SQLiteStore) ResetOnlineFlags() error {
	if _, err := s.db.Exec(`UPDATE users SET online = 0`); err != nil {
		return fmt.Errorf("reset online flags failed: %w", err)
	}
	return nil
}

func (s *SQLiteStore) CreateUser(username, passwordHash, email string) error {
	// The UNIQUE constraint on username is the single source of truth; a
	// pre-check would race concurrent signups.
	_, err := s.db.Exec(
		`INSERT INTO users (username, password, email) VALUES (?, ?, ?)`,
		username, passwordHash, email,
	)
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return ErrUserExists
	}
	if err != nil {
		return fmt.Errorf("insert user failed: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetUser(username string) (*User, error) {
	var user User
	var online, suspended int
	var suspendedUntil int64
	err := s.db.QueryRow(
		`SELECT username, password, COALESCE(email, ''), online, suspended, suspended_until
		 FROM users WHERE username = ?`,
		username,
	).Scan(&user.Username, &user.PasswordHash, &user.Email, &online, &suspended, &suspendedUntil)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select user failed: %w", err)
	}

	user.Online = online == 1
	user.Suspended = suspended == 1
	if suspendedUntil > 0 {
		user.SuspendedUntil = time.Unix(suspendedUntil, 0)
	}
	return &user, nil
}

func (s *SQLiteStore) SetOnline(username string, online bool) error {
	flag := 0
	if online {
		flag = 1
	}
	res, err := s.db.Exec(`UPDATE users SET online = ? WHERE username = ?`, flag, username)
	if err != nil {
		return fmt.Errorf("update online flag failed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update online flag failed: %w", err)
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *SQLiteStore) SetSuspended(username string, until time.Time) error {
	res, err := s.db.Exec(
		`UPDATE users SET suspended = 1, suspended_until = ? WHERE username = ?`,
		until.Unix(), username,
	)
	if err != nil {
		return fmt.Errorf("update suspension failed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update suspension failed: %w", err)
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *SQLiteStore) ClearSuspension(username string) error {
	_, err := s.db.Exec(
		`UPDATE users SET suspended = 0, suspended_until = 0 WHERE username = ?`,
		username,
	)
	if err != nil {
		return fmt.Errorf("clear suspension failed: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListUsers() ([]UserPresence, error) {
	rows, err := s.db.Query(`SELECT username, online FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("list users failed: %w", err)
	}
	defer rows.Close()

	var users []UserPresence
	for rows.Next() {
		var user UserPresence
		var online int
		if err := rows.Scan(&user.Username, &online); err != nil {
			return nil, fmt.Errorf("scan user row failed: %w", err)
		}
		user.Online = online == 1
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users row error: %w", err)
	}
	return users, nil
}

func (s *SQLiteStore) Append(msg Message) error {
	_, err := s.db.Exec(
		`INSERT INTO messages (session_token, sender, receiver, encrypted_payload, encrypted_key, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		msg.SessionToken, msg.Sender, msg.Receiver,
		msg.EncryptedPayload, msg.EncryptedKey, msg.Timestamp.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert message failed: %w", err)
	}
	return nil
}

func (s *SQLiteStore) History(sessionToken string) ([]Message, error) {
	rows, err := s.db.Query(
		`SELECT session_token, sender, receiver, encrypted_payload, encrypted_key, timestamp
		 FROM messages WHERE session_token = ? ORDER BY timestamp ASC, id ASC`,
		sessionToken,
	)
	if err != nil {
		return nil, fmt.Errorf("select history failed: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var msg Message
		var ts int64
		err := rows.Scan(
			&msg.SessionToken, &msg.Sender, &msg.Receiver,
			&msg.EncryptedPayload, &msg.EncryptedKey, &ts,
		)
		if err != nil {
			return nil, fmt.Errorf("scan message row failed: %w", err)
		}
		msg.Timestamp = time.Unix(0, ts)
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history row error: %w", err)
	}
	return messages, nil
}
