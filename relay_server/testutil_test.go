package main

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"guardchat/store"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"golang.org/x/crypto/bcrypt"
)

const testReadTimeout = 3 * time.Second

type relayTestEnv struct {
	store  *store.MemoryStore
	server *httptest.Server
}

// newRelayTestEnv swaps the package-level stores and runtime maps for fresh
// ones and restores the previous state on cleanup, so tests never leak
// presence or limiter buckets into each other.
func newRelayTestEnv(t *testing.T) *relayTestEnv {
	t.Helper()

	gin.SetMode(gin.TestMode)
	t.Setenv("JWT_SECRET", "relay-test-jwt-secret")
	t.Setenv("SESSION_TOKEN_SECRET", "relay-test-session-secret")

	memStore := store.NewMemoryStore()
	prevUserStore := userStore
	prevMessageStore := messageStore
	userStore = memStore
	messageStore = memStore

	prevMessagingEnabled := relayMessagingEnabled
	relayMessagingEnabled = true

	onlineClientsMu.Lock()
	prevOnline := onlineClients
	onlineClients = map[string]*Client{}
	onlineClientsMu.Unlock()

	loginFailuresMu.Lock()
	prevFailures := loginFailuresByUser
	loginFailuresByUser = make(map[string][]time.Time)
	loginFailuresMu.Unlock()

	messageRateMu.Lock()
	prevRates := messageRateBySender
	messageRateBySender = make(map[string][]time.Time)
	messageRateMu.Unlock()

	t.Cleanup(func() {
		userStore = prevUserStore
		messageStore = prevMessageStore
		relayMessagingEnabled = prevMessagingEnabled

		onlineClientsMu.Lock()
		onlineClients = prevOnline
		onlineClientsMu.Unlock()

		loginFailuresMu.Lock()
		loginFailuresByUser = prevFailures
		loginFailuresMu.Unlock()

		messageRateMu.Lock()
		messageRateBySender = prevRates
		messageRateMu.Unlock()
	})

	return &relayTestEnv{store: memStore}
}

func newRelayServerEnv(t *testing.T) *relayTestEnv {
	t.Helper()
	env := newRelayTestEnv(t)

	r := gin.New()
	r.GET("/ws", HandleSocket)
	r.POST("/api/signup", HandleAPISignup)
	r.POST("/api/login", HandleAPILogin)
	env.server = httptest.NewServer(r)
	t.Cleanup(func() {
		env.server.CloseClientConnections()
		env.server.Close()
		time.Sleep(20 * time.Millisecond)
	})
	return env
}

func (e *relayTestEnv) mustCreateUser(t *testing.T, username, password string) {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if err := e.store.CreateUser(username, string(hashed), ""); err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
}

func (e *relayTestEnv) wsURL() string {
	return "ws" + strings.TrimPrefix(e.server.URL, "http") + "/ws"
}

func (e *relayTestEnv) dialWS(t *testing.T) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(e.wsURL(), nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func mustWriteJSON(t *testing.T, conn *websocket.Conn, msg interface{}) {
	t.Helper()
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write message: %v", err)
	}
}

func readRecord(t *testing.T, conn *websocket.Conn, timeout time.Duration) map[string]interface{} {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	_, msgBytes, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read message: %v", err)
	}
	var record map[string]interface{}
	if err := json.Unmarshal(msgBytes, &record); err != nil {
		t.Fatalf("decode message %q: %v", msgBytes, err)
	}
	return record
}

// readRecordAllowError reads one record but surfaces transport errors to
// the caller instead of failing the test, for asserting forced closes.
func readRecordAllowError(conn *websocket.Conn) (map[string]interface{}, error) {
	_ = conn.SetReadDeadline(time.Now().Add(testReadTimeout))
	_, msgBytes, err := conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	var record map[string]interface{}
	if err := json.Unmarshal(msgBytes, &record); err != nil {
		return nil, err
	}
	return record, nil
}

// mustReadMatching reads records until one satisfies the predicate,
// skipping interleaved broadcasts such as user_list snapshots.
func mustReadMatching(t *testing.T, conn *websocket.Conn, what string, match func(map[string]interface{}) bool) map[string]interface{} {
	t.Helper()
	deadline := time.Now().Add(testReadTimeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			t.Fatalf("timed out waiting for %s", what)
		}
		record := readRecord(t, conn, remaining)
		if match(record) {
			return record
		}
	}
}

func hasKey(key string) func(map[string]interface{}) bool {
	return func(record map[string]interface{}) bool {
		_, ok := record[key]
		return ok
	}
}

func hasAction(action string) func(map[string]interface{}) bool {
	return func(record map[string]interface{}) bool {
		got, _ := record["action"].(string)
		return got == action
	}
}

func (e *relayTestEnv) loginWS(t *testing.T, conn *websocket.Conn, username, password string) string {
	t.Helper()
	mustWriteJSON(t, conn, map[string]string{
		"action":   "login",
		"username": username,
		"password": password,
	})
	record := mustReadMatching(t, conn, "login response", func(r map[string]interface{}) bool {
		_, hasUser := r["user"]
		_, hasErr := r["error"]
		return hasUser || hasErr
	})
	if errPayload, ok := record["error"]; ok {
		t.Fatalf("login %s failed: %v", username, errPayload)
	}
	token, _ := record["token"].(string)
	if token == "" {
		t.Fatalf("login %s returned no token", username)
	}
	return token
}
