package main

import (
	"strings"
	"testing"
	"time"
)

func TestAllowMessageSendSlidingWindow(t *testing.T) {
	newRelayTestEnv(t)
	now := time.Now().UTC()

	if !allowMessageSend("alice", now) {
		t.Fatal("expected first send to be allowed")
	}
	if !allowMessageSend("alice", now.Add(100*time.Millisecond)) {
		t.Fatal("expected second send to be allowed")
	}
	if allowMessageSend("alice", now.Add(200*time.Millisecond)) {
		t.Fatal("expected third send within one second to be rejected")
	}

	// The rejected send recorded no event, so one slot frees up as soon as
	// the first timestamp leaves the window.
	if !allowMessageSend("alice", now.Add(1100*time.Millisecond)) {
		t.Fatal("expected send to be allowed after the window slid past the first event")
	}
}

func TestAllowMessageSendPerSender(t *testing.T) {
	newRelayTestEnv(t)
	now := time.Now().UTC()

	if !allowMessageSend("alice", now) || !allowMessageSend("alice", now) {
		t.Fatal("expected alice's first two sends to be allowed")
	}
	if allowMessageSend("alice", now) {
		t.Fatal("expected alice's third send to be rejected")
	}
	if !allowMessageSend("bob", now) {
		t.Fatal("expected bob's bucket to be independent of alice's")
	}
}

func TestAllowMessageSendEmptySender(t *testing.T) {
	newRelayTestEnv(t)
	if allowMessageSend("", time.Now().UTC()) {
		t.Fatal("expected empty sender to be rejected")
	}
}

func TestClearMessageLimiter(t *testing.T) {
	newRelayTestEnv(t)
	now := time.Now().UTC()

	allowMessageSend("alice", now)
	allowMessageSend("alice", now)
	if allowMessageSend("alice", now) {
		t.Fatal("expected bucket to be full")
	}

	clearMessageLimiter("alice")
	if !allowMessageSend("alice", now) {
		t.Fatal("expected cleared bucket to accept sends again")
	}
}

func TestValidatePayloadForRelay(t *testing.T) {
	if err := validatePayloadForRelay("ciphertext"); err != nil {
		t.Fatalf("expected small payload to pass, got %v", err)
	}
	if err := validatePayloadForRelay(""); err == nil {
		t.Fatal("expected empty payload to be rejected")
	}
	oversized := strings.Repeat("a", maxEncryptedPayloadBytes+1)
	if err := validatePayloadForRelay(oversized); err == nil {
		t.Fatal("expected oversized payload to be rejected")
	}
}
