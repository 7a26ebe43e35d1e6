package main

import (
	"testing"
)

// A stale connection closing must not tear down the session that replaced
// it: the fresh handle stays registered and the online flag survives.
func TestCleanupClientSkipsReplacedSession(t *testing.T) {
	env := newRelayTestEnv(t)
	env.mustCreateUser(t, "alice", strongPassword)
	if err := env.store.SetOnline("alice", true); err != nil {
		t.Fatalf("set online: %v", err)
	}

	stale := newTestClient()
	stale.Username = "alice"
	stale.IsAuthenticated = true
	fresh := newTestClient()
	fresh.Username = "alice"
	fresh.IsAuthenticated = true

	registerPresence("alice", stale)
	registerPresence("alice", fresh)

	cleanupClient(stale)

	if !isOnline("alice") {
		t.Fatal("expected fresh session to stay registered after stale cleanup")
	}
	if current, _ := lookupClient("alice"); current != fresh {
		t.Fatal("expected fresh handle to survive stale cleanup")
	}
	user, err := env.store.GetUser("alice")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if !user.Online {
		t.Fatal("expected online flag to survive stale cleanup")
	}

	// The owning session still tears everything down.
	cleanupClient(fresh)
	if isOnline("alice") {
		t.Fatal("expected alice to be unregistered after owning cleanup")
	}
	user, err = env.store.GetUser("alice")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if user.Online {
		t.Fatal("expected online flag cleared after owning cleanup")
	}
}

// Relaying with a token over a connection that never logged in still clears
// the token subject's limiter bucket on disconnect.
func TestCleanupClientClearsTokenSenderBucket(t *testing.T) {
	env := newRelayTestEnv(t)
	env.mustCreateUser(t, "alice", strongPassword)
	env.mustCreateUser(t, "bob", strongPassword)
	registerPresence("bob", newTestClient())

	sender := newTestClient()
	token := mustAuthToken(t, "alice")
	handleRelayMessage(sender, nil, relayRequestBytes(t, token, "bob", "ciphertext", "wrapped-key"))

	messageRateMu.Lock()
	_, tracked := messageRateBySender["alice"]
	messageRateMu.Unlock()
	if !tracked {
		t.Fatal("expected a limiter bucket for the token subject")
	}

	cleanupClient(sender)

	messageRateMu.Lock()
	_, tracked = messageRateBySender["alice"]
	messageRateMu.Unlock()
	if tracked {
		t.Fatal("expected the bucket to be cleared on disconnect")
	}
}
