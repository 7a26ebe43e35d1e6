package main

import (
	"sync"
	"time"

	"guardchat/store"
)

const (
	loginAttemptWindow = 300 * time.Second
	loginAttemptLimit  = 10
	suspensionDuration = 300 * time.Second
)

var (
	loginFailuresMu     sync.Mutex
	loginFailuresByUser = make(map[string][]time.Time)
)

// isLoginSuspended reports whether the account is still inside a lockout
// window. An expired suspension is cleared in the store before the current
// attempt is evaluated.
func isLoginSuspended(username string, now time.Time) (bool, error) {
	user, err := userStore.GetUser(username)
	if err != nil {
		if err == store.ErrUserNotFound {
			return false, nil
		}
		return false, err
	}
	if !user.Suspended {
		return false, nil
	}
	if now.Before(user.SuspendedUntil) {
		return true, nil
	}
	if err := userStore.ClearSuspension(username); err != nil {
		return false, err
	}
	return false, nil
}

// recordLoginFailure appends a failed attempt to the user's sliding window
// bucket. Hitting the attempt limit suspends the account; the caller must
// then close the connection. Successful logins do not reset the bucket,
// only the window prune removes old failures.
func recordLoginFailure(username string, now time.Time) (suspended bool, remaining int, err error) {
	loginFailuresMu.Lock()
	defer loginFailuresMu.Unlock()

	windowStart := now.Add(-loginAttemptWindow)
	failures := loginFailuresByUser[username]
	trimmed := failures[:0]
	for _, ts := range failures {
		if ts.After(windowStart) {
			trimmed = append(trimmed, ts)
		}
	}
	trimmed = append(trimmed, now)
	loginFailuresByUser[username] = append([]time.Time(nil), trimmed...)

	remaining = loginAttemptLimit - len(trimmed)
	if remaining < 0 {
		remaining = 0
	}

	if len(trimmed) >= loginAttemptLimit {
		if err := userStore.SetSuspended(username, now.Add(suspensionDuration)); err != nil {
			return false, remaining, err
		}
		return true, 0, nil
	}
	return false, remaining, nil
}
