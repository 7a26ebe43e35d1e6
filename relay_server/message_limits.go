package main

import (
	"fmt"
	"sync"
	"time"
)

const (
	maxEncryptedPayloadBytes = 128 * 1024
	messageRateWindow        = time.Second
	messageRateMaxPerWindow  = 2
)

var (
	messageRateMu       sync.Mutex
	messageRateBySender = make(map[string][]time.Time)
)

// allowMessageSend applies the per-sender sliding window: at most two sends
// per rolling second. A rejected send records no event.
func allowMessageSend(sender string, now time.Time) bool {
	if sender == "" {
		return false
	}
	messageRateMu.Lock()
	defer messageRateMu.Unlock()

	windowStart := now.Add(-messageRateWindow)
	events := messageRateBySender[sender]
	trimmed := events[:0]
	for _, ts := range events {
		if ts.After(windowStart) {
			trimmed = append(trimmed, ts)
		}
	}
	if len(trimmed) >= messageRateMaxPerWindow {
		messageRateBySender[sender] = append([]time.Time(nil), trimmed...)
		return false
	}
	trimmed = append(trimmed, now)
	messageRateBySender[sender] = append([]time.Time(nil), trimmed...)
	return true
}

func clearMessageLimiter(sender string) {
	if sender == "" {
		return
	}
	messageRateMu.Lock()
	delete(messageRateBySender, sender)
	messageRateMu.Unlock()
}

func validatePayloadForRelay(encryptedMessage string) error {
	if encryptedMessage == "" {
		return fmt.Errorf("missing encrypted message")
	}
	if len(encryptedMessage) > maxEncryptedPayloadBytes {
		return fmt.Errorf("encrypted message exceeds %d bytes", maxEncryptedPayloadBytes)
	}
	return nil
}
