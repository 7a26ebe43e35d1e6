package main

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"sort"
	"strings"
)

func sessionTokenSecret() []byte {
	secret := os.Getenv("SESSION_TOKEN_SECRET")
	if secret == "" {
		secret = os.Getenv("JWT_SECRET")
	}
	return []byte(secret)
}

// deriveSessionToken maps a participant set (and optional group name) to a
// stable conversation key. Participants are sorted first so the token is
// order-independent.
func deriveSessionToken(participants []string, groupName string) string {
	sorted := append([]string(nil), participants...)
	sort.Strings(sorted)

	material := strings.Join(sorted, "_")
	if groupName != "" {
		material = groupName + "_" + material
	}

	mac := hmac.New(sha256.New, sessionTokenSecret())
	mac.Write([]byte(material))
	return hex.EncodeToString(mac.Sum(nil))
}

// verifySessionToken recomputes the token and compares in constant time.
// Callers only learn whether the token matched, never why it did not.
func verifySessionToken(participants []string, groupName, token string) bool {
	expected := deriveSessionToken(participants, groupName)
	return hmac.Equal([]byte(expected), []byte(token))
}
