package main

import (
	"net/url"
	"regexp"
	"strings"
	"sync"
)

var (
	websocketOriginsMu      sync.RWMutex
	allowedWebSocketOrigins = map[string]struct{}{}
)

var (
	lowercasePattern  = regexp.MustCompile(`[a-z]`)
	uppercasePattern  = regexp.MustCompile(`[A-Z]`)
	digitPattern      = regexp.MustCompile(`\d`)
	whitespacePattern = regexp.MustCompile(`\s`)
	specialPattern    = regexp.MustCompile(`[$@!&_-]`)
)

// passwordRequirements returns the list of unmet strength rules, empty when
// the password is acceptable.
func passwordRequirements(password string) []string {
	var corrections []string

	if len(password) < 12 {
		corrections = append(corrections, "at least 12 characters")
	}
	if !lowercasePattern.MatchString(password) {
		corrections = append(corrections, "at least one lowercase letter")
	}
	if !uppercasePattern.MatchString(password) {
		corrections = append(corrections, "at least one uppercase letter")
	}
	if !digitPattern.MatchString(password) {
		corrections = append(corrections, "at least one digit")
	}
	if whitespacePattern.MatchString(password) {
		corrections = append(corrections, "no whitespace allowed")
	}
	if !specialPattern.MatchString(password) {
		corrections = append(corrections, "at least one special character")
	}

	return corrections
}

func defaultAllowedOrigins() []string {
	return []string{
		"http://localhost:5173",
		"http://127.0.0.1:5173",
		"http://localhost:8000",
		"http://127.0.0.1:8000",
	}
}

func parseAllowedOriginsFromEnv(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return defaultAllowedOrigins()
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		origin := strings.TrimSpace(part)
		if origin == "" {
			continue
		}
		out = append(out, origin)
	}
	if len(out) == 0 {
		return defaultAllowedOrigins()
	}
	return out
}

func normalizeOrigin(origin string) string {
	u, err := url.Parse(origin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Scheme + "://" + u.Host)
}

func setAllowedWebSocketOrigins(origins []string) {
	next := make(map[string]struct{}, len(origins))
	for _, origin := range origins {
		normalized := normalizeOrigin(origin)
		if normalized == "" {
			continue
		}
		next[normalized] = struct{}{}
	}
	websocketOriginsMu.Lock()
	allowedWebSocketOrigins = next
	websocketOriginsMu.Unlock()
}

func isWebSocketOriginAllowed(origin string) bool {
	// Non-browser clients send no Origin header at all.
	if origin == "" {
		return true
	}
	normalized := normalizeOrigin(origin)
	if normalized == "" {
		return false
	}
	websocketOriginsMu.RLock()
	_, ok := allowedWebSocketOrigins[normalized]
	websocketOriginsMu.RUnlock()
	return ok
}
