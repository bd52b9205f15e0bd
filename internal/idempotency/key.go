package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HeaderName is the inbound header that carries an explicit delivery key.
const HeaderName = "Idempotency-Key"

// KeySource records where a delivery key came from.
type KeySource string

// Key sources, in order of preference. KeyNone means the delivery is not replayable.
const (
	KeyFromHeader  KeySource = "header"
	KeyFromEventID KeySource = "event_id"
	KeyNone        KeySource = ""
)

// DeriveKey returns a stable replay key and the source used.
// - Prefer the explicit header value.
// - Fall back to the payload's event.id when it is a non-empty string.
// Keys are hashed so arbitrary caller input maps to a fixed-length store key.
func DeriveKey(header string, payload map[string]any) (key string, src KeySource) {
	if h := strings.TrimSpace(header); h != "" {
		return hash(string(KeyFromHeader), h), KeyFromHeader
	}
	if event, ok := payload["event"].(map[string]any); ok {
		if id, ok := event["id"].(string); ok && strings.TrimSpace(id) != "" {
			return hash(string(KeyFromEventID), id), KeyFromEventID
		}
	}
	return "", KeyNone
}

func hash(source, value string) string {
	sum := sha256.Sum256([]byte(source + "|" + value))
	return hex.EncodeToString(sum[:])
}
