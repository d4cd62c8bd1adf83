package eventstore

import (
	"encoding/hex"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// newSessionID returns "sess_" followed by 12 hex characters derived
// from a cryptographically random uuid's bits, grounded on the
// teacher's ulid-based generateID but using a shorter, non-time-ordered
// id for sessions since sessions are looked up by id, not scanned in
// creation order.
func newSessionID() string {
	return "sess_" + randomHex(6)
}

// newEventID returns "evt_" followed by a ULID, so lexicographic sort
// approximates creation order while keeping ids collision-resistant.
func newEventID() string {
	return "evt_" + ulid.Make().String()
}

// newWorkspaceID follows the same shape as session ids.
func newWorkspaceID() string {
	return "ws_" + randomHex(6)
}

// randomHex returns n random bytes, hex-encoded, drawn from a uuid v4's
// random bits (uuid.NewRandom reads crypto/rand internally).
func randomHex(n int) string {
	id := uuid.New()
	return hex.EncodeToString(id[:n])
}
