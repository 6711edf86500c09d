package engine

import "github.com/google/uuid"

// IDGenerator produces check ids for registered conditions. Ids appear
// in logs and the audit trace; they are not score ids.
// Implemented by UUIDv7Generator (production) and
// testutil.SeqIDGenerator (deterministic tests).
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 check ids.
//
// UUIDv7 embeds a timestamp in the most significant bits, so ids sort
// by registration time, which keeps audit-trace queries readable.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 as a hyphenated string.
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
