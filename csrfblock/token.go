package csrfblock

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// GenerateToken returns a fresh token of n lowercase hex characters.
// The value is a truncated SHA-256 over random bytes, a process-unique UUID
// and the current nanosecond clock, so it is unguessable within a token's
// lifetime but carries no structure and cannot be reproduced across
// processes. n is clamped to 1..MaxTokenLength.
func GenerateToken(n int) string {
	if n <= 0 {
		n = DefaultTokenLength
	}
	if n > MaxTokenLength {
		n = MaxTokenLength
	}

	h := sha256.New()

	var seed [24]byte
	// crypto/rand does not fail on supported platforms; uuid.New below
	// would have panicked already if the entropy source were broken.
	rand.Read(seed[:])
	h.Write(seed[:])

	id := uuid.New()
	h.Write(id[:])

	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(time.Now().UnixNano()))
	h.Write(ts[:])

	return hex.EncodeToString(h.Sum(nil))[:n]
}
