package timeauth

import (
	"context"
	"errors"
	"time"
)

// ErrTimelockUnsupported is returned by authorities that cannot time-lock data.
var ErrTimelockUnsupported = errors.New("time authority does not support time-lock encryption")

// Authority is the external source of truth for the current time.
// Unlock eligibility is always evaluated against Authority.Now, never against
// a timestamp supplied by the caller.
//
// Authorities backed by a randomness beacon can also time-lock data to a round,
// so that it becomes decryptable only once that round is published.
type Authority interface {
	// Name identifies the authority in persisted records.
	Name() string

	// Now returns the authority's current time in UTC.
	Now(ctx context.Context) (time.Time, error)

	// RoundAt returns the first round published at or after t.
	RoundAt(t time.Time) (uint64, error)

	// TimeLockEncrypt encrypts data to targetRound and returns base64 ciphertext.
	TimeLockEncrypt(data []byte, targetRound uint64) (string, error)

	// TimeLockDecrypt decrypts base64 ciphertext produced by TimeLockEncrypt.
	// Fails while the target round is not yet published.
	TimeLockDecrypt(ctx context.Context, ciphertextB64 string) ([]byte, error)
}
