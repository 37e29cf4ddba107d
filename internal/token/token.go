// Package token implements the lockable token registry: tokens minted with a
// commitment and an unlock-eligible time, which anyone can later unlock by
// presenting the committed value once the time authority says the moment has
// passed.
package token

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"aishi/internal/chain"
	"aishi/internal/store"
)

// DefaultBaseURI is the metadata location token URIs build on.
const DefaultBaseURI = "https://aisthisi.art/metadata"

// LockState is a token's lock: Locked until Unlocked is set, never back.
type LockState struct {
	UnlockFrom time.Time  `json:"unlock_from"`
	Commitment chain.Hash `json:"commitment"`
	Unlocked   bool       `json:"unlocked"`
	UnlockedAt time.Time  `json:"unlocked_at,omitzero"`
}

// Token is a read-only view of one registry entry.
type Token struct {
	ID         uint64        `json:"id"`
	Owner      chain.Address `json:"owner"`
	MintedAt   time.Time     `json:"minted_at"`
	URI        string        `json:"uri"`
	HasPayload bool          `json:"has_payload"`
	LockState
}

// Status returns "unlocked" or "locked".
func (t Token) Status() string {
	if t.Unlocked {
		return "unlocked"
	}
	return "locked"
}

func newToken(rec *store.TokenRecord, baseURI string) Token {
	return Token{
		ID:         rec.ID,
		Owner:      rec.Owner,
		MintedAt:   rec.MintedAt,
		URI:        buildURI(baseURI, rec.ID),
		HasPayload: rec.Payload != nil,
		LockState: LockState{
			UnlockFrom: rec.UnlockFrom,
			Commitment: rec.Commitment,
			Unlocked:   rec.Unlocked,
			UnlockedAt: rec.UnlockedAt,
		},
	}
}

func buildURI(base string, id uint64) string {
	return strings.TrimRight(base, "/") + "/" + strconv.FormatUint(id, 10) + ".json"
}

// ParseUnlockTime accepts an RFC3339 timestamp or integer Unix seconds and
// returns it in UTC. Past times are valid: such tokens are unlockable at once.
func ParseUnlockTime(s string) (time.Time, error) {
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}

	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q, expected RFC3339 or Unix seconds", s)
	}
	return t.UTC(), nil
}

// ParseTokenID parses a decimal token ID.
func ParseTokenID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid token id %q", s)
	}
	return id, nil
}
