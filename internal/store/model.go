package store

import (
	"time"

	"aishi/internal/chain"
)

// TokenRecord is the persisted form of one token.
type TokenRecord struct {
	ID         uint64         `json:"id"`
	Owner      chain.Address  `json:"owner"`
	UnlockFrom time.Time      `json:"unlock_from"`
	Commitment chain.Hash     `json:"commitment"`
	Unlocked   bool           `json:"unlocked"`
	UnlockedAt time.Time      `json:"unlocked_at"`
	MintedAt   time.Time      `json:"minted_at"`
	Payload    *SealedPayload `json:"payload,omitempty"`
}

// SealedPayload is content attached at mint, readable only after unlock.
type SealedPayload struct {
	Algorithm     string `json:"algorithm"`
	Nonce         string `json:"nonce"`
	Ciphertext    []byte `json:"ciphertext"`
	KeyTlockB64   string `json:"key_tlock_b64"` // time-locked data key (base64)
	TargetRound   uint64 `json:"target_round"`
	TimeAuthority string `json:"time_authority"`
}

// State is the complete registry state.
type State struct {
	NextID uint64                     `json:"next_id"`
	Tokens []TokenRecord              `json:"tokens"`
	Roles  map[string][]chain.Address `json:"roles"`
}

// Change is one committed registry mutation.
type Change struct {
	NextID uint64
	// Tokens are upserted by ID.
	Tokens []TokenRecord
	// Roles replaces the role table when non-nil.
	Roles map[string][]chain.Address
}
