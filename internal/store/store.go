// Package store persists registry state. Every Apply is all-or-nothing from
// the registry's point of view: a failed Apply leaves the previous state
// readable by Load.
package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"aishi/internal/chain"
)

// Store is a persistence backend for the token registry.
type Store interface {
	// Load returns the persisted state, or an empty state if none exists.
	Load(ctx context.Context) (*State, error)

	// Apply persists a change.
	Apply(ctx context.Context, change Change) error

	Close() error
}

// Config selects a backend.
type Config struct {
	Backend string `koanf:"backend"`
	Dir     string `koanf:"dir"`
}

// Open builds the backend named by cfg.Backend (memory, file or badger).
func Open(cfg Config, logger *zap.Logger) (Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case "memory":
		return NewMemoryStore(), nil
	case "", "file":
		return NewFileStore(cfg.Dir)
	case "badger":
		return NewBadgerStore(cfg.Dir, logger)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// MemoryStore keeps state in process memory.
type MemoryStore struct {
	mu     sync.Mutex
	nextID uint64
	tokens map[uint64]TokenRecord
	roles  map[string][]chain.Address

	// FailApply makes Apply return this error, for testing rollback.
	FailApply error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tokens: make(map[uint64]TokenRecord),
		roles:  make(map[string][]chain.Address),
	}
}

func (m *MemoryStore) Load(ctx context.Context) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := &State{
		NextID: m.nextID,
		Roles:  copyRoles(m.roles),
	}
	for _, rec := range m.tokens {
		st.Tokens = append(st.Tokens, rec)
	}
	normalize(st)
	return st, nil
}

func (m *MemoryStore) Apply(ctx context.Context, change Change) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailApply != nil {
		return m.FailApply
	}

	m.nextID = change.NextID
	for _, rec := range change.Tokens {
		m.tokens[rec.ID] = rec
	}
	if change.Roles != nil {
		m.roles = copyRoles(change.Roles)
	}
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}

func copyRoles(in map[string][]chain.Address) map[string][]chain.Address {
	out := make(map[string][]chain.Address, len(in))
	for role, members := range in {
		out[role] = append([]chain.Address(nil), members...)
	}
	return out
}

func sortTokens(tokens []TokenRecord) {
	sort.Slice(tokens, func(i, j int) bool {
		return tokens[i].ID < tokens[j].ID
	})
}

// normalize repairs NextID after a partial write: it is never below the
// highest stored ID plus one.
func normalize(st *State) {
	sortTokens(st.Tokens)
	if n := len(st.Tokens); n > 0 && st.NextID <= st.Tokens[n-1].ID {
		st.NextID = st.Tokens[n-1].ID + 1
	}
	if st.Roles == nil {
		st.Roles = make(map[string][]chain.Address)
	}
}
