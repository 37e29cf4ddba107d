package token

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"aishi/internal/chain"
	"aishi/internal/events"
	"aishi/internal/ledger"
	"aishi/internal/metrics"
	"aishi/internal/store"
	"aishi/internal/timeauth"
)

// Registry is the lockable token registry. All methods are safe for
// concurrent use; mutations are totally ordered by one mutex.
//
// Every mutation is persisted before it becomes visible: the in-memory state
// is only updated after the store accepts the change, so a store failure
// leaves the registry exactly as it was. Events are published after commit.
type Registry struct {
	mu      sync.Mutex
	nextID  uint64
	records map[uint64]*store.TokenRecord
	ledger  *ledger.Ledger
	roles   *ledger.Roles

	authority timeauth.Authority
	store     store.Store
	sink      events.Sink
	metrics   *metrics.TokenMetrics
	logger    *zap.Logger
	baseURI   string
}

// Option configures a Registry.
type Option func(*Registry)

func WithStore(s store.Store) Option {
	return func(r *Registry) { r.store = s }
}

func WithSink(s events.Sink) Option {
	return func(r *Registry) { r.sink = s }
}

func WithMetrics(m *metrics.TokenMetrics) Option {
	return func(r *Registry) { r.metrics = m }
}

func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// WithBaseURI sets the prefix of token URIs.
func WithBaseURI(uri string) Option {
	return func(r *Registry) { r.baseURI = uri }
}

// Open loads the registry from its store. When the store holds no roles yet,
// admin becomes the genesis account with both admin and minter roles.
func Open(ctx context.Context, authority timeauth.Authority, admin chain.Address, opts ...Option) (*Registry, error) {
	if authority == nil {
		return nil, errors.New("token: time authority is required")
	}

	r := &Registry{
		records:   make(map[uint64]*store.TokenRecord),
		ledger:    ledger.New(),
		roles:     ledger.NewRoles(),
		authority: authority,
		baseURI:   DefaultBaseURI,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.store == nil {
		r.store = store.NewMemoryStore()
	}
	if r.sink == nil {
		r.sink = events.Nop{}
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}

	st, err := r.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("token: load state: %w", err)
	}
	if err := r.restore(st); err != nil {
		return nil, fmt.Errorf("token: restore state: %w", err)
	}

	if len(st.Roles) == 0 && !admin.IsZero() {
		if err := r.bootstrap(ctx, admin); err != nil {
			return nil, err
		}
	}

	locked := 0
	for _, rec := range r.records {
		if !rec.Unlocked {
			locked++
		}
	}
	r.metrics.SetLocked(locked)

	r.logger.Info("token registry opened",
		zap.Int("tokens", len(r.records)),
		zap.Uint64("next_id", r.nextID),
		zap.String("time_authority", authority.Name()),
	)
	return r, nil
}

func (r *Registry) restore(st *store.State) error {
	owners := make(map[uint64]chain.Address, len(st.Tokens))
	for i := range st.Tokens {
		rec := st.Tokens[i]
		if err := validateRecord(&rec); err != nil {
			return err
		}
		r.records[rec.ID] = &rec
		owners[rec.ID] = rec.Owner
	}
	if err := r.ledger.Restore(owners); err != nil {
		return err
	}

	snapshot := make(map[ledger.Role][]chain.Address, len(st.Roles))
	for role, members := range st.Roles {
		snapshot[ledger.Role(role)] = members
	}
	if err := r.roles.Restore(snapshot); err != nil {
		return err
	}

	r.nextID = st.NextID
	return nil
}

func (r *Registry) bootstrap(ctx context.Context, admin chain.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := ledger.NewRoles()
	if err := next.Grant(ledger.RoleAdmin, admin); err != nil {
		return err
	}
	if err := next.Grant(ledger.RoleMinter, admin); err != nil {
		return err
	}
	if err := r.commitRoles(ctx, next); err != nil {
		return fmt.Errorf("token: bootstrap roles: %w", err)
	}

	r.logger.Info("genesis admin granted", zap.String("admin", admin.String()))
	return nil
}

// Close closes the underlying store.
func (r *Registry) Close() error {
	return r.store.Close()
}

// Authority returns the registry's time authority.
func (r *Registry) Authority() timeauth.Authority {
	return r.authority
}

// MintOption configures a single mint.
type MintOption func(*mintParams)

type mintParams struct {
	payload []byte
}

// WithPayload attaches content that can only be read after the token is
// unlocked. Requires a time authority that supports time-lock encryption.
func WithPayload(data []byte) MintOption {
	return func(p *mintParams) { p.payload = data }
}

// MintToken creates a locked token owned by recipient and returns its ID.
// Only holders of the minter role may mint.
func (r *Registry) MintToken(ctx context.Context, caller, recipient chain.Address, unlockFrom time.Time, commitment chain.Hash, opts ...MintOption) (uint64, error) {
	var params mintParams
	for _, opt := range opts {
		opt(&params)
	}

	r.mu.Lock()
	err := r.checkMint(caller, recipient, commitment)
	r.mu.Unlock()
	if err != nil {
		r.logger.Debug("mint rejected", zap.String("caller", caller.String()), zap.Error(err))
		return 0, err
	}

	unlockFrom = unlockFrom.UTC()

	now, err := r.authority.Now(ctx)
	if err != nil {
		return 0, fmt.Errorf("time authority unavailable: %w", err)
	}

	var payload *store.SealedPayload
	if params.payload != nil {
		payload, err = sealPayload(r.authority, unlockFrom, params.payload)
		if err != nil {
			return 0, err
		}
	}

	r.mu.Lock()
	// Roles may have changed while the payload was sealed.
	if err := r.checkMint(caller, recipient, commitment); err != nil {
		r.mu.Unlock()
		return 0, err
	}

	id := r.nextID
	rec := store.TokenRecord{
		ID:         id,
		Owner:      recipient,
		UnlockFrom: unlockFrom,
		Commitment: commitment,
		MintedAt:   now,
		Payload:    payload,
	}

	if err := r.store.Apply(ctx, store.Change{NextID: id + 1, Tokens: []store.TokenRecord{rec}}); err != nil {
		r.mu.Unlock()
		return 0, fmt.Errorf("persist mint of token %d: %w", id, err)
	}

	if err := r.ledger.Mint(recipient, id); err != nil {
		// checkMint and nextID make this unreachable
		r.mu.Unlock()
		return 0, err
	}
	r.records[id] = &rec
	r.nextID = id + 1
	r.mu.Unlock()

	r.metrics.Minted()
	r.logger.Info("token minted",
		zap.Uint64("token_id", id),
		zap.String("owner", recipient.String()),
		zap.Time("unlock_from", unlockFrom),
		zap.Bool("payload", payload != nil),
	)
	r.publish(ctx, events.NewTransfer(id, chain.ZeroAddress, recipient, now))

	return id, nil
}

func (r *Registry) checkMint(caller, recipient chain.Address, commitment chain.Hash) error {
	if !r.roles.Has(ledger.RoleMinter, caller) {
		return fmt.Errorf("mint by %s: %w", caller, ErrUnauthorized)
	}
	if recipient.IsZero() {
		return ErrInvalidRecipient
	}
	if commitment.IsZero() {
		return ErrInvalidCommitment
	}
	return nil
}

// UnlockToken unlocks token id if candidate equals its commitment and the
// authority's current time is at or after the unlock-eligible time. Any
// caller may unlock; knowledge of the value is the only authorization.
//
// Failures are reported in order: ErrNotFound, ErrAlreadyUnlocked,
// ErrNotYetEligible, ErrMismatch.
func (r *Registry) UnlockToken(ctx context.Context, caller chain.Address, candidate chain.Hash, id uint64) error {
	// Fail fast without consulting the authority.
	r.mu.Lock()
	_, err := r.unlockable(id)
	r.mu.Unlock()
	if err != nil {
		r.rejectUnlock(caller, id, err)
		return err
	}

	now, err := r.authority.Now(ctx)
	if err != nil {
		r.metrics.Unlock(metrics.ResultError)
		return fmt.Errorf("time authority unavailable: %w", err)
	}

	r.mu.Lock()
	rec, err := r.unlockable(id)
	if err == nil && now.Before(rec.UnlockFrom) {
		err = fmt.Errorf("token %d unlocks at %s, now %s: %w",
			id, rec.UnlockFrom.Format(time.RFC3339), now.Format(time.RFC3339), ErrNotYetEligible)
	}
	if err == nil && !candidate.Equal(rec.Commitment) {
		err = fmt.Errorf("token %d: %w", id, ErrMismatch)
	}
	if err != nil {
		r.mu.Unlock()
		r.rejectUnlock(caller, id, err)
		return err
	}

	next := *rec
	next.Unlocked = true
	next.UnlockedAt = now

	if err := r.store.Apply(ctx, store.Change{NextID: r.nextID, Tokens: []store.TokenRecord{next}}); err != nil {
		r.mu.Unlock()
		r.metrics.Unlock(metrics.ResultError)
		return fmt.Errorf("persist unlock of token %d: %w", id, err)
	}
	r.records[id] = &next
	owner := next.Owner
	r.mu.Unlock()

	r.metrics.Unlock(metrics.ResultUnlocked)
	r.logger.Info("token unlocked",
		zap.Uint64("token_id", id),
		zap.String("caller", caller.String()),
		zap.String("owner", owner.String()),
	)
	r.publish(ctx, events.NewTokenUnlocked(id, owner, now))

	return nil
}

// unlockable returns the record for id if it exists and is still locked.
// Caller holds r.mu.
func (r *Registry) unlockable(id uint64) (*store.TokenRecord, error) {
	rec, ok := r.records[id]
	if !ok {
		return nil, fmt.Errorf("token %d: %w", id, ErrNotFound)
	}
	if rec.Unlocked {
		return nil, fmt.Errorf("token %d: %w", id, ErrAlreadyUnlocked)
	}
	return rec, nil
}

func (r *Registry) rejectUnlock(caller chain.Address, id uint64, err error) {
	result := metrics.ResultError
	switch {
	case errors.Is(err, ErrNotFound):
		result = metrics.ResultNotFound
	case errors.Is(err, ErrAlreadyUnlocked):
		result = metrics.ResultAlreadyUnlocked
	case errors.Is(err, ErrNotYetEligible):
		result = metrics.ResultNotYetEligible
	case errors.Is(err, ErrMismatch):
		result = metrics.ResultMismatch
	}
	r.metrics.Unlock(result)
	r.logger.Debug("unlock rejected",
		zap.Uint64("token_id", id),
		zap.String("caller", caller.String()),
		zap.String("result", result),
	)
}

// TokenUnlocked reports whether token id has been unlocked.
func (r *Registry) TokenUnlocked(id uint64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return false, fmt.Errorf("token %d: %w", id, ErrNotFound)
	}
	return rec.Unlocked, nil
}

// TokenURI returns "<base>/<id>.json" for an existing token.
func (r *Registry) TokenURI(id uint64) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[id]; !ok {
		return "", fmt.Errorf("token %d: %w", id, ErrNotFound)
	}
	return buildURI(r.baseURI, id), nil
}

// BalanceOf returns the number of tokens addr holds.
func (r *Registry) BalanceOf(addr chain.Address) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, err := r.ledger.BalanceOf(addr)
	if errors.Is(err, ledger.ErrZeroAddress) {
		return 0, fmt.Errorf("balance query: %w", ErrInvalidRecipient)
	}
	return n, err
}

// OwnerOf returns the current holder of token id.
func (r *Registry) OwnerOf(id uint64) (chain.Address, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	owner, err := r.ledger.OwnerOf(id)
	if errors.Is(err, ledger.ErrNonexistentToken) {
		return chain.ZeroAddress, fmt.Errorf("token %d: %w", id, ErrNotFound)
	}
	return owner, err
}

// Token returns a snapshot of token id.
func (r *Registry) Token(id uint64) (Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return Token{}, fmt.Errorf("token %d: %w", id, ErrNotFound)
	}
	return newToken(rec, r.baseURI), nil
}

// Tokens returns a snapshot of every token ordered by ID.
func (r *Registry) Tokens() []Token {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Token, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, newToken(rec, r.baseURI))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// TotalSupply returns the number of minted tokens.
func (r *Registry) TotalSupply() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ledger.TotalSupply()
}

// TransferFrom moves token id from its owner to another holder. The caller
// must be the owner; lock state does not affect transferability.
func (r *Registry) TransferFrom(ctx context.Context, caller, from, to chain.Address, id uint64) error {
	r.mu.Lock()

	rec, ok := r.records[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("token %d: %w", id, ErrNotFound)
	}
	if caller != from {
		r.mu.Unlock()
		return fmt.Errorf("transfer of token %d by %s: %w", id, caller, ErrUnauthorized)
	}
	if rec.Owner != from {
		r.mu.Unlock()
		return fmt.Errorf("token %d: %w", id, ledger.ErrNotOwner)
	}
	if to.IsZero() {
		r.mu.Unlock()
		return ErrInvalidRecipient
	}

	next := *rec
	next.Owner = to

	if err := r.store.Apply(ctx, store.Change{NextID: r.nextID, Tokens: []store.TokenRecord{next}}); err != nil {
		r.mu.Unlock()
		return fmt.Errorf("persist transfer of token %d: %w", id, err)
	}
	if err := r.ledger.Transfer(from, to, id); err != nil {
		r.mu.Unlock()
		return err
	}
	r.records[id] = &next
	r.mu.Unlock()

	now, err := r.authority.Now(ctx)
	if err != nil {
		now = time.Now().UTC()
	}

	r.metrics.Transferred()
	r.logger.Info("token transferred",
		zap.Uint64("token_id", id),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
	)
	r.publish(ctx, events.NewTransfer(id, from, to, now))
	return nil
}

// GrantMinter gives account the minter role. Only admins may grant.
func (r *Registry) GrantMinter(ctx context.Context, caller, account chain.Address) error {
	return r.updateRoles(ctx, caller, func(next *ledger.Roles) error {
		if err := next.Grant(ledger.RoleMinter, account); err != nil {
			return fmt.Errorf("grant minter: %w", ErrInvalidRecipient)
		}
		return nil
	})
}

// RevokeMinter removes the minter role from account. Only admins may revoke.
func (r *Registry) RevokeMinter(ctx context.Context, caller, account chain.Address) error {
	return r.updateRoles(ctx, caller, func(next *ledger.Roles) error {
		next.Revoke(ledger.RoleMinter, account)
		return nil
	})
}

// IsMinter reports whether account holds the minter role.
func (r *Registry) IsMinter(account chain.Address) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.roles.Has(ledger.RoleMinter, account)
}

// Minters lists minter role holders.
func (r *Registry) Minters() []chain.Address {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.roles.Members(ledger.RoleMinter)
}

func (r *Registry) updateRoles(ctx context.Context, caller chain.Address, mutate func(*ledger.Roles) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.roles.Has(ledger.RoleAdmin, caller) {
		return fmt.Errorf("role change by %s: %w", caller, ErrUnauthorized)
	}

	next := ledger.NewRoles()
	if err := next.Restore(r.roles.Snapshot()); err != nil {
		return err
	}
	if err := mutate(next); err != nil {
		return err
	}
	if err := r.commitRoles(ctx, next); err != nil {
		return fmt.Errorf("persist roles: %w", err)
	}

	r.logger.Info("roles updated",
		zap.String("caller", caller.String()),
		zap.Int("minters", len(next.Members(ledger.RoleMinter))),
	)
	return nil
}

// commitRoles persists next and swaps it in. Caller holds r.mu.
func (r *Registry) commitRoles(ctx context.Context, next *ledger.Roles) error {
	roles := make(map[string][]chain.Address)
	for role, members := range next.Snapshot() {
		roles[string(role)] = members
	}
	if err := r.store.Apply(ctx, store.Change{NextID: r.nextID, Roles: roles}); err != nil {
		return err
	}
	r.roles = next
	return nil
}

// RevealPayload decrypts the content sealed into token id at mint. It fails
// with ErrLocked until the token is unlocked, and the time authority must
// also be able to release the data key.
func (r *Registry) RevealPayload(ctx context.Context, id uint64) ([]byte, error) {
	r.mu.Lock()
	rec, ok := r.records[id]
	if !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("token %d: %w", id, ErrNotFound)
	}
	if rec.Payload == nil {
		r.mu.Unlock()
		return nil, fmt.Errorf("token %d: %w", id, ErrNoPayload)
	}
	if !rec.Unlocked {
		r.mu.Unlock()
		return nil, fmt.Errorf("token %d: %w", id, ErrLocked)
	}
	payload := *rec.Payload
	r.mu.Unlock()

	plaintext, err := openPayload(ctx, r.authority, &payload)
	if err != nil {
		return nil, fmt.Errorf("token %d: %w", id, err)
	}
	return plaintext, nil
}

// publish delivers ev to the sink. The operation has already committed, so
// a sink failure is logged and not returned.
func (r *Registry) publish(ctx context.Context, ev events.Event) {
	if err := r.sink.Publish(ctx, ev); err != nil {
		r.logger.Warn("event delivery failed",
			zap.String("event", ev.Name),
			zap.Uint64("token_id", ev.TokenID),
			zap.Error(err),
		)
	}
}
