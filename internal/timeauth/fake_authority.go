package timeauth

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// FakeAuthority is a deterministic time authority for testing.
// It allows control over the current time, round calculation and failure simulation.
// Time-locked data is decryptable once Current reaches the round's time.
type FakeAuthority struct {
	// AuthorityName is the name returned by Name()
	AuthorityName string

	// Genesis and Period define the fake round schedule (default: unix 0, 1s)
	Genesis time.Time
	Period  time.Duration

	// NowError simulates clock failures
	NowError error

	// EncryptError simulates encryption failures
	EncryptError error

	// DecryptError simulates decryption failures
	DecryptError error

	mu      sync.Mutex
	current time.Time
}

// NewFakeAuthority returns a fake authority whose clock reads now.
func NewFakeAuthority(now time.Time) *FakeAuthority {
	return &FakeAuthority{current: now.UTC()}
}

func (f *FakeAuthority) Name() string {
	if f.AuthorityName == "" {
		return "fake"
	}
	return f.AuthorityName
}

func (f *FakeAuthority) Now(ctx context.Context) (time.Time, error) {
	if f.NowError != nil {
		return time.Time{}, f.NowError
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current, nil
}

// Set moves the clock to t.
func (f *FakeAuthority) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = t.UTC()
}

// Advance moves the clock forward by d.
func (f *FakeAuthority) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = f.current.Add(d)
}

func (f *FakeAuthority) period() time.Duration {
	if f.Period <= 0 {
		return time.Second
	}
	return f.Period
}

func (f *FakeAuthority) genesis() time.Time {
	if f.Genesis.IsZero() {
		return time.Unix(0, 0).UTC()
	}
	return f.Genesis
}

func (f *FakeAuthority) RoundAt(t time.Time) (uint64, error) {
	elapsed := t.Sub(f.genesis())
	if elapsed < 0 {
		return 0, fmt.Errorf("time is before fake genesis")
	}

	round := uint64(elapsed / f.period())
	if elapsed%f.period() != 0 {
		round++
	}
	return round, nil
}

func (f *FakeAuthority) TimeLockEncrypt(data []byte, targetRound uint64) (string, error) {
	if f.EncryptError != nil {
		return "", f.EncryptError
	}

	// Simple fake: round and base64 data with prefix
	return "FAKE_TLOCK:" + strconv.FormatUint(targetRound, 10) + ":" + base64.StdEncoding.EncodeToString(data), nil
}

func (f *FakeAuthority) TimeLockDecrypt(ctx context.Context, ciphertextB64 string) ([]byte, error) {
	if f.DecryptError != nil {
		return nil, f.DecryptError
	}

	rest, ok := strings.CutPrefix(ciphertextB64, "FAKE_TLOCK:")
	if !ok {
		return nil, fmt.Errorf("invalid fake tlock ciphertext")
	}

	roundStr, payload, ok := strings.Cut(rest, ":")
	if !ok {
		return nil, fmt.Errorf("invalid fake tlock ciphertext")
	}

	round, err := strconv.ParseUint(roundStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid fake tlock round: %w", err)
	}

	now, err := f.Now(ctx)
	if err != nil {
		return nil, err
	}

	if now.Before(f.genesis().Add(time.Duration(round) * f.period())) {
		return nil, fmt.Errorf("too early to decrypt: round %d not yet published", round)
	}

	return base64.StdEncoding.DecodeString(payload)
}
