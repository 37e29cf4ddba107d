package timeauth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

// TestAuthorityContract_Name verifies that all authorities return a non-empty name
func TestAuthorityContract_Name(t *testing.T) {
	authorities := []Authority{
		&SystemAuthority{},
		&FakeAuthority{AuthorityName: "test-fake"},
		newTestDrandAuthority(1),
	}

	for _, auth := range authorities {
		t.Run(auth.Name(), func(t *testing.T) {
			if auth.Name() == "" {
				t.Error("Name() should not return empty string")
			}
		})
	}
}

// TestAuthorityContract_NowIsUTC verifies that all authorities report UTC time
func TestAuthorityContract_NowIsUTC(t *testing.T) {
	ctx := context.Background()
	local := time.FixedZone("TEST", 5*60*60)

	authorities := map[string]Authority{
		"system": &SystemAuthority{},
		"fake":   NewFakeAuthority(time.Now().In(local)),
		"drand":  newTestDrandAuthority(1000),
	}

	for name, auth := range authorities {
		t.Run(name, func(t *testing.T) {
			now, err := auth.Now(ctx)
			if err != nil {
				t.Fatalf("Now failed: %v", err)
			}
			if now.Location() != time.UTC {
				t.Errorf("expected UTC, got %v", now.Location())
			}
		})
	}
}

func TestSystemAuthority_Now(t *testing.T) {
	before := time.Now().UTC()
	now, err := (&SystemAuthority{}).Now(context.Background())
	if err != nil {
		t.Fatalf("Now failed: %v", err)
	}
	after := time.Now().UTC()

	if now.Before(before) || now.After(after) {
		t.Errorf("Now = %v, want between %v and %v", now, before, after)
	}
}

func TestSystemAuthority_Clock(t *testing.T) {
	fixed := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	auth := &SystemAuthority{Clock: func() time.Time { return fixed }}

	now, err := auth.Now(context.Background())
	if err != nil {
		t.Fatalf("Now failed: %v", err)
	}
	if !now.Equal(fixed) {
		t.Errorf("Now = %v, want %v", now, fixed)
	}
}

func TestSystemAuthority_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := (&SystemAuthority{}).Now(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestSystemAuthority_NoTimelock(t *testing.T) {
	auth := &SystemAuthority{}

	if _, err := auth.TimeLockEncrypt([]byte("x"), 1); !errors.Is(err, ErrTimelockUnsupported) {
		t.Errorf("expected ErrTimelockUnsupported, got %v", err)
	}
	if _, err := auth.TimeLockDecrypt(context.Background(), "x"); !errors.Is(err, ErrTimelockUnsupported) {
		t.Errorf("expected ErrTimelockUnsupported, got %v", err)
	}
}

func TestFakeAuthority_SetAndAdvance(t *testing.T) {
	start := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	fake := NewFakeAuthority(start)

	fake.Advance(8 * time.Second)
	now, _ := fake.Now(context.Background())
	if !now.Equal(start.Add(8 * time.Second)) {
		t.Errorf("Now after Advance = %v", now)
	}

	fake.Set(start)
	now, _ = fake.Now(context.Background())
	if !now.Equal(start) {
		t.Errorf("Now after Set = %v", now)
	}
}

func TestFakeAuthority_NowError(t *testing.T) {
	boom := errors.New("clock unavailable")
	fake := &FakeAuthority{NowError: boom}

	if _, err := fake.Now(context.Background()); !errors.Is(err, boom) {
		t.Errorf("expected injected error, got %v", err)
	}
}

func TestFakeAuthority_TimeLock_GatedByRound(t *testing.T) {
	start := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	fake := NewFakeAuthority(start)

	round, err := fake.RoundAt(start.Add(10 * time.Second))
	if err != nil {
		t.Fatalf("RoundAt failed: %v", err)
	}

	ct, err := fake.TimeLockEncrypt([]byte("payload-key"), round)
	if err != nil {
		t.Fatalf("TimeLockEncrypt failed: %v", err)
	}

	_, err = fake.TimeLockDecrypt(context.Background(), ct)
	if err == nil || !strings.Contains(err.Error(), "too early") {
		t.Fatalf("expected too early error, got %v", err)
	}

	fake.Advance(10 * time.Second)

	pt, err := fake.TimeLockDecrypt(context.Background(), ct)
	if err != nil {
		t.Fatalf("TimeLockDecrypt after round failed: %v", err)
	}
	if string(pt) != "payload-key" {
		t.Errorf("decrypted %q", pt)
	}
}

func TestFakeAuthority_InjectedErrors(t *testing.T) {
	boom := errors.New("boom")
	fake := &FakeAuthority{EncryptError: boom, DecryptError: boom}

	if _, err := fake.TimeLockEncrypt([]byte("x"), 1); !errors.Is(err, boom) {
		t.Errorf("expected EncryptError, got %v", err)
	}
	if _, err := fake.TimeLockDecrypt(context.Background(), "FAKE_TLOCK:1:eA=="); !errors.Is(err, boom) {
		t.Errorf("expected DecryptError, got %v", err)
	}
}

func TestFakeAuthority_InvalidCiphertext(t *testing.T) {
	fake := NewFakeAuthority(time.Now())

	for _, ct := range []string{"", "garbage", "FAKE_TLOCK:", "FAKE_TLOCK:notanumber:eA=="} {
		if _, err := fake.TimeLockDecrypt(context.Background(), ct); err == nil {
			t.Errorf("expected error for ciphertext %q", ct)
		}
	}
}

func TestNewAuthority(t *testing.T) {
	testCases := []struct {
		name     string
		cfg      Config
		wantName string
		wantErr  bool
	}{
		{"default", Config{}, "system", false},
		{"system", Config{Name: "system"}, "system", false},
		{"drand", Config{Name: "drand"}, "drand", false},
		{"case insensitive", Config{Name: "DRAND"}, "drand", false},
		{"unknown", Config{Name: "sundial"}, "", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			auth, err := NewAuthority(tc.cfg)
			if tc.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewAuthority failed: %v", err)
			}
			if auth.Name() != tc.wantName {
				t.Errorf("Name = %s, want %s", auth.Name(), tc.wantName)
			}
		})
	}
}
