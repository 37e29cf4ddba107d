package timeauth

import (
	"context"
	"time"
)

// SystemAuthority reads the local clock. It has no beacon and so cannot
// time-lock data.
type SystemAuthority struct {
	// Clock overrides time.Now when set.
	Clock func() time.Time
}

func (s *SystemAuthority) Name() string {
	return "system"
}

func (s *SystemAuthority) Now(ctx context.Context) (time.Time, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, err
	}
	if s.Clock != nil {
		return s.Clock().UTC(), nil
	}
	return time.Now().UTC(), nil
}

func (s *SystemAuthority) RoundAt(t time.Time) (uint64, error) {
	return 0, nil
}

func (s *SystemAuthority) TimeLockEncrypt(data []byte, targetRound uint64) (string, error) {
	return "", ErrTimelockUnsupported
}

func (s *SystemAuthority) TimeLockDecrypt(ctx context.Context, ciphertextB64 string) ([]byte, error) {
	return nil, ErrTimelockUnsupported
}
