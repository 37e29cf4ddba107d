package token

import (
	"fmt"

	"aishi/internal/store"
)

// validateRecord checks a stored record against the lock invariants and
// never repairs it:
//   - owner and commitment are non-zero
//   - a locked token has no unlock time
//   - an unlocked token has an unlock time no earlier than UnlockFrom
func validateRecord(rec *store.TokenRecord) error {
	if rec.Owner.IsZero() {
		return fmt.Errorf("token %d: owner is the zero address (corrupted)", rec.ID)
	}
	if rec.Commitment.IsZero() {
		return fmt.Errorf("token %d: commitment is empty (corrupted)", rec.ID)
	}

	if !rec.Unlocked {
		if !rec.UnlockedAt.IsZero() {
			return fmt.Errorf("token %d: locked but has unlock time %s (corrupted)", rec.ID, rec.UnlockedAt)
		}
		return nil
	}

	if rec.UnlockedAt.IsZero() {
		return fmt.Errorf("token %d: unlocked but unlock time missing (corrupted)", rec.ID)
	}
	if rec.UnlockedAt.Before(rec.UnlockFrom) {
		return fmt.Errorf("token %d: unlocked at %s before eligible time %s (corrupted)", rec.ID, rec.UnlockedAt, rec.UnlockFrom)
	}
	return nil
}
