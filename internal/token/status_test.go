package token

import (
	"strings"
	"testing"
	"time"
)

func TestFormatStatusOutput_Empty(t *testing.T) {
	if got := FormatStatusOutput(nil); got != "no tokens\n" {
		t.Errorf("FormatStatusOutput(nil) = %q", got)
	}
}

func TestFormatStatusOutput(t *testing.T) {
	toks := []Token{
		{
			ID:    0,
			Owner: recipient,
			URI:   "https://aisthisi.art/metadata/0.json",
			LockState: LockState{
				UnlockFrom: time.Date(2030, 1, 1, 0, 0, 8, 0, time.UTC),
			},
		},
		{
			ID:         1,
			Owner:      stranger,
			URI:        "https://aisthisi.art/metadata/1.json",
			HasPayload: true,
			LockState: LockState{
				UnlockFrom: time.Date(2030, 1, 1, 0, 0, 8, 0, time.UTC),
				Unlocked:   true,
				UnlockedAt: time.Date(2030, 1, 1, 0, 1, 0, 0, time.UTC),
			},
		},
	}

	out := FormatStatusOutput(toks)

	for _, want := range []string{
		"id: 0\nowner: " + recipient.String() + "\nstate: locked\nunlock_from: 2030-01-01T00:00:08Z\nuri: https://aisthisi.art/metadata/0.json\n",
		"state: unlocked",
		"unlocked_at: 2030-01-01T00:01:00Z",
		"payload: sealed",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Count(out, "unlocked_at") != 1 {
		t.Errorf("locked token should not print unlocked_at:\n%s", out)
	}
}
