package token

import (
	"fmt"
	"strings"
	"time"
)

// FormatStatusOutput formats tokens for display, one block per token.
func FormatStatusOutput(tokens []Token) string {
	if len(tokens) == 0 {
		return "no tokens\n"
	}

	var b strings.Builder
	for _, t := range tokens {
		fmt.Fprintf(&b, "id: %d\nowner: %s\nstate: %s\nunlock_from: %s\n",
			t.ID,
			t.Owner,
			t.Status(),
			t.UnlockFrom.Format(time.RFC3339))
		if t.Unlocked {
			fmt.Fprintf(&b, "unlocked_at: %s\n", t.UnlockedAt.Format(time.RFC3339))
		}
		if t.HasPayload {
			b.WriteString("payload: sealed\n")
		}
		fmt.Fprintf(&b, "uri: %s\n\n", t.URI)
	}
	return b.String()
}
