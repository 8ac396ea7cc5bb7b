// Package abuse enforces the per-user limit on distinct content requested
// within a sliding window.
package abuse

import (
	"context"
	"time"

	"github.com/tbourn/go-linkgate/internal/repo"
)

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration // meaningful only when !Allowed
}

// Window admits or rejects a request for contentID by userID. Requests for
// content already inside the user's window never count twice.
type Window interface {
	Admit(ctx context.Context, userID, contentID string, now time.Time) (Decision, error)
}

// LedgerWindow derives the window from durable gate issuance times, so it
// survives restarts without extra state.
type LedgerWindow struct {
	ledger *repo.Ledger
	limit  int
	window time.Duration
}

// NewLedgerWindow allows up to limit distinct items per window.
func NewLedgerWindow(ledger *repo.Ledger, limit int, window time.Duration) *LedgerWindow {
	return &LedgerWindow{ledger: ledger, limit: limit, window: window}
}

// Admit implements Window.
func (w *LedgerWindow) Admit(ctx context.Context, userID, contentID string, now time.Time) (Decision, error) {
	recent, err := w.ledger.RecentContent(ctx, userID, now.Add(-w.window))
	if err != nil {
		return Decision{}, err
	}
	if _, seen := recent[contentID]; seen {
		return Decision{Allowed: true}, nil
	}
	if len(recent) < w.limit {
		return Decision{Allowed: true}, nil
	}

	// a slot frees when the least recently issued item leaves the window
	var oldest time.Time
	for _, at := range recent {
		if oldest.IsZero() || at.Before(oldest) {
			oldest = at
		}
	}
	retry := oldest.Add(w.window).Sub(now)
	if retry < time.Second {
		retry = time.Second
	}
	return Decision{Allowed: false, RetryAfter: retry}, nil
}
