package repo

import (
	"context"
	"errors"
	"testing"
)

func TestPutProviderLink_FirstWriterWins(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := GetProviderLink(ctx, db, "shrinkme", "https://t/1", "c1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound before put, got %v", err)
	}

	first, err := PutProviderLink(ctx, db, "shrinkme", "https://t/1", "c1", "https://shrinkme.io/aaa")
	if err != nil {
		t.Fatalf("PutProviderLink: %v", err)
	}
	second, err := PutProviderLink(ctx, db, "shrinkme", "https://t/1", "c1", "https://shrinkme.io/bbb")
	if err != nil {
		t.Fatalf("PutProviderLink again: %v", err)
	}
	if first.ShortURL != "https://shrinkme.io/aaa" || second.ShortURL != first.ShortURL {
		t.Fatalf("expected first link to win, got %q then %q", first.ShortURL, second.ShortURL)
	}

	other, err := PutProviderLink(ctx, db, "partner", "https://t/1", "c1", "https://p/zzz")
	if err != nil || other.ShortURL != "https://p/zzz" {
		t.Fatalf("different provider should store its own link, got %+v, %v", other, err)
	}
}
