package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/go-linkgate/internal/domain"
)

func TestCreateContent_SuccessAndDuplicate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	item := &domain.ContentItem{ID: "poem-1", Kind: domain.KindText, Title: "Poem", Text: "roses"}
	if err := CreateContent(ctx, db, item); err != nil {
		t.Fatalf("CreateContent: %v", err)
	}
	if item.CreatedAt.IsZero() {
		t.Fatalf("CreatedAt should be set")
	}

	again := &domain.ContentItem{ID: "poem-1", Kind: domain.KindText, Title: "Other", Text: "x"}
	if err := CreateContent(ctx, db, again); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	got, err := GetContent(ctx, db, "poem-1")
	if err != nil {
		t.Fatalf("GetContent: %v", err)
	}
	if got.Title != "Poem" || got.Text != "roses" {
		t.Fatalf("content should be immutable, got %+v", got)
	}
}

func TestCreateContent_RejectsUnknownKind(t *testing.T) {
	db := newTestDB(t)
	err := CreateContent(context.Background(), db, &domain.ContentItem{ID: "v", Kind: "video", Title: "V"})
	if err == nil {
		t.Fatalf("expected CHECK violation for unknown kind")
	}
}

func TestGetContent_NotFound(t *testing.T) {
	db := newTestDB(t)
	if _, err := GetContent(context.Background(), db, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListContentPage_PaginationAndOrder(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)
	for i, id := range []string{"a", "b", "c"} {
		it := &domain.ContentItem{ID: id, Kind: domain.KindImage, Title: id, MediaURL: "https://cdn/" + id, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := CreateContent(ctx, db, it); err != nil {
			t.Fatalf("seed %s: %v", id, err)
		}
	}

	total, err := CountContent(ctx, db)
	if err != nil || total != 3 {
		t.Fatalf("CountContent = %d, %v; want 3", total, err)
	}
	page, err := ListContentPage(ctx, db, 0, 2)
	if err != nil {
		t.Fatalf("ListContentPage: %v", err)
	}
	if len(page) != 2 || page[0].ID != "c" || page[1].ID != "b" {
		t.Fatalf("unexpected first page: %+v", page)
	}
	page, _ = ListContentPage(ctx, db, 2, 2)
	if len(page) != 1 || page[0].ID != "a" {
		t.Fatalf("unexpected second page: %+v", page)
	}
}
