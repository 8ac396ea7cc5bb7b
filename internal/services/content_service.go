// Package services – ContentService
//
// This file implements ContentService, the catalog of gated items. Items are
// registered once by an operator and never change; the gate engine only
// references them by ID and the dispatcher reads their payload.
package services

import (
	"context"
	"errors"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"

	"github.com/tbourn/go-linkgate/internal/domain"
	"github.com/tbourn/go-linkgate/internal/repo"
	"github.com/tbourn/go-linkgate/internal/utils"
)

// ContentRepo defines the repository contract required by ContentService.
type ContentRepo interface {
	// CreateContent inserts an item; an existing ID yields repo.ErrDuplicate.
	CreateContent(ctx context.Context, db *gorm.DB, item *domain.ContentItem) error

	// GetContent fetches an item by ID.
	GetContent(ctx context.Context, db *gorm.DB, id string) (*domain.ContentItem, error)

	// CountContent returns the catalog size for pagination.
	CountContent(ctx context.Context, db *gorm.DB) (int64, error)

	// ListContentPage returns a page of the catalog.
	ListContentPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.ContentItem, error)
}

// ContentService validates and stores catalog items.
type ContentService struct {
	DB   *gorm.DB
	Repo ContentRepo

	// TitleMaxLen caps stored titles by rune length.
	TitleMaxLen int
}

// NewContentService constructs a ContentService with default title limits.
func NewContentService(db *gorm.DB, r ContentRepo) *ContentService {
	return &ContentService{DB: db, Repo: r, TitleMaxLen: 120}
}

// Create validates and registers an item. IDs are limited to 128 bytes of
// printable text; text items need Text, media items need an http(s) MediaURL.
func (s *ContentService) Create(ctx context.Context, item domain.ContentItem) (*domain.ContentItem, error) {
	item.ID = strings.TrimSpace(item.ID)
	if !validID(item.ID, 128) {
		return nil, ErrBadRequest
	}
	if !item.Kind.Valid() {
		return nil, ErrBadRequest
	}
	item.Title = s.clip(normalizeTitle(item.Title))
	if item.Title == "" {
		item.Title = item.ID
	}
	if item.Kind != domain.KindText {
		if u, err := url.Parse(item.MediaURL); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return nil, ErrBadRequest
		}
		item.Text = ""
	} else {
		item.MediaURL = ""
	}
	if !item.HasPayload() {
		return nil, ErrPayloadMissing
	}

	if err := s.Repo.CreateContent(ctx, s.DB, &item); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrDuplicateContent
		}
		return nil, err
	}
	return &item, nil
}

// Get returns an item or ErrContentNotFound.
func (s *ContentService) Get(ctx context.Context, id string) (*domain.ContentItem, error) {
	item, err := s.Repo.GetContent(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrContentNotFound
		}
		return nil, err
	}
	return item, nil
}

// ListPage returns a page of the catalog and its total size.
func (s *ContentService) ListPage(ctx context.Context, page, pageSize int) ([]domain.ContentItem, int64, error) {
	p := utils.ClampPage(page, pageSize, 0)
	total, err := s.Repo.CountContent(ctx, s.DB)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.ContentItem{}, 0, nil
	}
	items, err := s.Repo.ListContentPage(ctx, s.DB, p.Offset(), p.Size)
	return items, total, err
}

// clip truncates a title to the configured maximum rune length.
func (s *ContentService) clip(title string) string {
	if s.TitleMaxLen > 0 && utf8.RuneCountInString(title) > s.TitleMaxLen {
		return string([]rune(title)[:s.TitleMaxLen])
	}
	return title
}

// normalizeTitle applies NFC, trims, and collapses runs of whitespace.
func normalizeTitle(s string) string {
	return whitespaceRE.ReplaceAllString(strings.TrimSpace(norm.NFC.String(s)), " ")
}

var whitespaceRE = regexp.MustCompile(`\s+`)

// validID accepts non-empty printable identifiers up to max bytes.
func validID(id string, max int) bool {
	if id == "" || len(id) > max || !utf8.ValidString(id) {
		return false
	}
	for _, r := range id {
		if r < 0x20 || r == 0x7f {
			return false
		}
	}
	return true
}
