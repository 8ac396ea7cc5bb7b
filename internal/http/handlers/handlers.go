// Package handlers exposes the gate engine, the content catalog and the
// delivery history over HTTP.
//
// Handlers are transport-thin: they bind and validate input, call the
// application services, and translate results and errors into responses.
package handlers

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-linkgate/internal/domain"
	"github.com/tbourn/go-linkgate/internal/http/middleware"
	"github.com/tbourn/go-linkgate/internal/services"
	"github.com/tbourn/go-linkgate/internal/utils"
)

//
// Service contracts (context-aware)
//

// GateService issues and verifies gates. *services.GateService satisfies it.
type GateService interface {
	RequestAccess(ctx context.Context, userID, contentID string) (*domain.GateRecord, bool, error)
	Verify(ctx context.Context, userID, contentID string) (services.VerifyResult, error)
	VerifyByToken(ctx context.Context, token string) (services.VerifyResult, error)
	Abandon(ctx context.Context, userID, contentID string) (*domain.GateRecord, error)
	Status(ctx context.Context, userID, contentID string) (*domain.GateRecord, error)
}

// ContentService manages the catalog. *services.ContentService satisfies it.
type ContentService interface {
	Create(ctx context.Context, item domain.ContentItem) (*domain.ContentItem, error)
	Get(ctx context.Context, id string) (*domain.ContentItem, error)
	ListPage(ctx context.Context, page, pageSize int) ([]domain.ContentItem, int64, error)
}

// DeliveryService reads and repairs deliveries. *services.UnlockDispatcher
// satisfies it.
type DeliveryService interface {
	History(ctx context.Context, userID string, page, pageSize int) ([]domain.DeliveryMarker, int64, error)
	Redeliver(ctx context.Context, userID, contentID string) (services.DeliveryResult, error)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints.
type Handlers struct {
	gates    GateService
	content  ContentService
	delivery DeliveryService
}

// New constructs a Handlers instance bound to the given services.
func New(gates GateService, content ContentService, delivery DeliveryService) *Handlers {
	return &Handlers{gates: gates, content: content, delivery: delivery}
}

//
// Shared DTOs and helpers
//

// PairRequest names one (user, content) pair. UserID may be omitted when the
// X-User-ID header identifies the caller.
type PairRequest struct {
	UserID    string `json:"user_id" example:"discord:81234567"`
	ContentID string `json:"content_id" binding:"required" example:"wallpaper-042"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

func newPagination(page, pageSize int, total int64) Pagination {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

// pairFrom resolves the user for a pair: the explicit value wins, then the
// caller identity set by middleware.Identity.
func pairFrom(c *gin.Context, userID, contentID string) (string, string) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		userID = middleware.UserID(c)
	}
	return userID, strings.TrimSpace(contentID)
}

// clampPagination parses and bounds page and page_size query params.
func clampPagination(c *gin.Context) (page, pageSize int) {
	const maxPageSize = 100
	p := utils.ParsePage(c.Query("page"), c.Query("page_size"), maxPageSize)
	return p.Number, p.Size
}
