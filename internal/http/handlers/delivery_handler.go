// Delivery HTTP handlers.
//
// This file exposes the per-user delivery history and the operator's
// redelivery command:
//   - GET  /users/{id}/deliveries   (paginated, weak ETag)
//   - POST /deliveries/redeliver    (retry a failed delivery)
package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/go-linkgate/internal/domain"
	"github.com/tbourn/go-linkgate/internal/repo"
	"github.com/tbourn/go-linkgate/internal/services"
)

// ListDeliveriesResponse wraps a page of delivery markers.
type ListDeliveriesResponse struct {
	Deliveries []domain.DeliveryMarker `json:"deliveries"`
	Pagination Pagination              `json:"pagination"`
}

// RedeliverResponse reports a redelivery.
type RedeliverResponse struct {
	Outcome services.DeliveryOutcome `json:"outcome" example:"delivered"`
	Marker  *domain.DeliveryMarker   `json:"marker,omitempty"`
}

// ListDeliveries godoc
// @ID          listDeliveries
// @Summary     Delivery history (paginated)
// @Description Returns a page of the user's deliveries, most recent first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Deliveries
// @Produce     json
//
// @Param       id             path    string  true   "User ID"
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
// @Param       page           query   int     false  "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false  "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object}  handlers.ListDeliveriesResponse
// @Header      200  {string}  ETag  "Weak ETag for current result"
// @Success     304  {string}  string "Not Modified"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /users/{id}/deliveries [get]
func (h *Handlers) ListDeliveries(c *gin.Context) {
	ctx := c.Request.Context()
	uid := strings.TrimSpace(c.Param("id"))
	if uid == "" || len(uid) > 64 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid user id")
		return
	}
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	var db *gorm.DB
	if d, ok := h.delivery.(*services.UnlockDispatcher); ok {
		db = d.DB
	}
	if db != nil {
		count, maxTS, err := repo.DeliveriesStats(ctx, db, uid)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.UnixNano()
			}
			etag := fmt.Sprintf(`W/"deliveries:%s:%d:%d:%d:%d"`, uid, count, ts, page, pageSize)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, total, err := h.delivery.History(ctx, uid, page, pageSize)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ListDeliveriesResponse{Deliveries: items, Pagination: newPagination(page, pageSize, total)})
}

// Redeliver godoc
// @ID          redeliver
// @Summary     Retry a failed delivery
// @Description Sends the content again when its previous delivery failed in the chat transport. Deliveries that succeeded are never resent.
// @Tags        Deliveries
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.PairRequest  true  "User and content"
//
// @Success     202  {object}  handlers.RedeliverResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "No such delivery"
// @Failure     409  {object}  handlers.ErrorResponse  "Delivery has not failed"
// @Failure     500  {object}  handlers.ErrorResponse  "Transport failed again"
// @Router      /deliveries/redeliver [post]
func (h *Handlers) Redeliver(c *gin.Context) {
	var req PairRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content_id required")
		return
	}
	userID, contentID := pairFrom(c, req.UserID, req.ContentID)
	if userID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "user_id required")
		return
	}

	res, err := h.delivery.Redeliver(c.Request.Context(), userID, contentID)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusAccepted, RedeliverResponse{Outcome: res.Outcome, Marker: res.Marker})
}
