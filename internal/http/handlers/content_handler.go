// Content HTTP handlers.
//
// This file exposes the operator-facing catalog:
//   - POST /content       (register an item)
//   - GET  /content       (list, paginated)
//   - GET  /content/{id}  (fetch one item)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-linkgate/internal/domain"
)

// CreateContentRequest is the JSON payload for registering a content item.
type CreateContentRequest struct {
	ID       string `json:"id" binding:"required,max=128" example:"wallpaper-042"`
	Kind     string `json:"kind" binding:"required,oneof=text image audio" example:"image"`
	Title    string `json:"title" example:"Neon city wallpaper"`
	Text     string `json:"text,omitempty" example:""`
	MediaURL string `json:"media_url,omitempty" example:"https://cdn.example.com/w/042.png"`
}

// ListContentResponse wraps a page of content items.
type ListContentResponse struct {
	Items      []domain.ContentItem `json:"items"`
	Pagination Pagination           `json:"pagination"`
}

// CreateContent godoc
// @ID          createContent
// @Summary     Register gated content
// @Description Registers an immutable content item. Text items need text; image and audio items need an http(s) media_url.
// @Tags        Content
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.CreateContentRequest  true  "Content item"
//
// @Success     201  {object}  domain.ContentItem
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     409  {object}  handlers.ErrorResponse  "Content already exists"
// @Failure     422  {object}  handlers.ErrorResponse  "Payload missing"
// @Router      /content [post]
func (h *Handlers) CreateContent(c *gin.Context) {
	var req CreateContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "id and kind (text|image|audio) required")
		return
	}
	item, err := h.content.Create(c.Request.Context(), domain.ContentItem{
		ID:       req.ID,
		Kind:     domain.ContentKind(req.Kind),
		Title:    req.Title,
		Text:     req.Text,
		MediaURL: req.MediaURL,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, item)
}

// GetContent godoc
// @ID          getContent
// @Summary     Get a content item
// @Tags        Content
// @Produce     json
//
// @Param       id  path  string  true  "Content ID"
//
// @Success     200  {object}  domain.ContentItem
// @Failure     404  {object}  handlers.ErrorResponse  "Content not found"
// @Router      /content/{id} [get]
func (h *Handlers) GetContent(c *gin.Context) {
	item, err := h.content.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, item)
}

// ListContent godoc
// @ID          listContent
// @Summary     List content (paginated)
// @Tags        Content
// @Produce     json
//
// @Param       page       query  int  false  "Page number"     minimum(1) default(1)
// @Param       page_size  query  int  false  "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object}  handlers.ListContentResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /content [get]
func (h *Handlers) ListContent(c *gin.Context) {
	page, pageSize := clampPagination(c)
	items, total, err := h.content.ListPage(c.Request.Context(), page, pageSize)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ListContentResponse{Items: items, Pagination: newPagination(page, pageSize, total)})
}
