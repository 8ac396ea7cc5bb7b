// Gate HTTP handlers.
//
// This file exposes the gate engine:
//   - POST   /gates          (request access: issue or return the active gate)
//   - GET    /gates          (status of the latest gate for a pair)
//   - POST   /gates/verify   (ask the provider whether the user finished)
//   - DELETE /gates          (abandon the active gate)
//   - GET    /l/{token}      (landing callback behind every short link)
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-linkgate/internal/domain"
	"github.com/tbourn/go-linkgate/internal/services"
)

// GateResponse is the user-facing view of a gate record.
type GateResponse struct {
	ID          string           `json:"id" example:"5d0c7e52-8f6b-4d0e-9b7a-0c4c2f3b1a77"`
	UserID      string           `json:"user_id" example:"discord:81234567"`
	ContentID   string           `json:"content_id" example:"wallpaper-042"`
	ProviderID  string           `json:"provider_id" example:"shrinkme"`
	ShortURL    string           `json:"short_url" example:"https://shrinkme.io/Ab3dE"`
	State       domain.GateState `json:"state" example:"pending"`
	IssuedAt    time.Time        `json:"issued_at"`
	ExpiresAt   time.Time        `json:"expires_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
}

func gateView(rec *domain.GateRecord) GateResponse {
	return GateResponse{
		ID:          rec.ID,
		UserID:      rec.UserID,
		ContentID:   rec.ContentID,
		ProviderID:  rec.ProviderID,
		ShortURL:    rec.ShortURL,
		State:       rec.State,
		IssuedAt:    rec.IssuedAt,
		ExpiresAt:   rec.ExpiresAt,
		CompletedAt: rec.CompletedAt,
	}
}

// VerifyResponse reports the result of a verification.
type VerifyResponse struct {
	Outcome  services.Outcome `json:"outcome" example:"unlocked"`
	State    domain.GateState `json:"state" example:"completed"`
	ShortURL string           `json:"short_url,omitempty" example:"https://shrinkme.io/Ab3dE"`
	// Delivery is set only on the verification that unlocked the content.
	Delivery services.DeliveryOutcome `json:"delivery,omitempty" example:"delivered"`
}

func verifyView(res services.VerifyResult) VerifyResponse {
	out := VerifyResponse{Outcome: res.Outcome}
	if res.Record != nil {
		out.State = res.Record.State
		if res.Outcome == services.StillLocked && res.Record.State == domain.StatePending {
			out.ShortURL = res.Record.ShortURL
		}
	}
	if res.Delivery != nil {
		out.Delivery = res.Delivery.Outcome
	}
	return out
}

// LandingResponse is returned by the short-link landing callback.
type LandingResponse struct {
	Outcome services.Outcome `json:"outcome" example:"unlocked"`
	Message string           `json:"message" example:"Unlocked. Your content is on its way in chat."`
}

// RequestAccess godoc
// @ID          requestAccess
// @Summary     Request access to gated content
// @Description Returns the user's active gate for the content, issuing a new short link when none is usable. 201 when a link was minted, 200 when an existing gate was returned.
// @Tags        Gates
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "Caller user ID (used when body omits user_id)"
// @Param       body       body    handlers.PairRequest  true  "User and content"
//
// @Success     201  {object}  handlers.GateResponse
// @Success     200  {object}  handlers.GateResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Content not found"
// @Failure     429  {object}  handlers.ErrorResponse  "Rate limited (see Retry-After)"
// @Failure     502  {object}  handlers.ErrorResponse  "Provider rejected the target"
// @Failure     503  {object}  handlers.ErrorResponse  "Provider unavailable"
// @Router      /gates [post]
func (h *Handlers) RequestAccess(c *gin.Context) {
	var req PairRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content_id required")
		return
	}
	userID, contentID := pairFrom(c, req.UserID, req.ContentID)

	rec, issued, err := h.gates.RequestAccess(c.Request.Context(), userID, contentID)
	if err != nil {
		failErr(c, err)
		return
	}
	status := http.StatusOK
	if issued {
		status = http.StatusCreated
	}
	ok(c, status, gateView(rec))
}

// GateStatus godoc
// @ID          gateStatus
// @Summary     Gate status
// @Description Returns the latest gate for a user and content, with lazy expiry applied.
// @Tags        Gates
// @Produce     json
//
// @Param       X-User-ID   header  string  false "Caller user ID (used when user_id is omitted)"
// @Param       user_id     query   string  false "User ID"
// @Param       content_id  query   string  true  "Content ID"
//
// @Success     200  {object}  handlers.GateResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "No such request"
// @Router      /gates [get]
func (h *Handlers) GateStatus(c *gin.Context) {
	userID, contentID := pairFrom(c, c.Query("user_id"), c.Query("content_id"))
	if contentID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content_id required")
		return
	}
	rec, err := h.gates.Status(c.Request.Context(), userID, contentID)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, gateView(rec))
}

// Verify godoc
// @ID          verifyGate
// @Summary     Verify a gate
// @Description Asks the gate's provider whether the user completed the ad flow. The first observed completion unlocks the content and delivers it in chat. Provider outages answer still_locked.
// @Tags        Gates
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "Caller user ID (used when body omits user_id)"
// @Param       body       body    handlers.PairRequest  true  "User and content"
//
// @Success     200  {object}  handlers.VerifyResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "No such request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /gates/verify [post]
func (h *Handlers) Verify(c *gin.Context) {
	var req PairRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content_id required")
		return
	}
	userID, contentID := pairFrom(c, req.UserID, req.ContentID)

	res, err := h.gates.Verify(c.Request.Context(), userID, contentID)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, verifyView(res))
}

// Abandon godoc
// @ID          abandonGate
// @Summary     Abandon a gate
// @Description Cancels the user's active gate. Re-requesting the same content is refused until the abandoned gate's TTL elapses.
// @Tags        Gates
// @Accept      json
//
// @Param       X-User-ID  header  string  false "Caller user ID (used when body omits user_id)"
// @Param       body       body    handlers.PairRequest  true  "User and content"
//
// @Success     204  {string}  string "No Content"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "No such request"
// @Failure     409  {object}  handlers.ErrorResponse  "Gate is no longer active"
// @Router      /gates [delete]
func (h *Handlers) Abandon(c *gin.Context) {
	var req PairRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content_id required")
		return
	}
	userID, contentID := pairFrom(c, req.UserID, req.ContentID)

	if _, err := h.gates.Abandon(c.Request.Context(), userID, contentID); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}

// Landing godoc
// @ID          landing
// @Summary     Short-link landing callback
// @Description Target behind every minted short link. Verifies the gate that owns the token, so finishing the ad flow unlocks the content without a separate verify command.
// @Tags        Gates
// @Produce     json
//
// @Param       token  path  string  true  "Verification token"
//
// @Success     200  {object}  handlers.LandingResponse
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown token"
// @Router      /l/{token} [get]
func (h *Handlers) Landing(c *gin.Context) {
	res, err := h.gates.VerifyByToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		failErr(c, err)
		return
	}
	msg := "Not unlocked yet. Finish the link steps, then check again in chat."
	if res.Outcome == services.Unlocked {
		msg = "Unlocked. Your content is on its way in chat."
	}
	ok(c, http.StatusOK, LandingResponse{Outcome: res.Outcome, Message: msg})
}
