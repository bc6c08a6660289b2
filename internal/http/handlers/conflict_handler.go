// Conflict HTTP handlers.
//
// This file exposes REST endpoints for conflict resources:
//   - POST   /conflicts                       (create)
//   - GET    /conflicts                       (list, paginated, ETag support)
//   - GET    /conflicts/{slug}                (fetch full aggregate)
//   - POST   /conflicts/{slug}/join           (become the partner)
//   - PATCH  /conflicts/{slug}/items/{itemID} (submit/overwrite a choice)
//   - POST   /conflicts/{slug}/cancel         (cancel)
//   - DELETE /conflicts/{slug}                (two-sided soft delete)
//   - POST   /conflicts/{slug}/truce          (offer a truce)
//   - DELETE /conflicts/{slug}/truce          (retract/decline the offer)
//   - POST   /conflicts/{slug}/truce/accept   (accept, resolves the conflict)
//
// Handlers are transport-thin: they validate input, call application
// services, and translate results (including service sentinel errors) into
// HTTP responses.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/accordhq/go-accord-backend/internal/http/middleware"
	"github.com/accordhq/go-accord-backend/internal/repo"
	"github.com/accordhq/go-accord-backend/internal/services"
	"github.com/accordhq/go-accord-backend/internal/utils"
)

//
// Service contract (context-aware)
//

// ConflictService defines the conflict lifecycle operations consumed by HTTP
// handlers. Implementations must be safe for concurrent use and honor the
// provided context.
type ConflictService interface {
	// Create opens a conflict for creatorID with at least one item.
	Create(ctx context.Context, creatorID string, in services.CreateConflictInput) (*services.ConflictView, error)
	// Get returns the full aggregate visible to userID.
	Get(ctx context.Context, userID, slug string) (*services.ConflictView, error)
	// List returns a page of the user's conflicts and the total count.
	List(ctx context.Context, userID string, page, pageSize int) ([]services.ConflictShortView, int64, error)
	// Join assigns userID as the partner of a pending conflict.
	Join(ctx context.Context, userID, slug string) (*services.ConflictView, error)
	// UpdateItem overwrites the caller's side of an item.
	UpdateItem(ctx context.Context, userID, slug, itemID, value string) (*services.UpdateItemResult, error)
	// Cancel ends a non-terminal conflict.
	Cancel(ctx context.Context, userID, slug string) (*services.ConflictShortView, error)
	// Delete performs the caller's half of the two-sided delete.
	Delete(ctx context.Context, userID, slug string) error
	// OfferTruce opens the truce sub-protocol.
	OfferTruce(ctx context.Context, userID, slug string) (*services.ConflictView, error)
	// CancelTruceOffer retracts or declines a pending offer.
	CancelTruceOffer(ctx context.Context, userID, slug string) (*services.ConflictView, error)
	// AcceptTruce accepts a pending offer and resolves the conflict.
	AcceptTruce(ctx context.Context, userID, slug string) (*services.ConflictView, error)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints for conflict resources.
type Handlers struct {
	svc        ConflictService
	inviteBase string
}

// New constructs a Handlers instance bound to the given service. inviteBase
// is the public base URL used to build join links on creation.
func New(svc ConflictService, inviteBase string) *Handlers {
	return &Handlers{svc: svc, inviteBase: strings.TrimRight(inviteBase, "/")}
}

// userID extracts the authenticated user id from Gin context (set by upstream
// middleware). If absent, it falls back to "X-User-ID" header (tests use it),
// and finally to "demo-user". It never touches c.Request if it's nil.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return "demo-user"
}

//
// DTOs
//

// CreateItemRequest is one item of a new conflict.
type CreateItemRequest struct {
	// Title names the point of disagreement (1–100 chars).
	Title string `json:"title" binding:"required,min=1,max=100" example:"Who does the dishes"`
	// Value is the creator's initial choice for this item.
	Value string `json:"value" binding:"required" example:"we alternate weekly"`
}

// CreateConflictRequest is the JSON payload for creating a conflict.
type CreateConflictRequest struct {
	// Title optionally names the conflict; a default is generated when empty.
	Title string `json:"title" example:"Household chores"`
	// PartnerID optionally assigns the other participant up front.
	PartnerID *string `json:"partner_id,omitempty" example:"user456"`
	// Items is the list of negotiation items (at least one).
	Items []CreateItemRequest `json:"items" binding:"required,min=1"`
}

// UpdateItemRequest is the JSON payload for submitting a choice value.
type UpdateItemRequest struct {
	// Value replaces the caller's current choice for the item.
	Value string `json:"value" binding:"required" example:"we alternate weekly"`
}

// CreateConflictResponse wraps the created conflict with its invite link.
type CreateConflictResponse struct {
	services.ConflictView
	// InviteURL is shared with the other party so they can join.
	InviteURL string `json:"invite_url" example:"https://accord.example/api/v1/conflicts/<slug>/join"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListConflictsResponse wraps a page of conflicts and pagination information.
type ListConflictsResponse struct {
	Conflicts  []services.ConflictShortView `json:"conflicts"`
	Pagination Pagination                   `json:"pagination"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params.
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	return utils.ClampPage(
		utils.AtoiDefault(c.Query("page"), defaultPage),
		utils.AtoiDefault(c.Query("page_size"), defaultPageSize),
		defaultPageSize, maxPageSize,
	)
}

// idemTTL bounds how long a stored idempotency record answers replays.
const idemTTL = 24 * time.Hour

// idemDB returns the gorm handle used for idempotency bookkeeping, nil when
// the service is not the concrete implementation (tests stub it).
func (h *Handlers) idemDB() *gorm.DB {
	if svc, ok := h.svc.(*services.NegotiationService); ok {
		return svc.DB
	}
	return nil
}

// storeIdempotency records a completed mutation under the request's
// validated Idempotency-Key so retries are detected as replays. Best
// effort: a failed write never disturbs the response.
func (h *Handlers) storeIdempotency(c *gin.Context, resultSlug string, status int) {
	key, okKey := middleware.GetIdempotencyKey(c)
	db := h.idemDB()
	if !okKey || db == nil {
		return
	}
	_, _ = repo.CreateIdempotency(c.Request.Context(), db,
		userID(c), c.Param("slug"), key, resultSlug, status, idemTTL)
}

// mapServiceError translates service sentinel errors to HTTP responses.
// Anything unrecognized becomes a 500 with a generic message.
func mapServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrConflictNotFound),
		errors.Is(err, services.ErrItemNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, services.ErrNoItems),
		errors.Is(err, services.ErrInvalidItem),
		errors.Is(err, services.ErrEmptyValue),
		errors.Is(err, services.ErrSelfPartner):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, services.ErrPartnerAssigned):
		fail(c, http.StatusConflict, ErrCodePartnerTaken, err.Error())
	case errors.Is(err, services.ErrConflictClosed),
		errors.Is(err, services.ErrAlreadyDeleted):
		fail(c, http.StatusConflict, ErrCodeAlreadyClosed, err.Error())
	case errors.Is(err, services.ErrMissingPartner),
		errors.Is(err, services.ErrItemsUnanswered),
		errors.Is(err, services.ErrTrucePending),
		errors.Is(err, services.ErrNoActiveTruce),
		errors.Is(err, services.ErrTruceSelfAccept):
		fail(c, http.StatusConflict, ErrCodeTruceState, err.Error())
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
	}
}

//
// Handlers
//

// CreateConflict godoc
// @ID          createConflict
// @Summary     Create a new conflict
// @Description Opens a conflict for the current user with at least one item and returns it together with an invite link.
// @Tags        Conflicts
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       body       body    handlers.CreateConflictRequest  true  "Create conflict payload"
//
// @Success     201  {object}  handlers.CreateConflictResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /conflicts [post]
func (h *Handlers) CreateConflict(c *gin.Context) {
	var req CreateConflictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	ctx := c.Request.Context()
	uid := userID(c)

	// Replay path: a repeated create with the same key returns the conflict
	// it created the first time instead of opening a duplicate. Create
	// records are keyed under an empty slug because the request path
	// carries none yet.
	if key, okKey := middleware.GetIdempotencyKey(c); okKey {
		if db := h.idemDB(); db != nil {
			if rec, err := repo.GetIdempotency(ctx, db, uid, "", key, time.Now().UTC()); err == nil && rec != nil {
				if prev, err2 := h.svc.Get(ctx, uid, rec.ResultSlug); err2 == nil {
					c.Header("Idempotency-Replayed", "true")
					ok(c, http.StatusOK, CreateConflictResponse{
						ConflictView: *prev,
						InviteURL:    h.inviteBase + "/conflicts/" + prev.Slug + "/join",
					})
					return
				}
			}
		}
	}

	in := services.CreateConflictInput{
		Title:     strings.TrimSpace(req.Title),
		PartnerID: req.PartnerID,
	}
	for _, it := range req.Items {
		in.Items = append(in.Items, services.CreateItemInput{Title: it.Title, Value: it.Value})
	}

	v, err := h.svc.Create(ctx, uid, in)
	if err != nil {
		mapServiceError(c, err)
		return
	}
	h.storeIdempotency(c, v.Slug, http.StatusCreated)
	ok(c, http.StatusCreated, CreateConflictResponse{
		ConflictView: *v,
		InviteURL:    h.inviteBase + "/conflicts/" + v.Slug + "/join",
	})
}

// ListConflicts godoc
// @ID          listConflicts
// @Summary     List conflicts (paginated)
// @Description Returns a page of the user's visible conflicts, newest first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Conflicts
// @Produce     json
//
// @Param       X-User-ID      header  string  false "User ID (demo header)"       example(user123)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"abc123\")
// @Param       page           query   int     false "Page number"                  minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"               minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListConflictsResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /conflicts [get]
func (h *Handlers) ListConflicts(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	var db *gorm.DB
	if svc, isConcrete := h.svc.(*services.NegotiationService); isConcrete {
		db = svc.DB
	}
	if db != nil {
		count, maxTS, err := repo.ConflictsStats(ctx, db, uid)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"conflicts:%s:%d:%d"`, uid, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, total, err := h.svc.List(ctx, uid, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "internal server error")
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListConflictsResponse{
		Conflicts: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// GetConflict godoc
// @ID          getConflict
// @Summary     Fetch a conflict
// @Description Returns the full conflict aggregate (items and event history) for a visible participant.
// @Tags        Conflicts
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       slug       path    string  true  "Conflict slug"          format(uuid)
//
// @Success     200  {object} services.ConflictView
// @Failure     404  {object} handlers.ErrorResponse "Conflict not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /conflicts/{slug} [get]
func (h *Handlers) GetConflict(c *gin.Context) {
	v, err := h.svc.Get(c.Request.Context(), userID(c), c.Param("slug"))
	if err != nil {
		mapServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, v)
}

// JoinConflict godoc
// @ID          joinConflict
// @Summary     Join a conflict
// @Description Assigns the current user as the partner of a pending conflict and moves it to in_progress.
// @Tags        Conflicts
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user456)
// @Param       slug       path    string  true  "Conflict slug"          format(uuid)
//
// @Success     200  {object} services.ConflictView
// @Failure     400  {object} handlers.ErrorResponse "Cannot join own conflict"
// @Failure     404  {object} handlers.ErrorResponse "Conflict not found"
// @Failure     409  {object} handlers.ErrorResponse "Partner already assigned"
// @Router      /conflicts/{slug}/join [post]
func (h *Handlers) JoinConflict(c *gin.Context) {
	v, err := h.svc.Join(c.Request.Context(), userID(c), c.Param("slug"))
	if err != nil {
		mapServiceError(c, err)
		return
	}
	h.storeIdempotency(c, v.Slug, http.StatusOK)
	ok(c, http.StatusOK, v)
}

// UpdateItem godoc
// @ID          updateItem
// @Summary     Submit a choice for an item
// @Description Overwrites the caller's side of an item. When both sides now hold the exact same value the item locks as agreed; full agreement resolves the conflict and the full aggregate is returned.
// @Tags        Conflicts
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       slug       path    string  true  "Conflict slug"          format(uuid)
// @Param       itemID     path    string  true  "Item ID (UUID)"         format(uuid)
// @Param       body       body    handlers.UpdateItemRequest  true  "New choice value"
//
// @Success     200  {object} services.UpdateItemResult
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Conflict or item not found"
// @Failure     409  {object} handlers.ErrorResponse "Conflict already closed"
// @Router      /conflicts/{slug}/items/{itemID} [patch]
func (h *Handlers) UpdateItem(c *gin.Context) {
	var req UpdateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	res, err := h.svc.UpdateItem(c.Request.Context(), userID(c), c.Param("slug"), c.Param("itemID"), req.Value)
	if err != nil {
		mapServiceError(c, err)
		return
	}
	h.storeIdempotency(c, c.Param("slug"), http.StatusOK)
	ok(c, http.StatusOK, res)
}

// CancelConflict godoc
// @ID          cancelConflict
// @Summary     Cancel a conflict
// @Description Ends a non-terminal conflict without agreement.
// @Tags        Conflicts
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       slug       path    string  true  "Conflict slug"          format(uuid)
//
// @Success     200  {object} services.ConflictShortView
// @Failure     404  {object} handlers.ErrorResponse "Conflict not found"
// @Failure     409  {object} handlers.ErrorResponse "Conflict already closed"
// @Router      /conflicts/{slug}/cancel [post]
func (h *Handlers) CancelConflict(c *gin.Context) {
	v, err := h.svc.Cancel(c.Request.Context(), userID(c), c.Param("slug"))
	if err != nil {
		mapServiceError(c, err)
		return
	}
	h.storeIdempotency(c, v.Slug, http.StatusOK)
	ok(c, http.StatusOK, v)
}

// DeleteConflict godoc
// @ID          deleteConflict
// @Summary     Delete a conflict (caller's side)
// @Description Hides the conflict from the caller's listings. The conflict is materially removed only after both participants delete it.
// @Tags        Conflicts
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       slug       path    string  true  "Conflict slug"          format(uuid)
//
// @Success     204  {string} string "No Content"
// @Failure     404  {object} handlers.ErrorResponse "Conflict not found"
// @Failure     409  {object} handlers.ErrorResponse "Already deleted by caller"
// @Router      /conflicts/{slug} [delete]
func (h *Handlers) DeleteConflict(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), userID(c), c.Param("slug")); err != nil {
		mapServiceError(c, err)
		return
	}
	h.storeIdempotency(c, c.Param("slug"), http.StatusNoContent)
	noContent(c)
}

// OfferTruce godoc
// @ID          offerTruce
// @Summary     Offer a truce
// @Description Opens the truce sub-protocol. Requires both participants, an in_progress conflict, every item answered by both sides, and no other pending offer.
// @Tags        Truce
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       slug       path    string  true  "Conflict slug"          format(uuid)
//
// @Success     200  {object} services.ConflictView
// @Failure     404  {object} handlers.ErrorResponse "Conflict not found"
// @Failure     409  {object} handlers.ErrorResponse "Preconditions not met"
// @Router      /conflicts/{slug}/truce [post]
func (h *Handlers) OfferTruce(c *gin.Context) {
	v, err := h.svc.OfferTruce(c.Request.Context(), userID(c), c.Param("slug"))
	if err != nil {
		mapServiceError(c, err)
		return
	}
	h.storeIdempotency(c, v.Slug, http.StatusOK)
	ok(c, http.StatusOK, v)
}

// CancelTruce godoc
// @ID          cancelTruce
// @Summary     Retract or decline a truce offer
// @Description Ends a pending truce offer. The initiator retracts their own offer; the other participant declines it.
// @Tags        Truce
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user456)
// @Param       slug       path    string  true  "Conflict slug"          format(uuid)
//
// @Success     200  {object} services.ConflictView
// @Failure     404  {object} handlers.ErrorResponse "Conflict not found"
// @Failure     409  {object} handlers.ErrorResponse "No pending offer"
// @Router      /conflicts/{slug}/truce [delete]
func (h *Handlers) CancelTruce(c *gin.Context) {
	v, err := h.svc.CancelTruceOffer(c.Request.Context(), userID(c), c.Param("slug"))
	if err != nil {
		mapServiceError(c, err)
		return
	}
	h.storeIdempotency(c, v.Slug, http.StatusOK)
	ok(c, http.StatusOK, v)
}

// AcceptTruce godoc
// @ID          acceptTruce
// @Summary     Accept a truce offer
// @Description Accepts a pending truce offer (by the non-initiating participant) and resolves the conflict.
// @Tags        Truce
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user456)
// @Param       slug       path    string  true  "Conflict slug"          format(uuid)
//
// @Success     200  {object} services.ConflictView
// @Failure     404  {object} handlers.ErrorResponse "Conflict not found"
// @Failure     409  {object} handlers.ErrorResponse "No pending offer or self accept"
// @Router      /conflicts/{slug}/truce/accept [post]
func (h *Handlers) AcceptTruce(c *gin.Context) {
	v, err := h.svc.AcceptTruce(c.Request.Context(), userID(c), c.Param("slug"))
	if err != nil {
		mapServiceError(c, err)
		return
	}
	h.storeIdempotency(c, v.Slug, http.StatusOK)
	ok(c, http.StatusOK, v)
}
