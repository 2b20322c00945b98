// Usage HTTP handler: exposes an account's recorded request volume alongside
// its plan, backed by the activity ledger.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-legal-assistant-backend/internal/http/middleware"
)

// UsageService reports recorded request counts per account.
type UsageService interface {
	Count(ctx context.Context, accountID string) (int64, error)
}

// UsageResponse summarizes an account's recorded traffic.
type UsageResponse struct {
	Plan     string `json:"plan"`
	Requests int64  `json:"requests"`
}

// UsageHandlers groups the usage endpoints.
type UsageHandlers struct {
	svc UsageService
}

// NewUsageHandlers constructs a UsageHandlers bound to the given service.
func NewUsageHandlers(svc UsageService) *UsageHandlers {
	return &UsageHandlers{svc: svc}
}

// Usage godoc
// @ID          usage
// @Summary     Account usage summary
// @Description Returns the account's plan and total recorded requests.
// @Tags        Usage
// @Produce     json
//
// @Success     200  {object}  handlers.UsageResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /usage [get]
func (h *UsageHandlers) Usage(c *gin.Context) {
	account, found := middleware.AccountFrom(c)
	if !found {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
		return
	}

	total, err := h.svc.Count(c.Request.Context(), account.ID)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	ok(c, http.StatusOK, UsageResponse{Plan: account.Plan, Requests: total})
}
