package ledger

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/botfolio/botfolio-api/pkg/response"
)

// GinHandlers contains HTTP handlers for the ledger endpoints.
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates the HTTP handlers for the ledger endpoints.
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// SubmitFillHandler handles POST requests to commit a fill against an
// account's ledger. Overselling is reported as a conflict, distinct
// from validation and store failures.
// Request body: a FillRequest (timestamp in RFC3339).
func (h *GinHandlers) SubmitFillHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req FillRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		order, err := h.service.SubmitFill(req)
		switch {
		case errors.Is(err, ErrInvalidFill):
			response.BadRequest(c, err.Error())
		case errors.Is(err, ErrInsufficientPosition):
			response.Conflict(c, err.Error())
		case err != nil:
			response.InternalError(c, err.Error())
		default:
			response.Success(c, order)
		}
	}
}

// GetOrdersHandler handles GET requests for an account's raw order
// history, ascending by timestamp.
// URL parameter: account_id
func (h *GinHandlers) GetOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		accountID := c.Param("account_id")
		if accountID == "" {
			response.BadRequest(c, "Account ID is required")
			return
		}

		orders, err := h.service.DB().GetOrders(accountID)
		response.Handle(c, orders, err)
	}
}
