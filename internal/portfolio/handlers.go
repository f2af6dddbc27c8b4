package portfolio

import (
	"github.com/gin-gonic/gin"

	"github.com/botfolio/botfolio-api/pkg/response"
)

// GinHandlers contains HTTP handlers for the dashboard read endpoints.
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates the HTTP handlers for the dashboard endpoints.
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// GetPortfolioHandler handles GET requests for an account's full
// display model: stats, positions marked to market, and status.
// URL parameter: account_id
func (h *GinHandlers) GetPortfolioHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		accountID := c.Param("account_id")
		if accountID == "" {
			response.BadRequest(c, "Account ID is required")
			return
		}

		snapshot, err := h.service.GetSnapshot(accountID)
		response.Handle(c, snapshot, err)
	}
}

// GetClosedTradesHandler handles GET requests for an account's
// closed-trade ledger, newest sell first.
// URL parameter: account_id
func (h *GinHandlers) GetClosedTradesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		accountID := c.Param("account_id")
		if accountID == "" {
			response.BadRequest(c, "Account ID is required")
			return
		}

		entries, err := h.service.ClosedTrades(accountID)
		response.Handle(c, entries, err)
	}
}
