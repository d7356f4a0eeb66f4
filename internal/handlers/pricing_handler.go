package handlers

import (
	"log"
	"net/http"

	"github.com/cabanaresort/reservations-backend/internal/database"
	"github.com/cabanaresort/reservations-backend/internal/models"
	"github.com/cabanaresort/reservations-backend/internal/services"
	"github.com/cabanaresort/reservations-backend/pkg/validator"
	"github.com/gin-gonic/gin"
)

// PricingHandler handles price quotes and the product catalog
type PricingHandler struct {
	resolver    *services.PriceResolver
	pricingRepo *database.PricingRepository
	dates       *validator.DateRangeValidator
}

// NewPricingHandler creates a new pricing handler
func NewPricingHandler(resolver *services.PriceResolver, pricingRepo *database.PricingRepository) *PricingHandler {
	return &PricingHandler{
		resolver:    resolver,
		pricingRepo: pricingRepo,
		dates:       validator.NewDateRangeValidator(),
	}
}

// Quote handles POST /api/v1/pricing/quote. Returns the breakdown a
// reservation on these parameters would be priced at, without creating
// anything. A zero cabana total means the cabana is unpriced for the range
// and an approver would have to set a manual price.
func (h *PricingHandler) Quote(c *gin.Context) {
	var req models.PriceQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "Invalid request body",
		})
		return
	}

	start, end, err := h.dates.ParseRange(req.StartDate, req.EndDate)
	if err != nil {
		respondError(c, models.NewValidationError("start_date", err.Error()))
		return
	}

	breakdown, err := h.resolver.CalculatePrice(req.CabanaID, req.ConceptID, start, end, req.Extras)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"breakdown": breakdown})
}

// ListProducts handles GET /api/v1/products
func (h *PricingHandler) ListProducts(c *gin.Context) {
	products, err := h.pricingRepo.ListProducts()
	if err != nil {
		log.Printf("ERROR: Failed to list products: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to retrieve products",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"products": products,
		"total":    len(products),
	})
}
