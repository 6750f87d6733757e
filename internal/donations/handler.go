package donations

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"collegestar/notes-portal/notes-portal-backend/internal/middleware"
	"collegestar/notes-portal/notes-portal-backend/internal/profiles"
)

const defaultQRSize = 256

type Handler struct {
	service *Service
	logger  *zap.Logger
}

func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, requireAuth gin.HandlerFunc) {
	donations := rg.Group("/donations")
	{
		donations.GET("/tiers", h.Tiers)
		donations.GET("/upi-link", h.Link)
		donations.GET("/upi-qr", h.QR)
	}

	rg.POST("/profiles/:id/donation", requireAuth, h.Claim)
	rg.GET("/profiles/:id/donation/receipt", requireAuth, h.Receipt)
}

type claimRequest struct {
	Amount int `json:"amount" binding:"required"`
}

func (h *Handler) Tiers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tiers": h.service.Tiers(), "currency": h.service.currency()})
}

func (h *Handler) Link(c *gin.Context) {
	amount, err := strconv.Atoi(c.Query("amount"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be a whole number"})
		return
	}
	link, err := h.service.PaymentLink(amount)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"link": link, "amount": amount})
}

func (h *Handler) QR(c *gin.Context) {
	amount, err := strconv.Atoi(c.Query("amount"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be a whole number"})
		return
	}
	size := defaultQRSize
	if v, err := strconv.Atoi(c.Query("size")); err == nil && v >= 64 && v <= 1024 {
		size = v
	}
	png, err := h.service.PaymentQR(amount, size)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func (h *Handler) Claim(c *gin.Context) {
	var req claimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount is required"})
		return
	}
	profile, err := h.service.Claim(c.Request.Context(), middleware.UserID(c), c.Param("id"), req.Amount)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *Handler) Receipt(c *gin.Context) {
	doc, err := h.service.Receipt(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	size, err := doc.Seek(0, io.SeekEnd)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if _, err := doc.Seek(0, io.SeekStart); err != nil {
		h.writeError(c, err)
		return
	}
	c.DataFromReader(http.StatusOK, size, "application/pdf", doc, map[string]string{
		"Content-Disposition": `attachment; filename="collegestar-receipt.pdf"`,
	})
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidAmount):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "tiers": h.service.Tiers()})
	case errors.Is(err, ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, ErrNotDonor), errors.Is(err, profiles.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		h.logger.Error("Donation request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
