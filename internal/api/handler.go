package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"pottery-booking-service/internal/models"
	"pottery-booking-service/internal/service"
	"pottery-booking-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// Handler contains HTTP handlers
type Handler struct {
	bookingService *service.BookingService
	paymentService *service.PaymentService
	coupons        *service.CouponGuard
}

// NewHandler creates a new HTTP handler
func NewHandler(bookingService *service.BookingService, paymentService *service.PaymentService, coupons *service.CouponGuard) *Handler {
	return &Handler{
		bookingService: bookingService,
		paymentService: paymentService,
		coupons:        coupons,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/bookings", h.createBooking)
		v1.GET("/bookings/:id", h.getBooking)
		v1.POST("/bookings/:id/cancel", h.cancelBooking)
		v1.POST("/bookings/:id/checkin", h.checkIn)
		v1.POST("/bookings/:id/feedback", h.submitFeedback)
		v1.GET("/coupons/:code", h.validateCoupon)
		v1.POST("/payments/initiate", h.initiatePayment)
		v1.POST("/payments/verify", h.verifyPayment)
		v1.POST("/payments/:id/refund", h.processRefund)
	}
}

func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// createBooking handles booking creation
func (h *Handler) createBooking(c *gin.Context) {
	var req service.CreateBookingRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	booking, err := h.bookingService.CreateBooking(c.Request.Context(), &req)
	if err != nil {
		status, msg := mapError(err)
		c.JSON(status, gin.H{"error": msg, "details": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, booking)
}

// getBooking returns the full booking aggregate
func (h *Handler) getBooking(c *gin.Context) {
	detail, err := h.bookingService.GetBooking(c.Request.Context(), c.Param("id"))
	if err != nil {
		status, msg := mapError(err)
		c.JSON(status, gin.H{"error": msg, "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, detail)
}

type cancelBookingRequest struct {
	Reason string `json:"reason"`
}

// cancelBooking cancels a booking and releases its capacity
func (h *Handler) cancelBooking(c *gin.Context) {
	var req cancelBookingRequest
	_ = c.ShouldBindJSON(&req)

	if err := h.bookingService.CancelBooking(c.Request.Context(), c.Param("id"), req.Reason); err != nil {
		status, msg := mapError(err)
		c.JSON(status, gin.H{"error": msg, "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": models.BookingStatusCancelled})
}

// checkIn marks a paid booking as checked in
func (h *Handler) checkIn(c *gin.Context) {
	if err := h.bookingService.CheckIn(c.Request.Context(), c.Param("id")); err != nil {
		status, msg := mapError(err)
		c.JSON(status, gin.H{"error": msg, "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": models.BookingStatusCheckedIn})
}

type feedbackRequest struct {
	Rating int    `json:"rating" binding:"required,min=1,max=5"`
	Text   string `json:"feedback_text"`
}

// submitFeedback records post-visit feedback for an attended booking
func (h *Handler) submitFeedback(c *gin.Context) {
	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	if err := h.bookingService.SubmitFeedback(c.Request.Context(), c.Param("id"), req.Text, req.Rating); err != nil {
		status, msg := mapError(err)
		c.JSON(status, gin.H{"error": msg, "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "feedback recorded"})
}

// validateCoupon previews a coupon code before checkout
func (h *Handler) validateCoupon(c *gin.Context) {
	coupon, err := h.coupons.Validate(c.Request.Context(), c.Param("code"))
	if err != nil {
		status, msg := mapError(err)
		c.JSON(status, gin.H{"error": msg, "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, coupon)
}

type initiatePaymentRequest struct {
	BookingID     string          `json:"booking_id" binding:"required"`
	Amount        decimal.Decimal `json:"amount" binding:"required"`
	Gateway       string          `json:"gateway" binding:"required"`
	CustomerEmail string          `json:"customer_email" binding:"required,email"`
	CustomerPhone string          `json:"customer_phone" binding:"required"`
}

// initiatePayment opens a payment attempt with the selected gateway
func (h *Handler) initiatePayment(c *gin.Context) {
	var req initiatePaymentRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	resp, err := h.paymentService.InitiatePayment(c.Request.Context(),
		req.BookingID, req.Amount, req.Gateway, req.CustomerEmail, req.CustomerPhone)
	if err != nil {
		status, msg := mapError(err)
		c.JSON(status, gin.H{"error": msg, "details": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, resp)
}

type verifyPaymentRequest struct {
	TransactionID string `json:"transaction_id" binding:"required"`
	Signature     string `json:"signature"`
	Gateway       string `json:"gateway" binding:"required"`
}

// verifyPayment reconciles a gateway callback
func (h *Handler) verifyPayment(c *gin.Context) {
	var req verifyPaymentRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	if err := h.paymentService.VerifyPayment(c.Request.Context(),
		req.TransactionID, req.Signature, req.Gateway); err != nil {
		status, msg := mapError(err)
		c.JSON(status, gin.H{"error": msg, "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": models.PaymentStatusCompleted})
}

type refundRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
}

// processRefund refunds a completed payment, then releases the slot
// capacity through the booking service. The two calls are an explicit
// cross-component contract, not a side effect of the refund itself.
func (h *Handler) processRefund(c *gin.Context) {
	paymentID := c.Param("id")

	var req refundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	if err := h.paymentService.ProcessRefund(c.Request.Context(), paymentID, req.Amount); err != nil {
		status, msg := mapError(err)
		c.JSON(status, gin.H{"error": msg, "details": err.Error()})
		return
	}

	payment, _, err := h.paymentService.GetPayment(c.Request.Context(), paymentID)
	if err != nil {
		util.GetLogger().Error("Refund committed but payment lookup failed, capacity not released: " + err.Error())
	} else if err := h.bookingService.ReleaseForRefund(c.Request.Context(), payment.BookingID); err != nil {
		util.GetLogger().Error("Failed to release capacity after refund: " + err.Error())
	}

	c.JSON(http.StatusOK, gin.H{"status": models.PaymentStatusRefunded})
}

func mapError(err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, models.ErrInsufficientCapacity):
		return http.StatusConflict, "Insufficient capacity"
	case errors.Is(err, models.ErrConflict):
		return http.StatusConflict, "Conflict, please retry"
	case errors.Is(err, models.ErrInvalidCoupon):
		return http.StatusUnprocessableEntity, "Invalid coupon"
	case errors.Is(err, models.ErrInvalidStateTransition):
		return http.StatusUnprocessableEntity, "Invalid state transition"
	case errors.Is(err, models.ErrGatewayFailure):
		return http.StatusBadGateway, "Payment gateway error"
	default:
		return http.StatusInternalServerError, "Internal error"
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
