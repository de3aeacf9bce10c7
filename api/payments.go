package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Domenick1991/studiobooking/internal/service/payment"
)

type PaymentHandler struct {
	service payment.PaymentUseCase
}

type intentRequest struct {
	BookingID string `json:"booking_id" binding:"required"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
}

type bookingRequest struct {
	BookingID string `json:"booking_id" binding:"required"`
}

type refundRequest struct {
	BookingID string `json:"booking_id" binding:"required"`
	Reason    string `json:"reason"`
}

func NewPaymentHandler(service payment.PaymentUseCase) *PaymentHandler {
	return &PaymentHandler{service: service}
}

func (h *PaymentHandler) Register(router *gin.RouterGroup) {
	router.POST("/intent", h.createIntent)
	router.POST("/capture-deposit", h.captureDeposit)
	router.POST("/refund-deposit", h.refundDeposit)
	router.POST("/final-intent", h.finalIntent)
	router.POST("/capture-final", h.captureFinal)
}

func (h *PaymentHandler) createIntent(c *gin.Context) {
	var req intentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	res, err := h.service.CreateDepositIntent(c.Request.Context(), callerID(c), req.BookingID, req.Amount, req.Currency)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *PaymentHandler) captureDeposit(c *gin.Context) {
	var req bookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	out, err := h.service.CaptureDeposit(c.Request.Context(), callerID(c), req.BookingID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *PaymentHandler) refundDeposit(c *gin.Context) {
	var req refundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	out, err := h.service.RefundDeposit(c.Request.Context(), callerID(c), req.BookingID, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *PaymentHandler) finalIntent(c *gin.Context) {
	var req intentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	res, err := h.service.ChargeFinalPayment(c.Request.Context(), callerID(c), req.BookingID, req.Amount, req.Currency)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *PaymentHandler) captureFinal(c *gin.Context) {
	var req bookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	out, err := h.service.CaptureFinalPayment(c.Request.Context(), callerID(c), req.BookingID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
