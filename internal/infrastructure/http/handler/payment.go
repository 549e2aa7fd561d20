package handler

import (
	"net/http"

	"github.com/apascualco/cinemesh/internal/application"
	"github.com/apascualco/cinemesh/internal/domain"
	"github.com/gin-gonic/gin"
)

type PaymentHandler struct {
	payments *application.PaymentService
}

func NewPaymentHandler(payments *application.PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// Create answers 201 with the payment still PENDING; settlement runs after
// the response is written.
func (h *PaymentHandler) Create(c *gin.Context) {
	var req domain.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	payment, err := h.payments.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, payment)
}

func (h *PaymentHandler) Get(c *gin.Context) {
	payment, err := h.payments.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

// List filters by status, or returns the latest payment for a booking when
// bookingId is given.
func (h *PaymentHandler) List(c *gin.Context) {
	if bookingID := c.Query("bookingId"); bookingID != "" {
		payment, err := h.payments.GetByBooking(c.Request.Context(), bookingID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, []*domain.Payment{payment})
		return
	}

	payments, err := h.payments.List(c.Request.Context(), c.Query("status"))
	if err != nil {
		respondError(c, err)
		return
	}
	if payments == nil {
		payments = []*domain.Payment{}
	}
	c.JSON(http.StatusOK, payments)
}

func (h *PaymentHandler) Refund(c *gin.Context) {
	var req domain.RefundRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	resp, err := h.payments.Refund(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *PaymentHandler) Delete(c *gin.Context) {
	if err := h.payments.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *PaymentHandler) Dependencies(c *gin.Context) {
	dependencyResponse(c, h.payments.DependencyHealth(c.Request.Context()))
}
