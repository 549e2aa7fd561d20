package handler

import (
	"net/http"

	"github.com/apascualco/cinemesh/internal/application"
	"github.com/apascualco/cinemesh/internal/domain"
	"github.com/gin-gonic/gin"
)

type BookingHandler struct {
	bookings *application.BookingService
}

func NewBookingHandler(bookings *application.BookingService) *BookingHandler {
	return &BookingHandler{bookings: bookings}
}

func (h *BookingHandler) Create(c *gin.Context) {
	var req domain.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	booking, err := h.bookings.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, booking)
}

func (h *BookingHandler) Get(c *gin.Context) {
	booking, err := h.bookings.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

// List accepts optional userId and status query filters.
func (h *BookingHandler) List(c *gin.Context) {
	filter := domain.BookingFilter{UserID: c.Query("userId")}
	if raw := c.Query("status"); raw != "" {
		status, err := domain.ParseBookingStatus(raw)
		if err != nil {
			respondError(c, err)
			return
		}
		filter.Status = status
	}

	bookings, err := h.bookings.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	if bookings == nil {
		bookings = []*domain.Booking{}
	}
	c.JSON(http.StatusOK, bookings)
}

func (h *BookingHandler) Update(c *gin.Context) {
	var req domain.UpdateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	booking, err := h.bookings.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

func (h *BookingHandler) Cancel(c *gin.Context) {
	booking, err := h.bookings.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

func (h *BookingHandler) Delete(c *gin.Context) {
	if err := h.bookings.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *BookingHandler) Dependencies(c *gin.Context) {
	dependencyResponse(c, h.bookings.DependencyHealth(c.Request.Context()))
}

func dependencyResponse(c *gin.Context, status domain.DependencyStatus) {
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}
