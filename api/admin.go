package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Domenick1991/studiobooking/internal/service/booking"
)

type AdminHandler struct {
	bookings booking.BookingUseCase
}

func NewAdminHandler(bookings booking.BookingUseCase) *AdminHandler {
	return &AdminHandler{bookings: bookings}
}

func (h *AdminHandler) Register(router *gin.RouterGroup) {
	router.GET("/overlaps", h.overlaps)
}

func (h *AdminHandler) overlaps(c *gin.Context) {
	overlaps, err := h.bookings.ScanOverlaps(c.Request.Context(), callerID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, overlaps)
}
