package api

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Domenick1991/studiobooking/internal/domain"
	"github.com/Domenick1991/studiobooking/internal/events"
	"github.com/Domenick1991/studiobooking/internal/service/booking"
)

// Subscriber opens filtered booking event streams.
type Subscriber interface {
	Subscribe(filter events.Filter) *events.Subscription
}

type AdminChecker interface {
	IsAdmin(ctx context.Context, callerID string) (bool, error)
}

type BookingHandler struct {
	service   booking.BookingUseCase
	hub       Subscriber
	admins    AdminChecker
	keepAlive time.Duration
}

func NewBookingHandler(service booking.BookingUseCase, hub Subscriber, admins AdminChecker) *BookingHandler {
	return &BookingHandler{service: service, hub: hub, admins: admins, keepAlive: 25 * time.Second}
}

// Register mounts the authenticated booking routes.
func (h *BookingHandler) Register(router *gin.RouterGroup) {
	router.POST("", h.create)
	router.GET("", h.list)
	router.GET("/stream", h.stream)
	router.GET("/:id", h.get)
	router.PUT("/:id/session-details", h.sessionDetails)
	router.POST("/:id/confirm", h.confirm)
	router.POST("/:id/reject", h.reject)
	router.POST("/:id/complete", h.complete)
	router.POST("/:id/cancel", h.cancel)
}

// RegisterPublic mounts the anonymous calendar view.
func (h *BookingHandler) RegisterPublic(router *gin.RouterGroup) {
	router.GET("/calendar", h.calendar)
}

func (h *BookingHandler) create(c *gin.Context) {
	var req booking.CreateBookingInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	b, err := h.service.CreateBooking(c.Request.Context(), callerID(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

func (h *BookingHandler) list(c *gin.Context) {
	query := booking.ListQuery{
		UserID:     c.Query("userId"),
		EngineerID: c.Query("engineerId"),
		Status:     domain.BookingStatus(c.Query("status")),
	}
	var err error
	if query.From, err = parseTime(c.Query("from")); err != nil {
		badRequest(c, "invalid from: "+err.Error())
		return
	}
	if query.To, err = parseTime(c.Query("to")); err != nil {
		badRequest(c, "invalid to: "+err.Error())
		return
	}
	if raw := c.Query("limit"); raw != "" {
		if query.Limit, err = strconv.Atoi(raw); err != nil || query.Limit < 0 {
			badRequest(c, "invalid limit")
			return
		}
	}

	bookings, err := h.service.ListBookings(c.Request.Context(), callerID(c), query)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookings)
}

func (h *BookingHandler) get(c *gin.Context) {
	b, err := h.service.GetBooking(c.Request.Context(), callerID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *BookingHandler) sessionDetails(c *gin.Context) {
	var details domain.SessionDetails
	if err := c.ShouldBindJSON(&details); err != nil {
		badRequest(c, err.Error())
		return
	}
	b, err := h.service.AttachSessionDetails(c.Request.Context(), callerID(c), c.Param("id"), details)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *BookingHandler) confirm(c *gin.Context) {
	h.transition(c, h.service.ConfirmBooking)
}

func (h *BookingHandler) reject(c *gin.Context) {
	h.transition(c, h.service.RejectBooking)
}

func (h *BookingHandler) complete(c *gin.Context) {
	h.transition(c, h.service.CompleteBooking)
}

func (h *BookingHandler) cancel(c *gin.Context) {
	h.transition(c, h.service.CancelBooking)
}

func (h *BookingHandler) transition(c *gin.Context, op func(ctx context.Context, callerID, id string) (*domain.Booking, error)) {
	b, err := op(c.Request.Context(), callerID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *BookingHandler) calendar(c *gin.Context) {
	from, err := parseTime(c.Query("from"))
	if err != nil || from.IsZero() {
		badRequest(c, "from is required in RFC 3339 format")
		return
	}
	to, err := parseTime(c.Query("to"))
	if err != nil || to.IsZero() {
		badRequest(c, "to is required in RFC 3339 format")
		return
	}

	busy, err := h.service.Calendar(c.Request.Context(), from, to)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, busy)
}

// stream pushes matching booking events as server-sent events until the
// client goes away. Non-administrators only receive their own bookings.
func (h *BookingHandler) stream(c *gin.Context) {
	caller := callerID(c)
	filter := events.Filter{
		BookingID: c.Query("bookingId"),
		UserID:    c.Query("userId"),
		Statuses:  parseStatuses(c.QueryArray("status")),
	}
	admin, err := h.admins.IsAdmin(c.Request.Context(), caller)
	if err != nil {
		writeError(c, err)
		return
	}
	if !admin {
		filter.UserID = caller
	}

	sub := h.hub.Subscribe(filter)
	defer sub.Close()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-sub.Events():
			if !ok {
				return false
			}
			c.SSEvent(event.Type, event)
			return true
		case <-ticker.C:
			_, err := io.WriteString(w, ": keep-alive\n\n")
			return err == nil
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func parseTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, raw)
}

// parseStatuses accepts both repeated and comma separated status values.
func parseStatuses(values []string) []domain.BookingStatus {
	var out []domain.BookingStatus
	for _, v := range values {
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, domain.BookingStatus(s))
			}
		}
	}
	return out
}
