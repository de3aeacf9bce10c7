package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Domenick1991/studiobooking/internal/domain"
)

var kindStatus = map[domain.ErrorKind]int{
	domain.KindInput:          http.StatusBadRequest,
	domain.KindAuth:           http.StatusUnauthorized,
	domain.KindPermission:     http.StatusForbidden,
	domain.KindNotFound:       http.StatusNotFound,
	domain.KindPrecondition:   http.StatusPreconditionFailed,
	domain.KindGateway:        http.StatusBadGateway,
	domain.KindConflict:       http.StatusConflict,
	domain.KindBusy:           http.StatusConflict,
	domain.KindReconciliation: http.StatusInternalServerError,
}

func statusFor(kind domain.ErrorKind) int {
	if code, ok := kindStatus[kind]; ok {
		return code
	}
	return http.StatusInternalServerError
}

// writeError renders err as {error, kind, reason} and records it on the
// context for the request logger. Internal details are not exposed.
func writeError(c *gin.Context, err error) {
	_ = c.Error(err)

	kind := domain.KindOf(err)
	msg := err.Error()
	var de *domain.Error
	if errors.As(err, &de) {
		msg = de.Message
	}
	if kind == domain.KindInternal {
		msg = "internal server error"
	}

	body := gin.H{"error": msg, "kind": string(kind)}
	if reason := domain.ReasonOf(err); reason != "" {
		body["reason"] = reason
	}
	c.AbortWithStatusJSON(statusFor(kind), body)
}

func badRequest(c *gin.Context, msg string) {
	writeError(c, domain.InputError("%s", msg))
}
