package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Domenick1991/studiobooking/config"
)

type Handlers struct {
	Bookings *BookingHandler
	Payments *PaymentHandler
	Catalog  *CatalogHandler
	Admin    *AdminHandler
}

// NewRouter mounts every handler under /api/v1. Forwarding headers are only
// honoured from cfg.TrustedProxies.
func NewRouter(log *zap.Logger, authn *Authenticator, cfg config.HTTPConfig, h Handlers) (*gin.Engine, error) {
	router := gin.New()
	if err := router.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}
	router.Use(gin.Recovery(), RequestLogger(log), RateLimit(cfg.RatePerMinute, log))

	v1 := router.Group("/api/v1")
	public := v1.Group("", authn.Optional())
	private := v1.Group("", authn.Required())

	h.Bookings.RegisterPublic(public)
	h.Bookings.Register(private.Group("/bookings"))
	h.Payments.Register(private.Group("/payments"))
	h.Catalog.RegisterPublic(public)
	h.Catalog.Register(private)
	h.Admin.Register(private.Group("/admin"))

	return router, nil
}
