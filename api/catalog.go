package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Domenick1991/studiobooking/internal/domain"
	"github.com/Domenick1991/studiobooking/internal/service/catalog"
)

type CatalogHandler struct {
	service catalog.CatalogUseCase
}

func NewCatalogHandler(service catalog.CatalogUseCase) *CatalogHandler {
	return &CatalogHandler{service: service}
}

// RegisterPublic mounts the read routes. Listing inactive entries still
// needs an administrator token.
func (h *CatalogHandler) RegisterPublic(router *gin.RouterGroup) {
	router.GET("/services", h.listServices)
	router.GET("/services/:id", h.getService)
	router.GET("/pricing-rules", h.listRules)
	router.GET("/pricing-rules/:id", h.getRule)
}

func (h *CatalogHandler) Register(router *gin.RouterGroup) {
	router.POST("/services", h.createService)
	router.PUT("/services/:id", h.updateService)
	router.DELETE("/services/:id", h.deleteService)
	router.POST("/pricing-rules", h.createRule)
	router.PUT("/pricing-rules/:id", h.updateRule)
	router.DELETE("/pricing-rules/:id", h.deleteRule)
}

func (h *CatalogHandler) listServices(c *gin.Context) {
	services, err := h.service.ListServices(c.Request.Context(), callerID(c), c.Query("include_inactive") == "true")
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, services)
}

func (h *CatalogHandler) getService(c *gin.Context) {
	svc, err := h.service.GetService(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, svc)
}

func (h *CatalogHandler) createService(c *gin.Context) {
	var req domain.Service
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	svc, err := h.service.CreateService(c.Request.Context(), callerID(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, svc)
}

func (h *CatalogHandler) updateService(c *gin.Context) {
	var req domain.Service
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	req.ID = c.Param("id")
	svc, err := h.service.UpdateService(c.Request.Context(), callerID(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, svc)
}

func (h *CatalogHandler) deleteService(c *gin.Context) {
	if err := h.service.DeleteService(c.Request.Context(), callerID(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *CatalogHandler) listRules(c *gin.Context) {
	rules, err := h.service.ListPricingRules(c.Request.Context(), callerID(c), c.Query("include_inactive") == "true")
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rules)
}

func (h *CatalogHandler) getRule(c *gin.Context) {
	rule, err := h.service.GetPricingRule(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

func (h *CatalogHandler) createRule(c *gin.Context) {
	var req domain.PricingRule
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	rule, err := h.service.CreatePricingRule(c.Request.Context(), callerID(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rule)
}

func (h *CatalogHandler) updateRule(c *gin.Context) {
	var req domain.PricingRule
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	req.ID = c.Param("id")
	rule, err := h.service.UpdatePricingRule(c.Request.Context(), callerID(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

func (h *CatalogHandler) deleteRule(c *gin.Context) {
	if err := h.service.DeletePricingRule(c.Request.Context(), callerID(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
