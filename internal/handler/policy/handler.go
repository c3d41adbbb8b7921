package policy

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/waitroom-api/internal/service/policy"
)

// Handler serves the conferencing provider's service configuration lookups.
// The provider treats any non-2xx as an outage, so outcomes are carried in
// the response body action instead of the HTTP status.
type Handler struct {
	service policy.Service
}

func NewHandler(service policy.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/service/configuration", h.ServiceConfiguration)
}

func (h *Handler) ServiceConfiguration(c *gin.Context) {
	resp := h.service.Resolve(
		c.Request.Context(),
		c.Query("local_alias"),
		c.Query("remote_display_name"),
		c.Query("role"),
	)
	c.JSON(http.StatusOK, resp)
}
