package handler

import (
	"errors"
	"net/http"

	"github.com/apascualco/cinemesh/internal/application"
	"github.com/apascualco/cinemesh/internal/domain"
	"github.com/gin-gonic/gin"
)

type RegistryHandler struct {
	registry *application.Registry
}

func NewRegistryHandler(registry *application.Registry) *RegistryHandler {
	return &RegistryHandler{registry: registry}
}

func (h *RegistryHandler) Register(c *gin.Context) {
	var req domain.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := h.registry.Register(&req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "registration_failed",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *RegistryHandler) Heartbeat(c *gin.Context) {
	var req domain.HeartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.registry.Heartbeat(req.InstanceID); err != nil {
		h.instanceError(c, err, "heartbeat_failed")
		return
	}

	c.JSON(http.StatusOK, domain.HeartbeatResponse{Status: "ok"})
}

func (h *RegistryHandler) Deregister(c *gin.Context) {
	var req domain.DeregisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.registry.Deregister(req.InstanceID); err != nil {
		h.instanceError(c, err, "deregister_failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deregistered"})
}

func (h *RegistryHandler) ListServices(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"services": h.registry.GetAllServices(),
	})
}

// ServiceByName is what remote lookups poll: the healthy instances of one
// service. An unknown service is a 404 so callers can tell it from an
// outage.
func (h *RegistryHandler) ServiceByName(c *gin.Context) {
	name := c.Param("name")
	if len(h.registry.GetInstances(name)) == 0 {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "service_not_found",
			"message": domain.ErrServiceNotFound.Error() + ": " + name,
		})
		return
	}

	instances := h.registry.GetHealthyInstances(name)
	if instances == nil {
		instances = []*domain.ServiceInstance{}
	}
	c.JSON(http.StatusOK, gin.H{
		"service":   name,
		"instances": instances,
	})
}

func (h *RegistryHandler) instanceError(c *gin.Context, err error, code string) {
	if errors.Is(err, domain.ErrInstanceNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "instance_not_found",
			"message": "the specified instance does not exist",
		})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":   code,
		"message": err.Error(),
	})
}
