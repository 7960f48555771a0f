package handler

import (
	"tradelink_backend/internal/groups/service"
	"tradelink_backend/internal/groups/transport"
	"tradelink_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type HTTPHandler struct {
	svc *service.Service
}

func NewHTTPHandler(svc *service.Service) *HTTPHandler {
	return &HTTPHandler{svc: svc}
}

func (h *HTTPHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("/:id/join", h.Join)
	rg.POST("/:id/leave", h.Leave)
	rg.POST("/:id/read", h.MarkRead)
}

// List returns the caller's groups with unread counts.
func (h *HTTPHandler) List(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	groups, err := h.svc.List(c.Request.Context(), identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"groups": transport.ToGroupResponses(groups)})
}

func (h *HTTPHandler) Join(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	groupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, 400, "invalid group id", nil)
		return
	}

	group, err := h.svc.Join(c.Request.Context(), identity.UserID(), groupID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToJoinedResponse(group))
}

func (h *HTTPHandler) Leave(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	groupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, 400, "invalid group id", nil)
		return
	}

	if err := h.svc.Leave(c.Request.Context(), identity.UserID(), groupID); httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"status": "ok"})
}

// MarkRead advances the caller's read watermark for the group.
func (h *HTTPHandler) MarkRead(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	groupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, 400, "invalid group id", nil)
		return
	}

	lastReadAt, err := h.svc.MarkRead(c.Request.Context(), identity.UserID(), groupID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.MarkReadResponse{LastReadAt: lastReadAt})
}
