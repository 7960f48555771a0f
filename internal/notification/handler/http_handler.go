package handler

import (
	"context"
	"net/http"
	"strconv"

	"tradelink_backend/internal/notification/service"
	"tradelink_backend/internal/notification/transport"
	"tradelink_backend/platform/httpkit"
	"tradelink_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type HTTPHandler struct {
	svc *service.Service
	val *validator.Validator
}

func NewHTTPHandler(svc *service.Service, val *validator.Validator) *HTTPHandler {
	return &HTTPHandler{svc: svc, val: val}
}

// RegisterUserRoutes mounts the recipient-facing routes.
func (h *HTTPHandler) RegisterUserRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.ListOwn)
	rg.PATCH("/:id/delivered", h.AckDelivered)
	rg.PATCH("/:id/read", h.AckRead)
}

// RegisterAdminRoutes mounts the operator routes.
func (h *HTTPHandler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Create)
	rg.GET("", h.List)
}

func (h *HTTPHandler) Create(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	var req transport.CreateNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	n, err := h.svc.Create(c.Request.Context(), req.ToCreateParams(identity.UserID()))
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.Created(c, n)
}

// List returns notifications with delivery stats.
func (h *HTTPHandler) List(c *gin.Context) {
	page, limit := pagination(c)

	items, total, err := h.svc.ListAll(c.Request.Context(), page, limit)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"items": items, "total": total, "page": page})
}

// ListOwn returns the caller's delivery records.
func (h *HTTPHandler) ListOwn(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	page, limit := pagination(c)

	items, total, err := h.svc.ListForUser(c.Request.Context(), identity.UserID(), page, limit)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"items": items, "total": total, "page": page})
}

func (h *HTTPHandler) AckDelivered(c *gin.Context) {
	h.ack(c, h.svc.AckDelivered)
}

func (h *HTTPHandler) AckRead(c *gin.Context) {
	h.ack(c, h.svc.AckRead)
}

func (h *HTTPHandler) ack(c *gin.Context, fn func(ctx context.Context, userID, notificationID uuid.UUID) error) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	notificationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid notification id", nil)
		return
	}

	if err := fn(c.Request.Context(), identity.UserID(), notificationID); httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"status": "ok"})
}

func pagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 50 {
		limit = 50
	}
	return page, limit
}
