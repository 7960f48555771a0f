package handler

import (
	"net/http"
	"strconv"

	"tradelink_backend/internal/leads/service"
	"tradelink_backend/internal/leads/transport"
	"tradelink_backend/platform/httpkit"
	"tradelink_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request body"
	msgValidationFailed = "validation failed"
)

type HTTPHandler struct {
	svc *service.Service
	val *validator.Validator
}

func NewHTTPHandler(svc *service.Service, val *validator.Validator) *HTTPHandler {
	return &HTTPHandler{svc: svc, val: val}
}

// RegisterPublicRoutes mounts member-facing routes.
func (h *HTTPHandler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.POST("/leads", h.Submit)
	rg.GET("/groups/:id/leads", h.Feed)
}

// RegisterModerationRoutes mounts the moderation queue routes.
func (h *HTTPHandler) RegisterModerationRoutes(rg *gin.RouterGroup) {
	rg.GET("/pending", h.ListPending)
	rg.POST("/:id/decision", h.Decide)
	rg.POST("/direct", h.PostDirect)
}

func (h *HTTPHandler) Submit(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	var req transport.SubmitLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	groupID, err := uuid.Parse(req.GroupID)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid group id", nil)
		return
	}

	lead, err := h.svc.Submit(c.Request.Context(), identity.UserID(), identity.CountryCode(), groupID, req.Payload())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.Created(c, transport.ToLeadResponse(lead))
}

// ListPending returns the moderation queue, country-scoped for admins.
func (h *HTTPHandler) ListPending(c *gin.Context) {
	moderator, ok := moderatorFrom(c)
	if !ok {
		return
	}

	leads, err := h.svc.ListPending(c.Request.Context(), moderator)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"leads": transport.ToLeadResponses(leads)})
}

func (h *HTTPHandler) Decide(c *gin.Context) {
	moderator, ok := moderatorFrom(c)
	if !ok {
		return
	}

	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid lead id", nil)
		return
	}

	var req transport.DecideLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	lead, err := h.svc.Decide(c.Request.Context(), moderator, leadID, req.Action, req.Comment)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToLeadResponse(lead))
}

func (h *HTTPHandler) PostDirect(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	moderator, ok := moderatorFrom(c)
	if !ok {
		return
	}

	var req transport.DirectPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	groupID, err := uuid.Parse(req.GroupID)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid group id", nil)
		return
	}

	approved, err := h.svc.PostDirect(c.Request.Context(), moderator, identity.CountryCode(), groupID, req.Payload())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.Created(c, transport.ToApprovedLeadResponse(approved))
}

// Feed returns the approved-lead feed of a group.
func (h *HTTPHandler) Feed(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	groupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid group id", nil)
		return
	}

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

	leads, total, err := h.svc.Feed(c.Request.Context(), identity.UserID(), groupID, page, limit)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{
		"items": transport.ToApprovedLeadResponses(leads),
		"total": total,
		"page":  page,
	})
}

// moderatorFrom builds the deciding actor from the request identity.
// Superadmins moderate unscoped; admins carry their country.
func moderatorFrom(c *gin.Context) (service.Moderator, bool) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return service.Moderator{}, false
	}

	moderator := service.Moderator{ID: identity.UserID()}
	if !identity.HasRole(httpkit.RoleSuperadmin) {
		country := identity.CountryCode()
		moderator.CountryCode = &country
	}
	return moderator, true
}
