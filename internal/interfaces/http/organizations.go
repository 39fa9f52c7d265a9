package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fieldserve/workorder/internal/domain/entity"
	"github.com/fieldserve/workorder/pkg/utils"
)

// ListOrganizations handles GET /api/organizations
func (h *Handlers) ListOrganizations(c *gin.Context) {
	orgs, err := h.organizations.List(c.Request.Context())
	if err != nil {
		h.internalError(c, "failed to list organizations", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: orgs})
}

var allowedOrgTypes = map[string]bool{
	entity.OrgTypeInternal:      true,
	entity.OrgTypePartner:       true,
	entity.OrgTypeSubcontractor: true,
}

// CreateOrganizationRequest is the body of POST /api/organizations
type CreateOrganizationRequest struct {
	Name  string `json:"name" binding:"required"`
	Type  string `json:"type" binding:"required"`
	Email string `json:"email"`
}

// CreateOrganization handles POST /api/organizations
func (h *Handlers) CreateOrganization(c *gin.Context) {
	var req CreateOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}
	if !allowedOrgTypes[req.Type] {
		h.badRequest(c, "type must be internal, partner or subcontractor")
		return
	}
	if req.Email != "" {
		if err := utils.ValidateEmail(req.Email); err != nil {
			h.badRequest(c, err.Error())
			return
		}
	}

	org := &entity.Organization{
		Name:  utils.SanitizeString(req.Name),
		Type:  req.Type,
		Email: req.Email,
	}
	if err := h.organizations.Create(c.Request.Context(), org); err != nil {
		h.internalError(c, "failed to create organization", err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: org})
}

// CreateProfileRequest is the body of POST /api/profiles
type CreateProfileRequest struct {
	Email          string `json:"email" binding:"required"`
	FullName       string `json:"full_name"`
	Role           string `json:"role"`
	OrganizationID int64  `json:"organization_id" binding:"required"`
}

// CreateProfile handles POST /api/profiles, sending the welcome email on
// success
func (h *Handlers) CreateProfile(c *gin.Context) {
	var req CreateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}
	if err := utils.ValidateEmail(req.Email); err != nil {
		h.badRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()

	profile := &entity.Profile{
		Email:    req.Email,
		FullName: utils.SanitizeString(req.FullName),
		Role:     req.Role,
	}
	if err := h.organizations.CreateProfile(ctx, profile, req.OrganizationID); err != nil {
		h.internalError(c, "failed to create profile", err)
		return
	}

	if h.notifier != nil {
		h.notifier.Welcome(ctx, profile)
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: profile})
}

// GetSetting handles GET /api/settings/:key
func (h *Handlers) GetSetting(c *gin.Context) {
	key := c.Param("key")

	value, err := h.settings.Get(c.Request.Context(), key, "")
	if err != nil {
		h.internalError(c, "failed to read setting", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: gin.H{"key": key, "value": value}})
}

// PutSetting handles PUT /api/settings/:key
func (h *Handlers) PutSetting(c *gin.Context) {
	key := c.Param("key")

	var req struct {
		Value string `json:"value" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}

	if err := h.settings.Set(c.Request.Context(), key, req.Value); err != nil {
		h.internalError(c, "failed to write setting", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: gin.H{"key": key, "value": req.Value}})
}
