package http

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/autoclaim/internal/application/service"
	"github.com/garyjia/autoclaim/internal/domain/entity"
	"github.com/garyjia/autoclaim/internal/domain/workflow"
	"github.com/garyjia/autoclaim/internal/infrastructure/document"
	"github.com/garyjia/autoclaim/internal/infrastructure/export"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	deps   Dependencies
	logger Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(deps Dependencies, logger Logger) *Handlers {
	return &Handlers{
		deps:   deps,
		logger: logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string      `json:"status"`
	Timestamp  string      `json:"timestamp"`
	Components interface{} `json:"components,omitempty"`
}

// LoginRequest selects a role and carries its credential input.
// Employees send name, admins send token.
type LoginRequest struct {
	Role  string `json:"role" binding:"required"`
	Name  string `json:"name"`
	Token string `json:"token"`
}

// ThemeRequest sets the presentation preference
type ThemeRequest struct {
	Theme string `json:"theme" binding:"required"`
}

// ResetRequest must carry confirm=true
type ResetRequest struct {
	Confirm bool `json:"confirm"`
}

// TypeRequest selects the reimbursement type of the draft
type TypeRequest struct {
	Type string `json:"type" binding:"required"`
}

// RejectRequest carries the mandatory rejection reason
type RejectRequest struct {
	Reason string `json:"reason"`
}

// DraftFileResponse describes an attached document without its payload
type DraftFileResponse struct {
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
	Size     int    `json:"size"`
}

// DraftResponse represents the filing draft in API responses
type DraftResponse struct {
	Files  []DraftFileResponse `json:"files"`
	Months []string            `json:"months"`
	Type   string              `json:"type"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	status := http.StatusOK
	if h.deps.Health != nil {
		healthy, components := h.deps.Health()
		response.Components = components
		if !healthy {
			response.Status = "degraded"
			status = http.StatusServiceUnavailable
		}
	}

	c.JSON(status, Response{
		Success: status == http.StatusOK,
		Data:    response,
	})
}

// Login handles POST /api/session/login
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid login request")
		return
	}

	role := entity.Role(req.Role)
	input := req.Name
	if role == entity.RoleAdmin {
		input = req.Token
	}

	session, err := h.deps.Sessions.Login(c.Request.Context(), role, input)
	if err != nil {
		h.fail(c, "Login refused", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: session})
}

// Logout handles POST /api/session/logout
func (h *Handlers) Logout(c *gin.Context) {
	session := currentSession(c)
	if err := h.deps.Sessions.Logout(c.Request.Context(), session.ID); err != nil {
		h.fail(c, "Logout failed", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true})
}

// CurrentSession handles GET /api/session
func (h *Handlers) CurrentSession(c *gin.Context) {
	c.JSON(http.StatusOK, Response{Success: true, Data: currentSession(c)})
}

// GetTheme handles GET /api/preferences/theme
func (h *Handlers) GetTheme(c *gin.Context) {
	theme, err := h.deps.Sessions.GetTheme(c.Request.Context())
	if err != nil {
		h.fail(c, "Failed to load theme", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: gin.H{"theme": theme}})
}

// SetTheme handles PUT /api/preferences/theme
func (h *Handlers) SetTheme(c *gin.Context) {
	var req ThemeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "theme is required")
		return
	}
	if err := h.deps.Sessions.SetTheme(c.Request.Context(), entity.Theme(req.Theme)); err != nil {
		h.fail(c, "Failed to save theme", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: gin.H{"theme": req.Theme}})
}

// Reset handles POST /api/reset
func (h *Handlers) Reset(c *gin.Context) {
	var req ResetRequest
	if err := c.ShouldBindJSON(&req); err != nil || !req.Confirm {
		badRequest(c, "full reset requires {\"confirm\": true}")
		return
	}
	if err := h.deps.Sessions.Reset(c.Request.Context()); err != nil {
		h.fail(c, "Full reset failed", err)
		return
	}
	h.logger.Warn("Full reset performed", "client_ip", c.ClientIP())
	c.JSON(http.StatusOK, Response{Success: true})
}

// GetDraft handles GET /api/draft
func (h *Handlers) GetDraft(c *gin.Context) {
	draft, err := h.deps.Drafts.Get(currentSession(c))
	if err != nil {
		h.fail(c, "Failed to load draft", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: toDraftResponse(draft)})
}

// ResetDraft handles DELETE /api/draft
func (h *Handlers) ResetDraft(c *gin.Context) {
	session := currentSession(c)
	h.deps.Drafts.Reset(session.ID)

	draft, err := h.deps.Drafts.Get(session)
	if err != nil {
		h.fail(c, "Failed to load draft", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: toDraftResponse(draft)})
}

// AddDraftFiles handles POST /api/draft/files (multipart field "files")
func (h *Handlers) AddDraftFiles(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			abortWith(c, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		badRequest(c, "multipart form with files is required")
		return
	}

	handles := document.FromMultipart(form.File["files"])
	draft, err := h.deps.Drafts.AddFiles(c.Request.Context(), currentSession(c), handles)
	if err != nil {
		status, message := errorStatus(err)
		h.logger.Warn("Documents rejected", "error", err)
		var data interface{}
		// Some files were attached; return the draft alongside the failure
		if draft != nil {
			data = toDraftResponse(draft)
		}
		c.JSON(status, Response{Success: false, Data: data, Error: message})
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: toDraftResponse(draft)})
}

// RemoveDraftFile handles DELETE /api/draft/files/:index
func (h *Handlers) RemoveDraftFile(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		badRequest(c, "index must be a number")
		return
	}

	draft, err := h.deps.Drafts.RemoveFile(currentSession(c), index)
	if err != nil {
		h.fail(c, "Failed to remove document", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: toDraftResponse(draft)})
}

// ToggleDraftMonth handles POST /api/draft/months/:month
func (h *Handlers) ToggleDraftMonth(c *gin.Context) {
	draft, err := h.deps.Drafts.ToggleMonth(currentSession(c), c.Param("month"))
	if err != nil {
		h.fail(c, "Failed to toggle month", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: toDraftResponse(draft)})
}

// SetDraftType handles PUT /api/draft/type
func (h *Handlers) SetDraftType(c *gin.Context) {
	var req TypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "type is required")
		return
	}

	draft, err := h.deps.Drafts.SetType(currentSession(c), entity.ReimbursementType(req.Type))
	if err != nil {
		h.fail(c, "Failed to set type", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: toDraftResponse(draft)})
}

// SubmitDraft handles POST /api/claims/submit
func (h *Handlers) SubmitDraft(c *gin.Context) {
	claim, err := h.deps.Drafts.Submit(c.Request.Context(), currentSession(c))
	if err != nil {
		h.fail(c, "Submission failed", err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: claim})
}

// ListMyClaims handles GET /api/claims/mine
func (h *Handlers) ListMyClaims(c *gin.Context) {
	claims, err := h.deps.Claims.ListMine(c.Request.Context(), currentSession(c))
	if err != nil {
		h.fail(c, "Failed to list claims", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: claims})
}

// ListClaims handles GET /api/admin/claims?range=
func (h *Handlers) ListClaims(c *gin.Context) {
	r, err := service.ParseDateRange(c.Query("range"))
	if err != nil {
		h.fail(c, "Invalid range", err)
		return
	}

	claims, err := h.deps.Claims.List(c.Request.Context(), currentSession(c), r)
	if err != nil {
		h.fail(c, "Failed to list claims", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: claims})
}

// GetClaim handles GET /api/admin/claims/:id
func (h *Handlers) GetClaim(c *gin.Context) {
	claim, err := h.deps.Claims.Get(c.Request.Context(), currentSession(c), c.Param("id"))
	if err != nil {
		h.fail(c, "Failed to load claim", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: claim})
}

// Stats handles GET /api/admin/stats?range=
func (h *Handlers) Stats(c *gin.Context) {
	r, err := service.ParseDateRange(c.Query("range"))
	if err != nil {
		h.fail(c, "Invalid range", err)
		return
	}

	stats, err := h.deps.Claims.Stats(c.Request.Context(), currentSession(c), r)
	if err != nil {
		h.fail(c, "Failed to compute stats", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: stats})
}

// ExportClaims handles GET /api/admin/claims/export?range=
func (h *Handlers) ExportClaims(c *gin.Context) {
	r, err := service.ParseDateRange(c.Query("range"))
	if err != nil {
		h.fail(c, "Invalid range", err)
		return
	}

	claims, err := h.deps.Claims.List(c.Request.Context(), currentSession(c), r)
	if err != nil {
		h.fail(c, "Failed to list claims", err)
		return
	}

	filename := fmt.Sprintf("autoclaim-%s-%s.xlsx", r, time.Now().UTC().Format("20060102"))
	c.Header("Content-Type", export.ContentType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Status(http.StatusOK)

	if err := h.deps.Exporter.Export(c.Request.Context(), claims, c.Writer); err != nil {
		// Headers are already out; all we can do is log
		h.logger.Error("Failed to export claims", "error", err)
	}
}

// ApproveClaim handles POST /api/admin/claims/:id/approve
func (h *Handlers) ApproveClaim(c *gin.Context) {
	claim, err := h.deps.Claims.Approve(c.Request.Context(), currentSession(c), c.Param("id"))
	if err != nil {
		h.fail(c, "Approval failed", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: claim})
}

// RejectClaim handles POST /api/admin/claims/:id/reject
func (h *Handlers) RejectClaim(c *gin.Context) {
	var req RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "A rejection reason is required.")
		return
	}

	claim, err := h.deps.Claims.Reject(c.Request.Context(), currentSession(c), c.Param("id"), req.Reason)
	if err != nil {
		h.fail(c, "Rejection failed", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: claim})
}

// DeleteClaim handles DELETE /api/admin/claims/:id
func (h *Handlers) DeleteClaim(c *gin.Context) {
	if err := h.deps.Claims.Delete(c.Request.Context(), currentSession(c), c.Param("id")); err != nil {
		h.fail(c, "Delete failed", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true})
}

// ClearClaims handles DELETE /api/admin/claims
func (h *Handlers) ClearClaims(c *gin.Context) {
	if err := h.deps.Claims.ClearAll(c.Request.Context(), currentSession(c)); err != nil {
		h.fail(c, "Clear failed", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true})
}

// fail logs err and writes the mapped error response
func (h *Handlers) fail(c *gin.Context, msg string, err error) {
	status, _ := errorStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(msg, "error", err, "path", c.Request.URL.Path)
	} else {
		h.logger.Warn(msg, "error", err, "status", status)
	}
	writeError(c, err)
}

// writeError writes the response for err without logging it
func writeError(c *gin.Context, err error) {
	status, message := errorStatus(err)
	c.JSON(status, Response{Success: false, Error: message})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, Response{Success: false, Error: message})
}

// errorStatus maps domain errors to an HTTP status and a user-facing message
func errorStatus(err error) (int, string) {
	var (
		ve *entity.ValidationError
		ef *entity.ExtractionFailure
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, ve.Message
	case errors.As(err, &ef):
		return http.StatusUnprocessableEntity, ef.Message
	case errors.Is(err, entity.ErrSessionNotFound):
		return http.StatusUnauthorized, entity.ErrSessionNotFound.Error()
	case errors.Is(err, entity.ErrForbidden):
		return http.StatusForbidden, entity.ErrForbidden.Error()
	case errors.Is(err, entity.ErrClaimNotFound):
		return http.StatusNotFound, entity.ErrClaimNotFound.Error()
	case errors.Is(err, workflow.ErrInvalidTransition):
		return http.StatusConflict, "claim has already been decided"
	case errors.Is(err, entity.ErrSubmissionInProgress):
		return http.StatusConflict, entity.ErrSubmissionInProgress.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func toDraftResponse(d *service.Draft) DraftResponse {
	files := make([]DraftFileResponse, 0, len(d.Files))
	for _, f := range d.Files {
		files = append(files, DraftFileResponse{
			Name:     f.OriginalName,
			MimeType: f.MimeType,
			Size:     base64DecodedLen(f.EncodedData),
		})
	}
	return DraftResponse{
		Files:  files,
		Months: d.Months,
		Type:   string(d.Type),
	}
}

// base64DecodedLen is the byte size of standard padded base64 data
func base64DecodedLen(s string) int {
	return base64.StdEncoding.DecodedLen(len(s)) - strings.Count(s[max(0, len(s)-2):], "=")
}
