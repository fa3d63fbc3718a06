package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ecas/approval-api/internal/dto"
	"github.com/ecas/approval-api/internal/models"
	"github.com/ecas/approval-api/internal/service"
	appErrors "github.com/ecas/approval-api/pkg/errors"
	"github.com/ecas/approval-api/pkg/response"
)

type permissionService interface {
	Submit(ctx context.Context, studentID string, req dto.SubmitPermissionRequest, document *dto.Upload) (*models.Permission, error)
	Approve(ctx context.Context, permissionID, actorID string) (*dto.TransitionResponse, error)
	Reject(ctx context.Context, permissionID, actorID, reason string) (*dto.TransitionResponse, error)
	MyPermissions(ctx context.Context, studentID string) ([]models.Permission, error)
	Status(ctx context.Context, studentID string) (*models.Permission, error)
	History(ctx context.Context, studentID string) ([]models.HistorySummary, error)
	Pending(ctx context.Context, actorID string) ([]models.Permission, error)
	All(ctx context.Context, role models.UserRole) ([]models.Permission, error)
	Get(ctx context.Context, permissionID, userID string, role models.UserRole) (*models.Permission, error)
	Ledger(ctx context.Context, permissionID, userID string, role models.UserRole) ([]models.LedgerEntry, error)
}

type letterService interface {
	Generate(ctx context.Context, permissionID, userID string) (*service.LetterDocument, error)
}

type historyExporter interface {
	Export(ctx context.Context, userID string, role models.UserRole, format string) (*service.ExportFile, error)
}

// PermissionHandler exposes the permission request endpoints.
type PermissionHandler struct {
	permissions    permissionService
	letters        letterService
	exports        historyExporter
	maxUploadBytes int64
}

// NewPermissionHandler constructs the handler.
func NewPermissionHandler(permissions permissionService, letters letterService, exports historyExporter, maxUploadBytes int64) *PermissionHandler {
	return &PermissionHandler{permissions: permissions, letters: letters, exports: exports, maxUploadBytes: maxUploadBytes}
}

// Submit godoc
// @Summary Submit permission request
// @Description Students submit a request, as JSON or multipart with an optional supporting document.
// @Tags Permissions
// @Accept json,mpfd
// @Produce json
// @Security BearerAuth
// @Param payload body dto.SubmitPermissionRequest true "Request payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /permissions [post]
func (h *PermissionHandler) Submit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.SubmitPermissionRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid permission payload"))
		return
	}
	document, err := formUpload(c, "document", h.maxUploadBytes)
	if err != nil {
		response.Error(c, err)
		return
	}

	p, err := h.permissions.Submit(c.Request.Context(), claims.UserID, req, document)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, p)
}

// Approve godoc
// @Summary Approve at current level
// @Tags Permissions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Permission ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /permissions/{id}/approve [post]
func (h *PermissionHandler) Approve(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	res, err := h.permissions.Approve(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, res.Message, res.Permission)
}

// Reject godoc
// @Summary Reject at current level
// @Tags Permissions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Permission ID"
// @Param payload body dto.RejectPermissionRequest false "Rejection reason"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /permissions/{id}/reject [post]
func (h *PermissionHandler) Reject(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.RejectPermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid rejection payload"))
		return
	}

	res, err := h.permissions.Reject(c.Request.Context(), c.Param("id"), claims.UserID, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, res.Message, res.Permission)
}

// Mine godoc
// @Summary My permission requests
// @Tags Permissions
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /permissions/mine [get]
func (h *PermissionHandler) Mine(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	items, err := h.permissions.MyPermissions(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, map[string]interface{}{"total": len(items)})
}

// Status godoc
// @Summary Latest request status
// @Tags Permissions
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /permissions/status [get]
func (h *PermissionHandler) Status(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	p, err := h.permissions.Status(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, p)
}

// History godoc
// @Summary Request history
// @Tags Permissions
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /permissions/history [get]
func (h *PermissionHandler) History(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	items, err := h.permissions.History(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items)
}

// ExportHistory godoc
// @Summary Export request history
// @Description Students export their own history, the principal exports everything.
// @Tags Permissions
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet,text/csv
// @Security BearerAuth
// @Param format query string false "xlsx (default) or csv"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /permissions/history/export [get]
func (h *PermissionHandler) ExportHistory(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	file, err := h.exports.Export(c.Request.Context(), claims.UserID, claims.Role, c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Content)
}

// Pending godoc
// @Summary Requests awaiting me
// @Tags Permissions
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /permissions/pending [get]
func (h *PermissionHandler) Pending(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	items, err := h.permissions.Pending(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, map[string]interface{}{"total": len(items)})
}

// All godoc
// @Summary All requests
// @Tags Permissions
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /permissions [get]
func (h *PermissionHandler) All(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	items, err := h.permissions.All(c.Request.Context(), claims.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, map[string]interface{}{"total": len(items)})
}

// Get godoc
// @Summary Permission detail
// @Tags Permissions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Permission ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /permissions/{id} [get]
func (h *PermissionHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	p, err := h.permissions.Get(c.Request.Context(), c.Param("id"), claims.UserID, claims.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, p)
}

// Ledger godoc
// @Summary Approval ledger
// @Tags Permissions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Permission ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /permissions/{id}/ledger [get]
func (h *PermissionHandler) Ledger(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	entries, err := h.permissions.Ledger(c.Request.Context(), c.Param("id"), claims.UserID, claims.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries)
}

// Letter godoc
// @Summary Download permission letter
// @Description Available to the requester once the request is fully approved.
// @Tags Permissions
// @Produce application/pdf
// @Security BearerAuth
// @Param id path string true "Permission ID"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /permissions/{id}/letter [get]
func (h *PermissionHandler) Letter(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	doc, err := h.letters.Generate(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, doc.Filename, doc.ContentType, doc.Content)
}
