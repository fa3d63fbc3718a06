package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecas/approval-api/internal/dto"
	"github.com/ecas/approval-api/internal/middleware"
	"github.com/ecas/approval-api/internal/models"
	"github.com/ecas/approval-api/internal/service"
	appErrors "github.com/ecas/approval-api/pkg/errors"
	"github.com/ecas/approval-api/pkg/response"
)

type permissionServiceMock struct {
	submitReq    dto.SubmitPermissionRequest
	submitDoc    *dto.Upload
	rejectReason string
	approveErr   error
}

func (m *permissionServiceMock) Submit(ctx context.Context, studentID string, req dto.SubmitPermissionRequest, document *dto.Upload) (*models.Permission, error) {
	m.submitReq = req
	m.submitDoc = document
	return &models.Permission{ID: "perm-1", StudentID: studentID, Category: req.Category, Status: models.StatusPending, CurrentLevel: 1}, nil
}

func (m *permissionServiceMock) Approve(ctx context.Context, permissionID, actorID string) (*dto.TransitionResponse, error) {
	if m.approveErr != nil {
		return nil, m.approveErr
	}
	return &dto.TransitionResponse{Message: "Request fully approved", Permission: &models.Permission{ID: permissionID, Status: models.StatusApproved}}, nil
}

func (m *permissionServiceMock) Reject(ctx context.Context, permissionID, actorID, reason string) (*dto.TransitionResponse, error) {
	m.rejectReason = reason
	return &dto.TransitionResponse{Message: "Request rejected", Permission: &models.Permission{ID: permissionID, Status: models.StatusRejected}}, nil
}

func (m *permissionServiceMock) MyPermissions(ctx context.Context, studentID string) ([]models.Permission, error) {
	return []models.Permission{{ID: "perm-1"}, {ID: "perm-2"}}, nil
}

func (m *permissionServiceMock) Status(ctx context.Context, studentID string) (*models.Permission, error) {
	return nil, appErrors.Clone(appErrors.ErrNotFound, "no permission requests found")
}

func (m *permissionServiceMock) History(ctx context.Context, studentID string) ([]models.HistorySummary, error) {
	return []models.HistorySummary{}, nil
}

func (m *permissionServiceMock) Pending(ctx context.Context, actorID string) ([]models.Permission, error) {
	return []models.Permission{{ID: "perm-3"}}, nil
}

func (m *permissionServiceMock) All(ctx context.Context, role models.UserRole) ([]models.Permission, error) {
	return []models.Permission{}, nil
}

func (m *permissionServiceMock) Get(ctx context.Context, permissionID, userID string, role models.UserRole) (*models.Permission, error) {
	return &models.Permission{ID: permissionID}, nil
}

func (m *permissionServiceMock) Ledger(ctx context.Context, permissionID, userID string, role models.UserRole) ([]models.LedgerEntry, error) {
	return []models.LedgerEntry{{Level: 1}}, nil
}

type letterServiceMock struct{}

func (letterServiceMock) Generate(ctx context.Context, permissionID, userID string) (*service.LetterDocument, error) {
	return &service.LetterDocument{Filename: "permission-ECAS-2024-05-0001.pdf", ContentType: "application/pdf", Content: []byte("%PDF-1.3")}, nil
}

type exporterMock struct{}

func (exporterMock) Export(ctx context.Context, userID string, role models.UserRole, format string) (*service.ExportFile, error) {
	return &service.ExportFile{Filename: "permission-history.csv", ContentType: "text/csv", Content: []byte("Reference ID\n")}, nil
}

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]json.RawMessage {
	t.Helper()
	var env map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestPermissionHandlerSubmitJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &permissionServiceMock{}
	h := NewPermissionHandler(svc, letterServiceMock{}, exporterMock{}, 1024)

	payload, _ := json.Marshal(map[string]string{
		"category":          string(models.CategoryScholarship),
		"templateContent":   "Respected sir",
		"reason":            "Scholarship renewal",
		"fromDate":          "2024-05-20",
		"toDate":            "2024-05-21",
		"assignedTeacherId": "t1",
	})
	c, w := newGinContext(http.MethodPost, "/permissions", payload)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "s1", Role: models.RoleStudent})

	h.Submit(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, models.CategoryScholarship, svc.submitReq.Category)
	assert.Equal(t, "t1", svc.submitReq.AssignedTeacherID)
	assert.Nil(t, svc.submitDoc)
}

func TestPermissionHandlerSubmitMultipart(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &permissionServiceMock{}
	h := NewPermissionHandler(svc, letterServiceMock{}, exporterMock{}, 1024)

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	require.NoError(t, mw.WriteField("category", string(models.CategoryRailwayConcession)))
	require.NoError(t, mw.WriteField("subcategory", models.SubcategorySeasonTicket))
	require.NoError(t, mw.WriteField("reason", "Daily travel"))
	part, err := mw.CreateFormFile("document", "id-card.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.4 id card"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	c, w := newGinContext(http.MethodPost, "/permissions", body.Bytes())
	c.Request.Header.Set("Content-Type", mw.FormDataContentType())
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "s1", Role: models.RoleStudent})

	h.Submit(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, models.SubcategorySeasonTicket, svc.submitReq.Subcategory)
	require.NotNil(t, svc.submitDoc)
	assert.Equal(t, "id-card.pdf", svc.submitDoc.Filename)
}

func TestPermissionHandlerSubmitRejectsLargeDocument(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewPermissionHandler(&permissionServiceMock{}, letterServiceMock{}, exporterMock{}, 8)

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	require.NoError(t, mw.WriteField("category", string(models.CategoryScholarship)))
	part, err := mw.CreateFormFile("document", "big.pdf")
	require.NoError(t, err)
	_, err = part.Write(bytes.Repeat([]byte("x"), 64))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	c, w := newGinContext(http.MethodPost, "/permissions", body.Bytes())
	c.Request.Header.Set("Content-Type", mw.FormDataContentType())
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "s1", Role: models.RoleStudent})

	h.Submit(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPermissionHandlerApproveErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &permissionServiceMock{approveErr: appErrors.Clone(appErrors.ErrNotAuthorizedForLevel, "")}
	h := NewPermissionHandler(svc, letterServiceMock{}, exporterMock{}, 0)

	c, w := newGinContext(http.MethodPost, "/permissions/perm-1/approve", nil)
	c.Params = gin.Params{{Key: "id", Value: "perm-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "t2", Role: models.RoleTeacher})

	h.Approve(c)
	require.Equal(t, http.StatusForbidden, w.Code)
	var apiErr appErrors.Error
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w)["error"], &apiErr))
	assert.Equal(t, "NOT_AUTHORIZED", apiErr.Code)

	svc.approveErr = appErrors.Clone(appErrors.ErrInvalidState, "")
	c, w = newGinContext(http.MethodPost, "/permissions/perm-1/approve", nil)
	c.Params = gin.Params{{Key: "id", Value: "perm-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "h1", Role: models.RoleHOD})
	h.Approve(c)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestPermissionHandlerApprove(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewPermissionHandler(&permissionServiceMock{}, letterServiceMock{}, exporterMock{}, 0)

	c, w := newGinContext(http.MethodPost, "/permissions/perm-1/approve", nil)
	c.Params = gin.Params{{Key: "id", Value: "perm-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "p1", Role: models.RolePrincipal})

	h.Approve(c)
	require.Equal(t, http.StatusOK, w.Code)
	var env response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, "Request fully approved", env.Message)
}

func TestPermissionHandlerRejectWithoutBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &permissionServiceMock{}
	h := NewPermissionHandler(svc, letterServiceMock{}, exporterMock{}, 0)

	c, w := newGinContext(http.MethodPost, "/permissions/perm-1/reject", nil)
	c.Params = gin.Params{{Key: "id", Value: "perm-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher})
	h.Reject(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, svc.rejectReason)

	payload, _ := json.Marshal(dto.RejectPermissionRequest{Reason: "Incomplete documents"})
	c, w = newGinContext(http.MethodPost, "/permissions/perm-1/reject", payload)
	c.Params = gin.Params{{Key: "id", Value: "perm-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher})
	h.Reject(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Incomplete documents", svc.rejectReason)
}

func TestPermissionHandlerViews(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewPermissionHandler(&permissionServiceMock{}, letterServiceMock{}, exporterMock{}, 0)
	claims := &models.JWTClaims{UserID: "s1", Role: models.RoleStudent}

	c, w := newGinContext(http.MethodGet, "/permissions/mine", nil)
	c.Set(middleware.ContextUserKey, claims)
	h.Mine(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"total":2}`, string(decodeEnvelope(t, w)["meta"]))

	c, w = newGinContext(http.MethodGet, "/permissions/status", nil)
	c.Set(middleware.ContextUserKey, claims)
	h.Status(c)
	require.Equal(t, http.StatusNotFound, w.Code)

	c, w = newGinContext(http.MethodGet, "/permissions/perm-1/letter", nil)
	c.Params = gin.Params{{Key: "id", Value: "perm-1"}}
	c.Set(middleware.ContextUserKey, claims)
	h.Letter(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "permission-ECAS-2024-05-0001.pdf")

	c, w = newGinContext(http.MethodGet, "/permissions/history/export?format=csv", nil)
	c.Set(middleware.ContextUserKey, claims)
	h.ExportHistory(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
}

func TestPermissionHandlerRequiresClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewPermissionHandler(&permissionServiceMock{}, letterServiceMock{}, exporterMock{}, 0)

	c, w := newGinContext(http.MethodGet, "/permissions/pending", nil)
	h.Pending(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

type notificationServiceMock struct {
	markErr error
}

func (m *notificationServiceMock) List(ctx context.Context, userID string) ([]models.Notification, error) {
	return []models.Notification{{ID: "n1", UserID: userID}}, nil
}

func (m *notificationServiceMock) UnreadCount(ctx context.Context, userID string) (int, error) {
	return 3, nil
}

func (m *notificationServiceMock) MarkRead(ctx context.Context, id, userID string) error {
	return m.markErr
}

func (m *notificationServiceMock) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return 3, nil
}

func TestNotificationHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &notificationServiceMock{}
	h := NewNotificationHandler(svc)
	claims := &models.JWTClaims{UserID: "s1", Role: models.RoleStudent}

	c, w := newGinContext(http.MethodGet, "/notifications/unread-count", nil)
	c.Set(middleware.ContextUserKey, claims)
	h.UnreadCount(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"count":3}`, string(decodeEnvelope(t, w)["data"]))

	svc.markErr = appErrors.Clone(appErrors.ErrForbidden, "notification belongs to another user")
	c, w = newGinContext(http.MethodPatch, "/notifications/n9/read", nil)
	c.Params = gin.Params{{Key: "id", Value: "n9"}}
	c.Set(middleware.ContextUserKey, claims)
	h.MarkRead(c)
	require.Equal(t, http.StatusForbidden, w.Code)

	c, w = newGinContext(http.MethodPatch, "/notifications/read-all", nil)
	c.Set(middleware.ContextUserKey, claims)
	h.MarkAllRead(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"updated":3}`, string(decodeEnvelope(t, w)["data"]))
}

type authServiceMock struct {
	signature *dto.Upload
}

func (m *authServiceMock) Register(ctx context.Context, req models.RegisterRequest, signature *dto.Upload) (*models.AuthResponse, error) {
	m.signature = signature
	return &models.AuthResponse{Token: "token", User: &models.User{ID: "u1", Email: req.Email, Role: req.Role}}, nil
}

func (m *authServiceMock) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	if req.Role != models.RoleTeacher {
		return nil, appErrors.ErrInvalidCredentials
	}
	return &models.AuthResponse{Token: "token", User: &models.User{ID: "t1", Role: models.RoleTeacher}}, nil
}

func (m *authServiceMock) Me(ctx context.Context, userID string) (*models.User, error) {
	return &models.User{ID: userID}, nil
}

func (m *authServiceMock) UpdateSignature(ctx context.Context, userID string, signature dto.Upload) (*models.User, error) {
	m.signature = &signature
	return &models.User{ID: userID}, nil
}

func (m *authServiceMock) Teachers(ctx context.Context) ([]models.TeacherOption, error) {
	return []models.TeacherOption{{ID: "t1", Name: "Tara"}}, nil
}

func TestAuthHandlerLogin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewAuthHandler(&authServiceMock{}, 1024)

	payload, _ := json.Marshal(models.LoginRequest{Email: "t@college.edu", Password: "pw", Role: models.RoleTeacher})
	c, w := newGinContext(http.MethodPost, "/auth/login", payload)
	h.Login(c)
	require.Equal(t, http.StatusOK, w.Code)

	payload, _ = json.Marshal(models.LoginRequest{Email: "t@college.edu", Password: "pw", Role: models.RoleHOD})
	c, w = newGinContext(http.MethodPost, "/auth/login", payload)
	h.Login(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandlerRegisterMultipartSignature(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &authServiceMock{}
	h := NewAuthHandler(svc, 1024)

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	require.NoError(t, mw.WriteField("name", "Hari"))
	require.NoError(t, mw.WriteField("email", "hari@college.edu"))
	require.NoError(t, mw.WriteField("password", "secret1"))
	require.NoError(t, mw.WriteField("role", "hod"))
	require.NoError(t, mw.WriteField("assignedDepartment", "CSE"))
	part, err := mw.CreateFormFile("signature", "sig.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("\x89PNG"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	c, w := newGinContext(http.MethodPost, "/auth/register", body.Bytes())
	c.Request.Header.Set("Content-Type", mw.FormDataContentType())
	h.Register(c)
	require.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, svc.signature)
	assert.Equal(t, "sig.png", svc.signature.Filename)
}

func TestAuthHandlerUpdateSignatureRequiresFile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewAuthHandler(&authServiceMock{}, 1024)

	c, w := newGinContext(http.MethodPut, "/auth/signature", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "h1", Role: models.RoleHOD})
	h.UpdateSignature(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMetricsHandlerHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewMetricsHandler(service.NewMetricsService(), nil)

	c, w := newGinContext(http.MethodGet, "/health", nil)
	h.Health(c)
	require.Equal(t, http.StatusOK, w.Code)
}
