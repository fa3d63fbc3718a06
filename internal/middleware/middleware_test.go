package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecas/approval-api/internal/models"
	"github.com/ecas/approval-api/internal/service"
	appErrors "github.com/ecas/approval-api/pkg/errors"
)

type fakeValidator struct {
	claims *models.JWTClaims
}

func (f fakeValidator) ValidateToken(token string) (*models.JWTClaims, error) {
	if token != "good" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return f.claims, nil
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers = append(handlers, func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/x", handlers...)
	return r
}

func perform(r *gin.Engine, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWT(t *testing.T) {
	validator := fakeValidator{claims: &models.JWTClaims{UserID: "s1", Role: models.RoleStudent}}
	var seen *models.JWTClaims
	r := newRouter(JWT(validator), func(c *gin.Context) {
		seen, _ = Claims(c)
	})

	assert.Equal(t, http.StatusUnauthorized, perform(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, perform(r, "Token good").Code)
	assert.Equal(t, http.StatusUnauthorized, perform(r, "Bearer bad").Code)

	w := perform(r, "Bearer good")
	assert.Equal(t, http.StatusNoContent, w.Code)
	require.NotNil(t, seen)
	assert.Equal(t, "s1", seen.UserID)
}

func TestRequireRoles(t *testing.T) {
	student := fakeValidator{claims: &models.JWTClaims{UserID: "s1", Role: models.RoleStudent}}
	hod := fakeValidator{claims: &models.JWTClaims{UserID: "h1", Role: models.RoleHOD}}

	assert.Equal(t, http.StatusForbidden, perform(newRouter(JWT(student), RequireAuthority()), "Bearer good").Code)
	assert.Equal(t, http.StatusNoContent, perform(newRouter(JWT(hod), RequireAuthority()), "Bearer good").Code)
	assert.Equal(t, http.StatusUnauthorized, perform(newRouter(RequireRoles(models.RoleStudent)), "").Code)
}

func TestErrorCaptureRecoversPanic(t *testing.T) {
	r := newRouter(ErrorCapture(nil), func(c *gin.Context) { panic("boom") })

	w := perform(r, "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), appErrors.ErrInternal.Code)
}

func TestMetricsObservesRequests(t *testing.T) {
	metrics := service.NewMetricsService()
	r := newRouter(Metrics(metrics))

	perform(r, "")
	families, err := metrics.Registry().Gather()
	require.NoError(t, err)
	found := false
	for _, mf := range families {
		if mf.GetName() == "http_requests_total" {
			found = true
			require.Len(t, mf.GetMetric(), 1)
			assert.Equal(t, float64(1), mf.GetMetric()[0].GetCounter().GetValue())
		}
	}
	assert.True(t, found)
}
