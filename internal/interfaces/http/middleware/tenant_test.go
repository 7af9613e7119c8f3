package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTenantTestRouter() *gin.Engine {
	router := gin.New()
	router.Use(Tenant())
	router.GET("/vouchers", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func TestTenantMiddleware(t *testing.T) {
	tenantID := uuid.New().String()
	actorID := uuid.New().String()

	tests := []struct {
		name       string
		tenant     string
		actor      string
		wantStatus int
	}{
		{"valid tenant header", tenantID, "", http.StatusOK},
		{"valid tenant and actor", tenantID, actorID, http.StatusOK},
		{"missing tenant header", "", "", http.StatusBadRequest},
		{"malformed tenant header", "not-a-uuid", "", http.StatusBadRequest},
		{"truncated tenant uuid", tenantID[:20], "", http.StatusBadRequest},
		{"malformed actor header", tenantID, "not-a-uuid", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTenantTestRouter()
			req := httptest.NewRequest(http.MethodGet, "/vouchers", nil)
			if tt.tenant != "" {
				req.Header.Set("X-Tenant-ID", tt.tenant)
			}
			if tt.actor != "" {
				req.Header.Set("X-Actor-ID", tt.actor)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestTenantMiddleware_SetsContextValues(t *testing.T) {
	tenantID := uuid.New().String()
	actorID := uuid.New().String()

	router := gin.New()
	router.Use(Tenant())

	var gotTenant, gotActor string
	router.GET("/vouchers", func(c *gin.Context) {
		gotTenant = GetTenantID(c)
		gotActor = GetActorID(c)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/vouchers", nil)
	req.Header.Set("X-Tenant-ID", tenantID)
	req.Header.Set("X-Actor-ID", actorID)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, tenantID, gotTenant)
	assert.Equal(t, actorID, gotActor)
}

func TestGetActorID_AbsentReturnsEmpty(t *testing.T) {
	router := gin.New()
	router.Use(Tenant())

	var gotActor string
	router.GET("/vouchers", func(c *gin.Context) {
		gotActor = GetActorID(c)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/vouchers", nil)
	req.Header.Set("X-Tenant-ID", uuid.New().String())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, gotActor)
}
