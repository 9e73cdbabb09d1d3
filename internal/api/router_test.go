package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/cloudconsole/engine/internal/services"
	"github.com/cloudconsole/engine/internal/tracker"
	"github.com/cloudconsole/engine/pkg/logger"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	if _, err := logger.Init("error", "json"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type listOnly struct {
	services.DeploymentService
}

func (listOnly) ListDeployments(context.Context) ([]tracker.Entry, error) {
	return []tracker.Entry{}, nil
}

func TestRouterAuthIsOptional(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	open := NewRouter(ctx, Dependencies{Service: listOnly{}})
	rr := httptest.NewRecorder()
	open.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/deployments", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())

	secret := []byte("s3cr3t")
	closed := NewRouter(ctx, Dependencies{Service: listOnly{}, HMACSecret: secret})
	rr = httptest.NewRecorder()
	closed.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/deployments", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "console"}).SignedString(secret)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/deployments", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr = httptest.NewRecorder()
	closed.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	closed.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}
