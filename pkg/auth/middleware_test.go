package auth

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prospectlab/prospector/internal/config"
)

func newTestMiddleware(t *testing.T) (*Middleware, *config.Config) {
	t.Helper()
	cfg := &config.Config{}
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Auth.ManualMinerToken = "miner-shared-token"
	return NewMiddleware(cfg, slog.Default()), cfg
}

func invoke(mw echo.MiddlewareFunc, authHeader string) (*httptest.ResponseRecorder, *Tenant, error) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set(echo.HeaderAuthorization, authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var seen *Tenant
	err := mw(func(c echo.Context) error {
		seen = GetTenant(c)
		return c.NoContent(http.StatusOK)
	})(c)
	return rec, seen, err
}

func TestRequireAuthValidToken(t *testing.T) {
	mw, cfg := newTestMiddleware(t)
	tenantID := uuid.New()
	token, err := SignTenantToken(cfg.Auth.JWTSecret, tenantID)
	require.NoError(t, err)

	_, tenant, err := invoke(mw.RequireAuth(), "Bearer "+token)
	require.NoError(t, err)
	require.NotNil(t, tenant)
	assert.Equal(t, tenantID, tenant.ID)
	assert.False(t, tenant.ManualMiner)
}

func TestRequireAuthRejectsMissingAndBadTokens(t *testing.T) {
	mw, _ := newTestMiddleware(t)

	_, _, err := invoke(mw.RequireAuth(), "")
	assert.Error(t, err)

	_, _, err = invoke(mw.RequireAuth(), "Bearer not-a-jwt")
	assert.Error(t, err)

	// Signed with the wrong secret
	token, signErr := SignTenantToken("other-secret", uuid.New())
	require.NoError(t, signErr)
	_, _, err = invoke(mw.RequireAuth(), "Bearer "+token)
	assert.Error(t, err)
}

func TestManualMinerToken(t *testing.T) {
	mw, _ := newTestMiddleware(t)

	_, tenant, err := invoke(mw.RequireAuthOrManualMiner(), "Bearer miner-shared-token")
	require.NoError(t, err)
	require.NotNil(t, tenant)
	assert.True(t, tenant.ManualMiner)

	// The shared token is not accepted on JWT-only routes
	_, _, err = invoke(mw.RequireAuth(), "Bearer miner-shared-token")
	assert.Error(t, err)
}
