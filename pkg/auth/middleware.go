// Package auth provides the tenant authentication boundary.
//
// Two credentials are accepted: a tenant JWT (HS256, signed with
// AUTH_JWT_SECRET) and the shared manual-miner bearer token. Identity
// resolution beyond the token claims is an external collaborator.
package auth

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"

	"github.com/prospectlab/prospector/internal/config"
	"github.com/prospectlab/prospector/pkg/apperror"
	"github.com/prospectlab/prospector/pkg/logger"
)

var Module = fx.Module("auth",
	fx.Provide(NewMiddleware),
)

const tenantContextKey = "auth.tenant"

// Tenant is the authenticated caller identity attached to the echo context.
type Tenant struct {
	ID uuid.UUID
	// ManualMiner is true when the request authenticated with the shared
	// manual-miner token rather than a tenant JWT.
	ManualMiner bool
}

// GetTenant returns the authenticated tenant from the context, or nil.
func GetTenant(c echo.Context) *Tenant {
	if t, ok := c.Get(tenantContextKey).(*Tenant); ok {
		return t
	}
	return nil
}

// Middleware authenticates requests.
type Middleware struct {
	cfg *config.Config
	log *slog.Logger
}

// NewMiddleware creates the auth middleware.
func NewMiddleware(cfg *config.Config, log *slog.Logger) *Middleware {
	return &Middleware{
		cfg: cfg,
		log: log.With(logger.Scope("auth")),
	}
}

// RequireAuth accepts only tenant JWTs.
func (m *Middleware) RequireAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tenant, err := m.authenticateJWT(c)
			if err != nil {
				return err
			}
			c.Set(tenantContextKey, tenant)
			return next(c)
		}
	}
}

// RequireAuthOrManualMiner additionally accepts the shared manual-miner
// token. Used on the results-ingest route so external miners can post
// batches without a tenant session.
func (m *Middleware) RequireAuthOrManualMiner() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := extractBearer(c.Request())
			if token != "" && m.cfg.Auth.ManualMinerToken != "" && token == m.cfg.Auth.ManualMinerToken {
				c.Set(tenantContextKey, &Tenant{ManualMiner: true})
				return next(c)
			}

			tenant, err := m.authenticateJWT(c)
			if err != nil {
				return err
			}
			c.Set(tenantContextKey, tenant)
			return next(c)
		}
	}
}

func (m *Middleware) authenticateJWT(c echo.Context) (*Tenant, error) {
	token := extractBearer(c.Request())
	if token == "" {
		return nil, apperror.ErrUnauthorized
	}

	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(m.cfg.Auth.JWTSecret), nil
	})
	if err != nil || !parsed.Valid {
		m.log.Debug("token rejected", logger.Error(err))
		return nil, apperror.ErrInvalidToken
	}

	tenantStr, _ := claims["tenant_id"].(string)
	tenantID, err := uuid.Parse(tenantStr)
	if err != nil {
		return nil, apperror.ErrInvalidToken.WithMessage("token missing tenant_id claim")
	}

	return &Tenant{ID: tenantID}, nil
}

func extractBearer(r *http.Request) string {
	header := r.Header.Get(echo.HeaderAuthorization)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// SignTenantToken issues a tenant JWT. Used by tests and local tooling.
func SignTenantToken(secret string, tenantID uuid.UUID) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"tenant_id": tenantID.String(),
	})
	return token.SignedString([]byte(secret))
}
