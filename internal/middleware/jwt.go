package middleware

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
)

const jwksRefreshInterval = time.Hour

// AuthConfig selects how bearer tokens on mutating routes are verified.
// A shared HMAC secret takes precedence over a JWKS endpoint.
type AuthConfig struct {
	Secret  string
	JWKSURL string
}

func (c AuthConfig) Enabled() bool {
	return c.Secret != "" || c.JWKSURL != ""
}

// Authenticator wraps the configured echo-jwt middleware.
type Authenticator struct {
	middleware echo.MiddlewareFunc
	jwks       *keyfunc.JWKS
}

// NewAuthenticator returns nil when auth is disabled.
func NewAuthenticator(ctx context.Context, cfg AuthConfig) (*Authenticator, error) {
	if !cfg.Enabled() {
		return nil, nil
	}

	jwtConfig := echojwt.Config{
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or missing token")
		},
	}

	a := &Authenticator{}
	if cfg.Secret != "" {
		jwtConfig.SigningKey = []byte(cfg.Secret)
		jwtConfig.SigningMethod = jwt.SigningMethodHS256.Alg()
	} else {
		jwks, err := keyfunc.Get(cfg.JWKSURL, keyfunc.Options{
			Ctx:               ctx,
			RefreshInterval:   jwksRefreshInterval,
			RefreshUnknownKID: true,
			RefreshErrorHandler: func(err error) {
				log.Printf("WARN: JWKS refresh failed: %v", err)
			},
		})
		if err != nil {
			return nil, fmt.Errorf("load JWKS from %s: %w", cfg.JWKSURL, err)
		}
		a.jwks = jwks
		jwtConfig.KeyFunc = jwks.Keyfunc
	}

	a.middleware = echojwt.WithConfig(jwtConfig)
	return a, nil
}

// Middleware returns the middlewares to attach to write routes. A nil
// Authenticator yields none.
func (a *Authenticator) Middleware() []echo.MiddlewareFunc {
	if a == nil {
		return nil
	}
	return []echo.MiddlewareFunc{a.middleware}
}

// Close stops the JWKS background refresh, if any.
func (a *Authenticator) Close() {
	if a != nil && a.jwks != nil {
		a.jwks.EndBackground()
	}
}

// Subject returns the "sub" claim of the verified token, if present.
func Subject(c echo.Context) string {
	token, ok := c.Get("user").(*jwt.Token)
	if !ok || token == nil {
		return ""
	}
	sub, err := token.Claims.GetSubject()
	if err != nil {
		return ""
	}
	return sub
}
