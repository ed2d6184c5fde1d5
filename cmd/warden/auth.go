package main

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/veilcampus/warden/moderation"
	"github.com/veilcampus/warden/moderation/authority"
	"github.com/veilcampus/warden/moderation/errs"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const (
	moderatorKey       = "moderator"
	serviceTokenHeader = "X-Warden-Service-Token"
	tokenIssuer        = "warden"
)

// MintToken issues an HS256 session token for a moderator id.
func MintToken(secret []byte, moderatorID string, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", fmt.Errorf("empty token secret")
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   moderatorID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// parseToken validates a session token and returns the moderator id it was issued for.
func parseToken(secret []byte, raw string) (string, error) {
	tok, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", err
	}
	sub, err := tok.Claims.GetSubject()
	if err != nil {
		return "", err
	}
	if sub == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return sub, nil
}

func (srv *Server) requireModerator(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		hdr := c.Request().Header.Get(echo.HeaderAuthorization)
		raw, ok := strings.CutPrefix(hdr, "Bearer ")
		if !ok || raw == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
		}
		id, err := parseToken(srv.jwtSecret, raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid session token")
		}
		// the role is always loaded fresh, so removals take effect immediately
		m, err := srv.engine.GetModerator(c.Request().Context(), id)
		if errors.Is(err, errs.ErrNotFound) {
			return echo.NewHTTPError(http.StatusUnauthorized, "unknown moderator")
		}
		if err != nil {
			return err
		}
		c.Set(moderatorKey, m)
		return next(c)
	}
}

func currentModerator(c echo.Context) *moderation.Moderator {
	m, _ := c.Get(moderatorKey).(*moderation.Moderator)
	return m
}

// requireAuditAccess limits audit reads to roles that may review reports. The engine further
// narrows what a scoped reader sees to entries inside their scope.
func (srv *Server) requireAuditAccess(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		m := currentModerator(c)
		if m == nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "no moderator session")
		}
		if cons := authority.ValidateRoleConstraints(m.Role, authority.ActionReviewReports); !cons.Valid {
			return echo.NewHTTPError(http.StatusForbidden, cons.Reason)
		}
		return next(c)
	}
}

func (srv *Server) requireServiceToken(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		got := c.Request().Header.Get(serviceTokenHeader)
		if srv.serviceToken == "" || subtle.ConstantTimeCompare([]byte(got), []byte(srv.serviceToken)) != 1 {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid service token")
		}
		return next(c)
	}
}
