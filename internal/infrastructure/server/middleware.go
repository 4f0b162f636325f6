package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	httpHandlers "github.com/taskhub/core/internal/adapters/http"
)

// accessClaims is the token shape the external identity provider issues.
// sub carries the user id, sid the session this token belongs to.
type accessClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// authMiddleware validates bearer tokens and rejects tokens whose session
// has been revoked. The authenticated user id becomes the owner scope for
// every downstream repository call.
func (s *Server) authMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing authorization header")
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid authorization header format")
			}

			claims, err := s.parseToken(parts[1])
			if err != nil {
				s.logger.Warnw("Invalid token", "error", err, "ip", c.RealIP())
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
			}

			userID := claims.Subject
			if userID == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
			}

			// A valid signature is not enough once the session is revoked.
			if claims.SessionID != "" {
				active, err := s.sessions.SessionActive(c.Request().Context(), userID, claims.SessionID)
				if err != nil {
					s.logger.Errorw("Session check failed", "error", err, "user_id", userID)
					return echo.NewHTTPError(http.StatusUnauthorized, "Session verification failed")
				}
				if !active {
					s.logger.LogSecurityEvent("revoked_session_used", userID, c.RealIP(), map[string]interface{}{
						"session_id": claims.SessionID,
					})
					return echo.NewHTTPError(http.StatusUnauthorized, "Session has been revoked")
				}
			}

			c.Set(httpHandlers.ContextKeyUserID, userID)
			c.Set("session_id", claims.SessionID)

			return next(c)
		}
	}
}

func (s *Server) parseToken(tokenString string) (*accessClaims, error) {
	claims := &accessClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Auth.JWTSecret), nil
	}, jwt.WithIssuer(s.config.Auth.Issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("token is not valid")
	}

	return claims, nil
}
