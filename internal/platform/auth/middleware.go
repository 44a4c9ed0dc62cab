// Package auth implements bearer-token authentication and role gating for
// the API. Tokens are HS256 JWTs carrying the user id, role, and, for
// clinician accounts, the linked doctor id.
package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type contextKey string

const userKey contextKey = "auth_user"

// Claims is the JWT payload for an authenticated user.
type Claims struct {
	Role     string `json:"role"`
	DoctorID string `json:"doctor_id,omitempty"`
	jwt.RegisteredClaims
}

// User is the authenticated principal attached to the request context.
type User struct {
	ID       uuid.UUID
	Role     string
	DoctorID *uuid.UUID
}

// IssueToken signs an HS256 JWT for the given user.
func IssueToken(secret string, ttl time.Duration, userID uuid.UUID, role string, doctorID *uuid.UUID) (string, error) {
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	if doctorID != nil {
		claims.DoctorID = doctorID.String()
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// Middleware validates the Authorization bearer token and stores the
// authenticated user in the request context.
func Middleware(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
			}
			raw := strings.TrimPrefix(header, "Bearer ")

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			userID, err := uuid.Parse(claims.Subject)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token subject")
			}

			user := &User{ID: userID, Role: claims.Role}
			if claims.DoctorID != "" {
				if did, err := uuid.Parse(claims.DoctorID); err == nil {
					user.DoctorID = &did
				}
			}

			ctx := context.WithValue(c.Request().Context(), userKey, user)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// UserFromContext returns the authenticated user, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userKey).(*User)
	return u
}
