// Package middleware adapts the teacher's Bearer-token idiom — parse
// header, validate, stash claims in c.Locals() — onto a single symmetric
// operator token instead of the teacher's JWKS/ECDSA multi-tenant scheme:
// this service has exactly one privileged caller (the operator holding
// ADMIN_API_KEY), not many end-users, so HS256 with a server-held secret
// is the right-sized replacement.
package middleware

import (
	"crypto/subtle"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"mailsieve/pkg/apperr"
)

const tokenTTL = 2 * time.Hour

type operatorClaims struct {
	jwt.RegisteredClaims
}

// TokenIssuer trades ADMIN_API_KEY for a short-lived bearer token.
type TokenIssuer struct {
	adminKey string
	secret   []byte
}

// NewTokenIssuer wires the admin key check and the HMAC signing secret.
func NewTokenIssuer(adminKey, secret string) *TokenIssuer {
	return &TokenIssuer{adminKey: adminKey, secret: []byte(secret)}
}

// IssueToken implements POST /v1/auth/token (spec §6 supplement).
func (t *TokenIssuer) IssueToken(c *fiber.Ctx) error {
	var req struct {
		APIKey string `json:"api_key"`
	}
	if err := c.BodyParser(&req); err != nil {
		return apperr.BadRequest("invalid request body")
	}
	if req.APIKey == "" || subtle.ConstantTimeCompare([]byte(req.APIKey), []byte(t.adminKey)) != 1 {
		return apperr.Unauthorized("invalid api key")
	}

	now := time.Now().UTC()
	claims := operatorClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "operator",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return apperr.InternalWithError(err)
	}

	return c.JSON(fiber.Map{"token": signed, "expires_at": claims.ExpiresAt.Time})
}

// RequireAuth gates privileged routes (correct/reclassify/ambiguous) behind
// a valid bearer token.
func RequireAuth(secret string) fiber.Handler {
	key := []byte(secret)
	return func(c *fiber.Ctx) error {
		header := c.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			return apperr.Unauthorized("missing bearer token")
		}
		raw := strings.TrimPrefix(header, "Bearer ")

		var claims operatorClaims
		token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, apperr.InvalidToken("unexpected signing method")
			}
			return key, nil
		})
		if err != nil || !token.Valid {
			return apperr.InvalidToken("invalid or expired token")
		}

		c.Locals("operator", claims.Subject)
		return c.Next()
	}
}
