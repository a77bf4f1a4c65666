package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// AppMetadata is the part of the token the auth provider lets only the
// service role write, so tenant and role can be trusted.
type AppMetadata struct {
	TenantID string `json:"tenant_id"`
	Role     string `json:"role"`
}

type AuthClaims struct {
	Email       string      `json:"email"`
	AppMetadata AppMetadata `json:"app_metadata"`
	jwt.RegisteredClaims
}

var errNoToken = errors.New("no access token")

// tokenFromRequest prefers the Authorization header and falls back to the
// session cookie set by the web client.
func (h *Handler) tokenFromRequest(r *http.Request) (string, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			return "", errNoToken
		}
		return token, nil
	}

	cookie, err := r.Cookie(h.config.Auth.CookieName)
	if err != nil {
		return "", errNoToken
	}
	return cookie.Value, nil
}

func (h *Handler) parseToken(tokenString string) (*AuthClaims, error) {
	claims := &AuthClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return []byte(h.config.Auth.JWTSecret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(h.config.Auth.Audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}
