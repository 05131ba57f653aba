// Package middleware, HTTP request pipeline'ına eklenen ara katmanları barındırır.
//
// Middleware'lar zincir şeklinde çalışır: Auth → Permission → Handler.
// Hata varsa next çağrılmaz, request orada durur.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/akinalp/nexus/handlers"
	"github.com/akinalp/nexus/models"
	"github.com/akinalp/nexus/pkg"
)

// TokenValidator, access token doğrulayan bileşen (services.AuthService).
type TokenValidator interface {
	ValidateAccessToken(tokenString string) (*models.TokenClaims, error)
}

// AuthMiddleware, JWT token doğrulama middleware'ı.
type AuthMiddleware struct {
	validator TokenValidator
}

// NewAuthMiddleware, constructor.
func NewAuthMiddleware(validator TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{validator: validator}
}

// Require, JWT token zorunlu kılan middleware.
// Token yoksa veya geçersizse → 401 Unauthorized.
//
// HTTP header formatı: Authorization: Bearer <token>
//
// Kullanıcı tablosu yoktur; doğrulanan claim'ler doğrudan context'e konur.
func (m *AuthMiddleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			pkg.ErrorWithMessage(w, http.StatusUnauthorized, "authorization header required")
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			pkg.ErrorWithMessage(w, http.StatusUnauthorized, "invalid authorization format, use: Bearer <token>")
			return
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")

		claims, err := m.validator.ValidateAccessToken(tokenString)
		if err != nil {
			pkg.Error(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), handlers.ClaimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
