package middleware

import (
	"net/http"

	"github.com/akinalp/nexus/handlers"
	"github.com/akinalp/nexus/models"
	"github.com/akinalp/nexus/pkg"
)

// PermissionMiddleware, kullanıcının token'ında gerekli yetkinin olup olmadığını kontrol eder.
//
// AuthMiddleware'den SONRA çalışır; context'te doğrulanmış claim'ler vardır.
// Yetkiler token'ın içinde taşındığı için DB sorgusu yapılmaz.
type PermissionMiddleware struct{}

// NewPermissionMiddleware, constructor.
func NewPermissionMiddleware() *PermissionMiddleware {
	return &PermissionMiddleware{}
}

// Require, belirli bir yetkiyi gerektiren middleware döner.
//
//	permMw.Require(models.PermManagePatches, http.HandlerFunc(patchHandler.Create))
func (m *PermissionMiddleware) Require(perm models.Permission, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := r.Context().Value(handlers.ClaimsContextKey).(*models.TokenClaims)
		if !ok {
			pkg.ErrorWithMessage(w, http.StatusUnauthorized, "claims not found in context")
			return
		}

		if !claims.Permissions.Has(perm) {
			pkg.ErrorWithMessage(w, http.StatusForbidden, "insufficient permissions")
			return
		}

		next.ServeHTTP(w, r)
	})
}
