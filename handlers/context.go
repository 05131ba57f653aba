// Package handlers, HTTP endpoint'lerini barındırır.
//
// Handler'lar "ince" olmalıdır: request parse et, service çağır, response yaz.
// İş mantığı ve yetki kuralları service katmanında yaşar.
package handlers

import (
	"net/http"

	"github.com/akinalp/nexus/models"
	"github.com/akinalp/nexus/pkg"
)

// contextKey, context.Value için özel key tipi; string key çakışmasını önler.
type contextKey string

// ClaimsContextKey, AuthMiddleware'in doğruladığı *models.TokenClaims'i taşır.
const ClaimsContextKey contextKey = "claims"

// claimsFrom, context'teki claim'leri döner. Yoksa 401 yazar ve ok=false döner.
func claimsFrom(w http.ResponseWriter, r *http.Request) (*models.TokenClaims, bool) {
	claims, ok := r.Context().Value(ClaimsContextKey).(*models.TokenClaims)
	if !ok || claims == nil {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "claims not found in context")
		return nil, false
	}
	return claims, true
}
