package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akinalp/nexus/handlers"
	"github.com/akinalp/nexus/models"
	"github.com/akinalp/nexus/pkg"
)

type staticValidator map[string]*models.TokenClaims

func (v staticValidator) ValidateAccessToken(token string) (*models.TokenClaims, error) {
	if c, ok := v[token]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("%w: invalid token", pkg.ErrUnauthorized)
}

var validator = staticValidator{
	"member":    {UserID: "member-1", Permissions: models.PermConnectVoice},
	"commander": {UserID: "cmdr-1", Permissions: models.PermCommandNet},
	"admin":     {UserID: "admin-1", Permissions: models.PermAdmin},
}

// echoUser, context'teki claim'lerin user ID'sini yazar.
var echoUser = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	claims := r.Context().Value(handlers.ClaimsContextKey).(*models.TokenClaims)
	pkg.JSON(w, http.StatusOK, claims.UserID)
})

func serve(h http.Handler, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAuthMiddleware_Require(t *testing.T) {
	h := NewAuthMiddleware(validator).Require(echoUser)

	rec := serve(h, "Bearer member")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp pkg.APIResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "member-1", resp.Data)

	assert.Equal(t, http.StatusUnauthorized, serve(h, "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(h, "Basic abc").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(h, "Bearer forged").Code)
}

func TestPermissionMiddleware_Require(t *testing.T) {
	auth := NewAuthMiddleware(validator)
	perm := NewPermissionMiddleware()
	h := auth.Require(perm.Require(models.PermCommandNet, echoUser))

	assert.Equal(t, http.StatusOK, serve(h, "Bearer commander").Code)
	assert.Equal(t, http.StatusOK, serve(h, "Bearer admin").Code)
	assert.Equal(t, http.StatusForbidden, serve(h, "Bearer member").Code)

	// Auth olmadan zincire girilirse claim yoktur.
	assert.Equal(t, http.StatusUnauthorized, serve(perm.Require(models.PermCommandNet, echoUser), "").Code)
}
