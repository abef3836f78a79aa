package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/synalix-ai/admin-backend/internal/auth"
)

const testSecret = "test-secret"

func protected(t *testing.T) (http.Handler, *auth.Claims) {
	t.Helper()
	var seen auth.Claims
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := r.Context().Value(auth.ContextKeyClaims).(*auth.Claims)
		require.True(t, ok)
		seen = *claims
		w.WriteHeader(http.StatusOK)
	})
	return Authenticator(zap.NewNop(), testSecret)(next), &seen
}

func TestAuthenticatorValidToken(t *testing.T) {
	handler, seen := protected(t)
	token, _, err := auth.GenerateJWT("user-1", "alice", "admin", testSecret, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", seen.UserID)
	assert.Equal(t, "alice", seen.Username)
}

func TestAuthenticatorMissingHeader(t *testing.T) {
	handler, _ := protected(t)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticatorMalformedHeader(t *testing.T) {
	handler, _ := protected(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Token abc")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticatorBadToken(t *testing.T) {
	handler, _ := protected(t)
	token, _, err := auth.GenerateJWT("user-1", "alice", "admin", "wrong-secret", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
