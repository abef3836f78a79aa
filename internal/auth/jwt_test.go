package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key"

func TestGenerateAndValidateJWT(t *testing.T) {
	userID := uuid.New().String()
	tokenString, expiresAt, err := GenerateJWT(userID, "alice", "admin", testSecret, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, tokenString)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := ValidateJWT(tokenString, testSecret)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, userID, claims.Subject)
}

func TestValidateJWTWrongSecret(t *testing.T) {
	tokenString, _, err := GenerateJWT("u1", "alice", "admin", testSecret, time.Hour)
	require.NoError(t, err)

	_, err = ValidateJWT(tokenString, "some-other-secret")
	assert.Error(t, err)
}

func TestValidateJWTExpired(t *testing.T) {
	tokenString, _, err := GenerateJWT("u1", "alice", "admin", testSecret, -time.Minute)
	require.NoError(t, err)

	_, err = ValidateJWT(tokenString, testSecret)
	assert.Error(t, err)
}

func TestValidateJWTGarbage(t *testing.T) {
	_, err := ValidateJWT("not-a-token", testSecret)
	assert.Error(t, err)
}
