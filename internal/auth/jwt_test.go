package auth

import (
	"testing"
	"time"

	"course-commerce/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("unit-test-secret", time.Hour)

	user := &models.User{ID: 42, Role: models.RoleCustomer}
	token, err := tm.Generate(user)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := tm.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, models.RoleCustomer, claims.Role)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	tm := NewTokenManager("secret-a", time.Hour)
	other := NewTokenManager("secret-b", time.Hour)

	token, err := tm.Generate(&models.User{ID: 1, Role: models.RoleCustomer})
	require.NoError(t, err)

	_, err = other.Parse(token)
	assert.Error(t, err)
}

func TestParseRejectsExpiredToken(t *testing.T) {
	tm := NewTokenManager("unit-test-secret", -time.Minute)

	token, err := tm.Generate(&models.User{ID: 1, Role: models.RoleCustomer})
	require.NoError(t, err)

	_, err = tm.Parse(token)
	assert.Error(t, err)
}

func TestParseRejectsGarbage(t *testing.T) {
	tm := NewTokenManager("unit-test-secret", time.Hour)

	_, err := tm.Parse("not.a.token")
	assert.Error(t, err)
}
