package service

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/section-allocator/internal/models"
	appErrors "github.com/noah-isme/section-allocator/pkg/errors"
)

func newTestAuthService() *AuthService {
	return NewAuthService(zap.NewNop(), AuthConfig{AccessTokenSecret: "secret", AccessTokenExpiry: time.Hour, Issuer: "test"})
}

func TestAuthServiceIssueAndValidate(t *testing.T) {
	svc := newTestAuthService()

	token, expiresAt, err := svc.IssueToken(Operator{ID: "op-1", Role: models.RoleRegistrar, Email: "reg@example.edu", FullName: "Registrar"})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "op-1", claims.UserID)
	assert.Equal(t, models.RoleRegistrar, claims.Role)
	assert.Equal(t, "test", claims.Issuer)
}

func TestAuthServiceIssueGeneratesSubject(t *testing.T) {
	svc := newTestAuthService()

	token, _, err := svc.IssueToken(Operator{Role: models.RoleAdmin})
	require.NoError(t, err)
	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.NotEmpty(t, claims.UserID)
	assert.Equal(t, claims.UserID, claims.Subject)
}

func TestAuthServiceIssueRejectsUnknownRole(t *testing.T) {
	svc := newTestAuthService()

	_, _, err := svc.IssueToken(Operator{Role: "STUDENT"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestAuthServiceValidateTokenFailures(t *testing.T) {
	svc := newTestAuthService()

	_, err := svc.ValidateToken("not-a-token")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))

	other := NewAuthService(zap.NewNop(), AuthConfig{AccessTokenSecret: "other"})
	token, _, err := other.IssueToken(Operator{Role: models.RoleAdmin})
	require.NoError(t, err)
	_, err = svc.ValidateToken(token)
	require.Error(t, err)

	expired := newTestAuthService()
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, _, err = expired.IssueToken(Operator{Role: models.RoleAdmin})
	require.NoError(t, err)
	_, err = svc.ValidateToken(token)
	require.Error(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &models.JWTClaims{UserID: "x"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = svc.ValidateToken(unsigned)
	require.Error(t, err)
}
