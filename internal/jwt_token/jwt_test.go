package jwttoken

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"custodian/internal/domain"
	dErrors "custodian/pkg/domain-errors"
)

var jwtService = NewJWTService(
	"test-signing-key",
	"test-issuer",
	"test-audience",
)
var testIdentity = domain.Identity{
	PrincipalID: "u1",
	OrgID:       "org1",
	Email:       "u1@example.com",
	Roles:       domain.NewRoleSet(domain.RoleAdmin, domain.RoleDataAnalyst),
}
var expiresIn = time.Hour

func Test_GenerateToken(t *testing.T) {
	token, err := jwtService.GenerateToken(testIdentity, expiresIn)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	claims, err := jwtService.ValidateToken(token)
	require.NoError(t, err)
	assert.NotNil(t, claims)
	assert.Equal(t, "u1", claims.Subject)
	assert.Equal(t, "org1", claims.OrgID)
	assert.Equal(t, "u1@example.com", claims.Email)
	assert.WithinDuration(t, time.Now().Add(expiresIn), claims.ExpiresAt.Time, time.Minute)
}

func Test_ValidateToken_InvalidToken(t *testing.T) {
	_, err := jwtService.ValidateToken("invalid-token-string")
	require.Equal(t, dErrors.CodeUnauthenticated, dErrors.CodeOf(err))
}

func Test_ValidateToken_ExpiredToken(t *testing.T) {
	expiresIn := -time.Hour // Expired token

	token, err := jwtService.GenerateToken(testIdentity, expiresIn)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token)
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeUnauthenticated, dErrors.CodeOf(err))
}

func Test_ValidateToken_WrongKey(t *testing.T) {
	other := NewJWTService("different-key", "test-issuer", "test-audience")

	token, err := other.GenerateToken(testIdentity, expiresIn)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token)
	require.Error(t, err)
}

func Test_IdentityFromToken(t *testing.T) {
	token, err := jwtService.GenerateToken(testIdentity, expiresIn)
	require.NoError(t, err)

	identity, err := jwtService.IdentityFromToken(token)
	require.NoError(t, err)
	assert.Equal(t, testIdentity.PrincipalID, identity.PrincipalID)
	assert.Equal(t, testIdentity.OrgID, identity.OrgID)
	assert.True(t, identity.Roles.Has(domain.RoleAdmin))
	assert.False(t, identity.Roles.Has(domain.RoleComplianceOfficer))
}
