package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/triage-service/internal/config"
	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/repository/memory"
	apperrors "github.com/spec-kit/triage-service/pkg/util/errorutil"
)

func TestLoginStaff(t *testing.T) {
	profiles := memory.NewProfileStore()
	svc := NewAuthService(config.AuthConfig{JWTSecret: "s", AccessTokenTTLMinutes: 5, BcryptCost: bcrypt.MinCost}, profiles)

	dept := domain.DepartmentFinance
	created, err := svc.CreateStaff(context.Background(), "Fin", "fin@example.com", "pw", &dept)
	require.NoError(t, err)

	profile, token, _, err := svc.LoginStaff(context.Background(), "FIN@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, created.ID, profile.ID)

	claims, err := svc.TokenManager().ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, created.ID, claims.ProfileID)
	assert.Equal(t, "Finance", *claims.Department)

	_, _, _, err = svc.LoginStaff(context.Background(), "fin@example.com", "wrong")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeUnauth))
	_, _, _, err = svc.LoginStaff(context.Background(), "nobody@example.com", "pw")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeUnauth))
}

func TestEnsureStaffIsIdempotent(t *testing.T) {
	svc := NewAuthService(config.AuthConfig{JWTSecret: "s", BcryptCost: bcrypt.MinCost}, memory.NewProfileStore())

	first, created, err := svc.EnsureStaff(context.Background(), "admin@example.com", "pw", domain.DepartmentAll)
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := svc.EnsureStaff(context.Background(), "ADMIN@example.com", "other", domain.DepartmentAll)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
}
