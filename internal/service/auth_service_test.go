package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/verification-service/internal/auth"
	"github.com/spec-kit/verification-service/internal/config"
	"github.com/spec-kit/verification-service/internal/domain"
	apperrors "github.com/spec-kit/verification-service/pkg/util"
)

func newAuthFixture(members ...*domain.StaffMember) (*AuthService, *fakeStaffRepo) {
	repo := newFakeStaffRepo(members...)
	tokens := auth.NewTokenManager("test-secret", 15)
	svc := NewAuthService(config.AuthConfig{BcryptCost: 4}, repo, tokens, nil)
	return svc, repo
}

func seededAdmin(t *testing.T) *domain.StaffMember {
	t.Helper()
	hash, err := auth.HashPassword("admin-secret-1", 4)
	require.NoError(t, err)
	member := admin("admin-1")
	member.Username = "admin"
	member.PasswordHash = hash
	return member
}

func TestLoginFailsOnEmptyStore(t *testing.T) {
	svc, _ := newAuthFixture()

	_, err := svc.Login(context.Background(), "admin", "whatever")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeUnauthorized))
}

func TestLoginWithSeededAdmin(t *testing.T) {
	svc, _ := newAuthFixture(seededAdmin(t))

	result, err := svc.Login(context.Background(), "admin", "admin-secret-1")
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	assert.Equal(t, domain.StaffRoleAdmin, result.Staff.Role)
}

func TestLoginWrongPasswordAndUnknownUserLookAlike(t *testing.T) {
	svc, _ := newAuthFixture(seededAdmin(t))

	_, wrongPass := svc.Login(context.Background(), "admin", "not-the-password")
	_, unknown := svc.Login(context.Background(), "nobody", "not-the-password")
	require.Error(t, wrongPass)
	require.Error(t, unknown)
	assert.Equal(t, wrongPass.Error(), unknown.Error())
}

func TestLoginDisabledAccount(t *testing.T) {
	member := seededAdmin(t)
	member.Active = false
	svc, _ := newAuthFixture(member)

	_, err := svc.Login(context.Background(), "admin", "admin-secret-1")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeUnauthorized))
}

func TestCreateStaffThenLogin(t *testing.T) {
	adminMember := seededAdmin(t)
	svc, _ := newAuthFixture(adminMember)

	created, err := svc.CreateStaff(context.Background(), adminMember, CreateStaffInput{
		Username: "agent.one",
		Password: "agent-secret-1",
		FullName: "Agent One",
		Email:    "agent.one@example.com",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, domain.StaffRoleAgent, created.Role)
	assert.True(t, created.Active)
	assert.NotEqual(t, "agent-secret-1", created.PasswordHash)

	result, err := svc.Login(context.Background(), "agent.one", "agent-secret-1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, result.Staff.ID)
}

func TestCreateStaffRequiresAdmin(t *testing.T) {
	adminMember := seededAdmin(t)
	svc, _ := newAuthFixture(adminMember)

	_, err := svc.CreateStaff(context.Background(), agent("agent-1"), CreateStaffInput{
		Username: "agent.two",
		Password: "agent-secret-2",
		FullName: "Agent Two",
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))
}

func TestCreateStaffDuplicateUsername(t *testing.T) {
	adminMember := seededAdmin(t)
	svc, _ := newAuthFixture(adminMember)

	_, err := svc.CreateStaff(context.Background(), adminMember, CreateStaffInput{
		Username: "admin",
		Password: "another-secret",
		FullName: "Second Admin",
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeConflict))
}

func TestCreateStaffValidation(t *testing.T) {
	adminMember := seededAdmin(t)
	svc, _ := newAuthFixture(adminMember)

	cases := []struct {
		name  string
		input CreateStaffInput
	}{
		{"missing username", CreateStaffInput{Password: "long-enough-1", FullName: "No Name"}},
		{"missing full name", CreateStaffInput{Username: "agent.x", Password: "long-enough-1"}},
		{"short password", CreateStaffInput{Username: "agent.x", Password: "short", FullName: "Agent X"}},
		{"unknown role", CreateStaffInput{Username: "agent.x", Password: "long-enough-1", FullName: "Agent X", Role: "SUPERVISOR"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateStaff(context.Background(), adminMember, tc.input)
			require.Error(t, err)
			assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation), "got %v", err)
		})
	}
}
