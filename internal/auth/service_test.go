package auth_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/hugh/agricoop/internal/auth"
	"github.com/hugh/agricoop/internal/database/models"
	"github.com/hugh/agricoop/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword(t *testing.T) {
	hash, err := auth.HashPassword("testpassword123")
	require.NoError(t, err)
	assert.NotEqual(t, "testpassword123", hash)
	assert.True(t, auth.CheckPassword("testpassword123", hash))
	assert.False(t, auth.CheckPassword("testpassword124", hash))

	_, err = auth.HashPassword("short")
	assert.ErrorIs(t, err, auth.ErrWeakPassword)
}

func TestService_Login(t *testing.T) {
	setup := testutil.NewTestContext(t)
	other := testutil.CreateTestOrg(t, setup.DB, "coopb")
	testutil.AddTestMembership(t, setup.DB, other, setup.User, models.RoleMember)
	svc := auth.NewService(setup.DB, setup.JWTService)
	ctx := testutil.TestContext(t)

	resp, err := svc.Login(ctx, auth.LoginInput{Email: setup.User.Email, Password: "testpassword123"})
	require.NoError(t, err)

	claims, err := setup.JWTService.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, setup.User.ID, claims.UserID)

	// one token, every membership
	require.Len(t, resp.Memberships, 2)
	roles := map[string]models.Role{}
	for _, m := range resp.Memberships {
		require.NotNil(t, m.Organization)
		roles[m.Organization.Subdomain] = m.Role
	}
	assert.Equal(t, models.RoleOwner, roles[setup.Org.Subdomain])
	assert.Equal(t, models.RoleMember, roles["coopb"])

	_, err = svc.Login(ctx, auth.LoginInput{Email: setup.User.Email, Password: "wrong-password"})
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = svc.Login(ctx, auth.LoginInput{Email: "nobody@example.com", Password: "testpassword123"})
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestService_LoginInactiveUser(t *testing.T) {
	setup := testutil.NewTestContext(t)
	require.NoError(t, setup.DB.Model(setup.User).Update("is_active", false).Error)

	svc := auth.NewService(setup.DB, setup.JWTService)
	_, err := svc.Login(testutil.TestContext(t), auth.LoginInput{Email: setup.User.Email, Password: "testpassword123"})
	assert.ErrorIs(t, err, auth.ErrInactiveUser)
}

func TestService_GetUserByID(t *testing.T) {
	setup := testutil.NewTestContext(t)
	svc := auth.NewService(setup.DB, setup.JWTService)

	user, err := svc.GetUserByID(testutil.TestContext(t), setup.User.ID)
	require.NoError(t, err)
	assert.Equal(t, setup.User.Email, user.Email)

	_, err = svc.GetUserByID(testutil.TestContext(t), uuid.New())
	assert.ErrorIs(t, err, auth.ErrUserNotFound)
}
