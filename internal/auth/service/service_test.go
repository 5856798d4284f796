package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/chrisfit/storefront/internal/auth/domain"
	"github.com/chrisfit/storefront/internal/auth/password"
	"github.com/chrisfit/storefront/internal/auth/repository"
	"github.com/chrisfit/storefront/internal/clock"
	"github.com/chrisfit/storefront/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/argon2"
)

func newTestService(t *testing.T) (authdomain.Service, *clock.FakeClock) {
	t.Helper()

	dbConn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, dbConn.AutoMigrate(&authdomain.User{}, &authdomain.Session{}))

	repo, sessionRepo := repository.New(dbConn)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fake := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	svc := New(Params{
		Log:         zap.NewNop(),
		Repo:        repo,
		SessionRepo: sessionRepo,
		GenID:       node,
		Clock:       fake,
	})
	return svc, fake
}

func createAdmin(t *testing.T, svc authdomain.Service) *authdomain.User {
	t.Helper()
	user, err := svc.CreateUser(context.Background(), authdomain.CreateUserRequest{
		Email:    "Chris@ChrisFit.id",
		Password: "correct-password",
	})
	require.NoError(t, err)
	return user
}

func TestCreateUserDefaults(t *testing.T) {
	svc, _ := newTestService(t)
	user := createAdmin(t, svc)

	assert.Equal(t, "chris@chrisfit.id", user.Email)
	assert.Equal(t, "chris", user.DisplayName)
	assert.Equal(t, authdomain.RoleAdmin, user.Role)
	require.NotNil(t, user.PasswordHash)
	assert.NotEqual(t, "correct-password", *user.PasswordHash)
}

func TestCreateUserRejectsDuplicateAndWeak(t *testing.T) {
	svc, _ := newTestService(t)
	createAdmin(t, svc)

	_, err := svc.CreateUser(context.Background(), authdomain.CreateUserRequest{
		Email:    "chris@chrisfit.id",
		Password: "another-password",
	})
	assert.ErrorIs(t, err, authdomain.ErrUserExists)

	_, err = svc.CreateUser(context.Background(), authdomain.CreateUserRequest{
		Email:    "ops@chrisfit.id",
		Password: "short",
	})
	assert.ErrorIs(t, err, authdomain.ErrWeakPassword)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _ := newTestService(t)
	createAdmin(t, svc)

	_, err := svc.Login(context.Background(), authdomain.LoginRequest{
		Email:    "chris@chrisfit.id",
		Password: "wrong-password",
	})
	assert.ErrorIs(t, err, authdomain.ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), authdomain.LoginRequest{
		Email:    "nobody@chrisfit.id",
		Password: "correct-password",
	})
	assert.ErrorIs(t, err, authdomain.ErrInvalidCredentials)
}

func TestLoginAuthenticateLogout(t *testing.T) {
	svc, fake := newTestService(t)
	user := createAdmin(t, svc)

	result, err := svc.Login(context.Background(), authdomain.LoginRequest{
		Email:     "chris@chrisfit.id",
		Password:  "correct-password",
		UserAgent: "test",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.RawToken)
	assert.Equal(t, user.ID, result.UserID)
	assert.Equal(t, fake.Now().Add(sessionTTL), result.ExpiresAt)
	assert.Equal(t, "chris@chrisfit.id", result.Session.Metadata["email"])

	session, err := svc.Authenticate(context.Background(), result.RawToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, session.UserID)

	require.NoError(t, svc.Logout(context.Background(), result.RawToken))

	_, err = svc.Authenticate(context.Background(), result.RawToken)
	assert.ErrorIs(t, err, authdomain.ErrSessionRevoked)
}

func TestAuthenticateExpiredSession(t *testing.T) {
	svc, fake := newTestService(t)
	createAdmin(t, svc)

	result, err := svc.Login(context.Background(), authdomain.LoginRequest{
		Email:    "chris@chrisfit.id",
		Password: "correct-password",
	})
	require.NoError(t, err)

	fake.Advance(sessionTTL + time.Minute)
	_, err = svc.Authenticate(context.Background(), result.RawToken)
	assert.ErrorIs(t, err, authdomain.ErrSessionExpired)

	_, err = svc.Authenticate(context.Background(), "unknown-token")
	assert.ErrorIs(t, err, authdomain.ErrInvalidSession)
}

func TestChangePassword(t *testing.T) {
	svc, _ := newTestService(t)
	user := createAdmin(t, svc)
	ctx := context.Background()

	err := svc.ChangePassword(ctx, user.ID, "wrong-password", "brand-new-password")
	assert.ErrorIs(t, err, authdomain.ErrInvalidCredentials)

	err = svc.ChangePassword(ctx, user.ID, "correct-password", "tiny")
	assert.ErrorIs(t, err, authdomain.ErrWeakPassword)

	require.NoError(t, svc.ChangePassword(ctx, user.ID, "correct-password", "brand-new-password"))

	_, err = svc.Login(ctx, authdomain.LoginRequest{Email: user.Email, Password: "correct-password"})
	assert.ErrorIs(t, err, authdomain.ErrInvalidCredentials)

	_, err = svc.Login(ctx, authdomain.LoginRequest{Email: user.Email, Password: "brand-new-password"})
	assert.NoError(t, err)
}

func TestCurrentUser(t *testing.T) {
	svc, _ := newTestService(t)
	user := createAdmin(t, svc)

	_, err := svc.CurrentUser(context.Background())
	assert.ErrorIs(t, err, authdomain.ErrUnauthenticated)

	got, err := svc.CurrentUser(authdomain.WithUserID(context.Background(), user.ID))
	require.NoError(t, err)
	assert.Equal(t, user.Email, got.Email)

	_, err = svc.CurrentUser(authdomain.WithUserID(context.Background(), snowflake.ID(42)))
	assert.ErrorIs(t, err, authdomain.ErrUnauthenticated)
}

func TestLoginUpgradesLegacyHash(t *testing.T) {
	svc, _ := newTestService(t)
	user := createAdmin(t, svc)
	ctx := context.Background()

	salt := []byte("0123456789abcdef")
	key := argon2.IDKey([]byte("correct-password"), salt, 2, 16*1024, 1, 32)
	legacy := fmt.Sprintf("$argon2id$v=19$m=16384,t=2,p=1$%s$%s",
		base64.RawStdEncoding.EncodeToString(salt), base64.RawStdEncoding.EncodeToString(key))
	impl := svc.(*Service)
	require.NoError(t, impl.repo.UpdateFields(ctx, user.ID, map[string]any{"password_hash": legacy}))

	_, err := svc.Login(ctx, authdomain.LoginRequest{Email: "chris@chrisfit.id", Password: "correct-password"})
	require.NoError(t, err)

	stored, err := impl.repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.PasswordHash)
	assert.NotEqual(t, legacy, *stored.PasswordHash)
	assert.False(t, password.NeedsRehash(*stored.PasswordHash))
	assert.True(t, password.Verify("correct-password", *stored.PasswordHash))
}
