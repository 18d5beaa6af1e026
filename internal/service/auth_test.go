package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/youthhub/internal/apperror"
	"github.com/sakif/youthhub/internal/auth"
	"github.com/sakif/youthhub/internal/model"
)

// newTestAuthService returns an AuthService wired with fake dependencies.
// The TokenService uses a short secret, suitable for tests only.
func newTestAuthService(t *testing.T, store *fakeStore) (*AuthService, *auth.TokenService) {
	t.Helper()

	ts, err := auth.NewTokenService("test-secret-at-least-16-chars!!", 0)
	require.NoError(t, err)

	// bcrypt.MinCost keeps hashing fast in tests.
	ps := auth.NewPasswordServiceWithCost(bcrypt.MinCost)

	return NewAuthService(store, ts, ps, newTestClock(), discardLogger()), ts
}

// =========================================================================
// Register / Login
// =========================================================================

func TestRegister_CreatesYouthAccount(t *testing.T) {
	store := newFakeStore()
	svc, tokens := newTestAuthService(t, store)

	res, err := svc.Register(context.Background(), " Ana ", "Ana@Example.com ", "secret123")
	require.NoError(t, err)

	assert.Equal(t, "Ana", res.User.Name)
	assert.Equal(t, "ana@example.com", res.User.Email)
	assert.Equal(t, model.RoleYouth, res.User.Role)
	assert.True(t, res.User.Active)
	assert.Equal(t, 1, res.User.Level)
	assert.Equal(t, testEpoch, res.User.CreatedAt)
	assert.NotEqual(t, "secret123", res.User.PasswordHash)

	id, err := tokens.Validate(res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, id.UserID)
	assert.Equal(t, model.RoleYouth, id.Role)
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name, user, email, password, field string
	}{
		{"missing name", "", "a@example.com", "secret123", "name"},
		{"bad email", "Ana", "not-an-email", "secret123", "email"},
		{"short password", "Ana", "a@example.com", "123", "password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestAuthService(t, newFakeStore())

			_, err := svc.Register(context.Background(), tt.user, tt.email, tt.password)

			var appErr *apperror.AppError
			require.ErrorAs(t, err, &appErr)
			assert.ErrorIs(t, err, apperror.ErrValidation)
			assert.Equal(t, tt.field, appErr.Field)
		})
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestAuthService(t, store)
	ctx := context.Background()

	_, err := svc.Register(ctx, "Ana", "ana@example.com", "secret123")
	require.NoError(t, err)
	_, err = svc.Register(ctx, "Other Ana", "ANA@example.com", "secret456")

	assert.ErrorIs(t, err, apperror.ErrConflict)
}

func TestLogin(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestAuthService(t, store)
	ctx := context.Background()
	reg, err := svc.Register(ctx, "Ana", "ana@example.com", "secret123")
	require.NoError(t, err)

	res, err := svc.Login(ctx, "ANA@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, res.User.ID)
	assert.NotEmpty(t, res.Token)

	_, err = svc.Login(ctx, "ana@example.com", "wrong-pass")
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)

	_, err = svc.Login(ctx, "nobody@example.com", "secret123")
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)

	require.NoError(t, svc.SetActive(ctx, reg.User.ID, false))
	_, err = svc.Login(ctx, "ana@example.com", "secret123")
	assert.ErrorIs(t, err, apperror.ErrForbidden)
}

// =========================================================================
// LoginOrRegisterGoogle
// =========================================================================

func TestLoginOrRegisterGoogle_CreatesThenReuses(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestAuthService(t, store)
	ctx := context.Background()
	g := &auth.GoogleUser{
		Sub:     "google-42",
		Email:   "bia@example.com",
		Name:    "Bia",
		Picture: "https://example.com/bia.png",
	}

	first, err := svc.LoginOrRegisterGoogle(ctx, g)
	require.NoError(t, err)
	assert.Equal(t, ProviderGoogle, first.User.Provider)
	assert.Equal(t, "google-42", first.User.ProviderID)
	assert.Equal(t, "https://example.com/bia.png", first.User.AvatarURL)
	assert.Empty(t, first.User.PasswordHash)

	second, err := svc.LoginOrRegisterGoogle(ctx, g)
	require.NoError(t, err)
	assert.Equal(t, first.User.ID, second.User.ID)
	assert.Len(t, store.users, 1)
}

func TestLoginOrRegisterGoogle_EmailTakenByPasswordAccount(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestAuthService(t, store)
	ctx := context.Background()
	_, err := svc.Register(ctx, "Bia", "bia@example.com", "secret123")
	require.NoError(t, err)

	_, err = svc.LoginOrRegisterGoogle(ctx, &auth.GoogleUser{Sub: "g-1", Email: "bia@example.com"})

	assert.ErrorIs(t, err, apperror.ErrConflict)
}

func TestLoginOrRegisterGoogle_NilProfile(t *testing.T) {
	svc, _ := newTestAuthService(t, newFakeStore())

	_, err := svc.LoginOrRegisterGoogle(context.Background(), nil)
	assert.Error(t, err)
}

func TestGetUserByID(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestAuthService(t, store)
	u := store.addUser(t, "ana")

	got, err := svc.GetUserByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, "ana", got.Name)

	_, err = svc.GetUserByID(context.Background(), "")
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)

	_, err = svc.GetUserByID(context.Background(), "ghost")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}
