package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/juju/clock"

	"github.com/sakif/youthhub/internal/apperror"
	"github.com/sakif/youthhub/internal/auth"
	"github.com/sakif/youthhub/internal/model"
	"github.com/sakif/youthhub/internal/repository"
)

// ProviderGoogle is the User.Provider value of Google accounts.
const ProviderGoogle = "google"

// AuthService handles account creation and sign-in.
//
//	AuthHandler (HTTP) → AuthService (business rules) → UserRepository (DB)
//	                   ↘ TokenService (JWT), PasswordService (bcrypt)
//
// DEPENDENCIES (injected via NewAuthService):
//   - users      repository.UserRepository  → read/write user records
//   - tokens     *auth.TokenService         → issue session tokens
//   - passwords  *auth.PasswordService      → bcrypt hashing
//   - clock      clock.Clock                → registration timestamps
//   - logger     *slog.Logger               → structured logging
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	clock     clock.Clock
	logger    *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	clk clock.Clock,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		clock:     clk,
		logger:    logger,
	}
}

// AuthResult bundles the user record and the issued token so the handler
// can set the cookie and respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// Register creates a password account with the youth role and signs it in.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*AuthResult, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if name == "" {
		return nil, apperror.ValidationFailed("name", "name is required")
	}
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return nil, apperror.ValidationFailed("email", "a valid email is required")
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		// Hash only fails on length limits (auth.ErrWeakPassword or too long).
		return nil, apperror.ValidationFailed("password", strings.TrimPrefix(err.Error(), "auth: "))
	}

	user := model.NewUser(name, email)
	user.PasswordHash = hash
	user.CreatedAt = s.clock.Now().UTC()
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, &apperror.AppError{
				Err:     apperror.ErrConflict,
				Message: "email already registered",
				Field:   "email",
			}
		}
		return nil, fmt.Errorf("service/auth: creating user %q: %w", email, err)
	}

	s.logger.Info("user registered", slog.String("user_id", user.ID))
	return s.issue(user)
}

// Login checks an email/password pair. Unknown email and wrong password
// produce the same error so the response does not reveal which accounts
// exist. Deactivated accounts cannot sign in.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.users.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized("invalid email or password")
		}
		return nil, fmt.Errorf("service/auth: loading user by email: %w", err)
	}
	if user.PasswordHash == "" || s.passwords.Verify(user.PasswordHash, password) != nil {
		return nil, apperror.Unauthorized("invalid email or password")
	}
	if !user.Active {
		return nil, apperror.Forbidden("account is deactivated")
	}

	s.logger.Info("user logged in", slog.String("user_id", user.ID))
	return s.issue(user)
}

// LoginOrRegisterGoogle signs in the account linked to the Google profile,
// creating it on first login.
func (s *AuthService) LoginOrRegisterGoogle(ctx context.Context, g *auth.GoogleUser) (*AuthResult, error) {
	if g == nil || g.Sub == "" {
		return nil, fmt.Errorf("service/auth: Google profile must carry a subject")
	}

	user, err := s.users.GetUserByProvider(ctx, ProviderGoogle, g.Sub)
	switch {
	case err == nil:
		if !user.Active {
			return nil, apperror.Forbidden("account is deactivated")
		}
		s.logger.Info("user authenticated via Google", slog.String("user_id", user.ID))
		return s.issue(user)
	case !errors.Is(err, apperror.ErrNotFound):
		return nil, fmt.Errorf("service/auth: loading Google user %s: %w", g.Sub, err)
	}

	name := strings.TrimSpace(g.Name)
	if name == "" {
		name = g.Email
	}
	user = model.NewUser(name, normalizeEmail(g.Email))
	user.Provider = ProviderGoogle
	user.ProviderID = g.Sub
	user.AvatarURL = g.Picture
	user.CreatedAt = s.clock.Now().UTC()
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, &apperror.AppError{
				Err:     apperror.ErrConflict,
				Message: "email already registered with a password",
				Field:   "email",
			}
		}
		return nil, fmt.Errorf("service/auth: creating Google user %s: %w", g.Sub, err)
	}

	s.logger.Info("user registered via Google", slog.String("user_id", user.ID))
	return s.issue(user)
}

// GetUserByID returns the full user record for /auth/me.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, apperror.Unauthorized("missing identity")
	}
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", id, err)
	}
	return user, nil
}

// SetActive turns an account on or off. Inactive accounts drop out of the
// ranking and cannot sign in.
func (s *AuthService) SetActive(ctx context.Context, id string, active bool) error {
	if err := s.users.SetActive(ctx, id, active); err != nil {
		return fmt.Errorf("service/auth: setting active=%t on %s: %w", active, id, err)
	}
	s.logger.Info("user activation changed", slog.String("user_id", id), slog.Bool("active", active))
	return nil
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
