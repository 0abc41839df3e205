package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/store-rating/internal/apperr"
	"github.com/iliyamo/store-rating/internal/model"
	"github.com/iliyamo/store-rating/internal/repository"
	"github.com/iliyamo/store-rating/internal/utils"
)

const invalidCredentialsMessage = "invalid credentials"

// TokenConfig holds the settings used to mint access tokens and hash
// passwords.
type TokenConfig struct {
	Secret     string
	TTL        time.Duration
	BcryptCost int
}

// RegisterInput is a self-registration request.  Role is optional.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Address  string
	Role     string
}

type LoginInput struct {
	Email    string
	Password string
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expiresAt"`
	User      model.User `json:"user"`
}

// AuthService handles registration, login and the caller's own profile.
type AuthService struct {
	users userRepository
	cfg   TokenConfig
	now   func() time.Time
}

func NewAuthService(users userRepository, cfg TokenConfig) (*AuthService, error) {
	if users == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if cfg.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}
	return &AuthService{users: users, cfg: cfg, now: time.Now}, nil
}

// selfRegistrationRole returns the role a new account gets.  Anything other
// than USER or OWNER, ADMIN included, falls back to USER.
func selfRegistrationRole(raw string) model.Role {
	if r, ok := model.ParseRole(raw); ok && r.Assignable() {
		return r
	}
	return model.RoleUser
}

// Register creates an account and logs it in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	u := &model.User{
		Name:    strings.TrimSpace(in.Name),
		Email:   in.Email,
		Address: strings.TrimSpace(in.Address),
		Role:    selfRegistrationRole(in.Role),
	}
	if err := createAccount(ctx, s.users, u, in.Password, s.cfg.BcryptCost); err != nil {
		return nil, err
	}
	return s.issue(*u)
}

// createAccount hashes password into u and inserts it.  A taken email is a
// conflict whether it is seen by the pre-check or by the unique index.
func createAccount(ctx context.Context, users userRepository, u *model.User, password string, cost int) error {
	taken, err := emailTaken(ctx, users, u.Email, uuid.Nil)
	if err != nil {
		return translate(err, msgUserNotFound)
	}
	if taken {
		return apperr.New(apperr.CodeConflict, msgEmailExists)
	}
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		if errors.Is(err, utils.ErrEmptyPassword) {
			return apperr.New(apperr.CodeValidation, "password is required")
		}
		return apperr.Internal(err, "hash password")
	}
	u.PasswordHash = hash
	return translate(users.Create(ctx, u), msgUserNotFound)
}

// Login verifies the credentials.  Unknown email and wrong password yield
// the same error.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	u, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.New(apperr.CodeUnauthorized, invalidCredentialsMessage)
		}
		return nil, translate(err, msgUserNotFound)
	}
	if !utils.VerifyPassword(u.PasswordHash, in.Password) {
		return nil, apperr.New(apperr.CodeUnauthorized, invalidCredentialsMessage)
	}
	return s.issue(*u)
}

// Me returns the current profile of the caller.
func (s *AuthService) Me(ctx context.Context, id uuid.UUID) (*model.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err, msgUserNotFound)
	}
	return u, nil
}

func (s *AuthService) issue(u model.User) (*AuthResult, error) {
	tok, err := utils.NewAccessToken(s.cfg.Secret, u, s.cfg.TTL, s.now())
	if err != nil {
		return nil, apperr.Internal(err, "issue access token")
	}
	return &AuthResult{Token: tok.Token, ExpiresAt: tok.Exp, User: u}, nil
}
