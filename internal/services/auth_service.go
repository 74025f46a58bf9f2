package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/platformhub/platformhub/internal/auth"
	"github.com/platformhub/platformhub/internal/db/models"
	"github.com/platformhub/platformhub/internal/db/repositories"
	"github.com/platformhub/platformhub/internal/validation"
)

// RegisterInput is the account registration payload
type RegisterInput struct {
	Username string `json:"username" form:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required,min=8,max=72"`
}

// Token is the login response
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// AuthService handles registration, login and token resolution
type AuthService struct {
	users  UserStore
	tokens *auth.TokenManager
}

// NewAuthService creates a new AuthService
func NewAuthService(users UserStore, tokens *auth.TokenManager) *AuthService {
	return &AuthService{users: users, tokens: tokens}
}

// Register creates a developer account. Duplicate usernames or emails,
// including ones lost to a concurrent insert, are reported as ErrConflict.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if err := validation.Struct(in); err != nil {
		return nil, validationError("%s", err.Error())
	}
	if len(in.Password) > auth.MaxPasswordBytes {
		return nil, validationError("password must be at most %d bytes", auth.MaxPasswordBytes)
	}

	exists, err := s.users.ExistsByUsernameOrEmail(ctx, in.Username, in.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, newError(ErrConflict, MsgDuplicateUser)
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Username:       in.Username,
		Email:          in.Email,
		HashedPassword: hash,
		Role:           models.RoleDeveloper,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, wrapError(ErrConflict, MsgDuplicateUser, err)
		}
		return nil, err
	}

	slog.Info("user registered", "user_id", user.ID, "username", user.Username)
	return user, nil
}

// Login checks credentials and issues an access token. Unknown usernames and
// wrong passwords fail identically.
func (s *AuthService) Login(ctx context.Context, username, password string) (*Token, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		auth.BurnPasswordCheck(password)
		return nil, newError(ErrUnauthorized, MsgBadCredentials)
	}
	if !auth.CheckPassword(user.HashedPassword, password) {
		slog.Info("login failed", "username", username)
		return nil, newError(ErrUnauthorized, MsgBadCredentials)
	}

	token, err := s.tokens.Issue(user.Username, user.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return &Token{AccessToken: token, TokenType: "bearer"}, nil
}

// Authenticate resolves a bearer token to the current user record. The
// role used downstream is the stored one, not the claim.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, wrapError(ErrUnauthorized, MsgInvalidToken, err)
	}
	user, err := s.users.GetByUsername(ctx, claims.Username())
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, newError(ErrUnauthorized, MsgInvalidToken)
	}
	return user, nil
}

// SetRole changes a user's role. actor is nil for offline (CLI) use; otherwise
// it must be an admin.
func (s *AuthService) SetRole(ctx context.Context, actor *models.User, username string, role models.Role) (*models.User, error) {
	if actor != nil {
		if err := auth.Authorize(actor.Role, models.RoleAdmin); err != nil {
			return nil, wrapError(ErrForbidden, MsgInsufficientRole, err)
		}
	}
	if !role.Valid() {
		return nil, validationError("role must be one of developer, approver, admin")
	}

	user, err := s.users.UpdateRole(ctx, username, role)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, newError(ErrNotFound, MsgUserNotFound)
	}

	by := "cli"
	if actor != nil {
		by = actor.Username
	}
	slog.Info("user role changed", "username", username, "role", role, "by", by)
	return user, nil
}
