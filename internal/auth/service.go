package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/blacksmithop/chatconnect-server/internal/core"
	"github.com/blacksmithop/chatconnect-server/internal/store"
)

var (
	// ErrInvalidCredentials is returned when nickname/password don't match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserExists is returned when trying to register with an existing nickname.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidNickname is returned when the nickname doesn't meet constraints.
	ErrInvalidNickname = errors.New("invalid nickname")
	// ErrInvalidPassword is returned when the password doesn't meet constraints.
	ErrInvalidPassword = errors.New("invalid password")
	// ErrUserBanned is returned on login attempts by banned users.
	ErrUserBanned = errors.New("user is banned")
)

// Service provides authentication operations. It also implements
// core.Authenticator for the WebSocket handshake.
type Service struct {
	store     store.UserStore
	jwtConfig *JWTConfig
}

// NewService creates a new authentication service.
func NewService(userStore store.UserStore, jwtConfig *JWTConfig) *Service {
	return &Service{
		store:     userStore,
		jwtConfig: jwtConfig,
	}
}

// Register creates a new user with hashed password and returns a JWT token.
func (s *Service) Register(ctx context.Context, nickname, password, ageGroup string) (string, error) {
	nickname = strings.TrimSpace(nickname)
	if len(nickname) < 3 || len(nickname) > 20 {
		return "", ErrInvalidNickname
	}
	if len(password) < 6 {
		return "", ErrInvalidPassword
	}

	existing, err := s.store.GetUserByNickname(ctx, nickname)
	if err == nil && existing != nil {
		return "", ErrUserExists
	}

	hashedPassword, err := HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	user, err := s.store.CreateUser(ctx, nickname, hashedPassword, ageGroup)
	if err != nil {
		return "", fmt.Errorf("create user: %w", err)
	}

	token, err := GenerateToken(s.jwtConfig, user.ID, user.Nickname, false)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}

	return token, nil
}

// Login validates credentials and returns a JWT token.
func (s *Service) Login(ctx context.Context, nickname, password string) (string, error) {
	user, err := s.store.GetUserByNickname(ctx, nickname)
	if err != nil {
		return "", ErrInvalidCredentials
	}

	if errPwd := ComparePassword(user.PasswordHash, password); errPwd != nil {
		return "", ErrInvalidCredentials
	}

	if user.IsBanned {
		return "", ErrUserBanned
	}

	token, err := GenerateToken(s.jwtConfig, user.ID, user.Nickname, false)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}

	return token, nil
}

// CreateGuestUser creates a temporary guest user and returns a JWT token.
func (s *Service) CreateGuestUser(ctx context.Context) (token, sessionID string, err error) {
	sessionID = uuid.NewString()

	user, err := s.store.CreateGuestUser(ctx, sessionID)
	if err != nil {
		return "", "", fmt.Errorf("create guest user: %w", err)
	}

	token, err = GenerateToken(s.jwtConfig, user.ID, user.Nickname, true)
	if err != nil {
		return "", "", fmt.Errorf("generate token: %w", err)
	}

	return token, sessionID, nil
}

// ValidateToken validates a JWT token and returns the claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	return ValidateToken(s.jwtConfig, tokenString)
}

// IdentityFromToken resolves a credential to an identity snapshot for the
// presence layer. Any failure (bad token, unknown or banned user) yields nil;
// the connection then stays open as anonymous.
func (s *Service) IdentityFromToken(ctx context.Context, tokenString string) *core.Identity {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return nil
	}

	user, err := s.store.GetUserByID(ctx, claims.UserID)
	if err != nil || user.IsBanned {
		return nil
	}

	return &core.Identity{
		ID:       user.ID,
		Nickname: user.Nickname,
		AgeGroup: user.AgeGroup,
		Avatar:   user.Avatar,
		Roles:    user.Roles,
		Status:   user.Status,
	}
}
