package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"story-server/internal/domain"
	"story-server/internal/model"
	"story-server/internal/repository"
)

// AuthService handles registration, login and token verification.
type AuthService interface {
	Register(ctx context.Context, username, password string) (model.User, error)
	Login(ctx context.Context, username, password string) (model.TokenResponse, error)
	Verify(ctx context.Context, token string) (*model.Identity, error)
	Logout(ctx context.Context, token string) error
}

// Compile-time check to ensure authService implements AuthService
var _ AuthService = (*authService)(nil)

type authService struct {
	users     repository.UserRepository
	tokens    repository.TokenStore
	jwtSecret []byte
	tokenTTL  time.Duration
	logger    zerolog.Logger
}

// NewAuthService creates a new instance of authService.
func NewAuthService(users repository.UserRepository, tokens repository.TokenStore, jwtSecret string, tokenTTL time.Duration, logger zerolog.Logger) AuthService {
	return &authService{
		users:     users,
		tokens:    tokens,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
		logger:    logger.With().Str("component", "auth_service").Logger(),
	}
}

// Register creates a new user.
func (s *authService) Register(ctx context.Context, username, password string) (model.User, error) {
	username = strings.TrimSpace(username)

	if username == "" || password == "" {
		s.logger.Warn().Str("username", username).Msg("Registration attempt with empty username or password")
		return model.User{}, domain.ErrInvalidInput
	}
	// Имя пользователя становится директорией в файловом хранилище
	if strings.ContainsAny(username, "/\\.") {
		s.logger.Warn().Str("username", username).Msg("Registration attempt with unsafe username")
		return model.User{}, fmt.Errorf("%w: username must not contain path characters", domain.ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to hash password during registration")
		return model.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.users.Create(ctx, model.User{Username: username, Password: string(hash)})
	if err != nil {
		if errors.Is(err, domain.ErrUserAlreadyExists) {
			s.logger.Warn().Str("username", username).Msg("Registration attempt for existing username")
		}
		return model.User{}, err
	}

	s.logger.Info().Str("username", user.Username).Str("user_id", user.ID.String()).Msg("User registered successfully")
	return user, nil
}

// Login authenticates a user and returns a signed access token.
func (s *authService) Login(ctx context.Context, username, password string) (model.TokenResponse, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.logger.Warn().Str("username", username).Msg("Login failed: user not found")
			return model.TokenResponse{}, domain.ErrInvalidCredentials
		}
		s.logger.Error().Err(err).Str("username", username).Msg("Login failed: error getting user from repository")
		return model.TokenResponse{}, fmt.Errorf("failed to get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		s.logger.Warn().Str("username", username).Msg("Login failed: invalid password")
		return model.TokenResponse{}, domain.ErrInvalidCredentials
	}

	tokenUUID := uuid.NewString()
	expiresAt := time.Now().Add(s.tokenTTL)

	claims := model.Claims{
		UserID:    user.ID,
		Username:  user.Username,
		TokenUUID: tokenUUID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Subject:   user.ID.String(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to sign access token")
		return model.TokenResponse{}, fmt.Errorf("failed to sign token: %w", err)
	}

	// Запись в Redis делает токен отзывабельным: Logout просто удаляет ее
	if err := s.tokens.Set(ctx, tokenUUID, user.ID, s.tokenTTL); err != nil {
		s.logger.Error().Err(err).Msg("Failed to store token in token store")
		return model.TokenResponse{}, fmt.Errorf("failed to store token: %w", err)
	}

	s.logger.Info().Str("username", username).Msg("Login successful")
	return model.TokenResponse{Token: signed, ExpiresAt: expiresAt, User: user}, nil
}

// Verify parses and validates an access token and checks it has not been
// revoked. Returns the caller's identity.
func (s *authService) Verify(ctx context.Context, token string) (*model.Identity, error) {
	claims, err := s.parseClaims(token)
	if err != nil {
		return nil, err
	}

	storedUserID, err := s.tokens.Get(ctx, claims.TokenUUID)
	if err != nil {
		if errors.Is(err, domain.ErrTokenNotFound) {
			return nil, domain.ErrTokenExpired
		}
		return nil, fmt.Errorf("failed to check token store: %w", err)
	}
	if storedUserID != claims.UserID {
		return nil, domain.ErrTokenInvalid
	}

	return &model.Identity{UserID: claims.UserID, Username: claims.Username}, nil
}

// Logout revokes the access token.
func (s *authService) Logout(ctx context.Context, token string) error {
	claims, err := s.parseClaims(token)
	if err != nil {
		return err
	}
	if err := s.tokens.Delete(ctx, claims.TokenUUID); err != nil && !errors.Is(err, domain.ErrTokenNotFound) {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	s.logger.Info().Str("username", claims.Username).Msg("User logged out")
	return nil
}

func (s *authService) parseClaims(token string) (*model.Claims, error) {
	claims := &model.Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrTokenExpired
		}
		return nil, domain.ErrTokenInvalid
	}
	if !parsed.Valid || claims.TokenUUID == "" {
		return nil, domain.ErrTokenInvalid
	}
	return claims, nil
}
