package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"task-tracker/backend/internal/config"
	"task-tracker/backend/internal/models"
	"task-tracker/backend/internal/repositories"
	"task-tracker/backend/internal/utils"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

type TokenPair struct {
	AccessToken  string `json:"access"`
	RefreshToken string `json:"refresh"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

type AuthService interface {
	Login(ctx context.Context, login, password string) (models.User, TokenPair, error)
	IssueTokens(ctx context.Context, user models.User) (TokenPair, error)
	RefreshToken(ctx context.Context, refreshToken string) (TokenPair, error)
	RevokeToken(ctx context.Context, refreshToken string) error
	// ParseAccessToken returns the user id carried by a valid access token.
	ParseAccessToken(accessToken string) (uuid.UUID, error)
}

type AuthServiceImpl struct {
	users  repositories.UserStore
	tokens repositories.TokenStore
	cfg    config.AuthConfig
	now    func() time.Time
}

func NewAuthService(users repositories.UserStore, tokens repositories.TokenStore, cfg config.AuthConfig) *AuthServiceImpl {
	return &AuthServiceImpl{
		users:  users,
		tokens: tokens,
		cfg:    cfg,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

func VerifyPassword(hashedPassword, plainPassword string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(plainPassword))
	return err == nil
}

// Login accepts a username or an email address.
func (s *AuthServiceImpl) Login(ctx context.Context, login, password string) (models.User, TokenPair, error) {
	user, err := s.users.GetByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.User{}, TokenPair{}, ErrInvalidCredentials
		}
		return models.User{}, TokenPair{}, err
	}
	if !VerifyPassword(user.Password, password) {
		return models.User{}, TokenPair{}, ErrInvalidCredentials
	}

	pair, err := s.IssueTokens(ctx, user)
	if err != nil {
		return models.User{}, TokenPair{}, err
	}
	return user, pair, nil
}

func (s *AuthServiceImpl) IssueTokens(ctx context.Context, user models.User) (TokenPair, error) {
	now := s.now()

	accessClaims := jwt.MapClaims{
		"user_id": user.ID.String(),
		"role":    string(user.Role),
		"type":    tokenTypeAccess,
		"iat":     now.Unix(),
		"exp":     now.Add(s.cfg.AccessTokenTTL).Unix(),
		"iss":     s.cfg.Issuer,
		"aud":     s.cfg.Audience,
	}
	accessToken, err := s.sign(accessClaims)
	if err != nil {
		return TokenPair{}, fmt.Errorf("failed to sign access token: %w", err)
	}

	jti, err := uuid.NewV4()
	if err != nil {
		return TokenPair{}, fmt.Errorf("failed to generate jti: %w", err)
	}

	refreshExpiry := now.Add(s.cfg.RefreshTokenTTL)
	refreshClaims := jwt.MapClaims{
		"user_id": user.ID.String(),
		"type":    tokenTypeRefresh,
		"jti":     jti.String(),
		"iat":     now.Unix(),
		"exp":     refreshExpiry.Unix(),
		"iss":     s.cfg.Issuer,
		"aud":     s.cfg.Audience,
	}
	refreshToken, err := s.sign(refreshClaims)
	if err != nil {
		return TokenPair{}, fmt.Errorf("failed to sign refresh token: %w", err)
	}

	record := models.Token{
		UserID:    user.ID,
		JTI:       jti,
		ExpiresAt: refreshExpiry,
	}
	if err := s.tokens.Create(ctx, &record); err != nil {
		return TokenPair{}, fmt.Errorf("failed to create token record: %w", err)
	}

	return TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.cfg.AccessTokenTTL.Seconds()),
	}, nil
}

// RefreshToken rotates a refresh token: the presented token is consumed and a
// new pair is issued. A token can be used only once.
func (s *AuthServiceImpl) RefreshToken(ctx context.Context, refreshToken string) (TokenPair, error) {
	userID, jti, err := s.parseRefresh(refreshToken)
	if err != nil {
		return TokenPair{}, err
	}

	consumed, err := s.tokens.Consume(ctx, userID, jti)
	if err != nil {
		return TokenPair{}, fmt.Errorf("database error: %w", err)
	}
	if !consumed {
		return TokenPair{}, ErrInvalidToken
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return TokenPair{}, ErrInvalidToken
		}
		return TokenPair{}, err
	}

	return s.IssueTokens(ctx, user)
}

func (s *AuthServiceImpl) RevokeToken(ctx context.Context, refreshToken string) error {
	_, jti, err := s.parseRefresh(refreshToken)
	if err != nil {
		return err
	}
	return s.tokens.Revoke(ctx, jti)
}

func (s *AuthServiceImpl) ParseAccessToken(accessToken string) (uuid.UUID, error) {
	claims, err := s.parse(accessToken)
	if err != nil {
		return uuid.Nil, err
	}
	if tokenType, _ := claims["type"].(string); tokenType != tokenTypeAccess {
		return uuid.Nil, ErrInvalidToken
	}
	return claimUUID(claims, "user_id")
}

func (s *AuthServiceImpl) parseRefresh(refreshToken string) (uuid.UUID, uuid.UUID, error) {
	claims, err := s.parse(refreshToken)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	if tokenType, _ := claims["type"].(string); tokenType != tokenTypeRefresh {
		return uuid.Nil, uuid.Nil, ErrInvalidToken
	}
	userID, err := claimUUID(claims, "user_id")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	jti, err := claimUUID(claims, "jti")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return userID, jti, nil
}

func (s *AuthServiceImpl) parse(token string) (jwt.MapClaims, error) {
	claims, err := utils.ParseJWT(token, s.cfg.JWTSecret,
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithAudience(s.cfg.Audience),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return claims, nil
}

func (s *AuthServiceImpl) sign(claims jwt.MapClaims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
}

func claimUUID(claims jwt.MapClaims, name string) (uuid.UUID, error) {
	raw, ok := claims[name].(string)
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: missing %s", ErrInvalidToken, name)
	}
	id, err := uuid.FromString(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid %s format", ErrInvalidToken, name)
	}
	return id, nil
}
