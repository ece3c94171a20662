package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/yanqian/location-insights/pkg/errors"
)

// Error codes raised by the auth domain.
const (
	CodeInvalidClient = "invalid_client"
	CodeInvalidToken  = "invalid_token"
	CodeAuthError     = "auth_error"
)

// Service issues and validates API access tokens.
type Service interface {
	IssueToken(ctx context.Context, req TokenRequest) (TokenResponse, error)
	ValidateToken(ctx context.Context, token string) (Claims, error)
}

type service struct {
	cfg      Config
	registry ClientRegistry
	logger   *slog.Logger
	now      func() time.Time
}

const tokenTypeAccess = "access"

// NewService constructs a Service instance.
func NewService(cfg Config, registry ClientRegistry, logger *slog.Logger) Service {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = time.Hour
	}
	return &service{
		cfg:      cfg,
		registry: registry,
		logger:   logger.With("component", "auth.service"),
		now:      time.Now,
	}
}

func (s *service) IssueToken(ctx context.Context, req TokenRequest) (TokenResponse, error) {
	clientID := strings.TrimSpace(req.ClientID)
	if clientID == "" || req.ClientSecret == "" {
		return TokenResponse{}, apperrors.Wrap(apperrors.CodeInvalidInput, "clientId and clientSecret are required", nil)
	}
	client, found, err := s.registry.Lookup(ctx, clientID)
	if err != nil {
		return TokenResponse{}, apperrors.Wrap(CodeAuthError, "failed to load client", err)
	}
	if !found {
		s.logger.Warn("token requested for unknown client", "clientId", clientID)
		return TokenResponse{}, apperrors.Wrap(CodeInvalidClient, "invalid client credentials", nil)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(client.SecretHash), []byte(req.ClientSecret)); err != nil {
		s.logger.Warn("client secret mismatch", "clientId", clientID)
		return TokenResponse{}, apperrors.Wrap(CodeInvalidClient, "invalid client credentials", nil)
	}

	expires := s.now().Add(s.cfg.TokenTTL)
	token, err := s.generateToken(client.ID, expires)
	if err != nil {
		return TokenResponse{}, err
	}
	return TokenResponse{Token: token, TokenType: "Bearer", ExpiresAt: expires.UTC()}, nil
}

func (s *service) ValidateToken(_ context.Context, token string) (Claims, error) {
	if strings.TrimSpace(token) == "" {
		return Claims{}, apperrors.Wrap(CodeInvalidToken, "token missing", nil)
	}
	claims, err := s.parseToken(token)
	if err != nil {
		return Claims{}, err
	}
	if claims.TokenType != tokenTypeAccess {
		return Claims{}, apperrors.Wrap(CodeInvalidToken, "token type mismatch", nil)
	}
	return claims, nil
}

func (s *service) generateToken(clientID string, expires time.Time) (string, error) {
	now := s.now()
	claims := tokenClaims{
		ClientID:  clientID,
		TokenType: tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   clientID,
			ID:        newTokenID(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", apperrors.Wrap(CodeAuthError, "failed to sign token", err)
	}
	return signed, nil
}

func (s *service) parseToken(token string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &tokenClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %s", t.Method.Alg())
		}
		return []byte(s.cfg.Secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return Claims{}, apperrors.Wrap(CodeInvalidToken, "token validation failed", err)
	}
	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid {
		return Claims{}, apperrors.Wrap(CodeInvalidToken, "token invalid", nil)
	}
	if claims.ExpiresAt == nil {
		return Claims{}, apperrors.Wrap(CodeInvalidToken, "token missing expiry", nil)
	}
	return Claims{
		ClientID:  claims.ClientID,
		TokenType: claims.TokenType,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

type tokenClaims struct {
	jwt.RegisteredClaims
	ClientID  string `json:"clientId"`
	TokenType string `json:"type"`
}

func newTokenID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 10)
	}
	return hex.EncodeToString(buf)
}
