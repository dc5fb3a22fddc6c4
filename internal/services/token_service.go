package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/example/xfans/internal/apperrors"
	"github.com/example/xfans/internal/models"
	"github.com/example/xfans/internal/utils"
)

// TokenService issues access tokens and manages opaque refresh tokens.
// Refresh tokens are random strings stored server-side as sha256
// hashes; every refresh rotates the pair so a stolen token cannot be
// replayed.
type TokenService struct {
	db         *gorm.DB
	secret     string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokenService constructs a TokenService.
func NewTokenService(db *gorm.DB, secret string, accessTTL, refreshTTL time.Duration) *TokenService {
	return &TokenService{db: db, secret: secret, accessTTL: accessTTL, refreshTTL: refreshTTL}
}

// TokenPair bundles an access token and the raw refresh token.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// GenerateTokens issues a fresh access/refresh pair for the user and
// persists the refresh token hash.
func (s *TokenService) GenerateTokens(ctx context.Context, user *models.User) (*TokenPair, error) {
	access, err := utils.GenerateToken(s.secret, user.ID, user.Username, user.Role, s.accessTTL)
	if err != nil {
		return nil, err
	}

	raw, err := randomHex(48)
	if err != nil {
		return nil, err
	}

	expires := time.Now().Add(s.refreshTTL)
	row := models.RefreshToken{
		UserID:    user.ID,
		TokenHash: hashRefreshToken(raw),
		ExpiresAt: expires,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: raw,
		ExpiresAt:    time.Now().Add(s.accessTTL),
	}, nil
}

// Refresh rotates a refresh token: the presented token is consumed and
// a new pair is issued. Unknown, expired or replayed tokens fail with
// Unauthorized.
func (s *TokenService) Refresh(ctx context.Context, raw string) (*models.User, *TokenPair, error) {
	tokenHash := hashRefreshToken(raw)

	var row models.RefreshToken
	if err := s.db.WithContext(ctx).First(&row, "token_hash = ?", tokenHash).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, fmt.Errorf("%w: invalid refresh token", apperrors.ErrUnauthorized)
		}
		return nil, nil, err
	}

	// Rotation: the old row is deleted no matter what happens next.
	if err := s.db.WithContext(ctx).Delete(&models.RefreshToken{}, "id = ?", row.ID).Error; err != nil {
		return nil, nil, err
	}

	if time.Now().After(row.ExpiresAt) {
		return nil, nil, fmt.Errorf("%w: refresh token expired", apperrors.ErrUnauthorized)
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", row.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, fmt.Errorf("%w: user no longer exists", apperrors.ErrUnauthorized)
		}
		return nil, nil, err
	}

	pair, err := s.GenerateTokens(ctx, &user)
	if err != nil {
		return nil, nil, err
	}
	return &user, pair, nil
}

// DeleteRefreshToken removes the presented refresh token (logout).
func (s *TokenService) DeleteRefreshToken(ctx context.Context, raw string) error {
	return s.db.WithContext(ctx).
		Delete(&models.RefreshToken{}, "token_hash = ?", hashRefreshToken(raw)).Error
}

// CleanupExpired deletes refresh-token rows past their expiry.
func (s *TokenService) CleanupExpired(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).
		Delete(&models.RefreshToken{}, "expires_at < ?", time.Now())
	return res.RowsAffected, res.Error
}

func hashRefreshToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
