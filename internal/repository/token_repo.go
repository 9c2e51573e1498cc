package repository

import (
	"context"
	"errors"

	"github.com/XProfessional1130/Getravio-Image-Processing/internal/domain"
	"gorm.io/gorm"
)

// ErrInvalidToken is returned when a bearer token does not resolve to a user.
var ErrInvalidToken = errors.New("invalid auth token")

// TokenRepository resolves bearer tokens to user IDs.
type TokenRepository struct {
	db *gorm.DB
}

// NewTokenRepository creates a new TokenRepository bound to db.
func NewTokenRepository(db *gorm.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// Resolve returns the user ID owning the token, or ErrInvalidToken.
func (r *TokenRepository) Resolve(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", ErrInvalidToken
	}
	var token domain.AuthToken
	if err := r.db.WithContext(ctx).First(&token, "key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrInvalidToken
		}
		return "", err
	}
	return token.UserID, nil
}
