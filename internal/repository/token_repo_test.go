package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/XProfessional1130/Getravio-Image-Processing/internal/domain"
)

func TestResolveToken(t *testing.T) {
	db := testDB(t)
	if err := db.Create(&domain.AuthToken{Key: "secret-key", UserID: "user-9"}).Error; err != nil {
		t.Fatalf("seed token: %v", err)
	}
	repo := NewTokenRepository(db)
	ctx := context.Background()

	userID, err := repo.Resolve(ctx, "secret-key")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if userID != "user-9" {
		t.Fatalf("userID = %q, want user-9", userID)
	}

	for _, key := range []string{"", "wrong-key"} {
		if _, err := repo.Resolve(ctx, key); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("Resolve(%q) err = %v, want ErrInvalidToken", key, err)
		}
	}
}
