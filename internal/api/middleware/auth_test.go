package middleware

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/XProfessional1130/Getravio-Image-Processing/internal/config"
	"github.com/XProfessional1130/Getravio-Image-Processing/internal/domain"
	"github.com/XProfessional1130/Getravio-Image-Processing/internal/repository"
	"github.com/gin-gonic/gin"
)

func authRouter(t *testing.T) *gin.Engine {
	t.Helper()
	db, err := repository.InitDB(&config.DatabaseConfig{
		Driver:      "sqlite",
		Path:        filepath.Join(t.TempDir(), "test.db"),
		AutoMigrate: true,
	})
	if err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	if err := db.Create(&domain.AuthToken{Key: "valid-token", UserID: "user-7"}).Error; err != nil {
		t.Fatalf("seed token: %v", err)
	}

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Auth(repository.NewTokenRepository(db)))
	r.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": UserID(c)})
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	r := authRouter(t)

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"malformed header", "valid-token", http.StatusUnauthorized},
		{"wrong scheme", "Basic valid-token", http.StatusUnauthorized},
		{"unknown token", "Token nope", http.StatusUnauthorized},
		{"token scheme", "Token valid-token", http.StatusOK},
		{"bearer scheme", "Bearer valid-token", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestTokenFromHeader(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"", ""},
		{"Token abc", "abc"},
		{"Bearer abc", "abc"},
		{"bearer abc", "abc"},
		{"Basic abc", ""},
		{"abc", ""},
	}
	for _, tt := range tests {
		if got := tokenFromHeader(tt.header); got != tt.want {
			t.Errorf("tokenFromHeader(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}
