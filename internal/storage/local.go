package storage

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrSignatureInvalid is returned by VerifySignedURL for a bad or expired URL.
var ErrSignatureInvalid = errors.New("signed URL invalid or expired")

// LocalConfig holds configuration for the filesystem-backed store.
type LocalConfig struct {
	Root          string // directory under which blobs live
	BaseURL       string // URL prefix the serving layer exposes Root at
	Location      string // key prefix
	SigningSecret string // HMAC secret for expiring URLs
	Overwrite     bool   // overwrite at the same name vs auto-suffix
}

// LocalStore persists blobs as files under a configured root. Intended for
// development and single-host deployments where an object storage service is
// not available; it still issues HMAC-signed expiring URLs so the serving
// layer can enforce the same URL contract as the remote store.
type LocalStore struct {
	root      string
	baseURL   string
	location  string
	secret    []byte
	overwrite bool
	now       func() time.Time
}

// NewLocalStore initializes a LocalStore rooted at cfg.Root.
func NewLocalStore(cfg *LocalConfig) (*LocalStore, error) {
	root := strings.TrimSpace(cfg.Root)
	if root == "" {
		return nil, errors.New("storage: root path is required")
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("storage: ensure root: %w", err)
	}
	return &LocalStore{
		root:      root,
		baseURL:   strings.TrimSuffix(cfg.BaseURL, "/"),
		location:  cfg.Location,
		secret:    []byte(cfg.SigningSecret),
		overwrite: cfg.Overwrite,
		now:       time.Now,
	}, nil
}

// SetClock overrides the store's clock. Used by tests to exercise expiry.
func (s *LocalStore) SetClock(now func() time.Time) {
	s.now = now
}

// Location returns the configured key prefix.
func (s *LocalStore) Location() string {
	return s.location
}

func (s *LocalStore) path(key string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(key))
	if cleaned == "." || strings.HasPrefix(cleaned, "..") {
		return "", fmt.Errorf("storage: invalid key %q", key)
	}
	return filepath.Join(s.root, cleaned), nil
}

// Save writes data under name and returns the final storage key.
func (s *LocalStore) Save(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key := objectKey(s.location, name)
	if !s.overwrite {
		candidate := key
		for n := 1; ; n++ {
			exists, err := s.existsKey(candidate)
			if err != nil {
				return "", err
			}
			if !exists {
				key = candidate
				break
			}
			candidate = suffixedName(key, n)
		}
	}

	fullPath, err := s.path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", fmt.Errorf("storage: ensure directory: %w", err)
	}
	if err := os.WriteFile(fullPath, data, 0644); err != nil {
		return "", fmt.Errorf("storage: write file: %w", err)
	}
	return key, nil
}

// Open reads the full blob at name.
func (s *LocalStore) Open(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fullPath, err := s.path(objectKey(s.location, name))
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("storage: read file: %w", err)
	}
	return data, nil
}

// Delete removes the blob at name. Missing names are ignored.
func (s *LocalStore) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fullPath, err := s.path(objectKey(s.location, name))
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: delete file: %w", err)
	}
	return nil
}

// Exists checks whether a blob is present at name.
func (s *LocalStore) Exists(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return s.existsKey(objectKey(s.location, name))
}

func (s *LocalStore) existsKey(key string) (bool, error) {
	fullPath, err := s.path(key)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(fullPath); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("storage: stat file: %w", err)
	}
	return true, nil
}

// Size returns the blob length in bytes.
func (s *LocalStore) Size(ctx context.Context, name string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	fullPath, err := s.path(objectKey(s.location, name))
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, ErrBlobNotFound
		}
		return 0, fmt.Errorf("storage: stat file: %w", err)
	}
	return info.Size(), nil
}

// URL returns an access URL for the blob. With a positive expiry the URL
// carries an expiry timestamp and an HMAC signature over key and expiry.
func (s *LocalStore) URL(ctx context.Context, name string, expiry time.Duration) (string, error) {
	key := objectKey(s.location, name)
	base := s.baseURL + "/" + key
	if expiry <= 0 {
		return base, nil
	}
	if len(s.secret) == 0 {
		return "", errors.New("storage: signing secret not configured")
	}
	expires := s.now().Add(expiry).Unix()
	sig := s.sign(key, expires)
	q := url.Values{}
	q.Set("expires", strconv.FormatInt(expires, 10))
	q.Set("signature", sig)
	return base + "?" + q.Encode(), nil
}

// VerifySignedURL validates the signature and expiry of a URL issued by this
// store. The serving layer calls this before handing out private files.
func (s *LocalStore) VerifySignedURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ErrSignatureInvalid
	}
	key := strings.TrimPrefix(u.Path, "/")
	if s.baseURL != "" {
		if bu, err := url.Parse(s.baseURL); err == nil && bu.Path != "" {
			key = strings.TrimPrefix(u.Path, bu.Path)
			key = strings.TrimPrefix(key, "/")
		}
	}
	expires, err := strconv.ParseInt(u.Query().Get("expires"), 10, 64)
	if err != nil {
		return ErrSignatureInvalid
	}
	want := s.sign(key, expires)
	got := u.Query().Get("signature")
	if !hmac.Equal([]byte(want), []byte(got)) {
		return ErrSignatureInvalid
	}
	if s.now().Unix() > expires {
		return ErrSignatureInvalid
	}
	return nil
}

func (s *LocalStore) sign(key string, expires int64) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s:%d", key, expires)
	return hex.EncodeToString(mac.Sum(nil))
}
