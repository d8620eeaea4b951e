package storage

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/verification-service/internal/config"
)

// ObjectStore persists opaque binary artifacts. The rest of the service only
// handles locators; content is never inspected.
type ObjectStore interface {
	Put(ctx context.Context, prefix string, data []byte, contentType string) (string, error)
	Get(ctx context.Context, key string) ([]byte, string, error)
	SignedURL(key string, ttl time.Duration) (string, error)
}

var extByContentType = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
	"video/mp4":       ".mp4",
	"video/webm":      ".webm",
	"application/pdf": ".pdf",
}

var contentTypeByExt = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".pdf":  "application/pdf",
}

// LocalStore is a filesystem-backed ObjectStore. Download URLs are HMAC-signed
// with an absolute expiry, served by the files endpoint.
type LocalStore struct {
	dir     string
	baseURL string
	secret  []byte
}

// NewLocalStore prepares the storage directory.
func NewLocalStore(cfg config.StorageConfig) (*LocalStore, error) {
	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &LocalStore{
		dir:     cfg.Dir,
		baseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		secret:  []byte(cfg.URLSigningSecret),
	}, nil
}

// Put writes data under a generated key and returns the locator.
func (s *LocalStore) Put(_ context.Context, prefix string, data []byte, contentType string) (string, error) {
	ext, ok := extByContentType[contentType]
	if !ok {
		ext = ".bin"
	}
	key := filepath.ToSlash(filepath.Join(sanitize(prefix), uuid.NewString()+ext))

	path := filepath.Join(s.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return "", err
	}
	return key, nil
}

// Get returns the stored bytes and a content type inferred from the key.
func (s *LocalStore) Get(_ context.Context, key string) ([]byte, string, error) {
	clean := sanitize(key)
	data, err := os.ReadFile(filepath.Join(s.dir, filepath.FromSlash(clean)))
	if err != nil {
		return nil, "", err
	}
	contentType := contentTypeByExt[strings.ToLower(filepath.Ext(clean))]
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return data, contentType, nil
}

// SignedURL returns a time-limited download URL for the locator.
func (s *LocalStore) SignedURL(key string, ttl time.Duration) (string, error) {
	clean := sanitize(key)
	exp := time.Now().Add(ttl).Unix()
	return fmt.Sprintf("%s/files/%s?exp=%d&sig=%s", s.baseURL, clean, exp, s.sign(clean, exp)), nil
}

// VerifySignature checks a download request against the signing secret and
// expiry. Used by the files endpoint.
func (s *LocalStore) VerifySignature(key string, exp int64, sig string, now time.Time) bool {
	if now.Unix() > exp {
		return false
	}
	expected := s.sign(sanitize(key), exp)
	return hmac.Equal([]byte(expected), []byte(sig))
}

func (s *LocalStore) sign(key string, exp int64) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(key + ":" + strconv.FormatInt(exp, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

// sanitize strips path traversal from keys.
func sanitize(key string) string {
	parts := strings.Split(filepath.ToSlash(key), "/")
	kept := parts[:0]
	for _, part := range parts {
		if part == "" || part == "." || part == ".." {
			continue
		}
		kept = append(kept, part)
	}
	return strings.Join(kept, "/")
}
