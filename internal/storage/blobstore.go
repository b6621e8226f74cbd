package storage

import (
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

// BlobStore persists raw media bytes outside the database. Paths are
// slash-separated keys relative to the store root.
type BlobStore interface {
	// Put stores data under path and returns the stored key.
	Put(path string, data []byte) (string, error)
	// Get reads the bytes stored under path.
	Get(path string) ([]byte, error)
	// SignedURL returns a time-limited URL for path. A zero ttl uses the
	// store's configured default.
	SignedURL(path string, ttl time.Duration) (string, error)
	// VerifySignature checks an expiry and signature produced by SignedURL.
	VerifySignature(path string, expires int64, signature string) error
}

// ErrInvalidSignature is returned when a signed URL fails verification.
var ErrInvalidSignature = errors.New("invalid or expired signature")

// FileBlobStore keeps blobs on the local filesystem and signs download URLs
// with HMAC-SHA256.
type FileBlobStore struct {
	root       string
	baseURL    string
	secret     []byte
	defaultTTL time.Duration
}

// NewFileBlobStore constructs a store rooted at dir.
func NewFileBlobStore(dir, baseURL, secret string, defaultTTL time.Duration) (*FileBlobStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	if defaultTTL <= 0 {
		defaultTTL = 15 * time.Minute
	}
	return &FileBlobStore{
		root:       dir,
		baseURL:    strings.TrimRight(baseURL, "/"),
		secret:     []byte(secret),
		defaultTTL: defaultTTL,
	}, nil
}

func (s *FileBlobStore) Put(path string, data []byte) (string, error) {
	clean, err := s.resolve(path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(clean), 0o755); err != nil {
		return "", fmt.Errorf("create blob subdir: %w", err)
	}
	if err := os.WriteFile(clean, data, 0o644); err != nil {
		return "", fmt.Errorf("write blob: %w", err)
	}
	return path, nil
}

func (s *FileBlobStore) Get(path string) ([]byte, error) {
	clean, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(clean)
}

func (s *FileBlobStore) SignedURL(path string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	expires := time.Now().Add(ttl).Unix()
	sig := s.sign(path, expires)
	return fmt.Sprintf("%s/media/%s?expires=%d&sig=%s",
		s.baseURL, url.PathEscape(path), expires, sig), nil
}

func (s *FileBlobStore) VerifySignature(path string, expires int64, signature string) error {
	if time.Now().Unix() > expires {
		return ErrInvalidSignature
	}
	expected := s.sign(path, expires)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}

func (s *FileBlobStore) sign(path string, expires int64) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(path))
	mac.Write([]byte(":"))
	mac.Write([]byte(strconv.FormatInt(expires, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

// resolve maps a blob key to an on-disk path, rejecting traversal.
func (s *FileBlobStore) resolve(path string) (string, error) {
	clean := filepath.Clean("/" + path)
	if clean == "/" {
		return "", errors.New("empty blob path")
	}
	full := filepath.Join(s.root, clean)
	if !strings.HasPrefix(full, filepath.Clean(s.root)+string(os.PathSeparator)) {
		return "", errors.New("blob path escapes store root")
	}
	return full, nil
}
