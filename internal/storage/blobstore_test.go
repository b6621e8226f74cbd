package storage

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *FileBlobStore {
	t.Helper()
	store, err := NewFileBlobStore(t.TempDir(), "http://localhost:8080", "test-secret", time.Minute)
	require.NoError(t, err)
	return store
}

func TestPutGetRoundtrip(t *testing.T) {
	store := newTestStore(t)

	key, err := store.Put("inc-1/photo.jpg", []byte("jpeg bytes"))
	require.NoError(t, err)
	assert.Equal(t, "inc-1/photo.jpg", key)

	data, err := store.Get("inc-1/photo.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg bytes"), data)
}

func TestGetMissingBlob(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get("inc-1/nope.jpg")
	assert.Error(t, err)
}

func TestSignedURLVerifies(t *testing.T) {
	store := newTestStore(t)

	signed, err := store.SignedURL("inc-1/photo.jpg", time.Minute)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(signed, "http://localhost:8080/media/"))

	expires, sig := parseSignedURL(t, signed)
	assert.NoError(t, store.VerifySignature("inc-1/photo.jpg", expires, sig))
}

func TestSignedURLRejectedAfterExpiry(t *testing.T) {
	store := newTestStore(t)

	expires := time.Now().Add(-time.Second).Unix()
	sig := store.sign("inc-1/photo.jpg", expires)
	assert.ErrorIs(t, store.VerifySignature("inc-1/photo.jpg", expires, sig), ErrInvalidSignature)
}

func TestSignedURLRejectsTamperedPath(t *testing.T) {
	store := newTestStore(t)

	signed, err := store.SignedURL("inc-1/photo.jpg", time.Minute)
	require.NoError(t, err)
	expires, sig := parseSignedURL(t, signed)

	assert.ErrorIs(t, store.VerifySignature("inc-2/other.jpg", expires, sig), ErrInvalidSignature)
	assert.ErrorIs(t, store.VerifySignature("inc-1/photo.jpg", expires+1, sig), ErrInvalidSignature)
}

func TestSignaturesDependOnSecret(t *testing.T) {
	a := newTestStore(t)
	b, err := NewFileBlobStore(t.TempDir(), "http://localhost:8080", "other-secret", time.Minute)
	require.NoError(t, err)

	expires := time.Now().Add(time.Minute).Unix()
	sig := a.sign("inc-1/photo.jpg", expires)
	assert.ErrorIs(t, b.VerifySignature("inc-1/photo.jpg", expires, sig), ErrInvalidSignature)
}

func TestPathTraversalConfinedToRoot(t *testing.T) {
	store := newTestStore(t)

	for _, path := range []string{"", ".", ".."} {
		_, err := store.Put(path, []byte("x"))
		assert.Error(t, err, "path %q", path)
	}

	// Leading .. segments are normalized away, keeping the write inside the
	// store root instead of the parent directory.
	_, err := store.Put("../escape.txt", []byte("contained"))
	require.NoError(t, err)

	data, err := store.Get("escape.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("contained"), data)
}

func parseSignedURL(t *testing.T, signed string) (int64, string) {
	t.Helper()
	var expires int64
	var sig string
	idx := strings.Index(signed, "?")
	require.Positive(t, idx)
	for _, pair := range strings.Split(signed[idx+1:], "&") {
		k, v, ok := strings.Cut(pair, "=")
		require.True(t, ok)
		switch k {
		case "expires":
			var err error
			expires, err = strconv.ParseInt(v, 10, 64)
			require.NoError(t, err)
		case "sig":
			sig = v
		}
	}
	require.NotZero(t, expires)
	require.NotEmpty(t, sig)
	return expires, sig
}
