package storage

import (
	"context"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/verification-service/internal/config"
)

func newTestStore(t *testing.T) *LocalStore {
	t.Helper()
	store, err := NewLocalStore(config.StorageConfig{
		Dir:              t.TempDir(),
		PublicBaseURL:    "http://localhost:8005",
		URLSigningSecret: "test-secret",
	})
	require.NoError(t, err)
	return store
}

func TestPutGetRoundtrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	key, err := store.Put(ctx, "documents/tok", []byte("jpeg-bytes"), "image/jpeg")
	require.NoError(t, err)
	assert.Contains(t, key, "documents/tok/")

	data, contentType, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes"), data)
	assert.Equal(t, "image/jpeg", contentType)
}

func TestSignedURLVerifies(t *testing.T) {
	store := newTestStore(t)

	key, err := store.Put(context.Background(), "recordings/tok", []byte("webm"), "video/webm")
	require.NoError(t, err)

	signed, err := store.SignedURL(key, time.Hour)
	require.NoError(t, err)

	parsed, err := url.Parse(signed)
	require.NoError(t, err)
	exp, err := strconv.ParseInt(parsed.Query().Get("exp"), 10, 64)
	require.NoError(t, err)
	sig := parsed.Query().Get("sig")

	assert.True(t, store.VerifySignature(key, exp, sig, time.Now()))
	assert.False(t, store.VerifySignature(key, exp, sig, time.Unix(exp+1, 0)), "expired link must fail")
	assert.False(t, store.VerifySignature(key, exp, "deadbeef", time.Now()), "forged signature must fail")
	assert.False(t, store.VerifySignature("other/key", exp, sig, time.Now()), "signature is key-bound")
}

func TestKeysAreTraversalSafe(t *testing.T) {
	store := newTestStore(t)

	key, err := store.Put(context.Background(), "../../etc", []byte("x"), "application/pdf")
	require.NoError(t, err)
	assert.NotContains(t, key, "..")

	_, _, err = store.Get(context.Background(), "../../../etc/passwd")
	assert.Error(t, err)
}
