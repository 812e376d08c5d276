package sourcecache

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeKeyIsStableForSameInputs(t *testing.T) {
	k1 := ComputeKey("https://example.com/a.tar.gz", "abc", "")
	k2 := ComputeKey("https://example.com/a.tar.gz", "abc", "")
	assert.Equal(t, k1, k2)
}

func TestComputeKeyDiffersOnChecksum(t *testing.T) {
	k1 := ComputeKey("https://example.com/a.tar.gz", "abc", "")
	k2 := ComputeKey("https://example.com/a.tar.gz", "xyz", "")
	assert.NotEqual(t, k1, k2)
}

func TestStoreThenLookupHits(t *testing.T) {
	dir := t.TempDir()
	cache, err := New(dir)
	require.NoError(t, err)

	src := filepath.Join(dir, "payload.txt")
	require.NoError(t, os.WriteFile(src, []byte("hello"), 0o644))

	key := ComputeKey("https://example.com/x", "", "")
	require.NoError(t, cache.Store(key, src, Entry{URL: "https://example.com/x", CachedAt: time.Now()}))

	_, ok := cache.Lookup(key, "")
	assert.True(t, ok)
}

func TestLookupMissesWithoutEntry(t *testing.T) {
	dir := t.TempDir()
	cache, err := New(dir)
	require.NoError(t, err)
	_, ok := cache.Lookup(ComputeKey("https://example.com/missing", "", ""), "")
	assert.False(t, ok)
}

func TestFetchDownloadsAndCaches(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("payload-bytes"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	cache, err := New(dir)
	require.NoError(t, err)
	fetcher := NewFetcher(cache, 2, nil)

	path, err := fetcher.Fetch(context.Background(), srv.URL, "")
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "payload-bytes", string(data))

	// Second fetch should hit the cache, not re-download.
	path2, err := fetcher.Fetch(context.Background(), srv.URL, "")
	require.NoError(t, err)
	assert.Equal(t, path, path2)
}

func TestFetchChecksumMismatchFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("payload-bytes"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	cache, err := New(dir)
	require.NoError(t, err)
	fetcher := NewFetcher(cache, 1, nil)

	_, err = fetcher.Fetch(context.Background(), srv.URL, "0000000000000000000000000000000000000000000000000000000000000000")
	require.Error(t, err)
}

func TestBackoffGrowsWithAttempt(t *testing.T) {
	assert.Less(t, backoff(1), backoff(2))
	assert.Less(t, backoff(2), backoff(3))
}
