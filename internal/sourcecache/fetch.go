package sourcecache

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/condaforge/condabuild/internal/diag"
	"github.com/condaforge/condabuild/internal/log"
)

const defaultMaxAttempts = 3

// Fetcher downloads and caches source tarballs/files with a bounded
// concurrency ceiling and retry/backoff for transient failures (spec
// §5 "Source fetches proceed in parallel with a configurable
// ceiling").
type Fetcher struct {
	cache       *Cache
	client      *http.Client
	sem         chan struct{}
	maxAttempts int
	logger      log.Logger
}

// NewFetcher builds a Fetcher bounded to concurrency simultaneous
// downloads.
func NewFetcher(cache *Cache, concurrency int, logger log.Logger) *Fetcher {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = log.NewNoop()
	}
	return &Fetcher{
		cache:       cache,
		client:      &http.Client{Timeout: 0},
		sem:         make(chan struct{}, concurrency),
		maxAttempts: defaultMaxAttempts,
		logger:      logger,
	}
}

// Fetch downloads url (unless a valid cache entry already exists),
// verifies checksum (sha256 or md5, selected by the length of
// checksum), and returns the path to the cached payload (spec §4.6
// "source cache", §7 "ChecksumMismatch/DownloadFailed").
func (f *Fetcher) Fetch(ctx context.Context, url, checksum string) (string, error) {
	key := ComputeKey(url, checksum, "")
	if entry, ok := f.cache.Lookup(key, checksum); ok {
		f.logger.Debug("source cache hit", "url", url)
		_ = entry
		return f.cache.PayloadPath(key), nil
	}

	unlock, err := f.cache.Lock(key, 10*time.Minute)
	if err != nil {
		return "", err
	}
	defer unlock()

	// Another fetch may have completed while we waited for the lock.
	if entry, ok := f.cache.Lookup(key, checksum); ok {
		_ = entry
		return f.cache.PayloadPath(key), nil
	}

	f.sem <- struct{}{}
	defer func() { <-f.sem }()

	tmp, err := os.CreateTemp("", "condabuild-fetch-*")
	if err != nil {
		return "", err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)
	tmp.Close()

	var lastErr error
	for attempt := 1; attempt <= f.maxAttempts; attempt++ {
		lastErr = f.download(ctx, url, tmpPath)
		if lastErr == nil {
			break
		}
		f.logger.Warn("source download failed, retrying", "url", url, "attempt", attempt, "error", lastErr)
		select {
		case <-time.After(backoff(attempt)):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if lastErr != nil {
		return "", diag.NewSourceError(diag.KindDownloadFailed, fmt.Sprintf("failed to download %s: %v", url, lastErr))
	}

	if checksum != "" {
		if err := verifyChecksum(tmpPath, checksum); err != nil {
			return "", err
		}
	}

	if err := f.cache.Store(key, tmpPath, Entry{URL: url, Checksum: checksum, CachedAt: time.Now()}); err != nil {
		return "", err
	}
	return f.cache.PayloadPath(key), nil
}

func (f *Fetcher) download(ctx context.Context, url, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, resp.Body)
	return err
}

func verifyChecksum(path, expected string) error {
	var actual string
	var err error
	switch len(expected) {
	case 32:
		actual, err = md5Hex(path)
	default:
		actual, err = sha256Hex(path)
	}
	if err != nil {
		return err
	}
	if actual != expected {
		return &diag.SourceError{
			Diagnostic: diagChecksumMismatch(path, expected, actual),
			Expected:   expected,
			Actual:     actual,
		}
	}
	return nil
}

func diagChecksumMismatch(path, expected, actual string) *diag.Diagnostic {
	d := diag.NewSourceError(diag.KindChecksumMismatch, fmt.Sprintf("checksum mismatch for %s: expected %s, got %s", path, expected, actual))
	return d.Diagnostic
}

func sha256Hex(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func md5Hex(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// backoff implements exponential backoff, capped at 16s.
func backoff(attempt int) time.Duration {
	shift := attempt - 1
	if shift > 5 {
		shift = 5
	}
	return (1 << shift) * 500 * time.Millisecond
}
