package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/condaforge/condabuild/internal/variantcfg"
)

const outputLockMaxWait = 24 * time.Hour

// lockOutputDir acquires the output-directory exclusivity lock keyed
// on a variant's hash (spec §5 "the output-directory exclusivity lock
// keyed on variant hash"): two concurrent runs producing the same
// variant never write into the same bld/<name>_<timestamp>_<hash>
// tree at once. Mirrors sourcecache.Cache.Lock's advisory-file-lock
// approach, keyed in .locks/ under the output directory rather than
// the source cache.
func lockOutputDir(outputDir string, hash variantcfg.Hash) (unlock func(), err error) {
	dir := filepath.Join(outputDir, ".locks")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	fl := flock.New(filepath.Join(dir, string(hash)+".lock"))
	ctx, cancel := context.WithTimeout(context.Background(), outputLockMaxWait)
	defer cancel()
	locked, err := fl.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil {
		return nil, err
	}
	if !locked {
		return nil, fmt.Errorf("pipeline: timed out waiting for output lock on variant %s", hash)
	}
	return func() { fl.Unlock() }, nil
}
