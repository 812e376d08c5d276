package sourcecache

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/condaforge/condabuild/internal/diag"
)

// GitCheckout clones repoURL into destDir and checks out rev (a
// branch, tag, or commit), shelling out to the system git binary
// (spec §4.1 "git_url"/"git_rev" source fields, §7
// "GitCheckoutFailed").
func GitCheckout(ctx context.Context, repoURL, rev, destDir string) error {
	clone := exec.CommandContext(ctx, "git", "clone", "--quiet", repoURL, destDir)
	if out, err := clone.CombinedOutput(); err != nil {
		return diag.NewSourceError(diag.KindGitCheckoutFailed, fmt.Sprintf("git clone %s: %v: %s", repoURL, err, out))
	}

	if rev != "" {
		checkout := exec.CommandContext(ctx, "git", "-C", destDir, "checkout", "--quiet", rev)
		if out, err := checkout.CombinedOutput(); err != nil {
			return diag.NewSourceError(diag.KindGitCheckoutFailed, fmt.Sprintf("git checkout %s: %v: %s", rev, err, out))
		}
	}
	return nil
}
