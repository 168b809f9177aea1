package gc

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/devenvgo/devenv/pkg/fsutil"
)

const linkHashLen = 12

// AddGeneration registers gcRoot in the shared homeGC directory so that a
// later Collect sees it. The link name is derived from the absolute gcRoot
// path, so re-registering the same root is a no-op.
func AddGeneration(homeGC, gcRoot string) (string, error) {
	abs, err := filepath.Abs(gcRoot)
	if err != nil {
		return "", fmt.Errorf("failed to resolve gc root %s: %w", gcRoot, err)
	}
	if err := os.MkdirAll(homeGC, 0755); err != nil {
		return "", fmt.Errorf("failed to create gc directory %s: %w", homeGC, err)
	}

	link := filepath.Join(homeGC, LinkName(abs))
	if current, err := os.Readlink(link); err == nil {
		if current == abs {
			return link, nil
		}
		if err := os.Remove(link); err != nil {
			return "", fmt.Errorf("failed to replace generation %s: %w", link, err)
		}
	}

	if err := os.Symlink(abs, link); err != nil {
		return "", fmt.Errorf("failed to create generation %s: %w", link, err)
	}
	return link, nil
}

// LinkName is the file name used for the generation of an absolute gc root
func LinkName(gcRoot string) string {
	return fsutil.HashString(gcRoot)[:linkHashLen] + "-" + filepath.Base(gcRoot)
}
