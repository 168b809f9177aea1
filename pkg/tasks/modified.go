package tasks

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"

	"github.com/devenvgo/devenv/internal/glob"
	"github.com/devenvgo/devenv/pkg/fsutil"
)

// fileHashes maps a path relative to the task directory to its content hash
type fileHashes map[string]string

// taskDir is where a task runs and where its exec_if_modified patterns are
// resolved
func taskDir(task TaskConfig) (string, error) {
	if task.Cwd != nil {
		return filepath.Clean(*task.Cwd), nil
	}
	return os.Getwd()
}

// collectHashes hashes every regular file under dir matching patterns
func collectHashes(dir string, patterns []string) (fileHashes, error) {
	m, err := glob.Compile(patterns)
	if err != nil {
		return nil, err
	}

	hashes := fileHashes{}
	err = filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			if path != dir && glob.Excluded(entry.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !entry.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil || !m.Match(rel) {
			return nil
		}
		sum, err := fsutil.FileHash(path)
		if err != nil {
			return err
		}
		hashes[filepath.ToSlash(rel)] = sum
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	return hashes, nil
}

// loadHashes reads the hashes recorded after each task's last successful
// run. A missing state file yields an empty record.
func (r *Runner) loadHashes() (map[string]fileHashes, error) {
	data, err := fsutil.ReadFileWithLock(r.StateFile)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]fileHashes{}, nil
	}
	if err != nil {
		return nil, err
	}

	state := map[string]fileHashes{}
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", r.StateFile, err)
	}
	return state, nil
}

// unmodified reports whether the files matched by the task's patterns are
// identical to the last successful run. The current hashes are returned for
// recording once the task succeeds.
func (r *Runner) unmodified(task TaskConfig) (bool, fileHashes, error) {
	dir, err := taskDir(task)
	if err != nil {
		return false, nil, err
	}
	current, err := collectHashes(dir, task.ExecIfModified)
	if err != nil {
		return false, nil, err
	}

	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	state, err := r.loadHashes()
	if err != nil {
		return false, current, err
	}
	previous, ok := state[task.Name]
	return ok && maps.Equal(previous, current), current, nil
}

func (r *Runner) recordHashes(task string, hashes fileHashes) error {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()

	state, err := r.loadHashes()
	if err != nil {
		return err
	}
	state[task] = hashes
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	_, err = fsutil.WriteFileWithLock(r.StateFile, data)
	return err
}
