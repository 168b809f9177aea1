package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// ShowLogs writes the last lines of the service group log to w. A
// non-positive lines writes everything. With follow set it keeps copying
// appended output until ctx is done or the log is removed.
func (c *Controller) ShowLogs(ctx context.Context, w io.Writer, lines int, follow bool) error {
	file, err := os.Open(c.logFile)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("no logs found at %s: %w", c.logFile, err)
	}
	if err != nil {
		return err
	}
	defer file.Close()

	if err := writeTail(file, w, lines); err != nil {
		return err
	}
	if !follow {
		return nil
	}
	return followFile(ctx, c.logFile, file, w)
}

// writeTail copies the last n lines of r, leaving r positioned at its end
func writeTail(r io.Reader, w io.Writer, n int) error {
	if n <= 0 {
		_, err := io.Copy(w, r)
		return err
	}

	var all []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		all = append(all, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if len(all) == 0 {
		return nil
	}

	start := 0
	if len(all) > n {
		start = len(all) - n
	}
	_, err := io.WriteString(w, strings.Join(all[start:], "\n")+"\n")
	return err
}

func followFile(ctx context.Context, path string, file *os.File, w io.Writer) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}

	// Catch up on anything written between the first read and the watch
	if _, err := io.Copy(w, file); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				return nil
			}
			if event.Has(fsnotify.Write) {
				if _, err := io.Copy(w, file); err != nil {
					return err
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watching %s: %w", path, err)
		}
	}
}
