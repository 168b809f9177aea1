package devenv

import (
	"bufio"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/devenvgo/devenv/pkg/fsutil"
)

var (
	requiredFiles = []string{"devenv.nix", "devenv.yaml", ".envrc", ".gitignore"}
	// appendedFiles are extended instead of replaced when they exist
	appendedFiles = []string{".gitignore"}
)

// Init writes a starter project into target, or the working directory
func (d *Devenv) Init(target string) error {
	if target == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get current directory: %w", err)
		}
		target = wd
	}
	if err := os.MkdirAll(target, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", target, err)
	}

	for _, name := range requiredFiles {
		d.logger.Info("Creating " + name)

		contents, err := fs.ReadFile(projectFiles, "init/"+name)
		if err != nil {
			return fmt.Errorf("missing %s in the executable: %w", name, err)
		}
		path := filepath.Join(target, name)

		switch {
		case !fsutil.Exists(path):
			if err := os.WriteFile(path, contents, 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", path, err)
			}
		case slices.Contains(appendedFiles, name):
			if err := appendFile(path, contents); err != nil {
				return err
			}
		default:
			if err := d.confirmOverwrite(path, string(contents)); err != nil {
				return err
			}
		}
	}

	direnv, err := exec.LookPath("direnv")
	if err != nil {
		return nil
	}
	cmd := exec.Command(direnv, "allow")
	cmd.Dir = target
	cmd.Stdin = d.stdin
	cmd.Stdout = d.stdout
	cmd.Stderr = d.stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("direnv allow failed: %w", err)
	}
	return nil
}

func appendFile(path string, contents []byte) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.Write(append([]byte("\n"), contents...)); err != nil {
		return fmt.Errorf("failed to append to %s: %w", path, err)
	}
	return nil
}

// confirmOverwrite shows the pending change and asks before replacing
// path. Without an interactive terminal the file is kept.
func (d *Devenv) confirmOverwrite(path, contents string) error {
	before, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if string(before) == contents {
		return nil
	}

	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(before)),
		B:        difflib.SplitLines(contents),
		FromFile: path,
		ToFile:   path,
		Context:  3,
	})
	if err != nil {
		return fmt.Errorf("failed to diff %s: %w", path, err)
	}

	fmt.Fprintf(d.stderr, "\nChanges that will be made to %s:\n", path)
	writeColoredDiff(d.stderr, diff)

	if !isInteractive(d.stdin) {
		d.logger.Warn(fmt.Sprintf("%s already exists, not overwriting without a terminal", path))
		return nil
	}

	fmt.Fprintf(d.stderr, "%s already exists. Do you want to overwrite it? [y/N] ", path)
	answer, err := bufio.NewReader(d.stdin).ReadString('\n')
	if err != nil && err != io.EOF {
		return fmt.Errorf("failed to read answer: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
	}
	return nil
}

func writeColoredDiff(w io.Writer, diff string) {
	added := color.New(color.FgGreen)
	removed := color.New(color.FgRed)
	for _, line := range difflib.SplitLines(diff) {
		switch {
		case strings.HasPrefix(line, "+") && !strings.HasPrefix(line, "+++"):
			added.Fprint(w, line)
		case strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "---"):
			removed.Fprint(w, line)
		default:
			fmt.Fprint(w, line)
		}
	}
}

func isInteractive(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
