package devenv_test

import (
	"bytes"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/devenvgo/devenv/pkg/backend/backendtest"
	"github.com/devenvgo/devenv/pkg/config"
	"github.com/devenvgo/devenv/pkg/devenv"
)

type fixture struct {
	d      *devenv.Devenv
	fake   *backendtest.Fake
	root   string
	home   string
	stdout *bytes.Buffer
}

// newFixture creates a project with a devenv.nix and a Devenv driving fake
func newFixture(t *testing.T, fake *backendtest.Fake, mutate ...func(*devenv.Options)) *fixture {
	t.Helper()
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "devenv.nix"), "{ pkgs, ... }: { }\n")

	f := &fixture{
		fake:   fake,
		root:   root,
		home:   filepath.Join(t.TempDir(), "devenv"),
		stdout: &bytes.Buffer{},
	}
	opts := devenv.Options{
		Config:   config.Default(),
		Global:   devenv.GlobalOptions{System: "x86_64-linux"},
		Root:     root,
		DataHome: f.home,
		Backend:  fake,
		Stdout:   f.stdout,
		Stderr:   io.Discard,
		Stdin:    strings.NewReader(""),
		OS:       "linux",
	}
	for _, m := range mutate {
		m(&opts)
	}

	d, err := devenv.New(opts)
	require.NoError(t, err)
	f.d = d
	return f
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func writeScript(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0755))
	return path
}

// bashOutput returns a directory laid out like the bashInteractive output
func bashOutput(t *testing.T) string {
	t.Helper()
	bash, err := exec.LookPath("bash")
	if err != nil {
		t.Skip("bash not available")
	}
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "bin"), 0755))
	require.NoError(t, os.Symlink(bash, filepath.Join(dir, "bin", "bash")))
	return dir
}

func isBashBuild(attributes []string) bool {
	return len(attributes) == 1 && strings.Contains(attributes[0], "bashInteractive")
}
