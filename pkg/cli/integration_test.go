//go:build integration

package cli_test

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devenvgo/devenv/pkg/cli"
)

// TestEndToEndShell assembles a scaffolded project with the real nix
// backend and runs a command inside it
func TestEndToEndShell(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	if _, err := exec.LookPath("nix"); err != nil {
		t.Skip("nix not available")
	}

	root := t.TempDir()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	run := func(args ...string) (int, string) {
		var stdout, logs bytes.Buffer
		cfg := cli.NewConfig()
		cfg.LogOutput = &logs
		cfg.DataHome = filepath.Join(root, ".data")
		code := cli.NewCLIWithOutput(cfg, &stdout, &logs).Run(ctx, append([]string{"--root", root}, args...))
		t.Log(logs.String())
		return code, stdout.String()
	}

	code, _ := run("init")
	require.Equal(t, 0, code)
	assert.FileExists(t, filepath.Join(root, "devenv.nix"))

	code, out := run("shell", "sh", "-c", "echo $DEVENV_ROOT")
	require.Equal(t, 0, code)
	assert.Contains(t, out, root)

	_, err := os.Stat(filepath.Join(root, ".devenv", "input-paths.txt"))
	assert.NoError(t, err)

	code, _ = run("gc")
	assert.Equal(t, 0, code)
}
