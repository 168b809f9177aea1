package devenv_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devenvgo/devenv/pkg/backend/backendtest"
)

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestInit_FreshDirectory(t *testing.T) {
	f := newFixture(t, &backendtest.Fake{})
	t.Setenv("PATH", t.TempDir())
	target := filepath.Join(t.TempDir(), "project")

	require.NoError(t, f.d.Init(target))

	for _, name := range []string{"devenv.nix", "devenv.yaml", ".envrc", ".gitignore"} {
		assert.FileExists(t, filepath.Join(target, name))
	}
	assert.Contains(t, readFile(t, filepath.Join(target, ".envrc")), "use devenv")
}

func TestInit_ExistingFiles(t *testing.T) {
	f := newFixture(t, &backendtest.Fake{})
	t.Setenv("PATH", t.TempDir())
	target := t.TempDir()
	writeFile(t, filepath.Join(target, ".gitignore"), "node_modules\n")
	writeFile(t, filepath.Join(target, "devenv.nix"), "{ my = \"config\"; }\n")

	require.NoError(t, f.d.Init(target))

	gitignore := readFile(t, filepath.Join(target, ".gitignore"))
	assert.True(t, strings.HasPrefix(gitignore, "node_modules\n\n"))
	assert.Contains(t, gitignore, ".devenv*")

	// Without a terminal the user's file is kept
	assert.Equal(t, "{ my = \"config\"; }\n", readFile(t, filepath.Join(target, "devenv.nix")))
}

func TestInit_RunsDirenvAllow(t *testing.T) {
	f := newFixture(t, &backendtest.Fake{})
	bin := t.TempDir()
	writeScript(t, filepath.Join(bin, "direnv"), "#!/bin/sh\necho \"direnv $1\"\ntouch allowed\n")
	t.Setenv("PATH", bin+string(os.PathListSeparator)+os.Getenv("PATH"))
	target := t.TempDir()

	require.NoError(t, f.d.Init(target))

	assert.FileExists(t, filepath.Join(target, "allowed"))
	assert.Equal(t, "direnv allow\n", f.stdout.String())
}

func TestInit_DirenvAllowFailure(t *testing.T) {
	f := newFixture(t, &backendtest.Fake{})
	bin := t.TempDir()
	writeScript(t, filepath.Join(bin, "direnv"), "#!/bin/sh\nexit 2\n")
	t.Setenv("PATH", bin+string(os.PathListSeparator)+os.Getenv("PATH"))

	err := f.d.Init(t.TempDir())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "direnv allow failed")
}
