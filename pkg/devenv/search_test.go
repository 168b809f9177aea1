package devenv_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devenvgo/devenv/pkg/backend"
	"github.com/devenvgo/devenv/pkg/backend/backendtest"
	"github.com/devenvgo/devenv/pkg/devenv"
)

const optionsJSON = `{
  "languages.go.enable": {"type": "boolean", "default": {"_type": "literalExpression", "text": "false"}, "description": "Whether to enable Go."},
  "languages.go.package": {"type": "package", "default": "pkgs.go", "description": "The Go package to use."},
  "languages.rust.enable": {"type": "boolean", "description": "Whether to enable Rust."}
}`

func searchBackend(t *testing.T, packages string, searchErr error) *backendtest.Fake {
	t.Helper()
	out := t.TempDir()
	writeFile(t, filepath.Join(out, "share", "doc", "nixos", "options.json"), optionsJSON)

	return &backendtest.Fake{
		BuildFunc: func(attributes []string, _ backend.Options, _ string) ([]string, error) {
			return []string{out}, nil
		},
		SearchFunc: func(string) ([]byte, error) {
			return []byte(packages), searchErr
		},
	}
}

func TestSearchAll(t *testing.T) {
	long := strings.Repeat("é", 100)
	fake := searchBackend(t, `{
		"legacyPackages.x86_64-linux.go": {"version": "1.22.3", "description": "The Go Programming language"},
		"legacyPackages.x86_64-linux.gopls": {"version": "0.15.3", "description": "`+long+`"}
	}`, nil)
	f := newFixture(t, fake)

	results, err := f.d.SearchAll(context.Background(), "go")
	require.NoError(t, err)

	require.Len(t, results.Options, 2)
	assert.Equal(t, devenv.OptionResult{
		Name:        "languages.go.enable",
		Type:        "boolean",
		Default:     "false",
		Description: "Whether to enable Go.",
	}, results.Options[0])
	assert.Equal(t, "pkgs.go", results.Options[1].Default)

	require.Len(t, results.Packages, 2)
	assert.Equal(t, "pkgs.go", results.Packages[0].Name)
	assert.Equal(t, "1.22.3", results.Packages[0].Version)
	assert.Equal(t, "pkgs.gopls", results.Packages[1].Name)
	assert.Equal(t, strings.Repeat("é", 80), results.Packages[1].Description)

	build := fake.CallsFor("build")
	require.Len(t, build, 1)
	assert.Equal(t, []string{"optionsJSON"}, build[0].Attributes)
	assert.True(t, build[0].Options.CacheOutput)
	assert.False(t, build[0].Options.Logging)
	assert.Equal(t, "go", fake.CallsFor("search")[0].Term)
}

func TestSearchAll_FailsFast(t *testing.T) {
	fake := searchBackend(t, "", errors.New("search failed"))
	f := newFixture(t, fake)

	_, err := f.d.SearchAll(context.Background(), "go")

	assert.ErrorContains(t, err, "search failed")
}

func TestSearchAll_MalformedPackages(t *testing.T) {
	fake := searchBackend(t, "not json", nil)
	f := newFixture(t, fake)

	_, err := f.d.SearchAll(context.Background(), "go")

	assert.ErrorIs(t, err, devenv.ErrParse)
}
