package devenv_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devenvgo/devenv/pkg/backend"
	"github.com/devenvgo/devenv/pkg/backend/backendtest"
	"github.com/devenvgo/devenv/pkg/devenv"
)

// containerBackend serves the three container stages. The scripts append
// their invocation to log.
func containerBackend(t *testing.T, copyExit string) (*backendtest.Fake, string) {
	t.Helper()
	dir := t.TempDir()
	log := filepath.Join(dir, "log")
	copyScript := writeScript(t, filepath.Join(dir, "copy"),
		"#!/bin/sh\necho \"copy $*\" >> "+log+"\nexit "+copyExit+"\n")
	runScript := writeScript(t, filepath.Join(dir, "run"),
		"#!/bin/sh\necho run >> "+log+"\n")

	fake := &backendtest.Fake{
		BuildFunc: func(attributes []string, _ backend.Options, _ string) ([]string, error) {
			switch {
			case strings.HasSuffix(attributes[0], ".derivation"):
				return []string{"/nix/store/abc-image"}, nil
			case strings.HasSuffix(attributes[0], ".copyScript"):
				return []string{copyScript}, nil
			case strings.HasSuffix(attributes[0], ".dockerRun"):
				return []string{runScript}, nil
			}
			return nil, nil
		},
	}
	return fake, log
}

func builtAttributes(fake *backendtest.Fake) []string {
	var attrs []string
	for _, c := range fake.CallsFor("build") {
		attrs = append(attrs, c.Attributes...)
	}
	return attrs
}

func TestContainerBuild(t *testing.T) {
	fake, _ := containerBackend(t, "0")
	f := newFixture(t, fake)

	path, err := f.d.ContainerBuild(context.Background(), "my.app")
	require.NoError(t, err)

	assert.Equal(t, "/nix/store/abc-image", path)
	assert.Equal(t, "/nix/store/abc-image\n", f.stdout.String())

	calls := fake.CallsFor("build")
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"devenv.containers.my.app.derivation"}, calls[0].Attributes)
	assert.Equal(t, filepath.Join(f.d.Dotfile(), "gc", "container-myapp-derivation"), calls[0].GCRoot)
}

func TestContainerCopy(t *testing.T) {
	fake, log := containerBackend(t, "0")
	f := newFixture(t, fake)

	require.NoError(t, f.d.ContainerCopy(context.Background(), "app", []string{"--insecure"}, ""))

	assert.Equal(t, []string{
		"devenv.containers.app.derivation",
		"devenv.containers.app.copyScript",
	}, builtAttributes(fake))
	assert.Equal(t, filepath.Join(f.d.Dotfile(), "gc", "container-app-copy"), fake.CallsFor("build")[1].GCRoot)

	data, err := os.ReadFile(log)
	require.NoError(t, err)
	assert.Equal(t, "copy /nix/store/abc-image false --insecure\n", string(data))
}

func TestContainerRun_CopiesToDaemonFirst(t *testing.T) {
	fake, log := containerBackend(t, "0")
	f := newFixture(t, fake)

	require.NoError(t, f.d.ContainerRun(context.Background(), "app", nil, "docker://ignored"))

	assert.Equal(t, []string{
		"devenv.containers.app.derivation",
		"devenv.containers.app.copyScript",
		"devenv.containers.app.dockerRun",
	}, builtAttributes(fake))
	assert.Equal(t, filepath.Join(f.d.Dotfile(), "gc", "container-app-run"), fake.CallsFor("build")[2].GCRoot)

	data, err := os.ReadFile(log)
	require.NoError(t, err)
	assert.Equal(t, "copy /nix/store/abc-image docker-daemon:\nrun\n", string(data))
}

func TestContainerRun_StopsWhenCopyFails(t *testing.T) {
	fake, _ := containerBackend(t, "3")
	f := newFixture(t, fake)

	err := f.d.ContainerRun(context.Background(), "app", nil, "")

	assert.ErrorIs(t, err, devenv.ErrContainerOperationFailed)
	var cerr *devenv.ContainerError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "copy", cerr.Stage)
	assert.NotContains(t, builtAttributes(fake), "devenv.containers.app.dockerRun")
}

func TestContainer_UnsupportedPlatform(t *testing.T) {
	fake, _ := containerBackend(t, "0")
	f := newFixture(t, fake, func(o *devenv.Options) { o.OS = "darwin" })

	_, err := f.d.ContainerBuild(context.Background(), "app")
	assert.ErrorIs(t, err, devenv.ErrUnsupportedPlatform)
	assert.ErrorIs(t, f.d.ContainerCopy(context.Background(), "app", nil, ""), devenv.ErrUnsupportedPlatform)
	assert.ErrorIs(t, f.d.ContainerRun(context.Background(), "app", nil, ""), devenv.ErrUnsupportedPlatform)

	assert.Empty(t, fake.Calls())
}

func TestSanitizeContainerName(t *testing.T) {
	tests := map[string]string{
		"app":           "app",
		"my-app_v2":     "my-app_v2",
		"my.app/../x y": "myappxy",
		"":              "",
	}
	for in, want := range tests {
		assert.Equal(t, want, devenv.SanitizeContainerName(in), in)
	}
}
