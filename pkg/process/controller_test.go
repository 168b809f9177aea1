package process_test

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devenvgo/devenv/pkg/process"
)

func newController(t *testing.T) *process.Controller {
	t.Helper()
	dir := t.TempDir()
	return process.NewController(process.Config{
		PIDFile: filepath.Join(dir, "processes.pid"),
		LogFile: filepath.Join(dir, "processes.log"),
	}, nil)
}

func TestStop_WithoutStart(t *testing.T) {
	c := newController(t)
	assert.ErrorIs(t, c.Stop(), process.ErrNotRunning)
	assert.False(t, c.IsRunning())
}

func TestStartDetached_ThenStop(t *testing.T) {
	c := newController(t)

	pid, err := c.Start(exec.Command("sleep", "30"), process.StartOptions{Detach: true})
	require.NoError(t, err)
	require.Positive(t, pid)

	data, err := os.ReadFile(c.PIDFile())
	require.NoError(t, err)
	recorded, err := strconv.Atoi(string(data))
	require.NoError(t, err)
	assert.Equal(t, pid, recorded)
	assert.True(t, c.IsRunning())

	require.NoError(t, c.Stop())
	assert.NoFileExists(t, c.PIDFile())
}

func TestStop_ProcessNotFound(t *testing.T) {
	c := newController(t)

	// A reaped child leaves a pid nobody owns
	cmd := exec.Command("true")
	require.NoError(t, cmd.Run())
	require.NoError(t, os.WriteFile(c.PIDFile(), []byte(strconv.Itoa(cmd.Process.Pid)), 0644))

	assert.ErrorIs(t, c.Stop(), process.ErrProcessNotFound)
	assert.FileExists(t, c.PIDFile(), "pid file is only removed after a successful stop")
}

func TestReadPID_Invalid(t *testing.T) {
	for _, content := range []string{"abc", "0", "-4", ""} {
		t.Run(content, func(t *testing.T) {
			c := newController(t)
			require.NoError(t, os.WriteFile(c.PIDFile(), []byte(content), 0644))

			_, err := c.ReadPID()
			assert.ErrorIs(t, err, process.ErrInvalidPID)
		})
	}
}

func TestStartDetached_LogToFile(t *testing.T) {
	c := newController(t)

	_, err := c.Start(exec.Command("sh", "-c", "echo started; echo oops >&2"), process.StartOptions{
		Detach:    true,
		LogToFile: true,
	})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		data, err := os.ReadFile(c.LogFile())
		return err == nil && strings.Contains(string(data), "started") && strings.Contains(string(data), "oops")
	}, 5*time.Second, 20*time.Millisecond)
}

func TestStart_SpawnFailure(t *testing.T) {
	c := newController(t)

	_, err := c.Start(exec.Command(filepath.Join(t.TempDir(), "missing")), process.StartOptions{Detach: true})
	assert.Error(t, err)
	assert.NoFileExists(t, c.PIDFile())
}

func TestExecReplace_ResolveError(t *testing.T) {
	err := process.ExecReplace(exec.Command("devenv-definitely-not-on-path"))
	assert.Error(t, err)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestShowLogs_Tail(t *testing.T) {
	c := newController(t)
	require.NoError(t, os.WriteFile(c.LogFile(), []byte("one\ntwo\nthree\n"), 0644))

	var out bytes.Buffer
	require.NoError(t, c.ShowLogs(context.Background(), &out, 2, false))
	assert.Equal(t, "two\nthree\n", out.String())

	out.Reset()
	require.NoError(t, c.ShowLogs(context.Background(), &out, 0, false))
	assert.Equal(t, "one\ntwo\nthree\n", out.String())
}

func TestShowLogs_Missing(t *testing.T) {
	c := newController(t)
	assert.ErrorIs(t, c.ShowLogs(context.Background(), &bytes.Buffer{}, 10, false), os.ErrNotExist)
}

func TestShowLogs_Follow(t *testing.T) {
	c := newController(t)
	require.NoError(t, os.WriteFile(c.LogFile(), []byte("boot\n"), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := &syncBuffer{}
	done := make(chan error, 1)
	go func() { done <- c.ShowLogs(ctx, out, 0, true) }()

	assert.Eventually(t, func() bool { return out.String() == "boot\n" }, 5*time.Second, 10*time.Millisecond)

	f, err := os.OpenFile(c.LogFile(), os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString("ready\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	assert.Eventually(t, func() bool { return strings.Contains(out.String(), "ready") }, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("ShowLogs did not return after cancel")
	}
}
