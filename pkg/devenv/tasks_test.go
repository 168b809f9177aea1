package devenv_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devenvgo/devenv/pkg/backend"
	"github.com/devenvgo/devenv/pkg/backend/backendtest"
	"github.com/devenvgo/devenv/pkg/devenv"
	"github.com/devenvgo/devenv/pkg/tasks"
)

type recordingEngine struct {
	mu      sync.Mutex
	configs []tasks.Config
	status  tasks.Status
	outputs tasks.Outputs
}

func (e *recordingEngine) Run(_ context.Context, cfg tasks.Config) (tasks.Status, tasks.Outputs, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.configs = append(e.configs, cfg)
	return e.status, e.outputs, nil
}

func tasksFixture(t *testing.T, engine *recordingEngine) *fixture {
	t.Helper()
	taskConfig := filepath.Join(t.TempDir(), "tasks.json")
	writeFile(t, taskConfig, `[{"name":"myapp:build","command":"make"},{"name":"myapp:test","after":["myapp:build"]}]`)

	fake := shellBackend(t, "export DEVENV_TASKS_CAPTURED=yes\n")
	bash := fake.BuildFunc
	fake.BuildFunc = func(attributes []string, opts backend.Options, gcRoot string) ([]string, error) {
		if attributes[0] == "devenv.task.config" {
			return []string{taskConfig}, nil
		}
		return bash(attributes, opts, gcRoot)
	}
	preserveEnv(t)
	return newFixture(t, fake, func(o *devenv.Options) { o.Engine = engine })
}

func TestRunTasks_NoRoots(t *testing.T) {
	f := newFixture(t, &backendtest.Fake{})

	_, err := f.d.RunTasks(context.Background(), nil, tasks.RunModeBefore)

	assert.ErrorIs(t, err, devenv.ErrNoTasks)
}

func TestRunTasks_HandsConfigToEngine(t *testing.T) {
	engine := &recordingEngine{
		status:  tasks.Status{Succeeded: 2},
		outputs: tasks.Outputs{"myapp:build": json.RawMessage(`{"artifact":"bin/app"}`)},
	}
	f := tasksFixture(t, engine)
	t.Setenv("DEVENV_TASKS_CAPTURED", "")

	require.NoError(t, f.d.PrintTasks(context.Background(), []string{"myapp:test"}, tasks.RunModeAll))

	require.Len(t, engine.configs, 1)
	cfg := engine.configs[0]
	assert.Equal(t, []string{"myapp:test"}, cfg.Roots)
	assert.Equal(t, tasks.RunModeAll, cfg.RunMode)
	require.Len(t, cfg.Tasks, 2)
	assert.Equal(t, "myapp:build", cfg.Tasks[0].Name)
	assert.Equal(t, []string{"myapp:build"}, cfg.Tasks[1].After)

	assert.Equal(t, `{"myapp:build":{"artifact":"bin/app"}}`, strings.TrimSpace(f.stdout.String()))

	build := f.fake.CallsFor("build")
	last := build[len(build)-1]
	assert.Equal(t, filepath.Join(f.d.Dotfile(), "gc", "task-config"), last.GCRoot)
}

func TestRunTasks_InstallsCapturedEnvironment(t *testing.T) {
	engine := &recordingEngine{}
	f := tasksFixture(t, engine)
	t.Setenv("DEVENV_TASKS_CAPTURED", "no")

	_, err := f.d.RunTasks(context.Background(), []string{"myapp:build"}, tasks.RunModeSingle)
	require.NoError(t, err)

	assert.Equal(t, "yes", os.Getenv("DEVENV_TASKS_CAPTURED"))
}

func TestRunTasks_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status tasks.Status
	}{
		{"failed", tasks.Status{Failed: 1, Succeeded: 1}},
		{"dependency failed", tasks.Status{DependencyFailed: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := tasksFixture(t, &recordingEngine{status: tt.status})
			t.Setenv("DEVENV_TASKS_CAPTURED", "")

			_, err := f.d.RunTasks(context.Background(), []string{"myapp:test"}, tasks.RunModeBefore)

			assert.ErrorIs(t, err, devenv.ErrTasksFailed)
		})
	}
}

// preserveEnv restores the process environment after RunTasks installed
// the captured one
func preserveEnv(t *testing.T) {
	t.Helper()
	saved := os.Environ()
	t.Cleanup(func() {
		os.Clearenv()
		for _, kv := range saved {
			if key, value, ok := strings.Cut(kv, "="); ok {
				os.Setenv(key, value)
			}
		}
	})
}
