package devenv

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	pcontext "github.com/devenvgo/devenv/pkg/context"
	"github.com/devenvgo/devenv/pkg/logger"
	"github.com/devenvgo/devenv/pkg/tasks"
)

// RunTasks runs the given roots inside the captured environment and
// returns the outputs of every task
func (d *Devenv) RunTasks(ctx context.Context, roots []string, mode tasks.RunMode) (tasks.Outputs, error) {
	ctx = pcontext.WithOperation(ctx, "tasks")
	log := logger.FromContext(ctx, d.logger)

	if err := d.Assemble(ctx, false); err != nil {
		return nil, err
	}
	if len(roots) == 0 {
		return nil, ErrNoTasks
	}

	envs, err := d.CaptureEnvironment(ctx)
	if err != nil {
		return nil, err
	}
	// The task engine inherits the environment of this process
	for key, value := range envs {
		if err := os.Setenv(key, value); err != nil {
			return nil, fmt.Errorf("failed to set %s: %w", key, err)
		}
	}

	log.Info("Evaluating tasks")
	defs, err := d.taskConfig(ctx)
	if err != nil {
		return nil, err
	}

	cfg := tasks.Config{Roots: roots, Tasks: defs, RunMode: mode}
	if data, err := json.MarshalIndent(cfg, "", "  "); err == nil {
		log.Debug("Tasks config: " + string(data))
	}

	status, outputs, err := d.engine.Run(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if status.Failed > 0 || status.DependencyFailed > 0 {
		return outputs, fmt.Errorf("%w: %d failed, %d dependency failed",
			ErrTasksFailed, status.Failed, status.DependencyFailed)
	}
	return outputs, nil
}

// PrintTasks runs the tasks and prints their outputs as JSON
func (d *Devenv) PrintTasks(ctx context.Context, roots []string, mode tasks.RunMode) error {
	outputs, err := d.RunTasks(ctx, roots, mode)
	if err != nil {
		return err
	}
	data, err := json.Marshal(outputs)
	if err != nil {
		return fmt.Errorf("failed to serialize task outputs: %w", err)
	}
	_, err = fmt.Fprintln(d.stdout, string(data))
	return err
}

func (d *Devenv) taskConfig(ctx context.Context) ([]tasks.TaskConfig, error) {
	paths, err := d.backend.Build(ctx, []string{"devenv.task.config"}, nil, filepath.Join(d.dotGC, "task-config"))
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, &ParseError{What: "task config", Err: fmt.Errorf("no output path")}
	}

	data, err := os.ReadFile(paths[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read task config %s: %w", paths[0], err)
	}
	var defs []tasks.TaskConfig
	if err := json.Unmarshal(data, &defs); err != nil {
		return nil, &ParseError{What: "task config", Err: err}
	}
	return defs, nil
}
