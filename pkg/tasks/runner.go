package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/devenvgo/devenv/internal/group"
	"github.com/devenvgo/devenv/pkg/logger"
)

// Runner is the default Engine. Tasks whose prerequisites have all finished
// run concurrently in waves.
type Runner struct {
	logger logger.Logger
	// Env is the base environment of every task. Nil inherits the process environment.
	Env []string
	// Concurrency caps the tasks running at once. Zero uses the CPU count.
	Concurrency int
	// StateFile records the exec_if_modified hashes of each task. Empty
	// disables the check and such tasks always run.
	StateFile string

	stateMu sync.Mutex
}

var _ Engine = (*Runner)(nil)

// NewRunner creates a Runner
func NewRunner(log logger.Logger) *Runner {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Runner{logger: log.WithComponent("tasks")}
}

type result struct {
	state  State
	output json.RawMessage
}

// Run implements Engine. Task failures are reported through Status; the
// error is reserved for a run specification that cannot be executed.
func (r *Runner) Run(ctx context.Context, cfg Config) (Status, Outputs, error) {
	g, err := newGraph(cfg.Tasks)
	if err != nil {
		return Status{}, nil, err
	}
	roots, err := g.resolveRoots(cfg.Roots)
	if err != nil {
		return Status{}, nil, err
	}
	mode := cfg.RunMode
	if mode == "" {
		mode = RunModeBefore
	}
	selected := g.selectTasks(roots, mode)
	if err := g.checkAcyclic(selected); err != nil {
		return Status{}, nil, err
	}

	states := make(map[string]State, len(selected))
	for name := range selected {
		states[name] = StatePending
	}
	outputs := Outputs{}
	var mu sync.Mutex

	limit := r.Concurrency
	if limit <= 0 {
		limit = runtime.NumCPU()
	}

	for {
		wave := r.nextWave(g, selected, states)
		if len(wave) == 0 {
			break
		}

		sg, _ := group.WithContext(ctx, r.logger)
		sg.SetLimit(limit)
		for _, name := range wave {
			name := name
			task := g.tasks[name]
			mu.Lock()
			states[name] = StateRunning
			upstream := r.upstreamOutputs(g, name, outputs)
			mu.Unlock()

			sg.Go(func() error {
				res := r.runTask(ctx, task, upstream)
				mu.Lock()
				defer mu.Unlock()
				states[name] = res.state
				if len(res.output) > 0 {
					outputs[name] = res.output
				}
				return nil
			})
		}
		if err := sg.Wait(); err != nil {
			return Status{}, nil, err
		}
	}

	var status Status
	for _, state := range states {
		status.add(state)
	}
	return status, outputs, nil
}

// nextWave marks tasks blocked by a failure and returns the runnable ones
func (r *Runner) nextWave(g *graph, selected map[string]bool, states map[string]State) []string {
	for {
		changed := false
		var wave []string
		for name := range selected {
			if states[name] != StatePending {
				continue
			}
			ready := true
			for _, p := range g.prereqs[name] {
				if !selected[p] {
					continue
				}
				ps := states[p]
				if ps.terminal() && !ps.successful() {
					states[name] = StateDependencyFailed
					changed = true
					ready = false
					break
				}
				if !ps.terminal() {
					ready = false
				}
			}
			if ready && states[name] == StatePending {
				wave = append(wave, name)
			}
		}
		if !changed {
			sort.Strings(wave)
			return wave
		}
	}
}

func (r *Runner) upstreamOutputs(g *graph, name string, outputs Outputs) map[string]json.RawMessage {
	upstream := make(map[string]json.RawMessage)
	for _, p := range g.prereqs[name] {
		if out, ok := outputs[p]; ok {
			upstream[p] = out
		}
	}
	return upstream
}

func (r *Runner) runTask(ctx context.Context, task TaskConfig, upstream map[string]json.RawMessage) result {
	log := r.logger.WithComponent(task.Name)
	if ctx.Err() != nil {
		return result{state: StateCancelled}
	}

	if task.Status != nil {
		if err := r.command(ctx, task, *task.Status, nil, nil).Run(); err == nil {
			log.Info("Skipped, status check passed")
			return result{state: StateSkipped}
		}
	}

	var hashes fileHashes
	if len(task.ExecIfModified) > 0 && r.StateFile != "" {
		same, current, err := r.unmodified(task)
		switch {
		case err != nil:
			log.Warn("Failed to check modified files, running", logger.WithField("error", err))
		case same:
			log.Info("Skipped, no files modified")
			return result{state: StateSkipped}
		}
		hashes = current
	}

	if task.Command == nil {
		return result{state: StateSucceeded}
	}

	outFile, err := os.CreateTemp("", "devenv-task-output-*.json")
	if err != nil {
		log.Error("Failed to create output file", logger.WithField("error", err))
		return result{state: StateFailed}
	}
	outPath := outFile.Name()
	outFile.Close()
	defer os.Remove(outPath)

	var combined bytes.Buffer
	cmd := r.command(ctx, task, *task.Command, upstream, &combined)
	cmd.Env = append(cmd.Env, "DEVENV_TASK_OUTPUT_FILE="+outPath)

	start := time.Now()
	log.Info("Running")
	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return result{state: StateCancelled}
		}
		log.Error("Failed",
			logger.WithField("error", err),
			logger.WithField("output", combined.String()))
		return result{state: StateFailed}
	}
	log.Success(fmt.Sprintf("Succeeded in %s", time.Since(start).Round(time.Millisecond)))
	if combined.Len() > 0 {
		log.Debug("Task output", logger.WithField("output", combined.String()))
	}

	if hashes != nil {
		if err := r.recordHashes(task.Name, hashes); err != nil {
			log.Warn("Failed to record modified files", logger.WithField("error", err))
		}
	}

	data, err := os.ReadFile(outPath)
	if err != nil || len(bytes.TrimSpace(data)) == 0 {
		return result{state: StateSucceeded}
	}
	if !json.Valid(data) {
		log.Error("Task wrote invalid JSON to its output file", logger.WithField("path", outPath))
		return result{state: StateFailed}
	}
	return result{state: StateSucceeded, output: json.RawMessage(bytes.TrimSpace(data))}
}

func (r *Runner) command(ctx context.Context, task TaskConfig, program string, upstream map[string]json.RawMessage, out *bytes.Buffer) *exec.Cmd {
	cmd := exec.CommandContext(ctx, program)
	if task.Cwd != nil {
		cmd.Dir = filepath.Clean(*task.Cwd)
	}

	env := r.Env
	if env == nil {
		env = os.Environ()
	}
	cmd.Env = append([]string(nil), env...)
	if task.Inputs != nil {
		if data, err := json.Marshal(task.Inputs); err == nil {
			cmd.Env = append(cmd.Env, "DEVENV_TASK_INPUT="+string(data))
		}
	}
	if upstream != nil {
		if data, err := json.Marshal(upstream); err == nil {
			cmd.Env = append(cmd.Env, "DEVENV_TASKS_OUTPUTS="+string(data))
		}
	}

	if out != nil {
		cmd.Stdout = out
		cmd.Stderr = out
	}
	return cmd
}
