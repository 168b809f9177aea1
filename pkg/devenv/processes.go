package devenv

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strings"

	pcontext "github.com/devenvgo/devenv/pkg/context"
	"github.com/devenvgo/devenv/pkg/fsutil"
	"github.com/devenvgo/devenv/pkg/logger"
	"github.com/devenvgo/devenv/pkg/process"
)

// ProcessOptions controls how the service group is started
type ProcessOptions struct {
	// Env runs the group with exactly these variables instead of a freshly
	// evaluated shell
	Env       map[string]string
	Detach    bool
	LogToFile bool
}

// HasProcesses reports whether the environment defines any process. A
// successful answer is remembered for the lifetime of the Devenv.
func (d *Devenv) HasProcesses(ctx context.Context) (bool, error) {
	d.processesMu.Lock()
	defer d.processesMu.Unlock()

	if d.hasProcesses != nil {
		return *d.hasProcesses, nil
	}

	out, err := d.backend.Eval(ctx, []string{"devenv.processes"})
	if err != nil {
		return false, err
	}
	has := strings.TrimSpace(out) != "{}"
	d.hasProcesses = &has
	return has, nil
}

// Up starts the service group, optionally limited to the named processes.
// Without Detach the current process is replaced and Up only returns on
// failure.
func (d *Devenv) Up(ctx context.Context, processes []string, opts ProcessOptions) error {
	ctx = pcontext.WithOperation(ctx, "up")
	log := logger.FromContext(ctx, d.logger)

	if err := d.Assemble(ctx, false); err != nil {
		return err
	}
	has, err := d.HasProcesses(ctx)
	if err != nil {
		return err
	}
	if !has {
		log.Error("No 'processes' option defined: https://devenv.sh/processes/")
		return ErrNoProcesses
	}

	log.Info("Building processes")
	paths, err := d.backend.Build(ctx, []string{"procfileScript"}, nil, filepath.Join(d.dotGC, "procfilescript"))
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return &ParseError{What: "procfileScript", Err: fmt.Errorf("no output path")}
	}

	log.Info("Starting processes")
	script := filepath.Join(d.dotfile, "processes")
	if err := fsutil.WriteExecutable(script, processesScript(paths[0], processes, opts.Detach)); err != nil {
		return err
	}

	var cmd *exec.Cmd
	if opts.Env != nil {
		bash, err := exec.LookPath("bash")
		if err != nil {
			return fmt.Errorf("failed to find bash: %w", err)
		}
		cmd = exec.Command(bash, script)
		cmd.Env = envList(opts.Env)
	} else {
		if cmd, err = d.PrepareShell(ctx, script, nil); err != nil {
			return err
		}
	}

	_, err = d.procs.Start(cmd, process.StartOptions{Detach: opts.Detach, LogToFile: opts.LogToFile})
	return err
}

func processesScript(procfileScript string, processes []string, detach bool) string {
	tui := ""
	if detach {
		tui = "export PC_TUI_ENABLED=0"
	}
	return fmt.Sprintf("#!/usr/bin/env bash\n%s\nexec %s %s\n", tui, procfileScript, strings.Join(processes, " "))
}

// Down stops the service group started by Up
func (d *Devenv) Down() error {
	if err := d.procs.Stop(); err != nil {
		if errors.Is(err, ErrNotRunning) {
			d.logger.Error("No processes running.")
		}
		return err
	}
	return nil
}

// ProcessLogs prints the last lines of the detached group's log and
// optionally keeps following it until ctx is done
func (d *Devenv) ProcessLogs(ctx context.Context, w io.Writer, lines int, follow bool) error {
	return d.procs.ShowLogs(ctx, w, lines, follow)
}
