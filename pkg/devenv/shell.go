package devenv

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"

	"github.com/alessio/shellescape"

	"github.com/devenvgo/devenv/pkg/backend"
	pcontext "github.com/devenvgo/devenv/pkg/context"
	"github.com/devenvgo/devenv/pkg/fsutil"
	"github.com/devenvgo/devenv/pkg/logger"
	"github.com/devenvgo/devenv/pkg/process"
)

const shellPrelude = `if [ -n "$PS1" ] && [ -e $HOME/.bashrc ]; then
    source $HOME/.bashrc;
fi

shopt -u expand_aliases
%s
shopt -s expand_aliases
`

// DevEnvironment evaluates the shell environment and records the files it
// was evaluated from in input-paths.txt
func (d *Devenv) DevEnvironment(ctx context.Context, json bool) (*backend.DevEnv, error) {
	if err := d.Assemble(ctx, false); err != nil {
		return nil, err
	}

	env, err := d.backend.DevEnv(ctx, json, filepath.Join(d.dotGC, "shell"))
	if err != nil {
		return nil, err
	}

	overlay := filepath.Join(d.dotfile, CliOptionsFile)
	paths := make([]string, 0, len(env.Inputs))
	for _, input := range env.Inputs {
		// The overlay is part of the evaluation but must not retrigger direnv
		if input == overlay {
			continue
		}
		paths = append(paths, input)
	}
	if err := d.writeState("input-paths.txt", strings.Join(paths, "\n")); err != nil {
		return nil, err
	}
	return env, nil
}

// PrintDevEnv writes the evaluated environment to stdout
func (d *Devenv) PrintDevEnv(ctx context.Context, json bool) error {
	env, err := d.DevEnvironment(ctx, json)
	if err != nil {
		return err
	}
	_, err = d.stdout.Write(env.Output)
	return err
}

func (d *Devenv) bash(ctx context.Context, refresh bool) (string, error) {
	attr := fmt.Sprintf("nixpkgs#legacyPackages.%s.bashInteractive.out", d.global.System)
	paths, err := d.backend.Build(ctx, []string{attr}, &backend.Options{
		CacheOutput:         true,
		RefreshCachedOutput: refresh,
	}, filepath.Join(d.dotfile, "bash"))
	if err != nil {
		return "", err
	}
	if len(paths) == 0 {
		return "", fmt.Errorf("building %s returned no output", attr)
	}

	bash := strings.TrimRight(paths[0], "\n") + "/bin/bash"
	if _, err := os.Stat(bash); err != nil {
		return "", fmt.Errorf("bash is not available: %w", err)
	}
	return bash, nil
}

// resolveBash tries the cached interpreter first and rebuilds it once
func (d *Devenv) resolveBash(ctx context.Context) (string, error) {
	bash, err := d.bash(ctx, false)
	if err == nil {
		return bash, nil
	}
	logger.FromContext(ctx, d.logger).Debug(fmt.Sprintf("Failed to get bash: %v. Rebuilding.", err))
	return d.bash(ctx, true)
}

// PrepareShell returns a command running the evaluated environment. With a
// command the shell execs it with the given arguments, otherwise the shell
// is interactive.
func (d *Devenv) PrepareShell(ctx context.Context, command string, args []string) (*exec.Cmd, error) {
	ctx = pcontext.WithOperation(ctx, "shell")

	env, err := d.DevEnvironment(ctx, false)
	if err != nil {
		return nil, err
	}

	bash, err := d.resolveBash(ctx)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(d.runtime, "shell")
	script := fmt.Sprintf(shellPrelude, env.Output)

	// Not bound to ctx: a detached service group must outlive the invocation
	cmd := exec.Command(bash)
	if command != "" {
		script += "\nexec " + command + " " + shellescape.QuoteCommand(args)
		cmd.Args = append(cmd.Args, path)
	} else {
		cmd.Args = append(cmd.Args, "--rcfile", path)
	}

	if err := fsutil.WriteExecutable(path, script); err != nil {
		return nil, err
	}

	if clean, keep := d.cleanPolicy(); clean {
		cmd.Env = filterEnv(os.Environ(), keep)
	} else {
		cmd.Env = os.Environ()
	}
	cmd.Env = append(cmd.Env, "SHELL="+bash)
	if cmdline, ok := os.LookupEnv("DEVENV_CMDLINE"); ok {
		cmd.Env = append(cmd.Env, "DEVENV_CMDLINE="+cmdline)
	}
	return cmd, nil
}

// Shell replaces the current process with an interactive shell. It only
// returns on failure.
func (d *Devenv) Shell(ctx context.Context) error {
	cmd, err := d.PrepareShell(ctx, "", nil)
	if err != nil {
		return err
	}
	d.logger.Info("Entering shell")
	return fmt.Errorf("failed to execute shell: %w", process.ExecReplace(cmd))
}

// ExecInShell runs a command inside the environment with inherited stdio
// and returns its exit code
func (d *Devenv) ExecInShell(ctx context.Context, command string, args []string) (int, error) {
	cmd, err := d.PrepareShell(ctx, command, args)
	if err != nil {
		return 0, err
	}
	cmd.Stdin = d.stdin
	cmd.Stdout = d.stdout
	cmd.Stderr = d.stderr

	d.logger.Debug("Executing in shell", logger.WithField("command", command))
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return 0, fmt.Errorf("failed to run %s: %w", command, err)
	}
	return 0, nil
}

// CaptureEnvironment runs the evaluated environment and returns the
// variables it exports merged over the ambient environment. Exported values
// win over ambient ones.
func (d *Devenv) CaptureEnvironment(ctx context.Context) (map[string]string, error) {
	dir, err := os.MkdirTemp("", "devenv-env")
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary directory for environment capture: %w", err)
	}
	defer os.RemoveAll(dir)

	scriptPath := filepath.Join(dir, "script")
	envPath := filepath.Join(dir, "env")
	if err := fsutil.WriteExecutable(scriptPath, "#!/bin/sh\nenv > "+shellescape.Quote(envPath)+"\n"); err != nil {
		return nil, err
	}

	cmd, err := d.PrepareShell(ctx, scriptPath, nil)
	if err != nil {
		return nil, err
	}
	cmd.Stdout = d.stdout
	cmd.Stderr = d.stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("failed to execute environment capture script: %w", err)
	}

	file, err := os.Open(envPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open environment file at %s: %w", envPath, err)
	}
	defer file.Close()

	envs := envMap(os.Environ())
	if clean, keep := d.cleanPolicy(); clean {
		envs = envMap(filterEnv(os.Environ(), keep))
	}

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), "=")
		if !ok {
			continue
		}
		envs[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", envPath, err)
	}
	return envs, nil
}

// cleanPolicy resolves the filtered-environment policy. The command line
// wins over devenv.yaml.
func (d *Devenv) cleanPolicy() (bool, []string) {
	if d.global.CleanEnabled {
		return true, d.global.Clean
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	clean := d.config.CleanPolicy()
	return clean.Enabled, clean.Keep
}

func filterEnv(environ []string, keep []string) []string {
	out := make([]string, 0, len(keep))
	for _, kv := range environ {
		key, _, _ := strings.Cut(kv, "=")
		if slices.Contains(keep, key) {
			out = append(out, kv)
		}
	}
	return out
}

func envMap(environ []string) map[string]string {
	m := make(map[string]string, len(environ))
	for _, kv := range environ {
		if key, value, ok := strings.Cut(kv, "="); ok {
			m[key] = value
		}
	}
	return m
}

func envList(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, k+"="+v)
	}
	slices.Sort(out)
	return out
}
