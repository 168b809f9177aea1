// Package process starts, tracks and stops the service group of a project
package process

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/devenvgo/devenv/pkg/fsutil"
	"github.com/devenvgo/devenv/pkg/logger"
)

// Config locates the files that track a service group
type Config struct {
	PIDFile string
	LogFile string
}

// StartOptions controls how a service group is started
type StartOptions struct {
	// Detach spawns the command and returns. Otherwise the current
	// process image is replaced and Start never returns on success.
	Detach bool
	// LogToFile sends the detached group's output to the log file
	LogToFile bool
}

// Controller manages a single service group through its pid file.
// Concurrent Start calls are not deduplicated.
type Controller struct {
	pidFile string
	logFile string
	logger  logger.Logger
}

// NewController creates a controller for the given files
func NewController(cfg Config, log logger.Logger) *Controller {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Controller{
		pidFile: cfg.PIDFile,
		logFile: cfg.LogFile,
		logger:  log.WithComponent("processes"),
	}
}

// PIDFile returns the pid file path
func (c *Controller) PIDFile() string {
	return c.pidFile
}

// LogFile returns the log file path
func (c *Controller) LogFile() string {
	return c.logFile
}

// Start runs cmd as the service group. Detached groups get their pid
// recorded and the pid is returned.
func (c *Controller) Start(cmd *exec.Cmd, opts StartOptions) (int, error) {
	if !opts.Detach {
		return 0, ExecReplace(cmd)
	}

	var logFile *os.File
	if opts.LogToFile {
		if err := os.MkdirAll(filepath.Dir(c.logFile), 0755); err != nil {
			return 0, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.Create(c.logFile)
		if err != nil {
			return 0, fmt.Errorf("failed to create %s: %w", c.logFile, err)
		}
		defer f.Close()
		logFile = f
		cmd.Stdout = f
		cmd.Stderr = f
	} else {
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	}
	// Own process group so terminal signals aimed at devenv do not reach it
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to spawn %s: %w", cmd.Path, err)
	}
	pid := cmd.Process.Pid

	if err := c.writePIDFile(pid); err != nil {
		_ = cmd.Process.Kill()
		return 0, err
	}
	// The group outlives this invocation
	_ = cmd.Process.Release()

	c.logger.Info(fmt.Sprintf("PID is %d", pid))
	if logFile != nil {
		c.logger.Info(fmt.Sprintf("See logs:  $ tail -f %s", c.logFile))
	}
	c.logger.Info("Stop:      $ devenv processes stop")
	return pid, nil
}

// Stop terminates the recorded service group and forgets it
func (c *Controller) Stop() error {
	pid, err := c.ReadPID()
	if err != nil {
		return err
	}

	c.logger.Info(fmt.Sprintf("Stopping process with PID %d", pid))

	if err := unix.Kill(pid, unix.SIGTERM); err != nil {
		if errors.Is(err, unix.ESRCH) {
			c.logger.Error(fmt.Sprintf("Process with PID %d not found.", pid))
			return fmt.Errorf("%w: pid %d", ErrProcessNotFound, pid)
		}
		return fmt.Errorf("failed to signal pid %d: %w", pid, err)
	}

	if err := os.Remove(c.pidFile); err != nil {
		return fmt.Errorf("failed to remove %s: %w", c.pidFile, err)
	}
	return nil
}

// IsRunning reports whether the recorded process is alive
func (c *Controller) IsRunning() bool {
	pid, err := c.ReadPID()
	if err != nil {
		return false
	}
	return unix.Kill(pid, 0) == nil
}

// ReadPID parses the pid file
func (c *Controller) ReadPID() (int, error) {
	data, err := os.ReadFile(c.pidFile)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, ErrNotRunning
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", c.pidFile, err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPID, strings.TrimSpace(string(data)))
	}
	return pid, nil
}

func (c *Controller) writePIDFile(pid int) error {
	if err := os.MkdirAll(filepath.Dir(c.pidFile), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	if _, err := fsutil.WriteFileWithLock(c.pidFile, []byte(strconv.Itoa(pid))); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	return nil
}
