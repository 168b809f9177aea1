// Package devenv orchestrates the lifecycle of a project environment: it
// assembles the generated inputs once per invocation, routes every build
// tool call through a backend, captures shells, runs processes, tasks and
// tests, and drives the container pipeline.
package devenv

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/adrg/xdg"
	"golang.org/x/sync/semaphore"

	"github.com/devenvgo/devenv/pkg/backend"
	"github.com/devenvgo/devenv/pkg/config"
	"github.com/devenvgo/devenv/pkg/fsutil"
	"github.com/devenvgo/devenv/pkg/logger"
	"github.com/devenvgo/devenv/pkg/notifier"
	"github.com/devenvgo/devenv/pkg/process"
	"github.com/devenvgo/devenv/pkg/tasks"
)

// Version is reported to the generated flake
const Version = "1.7.0"

const (
	// DotfileName is the default state directory inside the project root
	DotfileName = ".devenv"
	// FlakeFile is the rendered environment specification
	FlakeFile = ".devenv.flake.nix"
	// CliOptionsFile holds the rendered --option overrides
	CliOptionsFile = "cli-options.nix"
	// TaskStateFile holds the exec_if_modified hashes of the task runner
	TaskStateFile = "tasks.json"
)

// GlobalOptions are the switches shared by every command
type GlobalOptions struct {
	System  string
	Verbose bool
	Quiet   bool
	Impure  bool
	Offline bool
	// CleanEnabled clears the environment of shells, keeping only Clean
	CleanEnabled bool
	Clean        []string
	// Options are flat key:type/value pairs from --option
	Options []string
	// NixOptions are flat name/value pairs forwarded to nix --option
	NixOptions []string
	Notify     bool
}

// DefaultSystem returns the nix system double of the running binary
func DefaultSystem() string {
	arch := runtime.GOARCH
	switch arch {
	case "amd64":
		arch = "x86_64"
	case "arm64":
		arch = "aarch64"
	case "386":
		arch = "i686"
	}
	return arch + "-" + runtime.GOOS
}

// Options configure a Devenv
type Options struct {
	// Config defaults to the project's devenv.yaml
	Config *config.Config
	Global GlobalOptions
	// Root defaults to the working directory
	Root string
	// Dotfile defaults to Root/.devenv
	Dotfile string
	// DataHome defaults to $XDG_DATA_HOME/devenv
	DataHome string
	// Backend overrides the backend chosen by the configuration
	Backend backend.Backend
	// Engine runs tasks. Defaults to tasks.Runner.
	Engine        tasks.Engine
	Logger        logger.Logger
	ContainerName string
	Stdout        io.Writer
	Stderr        io.Writer
	Stdin         io.Reader
	// OS defaults to runtime.GOOS
	OS string
}

// Devenv is the orchestrator of one invocation
type Devenv struct {
	mu     sync.RWMutex
	config *config.Config

	global  GlobalOptions
	backend backend.Backend
	engine  tasks.Engine

	root     string
	dotfile  string
	dotGC    string
	homeGC   string
	tmp      string
	runtime  string
	osName   string
	trusted  string
	procs    *process.Controller
	notifier *notifier.Notifier
	logger   logger.Logger

	assembled    atomic.Bool
	assembleGate *semaphore.Weighted

	processesMu  sync.Mutex
	hasProcesses *bool

	containerName string

	stdout io.Writer
	stderr io.Writer
	stdin  io.Reader
}

// New resolves every path and selects the backend. The backend is fixed
// for the lifetime of the returned Devenv.
func New(opts Options) (*Devenv, error) {
	log := opts.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}

	root := opts.Root
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		root = wd
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", root, err)
	}

	cfg := opts.Config
	if cfg == nil {
		if cfg, err = config.Load(root); err != nil {
			return nil, err
		}
	}

	dotfile := opts.Dotfile
	if dotfile == "" {
		dotfile = filepath.Join(root, DotfileName)
	}
	if dotfile, err = filepath.Abs(dotfile); err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", dotfile, err)
	}

	home := opts.DataHome
	if home == "" {
		home = filepath.Join(xdg.DataHome, "devenv")
	}
	homeGC := filepath.Join(home, "gc")
	if err := os.MkdirAll(homeGC, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", homeGC, err)
	}

	tmp := runtimeBase()

	global := opts.Global
	if global.System == "" {
		global.System = DefaultSystem()
	}

	d := &Devenv{
		config:        cfg,
		global:        global,
		engine:        opts.Engine,
		root:          root,
		dotfile:       dotfile,
		dotGC:         filepath.Join(dotfile, "gc"),
		homeGC:        homeGC,
		tmp:           tmp,
		runtime:       filepath.Join(tmp, "devenv-"+fsutil.HashString(dotfile)[:7]),
		osName:        opts.OS,
		trusted:       filepath.Join(home, "cachix_trusted_keys.json"),
		logger:        log,
		assembleGate:  semaphore.NewWeighted(1),
		containerName: opts.ContainerName,
		stdout:        opts.Stdout,
		stderr:        opts.Stderr,
		stdin:         opts.Stdin,
	}
	if d.osName == "" {
		d.osName = runtime.GOOS
	}
	if d.stdout == nil {
		d.stdout = os.Stdout
	}
	if d.stderr == nil {
		d.stderr = os.Stderr
	}
	if d.stdin == nil {
		d.stdin = os.Stdin
	}
	if d.engine == nil {
		runner := tasks.NewRunner(log)
		runner.StateFile = filepath.Join(d.dotfile, TaskStateFile)
		d.engine = runner
	}

	d.backend = opts.Backend
	if d.backend == nil {
		t, err := backend.ParseType(cfg.Backend)
		if err != nil {
			return nil, err
		}
		d.backend, err = backend.New(t, d.backendSettings(), d.Paths(), log)
		if err != nil {
			return nil, err
		}
	}

	d.procs = process.NewController(process.Config{
		PIDFile: d.ProcessesPID(),
		LogFile: d.ProcessesLog(),
	}, log)
	d.notifier = notifier.New(notifier.Config{Enabled: global.Notify}, log)

	return d, nil
}

func runtimeBase() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return dir
	}
	if dir := os.Getenv("TMPDIR"); dir != "" {
		return dir
	}
	return "/tmp"
}

func (d *Devenv) backendSettings() backend.Settings {
	return backend.Settings{
		System:     d.global.System,
		Offline:    d.global.Offline,
		Impure:     d.global.Impure || d.config.Impure,
		NixOptions: d.global.NixOptions,
	}
}

// Paths returns the filesystem roots handed to the backend
func (d *Devenv) Paths() backend.Paths {
	return backend.Paths{
		Root:              d.root,
		Dotfile:           d.dotfile,
		DotGC:             d.dotGC,
		HomeGC:            d.homeGC,
		CachixTrustedKeys: d.trusted,
	}
}

// Root returns the project root
func (d *Devenv) Root() string { return d.root }

// Dotfile returns the state directory
func (d *Devenv) Dotfile() string { return d.dotfile }

// RuntimeDir returns the runtime scratch directory
func (d *Devenv) RuntimeDir() string { return d.runtime }

// Backend returns the backend selected at construction
func (d *Devenv) Backend() backend.Backend { return d.backend }

// ProcessesPID is the pid file of the service group
func (d *Devenv) ProcessesPID() string {
	return filepath.Join(d.dotfile, "processes.pid")
}

// ProcessesLog is the log file of a detached service group
func (d *Devenv) ProcessesLog() string {
	return filepath.Join(d.dotfile, "processes.log")
}

// Processes returns the service group controller
func (d *Devenv) Processes() *process.Controller { return d.procs }

// Assembled reports whether assembly completed
func (d *Devenv) Assembled() bool { return d.assembled.Load() }

// Close releases resources held by the backend
func (d *Devenv) Close() error {
	if c, ok := d.backend.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (d *Devenv) notify(operation string, start time.Time, err error) {
	if err != nil {
		d.notifier.NotifyFailure(operation, err)
		return
	}
	d.notifier.NotifySuccess(operation, time.Since(start))
}
