// Package cli provides the command-line interface for devenv
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/devenvgo/devenv/pkg/devenv"
	"github.com/devenvgo/devenv/pkg/logger"
)

// ExitError carries the exit code of a command run inside the environment
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// CLI owns one command tree and its configuration so that tests can run
// several side by side
type CLI struct {
	config   *Config
	viper    *viper.Viper
	rootCmd  *cobra.Command
	logger   logger.Logger
	output   io.Writer
	errorOut io.Writer

	options    []string
	nixOptions []string
}

// NewCLI creates a new CLI instance with the given configuration
func NewCLI(config *Config) *CLI {
	if config == nil {
		config = NewConfig()
	}

	cli := &CLI{
		config:   config,
		viper:    viper.New(),
		output:   os.Stdout,
		errorOut: os.Stderr,
	}

	cli.setupCommands()
	return cli
}

// NewCLIWithOutput creates a CLI with custom output writers (for testing)
func NewCLIWithOutput(config *Config, output, errorOut io.Writer) *CLI {
	cli := NewCLI(config)
	cli.output = output
	cli.errorOut = errorOut
	cli.rootCmd.SetOut(output)
	cli.rootCmd.SetErr(errorOut)
	return cli
}

// Execute runs the CLI with the given arguments
func (c *CLI) Execute(args []string) error {
	return c.ExecuteContext(context.Background(), args)
}

// ExecuteContext runs the CLI with context support
func (c *CLI) ExecuteContext(ctx context.Context, args []string) error {
	c.rootCmd.SetArgs(args)
	return c.rootCmd.ExecuteContext(ctx)
}

// Run executes args and returns the process exit code
func (c *CLI) Run(ctx context.Context, args []string) int {
	err := c.ExecuteContext(ctx, args)
	if err == nil {
		return 0
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	c.printError(err.Error())
	return 1
}

func (c *CLI) setupCommands() {
	c.rootCmd = &cobra.Command{
		Use:   "devenv",
		Short: "Fast, declarative, reproducible and composable developer environments",
		Long: `devenv assembles a project environment from devenv.nix and devenv.yaml,
then enters shells, runs processes, tasks and tests, and builds containers
from it.`,

		PersistentPreRunE: c.initializeConfig,
		SilenceErrors:     true,
		SilenceUsage:      true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	c.setupFlags()

	c.rootCmd.Version = c.config.Version
	c.rootCmd.SetVersionTemplate("devenv {{.Version}}\n")

	c.rootCmd.AddCommand(
		c.newInitCmd(),
		c.newInputsCmd(),
		c.newPrintDevEnvCmd(),
		c.newShellCmd(),
		c.newUpdateCmd(),
		c.newContainerCmd(),
		c.newReplCmd(),
		c.newGCCmd(),
		c.newSearchCmd(),
		c.newTasksCmd(),
		c.newInfoCmd(),
		c.newBuildCmd(),
		c.newUpCmd(),
		c.newProcessesCmd(),
		c.newTestCmd(),
		c.newDirenvrcCmd(),
		c.newCaptureEnvCmd(),
		c.newVersionCmd(),
	)
}

func (c *CLI) setupFlags() {
	flags := c.rootCmd.PersistentFlags()

	flags.String("system", devenv.DefaultSystem(), "nix system to evaluate for")
	flags.BoolP("verbose", "v", false, "enable debug log level")
	flags.BoolP("quiet", "q", false, "only log warnings and errors")
	flags.Bool("impure", false, "relax the hermeticity of the environment")
	flags.Bool("offline", false, "disable substituters and consider all previously downloaded files up-to-date")
	flags.Bool("clean", false, "ignore existing environment variables when entering the shell")
	flags.StringSlice("keep", nil, "environment variables to keep with --clean")
	flags.Bool("notify", false, "send a desktop notification when long operations finish")
	flags.String("log-file", "", "also write log entries to this file")
	flags.String("root", "", "project root directory (default: current directory)")

	// Repeated pairs are read from the flags directly; viper would split
	// them on commas.
	flags.StringArrayVarP(&c.options, "option", "O", nil, "override a devenv.nix option, as key:type=value")
	flags.StringArrayVar(&c.nixOptions, "nix-option", nil, "pass an option to nix, as name=value")

	c.viper.SetEnvPrefix("DEVENV")
	c.viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.viper.AutomaticEnv()
	_ = c.viper.BindPFlags(flags)
}

func (c *CLI) initializeConfig(cmd *cobra.Command, args []string) error {
	v := c.viper
	global := &c.config.Global

	if global.System == "" || v.IsSet("system") {
		global.System = v.GetString("system")
	}
	global.Verbose = global.Verbose || v.GetBool("verbose")
	global.Quiet = global.Quiet || v.GetBool("quiet")
	global.Impure = global.Impure || v.GetBool("impure")
	global.Offline = global.Offline || v.GetBool("offline")
	global.CleanEnabled = global.CleanEnabled || v.GetBool("clean")
	global.Notify = global.Notify || v.GetBool("notify")
	if keep := v.GetStringSlice("keep"); len(keep) > 0 {
		global.Clean = keep
	}
	if root := v.GetString("root"); root != "" {
		c.config.Root = root
	}
	if logFile := v.GetString("log-file"); logFile != "" {
		c.config.LogFile = logFile
	}

	options, err := splitPairs("option", c.options)
	if err != nil {
		return err
	}
	global.Options = append(global.Options, options...)

	nixOptions, err := splitPairs("nix-option", c.nixOptions)
	if err != nil {
		return err
	}
	global.NixOptions = append(global.NixOptions, nixOptions...)

	level := logger.LevelFor(global.Verbose, global.Quiet)
	if c.config.LogOutput != nil {
		c.logger = logger.CreateLoggerWithOutput(c.config.LogFile, level, c.config.LogOutput)
	} else {
		c.logger = logger.CreateLogger(c.config.LogFile, level)
	}
	c.logger.Debug("Resolved global options",
		logger.WithField("system", global.System),
		logger.WithField("root", c.config.Root))
	return nil
}

// withDevenv builds an orchestrator for one command and closes it afterwards
func (c *CLI) withDevenv(cmd *cobra.Command, containerName string, fn func(ctx context.Context, d *devenv.Devenv) error) error {
	rt := NewRuntimeConfig(c.config, cmd.Context())

	d, err := devenv.New(devenv.Options{
		Global:        c.config.Global,
		Root:          c.config.Root,
		DataHome:      c.config.DataHome,
		Backend:       c.config.Backend,
		Logger:        c.logger,
		ContainerName: containerName,
		Stdout:        c.output,
		Stderr:        c.errorOut,
		Stdin:         cmd.InOrStdin(),
	})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := d.Close(); cerr != nil {
			c.logger.Debug("Failed to close backend", logger.WithField("error", cerr))
		}
	}()

	return fn(rt.Context, d)
}

// Helper methods for structured output

func (c *CLI) printSuccess(message string) {
	c.logger.Success(message)
}

// printError falls back to the raw error stream when flag parsing failed
// before a logger existed
func (c *CLI) printError(message string) {
	if c.logger == nil {
		fmt.Fprintln(c.errorOut, "Error: "+message)
		return
	}
	c.logger.Error(message)
}
