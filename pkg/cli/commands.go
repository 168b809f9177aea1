package cli

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/devenvgo/devenv/pkg/devenv"
)

func (c *CLI) newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init [target]",
		Short: "Scaffold devenv.yaml, devenv.nix, .gitignore and .envrc",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := ""
			if len(args) == 1 {
				target = args[0]
			}
			return c.withDevenv(cmd, "", func(_ context.Context, d *devenv.Devenv) error {
				return d.Init(target)
			})
		},
	}
}

func (c *CLI) newInputsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inputs",
		Short: "Manage inputs in devenv.yaml",
	}

	var follows []string
	add := &cobra.Command{
		Use:   "add NAME URL",
		Short: "Add an input to devenv.yaml",
		Long: `Add an input to devenv.yaml.

Inputs can be followed by other inputs with --follows, for example:

    devenv inputs add mk-shell-bin github:rrbutani/nix-mk-shell-bin --follows nixpkgs`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withDevenv(cmd, "", func(_ context.Context, d *devenv.Devenv) error {
				if err := d.AddInput(args[0], args[1], follows); err != nil {
					return err
				}
				c.printSuccess(fmt.Sprintf("Added input %s", args[0]))
				return nil
			})
		},
	}
	add.Flags().StringSliceVar(&follows, "follows", nil, "inputs the new input should follow")

	cmd.AddCommand(add)
	return cmd
}

func (c *CLI) newPrintDevEnvCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "print-dev-env",
		Short: "Print a shell script that can be sourced to enter the environment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withDevenv(cmd, "", func(ctx context.Context, d *devenv.Devenv) error {
				return d.PrintDevEnv(ctx, asJSON)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the environment as JSON")
	return cmd
}

func (c *CLI) newShellCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shell [cmd] [args...]",
		Short: "Activate the developer environment, or run a command inside it",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withDevenv(cmd, "", func(ctx context.Context, d *devenv.Devenv) error {
				if len(args) == 0 {
					return d.Shell(ctx)
				}
				code, err := d.ExecInShell(ctx, args[0], args[1:])
				if err != nil {
					return err
				}
				if code != 0 {
					return &ExitError{Code: code}
				}
				return nil
			})
		},
	}
	// Everything after the command belongs to it
	cmd.Flags().SetInterspersed(false)
	return cmd
}

func (c *CLI) newUpdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update [input]",
		Short: "Update devenv.lock from devenv.yaml inputs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := ""
			if len(args) == 1 {
				input = args[0]
			}
			return c.withDevenv(cmd, "", func(ctx context.Context, d *devenv.Devenv) error {
				return d.Update(ctx, input)
			})
		},
	}
}

func (c *CLI) newReplCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Launch an interactive evaluator on the environment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withDevenv(cmd, "", func(ctx context.Context, d *devenv.Devenv) error {
				return d.Repl(ctx)
			})
		},
	}
}

func (c *CLI) newGCCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gc",
		Short: "Delete previous shell generations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withDevenv(cmd, "", func(ctx context.Context, d *devenv.Devenv) error {
				_, err := d.GC(ctx)
				return err
			})
		},
	}
}

func (c *CLI) newSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search NAME",
		Short: "Search for packages and options in nixpkgs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withDevenv(cmd, "", func(ctx context.Context, d *devenv.Devenv) error {
				return d.Search(ctx, args[0])
			})
		},
	}
}

func (c *CLI) newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Print information about this developer environment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withDevenv(cmd, "", func(ctx context.Context, d *devenv.Devenv) error {
				return d.Info(ctx)
			})
		},
	}
}

func (c *CLI) newBuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "build [attributes...]",
		Short: "Build any attribute in devenv.nix",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withDevenv(cmd, "", func(ctx context.Context, d *devenv.Devenv) error {
				_, err := d.Build(ctx, args)
				return err
			})
		},
	}
}

func (c *CLI) newTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Run the environment tests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withDevenv(cmd, "", func(ctx context.Context, d *devenv.Devenv) error {
				return d.Test(ctx)
			})
		},
	}
}

func (c *CLI) newDirenvrcCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "direnvrc",
		Short: "Print the direnv integration script",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprint(c.output, devenv.DirenvRC())
			return err
		},
	}
}

func (c *CLI) newCaptureEnvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "capture-env",
		Short: "Print the variables exported by the environment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withDevenv(cmd, "", func(ctx context.Context, d *devenv.Devenv) error {
				env, err := d.CaptureEnvironment(ctx)
				if err != nil {
					return err
				}
				keys := make([]string, 0, len(env))
				for k := range env {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				for _, k := range keys {
					if _, err := fmt.Fprintf(c.output, "%s=%s\n", k, env[k]); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func (c *CLI) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of devenv",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(c.output, "devenv %s (%s)\n", c.config.Version, c.config.Global.System)
			return err
		},
	}
}
