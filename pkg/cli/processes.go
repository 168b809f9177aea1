package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/devenvgo/devenv/pkg/devenv"
	"github.com/devenvgo/devenv/pkg/tasks"
)

func (c *CLI) upCommand(use string) *cobra.Command {
	var detach bool
	cmd := &cobra.Command{
		Use:   use + " [processes...]",
		Short: "Start processes in the foreground",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withDevenv(cmd, "", func(ctx context.Context, d *devenv.Devenv) error {
				return d.Up(ctx, args, devenv.ProcessOptions{
					Detach:    detach,
					LogToFile: detach,
				})
			})
		},
	}
	cmd.Flags().BoolVarP(&detach, "detach", "d", false, "start processes in the background")
	return cmd
}

func (c *CLI) newUpCmd() *cobra.Command {
	return c.upCommand("up")
}

func (c *CLI) newProcessesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "processes",
		Short: "Start or stop processes",
	}

	down := &cobra.Command{
		Use:   "down",
		Short: "Stop processes running in the background",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withDevenv(cmd, "", func(_ context.Context, d *devenv.Devenv) error {
				return d.Down()
			})
		},
	}

	var (
		follow bool
		lines  int
	)
	logs := &cobra.Command{
		Use:   "logs",
		Short: "Show the log of processes running in the background",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withDevenv(cmd, "", func(ctx context.Context, d *devenv.Devenv) error {
				return d.ProcessLogs(ctx, c.output, lines, follow)
			})
		},
	}
	logs.Flags().BoolVarP(&follow, "follow", "f", false, "keep printing new log lines")
	logs.Flags().IntVarP(&lines, "lines", "n", 50, "number of trailing lines to show")

	cmd.AddCommand(c.upCommand("up"), down, logs)
	return cmd
}

func (c *CLI) newTasksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Run tasks",
	}

	var mode string
	run := &cobra.Command{
		Use:   "run [tasks...]",
		Short: "Run tasks and print their outputs as JSON",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runMode, err := tasks.ParseRunMode(mode)
			if err != nil {
				return err
			}
			return c.withDevenv(cmd, "", func(ctx context.Context, d *devenv.Devenv) error {
				return d.PrintTasks(ctx, args, runMode)
			})
		},
	}
	run.Flags().StringVarP(&mode, "mode", "m", string(tasks.RunModeBefore), "which dependencies to run: single, after, before or all")

	cmd.AddCommand(run)
	return cmd
}
