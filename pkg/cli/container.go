package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/devenvgo/devenv/pkg/devenv"
)

type containerFlags struct {
	registry string
	copyArgs []string
}

func (c *CLI) newContainerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "container",
		Short: "Build, copy, or run a container",
	}

	var flags containerFlags
	cmd.PersistentFlags().StringVar(&flags.registry, "registry", "", "registry to copy the container to")
	cmd.PersistentFlags().StringSliceVar(&flags.copyArgs, "copy-args", nil, "extra arguments for the copy step")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "build NAME",
			Short: "Build a container",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.withDevenv(cmd, args[0], func(ctx context.Context, d *devenv.Devenv) error {
					_, err := d.ContainerBuild(ctx, args[0])
					return err
				})
			},
		},
		&cobra.Command{
			Use:   "copy NAME",
			Short: "Copy a container to a registry",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.withDevenv(cmd, args[0], func(ctx context.Context, d *devenv.Devenv) error {
					return d.ContainerCopy(ctx, args[0], flags.copyArgs, flags.registry)
				})
			},
		},
		&cobra.Command{
			Use:   "run NAME",
			Short: "Copy a container to the local docker daemon and run it",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.withDevenv(cmd, args[0], func(ctx context.Context, d *devenv.Devenv) error {
					return d.ContainerRun(ctx, args[0], flags.copyArgs, flags.registry)
				})
			},
		},
	)
	return cmd
}
