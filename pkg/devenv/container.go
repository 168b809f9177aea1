package devenv

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"unicode"

	pcontext "github.com/devenvgo/devenv/pkg/context"
	"github.com/devenvgo/devenv/pkg/logger"
)

// localDaemon is the copy destination used before running a container
const localDaemon = "docker-daemon:"

// SanitizeContainerName keeps letters, digits, '-' and '_'
func SanitizeContainerName(name string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			return r
		}
		return -1
	}, name)
}

func (d *Devenv) containerGCRoot(name, stage string) string {
	return filepath.Join(d.dotGC, fmt.Sprintf("container-%s-%s", SanitizeContainerName(name), stage))
}

func (d *Devenv) checkContainerPlatform() error {
	if d.osName == "darwin" {
		return ErrUnsupportedPlatform
	}
	return nil
}

// ContainerBuild builds the container derivation and returns its path
func (d *Devenv) ContainerBuild(ctx context.Context, name string) (string, error) {
	if err := d.checkContainerPlatform(); err != nil {
		return "", err
	}
	ctx = pcontext.WithOperation(ctx, "container")
	logger.FromContext(ctx, d.logger).Info(fmt.Sprintf("Building %s container", name))

	if err := d.Assemble(ctx, false); err != nil {
		return "", err
	}

	paths, err := d.backend.Build(ctx,
		[]string{fmt.Sprintf("devenv.containers.%s.derivation", name)},
		nil, d.containerGCRoot(name, "derivation"))
	if err != nil {
		return "", err
	}
	if len(paths) == 0 {
		return "", &ContainerError{Stage: "build", Name: name, Err: fmt.Errorf("no derivation produced")}
	}

	fmt.Fprintln(d.stdout, paths[0])
	return paths[0], nil
}

// ContainerCopy builds the container and runs its copy script. An empty
// registry lets the script pick its default.
func (d *Devenv) ContainerCopy(ctx context.Context, name string, args []string, registry string) error {
	spec, err := d.ContainerBuild(ctx, name)
	if err != nil {
		return err
	}
	ctx = pcontext.WithOperation(ctx, "container")
	log := logger.FromContext(ctx, d.logger)
	log.Info(fmt.Sprintf("Copying %s container", name))

	script, err := d.containerScript(ctx, name, "copyScript", "copy")
	if err != nil {
		return err
	}

	if registry == "" {
		registry = "false"
	}
	scriptArgs := append([]string{spec, registry}, args...)
	log.Info(fmt.Sprintf("Running %s %s", script, strings.Join(scriptArgs, " ")))

	return d.runContainerScript(name, "copy", exec.Command(script, scriptArgs...))
}

// ContainerRun copies the container into the local daemon and runs it
func (d *Devenv) ContainerRun(ctx context.Context, name string, args []string, registry string) error {
	if err := d.checkContainerPlatform(); err != nil {
		return err
	}
	if registry != "" {
		d.logger.Warn("Ignoring --registry flag when running container")
	}
	if err := d.ContainerCopy(ctx, name, args, localDaemon); err != nil {
		return err
	}

	ctx = pcontext.WithOperation(ctx, "container")
	logger.FromContext(ctx, d.logger).Info(fmt.Sprintf("Running %s container", name))

	script, err := d.containerScript(ctx, name, "dockerRun", "run")
	if err != nil {
		return err
	}
	return d.runContainerScript(name, "run", exec.Command(script))
}

func (d *Devenv) containerScript(ctx context.Context, name, attr, stage string) (string, error) {
	paths, err := d.backend.Build(ctx,
		[]string{fmt.Sprintf("devenv.containers.%s.%s", name, attr)},
		nil, d.containerGCRoot(name, stage))
	if err != nil {
		return "", err
	}
	if len(paths) == 0 {
		return "", &ContainerError{Stage: stage, Name: name, Err: fmt.Errorf("%s produced no script", attr)}
	}
	return paths[0], nil
}

func (d *Devenv) runContainerScript(name, stage string, cmd *exec.Cmd) error {
	cmd.Stdout = d.stdout
	cmd.Stderr = d.stderr
	if err := cmd.Run(); err != nil {
		return &ContainerError{Stage: stage, Name: name, Err: err}
	}
	return nil
}
