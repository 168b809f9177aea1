package devenv

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"time"

	pcontext "github.com/devenvgo/devenv/pkg/context"
	"github.com/devenvgo/devenv/pkg/logger"
)

// Test builds the test script, starts the processes when there are any and
// runs the script with exactly the captured environment
func (d *Devenv) Test(ctx context.Context) (err error) {
	ctx = pcontext.WithOperation(ctx, "test")
	log := logger.FromContext(ctx, d.logger)
	start := time.Now()
	defer func() { d.notify("Tests", start, err) }()

	if err := d.Assemble(ctx, true); err != nil {
		return err
	}

	log.Info("Building tests")
	paths, err := d.backend.Build(ctx, []string{"devenv.test"}, nil, filepath.Join(d.dotGC, "test"))
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return &ParseError{What: "devenv.test", Err: fmt.Errorf("no output path")}
	}
	script := paths[0]

	envs, err := d.CaptureEnvironment(ctx)
	if err != nil {
		return err
	}

	hasProcesses, err := d.HasProcesses(ctx)
	if err != nil {
		return err
	}
	if hasProcesses {
		if err := d.Up(ctx, nil, ProcessOptions{Env: envs, Detach: true}); err != nil {
			return err
		}
	}

	log.Info("Running tests")
	log.Debug("Running command: " + script)
	cmd := exec.Command(script)
	cmd.Env = envList(envs)
	cmd.Stdout = d.stdout
	cmd.Stderr = d.stderr
	runErr := cmd.Run()

	if hasProcesses {
		if err := d.Down(); err != nil {
			log.Warn(fmt.Sprintf("Failed to stop processes: %v", err))
		}
	}

	if runErr != nil {
		log.Error("Tests failed :(")
		return fmt.Errorf("%w: %v", ErrTestsFailed, runErr)
	}
	log.Success("Tests passed :)")
	return nil
}
