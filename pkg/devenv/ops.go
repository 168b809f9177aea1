package devenv

import (
	"context"
	"fmt"

	pcontext "github.com/devenvgo/devenv/pkg/context"
	"github.com/devenvgo/devenv/pkg/logger"
)

// Info prints the inputs and a summary of the environment
func (d *Devenv) Info(ctx context.Context) error {
	if err := d.Assemble(ctx, false); err != nil {
		return err
	}
	out, err := d.backend.Metadata(ctx)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(d.stdout, out)
	return err
}

// Update refreshes devenv.lock, either every input or the named one
func (d *Devenv) Update(ctx context.Context, input string) error {
	ctx = pcontext.WithOperation(ctx, "update")
	if err := d.Assemble(ctx, false); err != nil {
		return err
	}

	msg := "Updating devenv.lock"
	if input != "" {
		msg = fmt.Sprintf("Updating devenv.lock with input %s", input)
	}
	logger.FromContext(ctx, d.logger).Info(msg)
	return d.backend.Update(ctx, input)
}

// Repl opens the build tool's interactive evaluator on the environment
func (d *Devenv) Repl(ctx context.Context) error {
	if err := d.Assemble(ctx, false); err != nil {
		return err
	}
	return d.backend.Repl(ctx)
}

// AddInput declares an input in devenv.yaml
func (d *Devenv) AddInput(name, url string, follows []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.config.AddInput(name, url, follows); err != nil {
		return err
	}
	return d.config.Write(d.root)
}
