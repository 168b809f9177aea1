package devenv

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	pcontext "github.com/devenvgo/devenv/pkg/context"
	"github.com/devenvgo/devenv/pkg/fsutil"
	"github.com/devenvgo/devenv/pkg/logger"
)

// Assemble materializes the generated inputs every other operation reads.
// The work runs at most once per Devenv, however many callers race on it.
// A failed run leaves the Devenv unassembled so the next call retries.
func (d *Devenv) Assemble(ctx context.Context, isTesting bool) error {
	if d.assembled.Load() {
		return nil
	}

	if err := d.assembleGate.Acquire(ctx, 1); err != nil {
		return err
	}
	defer d.assembleGate.Release(1)

	if d.assembled.Load() {
		return nil
	}

	if err := d.assemble(pcontext.WithOperation(ctx, "assemble"), isTesting); err != nil {
		return err
	}
	d.assembled.Store(true)
	return nil
}

func (d *Devenv) assemble(ctx context.Context, isTesting bool) error {
	log := logger.FromContext(ctx, d.logger)

	if len(d.global.Options) == 0 && !fsutil.Exists(filepath.Join(d.root, "devenv.nix")) {
		return ErrMissingEnvironmentDescription
	}

	if err := os.MkdirAll(d.dotGC, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", d.dotGC, err)
	}

	if err := d.backend.Assemble(ctx); err != nil {
		return err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	inputs, err := d.config.FlakeInputs()
	if err != nil {
		log.Error(err.Error())
		return fmt.Errorf("failed to parse inputs: %w", err)
	}
	if err := d.writeJSON("flake.json", inputs); err != nil {
		return err
	}
	if err := d.writeJSON("devenv.json", d.config); err != nil {
		return err
	}
	if err := d.writeState("imports.txt", strings.Join(d.config.Imports, "\n")); err != nil {
		return err
	}

	if err := os.MkdirAll(d.runtime, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", d.runtime, err)
	}

	overlay := filepath.Join(d.dotfile, CliOptionsFile)
	if len(d.global.Options) > 0 {
		rendered, err := RenderCliOptions(d.global.Options)
		if err != nil {
			return err
		}
		if err := d.writeState(CliOptionsFile, rendered); err != nil {
			return err
		}
	} else if err := fsutil.RemoveIfExists(overlay); err != nil {
		return err
	}

	flake := renderFlake(flakeVars{
		System:        d.global.System,
		Root:          d.root,
		DotfileName:   filepath.Base(d.dotfile),
		ContainerName: d.containerName,
		Tmp:           d.tmp,
		Runtime:       d.runtime,
		Testing:       isTesting,
	})
	written, err := fsutil.WriteFileWithLock(filepath.Join(d.root, FlakeFile), []byte(flake))
	if err != nil {
		return err
	}

	log.Debug("Assembled", logger.WithField("flake_written", written))
	return nil
}

func (d *Devenv) writeJSON(name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to serialize %s: %w", name, err)
	}
	return d.writeState(name, string(data))
}

func (d *Devenv) writeState(name, content string) error {
	_, err := fsutil.WriteFileWithLock(filepath.Join(d.dotfile, name), []byte(content))
	return err
}
