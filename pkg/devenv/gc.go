package devenv

import (
	"context"
	"time"

	pcontext "github.com/devenvgo/devenv/pkg/context"
	"github.com/devenvgo/devenv/pkg/gc"
	"github.com/devenvgo/devenv/pkg/logger"
)

// GC collects every generation that no longer protects a live environment
func (d *Devenv) GC(ctx context.Context) (report *gc.Report, err error) {
	ctx = pcontext.WithOperation(ctx, "gc")
	start := time.Now()
	defer func() { d.notify("Garbage collection", start, err) }()

	log := logger.FromContext(ctx, d.logger)
	log.Info("If you'd like this to run faster, leave a thumbs up at https://github.com/NixOS/nix/issues/7239")
	return gc.Collect(ctx, d.homeGC, d.backend, log)
}
