package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/devenvgo/devenv/pkg/backend"
	pcontext "github.com/devenvgo/devenv/pkg/context"
	"github.com/devenvgo/devenv/pkg/devenv"
)

// Config holds all CLI configuration
type Config struct {
	Version string
	Root    string
	LogFile string
	Global  devenv.GlobalOptions

	// Backend replaces the backend selected by devenv.yaml
	Backend backend.Backend
	// DataHome replaces $XDG_DATA_HOME/devenv
	DataHome string
	// LogOutput sends log entries to a writer instead of stderr
	LogOutput io.Writer
}

// NewConfig creates a new CLI configuration with defaults
func NewConfig() *Config {
	return &Config{
		Version: devenv.Version,
	}
}

// RuntimeConfig holds the per-invocation state of a command
type RuntimeConfig struct {
	Config    *Config
	Context   context.Context
	StartTime time.Time
}

// NewRuntimeConfig tags ctx with a fresh invocation id
func NewRuntimeConfig(cfg *Config, ctx context.Context) *RuntimeConfig {
	if ctx == nil {
		ctx = context.Background()
	}
	return &RuntimeConfig{
		Config:    cfg,
		Context:   pcontext.EnrichContext(ctx),
		StartTime: time.Now(),
	}
}

// splitPairs turns name=value flags into the flat name/value list the
// orchestrator expects
func splitPairs(flag string, values []string) ([]string, error) {
	pairs := make([]string, 0, 2*len(values))
	for _, v := range values {
		name, value, ok := strings.Cut(v, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --%s %q: expected name=value", flag, v)
		}
		pairs = append(pairs, name, value)
	}
	return pairs, nil
}
