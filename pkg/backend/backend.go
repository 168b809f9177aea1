// Package backend defines the contract every build tool integration fulfils
// and the factory that picks one implementation per invocation.
package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/devenvgo/devenv/pkg/logger"
)

// Type selects a backend implementation
type Type string

const (
	// TypeNix drives the nix command line tool as a subprocess
	TypeNix Type = "nix"
	// TypeSnix evaluates in process
	TypeSnix Type = "snix"
)

// ErrBackendUnavailable is returned when the selected backend is not compiled in
var ErrBackendUnavailable = errors.New("backend unavailable")

// ParseType maps a configuration value to a Type. The empty string selects nix.
func ParseType(s string) (Type, error) {
	switch Type(strings.ToLower(strings.TrimSpace(s))) {
	case "", TypeNix:
		return TypeNix, nil
	case TypeSnix:
		return TypeSnix, nil
	default:
		return "", fmt.Errorf("unknown backend %q", s)
	}
}

// Options tunes a single backend call
type Options struct {
	// Logging streams the tool's progress to the user
	Logging bool
	// CacheOutput allows reusing a previous result for the same inputs
	CacheOutput bool
	// RefreshCachedOutput recomputes even when a cached result exists
	RefreshCachedOutput bool
}

// DefaultOptions are used when a call passes nil options
func DefaultOptions() Options {
	return Options{Logging: true}
}

func resolve(opts *Options) Options {
	if opts == nil {
		return DefaultOptions()
	}
	return *opts
}

// Paths are the filesystem roots a backend works with
type Paths struct {
	Root              string
	Dotfile           string
	DotGC             string
	HomeGC            string
	CachixTrustedKeys string
}

// Settings are the global options that influence every backend call
type Settings struct {
	System  string
	Offline bool
	Impure  bool
	// NixOptions are name/value pairs forwarded as --option
	NixOptions []string
	// Binary overrides the nix executable
	Binary string
}

// DevEnv is a materialized development environment
type DevEnv struct {
	Output []byte
	// Inputs are the files the environment was evaluated from
	Inputs []string
}

// Backend is implemented by every build tool integration
type Backend interface {
	Type() Type
	Assemble(ctx context.Context) error
	DevEnv(ctx context.Context, json bool, gcRoot string) (*DevEnv, error)
	Build(ctx context.Context, attributes []string, opts *Options, gcRoot string) ([]string, error)
	Eval(ctx context.Context, attributes []string) (string, error)
	Search(ctx context.Context, term string, opts *Options) ([]byte, error)
	GC(ctx context.Context, live []string) error
	Update(ctx context.Context, input string) error
	Repl(ctx context.Context) error
	Metadata(ctx context.Context) (string, error)
}

// Error wraps a failed call of the underlying tool
type Error struct {
	Op     string
	Args   []string
	Stderr string
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s failed: %v", e.Op, e.Err)
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg += "\n" + stderr
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates the backend of the given type
func New(t Type, settings Settings, paths Paths, log logger.Logger) (Backend, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}

	switch t {
	case TypeNix, "":
		return NewNix(settings, paths, log), nil
	case TypeSnix:
		return nil, fmt.Errorf("%w: %s is not built into this binary", ErrBackendUnavailable, t)
	default:
		return nil, fmt.Errorf("unknown backend %q", t)
	}
}
