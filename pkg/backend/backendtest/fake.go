// Package backendtest provides an in-memory Backend for tests
package backendtest

import (
	"context"
	"sync"

	"github.com/devenvgo/devenv/pkg/backend"
)

// Call records one invocation of the fake
type Call struct {
	Op         string
	Attributes []string
	Options    backend.Options
	GCRoot     string
	Live       []string
	Term       string
}

// Fake is a concurrency-safe recording Backend. Unset hooks return zero values.
type Fake struct {
	mu    sync.Mutex
	calls []Call

	AssembleFunc func(ctx context.Context) error
	DevEnvFunc   func(json bool, gcRoot string) (*backend.DevEnv, error)
	BuildFunc    func(attributes []string, opts backend.Options, gcRoot string) ([]string, error)
	EvalFunc     func(attributes []string) (string, error)
	SearchFunc   func(term string) ([]byte, error)
	GCErr        error
	UpdateErr    error
	ReplErr      error
	MetadataText string
}

var _ backend.Backend = (*Fake)(nil)

func (f *Fake) record(c Call) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
}

// Calls returns a snapshot of every recorded call
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallsFor returns the recorded calls of one operation
func (f *Fake) CallsFor(op string) []Call {
	var out []Call
	for _, c := range f.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Ops returns the recorded operation names in order
func (f *Fake) Ops() []string {
	calls := f.Calls()
	ops := make([]string, len(calls))
	for i, c := range calls {
		ops[i] = c.Op
	}
	return ops
}

func (f *Fake) Type() backend.Type {
	return backend.TypeNix
}

func (f *Fake) Assemble(ctx context.Context) error {
	f.record(Call{Op: "assemble"})
	if f.AssembleFunc != nil {
		return f.AssembleFunc(ctx)
	}
	return nil
}

func (f *Fake) DevEnv(_ context.Context, json bool, gcRoot string) (*backend.DevEnv, error) {
	f.record(Call{Op: "devenv", GCRoot: gcRoot})
	if f.DevEnvFunc != nil {
		return f.DevEnvFunc(json, gcRoot)
	}
	return &backend.DevEnv{}, nil
}

func (f *Fake) Build(_ context.Context, attributes []string, opts *backend.Options, gcRoot string) ([]string, error) {
	o := backend.DefaultOptions()
	if opts != nil {
		o = *opts
	}
	f.record(Call{Op: "build", Attributes: append([]string(nil), attributes...), Options: o, GCRoot: gcRoot})
	if f.BuildFunc != nil {
		return f.BuildFunc(attributes, o, gcRoot)
	}
	return nil, nil
}

func (f *Fake) Eval(_ context.Context, attributes []string) (string, error) {
	f.record(Call{Op: "eval", Attributes: append([]string(nil), attributes...)})
	if f.EvalFunc != nil {
		return f.EvalFunc(attributes)
	}
	return "{}", nil
}

func (f *Fake) Search(_ context.Context, term string, _ *backend.Options) ([]byte, error) {
	f.record(Call{Op: "search", Term: term})
	if f.SearchFunc != nil {
		return f.SearchFunc(term)
	}
	return []byte("{}"), nil
}

func (f *Fake) GC(_ context.Context, live []string) error {
	f.record(Call{Op: "gc", Live: append([]string(nil), live...)})
	return f.GCErr
}

func (f *Fake) Update(_ context.Context, input string) error {
	f.record(Call{Op: "update", Term: input})
	return f.UpdateErr
}

func (f *Fake) Repl(context.Context) error {
	f.record(Call{Op: "repl"})
	return f.ReplErr
}

func (f *Fake) Metadata(context.Context) (string, error) {
	f.record(Call{Op: "metadata"})
	return f.MetadataText, nil
}
