package devenv

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	pcontext "github.com/devenvgo/devenv/pkg/context"
	"github.com/devenvgo/devenv/pkg/logger"
)

// BuildAttributes resolves the attributes to build. Without explicit
// attributes every output declared by the environment is built.
func (d *Devenv) BuildAttributes(ctx context.Context, attributes []string) ([]string, error) {
	if len(attributes) > 0 {
		out := make([]string, len(attributes))
		for i, attr := range attributes {
			out[i] = "devenv." + attr
		}
		return out, nil
	}

	raw, err := d.backend.Eval(ctx, []string{"build"})
	if err != nil {
		return nil, err
	}

	var tree any
	if err := json.Unmarshal([]byte(raw), &tree); err != nil {
		return nil, &ParseError{What: "build output", Err: err}
	}
	obj, ok := tree.(map[string]any)
	if !ok {
		return nil, &ParseError{What: "build output", Err: fmt.Errorf("build output is not an object")}
	}

	var out []string
	for key, value := range obj {
		out = append(out, flatten(key, value)...)
	}
	sort.Strings(out)
	return out, nil
}

func flatten(prefix string, value any) []string {
	obj, ok := value.(map[string]any)
	if !ok {
		return []string{"devenv." + prefix}
	}
	var out []string
	for key, child := range obj {
		out = append(out, flatten(prefix+"."+key, child)...)
	}
	return out
}

// Build builds the attributes and prints the resulting paths
func (d *Devenv) Build(ctx context.Context, attributes []string) (paths []string, err error) {
	ctx = pcontext.WithOperation(ctx, "build")
	start := time.Now()
	defer func() { d.notify("Build", start, err) }()

	logger.FromContext(ctx, d.logger).Info("Building")
	if err := d.Assemble(ctx, false); err != nil {
		return nil, err
	}

	attrs, err := d.BuildAttributes(ctx, attributes)
	if err != nil {
		return nil, err
	}
	paths, err = d.backend.Build(ctx, attrs, nil, "")
	if err != nil {
		return nil, err
	}
	for _, p := range paths {
		fmt.Fprintln(d.stdout, p)
	}
	return paths, nil
}
