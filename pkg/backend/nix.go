package backend

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/devenvgo/devenv/pkg/fsutil"
	"github.com/devenvgo/devenv/pkg/gc"
	"github.com/devenvgo/devenv/pkg/logger"
)

// Files that describe a project. Their content is part of every cache key.
var descriptionFiles = []string{
	"devenv.nix",
	"devenv.yaml",
	"devenv.lock",
	".devenv.flake.nix",
}

// Snapshots written into the state directory during assembly
var stateFiles = []string{
	"flake.json",
	"devenv.json",
	"imports.txt",
	"cli-options.nix",
}

// Nix drives the nix command line tool
type Nix struct {
	settings Settings
	paths    Paths
	logger   logger.Logger

	cacheMu sync.Mutex
	cache   *Cache
}

var _ Backend = (*Nix)(nil)

// NewNix creates the subprocess backend
func NewNix(settings Settings, paths Paths, log logger.Logger) *Nix {
	if settings.Binary == "" {
		settings.Binary = "nix"
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Nix{
		settings: settings,
		paths:    paths,
		logger:   log.WithComponent("nix"),
	}
}

// Type implements Backend
func (n *Nix) Type() Type {
	return TypeNix
}

// Assemble prepares the state the backend keeps next to the project
func (n *Nix) Assemble(ctx context.Context) error {
	if err := os.MkdirAll(n.paths.Dotfile, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", n.paths.Dotfile, err)
	}
	if n.paths.CachixTrustedKeys != "" {
		if err := os.MkdirAll(filepath.Dir(n.paths.CachixTrustedKeys), 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", filepath.Dir(n.paths.CachixTrustedKeys), err)
		}
	}
	_, err := n.cacheStore()
	return err
}

// Close releases the output cache
func (n *Nix) Close() error {
	n.cacheMu.Lock()
	defer n.cacheMu.Unlock()
	if n.cache == nil {
		return nil
	}
	err := n.cache.Close()
	n.cache = nil
	return err
}

// DevEnv materializes the development shell and registers its profile as a generation
func (n *Nix) DevEnv(ctx context.Context, json bool, gcRoot string) (*DevEnv, error) {
	args := []string{"print-dev-env"}
	if json {
		args = append(args, "--json")
	}
	args = append(args, "--profile", gcRoot, ".#shell")

	opts := Options{Logging: true, CacheOutput: fsutil.Exists(gcRoot)}
	out, err := n.run(ctx, args, opts)
	if err != nil {
		return nil, err
	}
	if err := n.addGeneration(gcRoot); err != nil {
		return nil, err
	}

	return &DevEnv{Output: out, Inputs: n.declaredInputs()}, nil
}

// Build builds the attributes and returns their output paths
func (n *Nix) Build(ctx context.Context, attributes []string, opts *Options, gcRoot string) ([]string, error) {
	if len(attributes) == 0 {
		return nil, nil
	}

	args := []string{"build", "--print-out-paths"}
	if gcRoot != "" {
		args = append(args, "--out-link", gcRoot)
	} else {
		args = append(args, "--no-link")
	}

	installables := make([]string, 0, len(attributes))
	foreign := false
	for _, attr := range attributes {
		if strings.Contains(attr, "#") {
			foreign = true
			installables = append(installables, attr)
			continue
		}
		installables = append(installables, ".#"+attr)
	}
	if foreign {
		args = append(args, "--inputs-from", ".")
	}
	args = append(args, installables...)

	out, err := n.run(ctx, args, resolve(opts))
	if err != nil {
		return nil, err
	}

	paths := splitLines(out)
	if len(paths) == 0 {
		return nil, &Error{Op: "build", Args: args, Err: fmt.Errorf("no output paths for %s", strings.Join(attributes, ", "))}
	}

	if gcRoot != "" {
		if err := n.addGeneration(gcRoot); err != nil {
			return nil, err
		}
	}
	return paths, nil
}

// Eval evaluates each attribute to JSON. Results are joined with newlines.
func (n *Nix) Eval(ctx context.Context, attributes []string) (string, error) {
	results := make([]string, 0, len(attributes))
	for _, attr := range attributes {
		out, err := n.run(ctx, []string{"eval", "--json", ".#" + attr}, Options{CacheOutput: true})
		if err != nil {
			return "", err
		}
		results = append(results, strings.TrimSpace(string(out)))
	}
	return strings.Join(results, "\n"), nil
}

// Search looks up packages in nixpkgs
func (n *Nix) Search(ctx context.Context, term string, opts *Options) ([]byte, error) {
	return n.run(ctx, []string{"search", "--inputs-from", ".", "--json", "nixpkgs", term}, resolve(opts))
}

// GC collects the store. Live generations are indirect roots of the store,
// so nix keeps them without being told.
func (n *Nix) GC(ctx context.Context, live []string) error {
	n.logger.Debug("Collecting store", logger.WithField("live", len(live)))
	_, err := n.run(ctx, []string{"store", "gc"}, Options{Logging: true})
	return err
}

// Update refreshes devenv.lock, or a single input of it
func (n *Nix) Update(ctx context.Context, input string) error {
	args := []string{"flake", "update"}
	if input != "" {
		args = append(args, input)
	}
	_, err := n.run(ctx, args, Options{Logging: true})
	return err
}

// Repl opens an interactive repl on the project
func (n *Nix) Repl(ctx context.Context) error {
	argv := n.argv([]string{"repl", ".#"})
	cmd := exec.CommandContext(ctx, n.settings.Binary, argv...)
	cmd.Dir = n.paths.Root
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return &Error{Op: "repl", Args: argv, Err: err}
	}
	return nil
}

// Metadata summarizes the inputs and the environment
func (n *Nix) Metadata(ctx context.Context) (string, error) {
	meta, err := n.run(ctx, []string{"flake", "metadata"}, Options{})
	if err != nil {
		return "", err
	}
	info, err := n.run(ctx, []string{"eval", "--raw", ".#devenv.info"}, Options{CacheOutput: true})
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(meta), "\n") + "\n\n" + strings.TrimRight(string(info), "\n"), nil
}

func (n *Nix) argv(args []string) []string {
	argv := []string{
		"--extra-experimental-features", "nix-command flakes",
		"--option", "warn-dirty", "false",
	}
	if n.settings.Offline {
		argv = append(argv, "--offline")
	}
	if n.settings.Impure {
		argv = append(argv, "--impure")
	}
	for i := 0; i+1 < len(n.settings.NixOptions); i += 2 {
		argv = append(argv, "--option", n.settings.NixOptions[i], n.settings.NixOptions[i+1])
	}
	return append(argv, args...)
}

// run executes nix with args and returns its stdout
func (n *Nix) run(ctx context.Context, args []string, opts Options) ([]byte, error) {
	argv := n.argv(args)

	var key string
	if opts.CacheOutput {
		key = n.cacheKey(argv)
		if !opts.RefreshCachedOutput {
			if out, ok := n.cached(key); ok {
				n.logger.Debug("Using cached output", logger.WithField("command", args[0]))
				return out, nil
			}
		}
	}

	n.logger.Debug("Running nix", logger.WithField("args", strings.Join(argv, " ")))

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, n.settings.Binary, argv...)
	cmd.Dir = n.paths.Root
	cmd.Stdout = &stdout
	if opts.Logging {
		cmd.Stderr = io.MultiWriter(&stderr, os.Stderr)
	} else {
		cmd.Stderr = &stderr
	}

	if err := cmd.Run(); err != nil {
		return nil, &Error{Op: args[0], Args: argv, Stderr: stderr.String(), Err: err}
	}

	out := stdout.Bytes()
	if opts.CacheOutput {
		n.store(key, out)
	}
	return out, nil
}

func (n *Nix) cacheStore() (*Cache, error) {
	n.cacheMu.Lock()
	defer n.cacheMu.Unlock()
	if n.cache != nil {
		return n.cache, nil
	}
	if err := os.MkdirAll(n.paths.Dotfile, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", n.paths.Dotfile, err)
	}
	cache, err := OpenCache(filepath.Join(n.paths.Dotfile, "nix-eval-cache.db"))
	if err != nil {
		return nil, err
	}
	n.cache = cache
	return cache, nil
}

// cached and store degrade to uncached operation when the database is unusable
func (n *Nix) cached(key string) ([]byte, bool) {
	cache, err := n.cacheStore()
	if err != nil {
		n.logger.Warn("Output cache unavailable", logger.WithField("error", err))
		return nil, false
	}
	out, ok, err := cache.Get(key)
	if err != nil {
		n.logger.Warn("Failed to read output cache", logger.WithField("error", err))
		return nil, false
	}
	return out, ok
}

func (n *Nix) store(key string, out []byte) {
	cache, err := n.cacheStore()
	if err != nil {
		return
	}
	if err := cache.Put(key, out); err != nil {
		n.logger.Warn("Failed to write output cache", logger.WithField("error", err))
	}
}

func (n *Nix) cacheKey(argv []string) string {
	var b strings.Builder
	b.WriteString(strings.Join(argv, "\x00"))
	for _, path := range n.declaredInputs() {
		sum, err := fsutil.FileHash(path)
		if err != nil {
			sum = "missing"
		}
		fmt.Fprintf(&b, "\x00%s=%s", path, sum)
	}
	return fsutil.HashString(b.String())
}

// declaredInputs lists the existing files an evaluation depends on
func (n *Nix) declaredInputs() []string {
	var inputs []string
	for _, name := range descriptionFiles {
		if path := filepath.Join(n.paths.Root, name); fsutil.Exists(path) {
			inputs = append(inputs, path)
		}
	}
	for _, name := range stateFiles {
		if path := filepath.Join(n.paths.Dotfile, name); fsutil.Exists(path) {
			inputs = append(inputs, path)
		}
	}
	return append(inputs, n.localImports()...)
}

// localImports resolves relative imports from the imports.txt snapshot
func (n *Nix) localImports() []string {
	data, err := os.ReadFile(filepath.Join(n.paths.Dotfile, "imports.txt"))
	if err != nil {
		return nil
	}

	var paths []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		imp := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(imp, "./") && !strings.HasPrefix(imp, "../") && !strings.HasPrefix(imp, "/") {
			continue
		}
		path := imp
		if !filepath.IsAbs(path) {
			path = filepath.Join(n.paths.Root, imp)
		}
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			path = filepath.Join(path, "devenv.nix")
		}
		if fsutil.Exists(path) {
			paths = append(paths, path)
		}
	}
	return paths
}

func (n *Nix) addGeneration(gcRoot string) error {
	if n.paths.HomeGC == "" {
		return nil
	}
	if _, err := gc.AddGeneration(n.paths.HomeGC, gcRoot); err != nil {
		return err
	}
	return nil
}

func splitLines(out []byte) []string {
	var lines []string
	for _, line := range strings.Split(string(out), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
