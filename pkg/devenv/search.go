package devenv

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/devenvgo/devenv/internal/group"
	"github.com/devenvgo/devenv/pkg/backend"
	pcontext "github.com/devenvgo/devenv/pkg/context"
	"github.com/devenvgo/devenv/pkg/logger"
)

const descriptionWidth = 80

// OptionResult is a module option matching a search
type OptionResult struct {
	Name        string
	Type        string
	Default     string
	Description string
}

// PackageResult is a package matching a search
type PackageResult struct {
	Name        string
	Version     string
	Description string
}

// SearchResults holds both halves of a search, sorted by name
type SearchResults struct {
	Options  []OptionResult
	Packages []PackageResult
}

type optionDoc struct {
	Type        string          `json:"type"`
	Default     json.RawMessage `json:"default"`
	Description string          `json:"description"`
}

type packageDoc struct {
	Version     string `json:"version"`
	Description string `json:"description"`
}

// SearchAll looks up options and packages concurrently. The first failure
// cancels the other lookup.
func (d *Devenv) SearchAll(ctx context.Context, term string) (*SearchResults, error) {
	ctx = pcontext.WithOperation(ctx, "search")
	if err := d.Assemble(ctx, false); err != nil {
		return nil, err
	}

	results := &SearchResults{}
	g, gctx := group.WithContext(ctx, logger.FromContext(ctx, d.logger))
	g.Go(func() error {
		options, err := d.searchOptions(gctx, term)
		results.Options = options
		return err
	})
	g.Go(func() error {
		packages, err := d.searchPackages(gctx, term)
		results.Packages = packages
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Search prints the matching packages and options as tables
func (d *Devenv) Search(ctx context.Context, term string) error {
	results, err := d.SearchAll(ctx, term)
	if err != nil {
		return err
	}

	if len(results.Packages) > 0 {
		rows := make([][]string, len(results.Packages))
		for i, p := range results.Packages {
			rows[i] = []string{p.Name, p.Version, p.Description}
		}
		renderTable(d.stderr, []string{"Package", "Version", "Description"}, rows)
	}
	if len(results.Options) > 0 {
		rows := make([][]string, len(results.Options))
		for i, o := range results.Options {
			rows[i] = []string{o.Name, o.Type, o.Default, o.Description}
		}
		renderTable(d.stderr, []string{"Option", "Type", "Default", "Description"}, rows)
	}

	d.logger.Info(fmt.Sprintf("Found %d packages and %d options for '%s'.",
		len(results.Packages), len(results.Options), term))
	return nil
}

func renderTable(w io.Writer, header []string, rows [][]string) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.AppendBulk(rows)
	table.Render()
}

func (d *Devenv) searchOptions(ctx context.Context, term string) ([]OptionResult, error) {
	paths, err := d.backend.Build(ctx, []string{"optionsJSON"}, &backend.Options{CacheOutput: true}, "")
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, &ParseError{What: "optionsJSON", Err: fmt.Errorf("no output path")}
	}

	path := filepath.Join(paths[0], "share", "doc", "nixos", "options.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var docs map[string]optionDoc
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, &ParseError{What: path, Err: err}
	}

	var results []OptionResult
	for name, doc := range docs {
		if !strings.Contains(name, term) {
			continue
		}
		results = append(results, OptionResult{
			Name:        name,
			Type:        doc.Type,
			Default:     renderDefault(doc.Default),
			Description: doc.Description,
		})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })
	return results, nil
}

// renderDefault accepts both plain strings and literal expression records
func renderDefault(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var literal struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &literal); err == nil && literal.Text != "" {
		return literal.Text
	}
	return string(raw)
}

func (d *Devenv) searchPackages(ctx context.Context, term string) ([]PackageResult, error) {
	out, err := d.backend.Search(ctx, term, &backend.Options{CacheOutput: true})
	if err != nil {
		return nil, err
	}

	var docs map[string]packageDoc
	if err := json.Unmarshal(out, &docs); err != nil {
		return nil, &ParseError{What: "search results", Err: err}
	}

	results := make([]PackageResult, 0, len(docs))
	for key, doc := range docs {
		segments := strings.Split(key, ".")
		if len(segments) > 2 {
			segments = segments[2:]
		} else {
			segments = nil
		}
		results = append(results, PackageResult{
			Name:        "pkgs." + strings.Join(segments, "."),
			Version:     doc.Version,
			Description: truncate(doc.Description, descriptionWidth),
		})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })
	return results, nil
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
