// Package glob matches slash-separated paths against shell-style patterns
// with ** support
package glob

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// Matcher matches paths against a set of patterns
type Matcher struct {
	patterns []string
	regexps  []*regexp.Regexp
}

// Compile builds a Matcher. A pattern without a slash also matches at any
// depth, so "*.nix" matches "nix/shell.nix".
func Compile(patterns []string) (*Matcher, error) {
	m := &Matcher{}
	for _, p := range patterns {
		for _, expanded := range expand(Normalize(p)) {
			re, err := toRegexp(expanded)
			if err != nil {
				return nil, fmt.Errorf("invalid pattern %q: %w", p, err)
			}
			m.patterns = append(m.patterns, expanded)
			m.regexps = append(m.regexps, re)
		}
	}
	return m, nil
}

// Match reports whether path matches any pattern
func (m *Matcher) Match(path string) bool {
	path = filepath.ToSlash(path)
	for _, re := range m.regexps {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}

// Patterns returns the expanded patterns
func (m *Matcher) Patterns() []string {
	return append([]string(nil), m.patterns...)
}

// IsPattern reports whether s contains glob wildcards
func IsPattern(s string) bool {
	return strings.ContainsAny(s, "*?[")
}

// Normalize converts separators to slashes and drops a leading ./ and
// trailing slash
func Normalize(pattern string) string {
	pattern = strings.ReplaceAll(pattern, "\\", "/")
	pattern = strings.TrimPrefix(pattern, "./")
	return strings.TrimSuffix(pattern, "/")
}

func expand(pattern string) []string {
	out := []string{pattern}
	if !IsPattern(pattern) {
		// A plain name may be a directory
		out = append(out, pattern+"/**")
	}
	if !strings.Contains(pattern, "/") {
		out = append(out, "**/"+pattern)
	}
	return out
}

func toRegexp(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")

	for i := 0; i < len(pattern); {
		c := pattern[i]
		switch c {
		case '*':
			if strings.HasPrefix(pattern[i:], "**/") {
				b.WriteString("(?:.*/)?")
				i += 3
			} else if strings.HasPrefix(pattern[i:], "**") {
				b.WriteString(".*")
				i += 2
			} else {
				b.WriteString("[^/]*")
				i++
			}
		case '?':
			b.WriteString("[^/]")
			i++
		case '[':
			end := strings.IndexByte(pattern[i+1:], ']')
			if end < 0 {
				b.WriteString(`\[`)
				i++
				continue
			}
			class := pattern[i+1 : i+1+end]
			if strings.HasPrefix(class, "!") {
				class = "^" + class[1:]
			}
			b.WriteString("[" + class + "]")
			i += end + 2
		case '\\':
			if i+1 < len(pattern) {
				b.WriteString(regexp.QuoteMeta(pattern[i+1 : i+2]))
				i += 2
			} else {
				b.WriteString(`\\`)
				i++
			}
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
			i++
		}
	}

	b.WriteString("$")
	return regexp.Compile(b.String())
}

// DefaultExclusions are directory names never descended into when
// collecting files for a pattern
var DefaultExclusions = []string{
	".git",
	".hg",
	".svn",
	".devenv",
	".direnv",
	"node_modules",
	"target",
	"__pycache__",
}

// Excluded reports whether a directory name is one of DefaultExclusions
func Excluded(name string) bool {
	for _, e := range DefaultExclusions {
		if name == e {
			return true
		}
	}
	return false
}
