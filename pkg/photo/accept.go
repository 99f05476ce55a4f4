package photo

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
)

// DefaultAcceptPattern matches common image file extensions.
const DefaultAcceptPattern = "*.{png,jpg,jpeg,gif,webp,bmp,svg,avif,heic}"

// AcceptFilter decides which files are offered to the encoder, by name.
// Matching is case-insensitive and only looks at the base name.
type AcceptFilter struct {
	pattern string
	g       glob.Glob
}

// NewAcceptFilter compiles pattern.
func NewAcceptFilter(pattern string) (*AcceptFilter, error) {
	if strings.TrimSpace(pattern) == "" {
		pattern = DefaultAcceptPattern
	}
	g, err := glob.Compile(strings.ToLower(pattern))
	if err != nil {
		return nil, fmt.Errorf("invalid accept pattern %q: %w", pattern, err)
	}
	return &AcceptFilter{pattern: pattern, g: g}, nil
}

// DefaultAcceptFilter returns a filter for DefaultAcceptPattern.
func DefaultAcceptFilter() *AcceptFilter {
	return &AcceptFilter{pattern: DefaultAcceptPattern, g: glob.MustCompile(DefaultAcceptPattern)}
}

// Pattern returns the source pattern.
func (f *AcceptFilter) Pattern() string { return f.pattern }

// Accepts reports whether name passes the filter.
func (f *AcceptFilter) Accepts(name string) bool {
	return f.g.Match(strings.ToLower(filepath.Base(name)))
}

// ExpandPaths turns command-line style arguments into accepted file paths.
// Directories contribute their direct children, arguments containing glob
// meta characters are expanded, and plain files are kept when accepted.
// Results keep argument order, are sorted within each argument, contain no
// duplicates and stop at limit entries when limit > 0.
func (f *AcceptFilter) ExpandPaths(args []string, limit int) ([]string, error) {
	seen := make(map[string]bool)
	var out []string

	add := func(path string) bool {
		if seen[path] || !f.Accepts(path) {
			return true
		}
		seen[path] = true
		out = append(out, path)
		return limit <= 0 || len(out) < limit
	}

	for _, arg := range args {
		candidates, err := f.candidates(arg)
		if err != nil {
			return nil, err
		}
		for _, c := range candidates {
			if !add(c) {
				return out, nil
			}
		}
	}
	return out, nil
}

func (f *AcceptFilter) candidates(arg string) ([]string, error) {
	if strings.ContainsAny(arg, "*?[") {
		matches, err := filepath.Glob(arg)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", arg, err)
		}
		sort.Strings(matches)
		return regularFiles(matches), nil
	}

	info, err := os.Stat(arg)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", arg, err)
	}
	if !info.IsDir() {
		return []string{arg}, nil
	}

	entries, err := os.ReadDir(arg)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", arg, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		files = append(files, filepath.Join(arg, e.Name()))
	}
	// ReadDir is already sorted by name
	return files, nil
}

func regularFiles(paths []string) []string {
	out := paths[:0]
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			out = append(out, p)
		}
	}
	return out
}
