// Package project collects the Java sources of a repository and aggregates
// their declarations per file and package.
package project

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/dejo1307/javalens/internal/facts"
)

// DefaultTestMarkers are the path fragments that mark test code.
var DefaultTestMarkers = []string{"test", "tests", "Test.java", "Tests.java", "/test/", "/tests/"}

// Source is one Java file. Path is slash separated and relative to the
// walked root.
type Source struct {
	Path string
	Text string
}

// ReadError reports a source file that could not be read.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("reading %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// IsTestPath reports whether path contains any marker, ignoring case. With
// no markers the defaults apply.
func IsTestPath(path string, markers ...string) bool {
	if len(markers) == 0 {
		markers = DefaultTestMarkers
	}
	lower := strings.ToLower(filepath.ToSlash(path))
	for _, m := range markers {
		if strings.Contains(lower, strings.ToLower(m)) {
			return true
		}
	}
	return false
}

// WalkOptions tunes Walk.
type WalkOptions struct {
	// Ignore holds glob patterns relative to the root. "dir/**" skips a
	// directory and "**/x" matches at any depth.
	Ignore []string
	// TestMarkers excludes matching paths. Empty keeps test code.
	TestMarkers []string
	// NoGitignore disables reading .gitignore at the root.
	NoGitignore bool
}

// Walk collects the .java files under root sorted by path. Unreadable files
// and directories are skipped and reported as diagnostics.
func Walk(root string, opts WalkOptions) ([]Source, []facts.Diagnostic, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("%s is not a directory", root)
	}

	var gi *ignore.GitIgnore
	if !opts.NoGitignore {
		gi, err = ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("reading .gitignore: %w", err)
		}
	}

	var paths []string
	var diags []facts.Diagnostic
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			rel, _ := filepath.Rel(root, path)
			rerr := &ReadError{Path: filepath.ToSlash(rel), Err: err}
			diags = append(diags, facts.Diagnostic{File: rerr.Path, Message: rerr.Error()})
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		skip := isIgnored(rel, opts.Ignore) || (gi != nil && gi.MatchesPath(rel))
		if !skip && len(opts.TestMarkers) > 0 {
			check := rel
			if d.IsDir() {
				check = "/" + rel + "/"
			}
			skip = IsTestPath(check, opts.TestMarkers...)
		}
		if skip {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() && strings.HasSuffix(rel, ".java") {
			paths = append(paths, rel)
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("walking %s: %w", root, err)
	}
	sort.Strings(paths)

	sources := make([]Source, 0, len(paths))
	for _, rel := range paths {
		data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			rerr := &ReadError{Path: rel, Err: err}
			diags = append(diags, facts.Diagnostic{File: rel, Message: rerr.Error()})
			continue
		}
		sources = append(sources, Source{Path: rel, Text: string(data)})
	}
	return sources, diags, nil
}

// isIgnored checks a slash separated relative path against glob patterns.
func isIgnored(rel string, patterns []string) bool {
	for _, pattern := range patterns {
		if strings.HasSuffix(pattern, "/**") {
			dir := strings.TrimSuffix(pattern, "/**")
			if rel == dir || strings.HasPrefix(rel, dir+"/") {
				return true
			}
			if sub, ok := strings.CutPrefix(dir, "**/"); ok {
				for _, seg := range strings.Split(rel, "/") {
					if m, _ := filepath.Match(sub, seg); m {
						return true
					}
				}
			}
		}
		if m, err := filepath.Match(pattern, rel); err == nil && m {
			return true
		}
		if sub, ok := strings.CutPrefix(pattern, "**/"); ok {
			if m, err := filepath.Match(sub, filepath.Base(rel)); err == nil && m {
				return true
			}
			if m, err := filepath.Match(sub, rel); err == nil && m {
				return true
			}
		}
	}
	return false
}
