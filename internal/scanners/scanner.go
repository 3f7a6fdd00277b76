// Package scanners matches domain vocabularies against Java sources: line
// oriented regex scanning for demographic, integration and legacy-table
// terms, plus AST scans for entity mappings, SQL literals and demographic
// variable names.
package scanners

import (
	"fmt"
	"regexp"
	"strings"
)

// Pattern is one named regular expression of a category.
type Pattern struct {
	Name string `yaml:"name" json:"name"`
	Expr string `yaml:"expr" json:"expr"`
}

// Category groups the patterns that report under one name.
type Category struct {
	Name     string    `yaml:"name" json:"name"`
	Patterns []Pattern `yaml:"patterns" json:"patterns"`
}

// PatternMatch is one regex hit with its provenance. MatchedText is always a
// substring of line LineNumber (1-based) of FilePath.
type PatternMatch struct {
	Category    string `json:"category"`
	Pattern     string `json:"pattern"`
	FilePath    string `json:"file_path"`
	LineNumber  int    `json:"line_number"`
	MatchedText string `json:"matched_text"`
}

// Group is the matches of one category in discovery order.
type Group struct {
	Category string         `json:"category"`
	Matches  []PatternMatch `json:"matches"`
}

type compiledPattern struct {
	name string
	re   *regexp.Regexp
}

type compiledCategory struct {
	name     string
	patterns []compiledPattern
}

// Scanner accumulates matches of a fixed vocabulary across every file
// analyzed until Reset.
type Scanner struct {
	name       string
	categories []compiledCategory
	matches    []PatternMatch
}

// New compiles the vocabulary. All patterns match case-insensitively.
func New(name string, categories []Category) (*Scanner, error) {
	s := &Scanner{name: name}
	for _, c := range categories {
		cc := compiledCategory{name: c.Name}
		for _, p := range c.Patterns {
			re, err := regexp.Compile("(?i)" + p.Expr)
			if err != nil {
				return nil, fmt.Errorf("compiling %s pattern %s/%s: %w", name, c.Name, p.Name, err)
			}
			cc.patterns = append(cc.patterns, compiledPattern{name: p.Name, re: re})
		}
		s.categories = append(s.categories, cc)
	}
	return s, nil
}

// MustNew is New for vocabularies known to compile.
func MustNew(name string, categories []Category) *Scanner {
	s, err := New(name, categories)
	if err != nil {
		panic(err)
	}
	return s
}

// Name returns the scanner name.
func (s *Scanner) Name() string {
	return s.name
}

// Categories returns the configured category names in order.
func (s *Scanner) Categories() []string {
	names := make([]string, len(s.categories))
	for i, c := range s.categories {
		names[i] = c.name
	}
	return names
}

// Analyze scans content line by line and appends every non-overlapping match.
func (s *Scanner) Analyze(path, content string) {
	for i, line := range strings.Split(content, "\n") {
		for _, c := range s.categories {
			for _, p := range c.patterns {
				for _, loc := range p.re.FindAllStringIndex(line, -1) {
					if loc[0] == loc[1] {
						continue
					}
					s.matches = append(s.matches, PatternMatch{
						Category:    c.name,
						Pattern:     p.name,
						FilePath:    path,
						LineNumber:  i + 1,
						MatchedText: line[loc[0]:loc[1]],
					})
				}
			}
		}
	}
}

// Matches returns the accumulated matches in discovery order.
func (s *Scanner) Matches() []PatternMatch {
	return append([]PatternMatch(nil), s.matches...)
}

// Summary groups the matches by category, ordered by first discovery.
func (s *Scanner) Summary() []Group {
	var groups []Group
	index := make(map[string]int)
	for _, m := range s.matches {
		i, ok := index[m.Category]
		if !ok {
			i = len(groups)
			index[m.Category] = i
			groups = append(groups, Group{Category: m.Category})
		}
		groups[i].Matches = append(groups[i].Matches, m)
	}
	return groups
}

// Statistics counts matches per configured category. Categories without
// hits report zero.
func (s *Scanner) Statistics() map[string]int {
	stats := make(map[string]int, len(s.categories))
	for _, c := range s.categories {
		stats[c.name] = 0
	}
	for _, m := range s.matches {
		stats[m.Category]++
	}
	return stats
}

// Reset drops the accumulated matches.
func (s *Scanner) Reset() {
	s.matches = nil
}
