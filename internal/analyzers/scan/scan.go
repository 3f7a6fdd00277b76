// Package scan runs the lexical scanners and the legacy table and
// demographic field analyses over a project.
package scan

import (
	"context"
	"fmt"

	"github.com/dejo1307/javalens/internal/facts"
	"github.com/dejo1307/javalens/internal/project"
	"github.com/dejo1307/javalens/internal/scanners"
)

// Vocabulary is the set of categories, systems and field fragments to look
// for. Empty parts fall back to the built-in vocabularies.
type Vocabulary struct {
	Demographic       []scanners.Category
	Integration       []scanners.Category
	Legacy            []scanners.System
	DemographicFields []scanners.FieldCategory
}

func (v Vocabulary) withDefaults() Vocabulary {
	if len(v.Demographic) == 0 {
		v.Demographic = scanners.Demographic()
	}
	if len(v.Integration) == 0 {
		v.Integration = scanners.Integration()
	}
	if len(v.Legacy) == 0 {
		v.Legacy = scanners.LegacySystems()
	}
	if len(v.DemographicFields) == 0 {
		v.DemographicFields = scanners.DemographicFields()
	}
	return v
}

// Analyzer emits pattern, table_usage and demographic facts.
type Analyzer struct {
	scanners     []*scanners.Scanner
	legacy       *scanners.LegacyAnalyzer
	demographics *scanners.DemographicsAnalyzer
}

// New compiles the vocabulary. It fails when a pattern does not compile.
func New(vocab Vocabulary) (*Analyzer, error) {
	vocab = vocab.withDefaults()
	a := &Analyzer{
		legacy:       scanners.NewLegacyAnalyzer(vocab.Legacy),
		demographics: scanners.NewDemographicsAnalyzer(vocab.DemographicFields),
	}
	for _, s := range []struct {
		name string
		cats []scanners.Category
	}{
		{"demographic", vocab.Demographic},
		{"integration", vocab.Integration},
		{"legacy", scanners.LegacyTables(vocab.Legacy)},
	} {
		sc, err := scanners.New(s.name, s.cats)
		if err != nil {
			return nil, fmt.Errorf("scan analyzer: %w", err)
		}
		a.scanners = append(a.scanners, sc)
	}
	return a, nil
}

func (a *Analyzer) Name() string {
	return "scanners"
}

// Scanner returns the named lexical scanner, or nil.
func (a *Analyzer) Scanner(name string) *scanners.Scanner {
	for _, s := range a.scanners {
		if s.Name() == name {
			return s
		}
	}
	return nil
}

// Legacy returns the legacy table analyzer holding the last run's usages.
func (a *Analyzer) Legacy() *scanners.LegacyAnalyzer {
	return a.legacy
}

// Demographics returns the demographic field analyzer holding the last
// run's usages.
func (a *Analyzer) Demographics() *scanners.DemographicsAnalyzer {
	return a.demographics
}

func (a *Analyzer) reset() {
	for _, s := range a.scanners {
		s.Reset()
	}
	a.legacy.Reset()
	a.demographics.Reset()
}

func (a *Analyzer) Analyze(ctx context.Context, p *project.Project) ([]facts.Fact, error) {
	a.reset()
	for _, f := range p.Files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if f.Unit == nil {
			continue
		}
		text := string(f.Unit.Source)
		for _, s := range a.scanners {
			s.Analyze(f.Path, text)
		}
		a.legacy.AnalyzeUnit(f.Path, f.Unit)
		a.demographics.AnalyzeUnit(f.Path, f.Unit)
	}

	var result []facts.Fact
	for _, s := range a.scanners {
		for _, m := range s.Matches() {
			result = append(result, facts.Fact{
				Kind: facts.KindPattern,
				Name: m.Category,
				File: m.FilePath,
				Line: m.LineNumber,
				Props: map[string]any{
					"scanner": s.Name(),
					"pattern": m.Pattern,
					"matched": m.MatchedText,
				},
			})
		}
	}

	for _, u := range a.legacy.Usages() {
		result = append(result, facts.Fact{
			Kind: facts.KindTableUsage,
			Name: u.ClassName + "." + u.MethodName,
			File: u.FilePath,
			Line: u.Line,
			Props: map[string]any{
				"table":      u.TableName,
				"system":     u.System,
				"usage_type": u.UsageType,
			},
			Relations: []facts.Relation{{Kind: facts.RelUsesTable, Target: u.TableName}},
		})
	}

	for _, u := range a.demographics.Usages() {
		result = append(result, facts.Fact{
			Kind: facts.KindDemographic,
			Name: u.FieldName,
			File: u.FilePath,
			Line: u.Line,
			Props: map[string]any{
				"category":   u.Category,
				"class":      u.ClassName,
				"method":     u.MethodName,
				"usage_type": u.UsageType,
			},
		})
	}
	return result, nil
}
