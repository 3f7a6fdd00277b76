package project

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/dejo1307/javalens/internal/declarations"
	"github.com/dejo1307/javalens/internal/facts"
	"github.com/dejo1307/javalens/internal/javaast"
)

// DefaultPackage names the package of files without a package declaration.
const DefaultPackage = "default"

// File is the aggregated view of one parsed source.
type File struct {
	Path        string                     `json:"path"`
	Package     string                     `json:"package"`
	Classes     []declarations.ClassRecord `json:"classes"`
	Description string                     `json:"description"`
	Imports     []string                   `json:"imports,omitempty"`

	// Unit stays open until Project.Close so later passes can reuse the tree.
	Unit *javaast.CompilationUnit `json:"-"`
}

// Project is the result of one aggregation run. Files keep input order.
type Project struct {
	Root        string             `json:"root,omitempty"`
	Files       []*File            `json:"files"`
	Diagnostics []facts.Diagnostic `json:"diagnostics,omitempty"`
}

// Units returns the open syntax trees of every file in file order.
func (p *Project) Units() []*javaast.CompilationUnit {
	units := make([]*javaast.CompilationUnit, 0, len(p.Files))
	for _, f := range p.Files {
		if f.Unit != nil {
			units = append(units, f.Unit)
		}
	}
	return units
}

// Structure groups files by package.
func (p *Project) Structure() map[string][]*File {
	out := make(map[string][]*File)
	for _, f := range p.Files {
		out[f.Package] = append(out[f.Package], f)
	}
	return out
}

// Packages returns the package names in sorted order.
func (p *Project) Packages() []string {
	seen := make(map[string]bool)
	var names []string
	for _, f := range p.Files {
		if !seen[f.Package] {
			seen[f.Package] = true
			names = append(names, f.Package)
		}
	}
	sort.Strings(names)
	return names
}

// Classes flattens the class records of every file in file order.
func (p *Project) Classes() []declarations.ClassRecord {
	var out []declarations.ClassRecord
	for _, f := range p.Files {
		out = append(out, f.Classes...)
	}
	return out
}

// File returns the file with the given path, or nil.
func (p *Project) File(path string) *File {
	for _, f := range p.Files {
		if f.Path == path {
			return f
		}
	}
	return nil
}

// Close releases the syntax trees of every file.
func (p *Project) Close() {
	for _, f := range p.Files {
		if f.Unit != nil {
			f.Unit.Close()
			f.Unit = nil
		}
	}
}

// Aggregator parses sources concurrently and extracts their declarations.
type Aggregator struct {
	workers int
	opts    []declarations.Option
}

// NewAggregator creates an Aggregator running up to workers parses at once;
// workers <= 0 means one per CPU. opts configure every per-file extractor.
func NewAggregator(workers int, opts ...declarations.Option) *Aggregator {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Aggregator{workers: workers, opts: opts}
}

type fileResult struct {
	file  *File
	diags []facts.Diagnostic
}

// Aggregate parses and extracts every source. Sources that fail to parse are
// skipped with a diagnostic; only cancellation fails the run.
func (a *Aggregator) Aggregate(ctx context.Context, sources []Source) (*Project, error) {
	results := make([]fileResult, len(sources))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for i, src := range sources {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = a.aggregateOne(src)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, r := range results {
			if r.file != nil && r.file.Unit != nil {
				r.file.Unit.Close()
			}
		}
		return nil, fmt.Errorf("aggregating sources: %w", err)
	}

	p := &Project{}
	for _, r := range results {
		if r.file != nil {
			p.Files = append(p.Files, r.file)
		}
		p.Diagnostics = append(p.Diagnostics, r.diags...)
	}
	log.Printf("[project] aggregated %d of %d files (%d diagnostics)", len(p.Files), len(sources), len(p.Diagnostics))
	return p, nil
}

func (a *Aggregator) aggregateOne(src Source) fileResult {
	unit, err := javaast.ParseString(src.Text)
	if err != nil {
		d := facts.Diagnostic{File: src.Path, Message: err.Error()}
		var perr *javaast.ParseError
		if errors.As(err, &perr) {
			d.Line = perr.Line
		}
		return fileResult{diags: []facts.Diagnostic{d}}
	}

	opts := append([]declarations.Option{declarations.WithFile(src.Path)}, a.opts...)
	res := declarations.New(opts...).Extract(unit)

	pkg := unit.PackageName()
	if pkg == "" {
		pkg = DefaultPackage
	}
	return fileResult{
		file: &File{
			Path:        src.Path,
			Package:     pkg,
			Classes:     res.Classes,
			Description: describe(res.Classes),
			Imports:     unit.Imports(),
			Unit:        unit,
		},
		diags: res.Diagnostics,
	}
}

func describe(classes []declarations.ClassRecord) string {
	desc := fmt.Sprintf("File contains %d classes", len(classes))
	if len(classes) == 0 {
		return desc
	}
	names := make([]string, len(classes))
	for i, c := range classes {
		names[i] = c.Name
	}
	return desc + ": " + strings.Join(names, ", ")
}
