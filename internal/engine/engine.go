package engine

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dejo1307/javalens/internal/analyzers"
	"github.com/dejo1307/javalens/internal/config"
	"github.com/dejo1307/javalens/internal/declarations"
	"github.com/dejo1307/javalens/internal/explainers"
	"github.com/dejo1307/javalens/internal/facts"
	"github.com/dejo1307/javalens/internal/project"
	"github.com/dejo1307/javalens/internal/renderers"
)

// Engine orchestrates the snapshot generation pipeline.
type Engine struct {
	mu         sync.Mutex
	cfg        *config.Config
	analyzers  *analyzers.Registry
	explainers *explainers.Registry
	renderers  *renderers.Registry
	store      *facts.Store
	snapshot   *facts.Snapshot
	project    *project.Project
	prevHashes map[string]string // file -> sha256 hash from previous run
}

// New creates a new Engine with the given config.
// Analyzers, explainers, and renderers must be registered after creation.
func New(cfg *config.Config) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("engine: nil config")
	}
	return &Engine{
		cfg:        cfg,
		analyzers:  analyzers.NewRegistry(),
		explainers: explainers.NewRegistry(),
		renderers:  renderers.NewRegistry(),
		store:      facts.NewStore(),
	}, nil
}

// RegisterAnalyzer adds an analyzer to the engine.
func (e *Engine) RegisterAnalyzer(a analyzers.Analyzer) {
	e.analyzers.Register(a)
}

// RegisterExplainer adds an explainer to the engine.
func (e *Engine) RegisterExplainer(exp explainers.Explainer) {
	e.explainers.Register(exp)
}

// RegisterRenderer adds a renderer to the engine.
func (e *Engine) RegisterRenderer(rnd renderers.Renderer) {
	e.renderers.Register(rnd)
}

// Store returns the fact store.
func (e *Engine) Store() *facts.Store {
	return e.store
}

// Snapshot returns the last generated snapshot, or nil.
func (e *Engine) Snapshot() *facts.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot
}

// SetSnapshot replaces the current snapshot. The fact store is left alone.
func (e *Engine) SetSnapshot(s *facts.Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.snapshot = s
}

// ErrNoProject is returned by WithProject before the first run.
var ErrNoProject = errors.New("no project parsed, run generate_snapshot first")

// WithProject runs fn on the project aggregated by the last run. The engine
// lock is held until fn returns, so a concurrent run cannot close the syntax
// trees fn is walking. fn must not call other locking Engine methods; Store
// is fine.
func (e *Engine) WithProject(fn func(*project.Project) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.project == nil {
		return ErrNoProject
	}
	return fn(e.project)
}

// Config returns the engine config.
func (e *Engine) Config() *config.Config {
	return e.cfg
}

// ResolveFactFile returns the absolute path of the file a fact was read from.
func (e *Engine) ResolveFactFile(f *facts.Fact) string {
	if f.File == "" || filepath.IsAbs(f.File) {
		return f.File
	}
	root := e.cfg.Repo
	if s := e.Snapshot(); s != nil && s.Meta.RepoPath != "" {
		root = s.Meta.RepoPath
	}
	return filepath.Join(root, filepath.FromSlash(f.File))
}

// GenerateSnapshot runs the full pipeline: walk -> parse -> analyze ->
// explain -> render. Concurrent calls are serialized.
func (e *Engine) GenerateSnapshot(ctx context.Context, repoPath string) (*facts.Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()

	if repoPath == "" {
		repoPath = e.cfg.Repo
	}

	absRepo, err := filepath.Abs(repoPath)
	if err != nil {
		return nil, fmt.Errorf("resolving repo path: %w", err)
	}

	e.loadPreviousHashes(absRepo)
	e.store.Clear()

	// 1. Walk repository and collect Java sources
	sources, diags, err := project.Walk(absRepo, project.WalkOptions{
		Ignore:      e.cfg.Ignore,
		TestMarkers: e.cfg.TestMarkers,
	})
	if err != nil {
		return nil, fmt.Errorf("walking repo: %w", err)
	}
	log.Printf("[engine] found %d java files in %s", len(sources), absRepo)

	// 2. Compute hashes
	currentHashes, changed := e.hashSources(sources)
	log.Printf("[engine] %d of %d files changed since last run", changed, len(sources))

	// 3. Parse and aggregate declarations
	var opts []declarations.Option
	if e.cfg.AllFieldDeclarators {
		opts = append(opts, declarations.WithAllDeclarators())
	}
	proj, err := project.NewAggregator(e.cfg.Workers, opts...).Aggregate(ctx, sources)
	if err != nil {
		return nil, fmt.Errorf("aggregation: %w", err)
	}
	proj.Root = absRepo
	proj.Diagnostics = append(diags, proj.Diagnostics...)
	if e.project != nil {
		e.project.Close()
	}
	e.project = proj

	// 4. Run analyzers
	usedAnalyzers, err := e.runAnalyzers(ctx, proj)
	if err != nil {
		return nil, fmt.Errorf("analysis: %w", err)
	}
	e.store.BuildGraph()
	log.Printf("[engine] derived %d facts using %d analyzers", e.store.Count(), len(usedAnalyzers))

	// 5. Run explainers
	allInsights, usedExplainers := e.runExplainers(ctx)
	log.Printf("[engine] produced %d insights using %d explainers", len(allInsights), len(usedExplainers))

	// 6. Build file hashes for the snapshot meta
	var fileHashes []facts.FileHash
	for _, src := range sources {
		fileHashes = append(fileHashes, facts.FileHash{
			Path:    src.Path,
			Hash:    currentHashes[src.Path],
			ModTime: fileModTime(filepath.Join(absRepo, filepath.FromSlash(src.Path))),
		})
	}

	// 7. Build snapshot
	duration := time.Since(start)
	snapshot := &facts.Snapshot{
		Meta: facts.SnapshotMeta{
			RepoPath:     absRepo,
			GeneratedAt:  time.Now().UTC().Format(time.RFC3339),
			Duration:     duration.String(),
			Analyzers:    usedAnalyzers,
			Explainers:   usedExplainers,
			Renderers:    []string{},
			FileHashes:   fileHashes,
			FileCount:    len(proj.Files),
			FactCount:    e.store.Count(),
			InsightCount: len(allInsights),
			Diagnostics:  proj.Diagnostics,
		},
		Facts:    e.store.All(),
		Insights: allInsights,
	}

	// 8. Run renderers
	snapshot.Meta.Renderers = e.runRenderers(ctx, snapshot, proj)
	log.Printf("[engine] produced %d artifacts using %d renderers", len(snapshot.Artifacts), len(snapshot.Meta.Renderers))

	e.snapshot = snapshot
	log.Printf("[engine] snapshot generated in %s", duration)
	return snapshot, nil
}

// runAnalyzers runs all enabled analyzers. Only cancellation fails the run.
func (e *Engine) runAnalyzers(ctx context.Context, p *project.Project) ([]string, error) {
	var usedNames []string

	for _, a := range e.analyzers.Enabled(e.cfg.IsAnalyzerEnabled) {
		log.Printf("[engine] running analyzer: %s", a.Name())
		derived, err := a.Analyze(ctx, p)
		if err != nil {
			if ctx.Err() != nil {
				return usedNames, ctx.Err()
			}
			log.Printf("[engine] analyzer %s error: %v", a.Name(), err)
			continue
		}

		e.store.Add(derived...)
		usedNames = append(usedNames, a.Name())
		log.Printf("[engine] analyzer %s: emitted %d facts", a.Name(), len(derived))
	}

	return usedNames, nil
}

// runExplainers runs all enabled explainers.
func (e *Engine) runExplainers(ctx context.Context) ([]facts.Insight, []string) {
	var allInsights []facts.Insight
	var usedNames []string

	for _, exp := range e.explainers.Enabled(e.cfg.IsExplainerEnabled) {
		log.Printf("[engine] running explainer: %s", exp.Name())
		insights, err := exp.Explain(ctx, e.store)
		if err != nil {
			log.Printf("[engine] explainer %s error: %v", exp.Name(), err)
			continue
		}

		allInsights = append(allInsights, insights...)
		usedNames = append(usedNames, exp.Name())
		log.Printf("[engine] explainer %s: produced %d insights", exp.Name(), len(insights))
	}

	return allInsights, usedNames
}

// runRenderers runs all enabled renderers.
func (e *Engine) runRenderers(ctx context.Context, snapshot *facts.Snapshot, p *project.Project) []string {
	usedNames := []string{}

	for _, rnd := range e.renderers.Enabled(e.cfg.IsRendererEnabled) {
		log.Printf("[engine] running renderer: %s", rnd.Name())
		artifacts, err := rnd.Render(ctx, snapshot, p)
		if err != nil {
			log.Printf("[engine] renderer %s error: %v", rnd.Name(), err)
			continue
		}

		snapshot.Artifacts = append(snapshot.Artifacts, artifacts...)
		usedNames = append(usedNames, rnd.Name())
	}

	return usedNames
}

// WriteArtifacts writes all snapshot artifacts to the output directory,
// including facts.jsonl, insights.json, and snapshot.meta.json.
func (e *Engine) WriteArtifacts(repoPath string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.snapshot == nil {
		return fmt.Errorf("no snapshot generated")
	}

	outDir := e.cfg.Output.Dir
	if !filepath.IsAbs(outDir) {
		outDir = filepath.Join(repoPath, outDir)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}

	for _, a := range e.snapshot.Artifacts {
		path := filepath.Join(outDir, a.Name)
		if err := os.WriteFile(path, a.Content, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", a.Name, err)
		}
		log.Printf("[engine] wrote %s (%d bytes)", path, len(a.Content))
	}

	factsPath := filepath.Join(outDir, "facts.jsonl")
	if err := e.store.WriteJSONLFile(factsPath); err != nil {
		return fmt.Errorf("writing facts.jsonl: %w", err)
	}
	log.Printf("[engine] wrote %s", factsPath)

	for name, v := range map[string]any{
		"insights.json":      e.snapshot.Insights,
		"snapshot.meta.json": e.snapshot.Meta,
	} {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling %s: %w", name, err)
		}
		path := filepath.Join(outDir, name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", name, err)
		}
		log.Printf("[engine] wrote %s (%d bytes)", path, len(data))
	}

	return nil
}

// GetArtifact returns the content of a named artifact, or the generated JSONL/JSON files.
func (e *Engine) GetArtifact(name string) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.snapshot == nil {
		return nil, fmt.Errorf("no snapshot generated")
	}

	switch name {
	case "facts.jsonl":
		var buf bytes.Buffer
		if err := e.store.WriteJSONL(&buf); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case "insights.json":
		return json.MarshalIndent(e.snapshot.Insights, "", "  ")
	case "snapshot.meta.json":
		return json.MarshalIndent(e.snapshot.Meta, "", "  ")
	default:
		for _, a := range e.snapshot.Artifacts {
			if a.Name == name {
				return a.Content, nil
			}
		}
		return nil, fmt.Errorf("artifact %q not found", name)
	}
}

// Close releases the syntax trees of the current project.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.project != nil {
		e.project.Close()
		e.project = nil
	}
}

// loadPreviousHashes reads file hashes from the previous snapshot.meta.json.
func (e *Engine) loadPreviousHashes(repoPath string) {
	outDir := e.cfg.Output.Dir
	if !filepath.IsAbs(outDir) {
		outDir = filepath.Join(repoPath, outDir)
	}
	data, err := os.ReadFile(filepath.Join(outDir, "snapshot.meta.json"))
	if err != nil {
		e.prevHashes = nil
		return
	}

	var meta facts.SnapshotMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		e.prevHashes = nil
		return
	}

	e.prevHashes = make(map[string]string, len(meta.FileHashes))
	for _, fh := range meta.FileHashes {
		e.prevHashes[fh.Path] = fh.Hash
	}
	log.Printf("[engine] loaded %d file hashes from previous snapshot", len(e.prevHashes))
}

// hashSources computes SHA-256 hashes of every source and counts the ones
// that changed since the previous run.
func (e *Engine) hashSources(sources []project.Source) (map[string]string, int) {
	hashes := make(map[string]string, len(sources))
	changed := 0
	for _, src := range sources {
		h := sha256.Sum256([]byte(src.Text))
		hash := hex.EncodeToString(h[:])
		hashes[src.Path] = hash
		if prev, ok := e.prevHashes[src.Path]; !ok || prev != hash {
			changed++
		}
	}
	return hashes, changed
}

// fileModTime returns the modification time of a file as an RFC3339 string.
func fileModTime(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return ""
	}
	return info.ModTime().UTC().Format(time.RFC3339)
}
