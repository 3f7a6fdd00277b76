package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dejo1307/javalens/internal/analyzers/scan"
	"github.com/dejo1307/javalens/internal/analyzers/servicemap"
	"github.com/dejo1307/javalens/internal/analyzers/structure"
	"github.com/dejo1307/javalens/internal/config"
	"github.com/dejo1307/javalens/internal/explainers/cycles"
	"github.com/dejo1307/javalens/internal/explainers/layers"
	"github.com/dejo1307/javalens/internal/facts"
	"github.com/dejo1307/javalens/internal/project"
	"github.com/dejo1307/javalens/internal/renderers/plantuml"
	"github.com/dejo1307/javalens/internal/renderers/summary"
	"github.com/dejo1307/javalens/internal/sequence"
)

func TestNew_NilConfig(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Error("expected error for nil config")
	}
}

func TestResolveFactFile_SingleRepo(t *testing.T) {
	cfg := config.Default()
	eng, _ := New(cfg)
	eng.SetSnapshot(&facts.Snapshot{
		Meta: facts.SnapshotMeta{RepoPath: "/Users/me/myrepo"},
	})

	f := &facts.Fact{File: "src/main/java/com/acme/Order.java"}
	got := eng.ResolveFactFile(f)
	want := filepath.Join("/Users/me/myrepo", "src/main/java/com/acme/Order.java")
	if got != want {
		t.Errorf("ResolveFactFile = %q, want %q", got, want)
	}
}

func TestResolveFactFile_NoSnapshotUsesConfigRepo(t *testing.T) {
	cfg := config.Default()
	cfg.Repo = "/srv/shop"
	eng, _ := New(cfg)

	got := eng.ResolveFactFile(&facts.Fact{File: "Order.java"})
	if want := filepath.Join("/srv/shop", "Order.java"); got != want {
		t.Errorf("ResolveFactFile = %q, want %q", got, want)
	}
}

func TestResolveFactFile_AbsoluteAndEmpty(t *testing.T) {
	eng, _ := New(config.Default())

	if got := eng.ResolveFactFile(&facts.Fact{File: "/abs/Order.java"}); got != "/abs/Order.java" {
		t.Errorf("absolute path changed: %q", got)
	}
	if got := eng.ResolveFactFile(&facts.Fact{}); got != "" {
		t.Errorf("empty file should stay empty, got %q", got)
	}
}

func TestGetArtifact_NoSnapshot(t *testing.T) {
	eng, _ := New(config.Default())
	if _, err := eng.GetArtifact("summary.md"); err == nil {
		t.Error("expected error without snapshot")
	}
	if err := eng.WriteArtifacts(t.TempDir()); err == nil {
		t.Error("expected error writing artifacts without snapshot")
	}
}

var repoFiles = map[string]string{
	"orders/src/main/java/com/acme/domain/Order.java": `package com.acme.domain;

import com.acme.service.OrderService;

public class Order {
    private String id;
    private OrderService owner;
}
`,
	"orders/src/main/java/com/acme/service/OrderService.java": `package com.acme.service;

import com.acme.domain.Order;
import org.springframework.stereotype.Service;

@Service
public class OrderService {
    private Order last;

    public Order place(Order order) {
        validate(order);
        return order;
    }

    private void validate(Order order) {
        String sql = "SELECT * FROM CRPS_CUSTOMER";
    }
}
`,
	"orders/src/main/java/com/acme/controller/OrderController.java": `package com.acme.controller;

import com.acme.service.OrderService;

@RestController
@RequestMapping("/orders")
public class OrderController {
    private OrderService service;

    @GetMapping("/{id}")
    public String get(String id) {
        return service.toString();
    }
}
`,
	"orders/src/test/java/com/acme/OrderServiceTest.java": `package com.acme;

public class OrderServiceTest {
}
`,
	"orders/src/main/java/com/acme/Broken.java": `package com.acme;

public class Broken {
    void m( {
`,
}

func writeRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for rel, content := range repoFiles {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func newFullEngine(t *testing.T, cfg *config.Config) *Engine {
	t.Helper()
	eng, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(eng.Close)

	eng.RegisterAnalyzer(structure.New())
	eng.RegisterAnalyzer(servicemap.New(cfg.ServiceName))
	sc, err := scan.New(scan.Vocabulary{})
	if err != nil {
		t.Fatal(err)
	}
	eng.RegisterAnalyzer(sc)
	eng.RegisterExplainer(cycles.New())
	eng.RegisterExplainer(layers.New())
	eng.RegisterRenderer(summary.New(cfg.Output.MaxSummaryTokens))
	eng.RegisterRenderer(plantuml.New(cfg.ServiceName))
	return eng
}

func TestGenerateSnapshot_EndToEnd(t *testing.T) {
	dir := writeRepo(t)
	cfg := config.Default()
	cfg.Repo = dir
	eng := newFullEngine(t, cfg)

	snap, err := eng.GenerateSnapshot(context.Background(), dir)
	if err != nil {
		t.Fatalf("GenerateSnapshot: %v", err)
	}

	// The test file is excluded and the broken file fails to parse.
	if snap.Meta.FileCount != 3 {
		t.Errorf("FileCount = %d, want 3", snap.Meta.FileCount)
	}
	foundBroken := false
	for _, d := range snap.Meta.Diagnostics {
		if strings.HasSuffix(d.File, "Broken.java") {
			foundBroken = true
		}
	}
	if !foundBroken {
		t.Errorf("expected a diagnostic for Broken.java, got %+v", snap.Meta.Diagnostics)
	}

	store := eng.Store()
	if len(store.ByName("OrderService")) == 0 {
		t.Error("missing class fact OrderService")
	}
	if len(store.ByKind(facts.KindEndpoint)) == 0 {
		t.Error("missing endpoint facts")
	}
	if len(store.ByKind(facts.KindTableUsage)) == 0 {
		t.Error("missing legacy table usage facts")
	}
	if snap.Meta.FactCount != store.Count() {
		t.Errorf("FactCount = %d, store has %d", snap.Meta.FactCount, store.Count())
	}

	cyclic := false
	for _, in := range snap.Insights {
		if strings.HasPrefix(in.Title, "Cyclic dependency detected") {
			cyclic = true
		}
	}
	if !cyclic {
		t.Error("expected the domain <-> service import cycle to be reported")
	}

	for _, name := range []string{"structure", "services", "scanners"} {
		if !containsName(snap.Meta.Analyzers, name) {
			t.Errorf("analyzer %q not recorded in meta: %v", name, snap.Meta.Analyzers)
		}
	}
	if len(snap.Meta.FileHashes) != 4 {
		t.Errorf("FileHashes = %d, want one per walked source (4)", len(snap.Meta.FileHashes))
	}

	err = eng.WithProject(func(p *project.Project) error {
		if n := len(p.Units()); n != 3 {
			t.Errorf("project keeps %d parsed units open, want 3", n)
		}
		return nil
	})
	if err != nil {
		t.Errorf("WithProject: %v", err)
	}
}

func TestWithProject_NoRun(t *testing.T) {
	eng, _ := New(config.Default())
	called := false
	err := eng.WithProject(func(*project.Project) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrNoProject) {
		t.Errorf("WithProject = %v, want ErrNoProject", err)
	}
	if called {
		t.Error("fn should not run without a project")
	}
}

func TestWithProject_RegenerateWhileInUse(t *testing.T) {
	dir := writeRepo(t)
	cfg := config.Default()
	cfg.Repo = dir
	eng := newFullEngine(t, cfg)

	if _, err := eng.GenerateSnapshot(context.Background(), dir); err != nil {
		t.Fatalf("GenerateSnapshot: %v", err)
	}

	regenerated := make(chan error, 1)
	err := eng.WithProject(func(p *project.Project) error {
		units := p.Units()
		go func() {
			_, err := eng.GenerateSnapshot(context.Background(), dir)
			regenerated <- err
		}()
		select {
		case <-regenerated:
			return errors.New("snapshot regenerated while the project was in use")
		case <-time.After(50 * time.Millisecond):
		}

		// The trees must still be open here.
		res, err := sequence.New().TraceUnits("place", units...)
		if err != nil {
			return err
		}
		if len(res.Interactions) != 1 || res.Interactions[0].Message != "validate" {
			t.Errorf("Interactions = %+v, want one validate call", res.Interactions)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithProject: %v", err)
	}
	if err := <-regenerated; err != nil {
		t.Fatalf("GenerateSnapshot after release: %v", err)
	}
	if err := eng.WithProject(func(*project.Project) error { return nil }); err != nil {
		t.Errorf("WithProject after regeneration: %v", err)
	}
}

func TestGenerateSnapshot_Artifacts(t *testing.T) {
	dir := writeRepo(t)
	cfg := config.Default()
	cfg.Repo = dir
	eng := newFullEngine(t, cfg)

	if _, err := eng.GenerateSnapshot(context.Background(), dir); err != nil {
		t.Fatalf("GenerateSnapshot: %v", err)
	}

	data, err := eng.GetArtifact("summary.md")
	if err != nil {
		t.Fatalf("GetArtifact(summary.md): %v", err)
	}
	if !strings.HasPrefix(string(data), "# Java Code Base Summary") {
		t.Errorf("unexpected summary header: %q", firstLine(string(data)))
	}

	for _, name := range []string{"classes.puml", "facts.jsonl", "insights.json", "snapshot.meta.json"} {
		if _, err := eng.GetArtifact(name); err != nil {
			t.Errorf("GetArtifact(%s): %v", name, err)
		}
	}
	if _, err := eng.GetArtifact("nope.txt"); err == nil {
		t.Error("expected error for unknown artifact")
	}

	if err := eng.WriteArtifacts(dir); err != nil {
		t.Fatalf("WriteArtifacts: %v", err)
	}
	for _, name := range []string{"summary.md", "facts.jsonl", "insights.json", "snapshot.meta.json", "classes.puml"} {
		if _, err := os.Stat(filepath.Join(dir, cfg.Output.Dir, name)); err != nil {
			t.Errorf("artifact %s not written: %v", name, err)
		}
	}
}

func TestGenerateSnapshot_DisabledAnalyzer(t *testing.T) {
	dir := writeRepo(t)
	cfg := config.Default()
	cfg.Repo = dir
	cfg.Analyzers = []string{"structure"}
	eng := newFullEngine(t, cfg)

	snap, err := eng.GenerateSnapshot(context.Background(), dir)
	if err != nil {
		t.Fatalf("GenerateSnapshot: %v", err)
	}
	if len(snap.Meta.Analyzers) != 1 || snap.Meta.Analyzers[0] != "structure" {
		t.Errorf("Analyzers = %v, want [structure]", snap.Meta.Analyzers)
	}
	if n := len(eng.Store().ByKind(facts.KindEndpoint)); n != 0 {
		t.Errorf("disabled services analyzer still produced %d endpoints", n)
	}
}

func TestGenerateSnapshot_MissingRepo(t *testing.T) {
	eng, _ := New(config.Default())
	if _, err := eng.GenerateSnapshot(context.Background(), filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing repo")
	}
}

func TestGenerateSnapshot_Cancelled(t *testing.T) {
	dir := writeRepo(t)
	cfg := config.Default()
	eng := newFullEngine(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := eng.GenerateSnapshot(ctx, dir); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestGenerateSnapshot_Concurrent(t *testing.T) {
	dir := writeRepo(t)
	cfg := config.Default()
	cfg.Repo = dir
	eng := newFullEngine(t, cfg)

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := eng.GenerateSnapshot(context.Background(), dir); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent GenerateSnapshot: %v", err)
	}

	if eng.Snapshot() == nil {
		t.Fatal("snapshot should be set")
	}
	if eng.Snapshot().Meta.FactCount != eng.Store().Count() {
		t.Error("store and snapshot disagree after concurrent runs")
	}
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
