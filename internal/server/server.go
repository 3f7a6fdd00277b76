package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dejo1307/javalens/internal/analyzers/scan"
	"github.com/dejo1307/javalens/internal/callgraph"
	"github.com/dejo1307/javalens/internal/config"
	"github.com/dejo1307/javalens/internal/diagram"
	"github.com/dejo1307/javalens/internal/engine"
	"github.com/dejo1307/javalens/internal/facts"
	"github.com/dejo1307/javalens/internal/project"
	"github.com/dejo1307/javalens/internal/relations"
	"github.com/dejo1307/javalens/internal/schema"
	"github.com/dejo1307/javalens/internal/sequence"
)

// Version is reported to MCP clients.
const Version = "0.1.0"

var errNoSnapshot = errors.New("no snapshot available, run generate_snapshot first")

// Server wraps the MCP server and connects it to the snapshot engine.
type Server struct {
	mcp *mcp.Server
	eng *engine.Engine
	cfg *config.Config
}

// New creates a new MCP server wired to the given engine.
func New(eng *engine.Engine, cfg *config.Config) (*Server, error) {
	s := &Server{
		eng: eng,
		cfg: cfg,
	}

	s.mcp = mcp.NewServer(&mcp.Implementation{
		Name:    "javalens",
		Version: Version,
	}, nil)

	s.registerResources()
	s.registerTools()

	return s, nil
}

// Run starts the MCP server on the stdio transport.
func (s *Server) Run(ctx context.Context) error {
	log.Println("[server] starting MCP server on stdio transport")
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

// registerResources adds MCP resources for snapshot artifacts.
func (s *Server) registerResources() {
	for _, r := range []struct {
		uri, name, description, artifact, mime string
	}{
		{"javalens://snapshot/summary", "Code Base Summary", "Compact LLM-ready summary of the Java code base", "summary.md", "text/markdown"},
		{"javalens://snapshot/facts", "Facts", "All derived facts in JSONL format", "facts.jsonl", "application/jsonl"},
		{"javalens://snapshot/insights", "Insights", "Cycles, layers and layer violations", "insights.json", "application/json"},
		{"javalens://snapshot/meta", "Snapshot Metadata", "Metadata about the last snapshot generation", "snapshot.meta.json", "application/json"},
	} {
		s.mcp.AddResource(&mcp.Resource{
			URI:         r.uri,
			Name:        r.name,
			Description: r.description,
			MIMEType:    r.mime,
		}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			content, err := s.eng.GetArtifact(r.artifact)
			if err != nil {
				return nil, fmt.Errorf("no snapshot available: %w (run generate_snapshot first)", err)
			}
			return &mcp.ReadResourceResult{
				Contents: []*mcp.ResourceContents{
					{URI: req.Params.URI, Text: string(content), MIMEType: r.mime},
				},
			}, nil
		})
	}
}

// generateSnapshotArgs are the arguments for the generate_snapshot tool.
type generateSnapshotArgs struct {
	RepoPath string `json:"repo_path" jsonschema:"Path to the repository to analyze. Defaults to the configured repo path."`
}

// queryFactsArgs are the arguments for the query_facts tool.
type queryFactsArgs struct {
	Kind       string `json:"kind,omitempty" jsonschema:"Filter by fact kind: package, class, method, endpoint, service, table_usage, pattern or demographic"`
	File       string `json:"file,omitempty" jsonschema:"Filter by file path"`
	FilePrefix string `json:"file_prefix,omitempty" jsonschema:"Filter by file path prefix"`
	Name       string `json:"name,omitempty" jsonschema:"Filter by name using substring match"`
	Relation   string `json:"relation,omitempty" jsonschema:"Filter by relation kind: declares, imports, extends, implements, associates, composes, calls, depends_on or uses_table"`
	Prop       string `json:"prop,omitempty" jsonschema:"Filter by property name (e.g. class_kind, system, category)"`
	PropValue  string `json:"prop_value,omitempty" jsonschema:"Filter by property value (requires prop to be set)"`
	Offset     int    `json:"offset,omitempty" jsonschema:"Number of matches to skip"`
	Limit      int    `json:"limit,omitempty" jsonschema:"Maximum number of matches to return (default 100, max 500)"`
}

type classStructureArgs struct {
	Package string `json:"package,omitempty" jsonschema:"Only show this package"`
}

type graphArgs struct {
	Name   string `json:"name,omitempty" jsonschema:"Only show edges touching this class or method identifier"`
	Format string `json:"format,omitempty" jsonschema:"json (default) or plantuml"`
}

type sequenceArgs struct {
	Method string `json:"method" jsonschema:"required,Name of the method to trace"`
}

type scanArgs struct {
	Scanner string `json:"scanner" jsonschema:"required,One of demographic, integration, legacy, legacy_usages or demographic_fields"`
}

type schemaArgs struct {
	DSN string `json:"dsn,omitempty" jsonschema:"Database URL. Defaults to database.url from javalens.yaml or DATABASE_URL."`
}

type impactArgs struct {
	Target   string `json:"target" jsonschema:"required,Fact name to analyze, e.g. a class or Class.method"`
	MaxDepth int    `json:"max_depth,omitempty" jsonschema:"Maximum distance (default 3, max 10)"`
}

type findPathArgs struct {
	From      string   `json:"from" jsonschema:"required,Fact name to start from, e.g. a class or Class.method"`
	To        string   `json:"to" jsonschema:"required,Fact name to reach"`
	Relations []string `json:"relations,omitempty" jsonschema:"Relation kinds to follow, e.g. calls, depends_on, extends. Defaults to all."`
	MaxDepth  int      `json:"max_depth,omitempty" jsonschema:"Maximum path length (default 10, max 20)"`
}

// showSourceArgs are the arguments for the show_source tool.
type showSourceArgs struct {
	Name         string `json:"name" jsonschema:"required,Class or Class.method name to look up (substring match)"`
	ContextLines int    `json:"context_lines,omitempty" jsonschema:"Number of source lines to show around the declaration (default 30)"`
}

// registerTools adds MCP tools for snapshot generation and analysis.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "generate_snapshot",
		Description: "Analyze a Java repository. Parses every source file, derives facts about packages, classes, methods, endpoints and legacy data usage, detects cycles and layers, and produces an LLM-ready summary plus PlantUML diagrams.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args generateSnapshotArgs) (*mcp.CallToolResult, any, error) {
		repoPath := args.RepoPath
		if repoPath == "" {
			repoPath = s.cfg.Repo
		}

		absRepo, err := filepath.Abs(repoPath)
		if err != nil {
			return errorResult(fmt.Sprintf("invalid repo path: %v", err)), nil, nil
		}

		snapshot, err := s.eng.GenerateSnapshot(ctx, absRepo)
		if err != nil {
			return errorResult(fmt.Sprintf("snapshot generation failed: %v", err)), nil, nil
		}

		if err := s.eng.WriteArtifacts(absRepo); err != nil {
			log.Printf("[server] warning: failed to write artifacts: %v", err)
		}

		graph := facts.NewGraph(snapshot.Facts)
		summary := fmt.Sprintf(
			"Snapshot generated successfully.\n\n"+
				"- Repository: %s\n"+
				"- Files: %d\n"+
				"- Facts: %d\n"+
				"- Insights: %d\n"+
				"- Diagnostics: %d\n"+
				"- Artifacts: %d\n"+
				"- Graph: %d nodes, %d edges\n"+
				"- Duration: %s\n"+
				"- Analyzers: %v\n"+
				"- Explainers: %v\n\n"+
				"Use the javalens://snapshot/summary resource to read the LLM-ready summary.",
			snapshot.Meta.RepoPath,
			snapshot.Meta.FileCount,
			snapshot.Meta.FactCount,
			snapshot.Meta.InsightCount,
			len(snapshot.Meta.Diagnostics),
			len(snapshot.Artifacts),
			graph.NodeCount(), graph.EdgeCount(),
			snapshot.Meta.Duration,
			snapshot.Meta.Analyzers,
			snapshot.Meta.Explainers,
		)
		return textResult(summary), nil, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "query_facts",
		Description: "Query the derived facts by kind, file, name, relation or property. Returns matching facts as JSON.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args queryFactsArgs) (*mcp.CallToolResult, any, error) {
		return toolResult(s.queryFacts(args))
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "class_structure",
		Description: "List packages, their files and the classes each file declares with methods, fields, supertypes and annotations.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args classStructureArgs) (*mcp.CallToolResult, any, error) {
		return toolResult(s.classStructure(args.Package))
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "class_diagram",
		Description: "Render a PlantUML class diagram of every declared class.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args classStructureArgs) (*mcp.CallToolResult, any, error) {
		return toolResult(s.classDiagram(args.Package))
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "relationships",
		Description: "Show inheritance, implementation, association and composition edges between classes, with graph statistics.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args graphArgs) (*mcp.CallToolResult, any, error) {
		return toolResult(s.relationships(args.Name, args.Format))
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "call_graph",
		Description: "Show the syntactic method call graph. Receivers are not resolved to types.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args graphArgs) (*mcp.CallToolResult, any, error) {
		return toolResult(s.callGraph(args.Name, args.Format))
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "sequence_diagram",
		Description: "Trace the calls made by a method in source order and render them as a PlantUML sequence diagram.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args sequenceArgs) (*mcp.CallToolResult, any, error) {
		return toolResult(s.sequenceDiagram(args.Method))
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "scan_patterns",
		Description: "Run a lexical scanner (demographic, integration, legacy) or an AST scan (legacy_usages, demographic_fields) over the analysed sources.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args scanArgs) (*mcp.CallToolResult, any, error) {
		return toolResult(s.scanPatterns(ctx, args.Scanner))
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "database_schema",
		Description: "Inspect the tables, columns and foreign keys of a SQLite database.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args schemaArgs) (*mcp.CallToolResult, any, error) {
		return toolResult(s.databaseSchema(ctx, args.DSN))
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "impact",
		Description: "List everything that transitively depends on a fact, grouped by distance.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args impactArgs) (*mcp.CallToolResult, any, error) {
		return toolResult(s.impact(args.Target, args.MaxDepth))
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "find_path",
		Description: "Find a shortest chain of relations from one fact to another, e.g. how a controller reaches a legacy table through calls and depends_on.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args findPathArgs) (*mcp.CallToolResult, any, error) {
		return toolResult(s.findPath(args.From, args.To, args.Relations, args.MaxDepth))
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "show_source",
		Description: "Show the source of a class or method found in the snapshot, with surrounding context lines.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args showSourceArgs) (*mcp.CallToolResult, any, error) {
		return toolResult(s.showSource(args.Name, args.ContextLines))
	})
}

func (s *Server) queryFacts(args queryFactsArgs) (string, error) {
	store := s.eng.Store()
	if store.Count() == 0 {
		return "", errors.New("no facts available, run generate_snapshot first")
	}

	results, total := store.Query(facts.QueryOpts{
		Kind:       args.Kind,
		File:       args.File,
		FilePrefix: args.FilePrefix,
		Name:       args.Name,
		RelKind:    args.Relation,
		Prop:       args.Prop,
		PropValue:  args.PropValue,
		Offset:     args.Offset,
		Limit:      args.Limit,
	})

	text, err := marshal(results)
	if err != nil {
		return "", err
	}
	if shown := args.Offset + len(results); shown < total {
		text += fmt.Sprintf("\n\n... (showing %d-%d of %d results, use offset or refine your query)", args.Offset+1, shown, total)
	}
	return text, nil
}

// withProject runs fn on the project of the last snapshot while the engine
// keeps its syntax trees open.
func (s *Server) withProject(fn func(*project.Project) (string, error)) (string, error) {
	var text string
	err := s.eng.WithProject(func(p *project.Project) error {
		var err error
		text, err = fn(p)
		return err
	})
	if errors.Is(err, engine.ErrNoProject) {
		return "", errNoSnapshot
	}
	return text, err
}

func (s *Server) classStructure(pkg string) (string, error) {
	return s.withProject(func(p *project.Project) (string, error) {
		return classStructure(p, pkg)
	})
}

func classStructure(p *project.Project, pkg string) (string, error) {
	structure := p.Structure()
	if pkg != "" {
		files, ok := structure[pkg]
		if !ok {
			return "", fmt.Errorf("package %q not found", pkg)
		}
		structure = map[string][]*project.File{pkg: files}
	}
	return marshal(structure)
}

func (s *Server) classDiagram(pkg string) (string, error) {
	return s.withProject(func(p *project.Project) (string, error) {
		return classDiagram(p, pkg)
	})
}

func classDiagram(p *project.Project, pkg string) (string, error) {
	if pkg == "" {
		return diagram.Classes(p.Classes()), nil
	}
	files, ok := p.Structure()[pkg]
	if !ok {
		return "", fmt.Errorf("package %q not found", pkg)
	}
	var sub project.Project
	sub.Files = files
	return diagram.Classes(sub.Classes()), nil
}

type relationshipsView struct {
	Edges []relations.Edge `json:"edges"`
	Stats relations.Stats  `json:"stats"`
}

func (s *Server) relationships(name, format string) (string, error) {
	return s.withProject(func(p *project.Project) (string, error) {
		return relationships(p, name, format)
	})
}

func relationships(p *project.Project, name, format string) (string, error) {
	g := relations.NewBuilder().Build(p.Classes())
	if name != "" && !g.HasNode(name) {
		return "", fmt.Errorf("class %q not found", name)
	}
	if format == "plantuml" {
		return diagram.Relationships(g), nil
	}

	edges := g.Edges()
	if name != "" {
		var touching []relations.Edge
		for _, e := range edges {
			if e.Source == name || e.Target == name {
				touching = append(touching, e)
			}
		}
		edges = touching
	}
	return marshal(relationshipsView{Edges: edges, Stats: g.Stats()})
}

type callGraphView struct {
	Resolution string           `json:"resolution"`
	Methods    []string         `json:"methods"`
	Edges      []callgraph.Edge `json:"edges"`
}

func (s *Server) callGraph(name, format string) (string, error) {
	return s.withProject(func(p *project.Project) (string, error) {
		return callGraph(p, name, format)
	})
}

func callGraph(p *project.Project, name, format string) (string, error) {
	b := callgraph.New()
	for _, u := range p.Units() {
		b.Build(u)
	}

	methods, edges := b.Methods(), b.Edges()
	if name != "" {
		seen := map[string]bool{name: true}
		var touching []callgraph.Edge
		for _, e := range edges {
			if e.Caller == name || e.Callee == name {
				touching = append(touching, e)
				seen[e.Caller], seen[e.Callee] = true, true
			}
		}
		if len(touching) == 0 && !contains(methods, name) {
			return "", fmt.Errorf("method %q not found", name)
		}
		edges, methods = touching, nil
		for m := range seen {
			methods = append(methods, m)
		}
		sort.Strings(methods)
	}

	if format == "plantuml" {
		return diagram.CallGraph(methods, edges), nil
	}
	return marshal(callGraphView{Resolution: b.Resolution(), Methods: methods, Edges: edges})
}

func (s *Server) sequenceDiagram(method string) (string, error) {
	return s.withProject(func(p *project.Project) (string, error) {
		res, err := sequence.New().TraceUnits(method, p.Units()...)
		if err != nil {
			return "", err
		}
		return diagram.Sequence(res), nil
	})
}

type scannerView struct {
	Categories []string       `json:"categories"`
	Statistics map[string]int `json:"statistics"`
	Groups     any            `json:"groups"`
}

func (s *Server) scanPatterns(ctx context.Context, scanner string) (string, error) {
	return s.withProject(func(p *project.Project) (string, error) {
		return s.scanProject(ctx, p, scanner)
	})
}

func (s *Server) scanProject(ctx context.Context, p *project.Project, scanner string) (string, error) {
	a, err := scan.New(scan.Vocabulary{
		Demographic:       s.cfg.DemographicVocabulary(),
		Integration:       s.cfg.IntegrationVocabulary(),
		Legacy:            s.cfg.LegacySystems(),
		DemographicFields: s.cfg.DemographicFields(),
	})
	if err != nil {
		return "", err
	}
	if _, err := a.Analyze(ctx, p); err != nil {
		return "", err
	}

	switch scanner {
	case "legacy_usages":
		return marshal(a.Legacy().Summary())
	case "demographic_fields":
		return marshal(a.Demographics().Summary())
	}
	sc := a.Scanner(scanner)
	if sc == nil {
		return "", fmt.Errorf("unknown scanner %q", scanner)
	}
	return marshal(scannerView{Categories: sc.Categories(), Statistics: sc.Statistics(), Groups: sc.Summary()})
}

func (s *Server) databaseSchema(ctx context.Context, dsn string) (string, error) {
	if dsn == "" {
		dirs := []string{"."}
		if snap := s.eng.Snapshot(); snap != nil {
			dirs = append([]string{snap.Meta.RepoPath}, dirs...)
		}
		cfg, err := schema.LoadConfig(dirs...)
		if err != nil {
			return "", err
		}
		dsn = cfg.URL
	}
	insp, err := schema.Open(ctx, dsn)
	if err != nil {
		return "", err
	}
	defer insp.Close()

	tables, err := insp.Analyze(ctx)
	if err != nil {
		return "", err
	}
	return marshal(tables)
}

func (s *Server) impact(target string, maxDepth int) (string, error) {
	if target == "" {
		return "", errors.New("target is required")
	}
	g := s.eng.Store().Graph()
	if g == nil {
		return "", errNoSnapshot
	}
	return marshal(g.Impact(target, maxDepth, 0))
}

func (s *Server) findPath(from, to string, relKinds []string, maxDepth int) (string, error) {
	if from == "" || to == "" {
		return "", errors.New("from and to are required")
	}
	g := s.eng.Store().Graph()
	if g == nil {
		return "", errNoSnapshot
	}
	res := g.FindPath(from, to, relKinds, maxDepth)
	if !res.Found {
		return "", fmt.Errorf("no path from %q to %q", from, to)
	}
	return marshal(res)
}

func (s *Server) showSource(name string, contextLines int) (string, error) {
	if s.eng.Snapshot() == nil {
		return "", errNoSnapshot
	}
	if name == "" {
		return "", errors.New("name is required")
	}

	results, _ := s.eng.Store().Query(facts.QueryOpts{
		Kinds: []string{facts.KindClass, facts.KindMethod},
		Name:  name,
		Limit: 5,
	})
	if len(results) == 0 {
		return "", fmt.Errorf("no classes or methods matching %q", name)
	}

	if contextLines <= 0 {
		contextLines = 30
	}

	var sb strings.Builder
	for i, fact := range results {
		if i > 0 {
			sb.WriteString("\n---\n\n")
		}
		fmt.Fprintf(&sb, "### %s\n", fact.Name)
		fmt.Fprintf(&sb, "File: %s  Line: %d\n", fact.File, fact.Line)
		if kind, ok := fact.Props["class_kind"].(string); ok {
			fmt.Fprintf(&sb, "Kind: %s\n", kind)
		}
		if refs := referencedBy(s.eng.Store(), fact.Name, 10); refs != "" {
			fmt.Fprintf(&sb, "Referenced by: %s\n", refs)
		}
		sb.WriteString("\n")

		source, err := readSourceWindow(s.eng.ResolveFactFile(&fact), fact.Line, contextLines)
		if err != nil {
			fmt.Fprintf(&sb, "_Could not read source: %v_\n", err)
			continue
		}
		fmt.Fprintf(&sb, "```java\n%s```\n", source)
	}
	return sb.String(), nil
}

// referencedBy lists the facts holding any relation to name, at most limit
// of them.
func referencedBy(store *facts.Store, name string, limit int) string {
	refs := store.ReverseLookup(name, "")
	var names []string
	seen := make(map[string]bool)
	for _, f := range refs {
		if f.Name == "" || seen[f.Name] {
			continue
		}
		seen[f.Name] = true
		names = append(names, f.Name)
	}
	if len(names) > limit {
		names = append(names[:limit], fmt.Sprintf("and %d more", len(names)-limit))
	}
	return strings.Join(names, ", ")
}

// readSourceWindow reads lines from a file centered around the given line number.
func readSourceWindow(absFile string, centerLine, contextLines int) (string, error) {
	data, err := os.ReadFile(absFile)
	if err != nil {
		return "", err
	}

	lines := strings.Split(string(data), "\n")
	startLine := max(centerLine-contextLines/2, 1)
	endLine := min(centerLine+contextLines/2, len(lines))

	var sb strings.Builder
	for i := startLine; i <= endLine; i++ {
		fmt.Fprintf(&sb, "%4d│ %s\n", i, lines[i-1])
	}
	return sb.String(), nil
}

func marshal(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal results: %w", err)
	}
	return string(data), nil
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

func toolResult(text string, err error) (*mcp.CallToolResult, any, error) {
	if err != nil {
		return errorResult(err.Error()), nil, nil
	}
	return textResult(text), nil, nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
		IsError: true,
	}
}
