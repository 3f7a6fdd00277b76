package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dejo1307/javalens/internal/analyzers/scan"
	"github.com/dejo1307/javalens/internal/analyzers/servicemap"
	"github.com/dejo1307/javalens/internal/callgraph"
	"github.com/dejo1307/javalens/internal/config"
	"github.com/dejo1307/javalens/internal/declarations"
	"github.com/dejo1307/javalens/internal/diagram"
	"github.com/dejo1307/javalens/internal/project"
	"github.com/dejo1307/javalens/internal/relations"
	"github.com/dejo1307/javalens/internal/schema"
	"github.com/dejo1307/javalens/internal/sequence"
	"github.com/dejo1307/javalens/internal/termui"
)

var (
	format string
	dsn    string
)

func addAnalysisCommands(root *cobra.Command) {
	structureCmd := &cobra.Command{
		Use:   "structure",
		Short: "Print packages, files and their class records as JSON",
		Args:  cobra.NoArgs,
		RunE: withProject(func(cmd *cobra.Command, _ []string, _ *config.Config, p *project.Project) error {
			return printJSON(p.Structure())
		}),
	}

	umlCmd := &cobra.Command{
		Use:   "uml",
		Short: "Print a PlantUML class diagram",
		Args:  cobra.NoArgs,
		RunE: withProject(func(cmd *cobra.Command, _ []string, _ *config.Config, p *project.Project) error {
			fmt.Print(diagram.Classes(p.Classes()))
			return nil
		}),
	}

	relationsCmd := &cobra.Command{
		Use:   "relations",
		Short: "Print class relationships and graph statistics",
		Args:  cobra.NoArgs,
		RunE: withProject(func(cmd *cobra.Command, _ []string, _ *config.Config, p *project.Project) error {
			g := relations.NewBuilder().Build(p.Classes())
			if format == "plantuml" {
				fmt.Print(diagram.Relationships(g))
				return nil
			}
			return printJSON(map[string]any{"edges": g.Edges(), "stats": g.Stats()})
		}),
	}
	relationsCmd.Flags().StringVarP(&format, "format", "f", "json", "Output format: json or plantuml")

	callgraphCmd := &cobra.Command{
		Use:   "callgraph",
		Short: "Print the syntactic method call graph",
		Args:  cobra.NoArgs,
		RunE: withProject(func(cmd *cobra.Command, _ []string, _ *config.Config, p *project.Project) error {
			b := callgraph.New()
			for _, u := range p.Units() {
				b.Build(u)
			}
			if format == "plantuml" {
				fmt.Print(diagram.CallGraph(b.Methods(), b.Edges()))
				return nil
			}
			return printJSON(map[string]any{
				"resolution": b.Resolution(),
				"methods":    b.Methods(),
				"edges":      b.Edges(),
			})
		}),
	}
	callgraphCmd.Flags().StringVarP(&format, "format", "f", "json", "Output format: json or plantuml")

	sequenceCmd := &cobra.Command{
		Use:   "sequence <method>",
		Short: "Print a PlantUML sequence diagram of the calls a method makes",
		Args:  cobra.ExactArgs(1),
		RunE: withProject(func(cmd *cobra.Command, args []string, _ *config.Config, p *project.Project) error {
			res, err := sequence.New().TraceUnits(args[0], p.Units()...)
			if err != nil {
				return err
			}
			fmt.Print(diagram.Sequence(res))
			return nil
		}),
	}

	servicesCmd := &cobra.Command{
		Use:   "services",
		Short: "Print REST endpoints, service dependencies and the service graph",
		Args:  cobra.NoArgs,
		RunE: withProject(func(cmd *cobra.Command, _ []string, cfg *config.Config, p *project.Project) error {
			a := servicemap.New(cfg.ServiceName)
			if _, err := a.Analyze(cmd.Context(), p); err != nil {
				return err
			}
			if format == "plantuml" {
				fmt.Print(diagram.Services(a.Services().ServiceGraph()))
				return nil
			}
			return printJSON(a.Services().APISummary())
		}),
	}
	servicesCmd.Flags().StringVarP(&format, "format", "f", "json", "Output format: json or plantuml")

	scanCmd := &cobra.Command{
		Use:       "scan <scanner>",
		Short:     "Run a pattern scanner over the sources",
		Long:      "Scanners: demographic, integration, legacy, legacy_usages, demographic_fields.",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"demographic", "integration", "legacy", "legacy_usages", "demographic_fields"},
		RunE: withProject(func(cmd *cobra.Command, args []string, cfg *config.Config, p *project.Project) error {
			a, err := scan.New(vocabulary(cfg))
			if err != nil {
				return err
			}
			if _, err := a.Analyze(cmd.Context(), p); err != nil {
				return err
			}
			switch args[0] {
			case "legacy_usages":
				return printJSON(a.Legacy().Summary())
			case "demographic_fields":
				return printJSON(a.Demographics().Summary())
			}
			sc := a.Scanner(args[0])
			if sc == nil {
				return fmt.Errorf("unknown scanner %q", args[0])
			}
			if stats := sc.Statistics(); len(stats) > 0 {
				fmt.Fprintln(os.Stderr, termui.Header("Matches by category"))
				fmt.Fprintln(os.Stderr, termui.Counts(stats, 30))
			}
			return printJSON(sc.Summary())
		}),
	}

	schemaCmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the tables, columns and foreign keys of a SQLite database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			url := dsn
			if url == "" {
				cfg := loadConfig()
				dbCfg, err := schema.LoadConfig(cfg.Repo, filepath.Dir(cfgPath))
				if err != nil {
					return err
				}
				url = dbCfg.URL
			}
			insp, err := schema.Open(cmd.Context(), url)
			if err != nil {
				return err
			}
			defer insp.Close()

			tables, err := insp.Analyze(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(tables)
		},
	}
	schemaCmd.Flags().StringVar(&dsn, "dsn", "", "Database URL (defaults to DATABASE_URL or database.url in javalens.yaml)")

	root.AddCommand(structureCmd, umlCmd, relationsCmd, callgraphCmd, sequenceCmd, servicesCmd, scanCmd, schemaCmd)
}

type projectFunc func(cmd *cobra.Command, args []string, cfg *config.Config, p *project.Project) error

// withProject parses the configured repository before running fn and
// releases the syntax trees afterwards.
func withProject(fn projectFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		p, err := loadProject(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer p.Close()
		for _, d := range p.Diagnostics {
			fmt.Fprintln(os.Stderr, termui.Warn(fmt.Sprintf("%s:%d: %s", d.File, d.Line, d.Message)))
		}
		return fn(cmd, args, cfg, p)
	}
}

func loadProject(ctx context.Context, cfg *config.Config) (*project.Project, error) {
	root, err := filepath.Abs(cfg.Repo)
	if err != nil {
		return nil, fmt.Errorf("resolving repo path: %w", err)
	}
	sources, diags, err := project.Walk(root, project.WalkOptions{
		Ignore:      cfg.Ignore,
		TestMarkers: cfg.TestMarkers,
	})
	if err != nil {
		return nil, err
	}

	var opts []declarations.Option
	if cfg.AllFieldDeclarators {
		opts = append(opts, declarations.WithAllDeclarators())
	}
	p, err := project.NewAggregator(cfg.Workers, opts...).Aggregate(ctx, sources)
	if err != nil {
		return nil, err
	}
	p.Root = root
	p.Diagnostics = append(diags, p.Diagnostics...)
	return p, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
