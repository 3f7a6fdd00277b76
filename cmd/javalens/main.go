package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dejo1307/javalens/internal/analyzers/scan"
	"github.com/dejo1307/javalens/internal/analyzers/servicemap"
	"github.com/dejo1307/javalens/internal/analyzers/structure"
	"github.com/dejo1307/javalens/internal/config"
	"github.com/dejo1307/javalens/internal/engine"
	"github.com/dejo1307/javalens/internal/explainers/cycles"
	"github.com/dejo1307/javalens/internal/explainers/layers"
	"github.com/dejo1307/javalens/internal/facts"
	"github.com/dejo1307/javalens/internal/renderers/plantuml"
	"github.com/dejo1307/javalens/internal/renderers/summary"
	"github.com/dejo1307/javalens/internal/server"
	"github.com/dejo1307/javalens/internal/termui"
)

var (
	cfgPath  string
	repoFlag string
)

var rootCmd = &cobra.Command{
	Use:   "javalens",
	Short: "Static analysis of Java code bases for humans and LLMs",
	Long: `javalens parses Java sources and derives packages, classes, methods,
relationships, call graphs, REST endpoints and legacy data usage from them.

Run without a subcommand to serve the analysis over MCP on stdio.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "javalens.yaml", "Path to configuration file")
	rootCmd.PersistentFlags().StringVarP(&repoFlag, "repo", "r", "", "Repository to analyze (overrides repo in the config)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Serve the analysis over MCP on stdio",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "generate",
		Short: "Generate a snapshot and write its artifacts",
		Args:  cobra.NoArgs,
		RunE:  runGenerate,
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("javalens v%s\n", server.Version)
		},
	})
	addAnalysisCommands(rootCmd)
}

func main() {
	// Ensure log output goes to stderr, never stdout (MCP uses stdout for JSON-RPC)
	log.SetOutput(os.Stderr)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, termui.Error(err))
		os.Exit(1)
	}
}

// loadConfig reads the config file, falling back to defaults when it is
// missing, and applies the --repo flag.
func loadConfig() *config.Config {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, termui.Warn(fmt.Sprintf("%v, using defaults", err)))
		cfg = config.Default()
	}
	if repoFlag != "" {
		cfg.Repo = repoFlag
	}
	return cfg
}

// newEngine creates an engine with every analyzer, explainer and renderer
// registered. The config decides which of them run.
func newEngine(cfg *config.Config) (*engine.Engine, error) {
	eng, err := engine.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating engine: %w", err)
	}

	eng.RegisterAnalyzer(structure.New())
	eng.RegisterAnalyzer(servicemap.New(cfg.ServiceName))
	sc, err := scan.New(vocabulary(cfg))
	if err != nil {
		return nil, fmt.Errorf("compiling scanner vocabulary: %w", err)
	}
	eng.RegisterAnalyzer(sc)

	eng.RegisterExplainer(cycles.New())
	eng.RegisterExplainer(layers.New())

	eng.RegisterRenderer(summary.New(cfg.Output.MaxSummaryTokens))
	eng.RegisterRenderer(plantuml.New(cfg.ServiceName))
	return eng, nil
}

func vocabulary(cfg *config.Config) scan.Vocabulary {
	return scan.Vocabulary{
		Demographic:       cfg.DemographicVocabulary(),
		Integration:       cfg.IntegrationVocabulary(),
		Legacy:            cfg.LegacySystems(),
		DemographicFields: cfg.DemographicFields(),
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	eng, err := newEngine(cfg)
	if err != nil {
		return err
	}
	defer eng.Close()

	// Load facts from a previous run so queries work before the first
	// generate_snapshot call. Syntax-tree tools still need a fresh snapshot.
	if repoPath, err := filepath.Abs(cfg.Repo); err == nil {
		factsPath := filepath.Join(outputDir(cfg, repoPath), "facts.jsonl")
		if _, err := os.Stat(factsPath); err == nil {
			log.Printf("[main] loading existing snapshot from %s", factsPath)
			if err := eng.Store().ReadJSONLFile(factsPath); err != nil {
				log.Printf("[main] warning: failed to load existing facts: %v", err)
			} else {
				eng.Store().BuildGraph()
				eng.SetSnapshot(&facts.Snapshot{
					Meta: facts.SnapshotMeta{RepoPath: repoPath},
				})
				log.Printf("[main] loaded %d facts from existing snapshot", eng.Store().Count())
			}
		}
	}

	srv, err := server.New(eng, cfg)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	return srv.Run(cmd.Context())
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	eng, err := newEngine(cfg)
	if err != nil {
		return err
	}
	defer eng.Close()

	repoPath, err := filepath.Abs(cfg.Repo)
	if err != nil {
		return fmt.Errorf("resolving repo path: %w", err)
	}

	snapshot, err := eng.GenerateSnapshot(cmd.Context(), repoPath)
	if err != nil {
		return fmt.Errorf("snapshot generation failed: %w", err)
	}
	if err := eng.WriteArtifacts(repoPath); err != nil {
		return fmt.Errorf("writing artifacts: %w", err)
	}

	outDir := outputDir(cfg, repoPath)

	const w = 12
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, termui.Title("Snapshot complete"))
	for _, kv := range [][2]string{
		{"Repository", snapshot.Meta.RepoPath},
		{"Files", fmt.Sprint(snapshot.Meta.FileCount)},
		{"Facts", fmt.Sprint(snapshot.Meta.FactCount)},
		{"Insights", fmt.Sprint(snapshot.Meta.InsightCount)},
		{"Diagnostics", fmt.Sprint(len(snapshot.Meta.Diagnostics))},
		{"Artifacts", fmt.Sprint(len(snapshot.Artifacts))},
		{"Duration", snapshot.Meta.Duration},
		{"Output", outDir},
	} {
		fmt.Fprintln(os.Stderr, termui.KeyValue(kv[0], kv[1], w))
	}

	kinds := make(map[string]int)
	for _, f := range snapshot.Facts {
		kinds[f.Kind]++
	}
	if len(kinds) > 0 {
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, termui.Header("Facts by kind"))
		fmt.Fprintln(os.Stderr, termui.Counts(kinds, 30))
	}
	return nil
}

func outputDir(cfg *config.Config, repoPath string) string {
	if filepath.IsAbs(cfg.Output.Dir) {
		return cfg.Output.Dir
	}
	return filepath.Join(repoPath, cfg.Output.Dir)
}
