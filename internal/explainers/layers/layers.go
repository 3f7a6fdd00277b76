package layers

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dejo1307/javalens/internal/facts"
)

// LayerExplainer detects architectural patterns and layer violations.
type LayerExplainer struct{}

// New creates a new LayerExplainer.
func New() *LayerExplainer {
	return &LayerExplainer{}
}

func (e *LayerExplainer) Name() string {
	return "layers"
}

// layerDef defines how we detect architectural layers from package names
// and Spring stereotypes.
type layerDef struct {
	Name        string
	Patterns    []string
	Stereotypes []string
	Level       int // Lower level = inner/domain, higher = outer/infra
}

// Predefined layer patterns for common Java architectures.
var (
	// Classic Spring layering: controller -> service -> repository -> domain
	layeredLayers = []layerDef{
		{Name: "domain", Patterns: []string{"domain", "model", "models", "entity", "entities", "dto"}, Stereotypes: []string{"Entity", "Embeddable"}, Level: 0},
		{Name: "repository", Patterns: []string{"repository", "repositories", "dao", "persistence", "jpa"}, Stereotypes: []string{"Repository"}, Level: 1},
		{Name: "service", Patterns: []string{"service", "services", "business"}, Stereotypes: []string{"Service"}, Level: 2},
		{Name: "controller", Patterns: []string{"controller", "controllers", "web", "rest", "api", "resource", "resources"}, Stereotypes: []string{"RestController", "Controller"}, Level: 3},
	}

	// Hexagonal / Clean Architecture layers
	hexagonalLayers = []layerDef{
		{Name: "domain", Patterns: []string{"domain", "core"}, Level: 0},
		{Name: "application", Patterns: []string{"application", "usecase", "usecases"}, Level: 1},
		{Name: "port", Patterns: []string{"port", "ports"}, Level: 1},
		{Name: "adapter", Patterns: []string{"adapter", "adapters", "infrastructure", "infra", "gateway"}, Level: 2},
	}
)

// archPattern represents a detected architecture pattern with its confidence.
type archPattern struct {
	Name       string
	Confidence float64
	Layers     map[string]*layerDef
	Packages   map[string]string // package -> layer name
}

// Explain analyzes the fact store and detects architectural patterns.
func (e *LayerExplainer) Explain(ctx context.Context, store *facts.Store) ([]facts.Insight, error) {
	packages := store.Packages()
	if len(packages) == 0 {
		return nil, nil
	}

	patterns := e.detectPatterns(packages, stereotypes(store))

	var insights []facts.Insight
	if best := e.bestPattern(patterns); best != nil {
		names := make([]string, 0, len(best.Packages))
		for pkg := range best.Packages {
			names = append(names, pkg)
		}
		sort.Strings(names)
		evidence := make([]facts.Evidence, 0, len(names))
		for _, pkg := range names {
			evidence = append(evidence, facts.Evidence{
				Fact:   pkg,
				Detail: fmt.Sprintf("package %q maps to layer %q", pkg, best.Packages[pkg]),
			})
		}

		insights = append(insights, facts.Insight{
			Title:       fmt.Sprintf("Architecture pattern: %s", best.Name),
			Description: fmt.Sprintf("Detected %s architecture pattern with %.0f%% confidence. Found %d layers with %d classified packages.", best.Name, best.Confidence*100, len(best.Layers), len(best.Packages)),
			Confidence:  best.Confidence,
			Evidence:    evidence,
			Actions: []string{
				"Ensure new code follows the detected layer structure",
				"Review cross-layer dependencies for violations",
			},
		})

		insights = append(insights, e.detectViolations(packages, best)...)
	}

	return insights, nil
}

// stereotypes maps each package to the annotations of the classes it
// declares.
func stereotypes(store *facts.Store) map[string][]string {
	out := make(map[string][]string)
	for _, c := range store.Classes() {
		pkg, _ := c.Props["package"].(string)
		if pkg == "" {
			continue
		}
		switch anns := c.Props["annotations"].(type) {
		case []string:
			out[pkg] = append(out[pkg], anns...)
		case []any:
			for _, a := range anns {
				if s, ok := a.(string); ok {
					out[pkg] = append(out[pkg], s)
				}
			}
		}
	}
	return out
}

func (e *LayerExplainer) detectPatterns(packages []facts.Fact, annotations map[string][]string) []*archPattern {
	var patterns []*archPattern

	for _, def := range []struct {
		name   string
		layers []layerDef
	}{
		{"layered", layeredLayers},
		{"hexagonal", hexagonalLayers},
	} {
		pattern := &archPattern{
			Name:     def.name,
			Layers:   make(map[string]*layerDef),
			Packages: make(map[string]string),
		}

		matchCount := 0
		for _, pkg := range packages {
			if i := classify(pkg.Name, annotations[pkg.Name], def.layers); i >= 0 {
				layer := &def.layers[i]
				pattern.Layers[layer.Name] = layer
				pattern.Packages[pkg.Name] = layer.Name
				matchCount++
			}
		}

		if matchCount > 0 {
			// Confidence based on how many packages are classified
			coverage := float64(matchCount) / float64(len(packages))
			// Also factor in how many distinct layers are matched
			layerCoverage := float64(len(pattern.Layers)) / float64(len(def.layers))

			pattern.Confidence = min(coverage*0.6+layerCoverage*0.4, 1.0)

			// Minimum threshold
			if pattern.Confidence >= 0.2 && len(pattern.Layers) >= 2 {
				patterns = append(patterns, pattern)
			}
		}
	}

	return patterns
}

// classify returns the index of the layer a package belongs to, or -1. The
// package name wins over the stereotypes of its classes.
func classify(pkg string, annotations []string, layers []layerDef) int {
	for i, layer := range layers {
		if matchesLayer(pkg, layer.Patterns) {
			return i
		}
	}
	for i, layer := range layers {
		for _, s := range layer.Stereotypes {
			for _, a := range annotations {
				if a == s {
					return i
				}
			}
		}
	}
	return -1
}

func (e *LayerExplainer) bestPattern(patterns []*archPattern) *archPattern {
	if len(patterns) == 0 {
		return nil
	}

	best := patterns[0]
	for _, p := range patterns[1:] {
		if p.Confidence > best.Confidence {
			best = p
		}
	}
	return best
}

// detectViolations checks for layer boundary violations (inner layer importing outer layer).
func (e *LayerExplainer) detectViolations(packages []facts.Fact, pattern *archPattern) []facts.Insight {
	var insights []facts.Insight
	known := make(map[string]bool, len(packages))
	for _, p := range packages {
		known[p.Name] = true
	}

	for _, pkg := range packages {
		sourceLayer, ok := pattern.Packages[pkg.Name]
		if !ok {
			continue
		}
		reported := make(map[string]bool)

		for _, rel := range pkg.Relations {
			if rel.Kind != facts.RelImports {
				continue
			}
			target := importedPackage(rel.Target, known)
			targetLayer, ok := pattern.Packages[target]
			if !ok || reported[target] {
				continue
			}

			sourceDef := pattern.Layers[sourceLayer]
			targetDef := pattern.Layers[targetLayer]
			if sourceDef.Level < targetDef.Level {
				reported[target] = true
				insights = append(insights, facts.Insight{
					Title: fmt.Sprintf("Layer violation: %s -> %s", sourceLayer, targetLayer),
					Description: fmt.Sprintf(
						"Package %q (layer: %s, level %d) imports package %q (layer: %s, level %d). "+
							"Inner layers should not depend on outer layers.",
						pkg.Name, sourceLayer, sourceDef.Level,
						target, targetLayer, targetDef.Level,
					),
					Confidence: 0.8,
					Evidence: []facts.Evidence{
						{Fact: pkg.Name, Detail: fmt.Sprintf("import of %s", rel.Target)},
					},
					Actions: []string{
						"Introduce an interface in the inner layer",
						"Move shared types to a common package",
						"Invert the dependency using dependency injection",
					},
				})
			}
		}
	}

	return insights
}

// matchesLayer checks if any segment of a package name equals one of the
// given patterns.
func matchesLayer(pkg string, patterns []string) bool {
	parts := strings.FieldsFunc(strings.ToLower(pkg), func(r rune) bool { return r == '.' || r == '/' })
	for _, part := range parts {
		for _, pattern := range patterns {
			if part == pattern {
				return true
			}
		}
	}
	return false
}

// importedPackage returns the analysed package an import refers to, or "".
func importedPackage(imp string, known map[string]bool) string {
	name := strings.TrimSuffix(imp, ".*")
	if name != imp && known[name] {
		return name
	}
	for {
		i := strings.LastIndexByte(name, '.')
		if i < 0 {
			return ""
		}
		name = name[:i]
		if known[name] {
			return name
		}
	}
}
