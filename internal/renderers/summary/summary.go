package summary

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dejo1307/javalens/internal/facts"
	"github.com/dejo1307/javalens/internal/project"
)

// Renderer produces a compact markdown summary of a Java code base, sized
// for LLM context windows.
type Renderer struct {
	maxTokens int
}

// New creates a new Renderer with the given token budget.
func New(maxTokens int) *Renderer {
	if maxTokens <= 0 {
		maxTokens = 4000
	}
	return &Renderer{maxTokens: maxTokens}
}

func (r *Renderer) Name() string {
	return "summary"
}

// section holds a rendered section with its display name.
type section struct {
	name    string
	content string
}

// Render produces the summary.md artifact using progressive summarization.
// Sections are ordered by priority; lower-priority sections are omitted first
// when the token budget is tight.
func (r *Renderer) Render(ctx context.Context, snapshot *facts.Snapshot, p *project.Project) ([]facts.Artifact, error) {
	sections := []section{
		{"Packages", r.renderPackages(snapshot)},
		{"Architecture Pattern", r.renderArchPattern(snapshot)},
		{"Endpoints", r.renderEndpoints(snapshot)},
		{"Service Dependencies", r.renderServices(snapshot)},
		{"Critical Classes", r.renderCriticalClasses(snapshot)},
		{"Risk Zones", r.renderRiskZones(snapshot)},
		{"Legacy Tables", r.renderLegacyTables(snapshot)},
		{"Demographic Fields", r.renderDemographics(snapshot)},
		{"Diagnostics", r.renderDiagnostics(snapshot)},
		{"Meta", r.renderMeta(snapshot, p)},
	}

	header := "# Java Code Base Summary\n\n"
	maxChars := r.maxTokens * 4 // rough estimate: 1 token ~= 4 chars
	remaining := maxChars - len(header)

	var sb strings.Builder
	sb.WriteString(header)

	for i, sec := range sections {
		if sec.content == "" {
			continue
		}
		if len(sec.content) <= remaining {
			sb.WriteString(sec.content)
			remaining -= len(sec.content)
			continue
		}
		if remaining > 200 {
			// Partially include this section
			sb.WriteString(sec.content[:remaining-100])
			fmt.Fprintf(&sb, "\n\n---\n*[Truncated in: %s]*\n", sec.name)
			break
		}
		var omitted []string
		for _, s := range sections[i:] {
			if s.content != "" {
				omitted = append(omitted, s.name)
			}
		}
		fmt.Fprintf(&sb, "\n\n---\n*[Omitted: %s]*\n", strings.Join(omitted, ", "))
		break
	}

	return []facts.Artifact{
		{
			Name:    "summary.md",
			Content: []byte(sb.String()),
			Type:    "text/markdown",
		},
	}, nil
}

func (r *Renderer) renderPackages(snapshot *facts.Snapshot) string {
	var sb strings.Builder
	sb.WriteString("## Packages\n\n")

	packages := filterByKind(snapshot.Facts, facts.KindPackage)
	if len(packages) == 0 {
		sb.WriteString("_No packages detected._\n\n")
		return sb.String()
	}

	sort.Slice(packages, func(i, j int) bool {
		return packages[i].Name < packages[j].Name
	})

	sb.WriteString("| Package | Files | Classes |\n")
	sb.WriteString("|---------|-------|---------|\n")
	for _, pkg := range packages {
		fmt.Fprintf(&sb, "| `%s` | %v | %v |\n", pkg.Name, pkg.Props["files"], pkg.Props["classes"])
	}
	sb.WriteString("\n")
	return sb.String()
}

func (r *Renderer) renderArchPattern(snapshot *facts.Snapshot) string {
	var sb strings.Builder
	sb.WriteString("## Architecture Pattern\n\n")

	for _, insight := range snapshot.Insights {
		if !strings.HasPrefix(insight.Title, "Architecture pattern:") {
			continue
		}
		fmt.Fprintf(&sb, "**%s** (confidence: %.0f%%)\n\n", insight.Title, insight.Confidence*100)
		sb.WriteString(insight.Description + "\n\n")
		if len(insight.Evidence) > 0 {
			sb.WriteString("Layer mapping:\n")
			for _, ev := range insight.Evidence {
				fmt.Fprintf(&sb, "- %s\n", ev.Detail)
			}
			sb.WriteString("\n")
		}
		return sb.String()
	}

	sb.WriteString("_No specific architecture pattern detected._\n\n")
	return sb.String()
}

func (r *Renderer) renderEndpoints(snapshot *facts.Snapshot) string {
	endpoints := filterByKind(snapshot.Facts, facts.KindEndpoint)
	if len(endpoints) == 0 {
		return ""
	}

	sort.SliceStable(endpoints, func(i, j int) bool {
		si, _ := endpoints[i].Props["service"].(string)
		sj, _ := endpoints[j].Props["service"].(string)
		if si != sj {
			return si < sj
		}
		return endpoints[i].Name < endpoints[j].Name
	})

	var sb strings.Builder
	sb.WriteString("## Endpoints\n\n")
	sb.WriteString("| Service | Method | Path | Handler |\n")
	sb.WriteString("|---------|--------|------|---------|\n")
	for _, ep := range endpoints {
		fmt.Fprintf(&sb, "| %v | %v | `%v` | `%v.%v` |\n",
			ep.Props["service"], ep.Props["method"], ep.Props["path"], ep.Props["class"], ep.Props["handler"])
	}
	sb.WriteString("\n")
	return sb.String()
}

func (r *Renderer) renderServices(snapshot *facts.Snapshot) string {
	var edges []string
	for _, svc := range filterByKind(snapshot.Facts, facts.KindService) {
		for _, rel := range svc.Relations {
			if rel.Kind == facts.RelDependsOn {
				edges = append(edges, fmt.Sprintf("- `%s` -> `%s`", svc.Name, rel.Target))
			}
		}
	}
	if len(edges) == 0 {
		return ""
	}
	sort.Strings(edges)

	var sb strings.Builder
	sb.WriteString("## Service Dependencies\n\n")
	for _, e := range edges {
		sb.WriteString(e + "\n")
	}
	sb.WriteString("\n")
	return sb.String()
}

func (r *Renderer) renderCriticalClasses(snapshot *facts.Snapshot) string {
	classes := filterByKind(snapshot.Facts, facts.KindClass)
	known := make(map[string]bool, len(classes))
	for _, c := range classes {
		known[c.Name] = true
	}

	// Fan-in counts references from other classes, fan-out the distinct
	// relationship targets a class has.
	fanIn := make(map[string]int)
	fanOut := make(map[string]int)
	for _, c := range classes {
		for _, rel := range c.Relations {
			if rel.Kind == facts.RelDeclares || rel.Target == c.Name {
				continue
			}
			fanOut[c.Name]++
			if known[rel.Target] {
				fanIn[rel.Target]++
			}
		}
	}

	type classScore struct {
		Name   string
		FanIn  int
		FanOut int
		Score  int
	}

	var scored []classScore
	for name := range known {
		s := classScore{Name: name, FanIn: fanIn[name], FanOut: fanOut[name], Score: fanIn[name] + fanOut[name]}
		if s.Score > 0 {
			scored = append(scored, s)
		}
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Name < scored[j].Name
	})

	var sb strings.Builder
	sb.WriteString("## Critical Classes\n\n")
	if len(scored) == 0 {
		sb.WriteString("_No class relationships detected._\n\n")
		return sb.String()
	}

	sb.WriteString("| Class | Fan-In | Fan-Out | Criticality |\n")
	sb.WriteString("|-------|--------|---------|-------------|\n")
	for _, s := range scored[:min(10, len(scored))] {
		criticality := "low"
		if s.Score >= 10 {
			criticality = "high"
		} else if s.Score >= 5 {
			criticality = "medium"
		}
		fmt.Fprintf(&sb, "| `%s` | %d | %d | %s |\n", s.Name, s.FanIn, s.FanOut, criticality)
	}
	sb.WriteString("\n")
	return sb.String()
}

func (r *Renderer) renderRiskZones(snapshot *facts.Snapshot) string {
	var risks []string
	for _, insight := range snapshot.Insights {
		if strings.Contains(insight.Title, "Cyclic dependency") ||
			strings.Contains(insight.Title, "Layer violation") {
			risks = append(risks, fmt.Sprintf("- **%s** (confidence: %.0f%%): %s",
				insight.Title, insight.Confidence*100, insight.Description))
		}
	}
	if len(risks) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("## Risk Zones\n\n")
	for _, risk := range risks {
		sb.WriteString(risk + "\n")
	}
	sb.WriteString("\n")
	return sb.String()
}

func (r *Renderer) renderLegacyTables(snapshot *facts.Snapshot) string {
	usages := filterByKind(snapshot.Facts, facts.KindTableUsage)
	if len(usages) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("## Legacy Tables\n\n")
	sb.WriteString("| System | Table | Used By | Usage | Location |\n")
	sb.WriteString("|--------|-------|---------|-------|----------|\n")
	for _, u := range usages {
		fmt.Fprintf(&sb, "| %v | `%v` | `%s` | %v | `%s:%d` |\n",
			u.Props["system"], u.Props["table"], u.Name, u.Props["usage_type"], u.File, u.Line)
	}
	sb.WriteString("\n")
	return sb.String()
}

func (r *Renderer) renderDemographics(snapshot *facts.Snapshot) string {
	usages := filterByKind(snapshot.Facts, facts.KindDemographic)
	if len(usages) == 0 {
		return ""
	}

	byCategory := make(map[string][]string)
	var categories []string
	for _, u := range usages {
		cat, _ := u.Props["category"].(string)
		if _, ok := byCategory[cat]; !ok {
			categories = append(categories, cat)
		}
		byCategory[cat] = append(byCategory[cat], fmt.Sprintf("`%v.%s`", u.Props["class"], u.Name))
	}

	var sb strings.Builder
	sb.WriteString("## Demographic Fields\n\n")
	for _, cat := range categories {
		fmt.Fprintf(&sb, "- **%s** (%d): %s\n", cat, len(byCategory[cat]), strings.Join(byCategory[cat], ", "))
	}
	sb.WriteString("\n")
	return sb.String()
}

func (r *Renderer) renderDiagnostics(snapshot *facts.Snapshot) string {
	if len(snapshot.Meta.Diagnostics) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("## Diagnostics\n\n")
	for _, d := range snapshot.Meta.Diagnostics {
		sb.WriteString("- " + d.String() + "\n")
	}
	sb.WriteString("\n")
	return sb.String()
}

func (r *Renderer) renderMeta(snapshot *facts.Snapshot, p *project.Project) string {
	files := snapshot.Meta.FileCount
	if p != nil {
		files = len(p.Files)
	}
	var sb strings.Builder
	sb.WriteString("---\n\n")
	fmt.Fprintf(&sb, "*Generated at %s in %s. %d files, %d facts, %d insights.*\n",
		snapshot.Meta.GeneratedAt, snapshot.Meta.Duration,
		files, snapshot.Meta.FactCount, snapshot.Meta.InsightCount)
	return sb.String()
}

func filterByKind(ff []facts.Fact, kind string) []facts.Fact {
	var result []facts.Fact
	for _, f := range ff {
		if f.Kind == kind {
			result = append(result, f)
		}
	}
	return result
}
