package summary

import (
	"context"
	"strings"
	"testing"

	"github.com/dejo1307/javalens/internal/facts"
)

func makeSnapshot(ff []facts.Fact, insights []facts.Insight) *facts.Snapshot {
	return &facts.Snapshot{
		Meta: facts.SnapshotMeta{
			GeneratedAt:  "2024-01-01T00:00:00Z",
			Duration:     "1s",
			FactCount:    len(ff),
			InsightCount: len(insights),
		},
		Facts:    ff,
		Insights: insights,
	}
}

func render(t *testing.T, r *Renderer, snapshot *facts.Snapshot) string {
	t.Helper()
	artifacts, err := r.Render(context.Background(), snapshot, nil)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(artifacts) != 1 || artifacts[0].Name != "summary.md" {
		t.Fatalf("expected a single summary.md artifact, got %+v", artifacts)
	}
	return string(artifacts[0].Content)
}

func section(content, heading string) string {
	i := strings.Index(content, heading)
	if i < 0 {
		return ""
	}
	rest := content[i+len(heading):]
	if j := strings.Index(rest, "\n## "); j >= 0 {
		rest = rest[:j]
	}
	return rest
}

func TestTokenBudgetEnforcement(t *testing.T) {
	var ff []facts.Fact
	for i := 0; i < 50; i++ {
		ff = append(ff, facts.Fact{
			Kind:  facts.KindPackage,
			Name:  strings.Repeat("com.acme.", 5) + string(rune('a'+i%26)),
			Props: map[string]any{"files": 1, "classes": 2},
		})
	}

	// 100 tokens = 400 chars
	content := render(t, New(100), makeSnapshot(ff, nil))
	if !strings.Contains(content, "[Truncated in: Packages]") {
		t.Error("expected truncation marker in output")
	}
	if len(content) > 100*4+50 {
		t.Errorf("content length %d exceeds budget", len(content))
	}
}

func TestOmittedSections(t *testing.T) {
	ff := []facts.Fact{{Kind: facts.KindPackage, Name: strings.Repeat("p", 300), Props: map[string]any{}}}
	// 120 tokens = 480 chars; the package table fits, later sections do not.
	content := render(t, New(120), makeSnapshot(ff, nil))
	if !strings.Contains(content, "*[Omitted: Architecture Pattern") {
		t.Errorf("expected omitted marker, got:\n%s", content)
	}
}

func TestRender_EmptySnapshot(t *testing.T) {
	content := render(t, New(4000), makeSnapshot(nil, nil))
	for _, want := range []string{
		"# Java Code Base Summary",
		"_No packages detected._",
		"_No specific architecture pattern detected._",
		"_No class relationships detected._",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("expected %q in output", want)
		}
	}
	if strings.Contains(content, "## Endpoints") {
		t.Error("empty endpoint section should be skipped")
	}
}

func TestRiskZones_IncludesCyclesAndViolations(t *testing.T) {
	insights := []facts.Insight{
		{Title: "Architecture pattern: layered", Confidence: 0.8, Description: "Detected layered"},
		{Title: "Cyclic dependency detected (3 packages)", Confidence: 1.0, Description: "a -> b -> c -> a"},
		{Title: "Layer violation: domain -> controller", Confidence: 0.8, Description: "model imports web"},
	}
	content := render(t, New(4000), makeSnapshot(nil, insights))

	risks := section(content, "## Risk Zones")
	if !strings.Contains(risks, "Cyclic dependency") || !strings.Contains(risks, "Layer violation") {
		t.Errorf("expected cycle and violation in Risk Zones, got %q", risks)
	}
	if strings.Contains(risks, "Architecture pattern") {
		t.Error("Architecture pattern insight should NOT appear in Risk Zones")
	}
	if !strings.Contains(section(content, "## Architecture Pattern"), "Architecture pattern: layered") {
		t.Error("expected pattern in its own section")
	}
}

func TestCriticalClasses_FanInFanOut(t *testing.T) {
	ff := []facts.Fact{{Kind: facts.KindClass, Name: "Order"}}
	for _, src := range []string{"Cart", "Invoice", "Shipment"} {
		ff = append(ff, facts.Fact{
			Kind: facts.KindClass,
			Name: src,
			Relations: []facts.Relation{
				{Kind: facts.RelDeclares, Target: "com.acme"},
				{Kind: facts.RelAssociates, Target: "Order"},
			},
		})
	}
	content := render(t, New(4000), makeSnapshot(ff, nil))
	if !strings.Contains(content, "| `Order` | 3 | 0 | low |") {
		t.Errorf("expected Order with fan-in 3, got:\n%s", section(content, "## Critical Classes"))
	}
}

func TestEndpointsServicesAndScanners(t *testing.T) {
	ff := []facts.Fact{
		{Kind: facts.KindEndpoint, Name: "GET /orders/{id}", Props: map[string]any{
			"service": "orders", "method": "GET", "path": "/orders/{id}", "class": "OrderController", "handler": "get",
		}},
		{Kind: facts.KindService, Name: "orders", Relations: []facts.Relation{{Kind: facts.RelDependsOn, Target: "billing"}}},
		{Kind: facts.KindTableUsage, Name: "Repo.load", File: "Repo.java", Line: 4, Props: map[string]any{
			"system": "CRPS", "table": "CRPS_CUSTOMER", "usage_type": "SELECT",
		}},
		{Kind: facts.KindDemographic, Name: "homeAddress", Props: map[string]any{"category": "Address", "class": "Customer"}},
	}
	content := render(t, New(4000), makeSnapshot(ff, nil))

	for _, want := range []string{
		"| orders | GET | `/orders/{id}` | `OrderController.get` |",
		"- `orders` -> `billing`",
		"| CRPS | `CRPS_CUSTOMER` | `Repo.load` | SELECT | `Repo.java:4` |",
		"- **Address** (1): `Customer.homeAddress`",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("expected %q in output", want)
		}
	}
}

func TestDiagnostics(t *testing.T) {
	snapshot := makeSnapshot(nil, nil)
	snapshot.Meta.Diagnostics = []facts.Diagnostic{{File: "Bad.java", Line: 3, Message: "syntax error"}}
	content := render(t, New(4000), snapshot)
	if !strings.Contains(content, "- Bad.java:3: syntax error") {
		t.Error("expected diagnostic line")
	}
}
