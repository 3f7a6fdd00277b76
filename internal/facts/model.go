// Package facts holds the language-level facts produced by a javalens
// snapshot: the record types, an indexed in-memory store with JSONL
// persistence and a traversal graph over fact relations.
package facts

import "strconv"

// Fact is one structural fact about the analysed Java corpus.
type Fact struct {
	Kind      string         `json:"kind"`                // see the Kind constants
	Name      string         `json:"name"`                // canonical name, e.g. "com.acme.Order" or "Order.ship"
	File      string         `json:"file,omitempty"`      // source file relative to the repository root
	Line      int            `json:"line,omitempty"`      // 1-based line
	Props     map[string]any `json:"props,omitempty"`     // kind-specific properties
	Relations []Relation     `json:"relations,omitempty"` // outgoing edges
}

// Relation is a directed edge from a fact to another fact's name.
type Relation struct {
	Kind   string `json:"kind"`
	Target string `json:"target"`
}

// Fact kinds.
const (
	KindPackage     = "package"
	KindClass       = "class"
	KindMethod      = "method"
	KindEndpoint    = "endpoint"
	KindService     = "service"
	KindTableUsage  = "table_usage"
	KindPattern     = "pattern"
	KindDemographic = "demographic"
)

// Relation kinds. Inheritance, implementation, association and composition
// mirror the relationship graph edge kinds.
const (
	RelDeclares   = "declares"
	RelImports    = "imports"
	RelExtends    = "extends"
	RelImplements = "implements"
	RelAssociates = "associates"
	RelComposes   = "composes"
	RelCalls      = "calls"
	RelDependsOn  = "depends_on"
	RelUsesTable  = "uses_table"
)

// Diagnostic records a local recovery: a skipped declaration, an unreadable
// file or a unit that failed to parse. Nothing is dropped without one.
type Diagnostic struct {
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
	Message string `json:"message"`
}

func (d Diagnostic) String() string {
	switch {
	case d.File == "":
		return d.Message
	case d.Line > 0:
		return d.File + ":" + strconv.Itoa(d.Line) + ": " + d.Message
	default:
		return d.File + ": " + d.Message
	}
}

// Insight is an observation an explainer derives from the fact store.
type Insight struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Confidence  float64    `json:"confidence"` // 0.0 - 1.0
	Evidence    []Evidence `json:"evidence"`
	Actions     []string   `json:"suggested_actions,omitempty"`
}

// Evidence points an insight back at facts.
type Evidence struct {
	File   string `json:"file,omitempty"`
	Symbol string `json:"symbol,omitempty"`
	Fact   string `json:"fact,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// Artifact is a generated output file.
type Artifact struct {
	Name    string `json:"name"` // e.g. "summary.md", "classes.puml"
	Content []byte `json:"-"`
	Type    string `json:"type"` // MIME type hint
}

// Snapshot is the complete result of one analysis run.
type Snapshot struct {
	Meta      SnapshotMeta `json:"meta"`
	Facts     []Fact       `json:"facts"`
	Insights  []Insight    `json:"insights"`
	Artifacts []Artifact   `json:"artifacts"`
}

// SnapshotMeta describes a snapshot run.
type SnapshotMeta struct {
	RepoPath     string       `json:"repo_path"`
	GeneratedAt  string       `json:"generated_at"`
	Duration     string       `json:"duration"`
	Analyzers    []string     `json:"analyzers"`
	Explainers   []string     `json:"explainers"`
	Renderers    []string     `json:"renderers"`
	FileHashes   []FileHash   `json:"file_hashes,omitempty"`
	FileCount    int          `json:"file_count"`
	FactCount    int          `json:"fact_count"`
	InsightCount int          `json:"insight_count"`
	Diagnostics  []Diagnostic `json:"diagnostics,omitempty"`
}

// FileHash is the content hash of one analysed source file.
type FileHash struct {
	Path    string `json:"path"`
	Hash    string `json:"hash"`
	ModTime string `json:"mod_time"`
}
