package scanners

import (
	"strings"

	"github.com/dejo1307/javalens/internal/javaast"
)

// Usage kinds reported by LegacyAnalyzer.
const (
	UsageEntity = "Entity Class"
	UsageJoin   = "JOIN"
	UsageSelect = "SELECT"
	UsageOther  = "Other"
)

// TableUsage is one reference to a legacy table.
type TableUsage struct {
	TableName  string `json:"table_name"`
	System     string `json:"system"`
	FilePath   string `json:"file_path"`
	ClassName  string `json:"class_name"`
	MethodName string `json:"method_name"`
	UsageType  string `json:"usage_type"`
	Line       int    `json:"line"`
}

// SystemUsages is the usages of one legacy system in discovery order.
type SystemUsages struct {
	System string       `json:"system"`
	Usages []TableUsage `json:"usages"`
}

// LegacyAnalyzer finds legacy tables through JPA entity mappings and SQL
// string literals inside method bodies.
type LegacyAnalyzer struct {
	systems []System
	usages  []TableUsage
}

// NewLegacyAnalyzer creates an analyzer for systems; nil means the built-in
// LegacySystems.
func NewLegacyAnalyzer(systems []System) *LegacyAnalyzer {
	if systems == nil {
		systems = LegacySystems()
	}
	return &LegacyAnalyzer{systems: systems}
}

// Analyze parses src and scans it.
func (a *LegacyAnalyzer) Analyze(path, src string) error {
	unit, err := javaast.ParseString(src)
	if err != nil {
		return err
	}
	defer unit.Close()
	a.AnalyzeUnit(path, unit)
	return nil
}

// AnalyzeUnit scans an already parsed unit.
func (a *LegacyAnalyzer) AnalyzeUnit(path string, unit *javaast.CompilationUnit) {
	decls, _ := unit.TypeDecls()
	for _, td := range decls {
		for _, m := range unit.Methods(td) {
			if m.Body == nil {
				continue
			}
			for p, lit := range javaast.Walk(m.Body, javaast.KindStringLiteral) {
				// Literals of local classes belong to their own methods.
				if p.EnclosingType() != nil {
					continue
				}
				a.checkSQL(unit.StringValue(lit), path, td.Name, m.Name, int(lit.StartPosition().Row)+1)
			}
		}
	}
	for _, td := range decls {
		if !td.Modifiers.HasAnnotation("Entity") {
			continue
		}
		table, ok := td.Modifiers.Annotation("Table")
		if !ok {
			continue
		}
		name := table.FirstValue("name")
		if name == "" {
			continue
		}
		if sys := a.systemOf(name); sys != "" {
			a.usages = append(a.usages, TableUsage{
				TableName:  name,
				System:     sys,
				FilePath:   path,
				ClassName:  td.Name,
				MethodName: "JPA Entity",
				UsageType:  UsageEntity,
				Line:       td.Line,
			})
		}
	}
}

func (a *LegacyAnalyzer) checkSQL(literal, path, class, method string, line int) {
	sql := strings.ToUpper(literal)
	usage := UsageOther
	switch {
	case strings.Contains(sql, "JOIN"):
		usage = UsageJoin
	case strings.Contains(sql, "SELECT"):
		usage = UsageSelect
	}
	for _, sys := range a.systems {
		for _, t := range sys.Tables {
			if !strings.Contains(sql, strings.ToUpper(t)) {
				continue
			}
			a.usages = append(a.usages, TableUsage{
				TableName:  t,
				System:     sys.Name,
				FilePath:   path,
				ClassName:  class,
				MethodName: method,
				UsageType:  usage,
				Line:       line,
			})
		}
	}
}

// systemOf returns the system owning a table name, matching on the known
// table prefixes case-insensitively.
func (a *LegacyAnalyzer) systemOf(table string) string {
	upper := strings.ToUpper(table)
	for _, sys := range a.systems {
		for _, t := range sys.Tables {
			if strings.HasPrefix(upper, strings.ToUpper(t)) {
				return sys.Name
			}
		}
	}
	return ""
}

// Usages returns every usage found since the last Reset.
func (a *LegacyAnalyzer) Usages() []TableUsage {
	return append([]TableUsage(nil), a.usages...)
}

// Summary groups usages by system, ordered by first discovery.
func (a *LegacyAnalyzer) Summary() []SystemUsages {
	var out []SystemUsages
	index := make(map[string]int)
	for _, u := range a.usages {
		i, ok := index[u.System]
		if !ok {
			i = len(out)
			index[u.System] = i
			out = append(out, SystemUsages{System: u.System})
		}
		out[i].Usages = append(out[i].Usages, u)
	}
	return out
}

// Reset drops the accumulated usages.
func (a *LegacyAnalyzer) Reset() {
	a.usages = nil
}
