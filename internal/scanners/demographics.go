package scanners

import (
	"strings"

	"github.com/dejo1307/javalens/internal/javaast"
)

// Usage kinds reported by DemographicsAnalyzer.
const (
	UsageField     = "Field"
	UsageParameter = "Parameter"
	UsageVariable  = "Variable"
)

const (
	noMethod = "N/A"
	unknown  = "Unknown"
)

// DemographicUsage is a declared variable whose name contains a demographic
// field fragment.
type DemographicUsage struct {
	FieldName  string `json:"field_name"`
	Category   string `json:"category"`
	FilePath   string `json:"file_path"`
	ClassName  string `json:"class_name"`
	MethodName string `json:"method_name"`
	UsageType  string `json:"usage_type"`
	Line       int    `json:"line"`
}

// CategoryUsages is the usages of one demographic category.
type CategoryUsages struct {
	Category string             `json:"category"`
	Usages   []DemographicUsage `json:"usages"`
}

// DemographicsAnalyzer checks field, parameter and local variable names.
type DemographicsAnalyzer struct {
	vocab  []FieldCategory
	usages []DemographicUsage
}

// NewDemographicsAnalyzer creates an analyzer for vocab; nil means the
// built-in DemographicFields.
func NewDemographicsAnalyzer(vocab []FieldCategory) *DemographicsAnalyzer {
	if vocab == nil {
		vocab = DemographicFields()
	}
	return &DemographicsAnalyzer{vocab: vocab}
}

// Analyze parses src and scans it.
func (a *DemographicsAnalyzer) Analyze(path, src string) error {
	unit, err := javaast.ParseString(src)
	if err != nil {
		return err
	}
	defer unit.Close()
	a.AnalyzeUnit(path, unit)
	return nil
}

// AnalyzeUnit scans fields first, then method parameters, then local
// variables. Only the first variable of a field statement is checked.
func (a *DemographicsAnalyzer) AnalyzeUnit(path string, unit *javaast.CompilationUnit) {
	decls, _ := unit.TypeDecls()
	for _, td := range decls {
		for _, f := range unit.Fields(td) {
			if len(f.Declarators) == 0 {
				continue
			}
			d := f.Declarators[0]
			a.check(d.Name, path, td.Name, noMethod, UsageField, d.Line)
		}
	}

	for p, n := range unit.Walk(javaast.KindMethodDecl) {
		m, ok := unit.Method(n)
		if !ok {
			continue
		}
		class := orUnknown(unit.EnclosingClass(p))
		for _, param := range m.Params {
			a.check(param.Name, path, class, m.Name, UsageParameter, param.Line)
		}
	}

	for p, n := range unit.Walk(javaast.KindLocalVarDecl) {
		class := orUnknown(unit.EnclosingClass(p))
		method := orUnknown(unit.EnclosingMethod(p))
		for _, d := range unit.Field(n).Declarators {
			a.check(d.Name, path, class, method, UsageVariable, d.Line)
		}
	}
}

// check records at most one usage per category: the first fragment of the
// category found in name decides.
func (a *DemographicsAnalyzer) check(name, path, class, method, usage string, line int) {
	lower := strings.ToLower(name)
	for _, c := range a.vocab {
		for _, f := range c.Fields {
			if !strings.Contains(lower, strings.ToLower(f)) {
				continue
			}
			a.usages = append(a.usages, DemographicUsage{
				FieldName:  name,
				Category:   c.Name,
				FilePath:   path,
				ClassName:  class,
				MethodName: method,
				UsageType:  usage,
				Line:       line,
			})
			break
		}
	}
}

func orUnknown(s string) string {
	if s == "" {
		return unknown
	}
	return s
}

// Usages returns every usage found since the last Reset.
func (a *DemographicsAnalyzer) Usages() []DemographicUsage {
	return append([]DemographicUsage(nil), a.usages...)
}

// Summary groups usages by category in vocabulary order, omitting categories
// without usages.
func (a *DemographicsAnalyzer) Summary() []CategoryUsages {
	var out []CategoryUsages
	for _, c := range a.vocab {
		var us []DemographicUsage
		for _, u := range a.usages {
			if u.Category == c.Name {
				us = append(us, u)
			}
		}
		if len(us) > 0 {
			out = append(out, CategoryUsages{Category: c.Name, Usages: us})
		}
	}
	return out
}

// Reset drops the accumulated usages.
func (a *DemographicsAnalyzer) Reset() {
	a.usages = nil
}
