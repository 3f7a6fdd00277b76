package facts

import (
	"bytes"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
)

func classFact(name, file string, rels ...Relation) Fact {
	return Fact{
		Kind:      KindClass,
		Name:      name,
		File:      file,
		Props:     map[string]any{"class_kind": "class"},
		Relations: rels,
	}
}

func TestAdd_IndexesKindFileAndName(t *testing.T) {
	s := NewStore()
	s.Add(classFact("Order", "src/Order.java"))

	if got := s.ByKind(KindClass); len(got) != 1 || got[0].Name != "Order" {
		t.Errorf("ByKind(class) = %v, want [Order]", got)
	}
	if got, _ := s.Query(QueryOpts{File: "src/Order.java"}); len(got) != 1 {
		t.Errorf("Query(file) = %v, want 1 fact", got)
	}
	if got := s.ByName("Order"); len(got) != 1 {
		t.Errorf("ByName = %v, want 1 fact", got)
	}
	if got := s.Classes(); len(got) != 1 {
		t.Errorf("Classes = %v, want 1 fact", got)
	}
}

func TestAdd_SkipsEmptyFileAndNameIndexes(t *testing.T) {
	s := NewStore()
	s.Add(Fact{Kind: KindPattern})

	if s.Count() != 1 {
		t.Fatalf("Count = %d, want 1", s.Count())
	}
	if got := s.collect(s.byFile[""]); len(got) != 0 {
		t.Errorf("byFile[\"\"] = %v, want none", got)
	}
	if got := s.ByName(""); len(got) != 0 {
		t.Errorf("ByName(\"\") = %v, want none", got)
	}
}

func TestClear(t *testing.T) {
	s := NewStore()
	s.Add(classFact("A", "a.java"), classFact("B", "b.java"))
	s.BuildGraph()
	s.Clear()

	if s.Count() != 0 {
		t.Errorf("Count after Clear = %d", s.Count())
	}
	if s.Graph() != nil {
		t.Error("Graph should be nil after Clear")
	}
	if got := s.ByKind(KindClass); len(got) != 0 {
		t.Errorf("ByKind after Clear = %v", got)
	}
}

func TestReverseLookup(t *testing.T) {
	s := NewStore()
	s.Add(
		classFact("Dog", "Dog.java", Relation{Kind: RelExtends, Target: "Animal"}),
		classFact("Cat", "Cat.java", Relation{Kind: RelExtends, Target: "Animal"}),
		classFact("Robot", "Robot.java", Relation{Kind: RelImplements, Target: "Animal"}),
	)

	if got := s.ReverseLookup("Animal", RelExtends); len(got) != 2 {
		t.Errorf("ReverseLookup(extends) = %d facts, want 2", len(got))
	}
	if got := s.ReverseLookup("Animal", ""); len(got) != 3 {
		t.Errorf("ReverseLookup(any) = %d facts, want 3", len(got))
	}
}

func TestQuery(t *testing.T) {
	s := NewStore()
	s.Add(
		classFact("OrderService", "svc/OrderService.java", Relation{Kind: RelAssociates, Target: "Order"}),
		classFact("Order", "model/Order.java"),
		Fact{Kind: KindMethod, Name: "OrderService.ship", File: "svc/OrderService.java", Props: map[string]any{"class": "OrderService"}},
		Fact{Kind: KindPackage, Name: "com.acme.svc"},
	)

	tests := []struct {
		name      string
		opts      QueryOpts
		wantNames []string
	}{
		{"kind", QueryOpts{Kind: KindClass}, []string{"OrderService", "Order"}},
		{"kinds", QueryOpts{Kinds: []string{KindMethod, KindPackage}}, []string{"OrderService.ship", "com.acme.svc"}},
		{"file prefix", QueryOpts{FilePrefix: "svc/"}, []string{"OrderService", "OrderService.ship"}},
		{"substring name", QueryOpts{Name: "Service"}, []string{"OrderService", "OrderService.ship"}},
		{"exact names", QueryOpts{Names: []string{"Order"}}, []string{"Order"}},
		{"relation", QueryOpts{RelKind: RelAssociates}, []string{"OrderService"}},
		{"prop", QueryOpts{Prop: "class", PropValue: "OrderService"}, []string{"OrderService.ship"}},
		{"prop value mismatch", QueryOpts{Prop: "class", PropValue: "Order"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, total := s.Query(tt.opts)
			if total != len(tt.wantNames) {
				t.Errorf("total = %d, want %d", total, len(tt.wantNames))
			}
			var names []string
			for _, f := range got {
				names = append(names, f.Name)
			}
			if fmt.Sprint(names) != fmt.Sprint(tt.wantNames) {
				t.Errorf("names = %v, want %v", names, tt.wantNames)
			}
		})
	}
}

func TestQuery_OffsetAndLimit(t *testing.T) {
	s := NewStore()
	for i := range 250 {
		s.Add(classFact(fmt.Sprintf("C%d", i), "x.java"))
	}

	got, total := s.Query(QueryOpts{})
	if total != 250 || len(got) != 100 {
		t.Errorf("default limit: len=%d total=%d", len(got), total)
	}
	got, _ = s.Query(QueryOpts{Offset: 240, Limit: 50})
	if len(got) != 10 || got[0].Name != "C240" {
		t.Errorf("offset: len=%d first=%v", len(got), got)
	}
	got, _ = s.Query(QueryOpts{Offset: 400})
	if got != nil {
		t.Errorf("offset past end = %v, want nil", got)
	}
}

func TestJSONLRoundTripPreservesOrder(t *testing.T) {
	s := NewStore()
	s.Add(
		classFact("A", "a.java", Relation{Kind: RelExtends, Target: "B"}),
		Fact{Kind: KindMethod, Name: "A.run", File: "a.java", Line: 7},
	)

	var buf bytes.Buffer
	if err := s.WriteJSONL(&buf); err != nil {
		t.Fatalf("WriteJSONL: %v", err)
	}
	loaded := NewStore()
	if err := loaded.ReadJSONL(&buf); err != nil {
		t.Fatalf("ReadJSONL: %v", err)
	}
	all := loaded.All()
	if len(all) != 2 || all[0].Name != "A" || all[1].Line != 7 {
		t.Fatalf("loaded = %+v", all)
	}
	if len(all[0].Relations) != 1 || all[0].Relations[0].Target != "B" {
		t.Errorf("relations = %+v", all[0].Relations)
	}
}

func TestJSONLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facts.jsonl")
	s := NewStore()
	s.Add(classFact("A", "a.java"))
	if err := s.WriteJSONLFile(path); err != nil {
		t.Fatalf("WriteJSONLFile: %v", err)
	}
	loaded := NewStore()
	if err := loaded.ReadJSONLFile(path); err != nil {
		t.Fatalf("ReadJSONLFile: %v", err)
	}
	if loaded.Count() != 1 {
		t.Errorf("Count = %d, want 1", loaded.Count())
	}
	if err := loaded.ReadJSONLFile(filepath.Join(t.TempDir(), "missing.jsonl")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestConcurrentAddAndRead(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := range 50 {
				s.Add(classFact(fmt.Sprintf("C%d_%d", i, j), "x.java"))
				_ = s.ByKind(KindClass)
			}
		}(i)
	}
	wg.Wait()
	if s.Count() != 400 {
		t.Errorf("Count = %d, want 400", s.Count())
	}
}

func TestDiagnosticString(t *testing.T) {
	tests := []struct {
		d    Diagnostic
		want string
	}{
		{Diagnostic{Message: "boom"}, "boom"},
		{Diagnostic{File: "A.java", Message: "unreadable"}, "A.java: unreadable"},
		{Diagnostic{File: "A.java", Line: 3, Message: "syntax error"}, "A.java:3: syntax error"},
	}
	for _, tt := range tests {
		if got := tt.d.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
