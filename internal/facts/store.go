package facts

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// Store keeps facts in memory, indexed by kind, file and name. It is safe
// for concurrent use.
type Store struct {
	mu    sync.RWMutex
	facts []Fact

	byKind map[string][]int
	byFile map[string][]int
	byName map[string][]int

	graph *Graph
}

// NewStore creates an empty fact store.
func NewStore() *Store {
	s := &Store{}
	s.reset()
	return s
}

func (s *Store) reset() {
	s.facts = nil
	s.byKind = make(map[string][]int)
	s.byFile = make(map[string][]int)
	s.byName = make(map[string][]int)
	s.graph = nil
}

// Add appends facts to the store.
func (s *Store) Add(ff ...Fact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range ff {
		i := len(s.facts)
		s.facts = append(s.facts, f)
		s.byKind[f.Kind] = append(s.byKind[f.Kind], i)
		if f.File != "" {
			s.byFile[f.File] = append(s.byFile[f.File], i)
		}
		if f.Name != "" {
			s.byName[f.Name] = append(s.byName[f.Name], i)
		}
	}
}

// Clear drops every fact and the derived graph.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}

// All returns a copy of every fact in insertion order.
func (s *Store) All() []Fact {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Fact, len(s.facts))
	copy(out, s.facts)
	return out
}

// Count returns the number of stored facts.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.facts)
}

// ByKind returns the facts of one kind.
func (s *Store) ByKind(kind string) []Fact {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(s.byKind[kind])
}

// ByName returns the facts with exactly the given name.
func (s *Store) ByName(name string) []Fact {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(s.byName[name])
}

// Classes returns every class fact.
func (s *Store) Classes() []Fact { return s.ByKind(KindClass) }

// Packages returns every package fact.
func (s *Store) Packages() []Fact { return s.ByKind(KindPackage) }

// ReverseLookup returns the facts holding a relation to target. An empty
// relKind matches any relation.
func (s *Store) ReverseLookup(target, relKind string) []Fact {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Fact
	for _, f := range s.facts {
		if hasRelation(f, relKind, target) {
			out = append(out, f)
		}
	}
	return out
}

// QueryOpts filters a Query. Values within one dimension are OR-combined;
// dimensions are AND-combined. Empty values match everything.
type QueryOpts struct {
	Kind       string
	Kinds      []string
	File       string
	FilePrefix string
	Name       string   // substring match
	Names      []string // exact matches
	RelKind    string
	Prop       string
	PropValue  string // requires Prop
	Offset     int
	Limit      int // 0 means 100; capped at 500
}

// Query returns the matching facts after offset and limit, together with the
// total number of matches.
func (s *Store) Query(opts QueryOpts) ([]Fact, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	kinds := toSet(append([]string{opts.Kind}, opts.Kinds...))
	names := toSet(opts.Names)

	candidates := s.facts
	if opts.File != "" {
		candidates = s.collect(s.byFile[opts.File])
	}

	var matched []Fact
	for _, f := range candidates {
		if kinds != nil {
			if _, ok := kinds[f.Kind]; !ok {
				continue
			}
		}
		if opts.FilePrefix != "" && !strings.HasPrefix(f.File, opts.FilePrefix) {
			continue
		}
		if opts.Name != "" || names != nil {
			_, exact := names[f.Name]
			if !exact && (opts.Name == "" || !strings.Contains(f.Name, opts.Name)) {
				continue
			}
		}
		if opts.RelKind != "" && !hasRelation(f, opts.RelKind, "") {
			continue
		}
		if opts.Prop != "" {
			v, ok := f.Props[opts.Prop]
			if !ok || (opts.PropValue != "" && fmt.Sprint(v) != opts.PropValue) {
				continue
			}
		}
		matched = append(matched, f)
	}

	total := len(matched)
	if opts.Offset > 0 {
		if opts.Offset >= len(matched) {
			return nil, total
		}
		matched = matched[opts.Offset:]
	}
	limit := opts.Limit
	switch {
	case limit <= 0:
		limit = 100
	case limit > 500:
		limit = 500
	}
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, total
}

// BuildGraph rebuilds the traversal graph from the current facts.
func (s *Store) BuildGraph() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.graph = NewGraph(s.facts)
}

// Graph returns the traversal graph, or nil before BuildGraph.
func (s *Store) Graph() *Graph {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graph
}

// WriteJSONL writes one JSON object per fact.
func (s *Store) WriteJSONL(w io.Writer) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	enc := json.NewEncoder(w)
	for _, f := range s.facts {
		if err := enc.Encode(f); err != nil {
			return fmt.Errorf("encoding fact %q: %w", f.Name, err)
		}
	}
	return nil
}

// WriteJSONLFile writes the facts to path.
func (s *Store) WriteJSONLFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()
	bw := bufio.NewWriter(f)
	if err := s.WriteJSONL(bw); err != nil {
		return err
	}
	return bw.Flush()
}

// ReadJSONL adds the facts read from r.
func (s *Store) ReadJSONL(r io.Reader) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var f Fact
		if err := json.Unmarshal(line, &f); err != nil {
			return fmt.Errorf("decoding fact: %w", err)
		}
		s.Add(f)
	}
	return sc.Err()
}

// ReadJSONLFile adds the facts stored in path.
func (s *Store) ReadJSONLFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	return s.ReadJSONL(f)
}

func (s *Store) collect(indices []int) []Fact {
	out := make([]Fact, 0, len(indices))
	for _, i := range indices {
		out = append(out, s.facts[i])
	}
	return out
}

func hasRelation(f Fact, kind, target string) bool {
	for _, r := range f.Relations {
		if (kind == "" || r.Kind == kind) && (target == "" || r.Target == target) {
			return true
		}
	}
	return false
}

func toSet(ss []string) map[string]struct{} {
	var set map[string]struct{}
	for _, s := range ss {
		if s == "" {
			continue
		}
		if set == nil {
			set = make(map[string]struct{})
		}
		set[s] = struct{}{}
	}
	return set
}
