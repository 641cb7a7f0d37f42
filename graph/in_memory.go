package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/mosaicedu/mosaic/core"
)

// InMemoryStore is a process-local GraphStore. The curriculum (nodes and
// prerequisite edges) is append-only once loaded; mastery state is a nested
// map keyed studentID → conceptID so students never see each other's
// progress. Safe for concurrent access.
type InMemoryStore struct {
	mu     sync.RWMutex
	nodes  map[string]core.ConceptNode           // conceptID -> node
	byName map[string][]string                   // lower(name) -> concept ids
	states map[string]map[string]core.MasteryState // studentID -> conceptID -> state
}

// NewInMemoryStore constructs an empty in-memory graph store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		nodes:  make(map[string]core.ConceptNode),
		byName: make(map[string][]string),
		states: make(map[string]map[string]core.MasteryState),
	}
}

// AddConcept appends a concept node to the curriculum. Duplicate ids are
// rejected; the graph is append-only from the core's side.
func (s *InMemoryStore) AddConcept(node core.ConceptNode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.nodes[node.ID]; exists {
		return fmt.Errorf("concept %q already ingested", node.ID)
	}
	node.Prereqs = append([]string(nil), node.Prereqs...)
	s.nodes[node.ID] = node
	key := strings.ToLower(node.Name)
	s.byName[key] = append(s.byName[key], node.ID)
	return nil
}

// Load appends a batch of concept nodes, stopping at the first duplicate.
func (s *InMemoryStore) Load(nodes []core.ConceptNode) error {
	for _, n := range nodes {
		if err := s.AddConcept(n); err != nil {
			return err
		}
	}
	return nil
}

// GetSubgraph implements core.GraphStore.
func (s *InMemoryStore) GetSubgraph(_ context.Context, conceptIDs []string) (*core.Subgraph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub := &core.Subgraph{}
	for _, id := range conceptIDs {
		node, ok := s.nodes[id]
		if !ok {
			return nil, fmt.Errorf("subgraph: %w: %s", core.ErrConceptNotFound, id)
		}
		sub.Nodes = append(sub.Nodes, node)
	}
	sort.Slice(sub.Nodes, func(i, j int) bool { return sub.Nodes[i].ID < sub.Nodes[j].ID })
	sub.Edges = EdgesAmong(sub.Nodes)
	return sub, nil
}

// GetState implements core.GraphStore. Concepts the student never touched
// report MasteryUnstudied.
func (s *InMemoryStore) GetState(_ context.Context, studentID, conceptID string) (core.MasteryState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.nodes[conceptID]; !ok {
		return "", fmt.Errorf("get state: %w: %s", core.ErrConceptNotFound, conceptID)
	}
	if st, ok := s.states[studentID][conceptID]; ok {
		return st, nil
	}
	return core.MasteryUnstudied, nil
}

// SetState implements core.GraphStore, rejecting transitions outside the
// mastery state machine. Same-state writes are accepted as no-ops.
func (s *InMemoryStore) SetState(_ context.Context, studentID, conceptID string, next core.MasteryState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.nodes[conceptID]; !ok {
		return fmt.Errorf("set state: %w: %s", core.ErrConceptNotFound, conceptID)
	}
	current := core.MasteryUnstudied
	if st, ok := s.states[studentID][conceptID]; ok {
		current = st
	}
	if !core.CanTransition(current, next) {
		return fmt.Errorf("set state %s: %w: %s -> %s", conceptID, core.ErrInvalidTransition, current, next)
	}
	if s.states[studentID] == nil {
		s.states[studentID] = make(map[string]core.MasteryState)
	}
	s.states[studentID][conceptID] = next
	return nil
}

// ResolveConcept implements core.GraphStore: case-insensitive name match,
// falling back to an exact id match. Multiple hits mean the name is
// ambiguous across topic areas.
func (s *InMemoryStore) ResolveConcept(_ context.Context, name string) ([]core.ConceptNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byName[strings.ToLower(strings.TrimSpace(name))]
	if len(ids) == 0 {
		if node, ok := s.nodes[name]; ok {
			return []core.ConceptNode{node}, nil
		}
		return nil, nil
	}
	matches := make([]core.ConceptNode, 0, len(ids))
	for _, id := range ids {
		matches = append(matches, s.nodes[id])
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].ID < matches[j].ID })
	return matches, nil
}

// Prerequisites implements core.GraphStore.
func (s *InMemoryStore) Prerequisites(_ context.Context, conceptID string) ([]core.ConceptNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	node, ok := s.nodes[conceptID]
	if !ok {
		return nil, fmt.Errorf("prerequisites: %w: %s", core.ErrConceptNotFound, conceptID)
	}
	out := make([]core.ConceptNode, 0, len(node.Prereqs))
	for _, p := range node.Prereqs {
		if pn, ok := s.nodes[p]; ok {
			out = append(out, pn)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// PrerequisiteChain implements core.GraphStore: breadth-first transitive
// prerequisites, nearest hops first, deduplicated.
func (s *InMemoryStore) PrerequisiteChain(_ context.Context, conceptID string) ([]core.ConceptNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start, ok := s.nodes[conceptID]
	if !ok {
		return nil, fmt.Errorf("prerequisite chain: %w: %s", core.ErrConceptNotFound, conceptID)
	}

	var chain []core.ConceptNode
	visited := map[string]bool{start.ID: true}
	frontier := append([]string(nil), start.Prereqs...)
	sort.Strings(frontier)
	for len(frontier) > 0 {
		var next []string
		for _, id := range frontier {
			if visited[id] {
				continue
			}
			visited[id] = true
			node, ok := s.nodes[id]
			if !ok {
				continue
			}
			chain = append(chain, node)
			next = append(next, node.Prereqs...)
		}
		sort.Strings(next)
		frontier = next
	}
	return chain, nil
}

// NextConcept implements core.GraphStore.
func (s *InMemoryStore) NextConcept(_ context.Context, studentID string) (*core.ConceptNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return NextUnmastered(s.allNodesLocked(), s.stateMapLocked(studentID)), nil
}

// Visualization implements core.GraphStore.
func (s *InMemoryStore) Visualization(_ context.Context, studentID string) (*core.GraphView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return BuildView(s.allNodesLocked(), s.stateMapLocked(studentID)), nil
}

func (s *InMemoryStore) allNodesLocked() []core.ConceptNode {
	nodes := make([]core.ConceptNode, 0, len(s.nodes))
	for _, n := range s.nodes {
		nodes = append(nodes, n)
	}
	return nodes
}

func (s *InMemoryStore) stateMapLocked(studentID string) map[string]core.MasteryState {
	states := make(map[string]core.MasteryState, len(s.states[studentID]))
	for k, v := range s.states[studentID] {
		states[k] = v
	}
	return states
}
