// Package graph provides knowledge-graph store implementations: a
// process-local store for tests and demos, and a Neo4j backed store for
// deployments (graph/neo4j). Both enforce the mastery state machine on
// every write and key all mastery state by (student id, concept id): the
// curriculum graph is shared by every student, progress never is.
package graph

import (
	"sort"

	"github.com/mosaicedu/mosaic/core"
)

// EdgesAmong returns the prerequisite edges between the given nodes,
// derived from their Prereqs lists. Edge direction is prerequisite →
// dependent.
func EdgesAmong(nodes []core.ConceptNode) []core.Edge {
	present := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		present[n.ID] = true
	}
	var edges []core.Edge
	for _, n := range nodes {
		for _, p := range n.Prereqs {
			if present[p] {
				edges = append(edges, core.Edge{From: p, To: n.ID})
			}
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})
	return edges
}

// NextUnmastered picks the next concept to advance to: an unmastered node
// all of whose prerequisites are mastered, in prerequisite-graph
// topological order with a deterministic id tie-break. Returns nil when
// every reachable concept is mastered.
func NextUnmastered(nodes []core.ConceptNode, states map[string]core.MasteryState) *core.ConceptNode {
	byID := make(map[string]core.ConceptNode, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}

	mastered := func(id string) bool { return states[id] == core.MasteryMastered }

	for _, n := range topoOrder(nodes) {
		if mastered(n.ID) {
			continue
		}
		ready := true
		for _, p := range n.Prereqs {
			if _, ok := byID[p]; ok && !mastered(p) {
				ready = false
				break
			}
		}
		if ready {
			node := n
			return &node
		}
	}
	return nil
}

// topoOrder returns the nodes in prerequisite-first topological order using
// Kahn's algorithm with lexicographic id tie-breaks so the order is stable.
// Nodes on cycles (which ingestion should never produce) are appended last
// in id order rather than dropped.
func topoOrder(nodes []core.ConceptNode) []core.ConceptNode {
	byID := make(map[string]core.ConceptNode, len(nodes))
	indegree := make(map[string]int, len(nodes))
	dependents := make(map[string][]string, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
		indegree[n.ID] = 0
	}
	for _, n := range nodes {
		for _, p := range n.Prereqs {
			if _, ok := byID[p]; ok {
				indegree[n.ID]++
				dependents[p] = append(dependents[p], n.ID)
			}
		}
	}

	var ready []string
	for id, d := range indegree {
		if d == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	out := make([]core.ConceptNode, 0, len(nodes))
	seen := make(map[string]bool, len(nodes))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		seen[id] = true
		out = append(out, byID[id])
		for _, dep := range dependents[id] {
			indegree[dep]--
			if indegree[dep] == 0 {
				ready = insertSorted(ready, dep)
			}
		}
	}

	if len(out) < len(nodes) {
		var rest []string
		for id := range byID {
			if !seen[id] {
				rest = append(rest, id)
			}
		}
		sort.Strings(rest)
		for _, id := range rest {
			out = append(out, byID[id])
		}
	}
	return out
}

func insertSorted(ids []string, id string) []string {
	i := sort.SearchStrings(ids, id)
	ids = append(ids, "")
	copy(ids[i+1:], ids[i:])
	ids[i] = id
	return ids
}

// BuildView assembles a per-student visualization export: every node
// colored 1:1 from the student's mastery state, plus all prerequisite
// edges.
func BuildView(nodes []core.ConceptNode, states map[string]core.MasteryState) *core.GraphView {
	sorted := make([]core.ConceptNode, len(nodes))
	copy(sorted, nodes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	view := &core.GraphView{
		Nodes: make([]core.GraphViewNode, 0, len(sorted)),
		Edges: EdgesAmong(sorted),
	}
	for _, n := range sorted {
		st, ok := states[n.ID]
		if !ok {
			st = core.MasteryUnstudied
		}
		view.Nodes = append(view.Nodes, core.GraphViewNode{
			ID:        n.ID,
			Label:     n.Name,
			TopicArea: n.TopicArea,
			State:     st,
			Color:     st.Color(),
		})
	}
	return view
}
