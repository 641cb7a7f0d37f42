// Package neo4j implements core.GraphStore on a Neo4j database.
//
// Curriculum layout: (:Concept {id, name, topic_area}) nodes with
// (:Concept)-[:REQUIRES]->(:Concept) edges pointing from a concept to its
// prerequisite. Per-student mastery is a (:Student {id})-[:MASTERY
// {state}]->(:Concept) relationship, so two students studying the same
// concept never share state.
package neo4j

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v6/neo4j"

	"github.com/mosaicedu/mosaic/core"
	"github.com/mosaicedu/mosaic/graph"
)

// Options configure the Neo4j graph store.
type Options struct {
	URI      string
	Username string
	Password string
	Database string
}

// Store is a Neo4j backed core.GraphStore. Mastery transitions are
// validated inside the write transaction so a concurrent writer cannot
// slip an illegal edge past the check.
type Store struct {
	driver neo4j.Driver
	opts   Options
}

// NewStore connects to Neo4j and returns a graph store.
func NewStore(optFns ...func(o *Options)) (*Store, error) {
	opts := Options{
		URI:      "bolt://localhost:7687",
		Username: "neo4j",
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	driver, err := neo4j.NewDriver(opts.URI, neo4j.BasicAuth(opts.Username, opts.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("neo4j driver: %w", err)
	}
	return &Store{driver: driver, opts: opts}, nil
}

// NewStoreFromDriver wraps an existing driver.
func NewStoreFromDriver(driver neo4j.Driver, optFns ...func(o *Options)) *Store {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Store{driver: driver, opts: opts}
}

// Close releases the underlying driver.
func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func (s *Store) session(ctx context.Context, mode neo4j.AccessMode) neo4j.Session {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   mode,
		DatabaseName: s.opts.Database,
	})
}

// Ingest upserts a batch of concept nodes and their prerequisite edges.
// The graph is append-only from the tutoring core's side; this is the
// curriculum loader's entry point.
func (s *Store) Ingest(ctx context.Context, nodes []core.ConceptNode) error {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		for _, n := range nodes {
			_, err := tx.Run(ctx, `
				MERGE (c:Concept {id: $id})
				SET c.name = $name, c.topic_area = $topic_area
			`, map[string]interface{}{
				"id":         n.ID,
				"name":       n.Name,
				"topic_area": n.TopicArea,
			})
			if err != nil {
				return nil, fmt.Errorf("ingest concept %s: %w", n.ID, err)
			}
			for _, p := range n.Prereqs {
				_, err := tx.Run(ctx, `
					MATCH (c:Concept {id: $id})
					MERGE (p:Concept {id: $prereq})
					MERGE (c)-[:REQUIRES]->(p)
				`, map[string]interface{}{"id": n.ID, "prereq": p})
				if err != nil {
					return nil, fmt.Errorf("ingest edge %s->%s: %w", n.ID, p, err)
				}
			}
		}
		return nil, nil
	})
	return err
}

// GetSubgraph implements core.GraphStore.
func (s *Store) GetSubgraph(ctx context.Context, conceptIDs []string) (*core.Subgraph, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		nodes, err := readConcepts(ctx, tx, `
			MATCH (c:Concept)
			WHERE c.id IN $ids
			OPTIONAL MATCH (c)-[:REQUIRES]->(p:Concept)
			RETURN c, collect(p.id) AS prereqs
			ORDER BY c.id
		`, map[string]interface{}{"ids": conceptIDs})
		if err != nil {
			return nil, err
		}
		if len(nodes) < len(conceptIDs) {
			return nil, missingConcept(conceptIDs, nodes)
		}
		return &core.Subgraph{Nodes: nodes, Edges: graph.EdgesAmong(nodes)}, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*core.Subgraph), nil
}

// GetState implements core.GraphStore. A student with no MASTERY edge to
// the concept reads as unstudied.
func (s *Store) GetState(ctx context.Context, studentID, conceptID string) (core.MasteryState, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		return readState(ctx, tx, studentID, conceptID)
	})
	if err != nil {
		return "", err
	}
	return result.(core.MasteryState), nil
}

// SetState implements core.GraphStore. The current state is read and the
// transition validated inside the same write transaction.
func (s *Store) SetState(ctx context.Context, studentID, conceptID string, next core.MasteryState) error {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		current, err := readState(ctx, tx, studentID, conceptID)
		if err != nil {
			return nil, err
		}
		if !core.CanTransition(current, next) {
			return nil, fmt.Errorf("set state %s: %w: %s -> %s", conceptID, core.ErrInvalidTransition, current, next)
		}
		_, err = tx.Run(ctx, `
			MATCH (c:Concept {id: $concept_id})
			MERGE (s:Student {id: $student_id})
			MERGE (s)-[m:MASTERY]->(c)
			SET m.state = $state
		`, map[string]interface{}{
			"student_id": studentID,
			"concept_id": conceptID,
			"state":      string(next),
		})
		if err != nil {
			return nil, fmt.Errorf("write mastery %s/%s: %w", studentID, conceptID, err)
		}
		return nil, nil
	})
	return err
}

// ResolveConcept implements core.GraphStore: case-insensitive name match
// with an exact id fallback. No match returns an empty slice and a nil
// error; disambiguation is the caller's problem.
func (s *Store) ResolveConcept(ctx context.Context, name string) ([]core.ConceptNode, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		nodes, err := readConcepts(ctx, tx, `
			MATCH (c:Concept)
			WHERE toLower(c.name) = toLower(trim($name)) OR c.id = $name
			OPTIONAL MATCH (c)-[:REQUIRES]->(p:Concept)
			RETURN c, collect(p.id) AS prereqs
			ORDER BY c.id
		`, map[string]interface{}{"name": name})
		if err != nil {
			return nil, err
		}
		return nodes, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]core.ConceptNode), nil
}

// Prerequisites implements core.GraphStore.
func (s *Store) Prerequisites(ctx context.Context, conceptID string) ([]core.ConceptNode, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		if err := requireConcept(ctx, tx, conceptID); err != nil {
			return nil, err
		}
		return readConcepts(ctx, tx, `
			MATCH (:Concept {id: $id})-[:REQUIRES]->(c:Concept)
			OPTIONAL MATCH (c)-[:REQUIRES]->(p:Concept)
			RETURN c, collect(p.id) AS prereqs
			ORDER BY c.id
		`, map[string]interface{}{"id": conceptID})
	})
	if err != nil {
		return nil, err
	}
	return result.([]core.ConceptNode), nil
}

// PrerequisiteChain implements core.GraphStore: transitive prerequisites
// ordered nearest hop first, deduplicated by shortest path length.
func (s *Store) PrerequisiteChain(ctx context.Context, conceptID string) ([]core.ConceptNode, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		if err := requireConcept(ctx, tx, conceptID); err != nil {
			return nil, err
		}
		return readConcepts(ctx, tx, `
			MATCH path = (:Concept {id: $id})-[:REQUIRES*1..]->(c:Concept)
			WITH c, min(length(path)) AS depth
			OPTIONAL MATCH (c)-[:REQUIRES]->(p:Concept)
			RETURN c, collect(p.id) AS prereqs
			ORDER BY depth, c.id
		`, map[string]interface{}{"id": conceptID})
	})
	if err != nil {
		return nil, err
	}
	return result.([]core.ConceptNode), nil
}

// NextConcept implements core.GraphStore. The full curriculum plus the
// student's mastery edges are fetched and the topological walk runs
// client-side so the in-memory and Neo4j stores advance identically.
func (s *Store) NextConcept(ctx context.Context, studentID string) (*core.ConceptNode, error) {
	nodes, states, err := s.snapshot(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return graph.NextUnmastered(nodes, states), nil
}

// Visualization implements core.GraphStore.
func (s *Store) Visualization(ctx context.Context, studentID string) (*core.GraphView, error) {
	nodes, states, err := s.snapshot(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return graph.BuildView(nodes, states), nil
}

// snapshot fetches every concept node and the student's mastery map in a
// single read transaction.
func (s *Store) snapshot(ctx context.Context, studentID string) ([]core.ConceptNode, map[string]core.MasteryState, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	type snap struct {
		nodes  []core.ConceptNode
		states map[string]core.MasteryState
	}

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		nodes, err := readConcepts(ctx, tx, `
			MATCH (c:Concept)
			OPTIONAL MATCH (c)-[:REQUIRES]->(p:Concept)
			RETURN c, collect(p.id) AS prereqs
			ORDER BY c.id
		`, nil)
		if err != nil {
			return nil, err
		}

		res, err := tx.Run(ctx, `
			MATCH (:Student {id: $student_id})-[m:MASTERY]->(c:Concept)
			RETURN c.id AS id, m.state AS state
		`, map[string]interface{}{"student_id": studentID})
		if err != nil {
			return nil, err
		}
		states := make(map[string]core.MasteryState)
		for res.Next(ctx) {
			record := res.Record()
			id, _ := record.Get("id")
			raw, _ := record.Get("state")
			st, err := core.ParseMasteryState(raw.(string))
			if err != nil {
				return nil, fmt.Errorf("concept %v: %w", id, err)
			}
			states[id.(string)] = st
		}
		return snap{nodes: nodes, states: states}, nil
	})
	if err != nil {
		return nil, nil, err
	}
	sn := result.(snap)
	return sn.nodes, sn.states, nil
}

// readState reads a student's mastery state for one concept inside an
// open transaction, defaulting to unstudied.
func readState(ctx context.Context, tx neo4j.ManagedTransaction, studentID, conceptID string) (core.MasteryState, error) {
	if err := requireConcept(ctx, tx, conceptID); err != nil {
		return "", err
	}
	res, err := tx.Run(ctx, `
		MATCH (:Student {id: $student_id})-[m:MASTERY]->(:Concept {id: $concept_id})
		RETURN m.state AS state
	`, map[string]interface{}{"student_id": studentID, "concept_id": conceptID})
	if err != nil {
		return "", fmt.Errorf("read mastery %s/%s: %w", studentID, conceptID, err)
	}
	if res.Next(ctx) {
		raw, _ := res.Record().Get("state")
		return core.ParseMasteryState(raw.(string))
	}
	return core.MasteryUnstudied, nil
}

func requireConcept(ctx context.Context, tx neo4j.ManagedTransaction, conceptID string) error {
	res, err := tx.Run(ctx, `MATCH (c:Concept {id: $id}) RETURN c.id LIMIT 1`,
		map[string]interface{}{"id": conceptID})
	if err != nil {
		return fmt.Errorf("lookup concept %s: %w", conceptID, err)
	}
	if !res.Next(ctx) {
		return fmt.Errorf("%w: %s", core.ErrConceptNotFound, conceptID)
	}
	return nil
}

// readConcepts runs a query whose rows are (c, prereqs) and maps them to
// concept nodes.
func readConcepts(ctx context.Context, tx neo4j.ManagedTransaction, query string, params map[string]interface{}) ([]core.ConceptNode, error) {
	res, err := tx.Run(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("read concepts: %w", err)
	}
	var nodes []core.ConceptNode
	for res.Next(ctx) {
		record := res.Record()
		raw, _ := record.Get("c")
		cn := raw.(neo4j.Node)

		node := core.ConceptNode{ID: stringProp(cn, "id")}
		node.Name = stringProp(cn, "name")
		node.TopicArea = stringProp(cn, "topic_area")

		if rawPrereqs, ok := record.Get("prereqs"); ok && rawPrereqs != nil {
			for _, p := range rawPrereqs.([]interface{}) {
				if id, ok := p.(string); ok && id != "" {
					node.Prereqs = append(node.Prereqs, id)
				}
			}
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

func stringProp(n neo4j.Node, key string) string {
	if v, ok := n.Props[key].(string); ok {
		return v
	}
	return ""
}

func missingConcept(wanted []string, got []core.ConceptNode) error {
	have := make(map[string]bool, len(got))
	for _, n := range got {
		have[n.ID] = true
	}
	for _, id := range wanted {
		if !have[id] {
			return fmt.Errorf("subgraph: %w: %s", core.ErrConceptNotFound, id)
		}
	}
	return fmt.Errorf("subgraph: %w", core.ErrConceptNotFound)
}
