// Package core defines the shared contracts of the tutoring orchestration
// system: the per-student session model, the concept-mastery state machine,
// and the store interfaces (knowledge graph, memory gateway, retrieval,
// sessions) that the orchestrator and the three teaching agents are built
// against. Implementations live in their own packages (graph, memory,
// retrieval, session) so that production backends and in-memory test doubles
// are interchangeable.
package core
