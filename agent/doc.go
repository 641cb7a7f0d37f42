// Package agent implements the specialist tutoring agents coordinated by
// the orchestrator: the solver (explanations), the assessor (question
// generation and scoring) and the feedback agent (diagnosis and mastery
// verdicts). Agents are stateless between calls; everything durable lives
// in the knowledge graph, the memory gateway and the session store.
//
// Agents share a common failure contract. LLM calls are retried once with
// a simplified prompt and then surface core.ErrUpstreamReasoning.
// Knowledge-graph mastery writes are never retried; a failed write
// surfaces core.ErrStateWrite and aborts the turn. Retrieval failures
// degrade the answer instead of failing it.
package agent
