// Package logging provides a tiny abstraction over slog so the tutoring
// core can depend on a minimal interface (Logger) while allowing callers to
// plug any structured logger. It also offers a richer TutorLogger with
// contextual helpers (component, student, turn) and domain specific logging
// for agent invocations, model calls, routing decisions and mastery
// transitions.
package logging
