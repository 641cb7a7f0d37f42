// Package orchestrator implements the routing core of the tutor: every
// student message enters here, is matched against a fixed priority of
// routing rules, and is dispatched to the solver, assessor or feedback
// agent. The priority is strict and deterministic; the LLM classifier is
// consulted only when no earlier rule matched.
//
// Rule order: assessment intent vocabulary, pending followup resolution,
// pending assessment answer, casual chat keywords, then the classifier
// deciding between a brief answer and small talk.
package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/mosaicedu/mosaic/agent"
	"github.com/mosaicedu/mosaic/core"
	"github.com/mosaicedu/mosaic/logging"
	"github.com/mosaicedu/mosaic/model"
)

// Options configure the orchestrator.
type Options struct {
	Logger logging.Logger
}

// Orchestrator routes student messages to the specialist agents and owns
// the session lifecycle for a turn: load, snapshot, dispatch, save. No
// lock is held while agents run; the session store hands out clones.
type Orchestrator struct {
	sessions   core.SessionStore
	graph      core.GraphStore
	solver     *agent.Solver
	assessor   *agent.Assessor
	feedback   *agent.Feedback
	classifier model.Model
	opts       Options
}

// New constructs an orchestrator over the given agents and stores. The
// classifier model is used only for routing decisions no keyword rule
// could make.
func New(sessions core.SessionStore, g core.GraphStore, solver *agent.Solver, assessor *agent.Assessor, feedback *agent.Feedback, classifier model.Model, optFns ...func(o *Options)) *Orchestrator {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Orchestrator{
		sessions:   sessions,
		graph:      g,
		solver:     solver,
		assessor:   assessor,
		feedback:   feedback,
		classifier: classifier,
		opts:       opts,
	}
}

// Reply is the tutor's response to one student message.
type Reply struct {
	Text      string `json:"text"`
	Agent     string `json:"agent"`
	ConceptID string `json:"concept_id,omitempty"`
	Rule      string `json:"rule"`
}

// HandleTurn processes one student message end to end.
//
// Clarification requests come back as *core.ClarificationError with the
// transcript already saved; they mutate no mastery state. Turn-fatal
// failures (core.ErrStateWrite, core.ErrUpstreamReasoning) abort before
// the session snapshot is saved.
func (o *Orchestrator) HandleTurn(ctx context.Context, studentID, message string) (*Reply, error) {
	sess, err := o.sessions.Get(studentID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	sess.AppendTurn(core.Turn{Role: "student", Text: message})

	reply, err := o.route(ctx, sess, message)
	if err != nil {
		if ce, ok := core.AsClarification(err); ok {
			sess.AppendTurn(core.Turn{Role: "tutor", Agent: "orchestrator", Text: ce.Prompt})
			if saveErr := o.sessions.Save(sess); saveErr != nil {
				return nil, fmt.Errorf("save session: %w", saveErr)
			}
		}
		return nil, err
	}

	sess.AppendTurn(core.Turn{Role: "tutor", Agent: reply.Agent, Text: reply.Text})
	if err := o.sessions.Save(sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return reply, nil
}

// Visualization exposes the per-student graph view for the API layer.
func (o *Orchestrator) Visualization(ctx context.Context, studentID string) (*core.GraphView, error) {
	return o.graph.Visualization(ctx, studentID)
}

// route applies the routing rules in strict priority order.
func (o *Orchestrator) route(ctx context.Context, sess *core.Session, message string) (*Reply, error) {
	if isAssessmentIntent(message) {
		o.opts.Logger.Info("routed message", "rule", ruleAssessment, "student", sess.StudentID)
		return o.assessmentFlow(ctx, sess, message)
	}
	if sess.PendingFollowup {
		if reply, handled, err := o.followupFlow(ctx, sess, message); handled {
			return reply, err
		}
		// The student changed topic; the offer lapses.
	}
	if sess.PendingQuestion != nil {
		o.opts.Logger.Info("routed message", "rule", ruleAnswer, "student", sess.StudentID)
		return o.answerFlow(ctx, sess, message)
	}
	if isCasual(message) {
		o.opts.Logger.Info("routed message", "rule", ruleCasual, "student", sess.StudentID)
		return o.casualFlow(ctx, message)
	}
	return o.classifierFlow(ctx, sess, message)
}

// assessmentFlow generates a question on the named concept, falling back
// to the concept the student is working on.
func (o *Orchestrator) assessmentFlow(ctx context.Context, sess *core.Session, message string) (*Reply, error) {
	concept, err := o.extractConcept(ctx, sess, message)
	if err != nil {
		return nil, err
	}
	if concept == nil {
		if sess.CurrentConcept == "" {
			return nil, &core.ClarificationError{
				Prompt: "Which concept would you like to be quizzed on?",
			}
		}
		concept, err = o.conceptByID(ctx, sess.CurrentConcept)
		if err != nil {
			return nil, fmt.Errorf("assessment flow: %w", err)
		}
	}

	q, err := o.assessor.GenerateQuestion(ctx, sess, *concept)
	if err != nil {
		return nil, err
	}
	sess.AskQuestion(q)
	sess.SetConcept(concept.ID)
	return &Reply{Text: q.Text, Agent: "assessor", ConceptID: concept.ID, Rule: ruleAssessment}, nil
}

// followupFlow resolves an open "want to know more?" offer. Returns
// handled=false when the message is neither a yes nor a no, in which case
// the offer is dropped and routing continues.
func (o *Orchestrator) followupFlow(ctx context.Context, sess *core.Session, message string) (*Reply, bool, error) {
	verdict := ""
	switch {
	case isShortReply(message) && isAffirmative(message):
		verdict = "yes"
	case isShortReply(message) && isNegative(message):
		verdict = "no"
	default:
		verdict = o.classifyFollowup(ctx, message)
	}

	switch verdict {
	case "yes":
		o.opts.Logger.Info("routed message", "rule", ruleFollowup, "student", sess.StudentID)
		conceptID := sess.ClearFollowup()
		concept, err := o.conceptByID(ctx, conceptID)
		if err != nil {
			return nil, true, fmt.Errorf("followup flow: %w", err)
		}
		reply, err := o.explain(ctx, sess, *concept)
		return reply, true, err
	case "no":
		o.opts.Logger.Info("routed message", "rule", ruleFollowup, "student", sess.StudentID)
		sess.ClearFollowup()
		return &Reply{
			Text:  "No problem. Ask me whenever you want to dig deeper.",
			Agent: "orchestrator",
			Rule:  ruleFollowup,
		}, true, nil
	default:
		sess.ClearFollowup()
		return nil, false, nil
	}
}

// classifyFollowup asks the classifier whether an ambiguous message
// accepts the pending offer. Any failure counts as "other" so routing
// falls through instead of failing the turn.
func (o *Orchestrator) classifyFollowup(ctx context.Context, message string) string {
	resp, err := model.GenerateWithFallback(ctx, o.classifier,
		model.Request{
			Instructions: "The tutor offered a deeper explanation. Does the student's message accept the offer? Reply with exactly YES, NO or OTHER.",
			Input:        message,
		},
		model.Request{
			Instructions: "Reply YES, NO or OTHER: is this message accepting an offer?",
			Input:        message,
		},
	)
	if err != nil {
		o.opts.Logger.Warn("followup classification failed", "error", err)
		return "other"
	}
	switch strings.ToUpper(strings.TrimSpace(resp.Text)) {
	case "YES":
		return "yes"
	case "NO":
		return "no"
	default:
		return "other"
	}
}

// answerFlow scores the outstanding question and applies the feedback
// verdict: advance offers the next concept, re-teach explains the target
// immediately.
func (o *Orchestrator) answerFlow(ctx context.Context, sess *core.Session, answer string) (*Reply, error) {
	q := sess.TakeQuestion()

	result, err := o.assessor.Score(ctx, sess, q, answer)
	if err != nil {
		return nil, err
	}
	d, err := o.feedback.Diagnose(ctx, sess, result)
	if err != nil {
		return nil, err
	}
	sess.SetConcept(result.ConceptID)

	switch d.Action {
	case core.ActionAdvance:
		if d.Target == "" {
			return &Reply{
				Text:      d.Feedback + "\n\nYou've worked through every concept I have. Ask me anything to review.",
				Agent:     "feedback",
				ConceptID: result.ConceptID,
				Rule:      ruleAnswer,
			}, nil
		}
		next, err := o.conceptByID(ctx, d.Target)
		if err != nil {
			return nil, fmt.Errorf("answer flow: %w", err)
		}
		sess.OfferFollowup(next.ID)
		return &Reply{
			Text:      fmt.Sprintf("%s\n\nNext up: %s. Want to start?", d.Feedback, next.Name),
			Agent:     "feedback",
			ConceptID: result.ConceptID,
			Rule:      ruleAnswer,
		}, nil
	default: // re-teach
		target, err := o.conceptByID(ctx, d.Target)
		if err != nil {
			return nil, fmt.Errorf("answer flow: %w", err)
		}
		exp, err := o.solver.Explain(ctx, sess, *target)
		if err != nil {
			return nil, err
		}
		sess.SetConcept(target.ID)
		return &Reply{
			Text:      d.Feedback + "\n\n" + exp.Text,
			Agent:     "feedback",
			ConceptID: target.ID,
			Rule:      ruleAnswer,
		}, nil
	}
}

// casualFlow handles small talk. The model makes it conversational; a
// dead model gets a canned line rather than a failed turn.
func (o *Orchestrator) casualFlow(ctx context.Context, message string) (*Reply, error) {
	resp, err := model.GenerateWithFallback(ctx, o.classifier,
		model.Request{
			Instructions: "You are a friendly tutor making small talk. Reply in one or two sentences and invite a question about the course.",
			Input:        message,
		},
		model.Request{
			Instructions: "Reply to this greeting in one friendly sentence.",
			Input:        message,
		},
	)
	text := "Hi! Ask me about any concept, or say \"quiz me\" when you feel ready."
	if err != nil {
		o.opts.Logger.Warn("casual reply generation failed", "error", err)
	} else {
		text = resp.Text
	}
	return &Reply{Text: text, Agent: "orchestrator", Rule: ruleCasual}, nil
}

// classifierFlow is the last resort: the classifier decides whether the
// message is a factual question (answered briefly, with a followup offer)
// or just chat.
func (o *Orchestrator) classifierFlow(ctx context.Context, sess *core.Session, message string) (*Reply, error) {
	resp, err := model.GenerateWithFallback(ctx, o.classifier,
		model.Request{
			Instructions: "Classify the student's message. Reply with exactly QUESTION if it asks about a topic or concept, or CHAT if it is small talk.",
			Input:        message,
		},
		model.Request{
			Instructions: "Reply QUESTION or CHAT.",
			Input:        message,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %w: %v", core.ErrUpstreamReasoning, err)
	}

	if strings.Contains(strings.ToUpper(resp.Text), "QUESTION") {
		o.opts.Logger.Info("routed message", "rule", ruleClassifier, "student", sess.StudentID, "kind", "question")
		return o.briefFlow(ctx, sess, message)
	}
	o.opts.Logger.Info("routed message", "rule", ruleClassifier, "student", sess.StudentID, "kind", "chat")
	return o.casualFlow(ctx, message)
}

// briefFlow answers a quick question without touching mastery state, and
// offers the full explanation when the question named a known concept.
func (o *Orchestrator) briefFlow(ctx context.Context, sess *core.Session, message string) (*Reply, error) {
	concept, err := o.extractConcept(ctx, sess, message)
	if err != nil {
		return nil, err
	}

	node := core.ConceptNode{}
	if concept != nil {
		node = *concept
	}
	text, err := o.solver.BriefAnswer(ctx, sess, node, message)
	if err != nil {
		return nil, err
	}

	reply := &Reply{Text: text, Agent: "solver", Rule: ruleClassifier}
	if concept != nil {
		sess.OfferFollowup(concept.ID)
		reply.ConceptID = concept.ID
		reply.Text = text + "\n\nWant a deeper explanation?"
	}
	return reply, nil
}

// explain runs a full teaching turn on the concept.
func (o *Orchestrator) explain(ctx context.Context, sess *core.Session, concept core.ConceptNode) (*Reply, error) {
	exp, err := o.solver.Explain(ctx, sess, concept)
	if err != nil {
		return nil, err
	}
	sess.SetConcept(concept.ID)
	return &Reply{Text: exp.Text, Agent: "solver", ConceptID: concept.ID, Rule: ruleFollowup}, nil
}
