package orchestrator

import (
	"context"
	"strings"

	"github.com/mosaicedu/mosaic/core"
)

// Routing rule names, in priority order. Logged with every decision.
const (
	ruleAssessment = "assessment_intent"
	ruleFollowup   = "followup"
	ruleAnswer     = "answer_flow"
	ruleCasual     = "casual"
	ruleClassifier = "classifier"
)

// assessmentPhrases trigger the assessment flow regardless of anything
// else in the message. Keyword matching runs before any model call so the
// routing priority is deterministic.
var assessmentPhrases = []string{
	"quiz me",
	"quiz",
	"test me",
	"assess",
	"check my understanding",
	"am i ready",
	"give me a question",
	"practice question",
	"exam",
}

var casualPhrases = []string{
	"hello",
	"hi",
	"hey",
	"thanks",
	"thank you",
	"bye",
	"goodbye",
	"how are you",
	"good morning",
	"good evening",
}

// affirmativeWords and negativeWords decide short replies to a pending
// followup offer without a model call. Longer messages carry their own
// intent ("sure, but first what is algebra?") and go to the classifier.
var affirmativeWords = []string{"yes", "yeah", "yep", "sure", "ok", "okay", "please", "go ahead", "why not"}

var negativeWords = []string{"no", "nope", "nah", "no thanks", "not now", "later", "maybe later"}

// maxKeywordReplyWords bounds the keyword fast path for followup offers.
const maxKeywordReplyWords = 3

func isShortReply(message string) bool {
	return len(strings.Fields(normalize(message))) <= maxKeywordReplyWords
}

func normalize(message string) string {
	cleaned := strings.ToLower(strings.TrimSpace(message))
	cleaned = strings.Map(func(r rune) rune {
		switch r {
		case '.', ',', ';', ':', '!', '?', '"', '\'', '(', ')', '[', ']':
			return ' '
		}
		return r
	}, cleaned)
	return strings.Join(strings.Fields(cleaned), " ")
}

func containsAny(message string, phrases []string) bool {
	padded := " " + normalize(message) + " "
	for _, p := range phrases {
		if strings.Contains(padded, " "+p+" ") {
			return true
		}
	}
	return false
}

func isAssessmentIntent(message string) bool {
	return containsAny(message, assessmentPhrases)
}

func isCasual(message string) bool {
	return containsAny(message, casualPhrases)
}

func isAffirmative(message string) bool {
	return containsAny(message, affirmativeWords)
}

func isNegative(message string) bool {
	return containsAny(message, negativeWords)
}

// maxConceptWords bounds the n-gram window scanned for concept names.
const maxConceptWords = 4

// extractConcept scans the message for a concept name known to the graph,
// longest n-grams first so "linear algebra" beats "algebra". Ambiguous
// matches are narrowed by the topic area of the current concept; if that
// fails, a ClarificationError carries the candidates back to the student.
// Returns nil with no error when the message names no known concept.
func (o *Orchestrator) extractConcept(ctx context.Context, sess *core.Session, message string) (*core.ConceptNode, error) {
	words := strings.Fields(normalize(message))
	max := maxConceptWords
	if len(words) < max {
		max = len(words)
	}
	for size := max; size >= 1; size-- {
		for start := 0; start+size <= len(words); start++ {
			candidate := strings.Join(words[start:start+size], " ")
			matches, err := o.graph.ResolveConcept(ctx, candidate)
			if err != nil {
				return nil, err
			}
			switch {
			case len(matches) == 1:
				return &matches[0], nil
			case len(matches) > 1:
				return o.disambiguate(ctx, sess, candidate, matches)
			}
		}
	}
	return nil, nil
}

// disambiguate narrows an ambiguous concept name using the topic area the
// student is already working in.
func (o *Orchestrator) disambiguate(ctx context.Context, sess *core.Session, name string, matches []core.ConceptNode) (*core.ConceptNode, error) {
	if sess.CurrentConcept != "" {
		current, err := o.conceptByID(ctx, sess.CurrentConcept)
		if err == nil && current != nil {
			var inArea []core.ConceptNode
			for _, m := range matches {
				if m.TopicArea == current.TopicArea {
					inArea = append(inArea, m)
				}
			}
			if len(inArea) == 1 {
				return &inArea[0], nil
			}
		}
	}

	areas := make([]string, 0, len(matches))
	for _, m := range matches {
		areas = append(areas, m.TopicArea)
	}
	return nil, &core.ClarificationError{
		Prompt: "\"" + name + "\" could mean a few things (" + strings.Join(areas, ", ") +
			"). Which one did you have in mind?",
		Candidates: matches,
	}
}

func (o *Orchestrator) conceptByID(ctx context.Context, conceptID string) (*core.ConceptNode, error) {
	sub, err := o.graph.GetSubgraph(ctx, []string{conceptID})
	if err != nil {
		return nil, err
	}
	if len(sub.Nodes) == 0 {
		return nil, core.ErrConceptNotFound
	}
	node := sub.Nodes[0]
	return &node, nil
}
