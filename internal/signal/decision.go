package signal

import (
	"encoding/json"
	"fmt"
)

// Decision is the classifier's verdict on a signal.
type Decision string

const (
	DecisionValidate Decision = "validate"
	DecisionDismiss  Decision = "dismiss"
	DecisionEscalate Decision = "escalate"
)

// TriageDecision is the structured outcome of one classification call.
// It is ephemeral: applied to the signal row, never persisted on its own.
type TriageDecision struct {
	Decision           Decision  `json:"decision"`
	Confidence         int       `json:"confidence"`
	Reasoning          string    `json:"reasoning"`
	PriorityAdjustment *Priority `json:"priority_adjustment,omitempty"`
	Footnote           *Footnote `json:"footnote,omitempty"`
}

// Footnote carries optional supporting detail from the classifier.
type Footnote struct {
	Summary           string   `json:"summary,omitempty"`
	MatchedIndicators []string `json:"matched_indicators,omitempty"`
	FilteredNoise     []string `json:"filtered_noise,omitempty"`
}

// ParseTriageDecision decodes and validates a provider's JSON content into a
// TriageDecision. Schema violations are errors: an unknown decision value or
// out-of-range confidence must trigger provider fallback, not be accepted as
// a partial object.
func ParseTriageDecision(content []byte) (*TriageDecision, error) {
	var d TriageDecision
	if err := json.Unmarshal(content, &d); err != nil {
		return nil, fmt.Errorf("decode decision: %w", err)
	}

	switch d.Decision {
	case DecisionValidate, DecisionDismiss, DecisionEscalate:
	default:
		return nil, fmt.Errorf("unknown decision %q", d.Decision)
	}

	if d.Confidence < 0 || d.Confidence > 100 {
		return nil, fmt.Errorf("confidence %d out of range 0..100", d.Confidence)
	}

	if d.PriorityAdjustment != nil && !d.PriorityAdjustment.Valid() {
		return nil, fmt.Errorf("unknown priority adjustment %q", *d.PriorityAdjustment)
	}

	return &d, nil
}
