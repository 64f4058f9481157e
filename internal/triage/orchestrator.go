package triage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/sentinel/internal/signal"
)

var tracer = otel.Tracer("github.com/linnemanlabs/sentinel/internal/triage")

const (
	// MaxBatchSize bounds one orchestrator invocation.
	MaxBatchSize = 100

	// DefaultBatchSize applies when the caller omits or botches the size.
	DefaultBatchSize = 50

	// DefaultThrottle is the fixed delay before each classification call.
	// It bounds the outbound request rate to providers; it is not a
	// concurrency mechanism.
	DefaultThrottle = 200 * time.Millisecond

	// autoTriageActor stamps validated_by on the automated path.
	autoTriageActor = "auto-triage"
)

// Classifier is what the orchestrator needs from the Classifier Gateway. The
// decision is always usable; a non-nil error marks a degraded decision (safe
// default after total provider failure) that still gets applied but counts
// toward the batch's errors.
type Classifier interface {
	Classify(ctx context.Context, sig *signal.Signal) (*signal.TriageDecision, error)
}

// BatchParams selects and bounds one triage batch.
type BatchParams struct {
	Size       int
	Priorities []signal.Priority
}

// Outcome records what happened to one signal, kept for observability and
// tests; HTTP callers only see the aggregate counts.
type Outcome struct {
	SignalID string
	Decision signal.Decision
	Err      error
}

// BatchResult aggregates one orchestrator invocation. The counts are
// descriptive, not atomic: each signal is mutated with its own statement.
type BatchResult struct {
	Validated int `json:"validated"`
	Dismissed int `json:"dismissed"`
	Escalated int `json:"escalated"`
	Errors    int `json:"errors"`

	Outcomes []Outcome `json:"-"`
}

// Orchestrator runs automated triage batches against the primary store.
type Orchestrator struct {
	store      signal.Store
	classifier Classifier
	logger     log.Logger
	metrics    *Metrics

	// throttle is overridable so tests run without the delay.
	throttle time.Duration
}

// NewOrchestrator creates an orchestrator. metrics may be nil.
func NewOrchestrator(store signal.Store, classifier Classifier, logger log.Logger, metrics *Metrics) *Orchestrator {
	if logger == nil {
		logger = log.Nop()
	}
	return &Orchestrator{
		store:      store,
		classifier: classifier,
		logger:     logger,
		metrics:    metrics,
		throttle:   DefaultThrottle,
	}
}

// ClampBatchSize clamps n to [1, MaxBatchSize], substituting
// DefaultBatchSize for absent or invalid values.
func ClampBatchSize(n int) int {
	if n <= 0 {
		return DefaultBatchSize
	}
	if n > MaxBatchSize {
		return MaxBatchSize
	}
	return n
}

// RunBatch selects up to the clamped batch size of new signals (priority
// ascending, newest first within a priority), classifies them strictly
// sequentially, and applies each decision. A single signal's failure is
// counted and the batch continues; only the initial selection can fail the
// whole invocation.
func (o *Orchestrator) RunBatch(ctx context.Context, params BatchParams) (*BatchResult, error) {
	size := ClampBatchSize(params.Size)

	ctx, span := tracer.Start(ctx, "triage.RunBatch")
	defer span.End()
	span.SetAttributes(attribute.Int("sentinel.triage.batch_size", size))

	start := time.Now()

	sigs, err := o.store.ListNew(ctx, params.Priorities, size)
	if err != nil {
		return nil, fmt.Errorf("select batch: %w", err)
	}

	L := o.logger.With("batch_size", size, "selected", len(sigs))
	L.Info(ctx, "triage batch selected")

	res := &BatchResult{}
	for _, sig := range sigs {
		if err := o.sleep(ctx, o.throttle); err != nil {
			// Enclosing invocation timed out; unprocessed signals stay new
			// and are re-selected by the next run.
			L.Warn(ctx, "batch stopped early", "error", err, "processed", len(res.Outcomes))
			break
		}

		outcome := o.processOne(ctx, sig)
		res.Outcomes = append(res.Outcomes, outcome)

		switch {
		case outcome.Err != nil:
			res.Errors++
		case outcome.Decision == signal.DecisionValidate:
			res.Validated++
		case outcome.Decision == signal.DecisionDismiss:
			res.Dismissed++
		case outcome.Decision == signal.DecisionEscalate:
			res.Escalated++
		}
	}

	if o.metrics != nil {
		o.metrics.ObserveBatch(res, time.Since(start).Seconds())
	}

	span.SetAttributes(
		attribute.Int("sentinel.triage.validated", res.Validated),
		attribute.Int("sentinel.triage.dismissed", res.Dismissed),
		attribute.Int("sentinel.triage.escalated", res.Escalated),
		attribute.Int("sentinel.triage.errors", res.Errors),
	)

	L.Info(ctx, "triage batch complete",
		"validated", res.Validated,
		"dismissed", res.Dismissed,
		"escalated", res.Escalated,
		"errors", res.Errors,
		"duration", time.Since(start).Seconds(),
	)

	return res, nil
}

// processOne classifies one signal and applies the decision. Any failure is
// isolated to this signal. A degraded classification (safe default) is still
// applied so the signal carries the escalation notes, but the signal counts
// as an error in the aggregate.
func (o *Orchestrator) processOne(ctx context.Context, sig *signal.Signal) Outcome {
	d, cerr := o.classifier.Classify(ctx, sig)

	if err := o.apply(ctx, sig, d); err != nil {
		o.logger.Error(ctx, err, "failed to apply decision",
			"signal_id", sig.ID, "decision", string(d.Decision))
		return Outcome{SignalID: sig.ID, Decision: d.Decision, Err: err}
	}

	return Outcome{SignalID: sig.ID, Decision: d.Decision, Err: cerr}
}

// apply performs the lifecycle transition for one decision.
//
// validate goes new -> validated directly, skipping triaged. dismiss is a
// hard delete on this path; only the manual workflow writes the soft
// dismissed status. escalate touches analyst notes only.
func (o *Orchestrator) apply(ctx context.Context, sig *signal.Signal, d *signal.TriageDecision) error {
	switch d.Decision {
	case signal.DecisionValidate:
		now := time.Now().UTC()
		sig.Status = signal.StatusValidated
		sig.ValidatedAt = &now
		sig.ValidatedBy = autoTriageActor
		sig.Confidence = d.Confidence
		if d.PriorityAdjustment != nil {
			sig.Priority = *d.PriorityAdjustment
		}
		sig.AnalystNotes = FormatNotes(d)
		sig.UpdatedAt = now
		return o.store.Put(ctx, sig)

	case signal.DecisionDismiss:
		return o.store.Delete(ctx, sig.ID)

	case signal.DecisionEscalate:
		sig.AnalystNotes = FormatNotes(d)
		sig.UpdatedAt = time.Now().UTC()
		return o.store.Put(ctx, sig)

	default:
		return fmt.Errorf("unknown decision %q", d.Decision)
	}
}

// FormatNotes renders a decision into the analyst-notes block written by the
// automated path. Manual workflows overwrite it freely afterwards.
func FormatNotes(d *signal.TriageDecision) string {
	var b strings.Builder

	fmt.Fprintf(&b, "[%s] %s (confidence %d%%)\n", autoTriageActor, d.Decision, d.Confidence)
	b.WriteString(d.Reasoning)

	if f := d.Footnote; f != nil {
		if f.Summary != "" {
			fmt.Fprintf(&b, "\n\nSummary: %s", f.Summary)
		}
		if len(f.MatchedIndicators) > 0 {
			fmt.Fprintf(&b, "\nMatched indicators: %s", strings.Join(f.MatchedIndicators, ", "))
		}
		if len(f.FilteredNoise) > 0 {
			fmt.Fprintf(&b, "\nFiltered noise: %s", strings.Join(f.FilteredNoise, ", "))
		}
	}

	return b.String()
}

// sleep waits for d or until ctx is done.
func (o *Orchestrator) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
