package triage

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/linnemanlabs/sentinel/internal/classify"
	"github.com/linnemanlabs/sentinel/internal/signal"
	"github.com/linnemanlabs/sentinel/internal/signal/memstore"
)

// scriptedClassifier returns a fixed decision per signal id. IDs listed in
// degraded get the safe default decision plus the chain-exhausted error.
type scriptedClassifier struct {
	decisions map[string]*signal.TriageDecision
	degraded  map[string]bool
}

func (c *scriptedClassifier) Classify(_ context.Context, sig *signal.Signal) (*signal.TriageDecision, error) {
	if c.degraded[sig.ID] {
		return &signal.TriageDecision{
			Decision:   signal.DecisionEscalate,
			Confidence: 0,
			Reasoning:  "AI services unavailable - escalating for human review",
		}, classify.ErrAllProvidersFailed
	}
	if d, ok := c.decisions[sig.ID]; ok {
		return d, nil
	}
	return &signal.TriageDecision{Decision: signal.DecisionEscalate, Confidence: 0, Reasoning: "unscripted"}, nil
}

func seedSignal(t *testing.T, s signal.Store, id string, priority signal.Priority, createdAt time.Time) {
	t.Helper()
	err := s.Put(context.Background(), &signal.Signal{
		ID:           id,
		Status:       signal.StatusNew,
		Priority:     priority,
		OriginalText: "report of febrile illness near " + id,
		Country:      "Nigeria",
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	})
	if err != nil {
		t.Fatalf("seed %s: %v", id, err)
	}
}

func TestClampBatchSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   int
		want int
	}{
		{0, DefaultBatchSize},
		{-5, DefaultBatchSize},
		{1, 1},
		{50, 50},
		{100, 100},
		{101, MaxBatchSize},
		{5000, MaxBatchSize},
	}
	for _, tt := range tests {
		if got := ClampBatchSize(tt.in); got != tt.want {
			t.Errorf("ClampBatchSize(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestRunBatch_AppliesDecisions(t *testing.T) {
	t.Parallel()

	store := memstore.New()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	seedSignal(t, store, "a", signal.PriorityP1, base)
	seedSignal(t, store, "b", signal.PriorityP2, base)
	seedSignal(t, store, "c", signal.PriorityP3, base)

	p1 := signal.PriorityP1
	classifier := &scriptedClassifier{decisions: map[string]*signal.TriageDecision{
		"a": {Decision: signal.DecisionValidate, Confidence: 92, Reasoning: "credible cluster", PriorityAdjustment: &p1},
		"b": {Decision: signal.DecisionDismiss, Confidence: 80, Reasoning: "historical reference"},
		"c": {Decision: signal.DecisionEscalate, Confidence: 40, Reasoning: "ambiguous source"},
	}}

	o := NewOrchestrator(store, classifier, nil, nil)
	o.throttle = 0

	res, err := o.RunBatch(context.Background(), BatchParams{Size: 10})
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if res.Validated != 1 || res.Dismissed != 1 || res.Escalated != 1 || res.Errors != 0 {
		t.Errorf("result = %+v, want 1/1/1/0", res)
	}

	ctx := context.Background()

	// validate: new -> validated directly, with actor stamp and notes
	a, ok, _ := store.Get(ctx, "a")
	if !ok {
		t.Fatal("validated signal missing")
	}
	if a.Status != signal.StatusValidated {
		t.Errorf("a.Status = %q, want validated", a.Status)
	}
	if a.ValidatedAt == nil {
		t.Error("a.ValidatedAt not set")
	}
	if a.ValidatedBy != "auto-triage" {
		t.Errorf("a.ValidatedBy = %q, want auto-triage", a.ValidatedBy)
	}
	if a.Confidence != 92 {
		t.Errorf("a.Confidence = %d, want 92", a.Confidence)
	}
	if !strings.Contains(a.AnalystNotes, "credible cluster") {
		t.Errorf("a.AnalystNotes = %q, want reasoning included", a.AnalystNotes)
	}

	// dismiss on the automated path is a hard delete
	if _, ok, _ := store.Get(ctx, "b"); ok {
		t.Error("dismissed signal still present, want deleted")
	}

	// escalate leaves the signal new, with notes for the human analyst
	c, ok, _ := store.Get(ctx, "c")
	if !ok {
		t.Fatal("escalated signal missing")
	}
	if c.Status != signal.StatusNew {
		t.Errorf("c.Status = %q, want new", c.Status)
	}
	if !strings.Contains(c.AnalystNotes, "ambiguous source") {
		t.Errorf("c.AnalystNotes = %q, want reasoning included", c.AnalystNotes)
	}

	// a rerun never sees the dismissed id again: only the escalated signal
	// is re-selected
	res, err = o.RunBatch(ctx, BatchParams{Size: 10})
	if err != nil {
		t.Fatalf("second RunBatch: %v", err)
	}
	for _, out := range res.Outcomes {
		if out.SignalID == "b" {
			t.Error("dismissed signal re-selected on rerun")
		}
	}
}

func TestRunBatch_PriorityAdjustment(t *testing.T) {
	t.Parallel()

	store := memstore.New()
	seedSignal(t, store, "a", signal.PriorityP3, time.Now())

	p1 := signal.PriorityP1
	o := NewOrchestrator(store, &scriptedClassifier{decisions: map[string]*signal.TriageDecision{
		"a": {Decision: signal.DecisionValidate, Confidence: 95, Reasoning: "mass casualty report", PriorityAdjustment: &p1},
	}}, nil, nil)
	o.throttle = 0

	if _, err := o.RunBatch(context.Background(), BatchParams{}); err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	a, _, _ := store.Get(context.Background(), "a")
	if a.Priority != signal.PriorityP1 {
		t.Errorf("priority = %q, want P1 after adjustment", a.Priority)
	}
}

// failingStore wraps memstore and fails writes for one id.
type failingStore struct {
	*memstore.Store
	failID string
}

func (s *failingStore) Put(ctx context.Context, sig *signal.Signal) error {
	if sig.Status != signal.StatusNew && sig.ID == s.failID {
		return errors.New("connection reset")
	}
	return s.Store.Put(ctx, sig)
}

func TestRunBatch_ErrorIsolation(t *testing.T) {
	t.Parallel()

	store := &failingStore{Store: memstore.New(), failID: "bad"}
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	seedSignal(t, store, "good", signal.PriorityP1, base)
	seedSignal(t, store, "bad", signal.PriorityP2, base)

	o := NewOrchestrator(store, &scriptedClassifier{decisions: map[string]*signal.TriageDecision{
		"good": {Decision: signal.DecisionValidate, Confidence: 90, Reasoning: "ok"},
		"bad":  {Decision: signal.DecisionValidate, Confidence: 90, Reasoning: "ok"},
	}}, nil, nil)
	o.throttle = 0

	res, err := o.RunBatch(context.Background(), BatchParams{Size: 10})
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if res.Validated != 1 || res.Errors != 1 {
		t.Errorf("result = %+v, want validated=1 errors=1", res)
	}

	var found bool
	for _, out := range res.Outcomes {
		if out.SignalID == "bad" {
			found = true
			if out.Err == nil {
				t.Error("outcome for failing signal has nil Err")
			}
		}
	}
	if !found {
		t.Error("no outcome recorded for failing signal")
	}
}

func TestRunBatch_DegradedClassificationCountsAsError(t *testing.T) {
	t.Parallel()

	store := memstore.New()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		seedSignal(t, store, id, signal.PriorityP2, base)
	}

	// three signals resolve normally, two exhaust the provider chain
	o := NewOrchestrator(store, &scriptedClassifier{
		decisions: map[string]*signal.TriageDecision{
			"a": {Decision: signal.DecisionValidate, Confidence: 90, Reasoning: "ok"},
			"b": {Decision: signal.DecisionValidate, Confidence: 90, Reasoning: "ok"},
			"c": {Decision: signal.DecisionDismiss, Confidence: 85, Reasoning: "noise"},
		},
		degraded: map[string]bool{"d": true, "e": true},
	}, nil, nil)
	o.throttle = 0

	res, err := o.RunBatch(context.Background(), BatchParams{Size: 10})
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if res.Validated != 2 || res.Dismissed != 1 || res.Escalated != 0 || res.Errors != 2 {
		t.Errorf("result = %+v, want validated=2 dismissed=1 escalated=0 errors=2", res)
	}
	if len(res.Outcomes) != 5 {
		t.Errorf("outcomes = %d, want every signal accounted for", len(res.Outcomes))
	}

	// degraded signals still received the escalation: notes written, status new
	d, ok, _ := store.Get(context.Background(), "d")
	if !ok {
		t.Fatal("degraded signal missing from store")
	}
	if d.Status != signal.StatusNew {
		t.Errorf("d.Status = %q, want new", d.Status)
	}
	if !strings.Contains(d.AnalystNotes, "AI services unavailable") {
		t.Errorf("d.AnalystNotes = %q, want safe default reasoning", d.AnalystNotes)
	}
}

func TestRunBatch_ContextCancelStopsEarly(t *testing.T) {
	t.Parallel()

	store := memstore.New()
	for _, id := range []string{"a", "b", "c"} {
		seedSignal(t, store, id, signal.PriorityP2, time.Now())
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := NewOrchestrator(store, &scriptedClassifier{}, nil, nil)
	res, err := o.RunBatch(ctx, BatchParams{Size: 10})
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if len(res.Outcomes) != 0 {
		t.Errorf("processed %d signals under cancelled context, want 0", len(res.Outcomes))
	}

	// unprocessed signals remain selectable for the next run
	sigs, _ := store.ListNew(context.Background(), nil, 10)
	if len(sigs) != 3 {
		t.Errorf("%d signals remain new, want 3", len(sigs))
	}
}

func TestRunBatch_EmitsSpan(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	store := memstore.New()
	seedSignal(t, store, "a", signal.PriorityP1, time.Now())

	o := NewOrchestrator(store, &scriptedClassifier{decisions: map[string]*signal.TriageDecision{
		"a": {Decision: signal.DecisionValidate, Confidence: 88, Reasoning: "ok"},
	}}, nil, nil)
	o.throttle = 0

	if _, err := o.RunBatch(context.Background(), BatchParams{Size: 5}); err != nil {
		t.Fatalf("RunBatch: %v", err)
	}

	spans := rec.Ended()
	var found bool
	for _, s := range spans {
		if s.Name() == "triage.RunBatch" {
			found = true
		}
	}
	if !found {
		t.Errorf("no triage.RunBatch span recorded, got %d spans", len(spans))
	}
}

func TestFormatNotes(t *testing.T) {
	t.Parallel()

	d := &signal.TriageDecision{
		Decision:   signal.DecisionValidate,
		Confidence: 87,
		Reasoning:  "multiple corroborating sources",
		Footnote: &signal.Footnote{
			Summary:           "confirmed cholera cluster",
			MatchedIndicators: []string{"acute watery diarrhea", "case count rising"},
			FilteredNoise:     []string{"vaccine drive announcement"},
		},
	}

	got := FormatNotes(d)
	for _, want := range []string{
		"[auto-triage] validate (confidence 87%)",
		"multiple corroborating sources",
		"Summary: confirmed cholera cluster",
		"Matched indicators: acute watery diarrhea, case count rising",
		"Filtered noise: vaccine drive announcement",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("notes missing %q:\n%s", want, got)
		}
	}
}

func TestFormatNotes_NoFootnote(t *testing.T) {
	t.Parallel()

	got := FormatNotes(&signal.TriageDecision{
		Decision:   signal.DecisionEscalate,
		Confidence: 0,
		Reasoning:  "AI services unavailable - escalating for human review",
	})
	want := "[auto-triage] escalate (confidence 0%)\nAI services unavailable - escalating for human review"
	if got != want {
		t.Errorf("notes = %q, want %q", got, want)
	}
}
