package classify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/linnemanlabs/sentinel/internal/signal"
)

// mockProvider returns canned responses in order, repeating the last one.
type mockProvider struct {
	name      string
	responses []mockResponse
	calls     int
}

type mockResponse struct {
	content string
	err     error
}

func (m *mockProvider) Name() string { return m.name }

func (m *mockProvider) Classify(context.Context, string, string) (string, error) {
	i := m.calls
	if i >= len(m.responses) {
		i = len(m.responses) - 1
	}
	m.calls++
	r := m.responses[i]
	return r.content, r.err
}

func respond(content string) *mockProvider {
	return &mockProvider{name: "mock", responses: []mockResponse{{content: content}}}
}

func fail(err error) *mockProvider {
	return &mockProvider{name: "mock", responses: []mockResponse{{err: err}}}
}

const validateJSON = `{"decision":"validate","confidence":85,"reasoning":"cluster of cases"}`

func testSignal() *signal.Signal {
	return &signal.Signal{
		ID:           "sig-1",
		Status:       signal.StatusNew,
		Priority:     signal.PriorityP2,
		OriginalText: "suspected cholera cluster reported",
		Country:      "Kenya",
		CreatedAt:    time.Now(),
	}
}

func TestClassify_PrimarySuccess(t *testing.T) {
	t.Parallel()

	primary := respond(validateJSON)
	secondary := fail(errors.New("must not be called"))
	g := New([]Provider{primary, secondary}, nil, nil, Hooks{})

	d, err := g.Classify(context.Background(), testSignal())
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if d.Decision != signal.DecisionValidate || d.Confidence != 85 {
		t.Errorf("decision = %+v, want validate/85", d)
	}
	if secondary.calls != 0 {
		t.Errorf("secondary called %d times, want 0", secondary.calls)
	}
}

func TestClassify_FallbackOnProviderError(t *testing.T) {
	t.Parallel()

	primary := fail(&ProviderError{Provider: "azure", Status: 500, Body: "boom"})
	secondary := respond(`{"decision":"dismiss","confidence":70,"reasoning":"historical reference"}`)
	g := New([]Provider{primary, secondary}, nil, nil, Hooks{})

	d, err := g.Classify(context.Background(), testSignal())
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if d.Decision != signal.DecisionDismiss {
		t.Errorf("decision = %q, want dismiss", d.Decision)
	}
}

func TestClassify_FallbackOnMalformedDecision(t *testing.T) {
	t.Parallel()

	// a provider returning unparseable or schema-violating content advances
	// the chain, same as a transport failure
	primary := respond(`{"decision":"maybe","confidence":50,"reasoning":"?"}`)
	secondary := respond(validateJSON)
	g := New([]Provider{primary, secondary}, nil, nil, Hooks{})

	d, err := g.Classify(context.Background(), testSignal())
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if d.Decision != signal.DecisionValidate {
		t.Errorf("decision = %q, want validate from fallback", d.Decision)
	}
}

func TestClassify_SafeDefaultWhenChainExhausted(t *testing.T) {
	t.Parallel()

	g := New([]Provider{
		fail(errors.New("down")),
		fail(errors.New("also down")),
	}, nil, nil, Hooks{})

	d, err := g.Classify(context.Background(), testSignal())
	if !errors.Is(err, ErrAllProvidersFailed) {
		t.Errorf("err = %v, want ErrAllProvidersFailed", err)
	}
	if d.Decision != signal.DecisionEscalate {
		t.Errorf("decision = %q, want escalate", d.Decision)
	}
	if d.Confidence != 0 {
		t.Errorf("confidence = %d, want 0", d.Confidence)
	}
	if d.Reasoning != fallbackReasoning {
		t.Errorf("reasoning = %q, want %q", d.Reasoning, fallbackReasoning)
	}
}

func TestClassify_RateLimitSkipsPrimary(t *testing.T) {
	t.Parallel()

	primary := respond(validateJSON)
	secondary := respond(`{"decision":"escalate","confidence":60,"reasoning":"needs review"}`)

	var limited int
	limiter := NewRateLimiter(1, time.Minute)
	g := New([]Provider{primary, secondary}, limiter, nil, Hooks{
		OnRateLimited: func() { limited++ },
	})

	// first call consumes the whole budget
	_, _ = g.Classify(context.Background(), testSignal())
	d, err := g.Classify(context.Background(), testSignal())

	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if d.Decision != signal.DecisionEscalate {
		t.Errorf("decision = %q, want escalate from secondary", d.Decision)
	}
	if primary.calls != 1 {
		t.Errorf("primary called %d times, want 1", primary.calls)
	}
	if secondary.calls != 1 {
		t.Errorf("secondary called %d times, want 1", secondary.calls)
	}
	if limited != 1 {
		t.Errorf("OnRateLimited fired %d times, want 1", limited)
	}
}

func TestClassify_ProviderCallHook(t *testing.T) {
	t.Parallel()

	type call struct {
		provider string
		outcome  string
	}
	var calls []call

	primary := fail(&ProviderError{Provider: "azure", Status: 503, Body: "unavailable"})
	primary.name = "azure-openai"
	secondary := respond(validateJSON)
	secondary.name = "claude"

	g := New([]Provider{primary, secondary}, nil, nil, Hooks{
		OnProviderCall: func(provider, outcome string, _ float64) {
			calls = append(calls, call{provider, outcome})
		},
	})
	_, _ = g.Classify(context.Background(), testSignal())

	want := []call{{"azure-openai", "error"}, {"claude", "success"}}
	if len(calls) != len(want) {
		t.Fatalf("hook fired %d times, want %d", len(calls), len(want))
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("calls[%d] = %+v, want %+v", i, calls[i], want[i])
		}
	}
}

func TestAnalyzeOne_HardFailureDoesNotFallBack(t *testing.T) {
	t.Parallel()

	primary := fail(&ProviderError{Provider: "azure", Status: 401, Body: "bad key"})
	secondary := respond(validateJSON)
	g := New([]Provider{primary, secondary}, nil, nil, Hooks{})

	_, err := g.AnalyzeOne(context.Background(), testSignal())
	if err == nil {
		t.Fatal("want error on 401, got nil")
	}
	pe, ok := AsProviderError(err)
	if !ok || pe.Status != 401 {
		t.Errorf("err = %v, want ProviderError status 401", err)
	}
	if secondary.calls != 0 {
		t.Errorf("secondary called %d times, want 0", secondary.calls)
	}
}

func TestAnalyzeOne_TransientFailureFallsBack(t *testing.T) {
	t.Parallel()

	for _, status := range []int{429, 500, 503} {
		primary := fail(&ProviderError{Provider: "azure", Status: status, Body: "busy"})
		secondary := respond(validateJSON)
		g := New([]Provider{primary, secondary}, nil, nil, Hooks{})

		d, err := g.AnalyzeOne(context.Background(), testSignal())
		if err != nil {
			t.Fatalf("status %d: AnalyzeOne: %v", status, err)
		}
		if d.Decision != signal.DecisionValidate {
			t.Errorf("status %d: decision = %q, want validate", status, d.Decision)
		}
	}
}

func TestAnalyzeOne_MalformedDecisionIsAnError(t *testing.T) {
	t.Parallel()

	primary := respond(`not json at all`)
	secondary := respond(validateJSON)
	g := New([]Provider{primary, secondary}, nil, nil, Hooks{})

	_, err := g.AnalyzeOne(context.Background(), testSignal())
	if err == nil {
		t.Fatal("want parse error surfaced, got nil")
	}
	if secondary.calls != 0 {
		t.Errorf("secondary called %d times, want 0", secondary.calls)
	}
}

func TestAnalyzeOne_RateLimitedWithoutFallback(t *testing.T) {
	t.Parallel()

	primary := respond(validateJSON)
	limiter := NewRateLimiter(0, time.Minute)
	g := New([]Provider{primary}, limiter, nil, Hooks{})

	_, err := g.AnalyzeOne(context.Background(), testSignal())
	pe, ok := AsProviderError(err)
	if !ok {
		t.Fatalf("err = %v, want ProviderError", err)
	}
	if pe.Status != 429 {
		t.Errorf("status = %d, want 429", pe.Status)
	}
	if primary.calls != 0 {
		t.Errorf("primary called %d times, want 0", primary.calls)
	}
}

func TestAnalyzeOne_RateLimitedUsesFallback(t *testing.T) {
	t.Parallel()

	primary := respond(validateJSON)
	secondary := respond(`{"decision":"escalate","confidence":55,"reasoning":"manual review"}`)
	limiter := NewRateLimiter(0, time.Minute)
	g := New([]Provider{primary, secondary}, limiter, nil, Hooks{})

	d, err := g.AnalyzeOne(context.Background(), testSignal())
	if err != nil {
		t.Fatalf("AnalyzeOne: %v", err)
	}
	if d.Decision != signal.DecisionEscalate {
		t.Errorf("decision = %q, want escalate", d.Decision)
	}
	if primary.calls != 0 {
		t.Errorf("primary called %d times, want 0", primary.calls)
	}
}

func TestExtractJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare", `{"a":1}`, `{"a":1}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"prose wrapped", `Here is my analysis: {"a":1} hope that helps`, `{"a":1}`},
		{"no object", "no braces here", "no braces here"},
	}
	for _, tt := range tests {
		if got := extractJSON(tt.in); got != tt.want {
			t.Errorf("%s: extractJSON = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestProviderErrorTransient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status int
		want   bool
	}{
		{429, true},
		{500, true},
		{503, true},
		{400, false},
		{401, false},
		{404, false},
	}
	for _, tt := range tests {
		pe := &ProviderError{Provider: "azure", Status: tt.status}
		if got := pe.Transient(); got != tt.want {
			t.Errorf("status %d: Transient() = %v, want %v", tt.status, got, tt.want)
		}
	}
}
