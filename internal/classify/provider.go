package classify

import (
	"context"
	"errors"
	"fmt"
)

// Provider is the interface for any classification backend. Classify sends
// the prompts and returns the provider's raw response content; decision
// parsing and validation belong to the Gateway so schema failures fall back
// exactly like provider failures.
type Provider interface {
	Name() string
	Classify(ctx context.Context, system, user string) (string, error)
}

// ProviderError is a non-success HTTP response from an AI provider.
type ProviderError struct {
	Provider string
	Status   int
	Body     string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s api error %d: %s", e.Provider, e.Status, e.Body)
}

// Transient reports whether the failure class (429 or 5xx) justifies trying
// the next provider on the ad hoc single-request path. The batch path falls
// back on any error.
func (e *ProviderError) Transient() bool {
	return e.Status == 429 || e.Status >= 500
}

// AsProviderError unwraps err into a *ProviderError if possible.
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
