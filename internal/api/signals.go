package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/sentinel/internal/signal"
)

func (a *API) handleIngestSignal(w http.ResponseWriter, r *http.Request) {
	var sig signal.Signal
	if err := json.NewDecoder(r.Body).Decode(&sig); err != nil {
		errJSON(w, "invalid payload", http.StatusBadRequest)
		return
	}

	if sig.OriginalText == "" || sig.Country == "" {
		errJSON(w, "original_text and country are required", http.StatusBadRequest)
		return
	}
	if sig.Priority == "" {
		sig.Priority = signal.PriorityP3
	}
	if !sig.Priority.Valid() {
		errJSON(w, "unknown priority", http.StatusBadRequest)
		return
	}
	if sig.Category == "" {
		sig.Category = signal.CategoryUnknown
	}

	now := time.Now().UTC()
	sig.ID = ulid.Make().String()
	sig.Status = signal.StatusNew
	sig.AnalystNotes = ""
	sig.TriagedBy, sig.TriagedAt = "", nil
	sig.ValidatedBy, sig.ValidatedAt = "", nil
	sig.CreatedAt = now
	sig.UpdatedAt = now

	if err := a.store.Put(r.Context(), &sig); err != nil {
		a.logger.Error(r.Context(), err, "failed to store signal")
		errJSON(w, "internal error", http.StatusInternalServerError)
		return
	}

	a.writeJSON(w, http.StatusCreated, &sig)
}

func (a *API) handleGetSignal(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("sentinel.signal.id", id))

	sig, ok, err := a.store.Get(r.Context(), id)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to get signal", "id", id)
		errJSON(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !ok {
		errJSON(w, "not found", http.StatusNotFound)
		return
	}

	span.SetAttributes(attribute.String("sentinel.signal.status", string(sig.Status)))

	a.writeJSON(w, http.StatusOK, sig)
}

// handleAnalyzeSignal runs the ad hoc single-provider classification and
// returns the decision without applying it to the signal.
func (a *API) handleAnalyzeSignal(w http.ResponseWriter, r *http.Request) {
	if a.analyzer == nil {
		errJSON(w, "classifier not configured", http.StatusInternalServerError)
		return
	}

	id := chi.URLParam(r, "id")

	sig, ok, err := a.store.Get(r.Context(), id)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to get signal", "id", id)
		errJSON(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !ok {
		errJSON(w, "not found", http.StatusNotFound)
		return
	}

	d, err := a.analyzer.AnalyzeOne(r.Context(), sig)
	if err != nil {
		a.logger.Error(r.Context(), err, "ad hoc analysis failed", "id", id)
		errJSON(w, "analysis failed", http.StatusBadGateway)
		return
	}

	a.writeJSON(w, http.StatusOK, map[string]any{
		"signal_id": id,
		"decision":  d,
	})
}
