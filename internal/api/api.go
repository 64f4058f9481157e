// Package api exposes the pipeline's HTTP entry points: triage batch runs,
// archive sync, retention cleanup, and basic signal read/ingest plus the ad
// hoc single-signal analysis path.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/sentinel/internal/archive"
	"github.com/linnemanlabs/sentinel/internal/retention"
	"github.com/linnemanlabs/sentinel/internal/signal"
	"github.com/linnemanlabs/sentinel/internal/triage"
)

// Orchestrator runs automated triage batches.
type Orchestrator interface {
	RunBatch(ctx context.Context, params triage.BatchParams) (*triage.BatchResult, error)
}

// Synchronizer archives resolved signals to the cold store.
type Synchronizer interface {
	Sync(ctx context.Context, params archive.Params) (*archive.Result, error)
}

// Janitor purges stale unvalidated signals.
type Janitor interface {
	Cleanup(ctx context.Context) (*retention.Report, error)
}

// Analyzer is the ad hoc single-provider classification path.
type Analyzer interface {
	AnalyzeOne(ctx context.Context, sig *signal.Signal) (*signal.TriageDecision, error)
}

// API holds dependencies for HTTP handlers. Synchronizer may be nil when no
// cold store is configured; its endpoint then reports a configuration error
// without touching any data.
type API struct {
	logger       log.Logger
	store        signal.Store
	orchestrator Orchestrator
	synchronizer Synchronizer
	janitor      Janitor
	analyzer     Analyzer
}

// New creates a new API handler.
func New(logger log.Logger, store signal.Store, orch Orchestrator, sync Synchronizer, jan Janitor, an Analyzer) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if store == nil {
		panic(xerrors.New("signal store is required"))
	}
	if orch == nil {
		panic(xerrors.New("triage orchestrator is required"))
	}
	if jan == nil {
		panic(xerrors.New("retention janitor is required"))
	}
	return &API{
		logger:       logger,
		store:        store,
		orchestrator: orch,
		synchronizer: sync,
		janitor:      jan,
		analyzer:     an,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/signals", a.handleIngestSignal)
		r.Get("/signals/{id}", a.handleGetSignal)
		r.Post("/signals/{id}/analyze", a.handleAnalyzeSignal)
		r.Post("/triage/run", a.handleTriageRun)
		r.Post("/archive/sync", a.handleArchiveSync)
		r.Post("/retention/cleanup", a.handleRetentionCleanup)
	})
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func errJSON(w http.ResponseWriter, msg string, status int) {
	http.Error(w, `{"error":"`+msg+`"}`, status)
}
