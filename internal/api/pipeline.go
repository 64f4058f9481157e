package api

import (
	"encoding/json"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/sentinel/internal/archive"
	"github.com/linnemanlabs/sentinel/internal/signal"
	"github.com/linnemanlabs/sentinel/internal/triage"
)

type triageRunRequest struct {
	BatchSize int      `json:"batchSize"`
	Priority  []string `json:"priority"`
}

func (a *API) handleTriageRun(w http.ResponseWriter, r *http.Request) {
	var req triageRunRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			errJSON(w, "invalid payload", http.StatusBadRequest)
			return
		}
	}

	var priorities []signal.Priority
	for _, p := range req.Priority {
		pr := signal.Priority(p)
		if !pr.Valid() {
			errJSON(w, "unknown priority", http.StatusBadRequest)
			return
		}
		priorities = append(priorities, pr)
	}

	res, err := a.orchestrator.RunBatch(r.Context(), triage.BatchParams{
		Size:       req.BatchSize,
		Priorities: priorities,
	})
	if err != nil {
		a.logger.Error(r.Context(), err, "triage batch failed to start")
		errJSON(w, "internal error", http.StatusInternalServerError)
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(
		attribute.Int("sentinel.triage.validated", res.Validated),
		attribute.Int("sentinel.triage.errors", res.Errors),
	)

	a.writeJSON(w, http.StatusOK, map[string]any{
		"message": "triage batch complete",
		"results": res,
	})
}

type archiveSyncRequest struct {
	BatchSize       int  `json:"batchSize"`
	ArchiveAgeDays  int  `json:"archiveAgeDays"`
	DeleteAfterSync bool `json:"deleteAfterSync"`
}

func (a *API) handleArchiveSync(w http.ResponseWriter, r *http.Request) {
	if a.synchronizer == nil {
		// Missing cold-store configuration is the one failure surfaced as an
		// error response: nothing has been touched yet.
		errJSON(w, "archive store not configured", http.StatusInternalServerError)
		return
	}

	var req archiveSyncRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			errJSON(w, "invalid payload", http.StatusBadRequest)
			return
		}
	}

	res, err := a.synchronizer.Sync(r.Context(), archive.Params{
		BatchSize:       req.BatchSize,
		AgeDays:         req.ArchiveAgeDays,
		DeleteAfterSync: req.DeleteAfterSync,
	})
	if err != nil {
		a.logger.Error(r.Context(), err, "archive sync failed to start")
		errJSON(w, "internal error", http.StatusInternalServerError)
		return
	}

	a.writeJSON(w, http.StatusOK, map[string]any{
		"message": "archive sync complete",
		"results": res,
	})
}

func (a *API) handleRetentionCleanup(w http.ResponseWriter, r *http.Request) {
	report, err := a.janitor.Cleanup(r.Context())
	if err != nil {
		a.logger.Error(r.Context(), err, "retention cleanup failed")
		errJSON(w, "internal error", http.StatusInternalServerError)
		return
	}

	a.writeJSON(w, http.StatusOK, map[string]any{
		"success":             true,
		"deleted":             report.Deleted,
		"validated_preserved": report.ValidatedPreserved,
		"retention_stats": map[string]any{
			"before": report.StatsBefore,
			"after":  report.StatsAfter,
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
