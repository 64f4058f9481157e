// Package pgsink provides the PostgreSQL cold-store implementation of
// archive.Sink.
package pgsink

import (
	"context"
	_ "embed"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/sentinel/internal/archive"
)

var tracer = otel.Tracer("github.com/linnemanlabs/sentinel/internal/archive/pgsink")

//go:embed schema.sql
var schema string

// Sink writes archive records to the cold PostgreSQL store. One pool serves
// the whole batch; each row is its own statement, which is all the atomicity
// the upsert needs.
type Sink struct {
	pool *pgxpool.Pool
}

// New returns a Sink backed by pool.
func New(pool *pgxpool.Pool) *Sink {
	return &Sink{pool: pool}
}

// EnsureSchema idempotently creates the archive table and its indexes.
func (s *Sink) EnsureSchema(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "pgsink.EnsureSchema", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "DDL"),
	))
	defer span.End()

	if _, err := s.pool.Exec(ctx, schema); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("apply archive schema: %w", err)
	}
	return nil
}

// Upsert writes one record keyed by id: a fresh row gets the full
// projection; a conflicting row only has its mutable fields (status, notes,
// validated_at) and synced_at refreshed.
func (s *Sink) Upsert(ctx context.Context, rec *archive.Record) error {
	ctx, span := tracer.Start(ctx, "pgsink.Upsert", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPSERT"),
	))
	defer span.End()

	query := `INSERT INTO archived_signals (
		id, disease, category, priority, confidence,
		original_text, translated_text, original_language,
		country, country_iso, admin1, admin2, latitude, longitude,
		source_name, source_type, source_tier, source_url, source_published_at,
		reported_cases, reported_deaths, affected_population, cross_border_risk,
		status, analyst_notes, validated_by, validated_at, created_at, synced_at
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,
		$19,$20,$21,$22,$23,$24,$25,$26,$27,$28,$29)
	ON CONFLICT (id) DO UPDATE SET
		status        = EXCLUDED.status,
		analyst_notes = EXCLUDED.analyst_notes,
		validated_at  = EXCLUDED.validated_at,
		synced_at     = EXCLUDED.synced_at`

	_, err := s.pool.Exec(ctx, query,
		rec.ID, rec.Disease, string(rec.Category), string(rec.Priority), rec.Confidence,
		rec.OriginalText, rec.TranslatedText, rec.Language,
		rec.Country, rec.CountryISO, rec.Admin1, rec.Admin2, rec.Latitude, rec.Longitude,
		rec.SourceName, rec.SourceType, string(rec.SourceTier), rec.SourceURL, rec.SourcePublishedAt,
		rec.ReportedCases, rec.ReportedDeaths, rec.AffectedPopulation, rec.CrossBorderRisk,
		string(rec.Status), rec.AnalystNotes, rec.ValidatedBy, rec.ValidatedAt, rec.CreatedAt, rec.SyncedAt,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("upsert archive record: %w", err)
	}
	return nil
}
