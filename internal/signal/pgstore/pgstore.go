// Package pgstore provides a PostgreSQL implementation of signal.Store.
package pgstore

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/sentinel/internal/signal"
)

var tracer = otel.Tracer("github.com/linnemanlabs/sentinel/internal/signal/pgstore")

//go:embed schema.sql
var schema string

// Store persists signals in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema and returns a ready Store backed by pool.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

const signalColumns = `id, disease, category, priority, confidence,
	original_text, translated_text, original_language,
	country, country_iso, admin1, admin2, latitude, longitude,
	source_name, source_type, source_tier, source_url, source_published_at,
	reported_cases, reported_deaths, affected_population, cross_border_risk,
	status, analyst_notes, triaged_by, triaged_at, validated_by, validated_at,
	created_at, updated_at`

// Get retrieves a signal by ID.
func (s *Store) Get(ctx context.Context, id string) (*signal.Signal, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.Get", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + signalColumns + ` FROM signals WHERE id = $1`
	sig, err := scanSignalRow(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}
	if sig == nil {
		return nil, false, nil
	}
	return sig, true, nil
}

// Put inserts or fully replaces a signal row (upsert on id).
func (s *Store) Put(ctx context.Context, sig *signal.Signal) error {
	ctx, span := tracer.Start(ctx, "pgstore.Put", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPSERT"),
	))
	defer span.End()

	query := `INSERT INTO signals (` + signalColumns + `)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,
		$20,$21,$22,$23,$24,$25,$26,$27,$28,$29,$30,$31)
	ON CONFLICT (id) DO UPDATE SET
		disease             = EXCLUDED.disease,
		category            = EXCLUDED.category,
		priority            = EXCLUDED.priority,
		confidence          = EXCLUDED.confidence,
		original_text       = EXCLUDED.original_text,
		translated_text     = EXCLUDED.translated_text,
		original_language   = EXCLUDED.original_language,
		country             = EXCLUDED.country,
		country_iso         = EXCLUDED.country_iso,
		admin1              = EXCLUDED.admin1,
		admin2              = EXCLUDED.admin2,
		latitude            = EXCLUDED.latitude,
		longitude           = EXCLUDED.longitude,
		source_name         = EXCLUDED.source_name,
		source_type         = EXCLUDED.source_type,
		source_tier         = EXCLUDED.source_tier,
		source_url          = EXCLUDED.source_url,
		source_published_at = EXCLUDED.source_published_at,
		reported_cases      = EXCLUDED.reported_cases,
		reported_deaths     = EXCLUDED.reported_deaths,
		affected_population = EXCLUDED.affected_population,
		cross_border_risk   = EXCLUDED.cross_border_risk,
		status              = EXCLUDED.status,
		analyst_notes       = EXCLUDED.analyst_notes,
		triaged_by          = EXCLUDED.triaged_by,
		triaged_at          = EXCLUDED.triaged_at,
		validated_by        = EXCLUDED.validated_by,
		validated_at        = EXCLUDED.validated_at,
		updated_at          = now()`

	_, err := s.pool.Exec(ctx, query,
		sig.ID, sig.Disease, string(sig.Category), string(sig.Priority), sig.Confidence,
		sig.OriginalText, sig.TranslatedText, sig.Language,
		sig.Country, sig.CountryISO, sig.Admin1, sig.Admin2, sig.Latitude, sig.Longitude,
		sig.SourceName, sig.SourceType, string(sig.SourceTier), sig.SourceURL, sig.SourcePublishedAt,
		sig.ReportedCases, sig.ReportedDeaths, sig.AffectedPopulation, sig.CrossBorderRisk,
		string(sig.Status), sig.AnalystNotes, sig.TriagedBy, sig.TriagedAt, sig.ValidatedBy, sig.ValidatedAt,
		sig.CreatedAt, sig.UpdatedAt,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("upsert signal: %w", err)
	}
	return nil
}

// Delete removes a signal. Absent ids are a no-op.
func (s *Store) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "pgstore.Delete", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "DELETE"),
	))
	defer span.End()

	if _, err := s.pool.Exec(ctx, `DELETE FROM signals WHERE id = $1`, id); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("delete signal: %w", err)
	}
	return nil
}

// ListNew returns new signals ordered by priority ascending then created_at
// descending, optionally restricted to the given priorities.
func (s *Store) ListNew(ctx context.Context, priorities []signal.Priority, limit int) ([]*signal.Signal, error) {
	ctx, span := tracer.Start(ctx, "pgstore.ListNew", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
		attribute.Int("sentinel.batch.limit", limit),
	))
	defer span.End()

	query := `SELECT ` + signalColumns + ` FROM signals WHERE status = 'new'`
	args := []any{}
	if len(priorities) > 0 {
		ps := make([]string, len(priorities))
		for i, p := range priorities {
			ps[i] = string(p)
		}
		args = append(args, ps)
		query += fmt.Sprintf(` AND priority = ANY($%d)`, len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY priority ASC, created_at DESC LIMIT $%d`, len(args))

	return s.querySignals(ctx, span, query, args...)
}

// ListArchivable returns resolved signals validated before cutoff, oldest first.
func (s *Store) ListArchivable(ctx context.Context, cutoff time.Time, limit int) ([]*signal.Signal, error) {
	ctx, span := tracer.Start(ctx, "pgstore.ListArchivable", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
		attribute.Int("sentinel.batch.limit", limit),
	))
	defer span.End()

	query := `SELECT ` + signalColumns + ` FROM signals
	WHERE status IN ('validated', 'dismissed') AND validated_at < $1
	ORDER BY validated_at ASC LIMIT $2`

	return s.querySignals(ctx, span, query, cutoff, limit)
}

// DeleteIDs removes exactly the given ids.
func (s *Store) DeleteIDs(ctx context.Context, ids []string) (int64, error) {
	ctx, span := tracer.Start(ctx, "pgstore.DeleteIDs", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "DELETE"),
		attribute.Int("sentinel.delete.requested", len(ids)),
	))
	defer span.End()

	if len(ids) == 0 {
		return 0, nil
	}

	tag, err := s.pool.Exec(ctx, `DELETE FROM signals WHERE id = ANY($1)`, ids)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("delete signals: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteStaleBefore removes non-validated signals created before cutoff.
func (s *Store) DeleteStaleBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, span := tracer.Start(ctx, "pgstore.DeleteStaleBefore", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "DELETE"),
	))
	defer span.End()

	tag, err := s.pool.Exec(ctx,
		`DELETE FROM signals WHERE created_at < $1 AND status != 'validated'`, cutoff)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("delete stale signals: %w", err)
	}
	return tag.RowsAffected(), nil
}

// RetentionStats reports row counts grouped by creation date and status.
func (s *Store) RetentionStats(ctx context.Context) ([]signal.RetentionStat, error) {
	ctx, span := tracer.Start(ctx, "pgstore.RetentionStats", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	rows, err := s.pool.Query(ctx,
		`SELECT to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day, status, count(*)
		 FROM signals GROUP BY day, status ORDER BY day, status`)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("query retention stats: %w", err)
	}
	defer rows.Close()

	var stats []signal.RetentionStat
	for rows.Next() {
		var st signal.RetentionStat
		var status string
		if err := rows.Scan(&st.Date, &status, &st.Count); err != nil {
			return nil, fmt.Errorf("scan retention stat: %w", err)
		}
		st.Status = signal.Status(status)
		stats = append(stats, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate retention stats: %w", err)
	}
	return stats, nil
}

// CountValidated returns the number of validated rows.
func (s *Store) CountValidated(ctx context.Context) (int64, error) {
	ctx, span := tracer.Start(ctx, "pgstore.CountValidated", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	var n int64
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM signals WHERE status = 'validated'`).Scan(&n)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("count validated: %w", err)
	}
	return n, nil
}

func (s *Store) querySignals(ctx context.Context, span trace.Span, query string, args ...any) ([]*signal.Signal, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("query signals: %w", err)
	}
	defer rows.Close()

	var out []*signal.Signal
	for rows.Next() {
		sig, err := scanSignal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sig)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate signals: %w", err)
	}
	return out, nil
}

// scanSignalRow scans a single row into a Signal.
// Returns (nil, nil) when no row is found.
func scanSignalRow(row pgx.Row) (*signal.Signal, error) {
	sig, err := scanSignal(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return sig, nil
}

func scanSignal(row pgx.Row) (*signal.Signal, error) {
	var (
		sig                      signal.Signal
		category, priority, tier string
		status                   string
	)

	err := row.Scan(
		&sig.ID, &sig.Disease, &category, &priority, &sig.Confidence,
		&sig.OriginalText, &sig.TranslatedText, &sig.Language,
		&sig.Country, &sig.CountryISO, &sig.Admin1, &sig.Admin2, &sig.Latitude, &sig.Longitude,
		&sig.SourceName, &sig.SourceType, &tier, &sig.SourceURL, &sig.SourcePublishedAt,
		&sig.ReportedCases, &sig.ReportedDeaths, &sig.AffectedPopulation, &sig.CrossBorderRisk,
		&status, &sig.AnalystNotes, &sig.TriagedBy, &sig.TriagedAt, &sig.ValidatedBy, &sig.ValidatedAt,
		&sig.CreatedAt, &sig.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan: %w", err)
	}

	sig.Category = signal.Category(category)
	sig.Priority = signal.Priority(priority)
	sig.SourceTier = signal.Tier(tier)
	sig.Status = signal.Status(status)
	return &sig, nil
}
