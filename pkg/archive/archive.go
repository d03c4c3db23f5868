// Package archive persists verdict history to Postgres for offline analysis
// and accuracy estimation. Writes are asynchronous and bounded; a slow or
// dead database drops history instead of stalling detection.
package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/luminasec/sentinel/pkg/feature"
	"github.com/luminasec/sentinel/pkg/logging"
	"github.com/luminasec/sentinel/pkg/telemetry"
)

const schema = `
CREATE TABLE IF NOT EXISTS verdicts (
	id              TEXT PRIMARY KEY,
	threat_detected BOOLEAN NOT NULL,
	severity        TEXT NOT NULL,
	category        TEXT,
	confidence      DOUBLE PRECISION NOT NULL,
	degraded        BOOLEAN NOT NULL DEFAULT FALSE,
	signature       TEXT,
	age_group       TEXT,
	context         TEXT,
	contributing    JSONB,
	created_at      TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS verdicts_created_at_idx ON verdicts (created_at DESC);
CREATE INDEX IF NOT EXISTS verdicts_signature_idx ON verdicts (signature) WHERE signature IS NOT NULL;

CREATE TABLE IF NOT EXISTS feedback (
	verdict_id      TEXT NOT NULL REFERENCES verdicts (id) ON DELETE CASCADE,
	asserted_threat BOOLEAN NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL
);
`

// Archive writes verdicts and feedback to Postgres. Safe for concurrent use.
type Archive struct {
	pool     *pgxpool.Pool
	inflight chan struct{}
}

// New connects to the database and ensures the schema exists.
func New(ctx context.Context, dsn string, maxInflight int) (*Archive, error) {
	if maxInflight <= 0 {
		maxInflight = 8
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect archive database: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure archive schema: %w", err)
	}

	return &Archive{
		pool:     pool,
		inflight: make(chan struct{}, maxInflight),
	}, nil
}

// WriteVerdict persists one verdict asynchronously. When all inflight slots
// are taken the write is dropped and counted; detection latency never pays
// for the database.
func (a *Archive) WriteVerdict(v feature.Verdict, group feature.AgeGroup, tag feature.ContextTag) {
	select {
	case a.inflight <- struct{}{}:
	default:
		telemetry.ObserveArchiveWrite("dropped")
		return
	}

	go func() {
		defer func() { <-a.inflight }()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		contributing, err := json.Marshal(v.Contributing)
		if err != nil {
			contributing = []byte("[]")
		}

		_, err = a.pool.Exec(ctx, `
			INSERT INTO verdicts (id, threat_detected, severity, category, confidence,
				degraded, signature, age_group, context, contributing, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (id) DO NOTHING`,
			v.ID, v.ThreatDetected, v.Severity.String(), string(v.PrimaryCategory), v.Confidence,
			v.Degraded, nullable(v.Signature), string(group), string(tag), contributing, v.Timestamp,
		)
		if err != nil {
			telemetry.ObserveArchiveWrite("error")
			logging.Error().Err(err).Str("verdict_id", v.ID).Msg("verdict archive write failed")
			return
		}
		telemetry.ObserveArchiveWrite("ok")
	}()
}

// WriteFeedback persists one feedback record asynchronously.
func (a *Archive) WriteFeedback(rec feature.FeedbackRecord) {
	select {
	case a.inflight <- struct{}{}:
	default:
		telemetry.ObserveArchiveWrite("dropped")
		return
	}

	go func() {
		defer func() { <-a.inflight }()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		_, err := a.pool.Exec(ctx,
			`INSERT INTO feedback (verdict_id, asserted_threat, created_at) VALUES ($1, $2, $3)`,
			rec.VerdictID, rec.AssertedThreat, rec.Timestamp,
		)
		if err != nil {
			telemetry.ObserveArchiveWrite("error")
			logging.Error().Err(err).Str("verdict_id", rec.VerdictID).Msg("feedback archive write failed")
			return
		}
		telemetry.ObserveArchiveWrite("ok")
	}()
}

// AccuracyEstimate computes the fraction of feedback that agreed with the
// archived verdict over the trailing window. Returns 1.0 when no feedback
// exists yet.
func (a *Archive) AccuracyEstimate(ctx context.Context, window time.Duration) (float64, error) {
	var agreed, total int64
	err := a.pool.QueryRow(ctx, `
		SELECT COUNT(*) FILTER (WHERE f.asserted_threat = v.threat_detected), COUNT(*)
		FROM feedback f JOIN verdicts v ON v.id = f.verdict_id
		WHERE f.created_at > $1`,
		time.Now().Add(-window),
	).Scan(&agreed, &total)
	if err != nil {
		return 0, fmt.Errorf("accuracy query: %w", err)
	}
	if total == 0 {
		return 1.0, nil
	}
	return float64(agreed) / float64(total), nil
}

// Close drains nothing; inflight writes finish on their own timeouts.
func (a *Archive) Close() {
	a.pool.Close()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
