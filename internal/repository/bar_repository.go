package repository

import (
	"context"
	"time"

	"stocksense/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/trace"
)

const createBarsTable = `
CREATE TABLE IF NOT EXISTS bars (
    symbol      TEXT        NOT NULL,
    trade_date  DATE        NOT NULL,
    open        NUMERIC     NOT NULL,
    high        NUMERIC     NOT NULL,
    low         NUMERIC     NOT NULL,
    close       NUMERIC     NOT NULL,
    volume      NUMERIC     NOT NULL,
    PRIMARY KEY (symbol, trade_date)
);

CREATE INDEX IF NOT EXISTS idx_bars_symbol_date
    ON bars (symbol, trade_date DESC);

CREATE TABLE IF NOT EXISTS model_artifacts (
    id              BIGSERIAL   PRIMARY KEY,
    symbol          TEXT        NOT NULL,
    version         INT         NOT NULL,
    horizon_days    INT         NOT NULL,
    feature_spec    TEXT        NOT NULL,
    trained_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    metrics_json    TEXT        NOT NULL DEFAULT '{}',
    artifact_format TEXT        NOT NULL,
    artifact_blob   BYTEA       NOT NULL,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (symbol, version)
);
`

type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type BarRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewBarRepository(pool PgxPool, tracer trace.Tracer) *BarRepository {
	return &BarRepository{pool: pool, tracer: tracer}
}

func (r *BarRepository) RunMigrations(ctx context.Context) error {
	_, span := r.tracer.Start(ctx, "bar-repo.run-migrations")
	defer span.End()

	_, err := r.pool.Exec(ctx, createBarsTable)
	return err
}

func (r *BarRepository) UpsertBars(ctx context.Context, bars domain.Series) error {
	if len(bars) == 0 {
		return nil
	}

	_, span := r.tracer.Start(ctx, "bar-repo.upsert-bars")
	defer span.End()

	batch := &pgx.Batch{}
	for _, b := range bars {
		batch.Queue(
			`INSERT INTO bars (symbol, trade_date, open, high, low, close, volume)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 ON CONFLICT (symbol, trade_date) DO UPDATE SET
			     open = EXCLUDED.open,
			     high = EXCLUDED.high,
			     low = EXCLUDED.low,
			     close = EXCLUDED.close,
			     volume = EXCLUDED.volume`,
			b.Symbol, b.Date, b.Open, b.High, b.Low, b.Close, b.Volume,
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range bars {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// ListBars returns up to limit most recent bars in ascending date order,
// ready for the feature pipeline.
func (r *BarRepository) ListBars(ctx context.Context, symbol string, limit int) (domain.Series, error) {
	_, span := r.tracer.Start(ctx, "bar-repo.list-bars")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT symbol, trade_date, open, high, low, close, volume
		 FROM bars
		 WHERE symbol = $1
		 ORDER BY trade_date DESC
		 LIMIT $2`,
		symbol, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bars, err := scanBars(rows)
	if err != nil {
		return nil, err
	}
	return domain.NormalizeSeries(bars), nil
}

func (r *BarRepository) ListBarsInRange(ctx context.Context, symbol string, from, to time.Time) (domain.Series, error) {
	_, span := r.tracer.Start(ctx, "bar-repo.list-bars-in-range")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT symbol, trade_date, open, high, low, close, volume
		 FROM bars
		 WHERE symbol = $1 AND trade_date >= $2 AND trade_date <= $3
		 ORDER BY trade_date ASC`,
		symbol, from, to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bars, err := scanBars(rows)
	if err != nil {
		return nil, err
	}
	return bars, rows.Err()
}

func scanBars(rows pgx.Rows) (domain.Series, error) {
	var bars domain.Series
	for rows.Next() {
		var b domain.Bar
		if err := rows.Scan(&b.Symbol, &b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, err
		}
		bars = append(bars, b)
	}
	return bars, rows.Err()
}
