// Package registry persists versioned model bundles per symbol. The
// artifact blob is opaque here; encoding and decoding belong to the
// ensemble package.
package registry

import (
	"context"
	"errors"
	"time"

	"stocksense/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/trace"
)

type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type Repository struct {
	pool   pool
	tracer trace.Tracer
}

func NewRepository(pool pool, tracer trace.Tracer) *Repository {
	return &Repository{pool: pool, tracer: tracer}
}

func (r *Repository) NextVersion(ctx context.Context, symbol string) (int, error) {
	_, span := r.tracer.Start(ctx, "model-registry.next-version")
	defer span.End()

	var version int
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(MAX(version), 0) + 1 FROM model_artifacts WHERE symbol = $1`, symbol).Scan(&version)
	return version, err
}

func (r *Repository) Insert(ctx context.Context, artifact domain.ModelArtifact) (*domain.ModelArtifact, error) {
	_, span := r.tracer.Start(ctx, "model-registry.insert")
	defer span.End()

	if artifact.Symbol == "" || artifact.Version <= 0 {
		return nil, errors.New("invalid model artifact payload")
	}
	if len(artifact.ArtifactBlob) == 0 {
		return nil, errors.New("empty artifact blob")
	}
	var out domain.ModelArtifact
	err := r.pool.QueryRow(ctx, `
INSERT INTO model_artifacts (
    symbol, version, horizon_days, feature_spec,
    trained_at, metrics_json,
    artifact_format, artifact_blob
) VALUES (
    $1, $2, $3, $4,
    COALESCE($5, NOW()), $6,
    $7, $8
)
RETURNING id, symbol, version, horizon_days, feature_spec,
          trained_at, metrics_json,
          artifact_format, artifact_blob, created_at`,
		artifact.Symbol,
		artifact.Version,
		artifact.HorizonDays,
		artifact.FeatureSpec,
		nullIfZeroTime(artifact.TrainedAt),
		fallbackJSON(artifact.MetricsJSON),
		artifact.ArtifactFormat,
		artifact.ArtifactBlob,
	).Scan(
		&out.ID,
		&out.Symbol,
		&out.Version,
		&out.HorizonDays,
		&out.FeatureSpec,
		&out.TrainedAt,
		&out.MetricsJSON,
		&out.ArtifactFormat,
		&out.ArtifactBlob,
		&out.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	normalizeArtifactTimes(&out)
	return &out, nil
}

// GetLatest returns the newest artifact for a symbol, or nil when the
// symbol has never been trained.
func (r *Repository) GetLatest(ctx context.Context, symbol string) (*domain.ModelArtifact, error) {
	_, span := r.tracer.Start(ctx, "model-registry.get-latest")
	defer span.End()

	var out domain.ModelArtifact
	err := r.pool.QueryRow(ctx, `
SELECT id, symbol, version, horizon_days, feature_spec,
       trained_at, metrics_json,
       artifact_format, artifact_blob, created_at
FROM model_artifacts
WHERE symbol = $1
ORDER BY version DESC
LIMIT 1`, symbol).Scan(
		&out.ID,
		&out.Symbol,
		&out.Version,
		&out.HorizonDays,
		&out.FeatureSpec,
		&out.TrainedAt,
		&out.MetricsJSON,
		&out.ArtifactFormat,
		&out.ArtifactBlob,
		&out.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	normalizeArtifactTimes(&out)
	return &out, nil
}

// ListLatest returns the newest artifact of every trained symbol, used
// to warm the predictor at startup.
func (r *Repository) ListLatest(ctx context.Context) ([]domain.ModelArtifact, error) {
	_, span := r.tracer.Start(ctx, "model-registry.list-latest")
	defer span.End()

	pgRows, err := r.pool.Query(ctx, `
SELECT DISTINCT ON (symbol)
       id, symbol, version, horizon_days, feature_spec,
       trained_at, metrics_json,
       artifact_format, artifact_blob, created_at
FROM model_artifacts
ORDER BY symbol, version DESC`)
	if err != nil {
		return nil, err
	}
	defer pgRows.Close()

	var out []domain.ModelArtifact
	for pgRows.Next() {
		var a domain.ModelArtifact
		if err := pgRows.Scan(
			&a.ID,
			&a.Symbol,
			&a.Version,
			&a.HorizonDays,
			&a.FeatureSpec,
			&a.TrainedAt,
			&a.MetricsJSON,
			&a.ArtifactFormat,
			&a.ArtifactBlob,
			&a.CreatedAt,
		); err != nil {
			return nil, err
		}
		normalizeArtifactTimes(&a)
		out = append(out, a)
	}
	return out, pgRows.Err()
}

// Prune drops artifact versions older than the newest keep versions per
// symbol, bounding table growth across retrains.
func (r *Repository) Prune(ctx context.Context, symbol string, keep int) (int64, error) {
	_, span := r.tracer.Start(ctx, "model-registry.prune")
	defer span.End()

	if keep < 1 {
		keep = 1
	}
	tag, err := r.pool.Exec(ctx, `
DELETE FROM model_artifacts
WHERE symbol = $1 AND version <= (
    SELECT COALESCE(MAX(version), 0) - $2 FROM model_artifacts WHERE symbol = $1
)`, symbol, keep)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func normalizeArtifactTimes(a *domain.ModelArtifact) {
	a.TrainedAt = a.TrainedAt.UTC()
	a.CreatedAt = a.CreatedAt.UTC()
}

func fallbackJSON(v string) string {
	if v == "" {
		return "{}"
	}
	return v
}

func nullIfZeroTime(v time.Time) any {
	if v.IsZero() {
		return nil
	}
	return v.UTC()
}
