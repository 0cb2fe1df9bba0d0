package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/trace"
)

const createSSHUsersTable = `
CREATE TABLE IF NOT EXISTS ssh_users (
	id BIGSERIAL PRIMARY KEY,
	username TEXT NOT NULL,
	fingerprint TEXT NOT NULL UNIQUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_login_at TIMESTAMPTZ
);
`

// SSHUser is a terminal dashboard account, identified by public key
// fingerprint.
type SSHUser struct {
	ID          int64
	Username    string
	Fingerprint string
	CreatedAt   time.Time
	LastLoginAt *time.Time
}

type sshPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type SSHUserRepository struct {
	pool   sshPool
	tracer trace.Tracer
}

func NewSSHUserRepository(pool sshPool, tracer trace.Tracer) *SSHUserRepository {
	return &SSHUserRepository{pool: pool, tracer: tracer}
}

func (r *SSHUserRepository) RunMigrations(ctx context.Context) error {
	_, span := r.tracer.Start(ctx, "ssh-user-repo.run-migrations")
	defer span.End()

	_, err := r.pool.Exec(ctx, createSSHUsersTable)
	return err
}

// Register inserts a user, or updates the username if the fingerprint is
// already known.
func (r *SSHUserRepository) Register(ctx context.Context, username, fingerprint string) (*SSHUser, error) {
	_, span := r.tracer.Start(ctx, "ssh-user-repo.register")
	defer span.End()

	var u SSHUser
	err := r.pool.QueryRow(ctx,
		`INSERT INTO ssh_users (username, fingerprint) VALUES ($1, $2)
		 ON CONFLICT (fingerprint) DO UPDATE SET username = EXCLUDED.username
		 RETURNING id, username, fingerprint, created_at, last_login_at`,
		username, fingerprint,
	).Scan(&u.ID, &u.Username, &u.Fingerprint, &u.CreatedAt, &u.LastLoginAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *SSHUserRepository) FindByFingerprint(ctx context.Context, fingerprint string) (*SSHUser, error) {
	_, span := r.tracer.Start(ctx, "ssh-user-repo.find-by-fingerprint")
	defer span.End()

	var u SSHUser
	err := r.pool.QueryRow(ctx,
		`SELECT id, username, fingerprint, created_at, last_login_at
		 FROM ssh_users WHERE fingerprint = $1`,
		fingerprint,
	).Scan(&u.ID, &u.Username, &u.Fingerprint, &u.CreatedAt, &u.LastLoginAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *SSHUserRepository) UpdateLastLogin(ctx context.Context, id int64) error {
	_, span := r.tracer.Start(ctx, "ssh-user-repo.update-last-login")
	defer span.End()

	_, err := r.pool.Exec(ctx, `UPDATE ssh_users SET last_login_at = now() WHERE id = $1`, id)
	return err
}
