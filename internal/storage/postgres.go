package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

var _ KV = (*PostgresKV)(nil)

// PgxQuerier is the subset of *pgxpool.Pool used here, so tests can pass a
// pgxmock pool.
type PgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresKV persists blobs in the kv_store table created by the migrations
// in app/db/migrations.
type PostgresKV struct {
	pool      PgxQuerier
	namespace string
	logger    *slog.Logger
}

func NewPostgresKV(pool PgxQuerier, namespace string, logger *slog.Logger) *PostgresKV {
	return &PostgresKV{pool: pool, namespace: namespace, logger: logger}
}

func (r *PostgresKV) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, span := otel.Tracer("KVRepo").Start(ctx, "Get", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "kv_store"),
		attribute.String("kv.key", key),
	))
	defer span.End()

	var value []byte
	err := r.pool.QueryRow(ctx,
		`SELECT value FROM kv_store WHERE namespace = $1 AND key = $2`,
		r.namespace, key,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Ok, "Key not found")
			return nil, ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to read key", slog.String("key", key), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB SELECT failed")
		return nil, fmt.Errorf("database error reading %s: %w", key, err)
	}
	span.SetStatus(codes.Ok, "Key read")
	return value, nil
}

func (r *PostgresKV) Set(ctx context.Context, key string, value []byte) error {
	ctx, span := otel.Tracer("KVRepo").Start(ctx, "Set", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "UPSERT"),
		attribute.String("db.sql.table", "kv_store"),
		attribute.String("kv.key", key),
		attribute.Int("kv.value_bytes", len(value)),
	))
	defer span.End()

	_, err := r.pool.Exec(ctx, `
		INSERT INTO kv_store (namespace, key, value, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (namespace, key)
		DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		r.namespace, key, value,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to write key", slog.String("key", key), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB UPSERT failed")
		return fmt.Errorf("database error writing %s: %w", key, err)
	}
	span.SetStatus(codes.Ok, "Key written")
	return nil
}
