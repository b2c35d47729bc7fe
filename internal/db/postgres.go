package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

func Init(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS workflows (
            id UUID PRIMARY KEY,
            tenant_id UUID NOT NULL,
            name TEXT NOT NULL,
            resource_class TEXT NOT NULL,
            prompts JSONB NOT NULL,
            status TEXT NOT NULL DEFAULT 'active',
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE TABLE IF NOT EXISTS executions (
            id UUID PRIMARY KEY,
            workflow_id UUID NOT NULL REFERENCES workflows(id),
            tenant_id UUID NOT NULL,
            status TEXT NOT NULL,
            resource_class TEXT NOT NULL,
            queue_name TEXT NOT NULL DEFAULT 'default',
            items JSONB NOT NULL,
            succeeded INT NOT NULL DEFAULT 0,
            failed INT NOT NULL DEFAULT 0,
            total INT NOT NULL DEFAULT 0,
            cost_cents BIGINT NOT NULL DEFAULT 0,
            revenue_cents BIGINT NOT NULL DEFAULT 0,
            error TEXT,
            dedup_key TEXT UNIQUE,
            started_at TIMESTAMPTZ,
            completed_at TIMESTAMPTZ,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE TABLE IF NOT EXISTS batch_result_items (
            id UUID PRIMARY KEY,
            execution_id UUID NOT NULL REFERENCES executions(id),
            item_index INT NOT NULL,
            status TEXT NOT NULL,
            result_url TEXT,
            error TEXT,
            cost_cents BIGINT NOT NULL DEFAULT 0,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            settled_at TIMESTAMPTZ
        );`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_batch_result_items_exec_index
            ON batch_result_items(execution_id, item_index);`,
		`CREATE TABLE IF NOT EXISTS workflow_schedules (
            id UUID PRIMARY KEY,
            workflow_id UUID NOT NULL REFERENCES workflows(id),
            tenant_id UUID NOT NULL,
            cron_expr TEXT NOT NULL,
            timezone TEXT NOT NULL DEFAULT 'UTC',
            enabled BOOLEAN NOT NULL DEFAULT TRUE,
            last_triggered_at TIMESTAMPTZ,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE INDEX IF NOT EXISTS idx_executions_status_updated
            ON executions(status, updated_at);`,
	}
	for _, q := range ddl {
		if _, err := pool.Exec(ctx, q); err != nil {
			return err
		}
	}
	return nil
}
