package database

import (
	"context"
	"fmt"
)

// Migrations run in order on every start; each statement is idempotent.
var migrations = []struct {
	name  string
	query string
}{
	{"research_jobs table", `
		CREATE TABLE IF NOT EXISTS research_jobs (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			topic TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			config JSONB,
			report TEXT,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)`},
	{"research_logs table", `
		CREATE TABLE IF NOT EXISTS research_logs (
			id SERIAL PRIMARY KEY,
			job_id UUID NOT NULL REFERENCES research_jobs(id) ON DELETE CASCADE,
			timestamp TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			level TEXT NOT NULL,
			message TEXT NOT NULL,
			metadata JSONB
		)`},
	{"index on research_logs", "CREATE INDEX IF NOT EXISTS idx_research_logs_job_id ON research_logs(job_id)"},
	{"index on research_jobs", "CREATE INDEX IF NOT EXISTS idx_research_jobs_created_at ON research_jobs(created_at DESC)"},
	{"state column", "ALTER TABLE research_jobs ADD COLUMN IF NOT EXISTS state JSONB"},
	{"breadth column", "ALTER TABLE research_jobs ADD COLUMN IF NOT EXISTS breadth INTEGER NOT NULL DEFAULT 4"},
	{"depth column", "ALTER TABLE research_jobs ADD COLUMN IF NOT EXISTS depth INTEGER NOT NULL DEFAULT 2"},
	{"findings column", "ALTER TABLE research_jobs ADD COLUMN IF NOT EXISTS findings JSONB"},
	{"visited_urls column", "ALTER TABLE research_jobs ADD COLUMN IF NOT EXISTS visited_urls JSONB"},
	{"error column", "ALTER TABLE research_jobs ADD COLUMN IF NOT EXISTS error TEXT"},
}

func (db *PostgresDB) InitSchema(ctx context.Context) error {
	for _, m := range migrations {
		if _, err := db.Pool.Exec(ctx, m.query); err != nil {
			return fmt.Errorf("failed to apply %s: %w", m.name, err)
		}
	}
	return nil
}
