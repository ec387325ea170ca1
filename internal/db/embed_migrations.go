package db

import "embed"

// MigrationFS embeds SQL migration files from internal/db/migrations.
// Applied at startup by the migrate runner when a database is configured.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
