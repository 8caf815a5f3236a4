package persistence

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	sqlassets "github.com/sukuu-hq/sukuu/database"
)

// BootstrapPlatformSchema creates the platform schema (if missing) and
// applies the platform DDL in a single transaction, in this order:
//  1. platform/reference.sql (regions, districts)
//  2. platform/schools.sql (registry + domain bindings)
//  3. school/users.sql (platform-partition users)
//
// SQL is embedded at build time so binaries stay self-contained. The helper
// is idempotent and intended for CLI bootstrap and tests.
func BootstrapPlatformSchema(ctx context.Context, pool *pgxpool.Pool, platformSchema string) error {
	if pool == nil {
		return fmt.Errorf("bootstrap platform schema: pool is required")
	}
	if platformSchema == "" {
		return fmt.Errorf("bootstrap platform schema: schema name is required")
	}

	var statements []string
	statements = append(statements, splitStatements(sqlassets.ReferenceSQL)...)
	statements = append(statements, splitStatements(sqlassets.SchoolsSQL)...)
	statements = append(statements, splitStatements(sqlassets.UsersSQL)...)

	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if _, err := tx.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+pgx.Identifier{platformSchema}.Sanitize()); err != nil {
		return fmt.Errorf("create platform schema: %w", err)
	}

	if _, err := tx.Exec(ctx, `SELECT set_config('search_path', $1, true)`, platformSchema); err != nil {
		return fmt.Errorf("set search_path: %w", err)
	}

	for _, stmt := range statements {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply ddl: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func splitStatements(blob string) []string {
	raw := strings.Split(blob, ";")
	statements := make([]string, 0, len(raw))
	for _, stmt := range raw {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		statements = append(statements, stmt)
	}
	return statements
}
