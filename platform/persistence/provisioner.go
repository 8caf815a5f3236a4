package persistence

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	sqlassets "github.com/sukuu-hq/sukuu/database"
	"github.com/sukuu-hq/sukuu/platform/tenant"
)

// Provisioner creates and destroys school partitions: a NOLOGIN role, a
// schema owned by it, grants into the platform schema's reference tables,
// and the per-partition base tables. Creations and drops for the same schema
// are serialized with a Postgres advisory transaction lock, so two
// concurrent provisions of one identifier cannot interleave.
type Provisioner struct {
	pool           *pgxpool.Pool
	platformSchema string
	db             *SchoolDB
}

func NewProvisioner(pool *pgxpool.Pool, platformSchema string) *Provisioner {
	if pool == nil {
		panic("provisioner requires pool")
	}

	platformSchema = strings.TrimSpace(platformSchema)
	if platformSchema == "" {
		panic("provisioner requires platform schema")
	}

	return &Provisioner{
		pool:           pool,
		platformSchema: platformSchema,
		db: NewSchoolDB(SchoolDBConfig{
			Pool:           pool,
			PlatformSchema: platformSchema,
		}),
	}
}

// EnsureSchool provisions the partition described by space. It is
// idempotent: existing roles, schemas and tables are left alone.
func (p *Provisioner) EnsureSchool(ctx context.Context, space tenant.Space) error {
	if space.Public {
		return ErrPlatformPartition
	}
	if err := p.ensureRoleSchemaAndGrants(ctx, space); err != nil {
		return err
	}
	return p.ensureBaseTables(ctx, space)
}

// DropSchool destroys the partition and everything in it. Irreversible;
// callers gate it behind explicit confirmation.
func (p *Provisioner) DropSchool(ctx context.Context, space tenant.Space) error {
	if space.Public {
		return ErrPlatformPartition
	}

	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := lockSchema(ctx, tx, space.SchemaName); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, "DROP SCHEMA IF EXISTS "+pgx.Identifier{space.SchemaName}.Sanitize()+" CASCADE"); err != nil {
		return fmt.Errorf("drop schema: %w", err)
	}

	var roleExists bool
	if err := tx.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM pg_roles WHERE rolname = $1)", space.RoleName).Scan(&roleExists); err != nil {
		return fmt.Errorf("check role existence: %w", err)
	}
	if roleExists {
		// Default-privilege entries survive the schema drop and block DROP ROLE.
		if _, err := tx.Exec(ctx, "DROP OWNED BY "+pgx.Identifier{space.RoleName}.Sanitize()); err != nil {
			return fmt.Errorf("drop owned: %w", err)
		}
		if _, err := tx.Exec(ctx, "DROP ROLE "+pgx.Identifier{space.RoleName}.Sanitize()); err != nil {
			return fmt.Errorf("drop role: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (p *Provisioner) ensureRoleSchemaAndGrants(ctx context.Context, space tenant.Space) error {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := lockSchema(ctx, tx, space.SchemaName); err != nil {
		return err
	}

	role := pgx.Identifier{space.RoleName}.Sanitize()
	schema := pgx.Identifier{space.SchemaName}.Sanitize()
	platform := pgx.Identifier{p.platformSchema}.Sanitize()

	// Create the role only if missing to avoid aborting the transaction.
	var roleExists bool
	if err := tx.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM pg_roles WHERE rolname = $1)", space.RoleName).Scan(&roleExists); err != nil {
		return fmt.Errorf("check role existence: %w", err)
	}
	if !roleExists {
		if _, err := tx.Exec(ctx, fmt.Sprintf("CREATE ROLE %s NOLOGIN", role)); err != nil {
			return fmt.Errorf("create role: %w", err)
		}
	}

	if _, err := tx.Exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s AUTHORIZATION %s", schema, role)); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	// The application role must be able to assume the school role for
	// SET LOCAL ROLE in SchoolDB.
	if _, err := tx.Exec(ctx, fmt.Sprintf("GRANT %s TO CURRENT_USER", role)); err != nil {
		return fmt.Errorf("grant school role to app user: %w", err)
	}

	if _, err := tx.Exec(ctx, fmt.Sprintf("GRANT USAGE ON SCHEMA %s TO %s", schema, role)); err != nil {
		return fmt.Errorf("grant usage school schema: %w", err)
	}
	if _, err := tx.Exec(ctx, fmt.Sprintf("GRANT USAGE ON SCHEMA %s TO %s", platform, role)); err != nil {
		return fmt.Errorf("grant usage platform schema: %w", err)
	}

	// Reference data stays readable from school partitions; everything else
	// in the platform schema is unreachable for the school role.
	for _, table := range []string{"regions", "districts"} {
		ref := pgx.Identifier{p.platformSchema, table}.Sanitize()
		if _, err := tx.Exec(ctx, fmt.Sprintf("GRANT SELECT ON %s TO %s", ref, role)); err != nil {
			return fmt.Errorf("grant select %s: %w", table, err)
		}
		if _, err := tx.Exec(ctx, fmt.Sprintf("GRANT REFERENCES ON %s TO %s", ref, role)); err != nil {
			return fmt.Errorf("grant references %s: %w", table, err)
		}
	}

	// Apply default privileges while scoped to the school role, contained
	// within the same admin-owned transaction.
	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL ROLE %s", role)); err != nil {
		return fmt.Errorf("set local role: %w", err)
	}
	if _, err := tx.Exec(ctx, fmt.Sprintf("ALTER DEFAULT PRIVILEGES IN SCHEMA %s GRANT ALL ON TABLES TO %s", schema, role)); err != nil {
		return fmt.Errorf("default privs tables: %w", err)
	}
	if _, err := tx.Exec(ctx, fmt.Sprintf("ALTER DEFAULT PRIVILEGES IN SCHEMA %s GRANT ALL ON SEQUENCES TO %s", schema, role)); err != nil {
		return fmt.Errorf("default privs sequences: %w", err)
	}

	return tx.Commit(ctx)
}

func (p *Provisioner) ensureBaseTables(ctx context.Context, space tenant.Space) error {
	return p.db.ForSpace(ctx, space, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1
				FROM pg_class c
				JOIN pg_namespace n ON n.oid = c.relnamespace
				WHERE n.nspname = $1 AND c.relname = 'users'
			)`, space.SchemaName).Scan(&exists); err != nil {
			return fmt.Errorf("check users table: %w", err)
		}
		if exists {
			return nil
		}
		for _, stmt := range splitStatements(sqlassets.UsersSQL) {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("ensure base users table: %w", err)
			}
		}
		return nil
	})
}

func lockSchema(ctx context.Context, tx pgx.Tx, schemaName string) error {
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", schemaName); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}
	return nil
}

// MediaProvisioner creates per-school media prefixes under BasePath, for
// branding assets (logos). Local filesystem only; object storage backends
// are wired by the deployment layer.
type MediaProvisioner struct {
	BasePath string
}

func NewMediaProvisioner(basePath string) *MediaProvisioner {
	if basePath == "" {
		panic("media provisioner requires basePath")
	}
	return &MediaProvisioner{BasePath: basePath}
}

// Ensure creates the school's media directory; idempotent.
func (p *MediaProvisioner) Ensure(ctx context.Context, prefix string) error {
	if prefix == "" {
		return fmt.Errorf("media prefix is required")
	}
	if err := os.MkdirAll(filepath.Join(p.BasePath, prefix), 0o755); err != nil {
		return fmt.Errorf("create media prefix: %w", err)
	}
	return nil
}

// Remove deletes the school's media directory tree.
func (p *MediaProvisioner) Remove(ctx context.Context, prefix string) error {
	if prefix == "" {
		return fmt.Errorf("media prefix is required")
	}
	if err := os.RemoveAll(filepath.Join(p.BasePath, prefix)); err != nil {
		return fmt.Errorf("remove media prefix: %w", err)
	}
	return nil
}
