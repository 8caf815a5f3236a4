package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sukuu-hq/sukuu/platform/tenant"
)

// ErrPlatformPartition is returned when a school-scoped operation runs while
// the platform partition is the active tenant.
var ErrPlatformPartition = errors.New("operation requires a school partition")

// txBeginner exposes the minimal pgx pool behaviour needed by SchoolDB.
type txBeginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// SchoolDB routes every storage operation through a transaction whose
// search_path (and role) is selected from the active tenant Space, so call
// sites never pass the school explicitly. Switching tenants means switching
// the partition handle, not filtering rows.
type SchoolDB struct {
	pool           txBeginner
	platformSchema string
}

type SchoolDBConfig struct {
	Pool           *pgxpool.Pool
	PlatformSchema string
}

func NewSchoolDB(cfg SchoolDBConfig) *SchoolDB {
	if cfg.Pool == nil {
		panic("SchoolDB requires pool")
	}

	platformSchema := strings.TrimSpace(cfg.PlatformSchema)
	if platformSchema == "" {
		panic("SchoolDB requires platform schema")
	}
	return &SchoolDB{pool: cfg.Pool, platformSchema: platformSchema}
}

// PlatformSchema returns the name of the platform partition schema.
func (db *SchoolDB) PlatformSchema() string {
	return db.platformSchema
}

// WithPlatform executes fn inside a transaction scoped to the platform
// schema only. For explicitly platform-scoped operations (school registry,
// domains, reference data); no active tenant is required.
func (db *SchoolDB) WithPlatform(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := db.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if _, err := tx.Exec(ctx, `SELECT set_config('search_path', $1, true)`, db.platformSchema); err != nil {
		return fmt.Errorf("set search_path: %w", err)
	}

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// WithSchool executes fn confined to the active school partition taken from
// ctx. It fails closed: no bound tenant is an error, and the platform
// partition is refused because school data never lives there.
func (db *SchoolDB) WithSchool(ctx context.Context, fn func(tx pgx.Tx) error) error {
	space, err := tenant.MustFromContext(ctx)
	if err != nil {
		return err
	}
	if space.Public {
		return ErrPlatformPartition
	}
	return db.ForSpace(ctx, space, fn)
}

// WithActive executes fn in whichever partition is bound to ctx: the
// platform schema for the public Space, the school schema otherwise. Used
// for entities that exist per partition, such as users.
func (db *SchoolDB) WithActive(ctx context.Context, fn func(tx pgx.Tx) error) error {
	space, err := tenant.MustFromContext(ctx)
	if err != nil {
		return err
	}
	if space.Public {
		return db.WithPlatform(ctx, fn)
	}
	return db.ForSpace(ctx, space, fn)
}

// ForSpace executes fn inside a transaction with SET LOCAL ROLE and
// search_path set to the given school partition plus the platform schema.
// The explicit-space form exists for provisioning and platform jobs that
// iterate schools; request handling goes through WithSchool/WithActive.
func (db *SchoolDB) ForSpace(ctx context.Context, space tenant.Space, fn func(tx pgx.Tx) error) error {
	if space.Public {
		return ErrPlatformPartition
	}
	if strings.TrimSpace(space.RoleName) == "" {
		return fmt.Errorf("school role is required in tenant.Space")
	}

	tx, err := db.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if _, err = tx.Exec(ctx, fmt.Sprintf("SET LOCAL ROLE %s", pgx.Identifier{space.RoleName}.Sanitize())); err != nil {
		return fmt.Errorf("set role: %w", err)
	}

	searchPath := fmt.Sprintf("%s, %s", space.SchemaName, db.platformSchema)
	if _, err = tx.Exec(ctx, `SELECT set_config('search_path', $1, true)`, searchPath); err != nil {
		return fmt.Errorf("set search_path: %w", err)
	}

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
