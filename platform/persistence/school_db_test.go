package persistence

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/sukuu-hq/sukuu/platform/tenant"
)

// fakeTx satisfies pgx.Tx and records Exec statements invoked.
type fakeTx struct {
	stmts     []string
	committed bool
	rolled    bool
}

func (f *fakeTx) Begin(ctx context.Context) (pgx.Tx, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeTx) Commit(ctx context.Context) error   { f.committed = true; return nil }
func (f *fakeTx) Rollback(ctx context.Context) error { f.rolled = true; return nil }
func (f *fakeTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, errors.New("not implemented")
}
func (f *fakeTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (f *fakeTx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (f *fakeTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return &pgconn.StatementDescription{}, errors.New("not implemented")
}
func (f *fakeTx) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeTx) QueryRow(context.Context, string, ...any) pgx.Row { return nil }
func (f *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.stmts = append(f.stmts, sql)
	return pgconn.CommandTag{}, nil
}
func (f *fakeTx) Conn() *pgx.Conn { return nil }

// fakePool returns a preconstructed transaction.
type fakePool struct{ tx *fakeTx }

func (p *fakePool) BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error) {
	return p.tx, nil
}

func schoolSpace() tenant.Space {
	return tenant.Space{
		Slug:       "st-marys",
		SchemaName: "dev__school_st_marys",
		RoleName:   "dev__school_st_marys_role",
	}
}

func TestSchoolDBWithPlatformSetsOnlySearchPath(t *testing.T) {
	ftx := &fakeTx{}
	db := &SchoolDB{pool: &fakePool{tx: ftx}, platformSchema: "public"}

	err := db.WithPlatform(context.Background(), func(tx pgx.Tx) error { return nil })
	require.NoError(t, err)
	require.Len(t, ftx.stmts, 1)
	require.Contains(t, strings.ToLower(ftx.stmts[0]), "set_config('search_path'")
	require.True(t, ftx.committed)
}

func TestSchoolDBForSpaceSetsRoleAndSearchPath(t *testing.T) {
	ftx := &fakeTx{}
	db := &SchoolDB{pool: &fakePool{tx: ftx}, platformSchema: "public"}

	err := db.ForSpace(context.Background(), schoolSpace(), func(tx pgx.Tx) error { return nil })
	require.NoError(t, err)
	require.Len(t, ftx.stmts, 2)
	require.Contains(t, ftx.stmts[0], `SET LOCAL ROLE "dev__school_st_marys_role"`)
	require.Contains(t, ftx.stmts[1], "set_config('search_path'")
}

func TestSchoolDBForSpaceMissingRole(t *testing.T) {
	db := &SchoolDB{pool: &fakePool{tx: &fakeTx{}}, platformSchema: "public"}

	space := schoolSpace()
	space.RoleName = ""
	err := db.ForSpace(context.Background(), space, func(tx pgx.Tx) error { return nil })
	require.Error(t, err)
	require.Contains(t, err.Error(), "role is required")
}

func TestSchoolDBForSpaceRejectsPublicSpace(t *testing.T) {
	db := &SchoolDB{pool: &fakePool{tx: &fakeTx{}}, platformSchema: "public"}

	err := db.ForSpace(context.Background(), tenant.PublicSpace("public"), func(tx pgx.Tx) error { return nil })
	require.ErrorIs(t, err, ErrPlatformPartition)
}

func TestSchoolDBWithSchoolFailsClosedWithoutBinding(t *testing.T) {
	db := &SchoolDB{pool: &fakePool{tx: &fakeTx{}}, platformSchema: "public"}

	err := db.WithSchool(context.Background(), func(tx pgx.Tx) error { return nil })
	require.ErrorIs(t, err, tenant.ErrNoActiveTenant)
}

func TestSchoolDBWithSchoolRejectsPublicBinding(t *testing.T) {
	db := &SchoolDB{pool: &fakePool{tx: &fakeTx{}}, platformSchema: "public"}

	ctx := tenant.WithSpace(context.Background(), tenant.PublicSpace("public"))
	err := db.WithSchool(ctx, func(tx pgx.Tx) error { return nil })
	require.ErrorIs(t, err, ErrPlatformPartition)
}

func TestSchoolDBWithActiveRoutesByPartition(t *testing.T) {
	// Public binding goes to the platform schema without a role switch.
	ftx := &fakeTx{}
	db := &SchoolDB{pool: &fakePool{tx: ftx}, platformSchema: "public"}

	ctx := tenant.WithSpace(context.Background(), tenant.PublicSpace("public"))
	err := db.WithActive(ctx, func(tx pgx.Tx) error { return nil })
	require.NoError(t, err)
	require.Len(t, ftx.stmts, 1)

	// School binding assumes the partition role.
	ftx2 := &fakeTx{}
	db2 := &SchoolDB{pool: &fakePool{tx: ftx2}, platformSchema: "public"}

	ctx2 := tenant.WithSpace(context.Background(), schoolSpace())
	err = db2.WithActive(ctx2, func(tx pgx.Tx) error { return nil })
	require.NoError(t, err)
	require.Len(t, ftx2.stmts, 2)
	require.Contains(t, ftx2.stmts[0], "SET LOCAL ROLE")
}

func TestSchoolDBCallbackErrorSkipsCommit(t *testing.T) {
	ftx := &fakeTx{}
	db := &SchoolDB{pool: &fakePool{tx: ftx}, platformSchema: "public"}

	boom := errors.New("boom")
	err := db.WithPlatform(context.Background(), func(tx pgx.Tx) error { return boom })
	require.ErrorIs(t, err, boom)
	require.False(t, ftx.committed)
}
