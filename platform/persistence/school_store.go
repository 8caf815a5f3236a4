package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Registry sentinel errors.
var (
	ErrSchoolNotFound = errors.New("school not found")
	ErrSlugConflict   = errors.New("school slug already exists")
	ErrDomainConflict = errors.New("domain already bound")
	ErrDomainNotFound = errors.New("domain not found")
)

// SchoolRecord represents a row in the school registry. The registry lives
// in the platform schema and is reachable regardless of the active tenant.
type SchoolRecord struct {
	SchoolID        uuid.UUID
	Slug            string
	Name            string
	ShortName       string
	EducationSystem string
	Email           string
	Phone           string
	Address         string
	City            string
	RegionID        *int32
	DistrictID      *int32
	SchemaName      string
	RoleName        string
	MediaPrefix     string
	IsActive        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// DomainRecord binds a hostname to exactly one school.
type DomainRecord struct {
	Domain    string
	SchoolID  uuid.UUID
	IsPrimary bool
}

const schoolColumns = `school_id, slug, name, short_name, education_system, email, phone,
        address, city, region_id, district_id, schema_name, role_name, media_prefix,
        is_active, created_at, updated_at`

// SchoolStore provides access to the school registry and its domain
// bindings. All queries are qualified with the platform schema so they work
// under any search_path.
type SchoolStore struct {
	pool           *pgxpool.Pool
	schoolsTable   string
	domainsTable   string
	platformSchema string
}

// NewSchoolStore creates a store; assumes bootstrap already created the tables.
func NewSchoolStore(pool *pgxpool.Pool, platformSchema string) (*SchoolStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	if platformSchema == "" {
		return nil, errors.New("platform schema is required")
	}
	return &SchoolStore{
		pool:           pool,
		platformSchema: platformSchema,
		schoolsTable:   pgx.Identifier{platformSchema, "schools"}.Sanitize(),
		domainsTable:   pgx.Identifier{platformSchema, "school_domains"}.Sanitize(),
	}, nil
}

// Create inserts a new registry row.
func (s *SchoolStore) Create(ctx context.Context, rec SchoolRecord) (SchoolRecord, error) {
	if rec.SchoolID == uuid.Nil {
		return SchoolRecord{}, errors.New("school id is required")
	}

	query := fmt.Sprintf(`
        INSERT INTO %s (
            school_id, slug, name, short_name, education_system, email, phone,
            address, city, region_id, district_id, schema_name, role_name,
            media_prefix, is_active
        ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,TRUE)
        RETURNING %s
    `, s.schoolsTable, schoolColumns)

	row := s.pool.QueryRow(ctx, query,
		rec.SchoolID, rec.Slug, rec.Name, rec.ShortName, rec.EducationSystem,
		rec.Email, rec.Phone, rec.Address, rec.City, rec.RegionID, rec.DistrictID,
		rec.SchemaName, rec.RoleName, rec.MediaPrefix,
	)

	out, err := scanSchoolRecord(row)
	if err != nil {
		if isUniqueViolation(err) {
			return SchoolRecord{}, ErrSlugConflict
		}
		return SchoolRecord{}, err
	}
	return out, nil
}

// Get fetches an active school by id.
func (s *SchoolStore) Get(ctx context.Context, id uuid.UUID) (SchoolRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE school_id = $1 AND is_active = TRUE`,
		schoolColumns, s.schoolsTable)
	return scanSchoolRecord(s.pool.QueryRow(ctx, query, id))
}

// GetBySlug fetches an active school by slug.
func (s *SchoolStore) GetBySlug(ctx context.Context, slug string) (SchoolRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE slug = $1 AND is_active = TRUE`,
		schoolColumns, s.schoolsTable)
	return scanSchoolRecord(s.pool.QueryRow(ctx, query, slug))
}

// GetByDomain fetches the active school bound to an exact hostname.
func (s *SchoolStore) GetByDomain(ctx context.Context, domain string) (SchoolRecord, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM %s sc
        JOIN %s d ON d.school_id = sc.school_id
        WHERE d.domain = $1 AND sc.is_active = TRUE
    `, qualifyColumns("sc", schoolColumns), s.schoolsTable, s.domainsTable)
	return scanSchoolRecord(s.pool.QueryRow(ctx, query, domain))
}

// ListActive returns paginated active schools.
func (s *SchoolStore) ListActive(ctx context.Context, limit, offset int) ([]SchoolRecord, int, error) {
	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE is_active = TRUE", s.schoolsTable)
	if err := s.pool.QueryRow(ctx, countQuery).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE is_active = TRUE
        ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		schoolColumns, s.schoolsTable, limit, offset)

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var records []SchoolRecord
	for rows.Next() {
		rec, err := scanSchoolRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, err
	}

	return records, total, nil
}

// UpdateProfileParams captures the mutable branding/contact fields.
type UpdateProfileParams struct {
	Name            *string
	ShortName       *string
	EducationSystem *string
	Email           *string
	Phone           *string
	Address         *string
	City            *string
	RegionID        *int32
	DistrictID      *int32
}

// UpdateProfile applies the provided fields and returns the updated row.
func (s *SchoolStore) UpdateProfile(ctx context.Context, id uuid.UUID, params UpdateProfileParams) (SchoolRecord, error) {
	setParts := []string{}
	var args []any

	appendSet := func(column string, value any) {
		args = append(args, value)
		setParts = append(setParts, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if params.Name != nil {
		appendSet("name", *params.Name)
	}
	if params.ShortName != nil {
		appendSet("short_name", *params.ShortName)
	}
	if params.EducationSystem != nil {
		appendSet("education_system", *params.EducationSystem)
	}
	if params.Email != nil {
		appendSet("email", *params.Email)
	}
	if params.Phone != nil {
		appendSet("phone", *params.Phone)
	}
	if params.Address != nil {
		appendSet("address", *params.Address)
	}
	if params.City != nil {
		appendSet("city", *params.City)
	}
	if params.RegionID != nil {
		appendSet("region_id", *params.RegionID)
	}
	if params.DistrictID != nil {
		appendSet("district_id", *params.DistrictID)
	}

	if len(setParts) == 0 {
		return SchoolRecord{}, errors.New("no fields to update")
	}

	args = append(args, id)
	query := fmt.Sprintf(`
        UPDATE %s SET %s, updated_at = NOW()
        WHERE school_id = $%d AND is_active = TRUE
        RETURNING %s
    `, s.schoolsTable, joinComma(setParts), len(args), schoolColumns)

	return scanSchoolRecord(s.pool.QueryRow(ctx, query, args...))
}

// Delete removes the registry row (and its domain bindings via cascade).
// Partition teardown is the provisioner's job; callers drop the schema first.
func (s *SchoolStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE school_id = $1", s.schoolsTable), id)
	if err != nil {
		return fmt.Errorf("delete school: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSchoolNotFound
	}
	return nil
}

// AddDomain binds a hostname to a school. When isPrimary is set, any other
// primary binding for the school is demoted in the same transaction.
func (s *SchoolStore) AddDomain(ctx context.Context, rec DomainRecord) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if rec.IsPrimary {
		demote := fmt.Sprintf("UPDATE %s SET is_primary = FALSE WHERE school_id = $1", s.domainsTable)
		if _, err := tx.Exec(ctx, demote, rec.SchoolID); err != nil {
			return fmt.Errorf("demote primary domain: %w", err)
		}
	}

	insert := fmt.Sprintf("INSERT INTO %s (domain, school_id, is_primary) VALUES ($1, $2, $3)", s.domainsTable)
	if _, err := tx.Exec(ctx, insert, rec.Domain, rec.SchoolID, rec.IsPrimary); err != nil {
		if isUniqueViolation(err) {
			return ErrDomainConflict
		}
		return fmt.Errorf("insert domain: %w", err)
	}

	return tx.Commit(ctx)
}

// RemoveDomain drops a hostname binding.
func (s *SchoolStore) RemoveDomain(ctx context.Context, domain string) error {
	tag, err := s.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE domain = $1", s.domainsTable), domain)
	if err != nil {
		return fmt.Errorf("delete domain: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDomainNotFound
	}
	return nil
}

// ListDomains returns all bindings for a school, primary first.
func (s *SchoolStore) ListDomains(ctx context.Context, schoolID uuid.UUID) ([]DomainRecord, error) {
	query := fmt.Sprintf(`SELECT domain, school_id, is_primary FROM %s
        WHERE school_id = $1 ORDER BY is_primary DESC, domain`, s.domainsTable)

	rows, err := s.pool.Query(ctx, query, schoolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []DomainRecord
	for rows.Next() {
		var rec DomainRecord
		if err := rows.Scan(&rec.Domain, &rec.SchoolID, &rec.IsPrimary); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanSchoolRecord(row pgx.Row) (SchoolRecord, error) {
	var rec SchoolRecord
	err := row.Scan(
		&rec.SchoolID, &rec.Slug, &rec.Name, &rec.ShortName, &rec.EducationSystem,
		&rec.Email, &rec.Phone, &rec.Address, &rec.City, &rec.RegionID, &rec.DistrictID,
		&rec.SchemaName, &rec.RoleName, &rec.MediaPrefix, &rec.IsActive,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SchoolRecord{}, ErrSchoolNotFound
		}
		return SchoolRecord{}, err
	}
	return rec, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func joinComma(parts []string) string {
	return strings.Join(parts, ", ")
}

// qualifyColumns prefixes each column in a comma-separated list with a table
// alias, for joined selects.
func qualifyColumns(alias, columns string) string {
	cols := strings.Split(columns, ",")
	for i, col := range cols {
		cols[i] = alias + "." + strings.TrimSpace(col)
	}
	return strings.Join(cols, ", ")
}
