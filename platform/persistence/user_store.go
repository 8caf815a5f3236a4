package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sukuu-hq/sukuu/platform/tenant"
)

const UsersTable = "users"

// UserRecord represents a row in a partition's users table. Which partition
// it lives in is implicit: every read and write goes through the partition
// bound to the request context.
type UserRecord struct {
	UserID             uuid.UUID
	Email              string
	FullName           string
	HashedPassword     string
	IsSuperuser        bool
	IsSchoolAdmin      bool
	IsTeacher          bool
	IsStudent          bool
	IsParent           bool
	IsActive           bool
	MustChangePassword bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// HasSchoolRole reports whether any school-specific flag is set.
func (u UserRecord) HasSchoolRole() bool {
	return u.IsSchoolAdmin || u.IsTeacher || u.IsStudent || u.IsParent
}

var (
	// ErrUserNotFound indicates a missing user record in the active partition.
	ErrUserNotFound = errors.New("user not found")
	// ErrDuplicateEmail indicates the email already exists in the partition.
	ErrDuplicateEmail = errors.New("email already exists in partition")
	// ErrInvariantViolation indicates a save would place an incompatible
	// role/privilege combination in a partition.
	ErrInvariantViolation = errors.New("role flags incompatible with partition")
)

const userColumns = `user_id, email, full_name, hashed_password, is_superuser,
        is_school_admin, is_teacher, is_student, is_parent, is_active,
        must_change_password, created_at, updated_at`

// UserStore persists users in whichever partition is bound to the context.
// Every save re-validates the partition/role invariant, independent of the
// creation-time checks in the accounts service: a platform-partition row may
// never carry a school flag, and a school-partition row may never be a
// platform superuser.
type UserStore struct {
	db *SchoolDB
}

func NewUserStore(db *SchoolDB) (*UserStore, error) {
	if db == nil {
		return nil, errors.New("school db is required")
	}
	return &UserStore{db: db}, nil
}

// checkRoleInvariants is the last-line defense against cross-partition role
// leakage. It runs on every save.
func checkRoleInvariants(space tenant.Space, rec UserRecord) error {
	if space.Public && rec.HasSchoolRole() {
		return fmt.Errorf("%w: school role flags in platform partition", ErrInvariantViolation)
	}
	if !space.Public && rec.IsSuperuser {
		return fmt.Errorf("%w: platform superuser in school partition %q", ErrInvariantViolation, space.Slug)
	}
	return nil
}

// Create inserts a user into the active partition. The insert is a single
// statement: either the fully-valid user is persisted or nothing is.
func (s *UserStore) Create(ctx context.Context, rec UserRecord) (UserRecord, error) {
	space, err := tenant.MustFromContext(ctx)
	if err != nil {
		return UserRecord{}, err
	}
	if err := checkRoleInvariants(space, rec); err != nil {
		return UserRecord{}, err
	}
	if rec.UserID == uuid.Nil {
		return UserRecord{}, errors.New("user id is required")
	}

	var out UserRecord
	err = s.db.WithActive(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, fmt.Sprintf(`
            INSERT INTO %s (
                user_id, email, full_name, hashed_password, is_superuser,
                is_school_admin, is_teacher, is_student, is_parent, is_active,
                must_change_password
            ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
            RETURNING %s
        `, UsersTable, userColumns),
			rec.UserID, strings.TrimSpace(rec.Email), strings.TrimSpace(rec.FullName),
			rec.HashedPassword, rec.IsSuperuser, rec.IsSchoolAdmin, rec.IsTeacher,
			rec.IsStudent, rec.IsParent, rec.IsActive, rec.MustChangePassword,
		)
		var scanErr error
		out, scanErr = scanUserRecord(row)
		return scanErr
	})
	if err != nil {
		if isUniqueViolation(err) {
			return UserRecord{}, ErrDuplicateEmail
		}
		return UserRecord{}, err
	}
	return out, nil
}

// Get returns a user by id from the active partition.
func (s *UserStore) Get(ctx context.Context, id uuid.UUID) (UserRecord, error) {
	var out UserRecord
	err := s.db.WithActive(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, fmt.Sprintf("SELECT %s FROM %s WHERE user_id = $1", userColumns, UsersTable), id)
		var scanErr error
		out, scanErr = scanUserRecord(row)
		return scanErr
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserRecord{}, ErrUserNotFound
		}
		return UserRecord{}, err
	}
	return out, nil
}

// GetByEmail returns a user by normalized email from the active partition.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (UserRecord, error) {
	var out UserRecord
	err := s.db.WithActive(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, fmt.Sprintf("SELECT %s FROM %s WHERE email = $1", userColumns, UsersTable), email)
		var scanErr error
		out, scanErr = scanUserRecord(row)
		return scanErr
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserRecord{}, ErrUserNotFound
		}
		return UserRecord{}, err
	}
	return out, nil
}

// List returns the active partition's users ordered by creation time.
func (s *UserStore) List(ctx context.Context, limit, offset int) ([]UserRecord, int, error) {
	var (
		records []UserRecord
		total   int
	)
	err := s.db.WithActive(ctx, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", UsersTable)).Scan(&total); err != nil {
			return fmt.Errorf("count users: %w", err)
		}

		rows, err := tx.Query(ctx, fmt.Sprintf(`SELECT %s FROM %s
            ORDER BY created_at DESC LIMIT %d OFFSET %d`, userColumns, UsersTable, limit, offset))
		if err != nil {
			return fmt.Errorf("list users: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			rec, scanErr := scanUserRecord(rows)
			if scanErr != nil {
				return fmt.Errorf("scan user: %w", scanErr)
			}
			records = append(records, rec)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// Update persists the full record back to the active partition, re-checking
// the role invariants before touching the row.
func (s *UserStore) Update(ctx context.Context, rec UserRecord) (UserRecord, error) {
	space, err := tenant.MustFromContext(ctx)
	if err != nil {
		return UserRecord{}, err
	}
	if err := checkRoleInvariants(space, rec); err != nil {
		return UserRecord{}, err
	}

	var out UserRecord
	err = s.db.WithActive(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, fmt.Sprintf(`
            UPDATE %s SET
                email = $2, full_name = $3, hashed_password = $4,
                is_superuser = $5, is_school_admin = $6, is_teacher = $7,
                is_student = $8, is_parent = $9, is_active = $10,
                must_change_password = $11, updated_at = NOW()
            WHERE user_id = $1
            RETURNING %s
        `, UsersTable, userColumns),
			rec.UserID, strings.TrimSpace(rec.Email), strings.TrimSpace(rec.FullName),
			rec.HashedPassword, rec.IsSuperuser, rec.IsSchoolAdmin, rec.IsTeacher,
			rec.IsStudent, rec.IsParent, rec.IsActive, rec.MustChangePassword,
		)
		var scanErr error
		out, scanErr = scanUserRecord(row)
		return scanErr
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserRecord{}, ErrUserNotFound
		}
		if isUniqueViolation(err) {
			return UserRecord{}, ErrDuplicateEmail
		}
		return UserRecord{}, err
	}
	return out, nil
}

// Delete removes a user from the active partition.
func (s *UserStore) Delete(ctx context.Context, id uuid.UUID) error {
	return s.db.WithActive(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE user_id = $1", UsersTable), id)
		if err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrUserNotFound
		}
		return nil
	})
}

func scanUserRecord(row pgx.Row) (UserRecord, error) {
	var rec UserRecord
	err := row.Scan(
		&rec.UserID, &rec.Email, &rec.FullName, &rec.HashedPassword,
		&rec.IsSuperuser, &rec.IsSchoolAdmin, &rec.IsTeacher, &rec.IsStudent,
		&rec.IsParent, &rec.IsActive, &rec.MustChangePassword,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return UserRecord{}, err
	}
	return rec, nil
}
