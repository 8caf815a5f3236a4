package repo

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/sukuu-hq/sukuu/domains/accounts/service"
	"github.com/sukuu-hq/sukuu/platform/persistence"
)

// PostgresRepository adapts the partition-scoped UserStore to the accounts
// service Repository interface.
type PostgresRepository struct {
	store *persistence.UserStore
}

func NewPostgresRepository(store *persistence.UserStore) *PostgresRepository {
	if store == nil {
		panic("user store is required")
	}
	return &PostgresRepository{store: store}
}

func (r *PostgresRepository) Create(ctx context.Context, u service.User) (service.User, error) {
	rec, err := r.store.Create(ctx, toRecord(u))
	if err != nil {
		return service.User{}, mapStoreError(err)
	}
	return fromRecord(rec), nil
}

func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (service.User, error) {
	rec, err := r.store.Get(ctx, id)
	if err != nil {
		return service.User{}, mapStoreError(err)
	}
	return fromRecord(rec), nil
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (service.User, error) {
	rec, err := r.store.GetByEmail(ctx, email)
	if err != nil {
		return service.User{}, mapStoreError(err)
	}
	return fromRecord(rec), nil
}

func (r *PostgresRepository) List(ctx context.Context, limit, offset int) ([]service.User, int, error) {
	records, total, err := r.store.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	users := make([]service.User, 0, len(records))
	for _, rec := range records {
		users = append(users, fromRecord(rec))
	}
	return users, total, nil
}

func (r *PostgresRepository) Update(ctx context.Context, u service.User) (service.User, error) {
	rec, err := r.store.Update(ctx, toRecord(u))
	if err != nil {
		return service.User{}, mapStoreError(err)
	}
	return fromRecord(rec), nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return mapStoreError(r.store.Delete(ctx, id))
}

func toRecord(u service.User) persistence.UserRecord {
	return persistence.UserRecord{
		UserID:             u.ID,
		Email:              u.Email,
		FullName:           u.FullName,
		HashedPassword:     u.HashedPassword,
		IsSuperuser:        u.IsSuperuser,
		IsSchoolAdmin:      u.IsSchoolAdmin,
		IsTeacher:          u.IsTeacher,
		IsStudent:          u.IsStudent,
		IsParent:           u.IsParent,
		IsActive:           u.IsActive,
		MustChangePassword: u.MustChangePassword,
	}
}

func fromRecord(rec persistence.UserRecord) service.User {
	return service.User{
		ID:                 rec.UserID,
		Email:              rec.Email,
		FullName:           rec.FullName,
		HashedPassword:     rec.HashedPassword,
		IsSuperuser:        rec.IsSuperuser,
		IsSchoolAdmin:      rec.IsSchoolAdmin,
		IsTeacher:          rec.IsTeacher,
		IsStudent:          rec.IsStudent,
		IsParent:           rec.IsParent,
		IsActive:           rec.IsActive,
		MustChangePassword: rec.MustChangePassword,
		CreatedAt:          rec.CreatedAt,
		UpdatedAt:          rec.UpdatedAt,
	}
}

func mapStoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrUserNotFound):
		return service.ErrNotFound
	case errors.Is(err, persistence.ErrDuplicateEmail):
		return service.ErrDuplicateEmail
	default:
		// tenant.ErrNoActiveTenant and persistence.ErrInvariantViolation
		// surface unchanged; callers match them with errors.Is.
		return err
	}
}
