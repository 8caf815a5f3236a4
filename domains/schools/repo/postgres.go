package repo

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/sukuu-hq/sukuu/domains/schools/service"
	"github.com/sukuu-hq/sukuu/platform/persistence"
)

// PostgresRepository adapts the persistence SchoolStore to the service
// Repository interface.
type PostgresRepository struct {
	store *persistence.SchoolStore
}

func NewPostgresRepository(store *persistence.SchoolStore) *PostgresRepository {
	if store == nil {
		panic("school store is required")
	}
	return &PostgresRepository{store: store}
}

func (r *PostgresRepository) Create(ctx context.Context, s service.School) (service.School, error) {
	rec, err := r.store.Create(ctx, toRecord(s))
	if err != nil {
		return service.School{}, mapStoreError(err)
	}
	return fromRecord(rec), nil
}

func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (service.School, error) {
	rec, err := r.store.Get(ctx, id)
	if err != nil {
		return service.School{}, mapStoreError(err)
	}
	return fromRecord(rec), nil
}

func (r *PostgresRepository) GetBySlug(ctx context.Context, slug string) (service.School, error) {
	rec, err := r.store.GetBySlug(ctx, slug)
	if err != nil {
		return service.School{}, mapStoreError(err)
	}
	return fromRecord(rec), nil
}

func (r *PostgresRepository) GetByDomain(ctx context.Context, domain string) (service.School, error) {
	rec, err := r.store.GetByDomain(ctx, domain)
	if err != nil {
		return service.School{}, mapStoreError(err)
	}
	return fromRecord(rec), nil
}

func (r *PostgresRepository) List(ctx context.Context, limit, offset int) ([]service.School, int, error) {
	records, total, err := r.store.ListActive(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	schools := make([]service.School, 0, len(records))
	for _, rec := range records {
		schools = append(schools, fromRecord(rec))
	}
	return schools, total, nil
}

func (r *PostgresRepository) UpdateProfile(ctx context.Context, id uuid.UUID, input service.UpdateInput) (service.School, error) {
	params := persistence.UpdateProfileParams{
		Name:       input.Name,
		ShortName:  input.ShortName,
		Email:      input.Email,
		Phone:      input.Phone,
		Address:    input.Address,
		City:       input.City,
		RegionID:   input.RegionID,
		DistrictID: input.DistrictID,
	}
	if input.EducationSystem != nil {
		system := string(*input.EducationSystem)
		params.EducationSystem = &system
	}

	rec, err := r.store.UpdateProfile(ctx, id, params)
	if err != nil {
		return service.School{}, mapStoreError(err)
	}
	return fromRecord(rec), nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return mapStoreError(r.store.Delete(ctx, id))
}

func (r *PostgresRepository) AddDomain(ctx context.Context, d service.Domain) error {
	return mapStoreError(r.store.AddDomain(ctx, persistence.DomainRecord{
		Domain:    d.Domain,
		SchoolID:  d.SchoolID,
		IsPrimary: d.IsPrimary,
	}))
}

func (r *PostgresRepository) RemoveDomain(ctx context.Context, domain string) error {
	return mapStoreError(r.store.RemoveDomain(ctx, domain))
}

func (r *PostgresRepository) ListDomains(ctx context.Context, schoolID uuid.UUID) ([]service.Domain, error) {
	records, err := r.store.ListDomains(ctx, schoolID)
	if err != nil {
		return nil, err
	}
	domains := make([]service.Domain, 0, len(records))
	for _, rec := range records {
		domains = append(domains, service.Domain{Domain: rec.Domain, SchoolID: rec.SchoolID, IsPrimary: rec.IsPrimary})
	}
	return domains, nil
}

func toRecord(s service.School) persistence.SchoolRecord {
	return persistence.SchoolRecord{
		SchoolID:        s.ID,
		Slug:            s.Slug,
		Name:            s.Name,
		ShortName:       s.ShortName,
		EducationSystem: string(s.EducationSystem),
		Email:           s.Email,
		Phone:           s.Phone,
		Address:         s.Address,
		City:            s.City,
		RegionID:        s.RegionID,
		DistrictID:      s.DistrictID,
		SchemaName:      s.SchemaName,
		RoleName:        s.RoleName,
		MediaPrefix:     s.MediaPrefix,
		IsActive:        s.IsActive,
	}
}

func fromRecord(rec persistence.SchoolRecord) service.School {
	return service.School{
		ID:              rec.SchoolID,
		Slug:            rec.Slug,
		Name:            rec.Name,
		ShortName:       rec.ShortName,
		EducationSystem: service.EducationSystem(rec.EducationSystem),
		Email:           rec.Email,
		Phone:           rec.Phone,
		Address:         rec.Address,
		City:            rec.City,
		RegionID:        rec.RegionID,
		DistrictID:      rec.DistrictID,
		SchemaName:      rec.SchemaName,
		RoleName:        rec.RoleName,
		MediaPrefix:     rec.MediaPrefix,
		IsActive:        rec.IsActive,
		CreatedAt:       rec.CreatedAt,
		UpdatedAt:       rec.UpdatedAt,
	}
}

func mapStoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrSchoolNotFound):
		return service.ErrNotFound
	case errors.Is(err, persistence.ErrSlugConflict):
		return service.ErrSlugConflict
	case errors.Is(err, persistence.ErrDomainConflict):
		return service.ErrDomainConflict
	case errors.Is(err, persistence.ErrDomainNotFound):
		return service.ErrDomainNotFound
	default:
		return err
	}
}
