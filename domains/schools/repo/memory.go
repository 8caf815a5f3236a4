package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sukuu-hq/sukuu/domains/schools/service"
)

// MemoryRepository is a simple in-memory implementation suitable for tests
// and early development.
type MemoryRepository struct {
	mu       sync.RWMutex
	byID     map[uuid.UUID]service.School
	bySlug   map[string]uuid.UUID
	byDomain map[string]service.Domain
}

// NewMemoryRepository constructs a MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:     make(map[uuid.UUID]service.School),
		bySlug:   make(map[string]uuid.UUID),
		byDomain: make(map[string]service.Domain),
	}
}

func (r *MemoryRepository) Create(ctx context.Context, s service.School) (service.School, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.bySlug[s.Slug]; exists {
		return service.School{}, service.ErrSlugConflict
	}

	now := time.Now().UTC()
	s.CreatedAt = now
	s.UpdatedAt = now
	r.byID[s.ID] = s
	r.bySlug[s.Slug] = s.ID
	return s, nil
}

func (r *MemoryRepository) Get(ctx context.Context, id uuid.UUID) (service.School, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.byID[id]
	if !ok || !s.IsActive {
		return service.School{}, service.ErrNotFound
	}
	return s, nil
}

func (r *MemoryRepository) GetBySlug(ctx context.Context, slug string) (service.School, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.bySlug[slug]
	if !ok {
		return service.School{}, service.ErrNotFound
	}
	return r.byID[id], nil
}

func (r *MemoryRepository) GetByDomain(ctx context.Context, domain string) (service.School, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.byDomain[domain]
	if !ok {
		return service.School{}, service.ErrNotFound
	}
	s, ok := r.byID[d.SchoolID]
	if !ok || !s.IsActive {
		return service.School{}, service.ErrNotFound
	}
	return s, nil
}

func (r *MemoryRepository) List(ctx context.Context, limit, offset int) ([]service.School, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]service.School, 0, len(r.byID))
	for _, s := range r.byID {
		if s.IsActive {
			items = append(items, s)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })

	total := len(items)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return items[offset:end], total, nil
}

func (r *MemoryRepository) UpdateProfile(ctx context.Context, id uuid.UUID, input service.UpdateInput) (service.School, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.byID[id]
	if !ok || !s.IsActive {
		return service.School{}, service.ErrNotFound
	}

	if input.Name != nil {
		s.Name = *input.Name
	}
	if input.ShortName != nil {
		s.ShortName = *input.ShortName
	}
	if input.EducationSystem != nil {
		s.EducationSystem = *input.EducationSystem
	}
	if input.Email != nil {
		s.Email = *input.Email
	}
	if input.Phone != nil {
		s.Phone = *input.Phone
	}
	if input.Address != nil {
		s.Address = *input.Address
	}
	if input.City != nil {
		s.City = *input.City
	}
	if input.RegionID != nil {
		s.RegionID = input.RegionID
	}
	if input.DistrictID != nil {
		s.DistrictID = input.DistrictID
	}
	s.UpdatedAt = time.Now().UTC()

	r.byID[id] = s
	return s, nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.byID[id]
	if !ok {
		return service.ErrNotFound
	}
	delete(r.byID, id)
	delete(r.bySlug, s.Slug)
	for domain, d := range r.byDomain {
		if d.SchoolID == id {
			delete(r.byDomain, domain)
		}
	}
	return nil
}

func (r *MemoryRepository) AddDomain(ctx context.Context, d service.Domain) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byDomain[d.Domain]; exists {
		return service.ErrDomainConflict
	}
	if d.IsPrimary {
		for domain, existing := range r.byDomain {
			if existing.SchoolID == d.SchoolID && existing.IsPrimary {
				existing.IsPrimary = false
				r.byDomain[domain] = existing
			}
		}
	}
	r.byDomain[d.Domain] = d
	return nil
}

func (r *MemoryRepository) RemoveDomain(ctx context.Context, domain string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byDomain[domain]; !exists {
		return service.ErrDomainNotFound
	}
	delete(r.byDomain, domain)
	return nil
}

func (r *MemoryRepository) ListDomains(ctx context.Context, schoolID uuid.UUID) ([]service.Domain, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var domains []service.Domain
	for _, d := range r.byDomain {
		if d.SchoolID == schoolID {
			domains = append(domains, d)
		}
	}
	sort.Slice(domains, func(i, j int) bool {
		if domains[i].IsPrimary != domains[j].IsPrimary {
			return domains[i].IsPrimary
		}
		return domains[i].Domain < domains[j].Domain
	})
	return domains, nil
}

var _ service.Repository = (*MemoryRepository)(nil)
