package repo

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sukuu-hq/sukuu/domains/accounts/service"
	"github.com/sukuu-hq/sukuu/platform/persistence"
	"github.com/sukuu-hq/sukuu/platform/tenant"
)

// MemoryRepository is an in-memory, partition-faithful implementation for
// tests and early development. Users are keyed per schema so data written
// under one tenant is never visible under another, and it enforces the same
// save-time role invariants as the Postgres store.
type MemoryRepository struct {
	mu         sync.RWMutex
	partitions map[string]map[uuid.UUID]service.User
}

// NewMemoryRepository constructs a MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{partitions: make(map[string]map[uuid.UUID]service.User)}
}

func (r *MemoryRepository) partition(ctx context.Context) (tenant.Space, map[uuid.UUID]service.User, error) {
	space, err := tenant.MustFromContext(ctx)
	if err != nil {
		return tenant.Space{}, nil, err
	}
	users, ok := r.partitions[space.SchemaName]
	if !ok {
		users = make(map[uuid.UUID]service.User)
		r.partitions[space.SchemaName] = users
	}
	return space, users, nil
}

func checkRoleInvariants(space tenant.Space, u service.User) error {
	hasSchoolRole := u.IsSchoolAdmin || u.IsTeacher || u.IsStudent || u.IsParent
	if space.Public && hasSchoolRole {
		return fmt.Errorf("%w: school role flags in platform partition", persistence.ErrInvariantViolation)
	}
	if !space.Public && u.IsSuperuser {
		return fmt.Errorf("%w: platform superuser in school partition %q", persistence.ErrInvariantViolation, space.Slug)
	}
	return nil
}

func (r *MemoryRepository) Create(ctx context.Context, u service.User) (service.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	space, users, err := r.partition(ctx)
	if err != nil {
		return service.User{}, err
	}
	if err := checkRoleInvariants(space, u); err != nil {
		return service.User{}, err
	}
	for _, existing := range users {
		if existing.Email == u.Email {
			return service.User{}, service.ErrDuplicateEmail
		}
	}

	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	users[u.ID] = u
	return u, nil
}

func (r *MemoryRepository) Get(ctx context.Context, id uuid.UUID) (service.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, users, err := r.partition(ctx)
	if err != nil {
		return service.User{}, err
	}
	u, ok := users[id]
	if !ok {
		return service.User{}, service.ErrNotFound
	}
	return u, nil
}

func (r *MemoryRepository) GetByEmail(ctx context.Context, email string) (service.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, users, err := r.partition(ctx)
	if err != nil {
		return service.User{}, err
	}
	for _, u := range users {
		if u.Email == email {
			return u, nil
		}
	}
	return service.User{}, service.ErrNotFound
}

func (r *MemoryRepository) List(ctx context.Context, limit, offset int) ([]service.User, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, users, err := r.partition(ctx)
	if err != nil {
		return nil, 0, err
	}

	items := make([]service.User, 0, len(users))
	for _, u := range users {
		items = append(items, u)
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

func (r *MemoryRepository) Update(ctx context.Context, u service.User) (service.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	space, users, err := r.partition(ctx)
	if err != nil {
		return service.User{}, err
	}
	if err := checkRoleInvariants(space, u); err != nil {
		return service.User{}, err
	}
	if _, ok := users[u.ID]; !ok {
		return service.User{}, service.ErrNotFound
	}

	u.UpdatedAt = time.Now().UTC()
	users[u.ID] = u
	return u, nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, users, err := r.partition(ctx)
	if err != nil {
		return err
	}
	if _, ok := users[id]; !ok {
		return service.ErrNotFound
	}
	delete(users, id)
	return nil
}

var _ service.Repository = (*MemoryRepository)(nil)
