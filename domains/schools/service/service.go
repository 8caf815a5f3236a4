package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sukuu-hq/sukuu/platform/tenant"
)

// Errors returned by the registry service.
var (
	ErrNotFound             = errors.New("school not found")
	ErrSlugConflict         = errors.New("school slug already exists")
	ErrDomainConflict       = errors.New("domain already bound to a school")
	ErrDomainNotFound       = errors.New("domain not found")
	ErrConfirmationMismatch = errors.New("teardown confirmation does not match school slug")
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// EducationSystem is the feature-level selector carried on each school.
type EducationSystem string

const (
	EducationBasic EducationSystem = "basic"
	EducationSHS   EducationSystem = "shs"
	EducationBoth  EducationSystem = "both"
)

func (e EducationSystem) valid() bool {
	switch e {
	case EducationBasic, EducationSHS, EducationBoth:
		return true
	}
	return false
}

// School is the domain model for a registry entry.
type School struct {
	ID              uuid.UUID
	Slug            string
	Name            string
	ShortName       string
	EducationSystem EducationSystem
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

// DisplayName prefers the short name when present.
func (s School) DisplayName() string {
	if s.ShortName != "" {
		return s.ShortName
	}
	return s.Name
}

// Space returns the tenant routing value for this school.
func (s School) Space() tenant.Space {
	return tenant.Space{
		SchoolID:    s.ID,
		Slug:        s.Slug,
		SchemaName:  s.SchemaName,
		RoleName:    s.RoleName,
		MediaPrefix: s.MediaPrefix,
	}
}

// Domain is a hostname bound to exactly one school.
type Domain struct {
	Domain    string
	SchoolID  uuid.UUID
	IsPrimary bool
}

// CreateInput is the request to register a new school.
type CreateInput struct {
	Slug            string
	Name            string
	ShortName       string
	EducationSystem EducationSystem
	Email           string
	Phone           string
	Address         string
	City            string
	RegionID        *int32
	DistrictID      *int32
	// PrimaryDomain optionally binds a hostname at creation time.
	PrimaryDomain string
}

// UpdateInput captures the mutable branding/contact fields.
type UpdateInput struct {
	Name            *string
	ShortName       *string
	EducationSystem *EducationSystem
	Email           *string
	Phone           *string
	Address         *string
	City            *string
	RegionID        *int32
	DistrictID      *int32
}

// ListOptions captures pagination.
type ListOptions struct {
	Page     int
	PageSize int
}

// ListResult wraps paginated schools.
type ListResult struct {
	Schools    []School
	Page       int
	PageSize   int
	TotalItems int
	TotalPages int
}

// Repository abstracts registry persistence. The registry always lives in
// the platform partition.
type Repository interface {
	Create(ctx context.Context, s School) (School, error)
	Get(ctx context.Context, id uuid.UUID) (School, error)
	GetBySlug(ctx context.Context, slug string) (School, error)
	GetByDomain(ctx context.Context, domain string) (School, error)
	List(ctx context.Context, limit, offset int) ([]School, int, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, input UpdateInput) (School, error)
	Delete(ctx context.Context, id uuid.UUID) error
	AddDomain(ctx context.Context, d Domain) error
	RemoveDomain(ctx context.Context, domain string) error
	ListDomains(ctx context.Context, schoolID uuid.UUID) ([]Domain, error)
}

// SchemaProvisioner creates and drops school partitions.
type SchemaProvisioner interface {
	EnsureSchool(ctx context.Context, space tenant.Space) error
	DropSchool(ctx context.Context, space tenant.Space) error
}

// MediaProvisioner manages the per-school media prefix.
type MediaProvisioner interface {
	Ensure(ctx context.Context, prefix string) error
	Remove(ctx context.Context, prefix string) error
}

// CacheInvalidator drops stale hostname resolutions after domain changes.
// Implemented by *tenant.Resolver; a nil invalidator is a no-op.
type CacheInvalidator interface {
	Reset()
}

// Service provides school registry operations, orchestrating partition
// provisioning around registry writes.
type Service struct {
	repo         Repository
	provisioner  SchemaProvisioner
	media        MediaProvisioner
	cache        CacheInvalidator
	schemaPrefix string
}

// New constructs a Service with required dependencies. cache may be nil.
func New(repo Repository, provisioner SchemaProvisioner, media MediaProvisioner, schemaPrefix string) *Service {
	if repo == nil {
		panic("schools repo is required")
	}
	if provisioner == nil {
		panic("schema provisioner is required")
	}
	if media == nil {
		panic("media provisioner is required")
	}
	if schemaPrefix == "" {
		panic("schema prefix is required")
	}
	return &Service{repo: repo, provisioner: provisioner, media: media, schemaPrefix: schemaPrefix}
}

// SetCacheInvalidator wires the resolver cache once it exists; the resolver
// itself depends on this service, so the hookup happens after construction.
func (s *Service) SetCacheInvalidator(cache CacheInvalidator) {
	s.cache = cache
}

// Create registers a school, provisions its partition and media prefix, and
// optionally binds a primary domain. A provisioning failure rolls the
// registry row back so no half-created tenant remains visible.
func (s *Service) Create(ctx context.Context, input CreateInput) (School, error) {
	slug := strings.ToLower(strings.TrimSpace(input.Slug))
	if !slugPattern.MatchString(slug) {
		return School{}, fmt.Errorf("invalid slug %q: must be kebab-case", input.Slug)
	}
	if strings.TrimSpace(input.Name) == "" {
		return School{}, errors.New("school name is required")
	}
	system := input.EducationSystem
	if system == "" {
		system = EducationBoth
	}
	if !system.valid() {
		return School{}, fmt.Errorf("invalid education system %q", input.EducationSystem)
	}

	id := uuid.New()
	shortID := tenant.ShortID(id)
	schemaName := tenant.BuildSchemaName(s.schemaPrefix, tenant.ToSnake(slug))

	school := School{
		ID:              id,
		Slug:            slug,
		Name:            strings.TrimSpace(input.Name),
		ShortName:       strings.TrimSpace(input.ShortName),
		EducationSystem: system,
		Email:           strings.TrimSpace(input.Email),
		Phone:           strings.TrimSpace(input.Phone),
		Address:         strings.TrimSpace(input.Address),
		City:            strings.TrimSpace(input.City),
		RegionID:        input.RegionID,
		DistrictID:      input.DistrictID,
		SchemaName:      schemaName,
		RoleName:        tenant.BuildRoleName(schemaName),
		MediaPrefix:     tenant.BuildMediaPrefix(slug, shortID),
		IsActive:        true,
	}

	created, err := s.repo.Create(ctx, school)
	if err != nil {
		return School{}, err
	}

	if err := s.provisioner.EnsureSchool(ctx, created.Space()); err != nil {
		_ = s.repo.Delete(ctx, created.ID)
		return School{}, fmt.Errorf("provision partition: %w", err)
	}
	if err := s.media.Ensure(ctx, created.MediaPrefix); err != nil {
		return School{}, fmt.Errorf("provision media prefix: %w", err)
	}

	if domain := tenant.NormalizeHost(input.PrimaryDomain); domain != "" {
		if err := s.AddDomain(ctx, Domain{Domain: domain, SchoolID: created.ID, IsPrimary: true}); err != nil {
			return School{}, err
		}
	}

	return created, nil
}

// Get returns a school by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (School, error) {
	return s.repo.Get(ctx, id)
}

// GetBySlug returns a school by slug.
func (s *Service) GetBySlug(ctx context.Context, slug string) (School, error) {
	return s.repo.GetBySlug(ctx, strings.ToLower(strings.TrimSpace(slug)))
}

// List returns paginated active schools.
func (s *Service) List(ctx context.Context, opts ListOptions) (ListResult, error) {
	page := opts.Page
	if page < 1 {
		page = 1
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	schools, total, err := s.repo.List(ctx, pageSize, (page-1)*pageSize)
	if err != nil {
		return ListResult{}, err
	}

	totalPages := 0
	if total > 0 {
		totalPages = (total + pageSize - 1) / pageSize
	}

	return ListResult{
		Schools:    schools,
		Page:       page,
		PageSize:   pageSize,
		TotalItems: total,
		TotalPages: totalPages,
	}, nil
}

// Update modifies branding/contact fields.
func (s *Service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (School, error) {
	if input.EducationSystem != nil && !input.EducationSystem.valid() {
		return School{}, fmt.Errorf("invalid education system %q", *input.EducationSystem)
	}
	return s.repo.UpdateProfile(ctx, id, input)
}

// Delete tears a school down: partition, media prefix and registry row.
// Irreversible, so confirm must equal the school's slug.
func (s *Service) Delete(ctx context.Context, id uuid.UUID, confirm string) error {
	school, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if confirm != school.Slug {
		return ErrConfirmationMismatch
	}

	if err := s.provisioner.DropSchool(ctx, school.Space()); err != nil {
		return fmt.Errorf("drop partition: %w", err)
	}
	if err := s.media.Remove(ctx, school.MediaPrefix); err != nil {
		return fmt.Errorf("remove media prefix: %w", err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.invalidateCache()
	return nil
}

// AddDomain binds a hostname to a school and invalidates the resolver cache.
func (s *Service) AddDomain(ctx context.Context, d Domain) error {
	d.Domain = tenant.NormalizeHost(d.Domain)
	if d.Domain == "" {
		return errors.New("domain is required")
	}

	if err := s.repo.AddDomain(ctx, d); err != nil {
		return err
	}
	s.invalidateCache()
	return nil
}

// RemoveDomain drops a hostname binding and invalidates the resolver cache.
func (s *Service) RemoveDomain(ctx context.Context, domain string) error {
	if err := s.repo.RemoveDomain(ctx, tenant.NormalizeHost(domain)); err != nil {
		return err
	}
	s.invalidateCache()
	return nil
}

// ListDomains returns a school's bindings, primary first.
func (s *Service) ListDomains(ctx context.Context, schoolID uuid.UUID) ([]Domain, error) {
	return s.repo.ListDomains(ctx, schoolID)
}

// SpaceForDomain implements tenant.Lookup for the resolver.
func (s *Service) SpaceForDomain(ctx context.Context, domain string) (tenant.Space, error) {
	school, err := s.repo.GetByDomain(ctx, domain)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return tenant.Space{}, tenant.ErrTenantNotFound
		}
		return tenant.Space{}, err
	}
	return school.Space(), nil
}

// invalidateCache drops all cached resolutions. A new binding can change the
// outcome for hostnames previously cached as fallbacks, so partial
// invalidation is not enough.
func (s *Service) invalidateCache() {
	if s.cache != nil {
		s.cache.Reset()
	}
}
