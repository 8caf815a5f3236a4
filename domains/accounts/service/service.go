package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/sukuu-hq/sukuu/platform/auth"
	"github.com/sukuu-hq/sukuu/platform/tenant"
)

// Domain sentinel errors.
var (
	ErrNotFound = errors.New("user not found")
	// ErrDuplicateEmail indicates the email already exists in the active partition.
	ErrDuplicateEmail = errors.New("email already exists")
	// ErrWrongPartition indicates a role creation attempted in the wrong
	// partition kind (platform admin in a school, school roles on the
	// platform host).
	ErrWrongPartition = errors.New("operation not valid in active partition")
	// ErrInvalidCredentials indicates a failed current-password check.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// FieldErrors maps request fields to validation issues.
type FieldErrors map[string][]string

func (f FieldErrors) add(field, message string) {
	f[field] = append(f[field], message)
}

// ValidationError is returned when the input payload is invalid.
type ValidationError struct {
	Fields FieldErrors
}

func (v *ValidationError) Error() string {
	return "validation error"
}

// User represents the domain view of a user record. Which partition it lives
// in is implicit: operations act on the partition bound to the context.
type User struct {
	ID                 uuid.UUID
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

// CreateInput is the payload shared by all role factories.
type CreateInput struct {
	Email    string `validate:"required,email"`
	FullName string `validate:"required"`
	Password string `validate:"required,min=8"`
	// MustChangePassword marks admin-issued credentials that have to be
	// rotated on first login. Read by the web layer, not enforced here.
	MustChangePassword bool
}

// UpdateProfileInput captures the mutable profile fields.
type UpdateProfileInput struct {
	FullName *string
}

// Repository abstracts user persistence within the active partition.
type Repository interface {
	Create(ctx context.Context, u User) (User, error)
	Get(ctx context.Context, id uuid.UUID) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	List(ctx context.Context, limit, offset int) ([]User, int, error)
	Update(ctx context.Context, u User) (User, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Service provides the partition-scoped user operations. Every factory
// constructs the user within the currently active partition; partition
// appropriateness is checked here at creation time, and re-validated by the
// store on every save.
type Service struct {
	repo     Repository
	validate *validator.Validate
}

// New constructs an accounts Service backed by the provided repository.
func New(repo Repository) *Service {
	if repo == nil {
		panic("accounts repository is required")
	}
	return &Service{repo: repo, validate: validator.New()}
}

// NormalizeEmail trims the address and lowercases its domain part. The local
// part is preserved as given; uniqueness is checked against this normalized
// form.
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}
	return email[:at] + "@" + strings.ToLower(email[at+1:])
}

// CreatePlatformAdmin creates a platform superuser. Valid only while the
// platform partition is active.
func (s *Service) CreatePlatformAdmin(ctx context.Context, input CreateInput) (User, error) {
	return s.create(ctx, input, func(space tenant.Space, u *User) error {
		if !space.Public {
			return ErrWrongPartition
		}
		u.IsSuperuser = true
		return nil
	})
}

// CreateSchoolAdmin creates a school administrator in the active school.
func (s *Service) CreateSchoolAdmin(ctx context.Context, input CreateInput) (User, error) {
	return s.create(ctx, input, schoolRole(func(u *User) { u.IsSchoolAdmin = true }))
}

// CreateTeacher creates a teacher in the active school.
func (s *Service) CreateTeacher(ctx context.Context, input CreateInput) (User, error) {
	return s.create(ctx, input, schoolRole(func(u *User) { u.IsTeacher = true }))
}

// CreateStudent creates a student in the active school.
func (s *Service) CreateStudent(ctx context.Context, input CreateInput) (User, error) {
	return s.create(ctx, input, schoolRole(func(u *User) { u.IsStudent = true }))
}

// CreateParent creates a parent in the active school.
func (s *Service) CreateParent(ctx context.Context, input CreateInput) (User, error) {
	return s.create(ctx, input, schoolRole(func(u *User) { u.IsParent = true }))
}

// schoolRole wraps a flag setter with the school-partition precondition.
func schoolRole(set func(*User)) func(tenant.Space, *User) error {
	return func(space tenant.Space, u *User) error {
		if space.Public {
			return ErrWrongPartition
		}
		set(u)
		return nil
	}
}

func (s *Service) create(ctx context.Context, input CreateInput, assignRole func(tenant.Space, *User) error) (User, error) {
	space, err := tenant.MustFromContext(ctx)
	if err != nil {
		return User{}, err
	}

	input.Email = NormalizeEmail(input.Email)
	if err := s.validateInput(input); err != nil {
		return User{}, err
	}

	hashed, err := auth.HashPassword(input.Password)
	if err != nil {
		return User{}, err
	}

	user := User{
		ID:                 uuid.New(),
		Email:              input.Email,
		FullName:           strings.TrimSpace(input.FullName),
		HashedPassword:     hashed,
		IsActive:           true,
		MustChangePassword: input.MustChangePassword,
	}

	if err := assignRole(space, &user); err != nil {
		return User{}, err
	}

	return s.repo.Create(ctx, user)
}

// Get returns a user by id from the active partition.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (User, error) {
	if id == uuid.Nil {
		return User{}, ErrNotFound
	}
	return s.repo.Get(ctx, id)
}

// GetByEmail returns a user by normalized email from the active partition.
func (s *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return s.repo.GetByEmail(ctx, NormalizeEmail(email))
}

// ListResult wraps a page of users with pagination metadata.
type ListResult struct {
	Users      []User
	Page       int
	PageSize   int
	TotalItems int
	TotalPages int
}

// List returns the active partition's users.
func (s *Service) List(ctx context.Context, page, pageSize int) (ListResult, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	users, total, err := s.repo.List(ctx, pageSize, (page-1)*pageSize)
	if err != nil {
		return ListResult{}, err
	}

	totalPages := 0
	if total > 0 {
		totalPages = (total + pageSize - 1) / pageSize
	}

	return ListResult{Users: users, Page: page, PageSize: pageSize, TotalItems: total, TotalPages: totalPages}, nil
}

// UpdateProfile applies profile changes and saves through the invariant-
// checking store.
func (s *Service) UpdateProfile(ctx context.Context, id uuid.UUID, input UpdateProfileInput) (User, error) {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return User{}, err
	}

	if input.FullName != nil {
		name := strings.TrimSpace(*input.FullName)
		if name == "" {
			fields := FieldErrors{}
			fields.add("fullName", "fullName cannot be empty")
			return User{}, &ValidationError{Fields: fields}
		}
		user.FullName = name
	}

	return s.repo.Update(ctx, user)
}

// SetActive toggles the user's active flag.
func (s *Service) SetActive(ctx context.Context, id uuid.UUID, active bool) (User, error) {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return User{}, err
	}
	user.IsActive = active
	return s.repo.Update(ctx, user)
}

// ChangePassword verifies the current password, stores the new hash and
// clears the must-change flag.
func (s *Service) ChangePassword(ctx context.Context, id uuid.UUID, current, next string) error {
	if len(next) < 8 {
		fields := FieldErrors{}
		fields.add("password", "password must be at least 8 characters")
		return &ValidationError{Fields: fields}
	}

	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if !auth.VerifyPassword(current, user.HashedPassword) {
		return ErrInvalidCredentials
	}

	hashed, err := auth.HashPassword(next)
	if err != nil {
		return err
	}
	user.HashedPassword = hashed
	user.MustChangePassword = false

	_, err = s.repo.Update(ctx, user)
	return err
}

func (s *Service) validateInput(input CreateInput) error {
	err := s.validate.Struct(input)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	fields := FieldErrors{}
	for _, fe := range verrs {
		switch fe.Field() {
		case "Email":
			fields.add("email", "a valid email is required")
		case "FullName":
			fields.add("fullName", "fullName is required")
		case "Password":
			fields.add("password", "password must be at least 8 characters")
		}
	}
	return &ValidationError{Fields: fields}
}
