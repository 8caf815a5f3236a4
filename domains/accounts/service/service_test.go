package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/sukuu-hq/sukuu/domains/accounts/repo"
	"github.com/sukuu-hq/sukuu/domains/accounts/service"
	"github.com/sukuu-hq/sukuu/platform/auth"
	"github.com/sukuu-hq/sukuu/platform/persistence"
	"github.com/sukuu-hq/sukuu/platform/tenant"
)

func platformCtx() context.Context {
	return tenant.WithSpace(context.Background(), tenant.PublicSpace("public"))
}

func schoolCtx(slug string) context.Context {
	return tenant.WithSpace(context.Background(), tenant.Space{
		SchoolID:   uuid.New(),
		Slug:       slug,
		SchemaName: "dev__school_" + tenant.ToSnake(slug),
		RoleName:   "dev__school_" + tenant.ToSnake(slug) + "_role",
	})
}

func newService() *service.Service {
	return service.New(repo.NewMemoryRepository())
}

func validInput(email string) service.CreateInput {
	return service.CreateInput{
		Email:    email,
		FullName: "Ama Mensah",
		Password: "s3cret-pass",
	}
}

func TestNormalizeEmailLowercasesDomainOnly(t *testing.T) {
	t.Parallel()

	require.Equal(t, "Ama.Mensah@school.edu.gh", service.NormalizeEmail("  Ama.Mensah@SCHOOL.EDU.GH "))
	require.Equal(t, "plain", service.NormalizeEmail(" plain "))
	require.Equal(t, "a@b@c.com", service.NormalizeEmail("a@b@C.COM"))
}

func TestCreatePlatformAdminRequiresPlatformPartition(t *testing.T) {
	t.Parallel()

	svc := newService()

	admin, err := svc.CreatePlatformAdmin(platformCtx(), validInput("admin@sukuu.app"))
	require.NoError(t, err)
	require.True(t, admin.IsSuperuser)
	require.True(t, admin.IsActive)

	_, err = svc.CreatePlatformAdmin(schoolCtx("st-marys"), validInput("admin2@sukuu.app"))
	require.ErrorIs(t, err, service.ErrWrongPartition)
}

func TestSchoolRoleFactoriesRequireSchoolPartition(t *testing.T) {
	t.Parallel()

	svc := newService()
	ctx := schoolCtx("st-marys")

	teacher, err := svc.CreateTeacher(ctx, validInput("teacher@st-marys.edu.gh"))
	require.NoError(t, err)
	require.True(t, teacher.IsTeacher)
	require.False(t, teacher.IsSuperuser)

	student, err := svc.CreateStudent(ctx, validInput("student@st-marys.edu.gh"))
	require.NoError(t, err)
	require.True(t, student.IsStudent)

	parent, err := svc.CreateParent(ctx, validInput("parent@st-marys.edu.gh"))
	require.NoError(t, err)
	require.True(t, parent.IsParent)

	schoolAdmin, err := svc.CreateSchoolAdmin(ctx, validInput("head@st-marys.edu.gh"))
	require.NoError(t, err)
	require.True(t, schoolAdmin.IsSchoolAdmin)

	// The same factories refuse the platform partition.
	_, err = svc.CreateTeacher(platformCtx(), validInput("teacher@sukuu.app"))
	require.ErrorIs(t, err, service.ErrWrongPartition)
	_, err = svc.CreateStudent(platformCtx(), validInput("student@sukuu.app"))
	require.ErrorIs(t, err, service.ErrWrongPartition)
}

func TestCreateWithoutBoundPartitionFailsClosed(t *testing.T) {
	t.Parallel()

	svc := newService()

	_, err := svc.CreateTeacher(context.Background(), validInput("teacher@st-marys.edu.gh"))
	require.ErrorIs(t, err, tenant.ErrNoActiveTenant)
}

func TestCreateValidation(t *testing.T) {
	t.Parallel()

	svc := newService()

	_, err := svc.CreateTeacher(schoolCtx("st-marys"), service.CreateInput{Password: "short"})
	require.Error(t, err)

	var verr *service.ValidationError
	require.True(t, errors.As(err, &verr))
	require.Contains(t, verr.Fields, "email")
	require.Contains(t, verr.Fields, "fullName")
	require.Contains(t, verr.Fields, "password")
}

func TestCreateNormalizesAndHashes(t *testing.T) {
	t.Parallel()

	svc := newService()

	user, err := svc.CreateTeacher(schoolCtx("st-marys"), service.CreateInput{
		Email:    " Kwame.Asante@ST-MARYS.EDU.GH ",
		FullName: " Kwame Asante ",
		Password: "initial-pass",
	})
	require.NoError(t, err)
	require.Equal(t, "Kwame.Asante@st-marys.edu.gh", user.Email)
	require.Equal(t, "Kwame Asante", user.FullName)
	require.NotEqual(t, "initial-pass", user.HashedPassword)
	require.True(t, auth.VerifyPassword("initial-pass", user.HashedPassword))
}

func TestDuplicateEmailWithinPartition(t *testing.T) {
	t.Parallel()

	svc := newService()
	ctx := schoolCtx("st-marys")

	_, err := svc.CreateTeacher(ctx, validInput("shared@st-marys.edu.gh"))
	require.NoError(t, err)

	_, err = svc.CreateStudent(ctx, validInput("shared@st-marys.edu.gh"))
	require.ErrorIs(t, err, service.ErrDuplicateEmail)
}

func TestSameEmailAllowedAcrossPartitions(t *testing.T) {
	t.Parallel()

	svc := newService()

	_, err := svc.CreateTeacher(schoolCtx("st-marys"), validInput("teacher@example.com"))
	require.NoError(t, err)

	_, err = svc.CreateTeacher(schoolCtx("accra-academy"), validInput("teacher@example.com"))
	require.NoError(t, err)
}

func TestPartitionIsolationOnReads(t *testing.T) {
	t.Parallel()

	svc := newService()
	ctxA := schoolCtx("st-marys")
	ctxB := schoolCtx("accra-academy")

	created, err := svc.CreateTeacher(ctxA, validInput("teacher@st-marys.edu.gh"))
	require.NoError(t, err)

	_, err = svc.Get(ctxB, created.ID)
	require.ErrorIs(t, err, service.ErrNotFound)

	listA, err := svc.List(ctxA, 1, 20)
	require.NoError(t, err)
	require.Equal(t, 1, listA.TotalItems)

	listB, err := svc.List(ctxB, 1, 20)
	require.NoError(t, err)
	require.Equal(t, 0, listB.TotalItems)
}

func TestSaveTimeInvariantBlocksCorruptedFlags(t *testing.T) {
	t.Parallel()

	memory := repo.NewMemoryRepository()

	// A school role flag smuggled into the platform partition is rejected by
	// the store even when the caller bypasses the factories.
	_, err := memory.Create(platformCtx(), service.User{
		ID:        uuid.New(),
		Email:     "smuggled@sukuu.app",
		FullName:  "Smuggled",
		IsTeacher: true,
	})
	require.ErrorIs(t, err, persistence.ErrInvariantViolation)

	// A superuser flag in a school partition is rejected the same way.
	_, err = memory.Create(schoolCtx("st-marys"), service.User{
		ID:          uuid.New(),
		Email:       "root@st-marys.edu.gh",
		FullName:    "Root",
		IsSuperuser: true,
	})
	require.ErrorIs(t, err, persistence.ErrInvariantViolation)
}

func TestSaveTimeInvariantRecheckedOnUpdate(t *testing.T) {
	t.Parallel()

	memory := repo.NewMemoryRepository()
	svc := service.New(memory)
	ctx := schoolCtx("st-marys")

	teacher, err := svc.CreateTeacher(ctx, validInput("teacher@st-marys.edu.gh"))
	require.NoError(t, err)

	teacher.IsSuperuser = true
	_, err = memory.Update(ctx, teacher)
	require.ErrorIs(t, err, persistence.ErrInvariantViolation)
}

func TestMultipleSchoolFlagsAllowed(t *testing.T) {
	t.Parallel()

	memory := repo.NewMemoryRepository()
	svc := service.New(memory)
	ctx := schoolCtx("st-marys")

	admin, err := svc.CreateSchoolAdmin(ctx, validInput("head@st-marys.edu.gh"))
	require.NoError(t, err)

	// A school admin who also teaches is a legal combination.
	admin.IsTeacher = true
	updated, err := memory.Update(ctx, admin)
	require.NoError(t, err)
	require.True(t, updated.IsSchoolAdmin)
	require.True(t, updated.IsTeacher)
}

func TestUpdateProfile(t *testing.T) {
	t.Parallel()

	svc := newService()
	ctx := schoolCtx("st-marys")

	user, err := svc.CreateTeacher(ctx, validInput("teacher@st-marys.edu.gh"))
	require.NoError(t, err)

	newName := "Akosua Boateng"
	updated, err := svc.UpdateProfile(ctx, user.ID, service.UpdateProfileInput{FullName: &newName})
	require.NoError(t, err)
	require.Equal(t, "Akosua Boateng", updated.FullName)

	empty := "  "
	_, err = svc.UpdateProfile(ctx, user.ID, service.UpdateProfileInput{FullName: &empty})
	var verr *service.ValidationError
	require.True(t, errors.As(err, &verr))
}

func TestSetActive(t *testing.T) {
	t.Parallel()

	svc := newService()
	ctx := schoolCtx("st-marys")

	user, err := svc.CreateTeacher(ctx, validInput("teacher@st-marys.edu.gh"))
	require.NoError(t, err)
	require.True(t, user.IsActive)

	deactivated, err := svc.SetActive(ctx, user.ID, false)
	require.NoError(t, err)
	require.False(t, deactivated.IsActive)
}

func TestChangePassword(t *testing.T) {
	t.Parallel()

	svc := newService()
	ctx := schoolCtx("st-marys")

	input := validInput("teacher@st-marys.edu.gh")
	input.MustChangePassword = true
	user, err := svc.CreateTeacher(ctx, input)
	require.NoError(t, err)
	require.True(t, user.MustChangePassword)

	err = svc.ChangePassword(ctx, user.ID, "wrong-current", "brand-new-pass")
	require.ErrorIs(t, err, service.ErrInvalidCredentials)

	err = svc.ChangePassword(ctx, user.ID, "s3cret-pass", "short")
	var verr *service.ValidationError
	require.True(t, errors.As(err, &verr))

	err = svc.ChangePassword(ctx, user.ID, "s3cret-pass", "brand-new-pass")
	require.NoError(t, err)

	rotated, err := svc.Get(ctx, user.ID)
	require.NoError(t, err)
	require.False(t, rotated.MustChangePassword)
	require.True(t, auth.VerifyPassword("brand-new-pass", rotated.HashedPassword))
	require.False(t, auth.VerifyPassword("s3cret-pass", rotated.HashedPassword))
}

func TestGetByEmailUsesNormalizedForm(t *testing.T) {
	t.Parallel()

	svc := newService()
	ctx := schoolCtx("st-marys")

	_, err := svc.CreateTeacher(ctx, validInput("teacher@st-marys.edu.gh"))
	require.NoError(t, err)

	found, err := svc.GetByEmail(ctx, "teacher@ST-MARYS.EDU.GH")
	require.NoError(t, err)
	require.Equal(t, "teacher@st-marys.edu.gh", found.Email)
}
