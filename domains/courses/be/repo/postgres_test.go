package repo_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/novalearn-io/novalearn/domains/courses/be/repo"
	"github.com/novalearn-io/novalearn/domains/courses/be/service"
	"github.com/novalearn-io/novalearn/domains/tenants/be/provisioning"
	"github.com/novalearn-io/novalearn/platform/go/persistence"
	"github.com/novalearn-io/novalearn/platform/go/pgtest"
	"github.com/novalearn-io/novalearn/platform/go/tenant"
)

// tenantCtx provisions a tenant and returns a context carrying its pool, the
// way requests arrive after the resolver middleware.
func tenantCtx(t *testing.T) context.Context {
	t.Helper()
	ctx := context.Background()

	pool := pgtest.Pool(t)
	store, err := persistence.NewRegistryStore(pool)
	require.NoError(t, err)

	slug := pgtest.Slug(t)
	p := provisioning.NewSchemaProvisioner(pool, store, zap.NewNop())
	res, err := p.Provision(ctx, slug, "Acme University")
	require.NoError(t, err)

	tenantPool, err := persistence.NewTenantPool(ctx,
		persistence.PoolConfig{ConnString: pgtest.ConnString(t)}, res.SchemaName)
	require.NoError(t, err)
	t.Cleanup(tenantPool.Close)

	return tenant.WithPool(ctx, tenantPool)
}

func TestCourseLifecycleAgainstTenantSchema(t *testing.T) {
	ctx := tenantCtx(t)
	r := repo.NewPostgresRepository()

	teacherProfile, err := r.EnsureProfile(ctx, service.Profile{
		IdentityID: uuid.New(),
		FullName:   "Terry Teacher",
		Email:      "terry@acme.edu",
		Role:       "teacher",
	})
	require.NoError(t, err)

	course, err := r.CreateCourse(ctx, service.Course{
		ID:        uuid.New(),
		Code:      "CS101",
		Title:     "Intro to CS",
		TeacherID: &teacherProfile,
	})
	require.NoError(t, err)
	require.NotNil(t, course.BranchID, "course lands in the main branch by default")
	require.False(t, course.CreatedAt.IsZero())

	_, err = r.CreateCourse(ctx, service.Course{ID: uuid.New(), Code: "CS101", Title: "Redux"})
	require.ErrorIs(t, err, service.ErrDuplicateCode)

	got, err := r.GetCourse(ctx, course.ID)
	require.NoError(t, err)
	require.Equal(t, "CS101", got.Code)

	_, err = r.GetCourse(ctx, uuid.New())
	require.ErrorIs(t, err, service.ErrNotFound)

	all, err := r.ListCourses(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestEnrollAgainstTenantSchema(t *testing.T) {
	ctx := tenantCtx(t)
	r := repo.NewPostgresRepository()

	studentIdentity := uuid.New()
	studentProfile, err := r.EnsureProfile(ctx, service.Profile{
		IdentityID: studentIdentity,
		FullName:   "Sam Student",
		Email:      "sam@acme.edu",
		Role:       "student",
	})
	require.NoError(t, err)

	// Re-ensuring the same identity returns the same profile row.
	again, err := r.EnsureProfile(ctx, service.Profile{
		IdentityID: studentIdentity,
		FullName:   "Sam S.",
		Email:      "sam@acme.edu",
		Role:       "student",
	})
	require.NoError(t, err)
	require.Equal(t, studentProfile, again)

	course, err := r.CreateCourse(ctx, service.Course{ID: uuid.New(), Code: "CS101", Title: "Intro"})
	require.NoError(t, err)

	enrollment, err := r.Enroll(ctx, course.ID, studentProfile)
	require.NoError(t, err)
	require.False(t, enrollment.EnrolledAt.IsZero())

	_, err = r.Enroll(ctx, course.ID, studentProfile)
	require.ErrorIs(t, err, service.ErrAlreadyEnrolled)

	_, err = r.Enroll(ctx, uuid.New(), studentProfile)
	require.ErrorIs(t, err, service.ErrNotFound)

	roster, err := r.ListEnrollments(ctx, course.ID)
	require.NoError(t, err)
	require.Len(t, roster, 1)
	require.Equal(t, studentProfile, roster[0].StudentID)
}

func TestRepoRequiresTenantPool(t *testing.T) {
	r := repo.NewPostgresRepository()

	_, err := r.ListCourses(context.Background())
	require.Error(t, err)
}
