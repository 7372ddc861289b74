package repo_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	coursesrepo "github.com/novalearn-io/novalearn/domains/courses/be/repo"
	coursesservice "github.com/novalearn-io/novalearn/domains/courses/be/service"
	"github.com/novalearn-io/novalearn/domains/quizzes/be/repo"
	"github.com/novalearn-io/novalearn/domains/quizzes/be/service"
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

func seedCourse(t *testing.T, ctx context.Context) uuid.UUID {
	t.Helper()
	course, err := coursesrepo.NewPostgresRepository().CreateCourse(ctx, coursesservice.Course{
		ID:    uuid.New(),
		Code:  "CS101",
		Title: "Intro to CS",
	})
	require.NoError(t, err)
	return course.ID
}

func TestQuizLifecycleAgainstTenantSchema(t *testing.T) {
	ctx := tenantCtx(t)
	r := repo.NewPostgresRepository()
	courseID := seedCourse(t, ctx)

	limit := 600
	quiz, err := r.CreateQuiz(ctx, service.Quiz{
		ID:               uuid.New(),
		CourseID:         courseID,
		Title:            "Midterm",
		Questions:        json.RawMessage(`[{"prompt": "2 + 2 = ?", "kind": "short_answer", "answer": "4"}]`),
		TimeLimitSeconds: &limit,
	})
	require.NoError(t, err)
	require.False(t, quiz.Published, "quizzes start unpublished")
	require.False(t, quiz.CreatedAt.IsZero())

	got, err := r.GetQuiz(ctx, quiz.ID)
	require.NoError(t, err)
	require.Equal(t, "Midterm", got.Title)
	require.JSONEq(t, string(quiz.Questions), string(got.Questions))
	require.NotNil(t, got.TimeLimitSeconds)
	require.Equal(t, 600, *got.TimeLimitSeconds)

	_, err = r.GetQuiz(ctx, uuid.New())
	require.ErrorIs(t, err, service.ErrNotFound)

	published, err := r.SetPublished(ctx, quiz.ID, true)
	require.NoError(t, err)
	require.True(t, published.Published)

	_, err = r.SetPublished(ctx, uuid.New(), true)
	require.ErrorIs(t, err, service.ErrNotFound)

	list, err := r.ListQuizzes(ctx, courseID)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestCreateQuizRequiresExistingCourse(t *testing.T) {
	ctx := tenantCtx(t)
	r := repo.NewPostgresRepository()

	_, err := r.CreateQuiz(ctx, service.Quiz{
		ID:        uuid.New(),
		CourseID:  uuid.New(),
		Title:     "Orphan",
		Questions: json.RawMessage(`[{"prompt": "x", "kind": "true_false", "answer": true}]`),
	})
	require.ErrorIs(t, err, service.ErrCourseNotFound)
}

func TestRepoRequiresTenantPool(t *testing.T) {
	r := repo.NewPostgresRepository()

	_, err := r.ListQuizzes(context.Background(), uuid.New())
	require.Error(t, err)
}
