package service_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/novalearn-io/novalearn/domains/quizzes/be/service"
	"github.com/novalearn-io/novalearn/platform/go/auth"
)

const validQuestions = `[
	{"prompt": "2 + 2 = ?", "kind": "multiple_choice", "choices": ["3", "4", "5"], "answer": 1, "points": 2},
	{"prompt": "The sky is blue.", "kind": "true_false", "answer": true},
	{"prompt": "Name the capital of France.", "kind": "short_answer", "answer": "Paris"}
]`

func TestQuestionValidator(t *testing.T) {
	v, err := service.NewQuestionValidator()
	require.NoError(t, err)

	require.NoError(t, v.Validate(json.RawMessage(validQuestions)))

	cases := []struct {
		name    string
		payload string
	}{
		{"not an array", `{"prompt": "x", "kind": "true_false"}`},
		{"empty array", `[]`},
		{"missing prompt", `[{"kind": "true_false"}]`},
		{"unknown kind", `[{"prompt": "x", "kind": "essay"}]`},
		{"multiple choice without choices", `[{"prompt": "x", "kind": "multiple_choice"}]`},
		{"single choice", `[{"prompt": "x", "kind": "multiple_choice", "choices": ["only"]}]`},
		{"unknown field", `[{"prompt": "x", "kind": "true_false", "hint": "nope"}]`},
		{"negative points", `[{"prompt": "x", "kind": "true_false", "points": -1}]`},
		{"malformed json", `[{`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := v.Validate(json.RawMessage(tc.payload))
			require.ErrorIs(t, err, service.ErrInvalidQuestions)
		})
	}
}

type memoryRepo struct {
	quizzes map[uuid.UUID]service.Quiz
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{quizzes: make(map[uuid.UUID]service.Quiz)}
}

func (m *memoryRepo) CreateQuiz(ctx context.Context, q service.Quiz) (service.Quiz, error) {
	q.CreatedAt = time.Now().UTC()
	m.quizzes[q.ID] = q
	return q, nil
}

func (m *memoryRepo) GetQuiz(ctx context.Context, id uuid.UUID) (service.Quiz, error) {
	q, ok := m.quizzes[id]
	if !ok {
		return service.Quiz{}, service.ErrNotFound
	}
	return q, nil
}

func (m *memoryRepo) ListQuizzes(ctx context.Context, courseID uuid.UUID) ([]service.Quiz, error) {
	out := make([]service.Quiz, 0)
	for _, q := range m.quizzes {
		if q.CourseID == courseID {
			out = append(out, q)
		}
	}
	return out, nil
}

func (m *memoryRepo) SetPublished(ctx context.Context, id uuid.UUID, published bool) (service.Quiz, error) {
	q, ok := m.quizzes[id]
	if !ok {
		return service.Quiz{}, service.ErrNotFound
	}
	q.Published = published
	m.quizzes[id] = q
	return q, nil
}

var _ service.Repository = (*memoryRepo)(nil)

func newService(t *testing.T) *service.Service {
	t.Helper()
	v, err := service.NewQuestionValidator()
	require.NoError(t, err)
	return service.New(newMemoryRepo(), v)
}

func identity(role string) *auth.Identity {
	return &auth.Identity{UserID: uuid.NewString(), Email: role + "@acme.edu", Role: role, TenantID: "acme"}
}

func TestCreateValidatesQuestions(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, identity(auth.RoleTeacher), service.CreateInput{
		CourseID:  uuid.New(),
		Title:     "Quiz 1",
		Questions: json.RawMessage(`[{"prompt": "x", "kind": "essay"}]`),
	})
	require.ErrorIs(t, err, service.ErrInvalidQuestions)

	quiz, err := svc.Create(ctx, identity(auth.RoleTeacher), service.CreateInput{
		CourseID:  uuid.New(),
		Title:     "Quiz 1",
		Questions: json.RawMessage(validQuestions),
	})
	require.NoError(t, err)
	require.False(t, quiz.Published, "new quizzes start unpublished")
}

func TestCreateRequiresTeacherOrAdmin(t *testing.T) {
	svc := newService(t)

	_, err := svc.Create(context.Background(), identity(auth.RoleStudent), service.CreateInput{
		CourseID:  uuid.New(),
		Title:     "Quiz 1",
		Questions: json.RawMessage(validQuestions),
	})
	require.ErrorIs(t, err, service.ErrForbidden)
}

func TestStudentVisibility(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	teacher := identity(auth.RoleTeacher)
	student := identity(auth.RoleStudent)
	courseID := uuid.New()

	quiz, err := svc.Create(ctx, teacher, service.CreateInput{
		CourseID:  courseID,
		Title:     "Quiz 1",
		Questions: json.RawMessage(validQuestions),
	})
	require.NoError(t, err)

	// Unpublished quizzes are invisible to students.
	_, err = svc.Get(ctx, student, quiz.ID)
	require.ErrorIs(t, err, service.ErrNotFound)

	list, err := svc.List(ctx, student, courseID)
	require.NoError(t, err)
	require.Empty(t, list)

	_, err = svc.SetPublished(ctx, student, quiz.ID, true)
	require.ErrorIs(t, err, service.ErrForbidden)

	_, err = svc.SetPublished(ctx, teacher, quiz.ID, true)
	require.NoError(t, err)

	got, err := svc.Get(ctx, student, quiz.ID)
	require.NoError(t, err)
	require.True(t, got.Published)

	list, err = svc.List(ctx, student, courseID)
	require.NoError(t, err)
	require.Len(t, list, 1)
}
