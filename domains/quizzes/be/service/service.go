// Package service implements tenant-scoped quiz management. Question payloads
// are schema-validated JSONB documents; the database stores them opaquely and
// this layer is the only gatekeeper of their shape.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/novalearn-io/novalearn/platform/go/auth"
)

// Errors returned by the service layer.
var (
	ErrNotFound         = errors.New("quiz not found")
	ErrCourseNotFound   = errors.New("course not found")
	ErrInvalidQuestions = errors.New("questions do not match schema")
	ErrForbidden        = errors.New("operation not allowed for role")
	ErrInvalidInput     = errors.New("invalid input")
)

// Quiz is the domain model for a tenant-local quiz.
type Quiz struct {
	ID               uuid.UUID
	CourseID         uuid.UUID
	Title            string
	Questions        json.RawMessage
	TimeLimitSeconds *int
	Published        bool
	CreatedAt        time.Time
}

// CreateInput is a new quiz request.
type CreateInput struct {
	CourseID         uuid.UUID
	Title            string
	Questions        json.RawMessage
	TimeLimitSeconds *int
}

// Repository abstracts tenant-local quiz persistence.
type Repository interface {
	CreateQuiz(ctx context.Context, q Quiz) (Quiz, error)
	GetQuiz(ctx context.Context, id uuid.UUID) (Quiz, error)
	ListQuizzes(ctx context.Context, courseID uuid.UUID) ([]Quiz, error)
	SetPublished(ctx context.Context, id uuid.UUID, published bool) (Quiz, error)
}

// Service provides quiz operations.
type Service struct {
	repo      Repository
	validator *QuestionValidator
}

// New constructs a Service with required dependencies.
func New(repo Repository, validator *QuestionValidator) *Service {
	if repo == nil {
		panic("quizzes repo is required")
	}
	if validator == nil {
		panic("question validator is required")
	}
	return &Service{repo: repo, validator: validator}
}

// Create validates the question payload and stores the quiz unpublished.
func (s *Service) Create(ctx context.Context, caller *auth.Identity, input CreateInput) (Quiz, error) {
	if err := requireRole(caller, auth.RoleTeacher, auth.RoleAdmin); err != nil {
		return Quiz{}, err
	}
	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" {
		return Quiz{}, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if input.TimeLimitSeconds != nil && *input.TimeLimitSeconds <= 0 {
		return Quiz{}, fmt.Errorf("%w: time limit must be positive", ErrInvalidInput)
	}
	if err := s.validator.Validate(input.Questions); err != nil {
		return Quiz{}, err
	}

	return s.repo.CreateQuiz(ctx, Quiz{
		ID:               uuid.New(),
		CourseID:         input.CourseID,
		Title:            input.Title,
		Questions:        input.Questions,
		TimeLimitSeconds: input.TimeLimitSeconds,
	})
}

// Get returns a quiz by id. Students only see published quizzes.
func (s *Service) Get(ctx context.Context, caller *auth.Identity, id uuid.UUID) (Quiz, error) {
	quiz, err := s.repo.GetQuiz(ctx, id)
	if err != nil {
		return Quiz{}, err
	}
	if !quiz.Published && requireRole(caller, auth.RoleTeacher, auth.RoleAdmin) != nil {
		return Quiz{}, ErrNotFound
	}
	return quiz, nil
}

// List returns a course's quizzes, hiding unpublished ones from students.
func (s *Service) List(ctx context.Context, caller *auth.Identity, courseID uuid.UUID) ([]Quiz, error) {
	quizzes, err := s.repo.ListQuizzes(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if requireRole(caller, auth.RoleTeacher, auth.RoleAdmin) == nil {
		return quizzes, nil
	}
	published := make([]Quiz, 0, len(quizzes))
	for _, q := range quizzes {
		if q.Published {
			published = append(published, q)
		}
	}
	return published, nil
}

// SetPublished flips a quiz's visibility for students.
func (s *Service) SetPublished(ctx context.Context, caller *auth.Identity, id uuid.UUID, published bool) (Quiz, error) {
	if err := requireRole(caller, auth.RoleTeacher, auth.RoleAdmin); err != nil {
		return Quiz{}, err
	}
	return s.repo.SetPublished(ctx, id, published)
}

func requireRole(caller *auth.Identity, roles ...string) error {
	if caller == nil {
		return ErrForbidden
	}
	for _, role := range roles {
		if caller.Role == role {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrForbidden, caller.Role)
}
