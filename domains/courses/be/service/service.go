// Package service implements tenant-scoped course and enrollment logic.
// Teachers and admins manage courses; students read them and enroll
// themselves. All data access happens through the tenant pool the resolver
// middleware attached to the request context.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/novalearn-io/novalearn/platform/go/auth"
)

// Errors returned by the service layer.
var (
	ErrNotFound        = errors.New("course not found")
	ErrDuplicateCode   = errors.New("course code already exists")
	ErrAlreadyEnrolled = errors.New("student already enrolled")
	ErrForbidden       = errors.New("operation not allowed for role")
	ErrInvalidInput    = errors.New("invalid input")
)

// Course is the domain model for a tenant-local course.
type Course struct {
	ID          uuid.UUID
	Code        string
	Title       string
	Description *string
	TeacherID   *uuid.UUID
	BranchID    *uuid.UUID
	CreatedAt   time.Time
}

// Enrollment links a student profile to a course.
type Enrollment struct {
	ID         uuid.UUID
	CourseID   uuid.UUID
	StudentID  uuid.UUID
	EnrolledAt time.Time
}

// Profile is the tenant-local mirror of a global identity.
type Profile struct {
	IdentityID uuid.UUID
	FullName   string
	Email      string
	Role       string
}

// CreateInput is a new course request.
type CreateInput struct {
	Code        string
	Title       string
	Description *string
}

// UpdateInput carries the mutable course fields.
type UpdateInput struct {
	Title       string
	Description *string
}

// Repository abstracts tenant-local persistence.
type Repository interface {
	EnsureProfile(ctx context.Context, p Profile) (uuid.UUID, error)
	CreateCourse(ctx context.Context, c Course) (Course, error)
	GetCourse(ctx context.Context, id uuid.UUID) (Course, error)
	ListCourses(ctx context.Context) ([]Course, error)
	UpdateCourse(ctx context.Context, id uuid.UUID, title string, description *string) (Course, error)
	Enroll(ctx context.Context, courseID, studentProfileID uuid.UUID) (Enrollment, error)
	ListEnrollments(ctx context.Context, courseID uuid.UUID) ([]Enrollment, error)
}

// Service provides course operations.
type Service struct {
	repo Repository
}

// New constructs a Service with required dependencies.
func New(repo Repository) *Service {
	if repo == nil {
		panic("courses repo is required")
	}
	return &Service{repo: repo}
}

// Create adds a course owned by the calling teacher or admin.
func (s *Service) Create(ctx context.Context, caller *auth.Identity, input CreateInput) (Course, error) {
	if err := requireRole(caller, auth.RoleTeacher, auth.RoleAdmin); err != nil {
		return Course{}, err
	}
	input.Code = strings.TrimSpace(input.Code)
	input.Title = strings.TrimSpace(input.Title)
	if input.Code == "" || input.Title == "" {
		return Course{}, fmt.Errorf("%w: code and title are required", ErrInvalidInput)
	}

	profileID, err := s.callerProfile(ctx, caller)
	if err != nil {
		return Course{}, err
	}

	return s.repo.CreateCourse(ctx, Course{
		ID:          uuid.New(),
		Code:        input.Code,
		Title:       input.Title,
		Description: input.Description,
		TeacherID:   &profileID,
	})
}

// Get returns a course by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Course, error) {
	return s.repo.GetCourse(ctx, id)
}

// List returns the tenant's courses.
func (s *Service) List(ctx context.Context) ([]Course, error) {
	return s.repo.ListCourses(ctx)
}

// Update modifies the mutable fields of a course.
func (s *Service) Update(ctx context.Context, caller *auth.Identity, id uuid.UUID, input UpdateInput) (Course, error) {
	if err := requireRole(caller, auth.RoleTeacher, auth.RoleAdmin); err != nil {
		return Course{}, err
	}
	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" {
		return Course{}, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	return s.repo.UpdateCourse(ctx, id, input.Title, input.Description)
}

// SelfEnroll enrolls the calling student into a course.
func (s *Service) SelfEnroll(ctx context.Context, caller *auth.Identity, courseID uuid.UUID) (Enrollment, error) {
	if err := requireRole(caller, auth.RoleStudent); err != nil {
		return Enrollment{}, err
	}

	profileID, err := s.callerProfile(ctx, caller)
	if err != nil {
		return Enrollment{}, err
	}
	return s.repo.Enroll(ctx, courseID, profileID)
}

// Enrollments lists a course's roster for teachers and admins.
func (s *Service) Enrollments(ctx context.Context, caller *auth.Identity, courseID uuid.UUID) ([]Enrollment, error) {
	if err := requireRole(caller, auth.RoleTeacher, auth.RoleAdmin); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetCourse(ctx, courseID); err != nil {
		return nil, err
	}
	return s.repo.ListEnrollments(ctx, courseID)
}

func (s *Service) callerProfile(ctx context.Context, caller *auth.Identity) (uuid.UUID, error) {
	identityID, err := uuid.Parse(caller.UserID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: malformed subject", ErrInvalidInput)
	}
	// Tokens carry no display name; the email stands in until the profile
	// is edited in the tenant.
	return s.repo.EnsureProfile(ctx, Profile{
		IdentityID: identityID,
		FullName:   caller.Email,
		Email:      caller.Email,
		Role:       caller.Role,
	})
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
