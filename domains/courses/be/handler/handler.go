// Package handler exposes tenant-scoped course endpoints. Routes mount
// behind the auth and tenant-resolver middleware, so every request arrives
// with a verified identity and its tenant pool on the context.
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/novalearn-io/novalearn/domains/courses/be/service"
	"github.com/novalearn-io/novalearn/platform/go/auth"
	"github.com/novalearn-io/novalearn/platform/go/httpapi"
	platformlogging "github.com/novalearn-io/novalearn/platform/go/logging"
)

type operation string

const (
	createOperation      operation = "coursesCreate"
	listOperation        operation = "coursesList"
	getOperation         operation = "coursesGet"
	updateOperation      operation = "coursesUpdate"
	enrollOperation      operation = "coursesEnroll"
	enrollmentsOperation operation = "coursesEnrollments"
)

// Handler wires the courses service to HTTP.
type Handler struct {
	svc    *service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc *service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("courses service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

// Mount registers the course routes.
func (h *Handler) Mount(r chi.Router) {
	r.Route("/courses", func(r chi.Router) {
		r.Post("/", h.create)
		r.Get("/", h.list)
		r.Route("/{courseID}", func(r chi.Router) {
			r.Get("/", h.get)
			r.Patch("/", h.update)
			r.Post("/enroll", h.enroll)
			r.Get("/enrollments", h.enrollments)
		})
	})
}

type courseRequest struct {
	Code        string  `json:"code"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
}

type courseResponse struct {
	ID          string    `json:"id"`
	Code        string    `json:"code"`
	Title       string    `json:"title"`
	Description *string   `json:"description,omitempty"`
	TeacherID   *string   `json:"teacherId,omitempty"`
	BranchID    *string   `json:"branchId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type enrollmentResponse struct {
	ID         string    `json:"id"`
	CourseID   string    `json:"courseId"`
	StudentID  string    `json:"studentId"`
	EnrolledAt time.Time `json:"enrolledAt"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.IdentityFromContext(r.Context())

	var req courseRequest
	if err := httpapi.DecodeJSON(r, &req); err != nil {
		httpapi.WriteProblem(w, badBody(err))
		return
	}

	course, err := h.svc.Create(r.Context(), caller, service.CreateInput{
		Code:        req.Code,
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		h.writeError(r.Context(), w, err, createOperation)
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, toAPICourse(course))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	courses, err := h.svc.List(r.Context())
	if err != nil {
		h.writeError(r.Context(), w, err, listOperation)
		return
	}
	items := make([]courseResponse, 0, len(courses))
	for _, c := range courses {
		items = append(items, toAPICourse(c))
	}
	httpapi.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.courseID(w, r)
	if !ok {
		return
	}
	course, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.writeError(r.Context(), w, err, getOperation)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, toAPICourse(course))
}

type updateRequest struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.IdentityFromContext(r.Context())

	id, ok := h.courseID(w, r)
	if !ok {
		return
	}

	var req updateRequest
	if err := httpapi.DecodeJSON(r, &req); err != nil {
		httpapi.WriteProblem(w, badBody(err))
		return
	}

	course, err := h.svc.Update(r.Context(), caller, id, service.UpdateInput{
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		h.writeError(r.Context(), w, err, updateOperation)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, toAPICourse(course))
}

func (h *Handler) enroll(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.IdentityFromContext(r.Context())

	id, ok := h.courseID(w, r)
	if !ok {
		return
	}

	enrollment, err := h.svc.SelfEnroll(r.Context(), caller, id)
	if err != nil {
		h.writeError(r.Context(), w, err, enrollOperation)
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, toAPIEnrollment(enrollment))
}

func (h *Handler) enrollments(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.IdentityFromContext(r.Context())

	id, ok := h.courseID(w, r)
	if !ok {
		return
	}

	enrollments, err := h.svc.Enrollments(r.Context(), caller, id)
	if err != nil {
		h.writeError(r.Context(), w, err, enrollmentsOperation)
		return
	}
	items := make([]enrollmentResponse, 0, len(enrollments))
	for _, e := range enrollments {
		items = append(items, toAPIEnrollment(e))
	}
	httpapi.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) courseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "courseID"))
	if err != nil {
		httpapi.WriteProblem(w, httpapi.ProblemDetails{
			Type:   httpapi.ProblemTypeValidation,
			Title:  "Validation failed",
			Status: http.StatusBadRequest,
			Detail: "invalid course id",
		})
		return uuid.Nil, false
	}
	return id, true
}

func toAPICourse(c service.Course) courseResponse {
	res := courseResponse{
		ID:          c.ID.String(),
		Code:        c.Code,
		Title:       c.Title,
		Description: c.Description,
		CreatedAt:   c.CreatedAt,
	}
	if c.TeacherID != nil {
		s := c.TeacherID.String()
		res.TeacherID = &s
	}
	if c.BranchID != nil {
		s := c.BranchID.String()
		res.BranchID = &s
	}
	return res
}

func toAPIEnrollment(e service.Enrollment) enrollmentResponse {
	return enrollmentResponse{
		ID:         e.ID.String(),
		CourseID:   e.CourseID.String(),
		StudentID:  e.StudentID.String(),
		EnrolledAt: e.EnrolledAt,
	}
}

func badBody(err error) httpapi.ProblemDetails {
	return httpapi.ProblemDetails{
		Type:   httpapi.ProblemTypeValidation,
		Title:  "Invalid request body",
		Status: http.StatusBadRequest,
		Detail: err.Error(),
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error, op operation) {
	problem := classifyError(err)

	logger := h.loggerFrom(ctx)
	fields := []zap.Field{
		zap.String("operation", string(op)),
		zap.Int("status", problem.Status),
		zap.Error(err),
	}
	switch {
	case problem.Status >= http.StatusInternalServerError:
		logger.Error("courses operation failed", fields...)
	case problem.Status == http.StatusNotFound:
		logger.Info("course not found", fields...)
	default:
		logger.Warn("courses request rejected", fields...)
	}

	httpapi.WriteProblem(w, problem)
}

func classifyError(err error) httpapi.ProblemDetails {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return httpapi.ProblemDetails{
			Type:   httpapi.ProblemTypeValidation,
			Title:  "Validation failed",
			Status: http.StatusBadRequest,
			Detail: err.Error(),
		}
	case errors.Is(err, service.ErrForbidden):
		return httpapi.ProblemDetails{
			Type:   httpapi.ProblemTypeForbidden,
			Title:  "Forbidden",
			Status: http.StatusForbidden,
			Detail: "role does not permit this operation",
		}
	case errors.Is(err, service.ErrNotFound):
		return httpapi.ProblemDetails{
			Type:   httpapi.ProblemTypeNotFound,
			Title:  "Resource not found",
			Status: http.StatusNotFound,
			Detail: "course not found",
		}
	case errors.Is(err, service.ErrDuplicateCode):
		return httpapi.ProblemDetails{
			Type:   httpapi.ProblemTypeConflict,
			Title:  "Conflict",
			Status: http.StatusConflict,
			Detail: "course code already exists",
		}
	case errors.Is(err, service.ErrAlreadyEnrolled):
		return httpapi.ProblemDetails{
			Type:   httpapi.ProblemTypeConflict,
			Title:  "Conflict",
			Status: http.StatusConflict,
			Detail: "student already enrolled",
		}
	default:
		return httpapi.ProblemDetails{
			Type:   httpapi.ProblemTypeInternal,
			Title:  "Internal server error",
			Status: http.StatusInternalServerError,
			Detail: "an unexpected error occurred",
		}
	}
}

func (h *Handler) loggerFrom(ctx context.Context) *zap.Logger {
	if logger, ok := platformlogging.FromContext(ctx); ok {
		return logger
	}
	return h.logger
}
