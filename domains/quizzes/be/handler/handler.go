// Package handler exposes tenant-scoped quiz endpoints behind the auth and
// tenant-resolver middleware.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/novalearn-io/novalearn/domains/quizzes/be/service"
	"github.com/novalearn-io/novalearn/platform/go/auth"
	"github.com/novalearn-io/novalearn/platform/go/httpapi"
	platformlogging "github.com/novalearn-io/novalearn/platform/go/logging"
)

type operation string

const (
	createOperation  operation = "quizzesCreate"
	getOperation     operation = "quizzesGet"
	listOperation    operation = "quizzesList"
	publishOperation operation = "quizzesPublish"
)

// Handler wires the quizzes service to HTTP.
type Handler struct {
	svc    *service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc *service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("quizzes service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

// Mount registers the quiz routes.
func (h *Handler) Mount(r chi.Router) {
	r.Route("/quizzes", func(r chi.Router) {
		r.Post("/", h.create)
		r.Route("/{quizID}", func(r chi.Router) {
			r.Get("/", h.get)
			r.Post("/publish", h.publish)
		})
	})
	r.Get("/courses/{courseID}/quizzes", h.list)
}

type createRequest struct {
	CourseID         string          `json:"courseId"`
	Title            string          `json:"title"`
	Questions        json.RawMessage `json:"questions"`
	TimeLimitSeconds *int            `json:"timeLimitSeconds"`
}

type quizResponse struct {
	ID               string          `json:"id"`
	CourseID         string          `json:"courseId"`
	Title            string          `json:"title"`
	Questions        json.RawMessage `json:"questions"`
	TimeLimitSeconds *int            `json:"timeLimitSeconds,omitempty"`
	Published        bool            `json:"published"`
	CreatedAt        time.Time       `json:"createdAt"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.IdentityFromContext(r.Context())

	var req createRequest
	if err := httpapi.DecodeJSON(r, &req); err != nil {
		httpapi.WriteProblem(w, badBody(err))
		return
	}
	courseID, err := uuid.Parse(req.CourseID)
	if err != nil {
		httpapi.WriteProblem(w, httpapi.ProblemDetails{
			Type:   httpapi.ProblemTypeValidation,
			Title:  "Validation failed",
			Status: http.StatusBadRequest,
			Detail: "invalid course id",
		})
		return
	}

	quiz, err := h.svc.Create(r.Context(), caller, service.CreateInput{
		CourseID:         courseID,
		Title:            req.Title,
		Questions:        req.Questions,
		TimeLimitSeconds: req.TimeLimitSeconds,
	})
	if err != nil {
		h.writeError(r.Context(), w, err, createOperation)
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, toAPIQuiz(quiz))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.IdentityFromContext(r.Context())

	id, ok := h.quizID(w, r)
	if !ok {
		return
	}
	quiz, err := h.svc.Get(r.Context(), caller, id)
	if err != nil {
		h.writeError(r.Context(), w, err, getOperation)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, toAPIQuiz(quiz))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.IdentityFromContext(r.Context())

	courseID, err := uuid.Parse(chi.URLParam(r, "courseID"))
	if err != nil {
		httpapi.WriteProblem(w, httpapi.ProblemDetails{
			Type:   httpapi.ProblemTypeValidation,
			Title:  "Validation failed",
			Status: http.StatusBadRequest,
			Detail: "invalid course id",
		})
		return
	}

	quizzes, err := h.svc.List(r.Context(), caller, courseID)
	if err != nil {
		h.writeError(r.Context(), w, err, listOperation)
		return
	}
	items := make([]quizResponse, 0, len(quizzes))
	for _, q := range quizzes {
		items = append(items, toAPIQuiz(q))
	}
	httpapi.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

type publishRequest struct {
	Published bool `json:"published"`
}

func (h *Handler) publish(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.IdentityFromContext(r.Context())

	id, ok := h.quizID(w, r)
	if !ok {
		return
	}

	var req publishRequest
	if err := httpapi.DecodeJSON(r, &req); err != nil {
		httpapi.WriteProblem(w, badBody(err))
		return
	}

	quiz, err := h.svc.SetPublished(r.Context(), caller, id, req.Published)
	if err != nil {
		h.writeError(r.Context(), w, err, publishOperation)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, toAPIQuiz(quiz))
}

func (h *Handler) quizID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "quizID"))
	if err != nil {
		httpapi.WriteProblem(w, httpapi.ProblemDetails{
			Type:   httpapi.ProblemTypeValidation,
			Title:  "Validation failed",
			Status: http.StatusBadRequest,
			Detail: "invalid quiz id",
		})
		return uuid.Nil, false
	}
	return id, true
}

func toAPIQuiz(q service.Quiz) quizResponse {
	return quizResponse{
		ID:               q.ID.String(),
		CourseID:         q.CourseID.String(),
		Title:            q.Title,
		Questions:        q.Questions,
		TimeLimitSeconds: q.TimeLimitSeconds,
		Published:        q.Published,
		CreatedAt:        q.CreatedAt,
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
		logger.Error("quizzes operation failed", fields...)
	case problem.Status == http.StatusNotFound:
		logger.Info("quiz not found", fields...)
	default:
		logger.Warn("quizzes request rejected", fields...)
	}

	httpapi.WriteProblem(w, problem)
}

func classifyError(err error) httpapi.ProblemDetails {
	switch {
	case errors.Is(err, service.ErrInvalidQuestions), errors.Is(err, service.ErrInvalidInput):
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
			Detail: "quiz not found",
		}
	case errors.Is(err, service.ErrCourseNotFound):
		return httpapi.ProblemDetails{
			Type:   httpapi.ProblemTypeNotFound,
			Title:  "Resource not found",
			Status: http.StatusNotFound,
			Detail: "course not found",
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
