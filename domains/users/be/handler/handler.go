// Package handler exposes identity endpoints: login plus the per-tenant user
// administration routes. Admin routes operate strictly on the caller's own
// tenant; the tenant id comes from the verified token, never the payload.
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/novalearn-io/novalearn/domains/users/be/service"
	"github.com/novalearn-io/novalearn/platform/go/auth"
	"github.com/novalearn-io/novalearn/platform/go/httpapi"
	platformlogging "github.com/novalearn-io/novalearn/platform/go/logging"
)

const tokenTTL = 12 * time.Hour

type operation string

const (
	loginOperation      operation = "usersLogin"
	createOperation     operation = "usersCreate"
	listOperation       operation = "usersList"
	meOperation         operation = "usersMe"
	deactivateOperation operation = "usersDeactivate"
)

// Handler wires the users service to HTTP.
type Handler struct {
	svc      *service.Service
	verifier *auth.Verifier
	logger   *zap.Logger
}

// New constructs a Handler instance.
func New(svc *service.Service, verifier *auth.Verifier, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("users service is required")
	}
	if verifier == nil {
		panic("token verifier is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, verifier: verifier, logger: logger}
}

// MountPublic registers the unauthenticated login endpoint.
func (h *Handler) MountPublic(r chi.Router) {
	r.Post("/auth/login", h.login)
}

// MountAuthenticated registers routes any signed-in identity may call.
func (h *Handler) MountAuthenticated(r chi.Router) {
	r.Get("/me", h.me)
}

// MountAdmin registers tenant-scoped user administration; callers must
// already have passed the admin role gate.
func (h *Handler) MountAdmin(r chi.Router) {
	r.Post("/users", h.create)
	r.Get("/users", h.list)
	r.Delete("/users/{userID}", h.deactivate)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"fullName"`
	Role      string    `json:"role"`
	TenantID  string    `json:"tenantId"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpapi.DecodeJSON(r, &req); err != nil {
		httpapi.WriteProblem(w, httpapi.ProblemDetails{
			Type:   httpapi.ProblemTypeValidation,
			Title:  "Invalid request body",
			Status: http.StatusBadRequest,
			Detail: err.Error(),
		})
		return
	}

	user, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(r.Context(), w, err, loginOperation)
		return
	}

	token, err := h.verifier.IssueToken(auth.Identity{
		UserID:   user.ID.String(),
		Email:    user.Email,
		Role:     user.Role,
		TenantID: user.TenantID,
	}, tokenTTL)
	if err != nil {
		h.writeError(r.Context(), w, err, loginOperation)
		return
	}

	httpapi.WriteJSON(w, http.StatusOK, loginResponse{Token: token, User: toAPIUser(user)})
}

type createRequest struct {
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Role     string `json:"role"`
	Password string `json:"password"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.IdentityFromContext(r.Context())
	if !ok || caller == nil {
		httpapi.WriteProblem(w, unauthorizedProblem())
		return
	}

	var req createRequest
	if err := httpapi.DecodeJSON(r, &req); err != nil {
		httpapi.WriteProblem(w, httpapi.ProblemDetails{
			Type:   httpapi.ProblemTypeValidation,
			Title:  "Invalid request body",
			Status: http.StatusBadRequest,
			Detail: err.Error(),
		})
		return
	}

	user, err := h.svc.Create(r.Context(), service.CreateInput{
		Email:    req.Email,
		FullName: req.FullName,
		Role:     req.Role,
		TenantID: caller.TenantID,
		Password: req.Password,
	})
	if err != nil {
		h.writeError(r.Context(), w, err, createOperation)
		return
	}

	httpapi.WriteJSON(w, http.StatusCreated, toAPIUser(user))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.IdentityFromContext(r.Context())
	if !ok || caller == nil {
		httpapi.WriteProblem(w, unauthorizedProblem())
		return
	}

	users, err := h.svc.ListByTenant(r.Context(), caller.TenantID)
	if err != nil {
		h.writeError(r.Context(), w, err, listOperation)
		return
	}

	items := make([]userResponse, 0, len(users))
	for _, user := range users {
		items = append(items, toAPIUser(user))
	}
	httpapi.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.IdentityFromContext(r.Context())
	if !ok || caller == nil {
		httpapi.WriteProblem(w, unauthorizedProblem())
		return
	}

	id, err := uuid.Parse(caller.UserID)
	if err != nil {
		httpapi.WriteProblem(w, unauthorizedProblem())
		return
	}

	user, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.writeError(r.Context(), w, err, meOperation)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, toAPIUser(user))
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.IdentityFromContext(r.Context())
	if !ok || caller == nil {
		httpapi.WriteProblem(w, unauthorizedProblem())
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		httpapi.WriteProblem(w, httpapi.ProblemDetails{
			Type:   httpapi.ProblemTypeValidation,
			Title:  "Validation failed",
			Status: http.StatusBadRequest,
			Detail: "invalid user id",
		})
		return
	}

	// Admins only manage identities inside their own tenant.
	target, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.writeError(r.Context(), w, err, deactivateOperation)
		return
	}
	if target.TenantID != caller.TenantID {
		h.writeError(r.Context(), w, service.ErrNotFound, deactivateOperation)
		return
	}

	if err := h.svc.Deactivate(r.Context(), id); err != nil {
		h.writeError(r.Context(), w, err, deactivateOperation)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toAPIUser(user service.User) userResponse {
	return userResponse{
		ID:        user.ID.String(),
		Email:     user.Email,
		FullName:  user.FullName,
		Role:      user.Role,
		TenantID:  user.TenantID,
		IsActive:  user.IsActive,
		CreatedAt: user.CreatedAt,
	}
}

func unauthorizedProblem() httpapi.ProblemDetails {
	return httpapi.ProblemDetails{
		Type:   httpapi.ProblemTypeValidation,
		Title:  "Unauthorized",
		Status: http.StatusUnauthorized,
		Detail: "missing credentials",
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
		logger.Error("users operation failed", fields...)
	case problem.Status == http.StatusNotFound:
		logger.Info("user not found", fields...)
	default:
		logger.Warn("users request rejected", fields...)
	}

	httpapi.WriteProblem(w, problem)
}

func classifyError(err error) httpapi.ProblemDetails {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		return httpapi.ProblemDetails{
			Type:   httpapi.ProblemTypeValidation,
			Title:  "Unauthorized",
			Status: http.StatusUnauthorized,
			Detail: "invalid credentials",
		}
	case errors.Is(err, service.ErrInvalidInput):
		return httpapi.ProblemDetails{
			Type:   httpapi.ProblemTypeValidation,
			Title:  "Validation failed",
			Status: http.StatusBadRequest,
			Detail: err.Error(),
		}
	case errors.Is(err, service.ErrNotFound):
		return httpapi.ProblemDetails{
			Type:   httpapi.ProblemTypeNotFound,
			Title:  "Resource not found",
			Status: http.StatusNotFound,
			Detail: "user not found",
		}
	case errors.Is(err, service.ErrDuplicateEmail):
		return httpapi.ProblemDetails{
			Type:   httpapi.ProblemTypeConflict,
			Title:  "Conflict",
			Status: http.StatusConflict,
			Detail: "email already registered",
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
