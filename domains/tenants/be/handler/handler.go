// Package handler exposes the tenant registry over HTTP: public institution
// registration plus the admin directory endpoints.
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/novalearn-io/novalearn/domains/tenants/be/service"
	"github.com/novalearn-io/novalearn/platform/go/httpapi"
	platformlogging "github.com/novalearn-io/novalearn/platform/go/logging"
)

type operation string

const (
	registerOperation operation = "tenantsRegister"
	listOperation     operation = "tenantsList"
	getOperation      operation = "tenantsGet"
	renameOperation   operation = "tenantsRename"
)

// Handler wires the tenants service to HTTP.
type Handler struct {
	svc    *service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc *service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("tenants service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

// MountPublic registers the unauthenticated registration endpoint.
func (h *Handler) MountPublic(r chi.Router) {
	r.Post("/register", h.register)
}

// MountAdmin registers the directory endpoints; callers must already have
// passed the admin role gate.
func (h *Handler) MountAdmin(r chi.Router) {
	r.Get("/tenants", h.list)
	r.Get("/tenants/{tenantID}", h.get)
	r.Patch("/tenants/{tenantID}", h.rename)
}

type registerRequest struct {
	TenantID        string `json:"tenantId"`
	InstitutionName string `json:"institutionName"`
	AdminEmail      string `json:"adminEmail"`
	AdminFullName   string `json:"adminFullName"`
	AdminPassword   string `json:"adminPassword"`
}

type tenantResponse struct {
	TenantID        string    `json:"tenantId"`
	SchemaName      string    `json:"schemaName"`
	InstitutionName string    `json:"institutionName"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

type registerResponse struct {
	Tenant  tenantResponse `json:"tenant"`
	AdminID string         `json:"adminId"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpapi.DecodeJSON(r, &req); err != nil {
		httpapi.WriteProblem(w, httpapi.ProblemDetails{
			Type:   httpapi.ProblemTypeValidation,
			Title:  "Invalid request body",
			Status: http.StatusBadRequest,
			Detail: err.Error(),
		})
		return
	}

	res, err := h.svc.Register(r.Context(), service.RegisterInput{
		TenantID:        req.TenantID,
		InstitutionName: req.InstitutionName,
		AdminEmail:      req.AdminEmail,
		AdminFullName:   req.AdminFullName,
		AdminPassword:   req.AdminPassword,
	})
	if err != nil {
		h.writeError(r.Context(), w, err, registerOperation)
		return
	}

	w.Header().Set("Location", "/api/v1/admin/tenants/"+res.Tenant.TenantID)
	httpapi.WriteJSON(w, http.StatusCreated, registerResponse{
		Tenant:  toAPITenant(res.Tenant),
		AdminID: res.AdminID.String(),
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	tenants, err := h.svc.List(r.Context())
	if err != nil {
		h.writeError(r.Context(), w, err, listOperation)
		return
	}

	items := make([]tenantResponse, 0, len(tenants))
	for _, t := range tenants {
		items = append(items, toAPITenant(t))
	}
	httpapi.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.Get(r.Context(), chi.URLParam(r, "tenantID"))
	if err != nil {
		h.writeError(r.Context(), w, err, getOperation)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, toAPITenant(t))
}

type renameRequest struct {
	InstitutionName string `json:"institutionName"`
}

func (h *Handler) rename(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if err := httpapi.DecodeJSON(r, &req); err != nil {
		httpapi.WriteProblem(w, httpapi.ProblemDetails{
			Type:   httpapi.ProblemTypeValidation,
			Title:  "Invalid request body",
			Status: http.StatusBadRequest,
			Detail: err.Error(),
		})
		return
	}

	t, err := h.svc.Rename(r.Context(), chi.URLParam(r, "tenantID"), req.InstitutionName)
	if err != nil {
		h.writeError(r.Context(), w, err, renameOperation)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, toAPITenant(t))
}

func toAPITenant(t service.Tenant) tenantResponse {
	return tenantResponse{
		TenantID:        t.TenantID,
		SchemaName:      t.SchemaName,
		InstitutionName: t.InstitutionName,
		Status:          t.Status,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
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
		logger.Error("tenants operation failed", fields...)
	case problem.Status == http.StatusNotFound:
		logger.Info("tenant not found", fields...)
	default:
		logger.Warn("tenants request rejected", fields...)
	}

	httpapi.WriteProblem(w, problem)
}

func classifyError(err error) httpapi.ProblemDetails {
	switch {
	case errors.Is(err, service.ErrInvalidTenantID), errors.Is(err, service.ErrInvalidInput):
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
			Detail: "tenant not found",
		}
	case errors.Is(err, service.ErrDuplicateTenant):
		return httpapi.ProblemDetails{
			Type:   httpapi.ProblemTypeConflict,
			Title:  "Conflict",
			Status: http.StatusConflict,
			Detail: "tenant id already registered",
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
