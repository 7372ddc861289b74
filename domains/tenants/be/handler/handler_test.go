package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/novalearn-io/novalearn/domains/tenants/be/handler"
	"github.com/novalearn-io/novalearn/domains/tenants/be/repo"
	"github.com/novalearn-io/novalearn/domains/tenants/be/service"
	"github.com/novalearn-io/novalearn/platform/go/persistence"
)

type stubProvisioner struct {
	repo *repo.MemoryRepository
	seen map[string]bool
}

func (s *stubProvisioner) Provision(ctx context.Context, tenantID, institutionName string) (service.ProvisionResult, error) {
	if s.seen[tenantID] {
		return service.ProvisionResult{}, persistence.ErrDuplicateTenant
	}
	s.seen[tenantID] = true
	s.repo.Put(service.Tenant{
		TenantID:        tenantID,
		SchemaName:      tenantID + "_schema",
		InstitutionName: institutionName,
		Status:          persistence.TenantStatusActive,
		CreatedAt:       time.Now().UTC(),
		UpdatedAt:       time.Now().UTC(),
	})
	return service.ProvisionResult{TenantID: tenantID, SchemaName: tenantID + "_schema"}, nil
}

type stubIdentities struct {
	byEmail map[string]persistence.IdentityRecord
}

func (s *stubIdentities) Create(ctx context.Context, rec persistence.IdentityRecord) (persistence.IdentityRecord, error) {
	if _, ok := s.byEmail[rec.Email]; ok {
		return persistence.IdentityRecord{}, persistence.ErrDuplicateEmail
	}
	s.byEmail[rec.Email] = rec
	return rec, nil
}

func newRouter(t *testing.T) chi.Router {
	t.Helper()
	memory := repo.NewMemoryRepository()
	svc := service.New(
		memory,
		&stubProvisioner{repo: memory, seen: make(map[string]bool)},
		&stubIdentities{byEmail: make(map[string]persistence.IdentityRecord)},
	)
	h := handler.New(svc, zap.NewNop())

	r := chi.NewRouter()
	h.MountPublic(r)
	r.Route("/admin", h.MountAdmin)
	return r
}

const registerBody = `{
	"tenantId": "acme",
	"institutionName": "Acme University",
	"adminEmail": "dean@acme.edu",
	"adminFullName": "Dana Dean",
	"adminPassword": "correct-horse"
}`

func doJSON(t *testing.T, router chi.Router, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRegisterEndpoint(t *testing.T) {
	router := newRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/register", registerBody)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "/api/v1/admin/tenants/acme", rec.Header().Get("Location"))

	var res struct {
		Tenant struct {
			TenantID   string `json:"tenantId"`
			SchemaName string `json:"schemaName"`
			Status     string `json:"status"`
		} `json:"tenant"`
		AdminID string `json:"adminId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Equal(t, "acme", res.Tenant.TenantID)
	require.Equal(t, "acme_schema", res.Tenant.SchemaName)
	require.Equal(t, "active", res.Tenant.Status)
	require.NotEmpty(t, res.AdminID)
}

func TestRegisterEndpointDuplicate(t *testing.T) {
	router := newRouter(t)

	require.Equal(t, http.StatusCreated, doJSON(t, router, http.MethodPost, "/register", registerBody).Code)

	rec := doJSON(t, router, http.MethodPost, "/register",
		strings.Replace(registerBody, "dean@acme.edu", "other@acme.edu", 1))
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestRegisterEndpointValidation(t *testing.T) {
	router := newRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/register",
		strings.Replace(registerBody, `"acme"`, `"Not A Slug"`, 1))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/register", `{"tenantId": 42}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTenantDirectoryEndpoints(t *testing.T) {
	router := newRouter(t)

	require.Equal(t, http.StatusCreated, doJSON(t, router, http.MethodPost, "/register", registerBody).Code)

	rec := doJSON(t, router, http.MethodGet, "/admin/tenants/acme", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/admin/tenants/ghost", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, http.MethodPatch, "/admin/tenants/acme",
		`{"institutionName": "Acme Institute"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Acme Institute")

	rec = doJSON(t, router, http.MethodGet, "/admin/tenants", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "acme_schema")
}
