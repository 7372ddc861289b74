package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/novalearn-io/novalearn/domains/tenants/be/repo"
	"github.com/novalearn-io/novalearn/domains/tenants/be/service"
	"github.com/novalearn-io/novalearn/platform/go/persistence"
)

// fakeProvisioner records provisioned tenants in the memory repo the same way
// the real provisioner writes through the registry.
type fakeProvisioner struct {
	mu       sync.Mutex
	repo     *repo.MemoryRepository
	seen     map[string]bool
	failWith error
}

func newFakeProvisioner(r *repo.MemoryRepository) *fakeProvisioner {
	return &fakeProvisioner{repo: r, seen: make(map[string]bool)}
}

func (f *fakeProvisioner) Provision(ctx context.Context, tenantID, institutionName string) (service.ProvisionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failWith != nil {
		return service.ProvisionResult{}, f.failWith
	}
	if f.seen[tenantID] {
		return service.ProvisionResult{}, persistence.ErrDuplicateTenant
	}
	f.seen[tenantID] = true

	schemaName := tenantID + "_schema"
	f.repo.Put(service.Tenant{
		TenantID:        tenantID,
		SchemaName:      schemaName,
		InstitutionName: institutionName,
		Status:          persistence.TenantStatusActive,
		CreatedAt:       time.Now().UTC(),
		UpdatedAt:       time.Now().UTC(),
	})
	return service.ProvisionResult{TenantID: tenantID, SchemaName: schemaName}, nil
}

type fakeIdentities struct {
	mu      sync.Mutex
	byEmail map[string]persistence.IdentityRecord
}

func newFakeIdentities() *fakeIdentities {
	return &fakeIdentities{byEmail: make(map[string]persistence.IdentityRecord)}
}

func (f *fakeIdentities) Create(ctx context.Context, rec persistence.IdentityRecord) (persistence.IdentityRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.byEmail[rec.Email]; exists {
		return persistence.IdentityRecord{}, persistence.ErrDuplicateEmail
	}
	f.byEmail[rec.Email] = rec
	return rec, nil
}

func newService(t *testing.T) (*service.Service, *repo.MemoryRepository, *fakeProvisioner, *fakeIdentities) {
	t.Helper()
	r := repo.NewMemoryRepository()
	p := newFakeProvisioner(r)
	ids := newFakeIdentities()
	return service.New(r, p, ids), r, p, ids
}

func registerInput(tenantID string) service.RegisterInput {
	return service.RegisterInput{
		TenantID:        tenantID,
		InstitutionName: "Acme University",
		AdminEmail:      "dean@acme.edu",
		AdminFullName:   "Dana Dean",
		AdminPassword:   "correct-horse",
	}
}

func TestRegisterCreatesTenantAndAdmin(t *testing.T) {
	svc, _, _, ids := newService(t)

	res, err := svc.Register(context.Background(), registerInput("acme"))
	require.NoError(t, err)
	require.Equal(t, "acme", res.Tenant.TenantID)
	require.Equal(t, "acme_schema", res.Tenant.SchemaName)
	require.Equal(t, persistence.TenantStatusActive, res.Tenant.Status)
	require.NotEqual(t, "", res.AdminID.String())

	admin := ids.byEmail["dean@acme.edu"]
	require.Equal(t, "acme", admin.TenantID)
	require.Equal(t, "admin", admin.Role)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte("correct-horse")))
}

func TestRegisterDuplicateTenant(t *testing.T) {
	svc, _, _, _ := newService(t)

	_, err := svc.Register(context.Background(), registerInput("acme"))
	require.NoError(t, err)

	input := registerInput("acme")
	input.AdminEmail = "other@acme.edu"
	_, err = svc.Register(context.Background(), input)
	require.ErrorIs(t, err, service.ErrDuplicateTenant)
}

func TestRegisterValidation(t *testing.T) {
	svc, _, _, _ := newService(t)

	cases := []struct {
		name    string
		mutate  func(*service.RegisterInput)
		wantErr error
	}{
		{"uppercase id", func(in *service.RegisterInput) { in.TenantID = "Acme" }, service.ErrInvalidTenantID},
		{"short id", func(in *service.RegisterInput) { in.TenantID = "ab" }, service.ErrInvalidTenantID},
		{"hyphenated id", func(in *service.RegisterInput) { in.TenantID = "acme-uni" }, service.ErrInvalidTenantID},
		{"blank institution", func(in *service.RegisterInput) { in.InstitutionName = "  " }, service.ErrInvalidInput},
		{"bad email", func(in *service.RegisterInput) { in.AdminEmail = "not-an-email" }, service.ErrInvalidInput},
		{"short password", func(in *service.RegisterInput) { in.AdminPassword = "short" }, service.ErrInvalidInput},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := registerInput("acme")
			tc.mutate(&input)
			_, err := svc.Register(context.Background(), input)
			require.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _, _, _ := newService(t)

	_, err := svc.Register(context.Background(), registerInput("acme"))
	require.NoError(t, err)

	input := registerInput("globex")
	_, err = svc.Register(context.Background(), input)
	require.ErrorIs(t, err, service.ErrDuplicateEmail)
}

func TestRegisterProvisionerFailurePropagates(t *testing.T) {
	svc, _, prov, ids := newService(t)
	prov.failWith = errors.New("schema build blew up")

	_, err := svc.Register(context.Background(), registerInput("acme"))
	require.Error(t, err)
	require.NotErrorIs(t, err, service.ErrDuplicateTenant)
	require.Empty(t, ids.byEmail, "no identity is created when provisioning fails")
}

func TestRenameKeepsSchemaName(t *testing.T) {
	svc, _, _, _ := newService(t)

	res, err := svc.Register(context.Background(), registerInput("acme"))
	require.NoError(t, err)

	renamed, err := svc.Rename(context.Background(), "acme", "Acme Institute of Technology")
	require.NoError(t, err)
	require.Equal(t, "Acme Institute of Technology", renamed.InstitutionName)
	require.Equal(t, res.Tenant.SchemaName, renamed.SchemaName)

	_, err = svc.Rename(context.Background(), "ghost", "Ghost U")
	require.ErrorIs(t, err, service.ErrNotFound)

	_, err = svc.Rename(context.Background(), "acme", "   ")
	require.ErrorIs(t, err, service.ErrInvalidInput)
}

func TestGetAndList(t *testing.T) {
	svc, _, _, _ := newService(t)

	_, err := svc.Register(context.Background(), registerInput("acme"))
	require.NoError(t, err)
	input := registerInput("globex")
	input.AdminEmail = "dean@globex.edu"
	_, err = svc.Register(context.Background(), input)
	require.NoError(t, err)

	got, err := svc.Get(context.Background(), "acme")
	require.NoError(t, err)
	require.Equal(t, "acme_schema", got.SchemaName)

	_, err = svc.Get(context.Background(), "not a slug")
	require.ErrorIs(t, err, service.ErrInvalidTenantID)

	all, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)
}
