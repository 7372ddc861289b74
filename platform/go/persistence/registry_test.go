package persistence_test

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/novalearn-io/novalearn/platform/go/persistence"
	"github.com/novalearn-io/novalearn/platform/go/pgtest"
)

func TestRegistryStoreCreateAndDuplicate(t *testing.T) {
	pool := pgtest.Pool(t)
	ctx := context.Background()
	slug := pgtest.Slug(t)

	store, err := persistence.NewRegistryStore(pool)
	require.NoError(t, err)

	rec, err := store.Create(ctx, persistence.TenantRecord{
		TenantID:        slug,
		SchemaName:      slug + "_schema",
		InstitutionName: "Acme University",
		Status:          persistence.TenantStatusProvisioning,
	})
	require.NoError(t, err)
	require.Equal(t, slug, rec.TenantID)
	require.Equal(t, persistence.TenantStatusProvisioning, rec.Status)
	require.False(t, rec.CreatedAt.IsZero())

	_, err = store.Create(ctx, persistence.TenantRecord{
		TenantID:        slug,
		SchemaName:      slug + "_schema",
		InstitutionName: "Acme Polytechnic",
		Status:          persistence.TenantStatusProvisioning,
	})
	require.ErrorIs(t, err, persistence.ErrDuplicateTenant)

	// The duplicate insert must not have replaced the original row.
	got, err := store.Get(ctx, slug)
	require.NoError(t, err)
	require.Equal(t, "Acme University", got.InstitutionName)
}

func TestRegistryStoreStatusAndLookup(t *testing.T) {
	pool := pgtest.Pool(t)
	ctx := context.Background()
	slug := pgtest.Slug(t)

	store, err := persistence.NewRegistryStore(pool)
	require.NoError(t, err)

	_, err = store.Create(ctx, persistence.TenantRecord{
		TenantID:        slug,
		SchemaName:      slug + "_schema",
		InstitutionName: "Globex College",
		Status:          persistence.TenantStatusProvisioning,
	})
	require.NoError(t, err)

	require.NoError(t, store.UpdateStatus(ctx, slug, persistence.TenantStatusActive, nil))

	rec, err := store.Get(ctx, slug)
	require.NoError(t, err)
	require.Equal(t, persistence.TenantStatusActive, rec.Status)

	schema, err := store.SchemaName(ctx, slug)
	require.NoError(t, err)
	require.Equal(t, slug+"_schema", schema)

	_, err = store.SchemaName(ctx, "ghost")
	require.ErrorIs(t, err, persistence.ErrNotFound)

	require.NoError(t, store.UpdateInstitutionName(ctx, slug, "Globex Institute"))
	rec, err = store.Get(ctx, slug)
	require.NoError(t, err)
	require.Equal(t, "Globex Institute", rec.InstitutionName)
}

func TestIdentityStoreDuplicateEmail(t *testing.T) {
	pool := pgtest.Pool(t)
	ctx := context.Background()
	slug := pgtest.Slug(t)

	registry, err := persistence.NewRegistryStore(pool)
	require.NoError(t, err)
	_, err = registry.Create(ctx, persistence.TenantRecord{
		TenantID:        slug,
		SchemaName:      slug + "_schema",
		InstitutionName: "Initech Institute",
		Status:          persistence.TenantStatusActive,
	})
	require.NoError(t, err)

	identities, err := persistence.NewIdentityStore(pool)
	require.NoError(t, err)

	email := slug + "@initech.edu"
	_, err = identities.Create(ctx, persistence.IdentityRecord{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: "x",
		FullName:     "Peter Gibbons",
		Role:         "admin",
		TenantID:     slug,
	})
	require.NoError(t, err)

	// Same email, regardless of case or tenant, is rejected globally.
	_, err = identities.Create(ctx, persistence.IdentityRecord{
		ID:           uuid.New(),
		Email:        strings.ToUpper(email),
		PasswordHash: "y",
		FullName:     "Peter G.",
		Role:         "teacher",
		TenantID:     slug,
	})
	require.ErrorIs(t, err, persistence.ErrDuplicateEmail)

	got, err := identities.GetByEmail(ctx, email)
	require.NoError(t, err)
	require.Equal(t, "Peter Gibbons", got.FullName)

	require.NoError(t, identities.Deactivate(ctx, got.ID))
	_, err = identities.GetByEmail(ctx, email)
	require.ErrorIs(t, err, persistence.ErrNotFound)
}
