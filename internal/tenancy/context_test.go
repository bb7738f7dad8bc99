package tenancy

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTenant(sub string) Tenant {
	return Tenant{ID: uuid.New(), Subdomain: sub, Status: "ACTIVE"}
}

func TestBind_CurrentAndRelease(t *testing.T) {
	tenant := testTenant("coopa")

	ctx, release, err := Bind(context.Background(), tenant)
	require.NoError(t, err)

	got, ok := Current(ctx)
	require.True(t, ok)
	assert.Equal(t, tenant, got)
	assert.Equal(t, tenant.ID, CurrentID(ctx))

	release()
	_, ok = Current(ctx)
	assert.False(t, ok, "released binding must not be visible")
	assert.Equal(t, uuid.Nil, CurrentID(ctx))

	// idempotent
	release()
}

func TestBind_NoneByDefault(t *testing.T) {
	_, ok := Current(context.Background())
	assert.False(t, ok)

	_, err := MustCurrent(context.Background())
	assert.ErrorIs(t, err, ErrUnresolvedTenant)
}

func TestBind_RejectsRebind(t *testing.T) {
	ctx, release, err := Bind(context.Background(), testTenant("coopa"))
	require.NoError(t, err)
	defer release()

	_, _, err = Bind(ctx, testTenant("coopb"))
	assert.ErrorIs(t, err, ErrAlreadyBound)

	got, _ := Current(ctx)
	assert.Equal(t, "coopa", got.Subdomain)
}

func TestBind_RejectsNilID(t *testing.T) {
	_, _, err := Bind(context.Background(), Tenant{Subdomain: "x"})
	assert.ErrorIs(t, err, ErrUnresolvedTenant)
}

func TestBind_ConcurrentRequestsIsolated(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tenant := testTenant("coop")
			ctx, release, err := Bind(context.Background(), tenant)
			if !assert.NoError(t, err) {
				return
			}
			defer release()
			got, ok := Current(ctx)
			assert.True(t, ok)
			assert.Equal(t, tenant.ID, got.ID)
		}()
	}
	wg.Wait()
}

func TestOwnerFrom(t *testing.T) {
	_, err := OwnerFrom(context.Background())
	assert.ErrorIs(t, err, ErrOrphanWrite)

	tenant := testTenant("coopa")
	ctx, release, err := Bind(context.Background(), tenant)
	require.NoError(t, err)
	defer release()

	owner, err := OwnerFrom(ctx)
	require.NoError(t, err)
	assert.Equal(t, tenant.ID, owner.ID())
	assert.False(t, owner.IsZero())
}

func TestGrantAdmin(t *testing.T) {
	_, err := GrantAdmin(nil, "", "merge")
	assert.ErrorIs(t, err, ErrAdminGrantIncomplete)

	_, err = GrantAdmin(nil, "ops", " ")
	assert.ErrorIs(t, err, ErrAdminGrantIncomplete)

	g, err := GrantAdmin(nil, "ops", "merge coopa into coopb")
	require.NoError(t, err)
	assert.True(t, g.Valid())

	orgID := uuid.New()
	owner, err := g.OwnerOf(orgID)
	require.NoError(t, err)
	assert.Equal(t, orgID, owner.ID())

	_, err = g.OwnerOf(uuid.Nil)
	assert.ErrorIs(t, err, ErrOrphanWrite)

	_, err = AdminGrant{}.OwnerOf(orgID)
	assert.ErrorIs(t, err, ErrAdminGrantIncomplete)
}
