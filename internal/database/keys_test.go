package database_test

import (
	"testing"

	"github.com/hugh/agricoop/internal/database"
	"github.com/hugh/agricoop/internal/database/models"
	"github.com/hugh/agricoop/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTenantKeys_CoverEveryTenantModel(t *testing.T) {
	covered := map[string]bool{}
	for _, k := range database.TenantKeys {
		covered[k.Table()] = true
	}
	for _, m := range database.TenantModels() {
		assert.True(t, covered[m.TableName()], "%s has no business key entry", m.TableName())
	}
}

func TestBusinessKey_IndexName(t *testing.T) {
	k := database.BusinessKey{Model: &models.Partner{}, Columns: []string{"national_id"}}
	assert.Equal(t, "uidx_partners_org_national_id", k.IndexName())
}

func TestVerifyTenantKeys_MigratedSchemaIsClean(t *testing.T) {
	db := testutil.SetupTestDB(t)

	violations, err := database.VerifyTenantKeys(db)
	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestVerifyTenantKeys_DetectsGlobalUniqueIndex(t *testing.T) {
	db := testutil.SetupTestDB(t)
	require.NoError(t, db.Exec("CREATE UNIQUE INDEX legacy_products_code ON products (code)").Error)

	violations, err := database.VerifyTenantKeys(db)
	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, "products", violations[0].Table)
	assert.Equal(t, "legacy_products_code", violations[0].Index)
	assert.Contains(t, violations[0].String(), "unique across all organizations")
}

func TestVerifyTenantKeys_DetectsMissingCompositeIndex(t *testing.T) {
	db := testutil.SetupTestDB(t)
	require.NoError(t, db.Exec("DROP INDEX uidx_partners_org_national_id").Error)

	violations, err := database.VerifyTenantKeys(db)
	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, "composite index missing", violations[0].Reason)
}

func TestEnsureTenantKeys_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	require.NoError(t, database.EnsureTenantKeys(db))
	require.NoError(t, database.EnsureTenantKeys(db))
}
