package tenancy_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugh/agricoop/internal/tenancy"
)

func TestAdminGrant_OnlyGrantAdminIssuesValidGrants(t *testing.T) {
	var zero tenancy.AdminGrant
	assert.False(t, zero.Valid())
	assert.Empty(t, zero.Actor())

	_, err := zero.OwnerOf(uuid.New())
	assert.ErrorIs(t, err, tenancy.ErrAdminGrantIncomplete)

	before := time.Now().UTC()
	g, err := tenancy.GrantAdmin(nil, "  ops@example.com ", " merge coopa ")
	require.NoError(t, err)
	assert.True(t, g.Valid())
	assert.Equal(t, "ops@example.com", g.Actor())
	assert.Equal(t, "merge coopa", g.Reason())
	assert.False(t, g.IssuedAt().Before(before))
}
