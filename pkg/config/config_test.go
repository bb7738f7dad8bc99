package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SERVER_ENV", "development")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "X-Tenant-Subdomain", cfg.Tenancy.Header)
	assert.Equal(t, "tenant", cfg.Tenancy.QueryParam)
	assert.True(t, cfg.Tenancy.AllowQueryParam)
	assert.Equal(t, []string{"www", "api", "admin"}, cfg.Tenancy.ReservedNames)
	assert.Empty(t, cfg.Admin.Key)
}

func TestLoad_QueryParamOffOutsideDevelopment(t *testing.T) {
	t.Setenv("SERVER_ENV", "production")
	t.Setenv("JWT_SECRET", "prod-secret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.Tenancy.AllowQueryParam)
}

func TestLoad_RejectsDefaultSecretInProduction(t *testing.T) {
	t.Setenv("SERVER_ENV", "production")
	t.Setenv("JWT_SECRET", "change-me-in-production")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate_SweepCron(t *testing.T) {
	cfg := &Config{
		Server:  ServerConfig{Env: "development"},
		Tenancy: TenancyConfig{Header: "X-Tenant-Subdomain"},
		Worker:  WorkerConfig{SweepCron: "not a cron"},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WORKER_SWEEP_CRON")

	cfg.Worker.SweepCron = "0 * * * *"
	assert.NoError(t, cfg.Validate())
}

func TestTenancyConfig_IsPublic(t *testing.T) {
	tc := TenancyConfig{PublicPaths: []string{"/health", "/api/v1/register", "/api/v1/admin/"}}

	tests := []struct {
		path string
		want bool
	}{
		{"/health", true},
		{"/healthz", false},
		{"/api/v1/register", true},
		{"/api/v1/admin/organizations", true},
		{"/api/v1/partners", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, tc.IsPublic(tt.path))
		})
	}
}

func TestTenancyConfig_IsReserved(t *testing.T) {
	tc := TenancyConfig{ReservedNames: []string{"www", "api", "admin"}}
	assert.True(t, tc.IsReserved("WWW"))
	assert.True(t, tc.IsReserved("admin"))
	assert.False(t, tc.IsReserved("coopa"))
}
