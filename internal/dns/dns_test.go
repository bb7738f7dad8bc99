package dns

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/cloudflare/cloudflare-go"
	"github.com/google/uuid"
	"github.com/hugh/agricoop/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvisioner struct {
	mu      sync.Mutex
	records map[string]string
	err     error
}

func (f *fakeProvisioner) Name() string { return "fake" }

func (f *fakeProvisioner) EnsureRecord(_ context.Context, fqdn, target string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.records[fqdn] = target
	return nil
}

func (f *fakeProvisioner) RemoveRecord(_ context.Context, fqdn string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.records, fqdn)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestService_ProvisionAndDeprovision(t *testing.T) {
	fake := &fakeProvisioner{records: map[string]string{}}
	svc := NewService(fake, "agricoop.example.", "ingress.agricoop.example", testLogger())

	require.NoError(t, svc.Provision(context.Background(), "coopa"))
	assert.Equal(t, "ingress.agricoop.example", fake.records["coopa.agricoop.example"])

	require.NoError(t, svc.Deprovision(context.Background(), "coopa"))
	assert.Empty(t, fake.records)
}

func TestService_TargetDefaultsToBaseDomain(t *testing.T) {
	fake := &fakeProvisioner{records: map[string]string{}}
	svc := NewService(fake, "agricoop.example", "", testLogger())

	require.NoError(t, svc.Provision(context.Background(), "coopb"))
	assert.Equal(t, "agricoop.example", fake.records["coopb.agricoop.example"])
}

func TestService_WrapsProviderErrors(t *testing.T) {
	fake := &fakeProvisioner{records: map[string]string{}, err: errors.New("rate limited")}
	svc := NewService(fake, "agricoop.example", "", testLogger())

	err := svc.Provision(context.Background(), "coopa")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fake: ensuring coopa.agricoop.example")
}

func TestNew_SelectsProvider(t *testing.T) {
	p, err := New(context.Background(), config.DNSConfig{Provider: "none"}, testLogger())
	require.NoError(t, err)
	assert.Equal(t, "none", p.Name())

	_, err = New(context.Background(), config.DNSConfig{Provider: "cloudflare"}, testLogger())
	assert.Error(t, err, "missing credentials")

	_, err = New(context.Background(), config.DNSConfig{Provider: "bind9"}, testLogger())
	assert.Error(t, err)
}

func TestProvisionTask_RoundTrip(t *testing.T) {
	orgID := uuid.New()
	task, err := NewProvisionTask(orgID, "coopa")
	require.NoError(t, err)
	assert.Equal(t, TypeProvision, task.Type())

	p, err := ParsePayload(task)
	require.NoError(t, err)
	assert.Equal(t, orgID, p.OrganizationID)
	assert.Equal(t, "coopa", p.Subdomain)
}

func TestCloudflare_CreatesMissingRecord(t *testing.T) {
	var created map[string]any

	mux := http.NewServeMux()
	mux.HandleFunc("/zones/zone-1/dns_records", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.Method {
		case http.MethodGet:
			assert.Equal(t, "coopa.agricoop.example", r.URL.Query().Get("name"))
			io.WriteString(w, `{"success":true,"errors":[],"messages":[],"result":[],
				"result_info":{"page":1,"per_page":100,"count":0,"total_count":0,"total_pages":1}}`)
		case http.MethodPost:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&created))
			io.WriteString(w, `{"success":true,"errors":[],"messages":[],
				"result":{"id":"rec-1","type":"CNAME","name":"coopa.agricoop.example","content":"ingress.agricoop.example"}}`)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cf, err := NewCloudflare("token", "zone-1", testLogger(), cloudflare.BaseURL(server.URL))
	require.NoError(t, err)

	require.NoError(t, cf.EnsureRecord(context.Background(), "coopa.agricoop.example", "ingress.agricoop.example"))
	require.NotNil(t, created)
	assert.Equal(t, "CNAME", created["type"])
	assert.Equal(t, "ingress.agricoop.example", created["content"])
}
