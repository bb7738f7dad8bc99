// Package dns publishes tenant subdomains (coopa.example.com) as CNAME
// records pointing at the service ingress.
package dns

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/hugh/agricoop/pkg/config"
)

const (
	TypeProvision   = "dns:provision"
	TypeDeprovision = "dns:deprovision"
)

// Provisioner manages one CNAME record at a DNS provider.
type Provisioner interface {
	Name() string
	// EnsureRecord creates or updates fqdn -> target.
	EnsureRecord(ctx context.Context, fqdn, target string) error
	// RemoveRecord deletes fqdn; a missing record is not an error.
	RemoveRecord(ctx context.Context, fqdn string) error
}

// Nop is used when no provider is configured.
type Nop struct{}

func (Nop) Name() string                                       { return "none" }
func (Nop) EnsureRecord(context.Context, string, string) error { return nil }
func (Nop) RemoveRecord(context.Context, string) error         { return nil }

// New builds the provisioner selected by cfg.Provider.
func New(ctx context.Context, cfg config.DNSConfig, logger *slog.Logger) (Provisioner, error) {
	switch cfg.Provider {
	case "", "none":
		return Nop{}, nil
	case "cloudflare":
		return NewCloudflare(cfg.CloudflareToken, cfg.CloudflareZoneID, logger)
	case "route53":
		return NewRoute53(ctx, cfg.Route53ZoneID, cfg.AWSRegion, logger)
	case "digitalocean":
		return NewDigitalOcean(cfg.DigitalOceanToken, cfg.DigitalOceanDomain, logger)
	case "clouddns":
		return NewCloudDNS(ctx, cfg.GCPProject, cfg.GCPManagedZone, cfg.GCPCredentials, logger)
	default:
		return nil, fmt.Errorf("unknown DNS provider %q", cfg.Provider)
	}
}

// Service maps subdomains onto records under the base domain.
type Service struct {
	provisioner Provisioner
	baseDomain  string
	target      string
	logger      *slog.Logger
}

func NewService(p Provisioner, baseDomain, target string, logger *slog.Logger) *Service {
	if target == "" {
		target = baseDomain
	}
	return &Service{provisioner: p, baseDomain: strings.Trim(baseDomain, "."), target: target, logger: logger}
}

// FQDN returns the host name of subdomain.
func (s *Service) FQDN(subdomain string) string {
	return subdomain + "." + s.baseDomain
}

func (s *Service) Provision(ctx context.Context, subdomain string) error {
	fqdn := s.FQDN(subdomain)
	if err := s.provisioner.EnsureRecord(ctx, fqdn, s.target); err != nil {
		return fmt.Errorf("%s: ensuring %s: %w", s.provisioner.Name(), fqdn, err)
	}
	s.logger.Info("tenant dns record ensured", "provider", s.provisioner.Name(), "fqdn", fqdn, "target", s.target)
	return nil
}

func (s *Service) Deprovision(ctx context.Context, subdomain string) error {
	fqdn := s.FQDN(subdomain)
	if err := s.provisioner.RemoveRecord(ctx, fqdn); err != nil {
		return fmt.Errorf("%s: removing %s: %w", s.provisioner.Name(), fqdn, err)
	}
	s.logger.Info("tenant dns record removed", "provider", s.provisioner.Name(), "fqdn", fqdn)
	return nil
}

type Payload struct {
	OrganizationID uuid.UUID `json:"organization_id"`
	Subdomain      string    `json:"subdomain"`
}

func NewProvisionTask(orgID uuid.UUID, subdomain string) (*asynq.Task, error) {
	return newTask(TypeProvision, orgID, subdomain)
}

func NewDeprovisionTask(orgID uuid.UUID, subdomain string) (*asynq.Task, error) {
	return newTask(TypeDeprovision, orgID, subdomain)
}

func newTask(typ string, orgID uuid.UUID, subdomain string) (*asynq.Task, error) {
	data, err := json.Marshal(Payload{OrganizationID: orgID, Subdomain: subdomain})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(typ, data, asynq.MaxRetry(10)), nil
}

func ParsePayload(t *asynq.Task) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return Payload{}, fmt.Errorf("unmarshal payload: %w", err)
	}
	if p.Subdomain == "" {
		return Payload{}, fmt.Errorf("payload without subdomain")
	}
	return p, nil
}
