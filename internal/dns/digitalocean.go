package dns

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/digitalocean/godo"
	"golang.org/x/oauth2"
)

const digitalOceanTTL = 1800

// DigitalOcean manages records of one domain.
type DigitalOcean struct {
	client *godo.Client
	domain string
	logger *slog.Logger
}

func NewDigitalOcean(token, domain string, logger *slog.Logger, opts ...godo.ClientOpt) (*DigitalOcean, error) {
	if token == "" || domain == "" {
		return nil, fmt.Errorf("digitalocean requires an API token and a domain")
	}
	tokenSource := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	client, err := godo.New(oauth2.NewClient(context.Background(), tokenSource), opts...)
	if err != nil {
		return nil, fmt.Errorf("creating digitalocean client: %w", err)
	}
	return &DigitalOcean{client: client, domain: domain, logger: logger}, nil
}

func (d *DigitalOcean) Name() string { return "digitalocean" }

// relative turns coopa.example.com into coopa for the example.com domain.
func (d *DigitalOcean) relative(fqdn string) string {
	return strings.TrimSuffix(strings.TrimSuffix(fqdn, "."+d.domain), ".")
}

func (d *DigitalOcean) EnsureRecord(ctx context.Context, fqdn, target string) error {
	existing, err := d.find(ctx, fqdn)
	if err != nil {
		return err
	}
	req := &godo.DomainRecordEditRequest{
		Type: "CNAME",
		Name: d.relative(fqdn),
		Data: strings.TrimSuffix(target, ".") + ".",
		TTL:  digitalOceanTTL,
	}
	if existing == nil {
		_, _, err = d.client.Domains.CreateRecord(ctx, d.domain, req)
		return err
	}
	if strings.TrimSuffix(existing.Data, ".") == strings.TrimSuffix(target, ".") {
		return nil
	}
	_, _, err = d.client.Domains.EditRecord(ctx, d.domain, existing.ID, req)
	return err
}

func (d *DigitalOcean) RemoveRecord(ctx context.Context, fqdn string) error {
	existing, err := d.find(ctx, fqdn)
	if err != nil || existing == nil {
		return err
	}
	_, err = d.client.Domains.DeleteRecord(ctx, d.domain, existing.ID)
	return err
}

func (d *DigitalOcean) find(ctx context.Context, fqdn string) (*godo.DomainRecord, error) {
	records, _, err := d.client.Domains.RecordsByTypeAndName(ctx, d.domain, "CNAME", fqdn, &godo.ListOptions{PerPage: 50})
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}
