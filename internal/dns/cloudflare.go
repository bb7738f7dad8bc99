package dns

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cloudflare/cloudflare-go"
)

// Cloudflare manages records in one zone.
type Cloudflare struct {
	api    *cloudflare.API
	zone   *cloudflare.ResourceContainer
	logger *slog.Logger
}

func NewCloudflare(token, zoneID string, logger *slog.Logger, opts ...cloudflare.Option) (*Cloudflare, error) {
	if token == "" || zoneID == "" {
		return nil, fmt.Errorf("cloudflare requires an API token and a zone id")
	}
	api, err := cloudflare.NewWithAPIToken(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating cloudflare client: %w", err)
	}
	return &Cloudflare{api: api, zone: cloudflare.ZoneIdentifier(zoneID), logger: logger}, nil
}

func (c *Cloudflare) Name() string { return "cloudflare" }

func (c *Cloudflare) EnsureRecord(ctx context.Context, fqdn, target string) error {
	existing, err := c.find(ctx, fqdn)
	if err != nil {
		return err
	}
	proxied := true

	if existing == nil {
		_, err := c.api.CreateDNSRecord(ctx, c.zone, cloudflare.CreateDNSRecordParams{
			Type:    "CNAME",
			Name:    fqdn,
			Content: target,
			TTL:     1,
			Proxied: &proxied,
		})
		return err
	}
	if existing.Content == target {
		return nil
	}
	c.logger.Debug("updating cloudflare record", "fqdn", fqdn, "from", existing.Content, "to", target)
	_, err = c.api.UpdateDNSRecord(ctx, c.zone, cloudflare.UpdateDNSRecordParams{
		ID:      existing.ID,
		Type:    "CNAME",
		Name:    fqdn,
		Content: target,
		TTL:     1,
		Proxied: &proxied,
	})
	return err
}

func (c *Cloudflare) RemoveRecord(ctx context.Context, fqdn string) error {
	existing, err := c.find(ctx, fqdn)
	if err != nil || existing == nil {
		return err
	}
	return c.api.DeleteDNSRecord(ctx, c.zone, existing.ID)
}

func (c *Cloudflare) find(ctx context.Context, fqdn string) (*cloudflare.DNSRecord, error) {
	records, _, err := c.api.ListDNSRecords(ctx, c.zone, cloudflare.ListDNSRecordsParams{
		Type: "CNAME",
		Name: fqdn,
	})
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}
