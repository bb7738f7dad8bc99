package dns

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	clouddns "google.golang.org/api/dns/v1"
	"google.golang.org/api/option"
)

// CloudDNS manages records of one Google Cloud DNS managed zone.
type CloudDNS struct {
	svc     *clouddns.Service
	project string
	zone    string
	logger  *slog.Logger
}

func NewCloudDNS(ctx context.Context, project, zone, credentialsJSON string, logger *slog.Logger) (*CloudDNS, error) {
	if project == "" || zone == "" {
		return nil, fmt.Errorf("clouddns requires a project and a managed zone")
	}
	var opts []option.ClientOption
	if credentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credentialsJSON)))
	}
	svc, err := clouddns.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating cloud dns client: %w", err)
	}
	return &CloudDNS{svc: svc, project: project, zone: zone, logger: logger}, nil
}

func (c *CloudDNS) Name() string { return "clouddns" }

func absolute(name string) string {
	return strings.TrimSuffix(name, ".") + "."
}

func (c *CloudDNS) EnsureRecord(ctx context.Context, fqdn, target string) error {
	existing, err := c.find(ctx, fqdn)
	if err != nil {
		return err
	}
	want := &clouddns.ResourceRecordSet{
		Name:    absolute(fqdn),
		Type:    "CNAME",
		Ttl:     300,
		Rrdatas: []string{absolute(target)},
	}
	change := &clouddns.Change{Additions: []*clouddns.ResourceRecordSet{want}}
	if existing != nil {
		if len(existing.Rrdatas) == 1 && existing.Rrdatas[0] == want.Rrdatas[0] {
			return nil
		}
		change.Deletions = []*clouddns.ResourceRecordSet{existing}
	}
	_, err = c.svc.Changes.Create(c.project, c.zone, change).Context(ctx).Do()
	return err
}

func (c *CloudDNS) RemoveRecord(ctx context.Context, fqdn string) error {
	existing, err := c.find(ctx, fqdn)
	if err != nil || existing == nil {
		return err
	}
	change := &clouddns.Change{Deletions: []*clouddns.ResourceRecordSet{existing}}
	_, err = c.svc.Changes.Create(c.project, c.zone, change).Context(ctx).Do()
	return err
}

func (c *CloudDNS) find(ctx context.Context, fqdn string) (*clouddns.ResourceRecordSet, error) {
	resp, err := c.svc.ResourceRecordSets.List(c.project, c.zone).
		Name(absolute(fqdn)).
		Type("CNAME").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	if len(resp.Rrsets) == 0 {
		return nil, nil
	}
	return resp.Rrsets[0], nil
}
