package dns

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	r53types "github.com/aws/aws-sdk-go-v2/service/route53/types"
)

const route53TTL = 300

// Route53 manages records in one hosted zone. Credentials come from the
// default AWS chain.
type Route53 struct {
	client *route53.Client
	zoneID string
	logger *slog.Logger
}

func NewRoute53(ctx context.Context, zoneID, region string, logger *slog.Logger) (*Route53, error) {
	if zoneID == "" {
		return nil, fmt.Errorf("route53 requires a hosted zone id")
	}
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return &Route53{client: route53.NewFromConfig(cfg), zoneID: zoneID, logger: logger}, nil
}

func (r *Route53) Name() string { return "route53" }

func (r *Route53) EnsureRecord(ctx context.Context, fqdn, target string) error {
	return r.change(ctx, r53types.ChangeActionUpsert, fqdn, target)
}

func (r *Route53) RemoveRecord(ctx context.Context, fqdn string) error {
	current, err := r.lookup(ctx, fqdn)
	if err != nil || current == "" {
		return err
	}
	return r.change(ctx, r53types.ChangeActionDelete, fqdn, current)
}

func (r *Route53) change(ctx context.Context, action r53types.ChangeAction, fqdn, target string) error {
	_, err := r.client.ChangeResourceRecordSets(ctx, &route53.ChangeResourceRecordSetsInput{
		HostedZoneId: aws.String(r.zoneID),
		ChangeBatch: &r53types.ChangeBatch{
			Comment: aws.String("tenant subdomain"),
			Changes: []r53types.Change{{
				Action: action,
				ResourceRecordSet: &r53types.ResourceRecordSet{
					Name:            aws.String(fqdn),
					Type:            r53types.RRTypeCname,
					TTL:             aws.Int64(route53TTL),
					ResourceRecords: []r53types.ResourceRecord{{Value: aws.String(target)}},
				},
			}},
		},
	})
	return err
}

// lookup returns the current CNAME target of fqdn, or "".
func (r *Route53) lookup(ctx context.Context, fqdn string) (string, error) {
	out, err := r.client.ListResourceRecordSets(ctx, &route53.ListResourceRecordSetsInput{
		HostedZoneId:    aws.String(r.zoneID),
		StartRecordName: aws.String(fqdn),
		StartRecordType: r53types.RRTypeCname,
		MaxItems:        aws.Int32(1),
	})
	if err != nil {
		return "", fmt.Errorf("listing records: %w", err)
	}
	for _, rrs := range out.ResourceRecordSets {
		name := strings.TrimSuffix(aws.ToString(rrs.Name), ".")
		if name == fqdn && rrs.Type == r53types.RRTypeCname && len(rrs.ResourceRecords) > 0 {
			return aws.ToString(rrs.ResourceRecords[0].Value), nil
		}
	}
	return "", nil
}
