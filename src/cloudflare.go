package deployns

import (
	"context"

	"github.com/cloudflare/cloudflare-go"
	"github.com/go-logr/logr"
	"github.com/pkg/errors"
)

const CloudFlareAPIURL = "https://api.cloudflare.com/client/v4"

// CloudflareProvider has no ISP lines. Every record is reported on
// DefaultLine and additions for several lines are merged.
type CloudflareProvider struct {
	client *cloudflare.API
	log    logr.Logger
	zones  map[string]string
}

func (s *CloudflareProvider) Name() string { return "cloudflare" }

func (s *CloudflareProvider) Lineless() bool { return true }

func (s *CloudflareProvider) zoneID(domain string) (string, error) {
	domain = defqdn(domain)
	if id, ok := s.zones[domain]; ok {
		return id, nil
	}
	id, err := s.client.ZoneIDByName(domain)
	if err != nil {
		return "", err
	}
	s.zones[domain] = id
	return id, nil
}

func (s *CloudflareProvider) GetRecords(ctx context.Context, domain string, q RecordQuery) ([]RemoteRecord, error) {
	id, err := s.zoneID(domain)
	if err != nil {
		return nil, &ProviderQueryError{Provider: s.Name(), Domain: domain, Err: err}
	}
	filter := cloudflare.DNSRecord{Type: q.Type}
	if q.Name != "" {
		filter.Name = defqdn(recordFQDN(q.Name, domain))
	}
	records, err := s.client.DNSRecords(id, filter)
	if err != nil {
		return nil, &ProviderQueryError{Provider: s.Name(), Domain: domain, Err: err}
	}
	result := make([]RemoteRecord, 0, len(records))
	for _, v := range records {
		result = append(result, RemoteRecord{
			ID: v.ID,
			DNSRecord: DNSRecord{
				Name:  recordLabel(v.Name, domain),
				Type:  v.Type,
				Value: v.Content,
				Line:  DefaultLine,
				TTL:   v.TTL,
			},
		})
	}
	return result, nil
}

func (s *CloudflareProvider) AddRecords(ctx context.Context, domain string, records []DNSRecord) error {
	if len(records) == 0 {
		return nil
	}
	id, err := s.zoneID(domain)
	if err != nil {
		return &ProviderWriteError{Provider: s.Name(), Domain: domain, Err: err}
	}
	for _, set := range GroupRecords(records) {
		merged := MergeLines(set)
		for _, v := range merged.Values {
			if err := ctx.Err(); err != nil {
				return &ProviderWriteError{Provider: s.Name(), Domain: domain, Err: err}
			}
			_, err := s.client.CreateDNSRecord(id, cloudflare.DNSRecord{
				ZoneID:  id,
				Name:    defqdn(recordFQDN(set.Name, domain)),
				Type:    set.Type,
				Content: v,
				TTL:     merged.TTL,
			})
			if err != nil {
				return &ProviderWriteError{Provider: s.Name(), Domain: domain,
					Err: errors.Wrapf(err, "create %s %s %s", set.Name, set.Type, v)}
			}
		}
	}
	return nil
}

func (s *CloudflareProvider) RemoveRecords(ctx context.Context, domain string, ids []string) error {
	ids = dedupIDs(ids)
	if len(ids) == 0 {
		return nil
	}
	id, err := s.zoneID(domain)
	if err != nil {
		return &ProviderWriteError{Provider: s.Name(), Domain: domain, Err: err}
	}
	for _, recordID := range ids {
		if err := ctx.Err(); err != nil {
			return &ProviderWriteError{Provider: s.Name(), Domain: domain, Err: err}
		}
		if err := s.client.DeleteDNSRecord(id, recordID); err != nil {
			return &ProviderWriteError{Provider: s.Name(), Domain: domain,
				Err: errors.Wrapf(err, "delete record %s", recordID)}
		}
	}
	return nil
}

func NewCloudflareProvider(env map[string]string, log logr.Logger) (DNSProvider, error) {
	email := env["CLOUDFLARE_EMAIL"]
	if email == "" {
		return nil, errors.New("cloudflare: missing CLOUDFLARE_EMAIL")
	}
	key := env["CLOUDFLARE_API_KEY"]
	if key == "" {
		return nil, errors.New("cloudflare: missing CLOUDFLARE_API_KEY")
	}
	client, err := cloudflare.New(key, email)
	if err != nil {
		return nil, errors.Wrap(err, "cloudflare: create client")
	}
	client.BaseURL = CloudFlareAPIURL
	if v := env["CLOUDFLARE_API_URL"]; v != "" {
		client.BaseURL = v
	}
	return &CloudflareProvider{client: client, log: log, zones: make(map[string]string)}, nil
}
