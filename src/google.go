package deployns

import (
	"context"
	"os"
	"strings"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/dns/v1"
)

// GoogleProvider manages Cloud DNS resource record sets. Cloud DNS has no ISP
// lines. A record id is "name/type" and names the whole record set.
type GoogleProvider struct {
	project string
	client  *dns.Service
	log     logr.Logger
	zones   map[string]string
}

func (s *GoogleProvider) Name() string { return "google-cloud" }

func (s *GoogleProvider) Lineless() bool { return true }

func (s *GoogleProvider) getZoneName(ctx context.Context, domain string) (string, error) {
	domain = fqdn(domain)
	if name, ok := s.zones[domain]; ok {
		return name, nil
	}
	zoneName := ""
	err := s.client.ManagedZones.List(s.project).DnsName(domain).Pages(ctx, func(zones *dns.ManagedZonesListResponse) error {
		for _, zone := range zones.ManagedZones {
			if zone.DnsName == domain {
				zoneName = zone.Name
			}
		}
		return nil
	})
	if err != nil {
		return "", errors.Wrap(err, "list managed zones")
	}
	if zoneName == "" {
		return "", errors.Errorf("zone %s not found", domain)
	}
	s.zones[domain] = zoneName
	return zoneName, nil
}

func googleRecordID(name, recordType string) string {
	return name + "/" + recordType
}

func parseGoogleRecordID(id string) (name, recordType string, err error) {
	i := strings.LastIndex(id, "/")
	if i <= 0 || i == len(id)-1 {
		return "", "", errors.Errorf("invalid record id %q", id)
	}
	return id[:i], id[i+1:], nil
}

// googleRemoteRecords expands a record set into one record per value.
func googleRemoteRecords(domain string, rrset *dns.ResourceRecordSet) []RemoteRecord {
	result := make([]RemoteRecord, 0, len(rrset.Rrdatas))
	for _, v := range rrset.Rrdatas {
		result = append(result, RemoteRecord{
			ID: googleRecordID(rrset.Name, rrset.Type),
			DNSRecord: DNSRecord{
				Name:  recordLabel(rrset.Name, domain),
				Type:  rrset.Type,
				Value: v,
				Line:  DefaultLine,
				TTL:   int(rrset.Ttl),
			},
		})
	}
	return result
}

func (s *GoogleProvider) listRRSets(ctx context.Context, zoneName, name, recordType string) ([]*dns.ResourceRecordSet, error) {
	call := s.client.ResourceRecordSets.List(s.project, zoneName)
	if name != "" {
		call = call.Name(name)
		if recordType != "" {
			call = call.Type(recordType)
		}
	}
	result := make([]*dns.ResourceRecordSet, 0)
	err := call.Pages(ctx, func(page *dns.ResourceRecordSetsListResponse) error {
		result = append(result, page.Rrsets...)
		return nil
	})
	return result, err
}

func (s *GoogleProvider) GetRecords(ctx context.Context, domain string, q RecordQuery) ([]RemoteRecord, error) {
	zoneName, err := s.getZoneName(ctx, domain)
	if err != nil {
		return nil, &ProviderQueryError{Provider: s.Name(), Domain: domain, Err: err}
	}
	name := ""
	if q.Name != "" {
		name = recordFQDN(q.Name, domain)
	}
	rrsets, err := s.listRRSets(ctx, zoneName, name, q.Type)
	if err != nil {
		return nil, &ProviderQueryError{Provider: s.Name(), Domain: domain, Err: err}
	}
	result := make([]RemoteRecord, 0)
	for _, rrset := range rrsets {
		result = append(result, googleRemoteRecords(domain, rrset)...)
	}
	return result, nil
}

// AddRecords merges every line into one record set per name and type. Values
// of a record set that already exists are kept.
func (s *GoogleProvider) AddRecords(ctx context.Context, domain string, records []DNSRecord) error {
	if len(records) == 0 {
		return nil
	}
	zoneName, err := s.getZoneName(ctx, domain)
	if err != nil {
		return &ProviderWriteError{Provider: s.Name(), Domain: domain, Err: err}
	}
	change := &dns.Change{}
	for _, set := range GroupRecords(records) {
		name := recordFQDN(set.Name, domain)
		existing, err := s.listRRSets(ctx, zoneName, name, set.Type)
		if err != nil {
			return &ProviderWriteError{Provider: s.Name(), Domain: domain, Err: err}
		}
		merged := MergeLines(set)
		addition := &dns.ResourceRecordSet{
			Name:    name,
			Type:    set.Type,
			Ttl:     int64(merged.TTL),
			Rrdatas: merged.Values,
		}
		for _, rrset := range existing {
			if rrset.Name != name || rrset.Type != set.Type {
				continue
			}
			change.Deletions = append(change.Deletions, rrset)
			addition.Rrdatas = unionValues(rrset.Rrdatas, addition.Rrdatas)
		}
		change.Additions = append(change.Additions, addition)
	}
	return s.submit(ctx, domain, zoneName, change)
}

func (s *GoogleProvider) RemoveRecords(ctx context.Context, domain string, ids []string) error {
	ids = dedupIDs(ids)
	if len(ids) == 0 {
		return nil
	}
	zoneName, err := s.getZoneName(ctx, domain)
	if err != nil {
		return &ProviderWriteError{Provider: s.Name(), Domain: domain, Err: err}
	}
	change := &dns.Change{}
	for _, id := range ids {
		name, recordType, err := parseGoogleRecordID(id)
		if err != nil {
			return &ProviderWriteError{Provider: s.Name(), Domain: domain, Err: err}
		}
		rrsets, err := s.listRRSets(ctx, zoneName, name, recordType)
		if err != nil {
			return &ProviderWriteError{Provider: s.Name(), Domain: domain, Err: err}
		}
		found := false
		for _, rrset := range rrsets {
			if rrset.Name == name && rrset.Type == recordType {
				change.Deletions = append(change.Deletions, rrset)
				found = true
			}
		}
		if !found {
			return &ProviderWriteError{Provider: s.Name(), Domain: domain, Err: errors.Errorf("record set %s not found", id)}
		}
	}
	return s.submit(ctx, domain, zoneName, change)
}

func (s *GoogleProvider) submit(ctx context.Context, domain, zoneName string, change *dns.Change) error {
	chg, err := s.client.Changes.Create(s.project, zoneName, change).Context(ctx).Do()
	if err != nil {
		return &ProviderWriteError{Provider: s.Name(), Domain: domain, Err: errors.Wrap(err, "create change")}
	}
	if chg.Status != "pending" {
		return nil
	}
	t := jobTarget{provider: s.Name(), domain: domain, jobID: chg.Id}
	return waitForJob(ctx, s.log, t, func(ctx context.Context) (JobStatus, error) {
		got, err := s.client.Changes.Get(s.project, zoneName, chg.Id).Context(ctx).Do()
		if err != nil {
			return JobStatus{}, err
		}
		return googleChangeStatus(got), nil
	})
}

func googleChangeStatus(chg *dns.Change) JobStatus {
	if chg.Status == "done" {
		return JobStatus{Total: 1, Succeeded: 1}
	}
	return JobStatus{Total: 1}
}

func unionValues(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	result := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, v := range list {
			if seen[v] {
				continue
			}
			seen[v] = true
			result = append(result, v)
		}
	}
	return result
}

func NewGoogleProvider(env map[string]string, log logr.Logger) (DNSProvider, error) {
	project := env["GOOGLE_CLOUD_PROJECT"]
	if project == "" {
		return nil, errors.New("google-cloud: missing GOOGLE_CLOUD_PROJECT")
	}
	saFile := env["GOOGLE_APPLICATION_CREDENTIALS"]
	if saFile == "" {
		return nil, errors.New("google-cloud: missing GOOGLE_APPLICATION_CREDENTIALS")
	}
	dat, err := os.ReadFile(saFile)
	if err != nil {
		return nil, errors.Wrap(err, "google-cloud: read service account file")
	}
	conf, err := google.JWTConfigFromJSON(dat, dns.NdevClouddnsReadwriteScope)
	if err != nil {
		return nil, errors.Wrap(err, "google-cloud: parse service account")
	}
	svc, err := dns.New(conf.Client(context.Background()))
	if err != nil {
		return nil, errors.Wrap(err, "google-cloud: create service")
	}
	return &GoogleProvider{
		project: project,
		client:  svc,
		log:     log,
		zones:   make(map[string]string),
	}, nil
}
