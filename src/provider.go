package deployns

import "context"

const (
	TypeA    = "A"
	TypeAAAA = "AAAA"
)

// DNSRecord is a record the engine wants published. Name is the subdomain
// label relative to the zone ("@" for the apex) and Line is the ISP line.
type DNSRecord struct {
	Name  string
	Type  string
	Value string
	Line  string
	TTL   int
}

// RemoteRecord is a record as reported by a provider. ID is opaque and only
// meaningful to the provider and zone that returned it.
type RemoteRecord struct {
	ID string
	DNSRecord
}

// RecordQuery narrows GetRecords. Empty fields do not filter.
type RecordQuery struct {
	Type string
	Line string
	Name string
}

// DNSProvider is implemented by every vendor binding.
//
// GetRecords must page through every result. It may return records that do not
// match q but never omits one that does. AddRecords and RemoveRecords are
// no-ops on empty input and do not return before the provider has finished
// applying the change, including any background job.
type DNSProvider interface {
	Name() string
	GetRecords(ctx context.Context, domain string, q RecordQuery) ([]RemoteRecord, error)
	AddRecords(ctx context.Context, domain string, records []DNSRecord) error
	RemoveRecords(ctx context.Context, domain string, ids []string) error
}

// LineTranslator is implemented by bindings whose provider names ISP lines
// differently from the canonical line names.
type LineTranslator interface {
	DefaultLineMap() LineMap
}

// lineless is implemented by bindings without ISP line routing. They report
// every record on DefaultLine.
type lineless interface {
	Lineless() bool
}

func isLineless(p DNSProvider) bool {
	l, ok := p.(lineless)
	return ok && l.Lineless()
}

func dedupIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	result := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		result = append(result, id)
	}
	return result
}
