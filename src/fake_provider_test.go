package deployns

import (
	"context"
	"fmt"
	"strconv"
)

// fakeProvider keeps records in memory and records every call it receives.
type fakeProvider struct {
	name     string
	lines    LineMap
	lineless bool
	records  []RemoteRecord
	nextID   int

	calls   []string
	queries []RecordQuery
	added   [][]DNSRecord
	removed [][]string

	// superset makes GetRecords ignore the query and return everything.
	superset  bool
	getErr    error
	addErr    error
	removeErr error
}

func newFakeProvider(records ...RemoteRecord) *fakeProvider {
	return &fakeProvider{name: "fake", records: records, nextID: 1000}
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) GetRecords(ctx context.Context, domain string, q RecordQuery) ([]RemoteRecord, error) {
	f.calls = append(f.calls, fmt.Sprintf("get %s %s", q.Name, q.Type))
	f.queries = append(f.queries, q)
	if f.getErr != nil {
		return nil, f.getErr
	}
	result := make([]RemoteRecord, 0)
	for _, r := range f.records {
		if !f.superset && ((q.Name != "" && r.Name != q.Name) || (q.Type != "" && r.Type != q.Type) ||
			(q.Line != "" && r.Line != q.Line)) {
			continue
		}
		result = append(result, r)
	}
	return result, nil
}

func (f *fakeProvider) AddRecords(ctx context.Context, domain string, records []DNSRecord) error {
	f.calls = append(f.calls, fmt.Sprintf("add %d", len(records)))
	f.added = append(f.added, records)
	if f.addErr != nil {
		return f.addErr
	}
	for _, r := range records {
		f.nextID++
		f.records = append(f.records, RemoteRecord{ID: strconv.Itoa(f.nextID), DNSRecord: r})
	}
	return nil
}

func (f *fakeProvider) RemoveRecords(ctx context.Context, domain string, ids []string) error {
	f.calls = append(f.calls, fmt.Sprintf("remove %d", len(ids)))
	f.removed = append(f.removed, ids)
	if f.removeErr != nil {
		return f.removeErr
	}
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := f.records[:0]
	for _, r := range f.records {
		if !drop[r.ID] {
			kept = append(kept, r)
		}
	}
	f.records = kept
	return nil
}

func (f *fakeProvider) DefaultLineMap() LineMap { return f.lines }

func (f *fakeProvider) Lineless() bool { return f.lineless }

func remote(id, name, recordType, value, line string) RemoteRecord {
	return RemoteRecord{ID: id, DNSRecord: DNSRecord{Name: name, Type: recordType, Value: value, Line: line, TTL: 600}}
}

func addrs(ips ...string) []CandidateAddress {
	result := make([]CandidateAddress, 0, len(ips))
	for _, ip := range ips {
		result = append(result, CandidateAddress{Address: ip})
	}
	return result
}
