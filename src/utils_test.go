package deployns

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestRecordNames(t *testing.T) {
	assert.Equal(t, "example.com.", recordFQDN("@", "example.com"))
	assert.Equal(t, "cdn.example.com.", recordFQDN("cdn", "example.com."))
	assert.Equal(t, "a.b.example.com.", recordFQDN("a.b", "example.com"))

	assert.Equal(t, "@", recordLabel("example.com.", "example.com"))
	assert.Equal(t, "cdn", recordLabel("cdn.example.com", "example.com"))
	assert.Equal(t, "a.b", recordLabel("a.b.example.com.", "example.com."))
	assert.Equal(t, "CDN", recordLabel("CDN.Example.com.", "example.com"))
	assert.Equal(t, "other.net", recordLabel("other.net.", "example.com"))
}

func TestSortRecords(t *testing.T) {
	records := []DNSRecord{
		{Name: "www", Type: TypeAAAA},
		{Name: "cdn", Type: TypeA, Line: LineChinaUnicom},
		{Name: "www", Type: TypeA},
		{Name: "cdn", Type: TypeA, Line: LineChinaMobile},
	}
	sortRecords(records)
	assert.Equal(t, []DNSRecord{
		{Name: "cdn", Type: TypeA, Line: LineChinaMobile},
		{Name: "cdn", Type: TypeA, Line: LineChinaUnicom},
		{Name: "www", Type: TypeA},
		{Name: "www", Type: TypeAAAA},
	}, records)
}

func TestPrintReport(t *testing.T) {
	var buf bytes.Buffer
	printReport(&buf, &Report{Results: []DomainResult{
		{Domain: "a.example.com", Provider: "tencent-cloud", Discovered: 3, Removed: 3, Added: 4},
		{Domain: "b.example.com", Provider: "huawei-cloud", Err: errors.New("zone not found")},
		{Domain: "c.example.com", Provider: "cloudflare", DryRun: true},
	}})
	out := buf.String()
	assert.Contains(t, out, "a.example.com")
	assert.Contains(t, out, "failed: zone not found")
	assert.Contains(t, out, "dry-run")
}

func TestPrintCandidates(t *testing.T) {
	var buf bytes.Buffer
	printCandidates(&buf, []LineCandidates{{
		Line: LineChinaTelecom,
		V4:   []CandidateAddress{{Address: "1.1.1.1", LatencyMs: 12.5}},
		V6:   addrs("2001:db8::1"),
	}})
	out := buf.String()
	assert.Contains(t, out, "12.50ms")
	assert.Contains(t, out, "2001:db8::1")
	assert.Contains(t, out, "IPv6")
}

func TestTruncateValue(t *testing.T) {
	assert.Equal(t, "1.1.1.1", truncateValue("1.1.1.1"))
	long := string(bytes.Repeat([]byte("a"), 60))
	assert.Equal(t, long[:48]+"...", truncateValue(long))
}
