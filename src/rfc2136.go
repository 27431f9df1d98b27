package deployns

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/miekg/dns"
	"github.com/pkg/errors"
)

var (
	tsigAlg = map[string]string{
		"hmac-sha1":   "hmac-sha1.",
		"hmac-sha224": "hmac-sha224.",
		"hmac-sha256": "hmac-sha256.",
		"hmac-sha384": "hmac-sha384.",
		"hmac-sha512": "hmac-sha512.",
	}
)

// Rfc2136Provider talks dynamic UPDATE to an authoritative server and lists
// the zone with AXFR. A record id is the record's presentation form.
type Rfc2136Provider struct {
	Host     string
	TsigName string
	TsigAlg  string
	Tsig     string
	log      logr.Logger
}

func parseTsig(tsig string) (alg, name, secret string, err error) {
	t := strings.Split(tsig, ":")
	if len(t) == 3 {
		if _, ok := tsigAlg[t[0]]; ok {
			alg = tsigAlg[t[0]]
		} else {
			return "", "", "", errors.Errorf("tsig algorithm %q not found", t[0])
		}
		name = dns.Fqdn(t[1])
		secret = t[2]
		return
	} else if len(t) == 2 {
		alg = "hmac-sha1."
		name = dns.Fqdn(t[0])
		secret = t[1]
		return
	} else {
		return "", "", "", errors.New("tsig must be [alg:]name:secret")
	}
}

func (s *Rfc2136Provider) Name() string { return "rfc2136" }

func (s *Rfc2136Provider) Lineless() bool { return true }

func (s *Rfc2136Provider) tsigSecret() map[string]string {
	if s.TsigName == "" {
		return nil
	}
	return map[string]string{s.TsigName: s.Tsig}
}

func (s *Rfc2136Provider) sign(m *dns.Msg) *dns.Msg {
	if s.TsigName == "" {
		return m
	}
	return m.SetTsig(s.TsigName, s.TsigAlg, 300, time.Now().Unix())
}

func (s *Rfc2136Provider) GetRecords(ctx context.Context, domain string, q RecordQuery) ([]RemoteRecord, error) {
	tr := dns.Transfer{
		TsigSecret: s.tsigSecret(),
	}
	m := &dns.Msg{}
	m.SetAxfr(dns.Fqdn(domain))
	channel, err := tr.In(s.sign(m), s.Host)
	if err != nil {
		return nil, &ProviderQueryError{Provider: s.Name(), Domain: domain, Err: err}
	}
	result := make([]RemoteRecord, 0)
	var failed error
	for v := range channel {
		if v.Error != nil {
			failed = v.Error
			continue
		}
		for _, rr := range v.RR {
			r, ok := rr2RemoteRecord(rr, domain)
			if !ok || !rfc2136Matches(r, q) {
				continue
			}
			result = append(result, r)
		}
	}
	if failed != nil {
		return nil, &ProviderQueryError{Provider: s.Name(), Domain: domain, Err: failed}
	}
	if err := ctx.Err(); err != nil {
		return nil, &ProviderQueryError{Provider: s.Name(), Domain: domain, Err: err}
	}
	return result, nil
}

func rfc2136Matches(r RemoteRecord, q RecordQuery) bool {
	if q.Type != "" && r.Type != q.Type {
		return false
	}
	if q.Name != "" && !strings.EqualFold(r.Name, q.Name) {
		return false
	}
	return q.Line == "" || q.Line == r.Line
}

// rr2RemoteRecord converts A and AAAA records. Other types are skipped.
func rr2RemoteRecord(rr dns.RR, domain string) (RemoteRecord, bool) {
	r := RemoteRecord{ID: rr.String()}
	r.Name = recordLabel(rr.Header().Name, domain)
	r.TTL = int(rr.Header().Ttl)
	r.Line = DefaultLine
	switch v := rr.(type) {
	case *dns.A:
		r.Type = TypeA
		r.Value = v.A.String()
	case *dns.AAAA:
		r.Type = TypeAAAA
		r.Value = v.AAAA.String()
	default:
		return RemoteRecord{}, false
	}
	return r, true
}

func (s *Rfc2136Provider) AddRecords(ctx context.Context, domain string, records []DNSRecord) error {
	if len(records) == 0 {
		return nil
	}
	rrs := make([]dns.RR, 0, len(records))
	for _, set := range GroupRecords(records) {
		merged := MergeLines(set)
		for _, v := range merged.Values {
			rr, err := dns.NewRR(fmt.Sprintf("%s %d IN %s %s", recordFQDN(set.Name, domain), merged.TTL, set.Type, v))
			if err != nil {
				return &ProviderWriteError{Provider: s.Name(), Domain: domain, Err: err}
			}
			rrs = append(rrs, rr)
		}
	}
	m := &dns.Msg{}
	m.Id = dns.Id()
	m = m.SetUpdate(dns.Fqdn(domain))
	m.Insert(rrs)
	return s.exchange(ctx, domain, m)
}

// RemoveRecords deletes the given records in one UPDATE. The update carries
// every record as a prerequisite, so it is refused when one of them is gone.
func (s *Rfc2136Provider) RemoveRecords(ctx context.Context, domain string, ids []string) error {
	ids = dedupIDs(ids)
	if len(ids) == 0 {
		return nil
	}
	rrs := make([]dns.RR, 0, len(ids))
	for _, id := range ids {
		rr, err := dns.NewRR(id)
		if err != nil || rr == nil {
			return &ProviderWriteError{Provider: s.Name(), Domain: domain, Err: errors.Errorf("invalid record id %q", id)}
		}
		rrs = append(rrs, rr)
	}
	m := &dns.Msg{}
	m.Id = dns.Id()
	m = m.SetUpdate(dns.Fqdn(domain))
	m.Used(rrs)
	// Remove rewrites the headers it is given.
	removals := make([]dns.RR, 0, len(rrs))
	for _, rr := range rrs {
		removals = append(removals, dns.Copy(rr))
	}
	m.Remove(removals)
	return s.exchange(ctx, domain, m)
}

func (s *Rfc2136Provider) exchange(ctx context.Context, domain string, m *dns.Msg) error {
	c := dns.Client{
		Net:        "tcp",
		TsigSecret: s.tsigSecret(),
	}
	in, _, err := c.ExchangeContext(ctx, s.sign(m), s.Host)
	if err != nil {
		return &ProviderWriteError{Provider: s.Name(), Domain: domain, Err: err}
	}
	if in.Rcode != dns.RcodeSuccess {
		return &ProviderWriteError{Provider: s.Name(), Domain: domain,
			Err: errors.Errorf("rfc2136 error, code: %s", dns.RcodeToString[in.Rcode])}
	}
	s.log.V(1).Info("update applied", "id", m.Id)
	return nil
}

func NewRfc2136Provider(env map[string]string, log logr.Logger) (DNSProvider, error) {
	p := &Rfc2136Provider{log: log}
	host := env["RFC2136_SERVER"]
	if host == "" {
		return nil, errors.New("rfc2136: missing RFC2136_SERVER")
	}
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, "53")
	}
	p.Host = host
	if v := env["RFC2136_TSIG"]; v != "" {
		alg, name, secret, err := parseTsig(v)
		if err != nil {
			return nil, errors.Wrap(err, "rfc2136")
		}
		p.TsigAlg, p.TsigName, p.Tsig = alg, name, secret
	}
	return p, nil
}
