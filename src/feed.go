package deployns

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"time"

	"github.com/pkg/errors"
)

const FeedURLEnv = "CDN_INFO_URL"

// CandidateAddress is one CDN edge address offered by the feed. Latency and
// observation time are informational.
type CandidateAddress struct {
	Address    string
	LatencyMs  float64
	ObservedAt time.Time
}

// LineCandidates are the ranked addresses for one ISP line, best first.
type LineCandidates struct {
	Line string
	V4   []CandidateAddress
	V6   []CandidateAddress
}

type feedItem struct {
	IP         string  `json:"ip"`
	TCPLatency float64 `json:"tcp_latency"`
	CreatedAt  string  `json:"created_at"`
}

type feedLine struct {
	ISP string     `json:"isp"`
	V4  []feedItem `json:"v4"`
	V6  []feedItem `json:"v6"`
}

// Feed fetches CDN candidates over HTTP.
type Feed struct {
	URL       string
	UserAgent string
	Client    *http.Client
}

// Fetch downloads and validates the candidate list. Every failure is a
// *FeedError.
func (f *Feed) Fetch(ctx context.Context) ([]LineCandidates, error) {
	if f.URL == "" {
		return nil, &FeedError{Err: errors.Errorf("%s is required", FeedURLEnv)}
	}
	client := f.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return nil, &FeedError{URL: f.URL, Err: errors.Wrap(err, "build request")}
	}
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, &FeedError{URL: f.URL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &FeedError{URL: f.URL, Err: errors.Errorf("status %d: %s", resp.StatusCode, string(body))}
	}

	var lines []feedLine
	if err := json.NewDecoder(resp.Body).Decode(&lines); err != nil {
		return nil, &FeedError{URL: f.URL, Err: errors.Wrap(err, "decode response")}
	}

	result, err := convertFeed(lines)
	if err != nil {
		return nil, &FeedError{URL: f.URL, Err: err}
	}
	return result, nil
}

// convertFeed validates the feed and merges entries naming the same line, so
// "中国电信" and "电信" contribute to one LineCandidates in first-seen order.
func convertFeed(lines []feedLine) ([]LineCandidates, error) {
	result := make([]LineCandidates, 0, len(lines))
	index := make(map[string]int, len(lines))
	for _, l := range lines {
		if l.ISP == "" {
			return nil, errors.New("entry without isp")
		}
		v4, err := convertItems(l.ISP, l.V4, false)
		if err != nil {
			return nil, err
		}
		v6, err := convertItems(l.ISP, l.V6, true)
		if err != nil {
			return nil, err
		}
		line := CanonicalLine(l.ISP)
		i, ok := index[line]
		if !ok {
			index[line] = len(result)
			result = append(result, LineCandidates{Line: line, V4: v4, V6: v6})
			continue
		}
		result[i].V4 = appendNewAddresses(result[i].V4, v4)
		result[i].V6 = appendNewAddresses(result[i].V6, v6)
	}
	return result, nil
}

func appendNewAddresses(dst, src []CandidateAddress) []CandidateAddress {
	seen := make(map[string]bool, len(dst))
	for _, a := range dst {
		seen[a.Address] = true
	}
	for _, a := range src {
		if seen[a.Address] {
			continue
		}
		seen[a.Address] = true
		dst = append(dst, a)
	}
	return dst
}

// convertItems parses the addresses of one family. An IPv4-mapped IPv6
// literal such as "::ffff:1.2.3.4" is an IPv6 address: it is accepted under
// v6, published as an AAAA record in that form, and rejected under v4.
func convertItems(isp string, items []feedItem, v6 bool) ([]CandidateAddress, error) {
	result := make([]CandidateAddress, 0, len(items))
	for _, item := range items {
		addr, err := netip.ParseAddr(item.IP)
		if err != nil || addr.Zone() != "" {
			return nil, errors.Errorf("%s: invalid address %q", isp, item.IP)
		}
		if addr.Is6() != v6 {
			family := "v4"
			if v6 {
				family = "v6"
			}
			return nil, errors.Errorf("%s: address %q listed under %s", isp, item.IP, family)
		}
		result = append(result, CandidateAddress{
			Address:    addr.String(),
			LatencyMs:  item.TCPLatency,
			ObservedAt: parseObservedAt(item.CreatedAt),
		})
	}
	return result, nil
}

var observedAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

func parseObservedAt(s string) time.Time {
	for _, layout := range observedAtLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func feedUserAgent(version string) string {
	return fmt.Sprintf("deploy-owo-ns/%s", version)
}
