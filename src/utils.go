package deployns

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/miekg/dns"
	"github.com/olekukonko/tablewriter"
)

func fqdn(input string) string {
	return dns.Fqdn(input)
}

func defqdn(input string) string {
	return strings.TrimSuffix(input, ".")
}

// recordFQDN turns a label relative to domain into an absolute name.
func recordFQDN(label, domain string) string {
	if label == "@" || label == "" {
		return fqdn(domain)
	}
	return fqdn(label + "." + defqdn(domain))
}

// recordLabel turns an absolute name into a label relative to domain.
func recordLabel(name, domain string) string {
	name = fqdn(name)
	zone := fqdn(domain)
	if strings.EqualFold(name, zone) {
		return "@"
	}
	if strings.HasSuffix(strings.ToLower(name), "."+strings.ToLower(zone)) {
		return name[:len(name)-len(zone)-1]
	}
	return defqdn(name)
}

func reverseDomain(s string) string {
	t := strings.Split(s, ".")
	for i, j := 0, len(t)-1; i < j; i, j = i+1, j-1 {
		t[i], t[j] = t[j], t[i]
	}
	return strings.Join(t, ".")
}

func compareRecord(l, r DNSRecord) bool {
	if c := strings.Compare(reverseDomain(l.Name), reverseDomain(r.Name)); c != 0 {
		return c < 0
	}
	if l.Type != r.Type {
		return l.Type < r.Type
	}
	return l.Line < r.Line
}

func sortRemoteRecords(records []RemoteRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return compareRecord(records[i].DNSRecord, records[j].DNSRecord)
	})
}

func sortRecords(records []DNSRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return compareRecord(records[i], records[j])
	})
}

func truncateValue(value string) string {
	if len(value) > 48 {
		return value[:48] + "..."
	}
	return value
}

func printRecords(w io.Writer, domain string, records []RemoteRecord) {
	sorted := append([]RemoteRecord(nil), records...)
	sortRemoteRecords(sorted)
	fmt.Fprintf(w, "Records in %s\n", domain)
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Name", "Value", "Type", "Line", "TTL", "ID"})
	table.SetColumnAlignment([]int{tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_CENTER, tablewriter.ALIGN_LEFT})
	table.SetAutoWrapText(false)
	for _, v := range sorted {
		table.Append([]string{v.Name, truncateValue(v.Value), v.Type, v.Line, strconv.Itoa(v.TTL), v.ID})
	}
	table.Render()
}

func printCandidates(w io.Writer, candidates []LineCandidates) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ISP", "Family", "IP", "TCP Latency", "Created At"})
	table.SetAutoWrapText(false)
	for _, lc := range candidates {
		rows := func(family string, addrs []CandidateAddress) {
			for _, a := range addrs {
				observed := ""
				if !a.ObservedAt.IsZero() {
					observed = a.ObservedAt.Format("2006-01-02 15:04:05")
				}
				table.Append([]string{lc.Line, family, a.Address, fmt.Sprintf("%.2fms", a.LatencyMs), observed})
			}
		}
		rows("IPv4", lc.V4)
		rows("IPv6", lc.V6)
	}
	table.Render()
}

func printChanges(w io.Writer, plan *Plan) {
	remove := append([]RemoteRecord(nil), plan.Remove...)
	add := append([]DNSRecord(nil), plan.Add...)
	sortRemoteRecords(remove)
	sortRecords(add)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Operate", "Name", "Value", "Type", "Line", "TTL"})
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_CENTER})
	table.SetAutoWrapText(false)
	for _, v := range remove {
		table.Append([]string{"DEL", v.Name, truncateValue(v.Value), v.Type, v.Line, strconv.Itoa(v.TTL)})
	}
	for _, v := range add {
		table.Append([]string{"ADD", v.Name, truncateValue(v.Value), v.Type, v.Line, strconv.Itoa(v.TTL)})
	}
	table.Render()
}

func printReport(w io.Writer, report *Report) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Domain", "Provider", "Discovered", "Removed", "Added", "Status"})
	table.SetAutoWrapText(false)
	for _, r := range report.Results {
		status := "ok"
		switch {
		case r.Err != nil:
			status = "failed: " + r.Err.Error()
		case r.DryRun:
			status = "dry-run"
		}
		table.Append([]string{r.Domain, r.Provider, strconv.Itoa(r.Discovered),
			strconv.Itoa(r.Removed), strconv.Itoa(r.Added), status})
	}
	table.Render()
}
