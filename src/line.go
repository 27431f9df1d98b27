package deployns

import (
	"sort"
	"strings"
)

// Canonical ISP line names.
const (
	LineChinaTelecom = "China Telecom"
	LineChinaUnicom  = "China Unicom"
	LineChinaMobile  = "China Mobile"
	LineCERNET       = "China Education and Research Network"
	LinePengboshi    = "Pengboshi"
	LineCSTNET       = "China Science and Technology Network"

	// DefaultLine is reported by bindings without ISP routing.
	DefaultLine = "default"
)

var knownLines = map[string]bool{
	LineChinaTelecom: true,
	LineChinaUnicom:  true,
	LineChinaMobile:  true,
	LineCERNET:       true,
	LinePengboshi:    true,
	LineCSTNET:       true,
}

// lineAliases maps the Chinese names used by the feed and the providers to
// canonical names.
var lineAliases = map[string]string{
	"中国电信":        LineChinaTelecom,
	"电信":          LineChinaTelecom,
	"中国联通":        LineChinaUnicom,
	"联通":          LineChinaUnicom,
	"中国移动":        LineChinaMobile,
	"移动":          LineChinaMobile,
	"中国教育和科研计算机网": LineCERNET,
	"教育网":         LineCERNET,
	"鹏博士":         LinePengboshi,
	"中国科技网":       LineCSTNET,
	"科技网":         LineCSTNET,
}

// CanonicalLine returns the canonical name for a line, or the trimmed input
// when it is not a known alias.
func CanonicalLine(line string) string {
	line = strings.TrimSpace(line)
	if canonical, ok := lineAliases[line]; ok {
		return canonical
	}
	for known := range knownLines {
		if strings.EqualFold(known, line) {
			return known
		}
	}
	return line
}

// IsKnownLine reports whether line is one of the ISP lines this tool manages.
func IsKnownLine(line string) bool {
	return knownLines[CanonicalLine(line)]
}

// LineMap maps canonical line names to a provider's line identifiers.
type LineMap map[string]string

// Merge returns a copy of m overlaid by override. Keys of override are
// canonicalized so that "中国电信" and "China Telecom" address the same line.
func (m LineMap) Merge(override map[string]string) LineMap {
	result := make(LineMap, len(m)+len(override))
	for k, v := range m {
		result[CanonicalLine(k)] = v
	}
	for k, v := range override {
		result[CanonicalLine(k)] = v
	}
	return result
}

// ToProvider translates a canonical line into the provider's vocabulary.
func (m LineMap) ToProvider(line string) string {
	if v, ok := m[CanonicalLine(line)]; ok {
		return v
	}
	return line
}

// FromProvider translates a provider line back into a canonical name. When
// several canonical lines share a provider line the alphabetically first wins.
func (m LineMap) FromProvider(line string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if m[k] == line {
			return k
		}
	}
	return CanonicalLine(line)
}

// effectiveLineMap combines the provider's built-in vocabulary with the
// domain's overrides.
func effectiveLineMap(p DNSProvider, override map[string]string) LineMap {
	var base LineMap
	if t, ok := p.(LineTranslator); ok {
		base = t.DefaultLineMap()
	}
	return base.Merge(override)
}
