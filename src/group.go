package deployns

// LineGroup holds the values of one record set published on one line with
// one TTL, in the order they were requested.
type LineGroup struct {
	Line   string
	TTL    int
	Values []string
}

// RecordSet is every requested record sharing a name and a type.
type RecordSet struct {
	Name  string
	Type  string
	Lines []LineGroup
}

type recordSetKey struct {
	name, recordType string
}

type lineKey struct {
	line string
	ttl  int
}

// GroupRecords groups records by (Name, Type) and then by (Line, TTL). Groups
// appear in the order their first record appears.
func GroupRecords(records []DNSRecord) []RecordSet {
	sets := make([]RecordSet, 0)
	setIndex := make(map[recordSetKey]int)
	lineIndex := make(map[recordSetKey]map[lineKey]int)

	for _, r := range records {
		sk := recordSetKey{r.Name, r.Type}
		si, ok := setIndex[sk]
		if !ok {
			si = len(sets)
			setIndex[sk] = si
			lineIndex[sk] = make(map[lineKey]int)
			sets = append(sets, RecordSet{Name: r.Name, Type: r.Type})
		}

		lk := lineKey{r.Line, r.TTL}
		li, ok := lineIndex[sk][lk]
		if !ok {
			li = len(sets[si].Lines)
			lineIndex[sk][lk] = li
			sets[si].Lines = append(sets[si].Lines, LineGroup{Line: r.Line, TTL: r.TTL})
		}
		sets[si].Lines[li].Values = append(sets[si].Lines[li].Values, r.Value)
	}
	return sets
}

// Records flattens the set back into individual records.
func (s RecordSet) Records() []DNSRecord {
	result := make([]DNSRecord, 0)
	for _, l := range s.Lines {
		for _, v := range l.Values {
			result = append(result, DNSRecord{Name: s.Name, Type: s.Type, Value: v, Line: l.Line, TTL: l.TTL})
		}
	}
	return result
}

// FlattenRecordSets is the inverse of GroupRecords up to ordering.
func FlattenRecordSets(sets []RecordSet) []DNSRecord {
	result := make([]DNSRecord, 0)
	for _, s := range sets {
		result = append(result, s.Records()...)
	}
	return result
}

// MergeLines collapses every line of the set into one value list for
// providers without line routing. Duplicate values are dropped and the TTL of
// the first line is kept.
func MergeLines(s RecordSet) LineGroup {
	merged := LineGroup{Line: DefaultLine}
	if len(s.Lines) > 0 {
		merged.TTL = s.Lines[0].TTL
	}
	seen := make(map[string]bool)
	for _, l := range s.Lines {
		for _, v := range l.Values {
			if seen[v] {
				continue
			}
			seen[v] = true
			merged.Values = append(merged.Values, v)
		}
	}
	return merged
}
