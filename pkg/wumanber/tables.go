package wumanber

// Tables is a copy of a Matcher's preprocessed tables keyed by raw block
// contents. It is meant for inspection and is not used by the scanner.
type Tables struct {
	Shift  map[string]int                 `json:"shift"`
	Prefix map[string]map[string][]string `json:"prefix"`
	Slip   map[string]int                 `json:"slip,omitempty"`
}

// Stats summarizes the size of a Matcher's tables.
type Stats struct {
	Kind          string `json:"kind"`
	Patterns      int    `json:"patterns"`
	M             int    `json:"m"`
	B             int    `json:"b"`
	Other         int    `json:"other"`
	Blocks        int    `json:"blocks"`
	Triggers      int    `json:"triggers"`
	PrefixBuckets int    `json:"prefix_buckets"`
	SlipEntries   int    `json:"slip_entries"`
}

// Tables returns a copy of the shift, prefix and slip tables.
func (mt *Matcher) Tables() Tables {
	t := Tables{
		Shift:  make(map[string]int, len(mt.shift)),
		Prefix: make(map[string]map[string][]string, len(mt.prefix)),
	}
	for blk, d := range mt.shift {
		t.Shift[blk] = d
	}
	for suffix, bucket := range mt.prefix {
		inner := make(map[string][]string, len(bucket))
		for prefix, idxs := range bucket {
			names := make([]string, len(idxs))
			for j, i := range idxs {
				names[j] = string(mt.patterns[i])
			}
			inner[prefix] = names
		}
		t.Prefix[suffix] = inner
	}
	if mt.slip != nil {
		t.Slip = make(map[string]int, len(mt.slip))
		for blk, d := range mt.slip {
			t.Slip[blk] = d
		}
	}
	return t
}

// Stats returns table sizes and the derived constants.
func (mt *Matcher) Stats() Stats {
	s := Stats{
		Kind:        mt.kind.String(),
		Patterns:    len(mt.patterns),
		M:           mt.m,
		B:           mt.b,
		Other:       mt.other,
		Blocks:      len(mt.shift),
		SlipEntries: len(mt.slip),
	}
	for _, d := range mt.shift {
		if d == 0 {
			s.Triggers++
		}
	}
	for _, bucket := range mt.prefix {
		s.PrefixBuckets += len(bucket)
	}
	return s
}
