package sdpmodel

import "sort"

// NormalizeCodecs sorts codecs by payload id and drops duplicates on
// id, keeping the first occurrence. Buggy backends report non-unique
// ids; spec.md §4.1 requires they never reach the wire, and §8
// invariant 2 makes this a testable property of every emitted section.
func NormalizeCodecs(codecs []Codec) []Codec {
	sorted := make([]Codec, len(codecs))
	copy(sorted, codecs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].PayloadID < sorted[j].PayloadID
	})

	out := make([]Codec, 0, len(sorted))
	seen := make(map[int]bool, len(sorted))
	for _, c := range sorted {
		if seen[c.PayloadID] {
			continue
		}
		seen[c.PayloadID] = true
		out = append(out, c)
	}
	return out
}

// HasDuplicatePayloadID reports whether codecs contains two entries
// sharing a payload id — used by tests asserting §8 invariant 2 never
// reaches the wire.
func HasDuplicatePayloadID(codecs []Codec) bool {
	seen := make(map[int]bool, len(codecs))
	for _, c := range codecs {
		if seen[c.PayloadID] {
			return true
		}
		seen[c.PayloadID] = true
	}
	return false
}
