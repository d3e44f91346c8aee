package pipeline

import (
	"visareview/internal"
	"visareview/internal/util"
)

// Index holds the extraction collection with its identifiers precomputed,
// keeping the collaborator's order.
type Index struct {
	Records      []internal.ExtractedRecord
	Normalized   []string
	LongestRun   []string
	ByIdentifier map[string]int
}

func BuildIndex(records []internal.ExtractedRecord) *Index {
	idx := &Index{
		Records:      records,
		Normalized:   make([]string, len(records)),
		LongestRun:   make([]string, len(records)),
		ByIdentifier: map[string]int{},
	}

	for i, r := range records {
		norm := util.NormalizeIdentifier(r.PassportNumber)
		idx.Normalized[i] = norm
		idx.LongestRun[i] = util.LongestDigitRun(norm)
		if norm != "" {
			if _, ok := idx.ByIdentifier[norm]; !ok {
				idx.ByIdentifier[norm] = i
			}
		}
	}

	return idx
}
