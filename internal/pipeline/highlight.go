package pipeline

import "sort"

// HighlightReason says why an acceptance-list row is flagged. When several
// apply, the one with the higher rank wins:
//
//	Empty > CompoundMismatch > Discontinuity > FirstOrLast > None
type HighlightReason int

const (
	HighlightNone HighlightReason = iota
	HighlightFirstOrLast
	HighlightDiscontinuity
	HighlightCompoundMismatch
	HighlightEmpty
)

func (r HighlightReason) String() string {
	switch r {
	case HighlightFirstOrLast:
		return "first_or_last"
	case HighlightDiscontinuity:
		return "discontinuity"
	case HighlightCompoundMismatch:
		return "compound_mismatch"
	case HighlightEmpty:
		return "empty"
	default:
		return "none"
	}
}

func (r HighlightReason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *HighlightReason) UnmarshalText(b []byte) error {
	switch string(b) {
	case "first_or_last":
		*r = HighlightFirstOrLast
	case "discontinuity":
		*r = HighlightDiscontinuity
	case "compound_mismatch":
		*r = HighlightCompoundMismatch
	case "empty":
		*r = HighlightEmpty
	default:
		*r = HighlightNone
	}
	return nil
}

func reasonForPosition(p Position) HighlightReason {
	switch p {
	case PositionEmpty, PositionInvalidFormat:
		return HighlightEmpty
	case PositionDiscontinuityBefore, PositionDiscontinuityAfter:
		return HighlightDiscontinuity
	case PositionFirst, PositionLast:
		return HighlightFirstOrLast
	default:
		return HighlightNone
	}
}

// Highlights merges both analyses into one reason per row.
func Highlights(seq SequenceAnalysis, compound CompoundAnalysis) []HighlightReason {
	out := make([]HighlightReason, len(seq.Items))
	for i, item := range seq.Items {
		if !item.IsHighlighted {
			continue
		}
		out[i] = reasonForPosition(item.Position)
	}
	for _, idx := range compound.InconsistentIndices() {
		if idx < 0 || idx >= len(out) {
			continue
		}
		if HighlightCompoundMismatch > out[idx] {
			out[idx] = HighlightCompoundMismatch
		}
	}
	return out
}

// MustReview is the union of rows flagged by either analysis, ascending.
func MustReview(seq SequenceAnalysis, compound CompoundAnalysis) []int {
	set := map[int]struct{}{}
	for _, i := range seq.HighlightedIndices() {
		set[i] = struct{}{}
	}
	for _, i := range compound.InconsistentIndices() {
		set[i] = struct{}{}
	}
	out := make([]int, 0, len(set))
	for i := range set {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}
