package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"visareview/internal"
	"visareview/internal/util"
)

// EmptyPlaceholder is the token the acceptance list prints for a missing number.
const EmptyPlaceholder = "(空)"

type Position string

const (
	PositionNone                Position = "none"
	PositionEmpty               Position = "empty"
	PositionInvalidFormat       Position = "invalid_format"
	PositionFirst               Position = "first"
	PositionLast                Position = "last"
	PositionDiscontinuityBefore Position = "discontinuity_before"
	PositionDiscontinuityAfter  Position = "discontinuity_after"
)

type SequenceItem struct {
	Entry         internal.AcceptanceEntry `json:"entry"`
	IsHighlighted bool                     `json:"isHighlighted"`
	Position      Position                 `json:"position"`
}

// EmptyItem is a record without a usable acceptance number. Value is nil
// when the number is missing and holds the raw text when it is not numeric.
type EmptyItem struct {
	Index            int      `json:"index"`
	Position         int      `json:"position"`
	Kind             Position `json:"kind"`
	Surname          string   `json:"surname"`
	GivenName        string   `json:"given_name"`
	PassportNumber   string   `json:"passport_number"`
	AcceptanceNumber string   `json:"acceptance_number"`
	Value            *string  `json:"value"`
}

type Discontinuity struct {
	From      int64  `json:"from"`
	To        int64  `json:"to"`
	FromIndex int    `json:"fromIndex"`
	ToIndex   int    `json:"toIndex"`
	Gap       int64  `json:"gap"`
	Span      string `json:"span"`
}

type SequenceAnalysis struct {
	Items                     []SequenceItem  `json:"items"`
	HasDiscontinuity          bool            `json:"hasDiscontinuity"`
	Discontinuities           []Discontinuity `json:"discontinuities"`
	HasEmptyAcceptanceNumbers bool            `json:"hasEmptyAcceptanceNumbers"`
	EmptyItems                []EmptyItem     `json:"emptyItems"`
}

// HighlightedIndices lists the positions flagged for review, ascending.
func (a SequenceAnalysis) HighlightedIndices() []int {
	out := []int{}
	for i, item := range a.Items {
		if item.IsHighlighted {
			out = append(out, i)
		}
	}
	return out
}

type numericEntry struct {
	index int
	value int64
}

// IsEmptyAcceptanceNumber reports whether v carries no acceptance number.
func IsEmptyAcceptanceNumber(v string) bool {
	s := strings.TrimSpace(v)
	return s == "" || s == EmptyPlaceholder || strings.EqualFold(s, "nan")
}

// AnalyzeSequence classifies every entry of the acceptance list and finds
// the breaks in its numeric sequence. The input slice is not modified and
// the returned items keep its order.
func AnalyzeSequence(entries []internal.AcceptanceEntry) SequenceAnalysis {
	res := SequenceAnalysis{
		Items:           make([]SequenceItem, len(entries)),
		Discontinuities: []Discontinuity{},
		EmptyItems:      []EmptyItem{},
	}
	for i, e := range entries {
		res.Items[i] = SequenceItem{Entry: e, Position: PositionNone}
	}

	for i, e := range entries {
		if !IsEmptyAcceptanceNumber(e.AcceptanceNumber) {
			continue
		}
		res.Items[i].IsHighlighted = true
		res.Items[i].Position = PositionEmpty
		res.HasEmptyAcceptanceNumbers = true
		res.EmptyItems = append(res.EmptyItems, emptyItem(i, e, PositionEmpty, nil))
	}

	numeric := make([]numericEntry, 0, len(entries))
	for i, e := range entries {
		if res.Items[i].Position == PositionEmpty {
			continue
		}
		v, ok := util.ParseLeadingInt(e.AcceptanceNumber)
		if ok {
			numeric = append(numeric, numericEntry{index: i, value: v})
			continue
		}
		raw := e.AcceptanceNumber
		res.Items[i].IsHighlighted = true
		res.Items[i].Position = PositionInvalidFormat
		res.HasEmptyAcceptanceNumbers = true
		res.EmptyItems = append(res.EmptyItems, emptyItem(i, e, PositionInvalidFormat, &raw))
	}
	sort.SliceStable(res.EmptyItems, func(a, b int) bool {
		return res.EmptyItems[a].Index < res.EmptyItems[b].Index
	})

	if len(numeric) >= 2 {
		sort.SliceStable(numeric, func(a, b int) bool { return numeric[a].value < numeric[b].value })
		for i := 1; i < len(numeric); i++ {
			prev, curr := numeric[i-1], numeric[i]
			if curr.value == prev.value+1 {
				continue
			}
			res.HasDiscontinuity = true
			res.Discontinuities = append(res.Discontinuities, Discontinuity{
				From:      prev.value,
				To:        curr.value,
				FromIndex: prev.index,
				ToIndex:   curr.index,
				Gap:       curr.value - prev.value,
				Span:      fmt.Sprintf("%d-%d", prev.index+1, curr.index+1),
			})
			res.flag(prev.index, PositionDiscontinuityBefore)
			res.flag(curr.index, PositionDiscontinuityAfter)
		}
	}

	// First and last are always reviewed; a more specific label survives.
	if n := len(res.Items); n > 0 {
		res.flagEdge(0, PositionFirst)
		if n > 1 {
			res.flagEdge(n-1, PositionLast)
		}
	}

	return res
}

func (a *SequenceAnalysis) flag(i int, pos Position) {
	if a.Items[i].IsHighlighted {
		return
	}
	a.Items[i].IsHighlighted = true
	a.Items[i].Position = pos
}

func (a *SequenceAnalysis) flagEdge(i int, pos Position) {
	a.Items[i].IsHighlighted = true
	if a.Items[i].Position == PositionNone {
		a.Items[i].Position = pos
	}
}

func emptyItem(i int, e internal.AcceptanceEntry, kind Position, value *string) EmptyItem {
	return EmptyItem{
		Index:            i,
		Position:         i + 1,
		Kind:             kind,
		Surname:          e.Surname,
		GivenName:        e.GivenName,
		PassportNumber:   util.FirstNonEmpty(e.PassportNumber, "unknown"),
		AcceptanceNumber: e.AcceptanceNumber,
		Value:            value,
	}
}
