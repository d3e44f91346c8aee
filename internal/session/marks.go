package session

import (
	"math"
	"sort"
)

// MarkSet records which rows a reviewer has confirmed.
type MarkSet struct {
	marked map[int]struct{}
}

// MarkProgress summarizes review progress over the must-review rows.
type MarkProgress struct {
	Marked   int  `json:"marked"`
	Total    int  `json:"total"`
	Percent  int  `json:"percent"`
	Complete bool `json:"complete"`
}

func NewMarkSet() *MarkSet {
	return &MarkSet{marked: map[int]struct{}{}}
}

func (m *MarkSet) Mark(i int) {
	m.marked[i] = struct{}{}
}

func (m *MarkSet) Unmark(i int) {
	delete(m.marked, i)
}

// Toggle flips the mark on i and reports whether it is now marked.
func (m *MarkSet) Toggle(i int) bool {
	if m.IsMarked(i) {
		m.Unmark(i)
		return false
	}
	m.Mark(i)
	return true
}

// MarkAll marks every visible row. Rows not passed in keep their state.
func (m *MarkSet) MarkAll(visible []int) {
	for _, i := range visible {
		m.marked[i] = struct{}{}
	}
}

func (m *MarkSet) ClearAll() {
	m.marked = map[int]struct{}{}
}

func (m *MarkSet) IsMarked(i int) bool {
	_, ok := m.marked[i]
	return ok
}

func (m *MarkSet) Len() int {
	return len(m.marked)
}

// Indices returns the marked rows in ascending order.
func (m *MarkSet) Indices() []int {
	out := make([]int, 0, len(m.marked))
	for i := range m.marked {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// IsComplete reports whether every must-review row is marked. Marks on other
// rows do not count, and an empty must-review set is always complete.
func (m *MarkSet) IsComplete(mustReview []int) bool {
	for _, i := range mustReview {
		if !m.IsMarked(i) {
			return false
		}
	}
	return true
}

func (m *MarkSet) Progress(mustReview []int) MarkProgress {
	seen := map[int]struct{}{}
	p := MarkProgress{}
	for _, i := range mustReview {
		if _, dup := seen[i]; dup {
			continue
		}
		seen[i] = struct{}{}
		p.Total++
		if m.IsMarked(i) {
			p.Marked++
		}
	}
	if p.Total > 0 {
		p.Percent = int(math.Round(float64(p.Marked) / float64(p.Total) * 100))
	}
	p.Complete = p.Marked == p.Total
	return p
}
