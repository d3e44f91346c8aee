package report

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"

	"visareview/internal/pipeline"
	"visareview/internal/util"
)

// Formatter renders a review report for the terminal.
type Formatter struct {
	colors map[string]*color.Color
}

func NewFormatter() *Formatter {
	return &Formatter{
		colors: map[string]*color.Color{
			"green":  color.New(color.FgGreen),
			"yellow": color.New(color.FgYellow),
			"red":    color.New(color.FgRed),
			"cyan":   color.New(color.FgCyan),
			"title":  color.New(color.FgWhite, color.Bold),
		},
	}
}

// ConfigureColor turns colors off when asked to or when out is not a terminal.
func ConfigureColor(noColor bool, out *os.File) {
	if noColor || !isTerminal(out) {
		color.NoColor = true
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func (f *Formatter) Format(r pipeline.Report) string {
	var b strings.Builder

	f.appendSequence(&b, r)
	f.appendCompound(&b, r)
	f.appendVisa(&b, r)
	if len(r.Reconciliation.Pairs) > 0 || len(r.Reconciliation.Errors) > 0 {
		f.appendReconciliation(&b, r)
	}
	return b.String()
}

func (f *Formatter) title(b *strings.Builder, text string) {
	b.WriteString(f.colors["title"].Sprint(text))
	b.WriteString("\n")
}

func (f *Formatter) appendSequence(b *strings.Builder, r pipeline.Report) {
	seq := r.Sequence
	f.title(b, fmt.Sprintf("Acceptance numbers (%d)", len(seq.Items)))
	if r.UsedFallback {
		b.WriteString(f.colors["yellow"].Sprint("  acceptance list missing, numbers taken from the import index column"))
		b.WriteString("\n")
	}

	if !seq.HasDiscontinuity && !seq.HasEmptyAcceptanceNumbers {
		b.WriteString(f.colors["green"].Sprint("  sequence is continuous"))
		b.WriteString("\n")
	}
	for _, d := range seq.Discontinuities {
		fmt.Fprintf(b, "  %s %d -> %d (gap %d, rows %s)\n", f.colors["red"].Sprint("break"), d.From, d.To, d.Gap, d.Span)
	}
	for _, e := range seq.EmptyItems {
		value := ""
		if e.Value != nil {
			value = fmt.Sprintf(" %q", *e.Value)
		}
		fmt.Fprintf(b, "  %s row %d%s %s %s\n", f.colors["red"].Sprint(string(e.Kind)), e.Position, value, e.PassportNumber, strings.TrimSpace(e.Surname+" "+e.GivenName))
	}

	review := []string{}
	for i, reason := range r.Highlights {
		if reason != pipeline.HighlightNone {
			review = append(review, fmt.Sprintf("%d:%s", i+1, reason))
		}
	}
	fmt.Fprintf(b, "  must review: %s\n", f.colors["cyan"].Sprint(strings.Join(review, " ")))
}

func (f *Formatter) appendCompound(b *strings.Builder, r pipeline.Report) {
	c := r.Compound
	f.title(b, "Team acceptance number")
	if !c.HasCompoundIdentifier {
		b.WriteString("  none present\n")
		return
	}
	if c.Parts != nil {
		fmt.Fprintf(b, "  prefix %s agency %s submitted %s sequence %s\n", c.Prefix, c.Parts.AgencyCode, c.Parts.SubmissionDate, c.Parts.Sequence)
	}
	if c.IsConsistent && len(c.InconsistentItems) == 0 {
		b.WriteString(f.colors["green"].Sprint("  consistent"))
		b.WriteString("\n")
		return
	}
	fmt.Fprintf(b, "  %s prefixes: %s\n", f.colors["red"].Sprint("inconsistent"), strings.Join(c.UniquePrefixes, ", "))
	for _, item := range c.InconsistentItems {
		note := ""
		if item.IsInvalid {
			note = " (too short)"
		}
		fmt.Fprintf(b, "  row %d %s %s%s\n", item.Index+1, item.TeamAcceptanceNumber, util.FirstNonEmpty(item.PassportNumber, "-"), note)
	}
}

func (f *Formatter) appendVisa(b *strings.Builder, r pipeline.Report) {
	v := r.Visa
	if v.Total() == 0 {
		return
	}
	f.title(b, "Visa types")
	fmt.Fprintf(b, "  3 month %d  5 year %d  other %d  empty %d\n", v.ThreeMonth, v.FiveYear, v.Other, v.Empty)
}

func (f *Formatter) appendReconciliation(b *strings.Builder, r pipeline.Report) {
	rec := r.Reconciliation
	f.title(b, fmt.Sprintf("Passport check (%d/%d matched)", rec.Matched, len(r.Applicants)))
	if len(rec.Errors) == 0 {
		b.WriteString(f.colors["green"].Sprint("  all records agree"))
		b.WriteString("\n")
		return
	}
	for _, e := range rec.Errors {
		line := fmt.Sprintf("  row %d %s: %s", e.Index+1, util.FirstNonEmpty(e.PassportNumber, "-"), strings.Join(e.Errors, ", "))
		if e.PageNumber != nil {
			line += fmt.Sprintf(" (page %d)", *e.PageNumber)
		}
		b.WriteString(f.colors["red"].Sprint(line))
		if e.Suggestion != nil {
			b.WriteString(f.colors["yellow"].Sprintf("  closest: %s", *e.Suggestion))
		}
		b.WriteString("\n")
	}
}
