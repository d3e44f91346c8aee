package session

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"visareview/internal"
	"visareview/internal/pipeline"
	"visareview/internal/util"
)

var (
	ErrBusy       = errors.New("an extraction is already running")
	ErrStale      = errors.New("extraction result discarded: the session changed while it was running")
	ErrNoDocument = errors.New("no passport document loaded")

	ErrNoImportData = pipeline.ErrNoImportData
)

// Extractor is the document-understanding collaborator.
type Extractor interface {
	Extract(ctx context.Context, doc internal.DocumentRow, force bool) (internal.ExtractionResult, error)
	Recheck(ctx context.Context, doc internal.DocumentRow, pageNumber int, passportNumber string) (*internal.ExtractedRecord, error)
	Store(hash string, res internal.ExtractionResult) error
	ClearCache() error
}

// Analysis is the combined view of the acceptance list.
type Analysis struct {
	Entries      []internal.AcceptanceEntry `json:"entries"`
	Sequence     pipeline.SequenceAnalysis  `json:"sequence"`
	Compound     pipeline.CompoundAnalysis  `json:"compound"`
	Highlights   []pipeline.HighlightReason `json:"highlights"`
	MustReview   []int                      `json:"mustReview"`
	Visa         pipeline.VisaDistribution  `json:"visa"`
	UsedFallback bool                       `json:"usedFallback"`
}

// Session owns one review working set: the applicant import, the acceptance
// list, the extraction collection and both mark sets. All methods are safe
// for concurrent use.
type Session struct {
	ID string

	mu        sync.Mutex
	log       *zap.SugaredLogger
	extractor Extractor

	applicants []internal.ApplicantRecord
	primary    []internal.AcceptanceEntry
	doc        *internal.DocumentRow
	extraction *internal.ExtractionResult

	analysis *Analysis
	recon    *pipeline.Reconciliation

	marks      *MarkSet
	errorMarks *MarkSet

	busy       bool
	generation uint64
	listeners  []func()
}

func New(extractor Extractor, log *zap.SugaredLogger) *Session {
	return &Session{
		ID:         uuid.NewString(),
		log:        log,
		extractor:  extractor,
		marks:      NewMarkSet(),
		errorMarks: NewMarkSet(),
	}
}

// OnChange registers fn to run after every mark change.
func (s *Session) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// LoadImport replaces the applicant import. Marks, analyses and the
// reconciliation are reset and any running extraction becomes stale.
func (s *Session) LoadImport(applicants []internal.ApplicantRecord) {
	s.mu.Lock()
	s.applicants = append([]internal.ApplicantRecord(nil), applicants...)
	s.invalidateLocked()
	s.generation++
	s.mu.Unlock()

	s.log.Infow("import loaded", "session", s.ID, "records", len(applicants))
	s.notify()
}

// LoadAcceptance sets the authority's acceptance list. An empty list makes
// the session fall back to the import's index column.
func (s *Session) LoadAcceptance(primary []internal.AcceptanceEntry) {
	s.mu.Lock()
	s.primary = append([]internal.AcceptanceEntry(nil), primary...)
	s.analysis = nil
	s.marks.ClearAll()
	s.mu.Unlock()

	s.log.Infow("acceptance list loaded", "session", s.ID, "entries", len(primary))
	s.notify()
}

// SetDocument selects the passport scan to extract from.
func (s *Session) SetDocument(doc internal.DocumentRow) {
	s.mu.Lock()
	s.doc = &doc
	s.extraction = nil
	s.recon = nil
	s.errorMarks.ClearAll()
	s.generation++
	s.mu.Unlock()
}

func (s *Session) Applicants() []internal.ApplicantRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]internal.ApplicantRecord(nil), s.applicants...)
}

// Analyze runs the sequence and compound analyses over the acceptance list.
func (s *Session) Analyze() (Analysis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.analyzeLocked()
	if err != nil {
		return Analysis{}, err
	}
	return *a, nil
}

func (s *Session) analyzeLocked() (*Analysis, error) {
	if s.analysis != nil {
		return s.analysis, nil
	}

	entries, fallback, err := pipeline.ResolveAcceptance(s.primary, s.applicants)
	if err != nil {
		return nil, err
	}
	if fallback {
		s.log.Warnw("acceptance list unavailable, using import index column", "session", s.ID, "entries", len(entries))
	}

	seq := pipeline.AnalyzeSequence(entries)
	compound := pipeline.AnalyzeCompound(entries)
	s.analysis = &Analysis{
		Entries:      entries,
		Sequence:     seq,
		Compound:     compound,
		Highlights:   pipeline.Highlights(seq, compound),
		MustReview:   pipeline.MustReview(seq, compound),
		Visa:         pipeline.AnalyzeVisaTypes(s.applicants),
		UsedFallback: fallback,
	}
	return s.analysis, nil
}

// Process extracts the loaded document. Only one extraction runs at a time,
// and a result that arrives after the import or document changed is
// dropped with ErrStale.
func (s *Session) Process(ctx context.Context, force bool) (internal.ExtractionResult, error) {
	doc, gen, err := s.begin()
	if err != nil {
		return internal.ExtractionResult{}, err
	}

	res, err := s.extractor.Extract(ctx, doc, force)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
	if err != nil {
		return internal.ExtractionResult{}, err
	}
	if gen != s.generation {
		s.log.Infow("stale extraction dropped", "session", s.ID, "hash", doc.Hash)
		return internal.ExtractionResult{}, ErrStale
	}

	s.extraction = &res
	s.recon = nil
	s.errorMarks.ClearAll()
	s.log.Infow("extraction loaded", "session", s.ID, "records", len(res.Records), "fromCache", res.FromCache)
	return res, nil
}

func (s *Session) begin() (internal.DocumentRow, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return internal.DocumentRow{}, 0, ErrBusy
	}
	if len(s.applicants) == 0 {
		return internal.DocumentRow{}, 0, ErrNoImportData
	}
	if s.doc == nil {
		return internal.DocumentRow{}, 0, ErrNoDocument
	}
	s.busy = true
	return *s.doc, s.generation, nil
}

// Reconcile matches the import against the current extraction collection.
// Without an extraction every applicant is reported as unmatched.
func (s *Session) Reconcile() (pipeline.Reconciliation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.reconcileLocked()
	if err != nil {
		return pipeline.Reconciliation{}, err
	}
	return *r, nil
}

func (s *Session) reconcileLocked() (*pipeline.Reconciliation, error) {
	if len(s.applicants) == 0 {
		return nil, ErrNoImportData
	}
	if s.recon == nil {
		var records []internal.ExtractedRecord
		if s.extraction != nil {
			records = s.extraction.Records
		}
		r := pipeline.Reconcile(s.applicants, records)
		s.recon = &r
	}
	return s.recon, nil
}

// RecheckErrors extracts the pages behind the marked error records again,
// replaces the matching extracted records and reconciles once more. It
// returns the number of records that were updated.
func (s *Session) RecheckErrors(ctx context.Context) (int, error) {
	doc, gen, err := s.begin()
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	targets, err := s.markedErrorsLocked()
	var records []internal.ExtractedRecord
	if s.extraction != nil {
		records = append(records, s.extraction.Records...)
	}
	s.mu.Unlock()
	if err != nil {
		s.finish()
		return 0, err
	}

	updated := 0
	for _, target := range targets {
		page := 0
		if target.PageNumber != nil {
			page = *target.PageNumber
		}
		rec, err := s.extractor.Recheck(ctx, doc, page, target.PassportNumber)
		if err != nil {
			if ctx.Err() != nil {
				s.finish()
				return 0, ctx.Err()
			}
			s.log.Warnw("recheck failed", "session", s.ID, "passport", target.PassportNumber, "page", page, "error", err)
			continue
		}
		records = replaceOrAppend(records, *rec)
		updated++
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
	if gen != s.generation {
		return 0, ErrStale
	}
	if updated == 0 {
		return 0, nil
	}

	res := internal.ExtractionResult{Records: records, ValidPages: validPages(records)}
	if err := s.extractor.Store(doc.Hash, res); err != nil {
		return 0, err
	}
	s.extraction = &res
	s.recon = nil
	if _, err := s.reconcileLocked(); err != nil {
		return 0, err
	}
	s.errorMarks.ClearAll()
	s.log.Infow("recheck done", "session", s.ID, "requested", len(targets), "updated", updated)
	return updated, nil
}

func (s *Session) finish() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}

func (s *Session) markedErrorsLocked() ([]internal.ErrorRecord, error) {
	r, err := s.reconcileLocked()
	if err != nil {
		return nil, err
	}
	out := []internal.ErrorRecord{}
	for _, e := range r.Errors {
		if s.errorMarks.IsMarked(e.Index) {
			out = append(out, e)
		}
	}
	return out, nil
}

func replaceOrAppend(records []internal.ExtractedRecord, rec internal.ExtractedRecord) []internal.ExtractedRecord {
	key := util.NormalizeIdentifier(rec.PassportNumber)
	for i := range records {
		if key != "" && util.NormalizeIdentifier(records[i].PassportNumber) == key {
			records[i] = rec
			return records
		}
	}
	return append(records, rec)
}

func validPages(records []internal.ExtractedRecord) []int {
	seen := map[int]struct{}{}
	out := []int{}
	for _, r := range records {
		if _, ok := seen[r.PageNumber]; ok {
			continue
		}
		seen[r.PageNumber] = struct{}{}
		out = append(out, r.PageNumber)
	}
	sort.Ints(out)
	return out
}

func (s *Session) MarkAcceptance(i int) {
	s.withMarks(func() { s.marks.Mark(i) })
}

func (s *Session) UnmarkAcceptance(i int) {
	s.withMarks(func() { s.marks.Unmark(i) })
}

func (s *Session) ToggleAcceptance(i int) {
	s.withMarks(func() { s.marks.Toggle(i) })
}

// MarkAllAcceptance marks the rows currently shown to the reviewer.
func (s *Session) MarkAllAcceptance(visible []int) {
	s.withMarks(func() { s.marks.MarkAll(visible) })
}

func (s *Session) ClearAcceptanceMarks() {
	s.withMarks(func() { s.marks.ClearAll() })
}

func (s *Session) MarkError(i int) {
	s.withMarks(func() { s.errorMarks.Mark(i) })
}

func (s *Session) UnmarkError(i int) {
	s.withMarks(func() { s.errorMarks.Unmark(i) })
}

func (s *Session) ClearErrorMarks() {
	s.withMarks(func() { s.errorMarks.ClearAll() })
}

// MarkAllErrors marks every current error record.
func (s *Session) MarkAllErrors() error {
	s.mu.Lock()
	r, err := s.reconcileLocked()
	if err == nil {
		s.errorMarks.MarkAll(r.ErrorIndices())
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.notify()
	return nil
}

func (s *Session) MarkedAcceptance() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.marks.Indices()
}

func (s *Session) MarkedErrors() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errorMarks.Indices()
}

// Progress reports how much of the must-review set has been confirmed.
func (s *Session) Progress() (MarkProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.analyzeLocked()
	if err != nil {
		return MarkProgress{}, err
	}
	return s.marks.Progress(a.MustReview), nil
}

// ReviewComplete reports whether every must-review row has been marked.
func (s *Session) ReviewComplete() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.analyzeLocked()
	if err != nil {
		return false, err
	}
	return s.marks.IsComplete(a.MustReview), nil
}

func (s *Session) withMarks(fn func()) {
	s.mu.Lock()
	fn()
	s.mu.Unlock()
	s.notify()
}

func (s *Session) notify() {
	s.mu.Lock()
	listeners := append([]func(){}, s.listeners...)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn()
	}
}

// Report collects the analyses and the reconciliation for export.
func (s *Session) Report() (pipeline.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.analyzeLocked()
	if err != nil {
		return pipeline.Report{}, err
	}
	r, err := s.reconcileLocked()
	if err != nil {
		return pipeline.Report{}, err
	}
	return pipeline.Report{
		Applicants:     append([]internal.ApplicantRecord(nil), s.applicants...),
		Reconciliation: *r,
		Sequence:       a.Sequence,
		Highlights:     a.Highlights,
		Compound:       a.Compound,
		Visa:           a.Visa,
		UsedFallback:   a.UsedFallback,
	}, nil
}

// Reset drops the whole working set.
func (s *Session) Reset() {
	s.mu.Lock()
	s.applicants = nil
	s.primary = nil
	s.doc = nil
	s.extraction = nil
	s.invalidateLocked()
	s.generation++
	s.mu.Unlock()
	s.notify()
}

// ClearCache empties the extraction cache and starts a fresh review: the
// import, the acceptance list, the document and all marks are dropped.
func (s *Session) ClearCache() error {
	if err := s.extractor.ClearCache(); err != nil {
		return err
	}
	s.Reset()
	return nil
}

func (s *Session) invalidateLocked() {
	s.analysis = nil
	s.recon = nil
	s.marks.ClearAll()
	s.errorMarks.ClearAll()
}
