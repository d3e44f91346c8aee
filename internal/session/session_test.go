package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visareview/internal"
	"visareview/internal/logging"
	"visareview/internal/pipeline"
)

type fakeExtractor struct {
	mu       sync.Mutex
	result   internal.ExtractionResult
	started  chan struct{}
	release  chan struct{}
	rechecks map[string]internal.ExtractedRecord
	stored   []internal.ExtractionResult
	cleared  bool
}

func (f *fakeExtractor) Extract(ctx context.Context, _ internal.DocumentRow, _ bool) (internal.ExtractionResult, error) {
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return internal.ExtractionResult{}, ctx.Err()
		}
	}
	return f.result, nil
}

func (f *fakeExtractor) Recheck(_ context.Context, _ internal.DocumentRow, _ int, passportNumber string) (*internal.ExtractedRecord, error) {
	rec, ok := f.rechecks[passportNumber]
	if !ok {
		return nil, errors.New("page not found")
	}
	return &rec, nil
}

func (f *fakeExtractor) Store(_ string, res internal.ExtractionResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stored = append(f.stored, res)
	return nil
}

func (f *fakeExtractor) ClearCache() error {
	f.cleared = true
	return nil
}

func applicant(index, passport string) internal.ApplicantRecord {
	return internal.ApplicantRecord{
		Index:                index,
		PassportNumber:       passport,
		Surname:              "LI",
		GivenName:            "MING",
		Gender:               "M",
		BirthDate:            "19900105",
		ExpiryDate:           "20300101",
		TeamAcceptanceNumber: "ABC2401010001",
	}
}

func extracted(passport string, page int) internal.ExtractedRecord {
	return internal.ExtractedRecord{
		PassportNumber: passport,
		Surname:        "LI",
		GivenName:      "MING",
		Gender:         "M",
		BirthDate:      "19900105",
		ExpiryDate:     "20300101",
		PageNumber:     page,
	}
}

func testApplicants() []internal.ApplicantRecord {
	return []internal.ApplicantRecord{
		applicant("1", "E10000001"),
		applicant("2", "E10000002"),
		applicant("4", "E10000004"),
	}
}

func newTestSession(ex *fakeExtractor) *Session {
	s := New(ex, logging.Nop())
	s.LoadImport(testApplicants())
	s.SetDocument(internal.DocumentRow{Hash: "h1", Name: "passports.pdf"})
	return s
}

func TestAnalyzeRequiresImport(t *testing.T) {
	s := New(&fakeExtractor{}, logging.Nop())

	_, err := s.Analyze()
	assert.ErrorIs(t, err, ErrNoImportData)

	_, err = s.Reconcile()
	assert.ErrorIs(t, err, ErrNoImportData)

	_, err = s.Process(context.Background(), false)
	assert.ErrorIs(t, err, ErrNoImportData)
}

func TestAnalyzeFallsBackToIndexColumn(t *testing.T) {
	s := newTestSession(&fakeExtractor{})

	a, err := s.Analyze()
	require.NoError(t, err)

	assert.True(t, a.UsedFallback)
	assert.True(t, a.Sequence.HasDiscontinuity)
	assert.True(t, a.Compound.IsConsistent)
	require.NotNil(t, a.Compound.Parts)
	assert.Equal(t, "0001", a.Compound.Parts.Sequence)
	assert.Equal(t, []int{0, 1, 2}, a.MustReview)
	assert.Equal(t, []pipeline.HighlightReason{
		pipeline.HighlightFirstOrLast,
		pipeline.HighlightDiscontinuity,
		pipeline.HighlightDiscontinuity,
	}, a.Highlights)
}

func TestPrimaryAcceptanceListWins(t *testing.T) {
	s := newTestSession(&fakeExtractor{})
	s.LoadAcceptance([]internal.AcceptanceEntry{
		{AcceptanceNumber: "100", PassportNumber: "E10000001"},
		{AcceptanceNumber: "101", PassportNumber: "E10000002"},
	})

	a, err := s.Analyze()
	require.NoError(t, err)
	assert.False(t, a.UsedFallback)
	assert.False(t, a.Sequence.HasDiscontinuity)
	assert.Equal(t, "LI", a.Entries[0].Surname)
	assert.Equal(t, []int{0, 1}, a.MustReview)
}

func TestMarksNotifyAndResetOnImport(t *testing.T) {
	s := newTestSession(&fakeExtractor{})
	changes := 0
	s.OnChange(func() { changes++ })

	s.MarkAcceptance(0)
	s.MarkAllAcceptance([]int{1, 2})
	assert.Equal(t, 2, changes)

	done, err := s.ReviewComplete()
	require.NoError(t, err)
	assert.True(t, done)

	p, err := s.Progress()
	require.NoError(t, err)
	assert.Equal(t, 100, p.Percent)

	s.ToggleAcceptance(2)
	p, err = s.Progress()
	require.NoError(t, err)
	assert.Equal(t, 2, p.Marked)
	assert.False(t, p.Complete)

	s.LoadImport(testApplicants())
	assert.Empty(t, s.MarkedAcceptance())
	assert.Equal(t, 4, changes)
}

func TestProcessAndReconcile(t *testing.T) {
	wrong := extracted("E10000004", 3)
	wrong.Gender = "F"
	ex := &fakeExtractor{result: internal.ExtractionResult{
		Records:    []internal.ExtractedRecord{extracted("E10000001", 1), extracted("E10000002", 2), wrong},
		ValidPages: []int{1, 2, 3},
	}}
	s := newTestSession(ex)

	before, err := s.Reconcile()
	require.NoError(t, err)
	assert.Len(t, before.Errors, 3)
	assert.Equal(t, pipeline.MessageNoExtraction, before.Errors[0].Errors[0])

	_, err = s.Process(context.Background(), false)
	require.NoError(t, err)

	r, err := s.Reconcile()
	require.NoError(t, err)
	assert.Equal(t, 3, r.Matched)
	require.Len(t, r.Errors, 1)
	assert.Equal(t, 2, r.Errors[0].Index)
	require.NotNil(t, r.Errors[0].PageNumber)
	assert.Equal(t, 3, *r.Errors[0].PageNumber)

	report, err := s.Report()
	require.NoError(t, err)
	assert.Len(t, report.Applicants, 3)
	assert.Len(t, report.Reconciliation.Errors, 1)
}

func TestProcessRejectsConcurrentRun(t *testing.T) {
	ex := &fakeExtractor{started: make(chan struct{}, 1), release: make(chan struct{})}
	s := newTestSession(ex)

	errc := make(chan error, 1)
	go func() {
		_, err := s.Process(context.Background(), false)
		errc <- err
	}()
	<-ex.started

	_, err := s.Process(context.Background(), false)
	assert.ErrorIs(t, err, ErrBusy)

	close(ex.release)
	assert.NoError(t, <-errc)
}

func TestProcessDropsStaleResult(t *testing.T) {
	ex := &fakeExtractor{
		result:  internal.ExtractionResult{Records: []internal.ExtractedRecord{extracted("E10000001", 1)}},
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	s := newTestSession(ex)

	errc := make(chan error, 1)
	go func() {
		_, err := s.Process(context.Background(), false)
		errc <- err
	}()
	<-ex.started

	s.LoadImport(testApplicants())
	close(ex.release)
	assert.ErrorIs(t, <-errc, ErrStale)

	r, err := s.Reconcile()
	require.NoError(t, err)
	assert.Equal(t, 0, r.Matched)
}

func TestRecheckErrorsReplacesRecords(t *testing.T) {
	wrong := extracted("E10000004", 3)
	wrong.Gender = "F"
	ex := &fakeExtractor{
		result: internal.ExtractionResult{
			Records:    []internal.ExtractedRecord{extracted("E10000001", 1), extracted("E10000002", 2), wrong},
			ValidPages: []int{1, 2, 3},
		},
		rechecks: map[string]internal.ExtractedRecord{"E10000004": extracted("E10000004", 3)},
	}
	s := newTestSession(ex)

	_, err := s.Process(context.Background(), false)
	require.NoError(t, err)

	require.NoError(t, s.MarkAllErrors())
	assert.Equal(t, []int{2}, s.MarkedErrors())

	updated, err := s.RecheckErrors(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, updated)

	r, err := s.Reconcile()
	require.NoError(t, err)
	assert.Empty(t, r.Errors)
	assert.Empty(t, s.MarkedErrors())

	require.Len(t, ex.stored, 1)
	assert.Len(t, ex.stored[0].Records, 3)
	assert.Equal(t, []int{1, 2, 3}, ex.stored[0].ValidPages)
}

func TestRecheckAppendsUnknownPassport(t *testing.T) {
	ex := &fakeExtractor{
		result:   internal.ExtractionResult{Records: []internal.ExtractedRecord{extracted("E10000001", 1), extracted("E10000002", 2)}},
		rechecks: map[string]internal.ExtractedRecord{"E10000004": extracted("E10000004", 5)},
	}
	s := newTestSession(ex)

	_, err := s.Process(context.Background(), false)
	require.NoError(t, err)

	s.MarkError(2)
	updated, err := s.RecheckErrors(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, updated)

	r, err := s.Reconcile()
	require.NoError(t, err)
	assert.Equal(t, 3, r.Matched)
	assert.Equal(t, []int{1, 2, 5}, ex.stored[0].ValidPages)
}

func TestClearCacheStartsFreshReview(t *testing.T) {
	ex := &fakeExtractor{}
	s := newTestSession(ex)
	s.LoadAcceptance([]internal.AcceptanceEntry{{AcceptanceNumber: "7"}, {AcceptanceNumber: "8"}})
	s.MarkAcceptance(0)
	s.MarkAcceptance(1)
	s.MarkError(0)

	notified := 0
	s.OnChange(func() { notified++ })

	require.NoError(t, s.ClearCache())
	assert.True(t, ex.cleared)
	assert.Equal(t, 1, notified)

	assert.Empty(t, s.MarkedAcceptance())
	assert.Empty(t, s.MarkedErrors())
	assert.Empty(t, s.Applicants())

	_, err := s.Analyze()
	assert.ErrorIs(t, err, ErrNoImportData)

	_, err = s.Process(context.Background(), false)
	assert.ErrorIs(t, err, ErrNoImportData)

	s.LoadImport(testApplicants())
	_, err = s.Process(context.Background(), false)
	assert.ErrorIs(t, err, ErrNoDocument)
}
