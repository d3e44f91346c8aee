package extraction

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"visareview/internal"
	"visareview/internal/logging"
	"visareview/internal/storage"
)

type fakeExtractor struct {
	mu    sync.Mutex
	calls int
	byKey map[string]internal.ExtractedRecord
}

func (f *fakeExtractor) ExtractPage(_ context.Context, text string) (internal.ExtractedRecord, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	for key, rec := range f.byKey {
		if strings.Contains(text, key) {
			return rec, nil
		}
	}
	return internal.ExtractedRecord{}, errors.New("unreadable page")
}

func (f *fakeExtractor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestService(t *testing.T, ex PageExtractor) (*Service, *storage.DB, internal.DocumentRow) {
	t.Helper()
	tmp := t.TempDir()
	db, err := storage.Open(filepath.Join(tmp, "cache.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	cfg := testConfig()
	cfg.UploadDir = filepath.Join(tmp, "uploads")
	svc := NewService(db, ex, cfg, logging.Nop())

	doc, err := svc.store.Store("passports.pdf", []byte("%PDF-fake"))
	if err != nil {
		t.Fatal(err)
	}
	doc.PageCount = 4
	if err := db.UpsertDocument(doc); err != nil {
		t.Fatal(err)
	}
	pages := []internal.PageText{
		{PageNumber: 1, Text: "P<CHN page one E11111111"},
		{PageNumber: 2, Text: "garbage"},
		{PageNumber: 3, Text: "P<CHN page three E33333333"},
		{PageNumber: 4, Text: "P<CHN page four E44444444"},
	}
	if err := db.SavePageTexts(doc.Hash, pages); err != nil {
		t.Fatal(err)
	}
	return svc, db, doc
}

func validRecord(pn string) internal.ExtractedRecord {
	return internal.ExtractedRecord{PassportNumber: pn, Surname: "LI", GivenName: "MING", Gender: "M", BirthDate: "19900105", ExpiryDate: "20300101"}
}

func TestExtractSkipsBadPagesAndCaches(t *testing.T) {
	invalid := validRecord("E44444444")
	invalid.BirthDate = "1990"
	ex := &fakeExtractor{byKey: map[string]internal.ExtractedRecord{
		"page one":   validRecord("E11111111"),
		"page three": validRecord("E33333333"),
		"page four":  invalid,
	}}
	svc, _, doc := newTestService(t, ex)

	res, err := svc.Extract(context.Background(), doc, false)
	if err != nil {
		t.Fatal(err)
	}
	if res.FromCache {
		t.Fatal("first run should not come from cache")
	}
	if len(res.Records) != 2 || res.Records[0].PageNumber != 1 || res.Records[1].PageNumber != 3 {
		t.Fatalf("records=%+v", res.Records)
	}
	if len(res.ValidPages) != 2 || res.ValidPages[1] != 3 {
		t.Fatalf("valid pages=%v", res.ValidPages)
	}
	if ex.callCount() != 4 {
		t.Fatalf("calls=%d", ex.callCount())
	}

	again, err := svc.Extract(context.Background(), doc, false)
	if err != nil {
		t.Fatal(err)
	}
	if !again.FromCache || len(again.Records) != 2 {
		t.Fatalf("expected cached result, got %+v", again)
	}
	if ex.callCount() != 4 {
		t.Fatalf("cache hit still called extractor: %d", ex.callCount())
	}

	if _, err := svc.Extract(context.Background(), doc, true); err != nil {
		t.Fatal(err)
	}
	if ex.callCount() != 8 {
		t.Fatalf("force did not re-extract: %d", ex.callCount())
	}
}

func TestCachedFallsBackToDatabase(t *testing.T) {
	ex := &fakeExtractor{byKey: map[string]internal.ExtractedRecord{"page one": validRecord("E11111111")}}
	svc, _, doc := newTestService(t, ex)

	if _, err := svc.Extract(context.Background(), doc, false); err != nil {
		t.Fatal(err)
	}
	svc.mem.flush()

	res, ok, err := svc.Cached(doc.Hash)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || !res.FromCache || len(res.Records) != 1 {
		t.Fatalf("ok=%v res=%+v", ok, res)
	}
}

func TestRecheckByPageAndBySearch(t *testing.T) {
	ex := &fakeExtractor{byKey: map[string]internal.ExtractedRecord{
		"page three": validRecord("E33333333"),
	}}
	svc, _, doc := newTestService(t, ex)

	rec, err := svc.Recheck(context.Background(), doc, 3, "")
	if err != nil {
		t.Fatal(err)
	}
	if rec.PageNumber != 3 || rec.PassportNumber != "E33333333" {
		t.Fatalf("rec=%+v", rec)
	}

	rec, err = svc.Recheck(context.Background(), doc, 0, "e-3333 3333")
	if err != nil {
		t.Fatal(err)
	}
	if rec.PageNumber != 3 {
		t.Fatalf("page=%d", rec.PageNumber)
	}

	if _, err := svc.Recheck(context.Background(), doc, 0, "X99999999"); !errors.Is(err, ErrPageNotFound) {
		t.Fatalf("err=%v", err)
	}
}

func TestClearCache(t *testing.T) {
	ex := &fakeExtractor{byKey: map[string]internal.ExtractedRecord{"page one": validRecord("E11111111")}}
	svc, db, doc := newTestService(t, ex)

	if _, err := svc.Extract(context.Background(), doc, false); err != nil {
		t.Fatal(err)
	}
	if err := svc.ClearCache(); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := svc.Cached(doc.Hash); err != nil || ok {
		t.Fatalf("cache survived clear: ok=%v err=%v", ok, err)
	}
	stored, err := db.GetDocument(doc.Hash)
	if err != nil {
		t.Fatal(err)
	}
	if stored != nil {
		t.Fatal("document row survived clear")
	}
}
