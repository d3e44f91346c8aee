package extraction

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"visareview/internal"
	"visareview/internal/config"
	"visareview/internal/storage"
	"visareview/internal/util"
)

var ErrPageNotFound = errors.New("no page mentions the passport number")

// PageExtractor turns the text of one passport page into a record.
type PageExtractor interface {
	ExtractPage(ctx context.Context, text string) (internal.ExtractedRecord, error)
}

// Service runs passport scans through the page extractor with a bounded
// number of concurrent requests and caches the results, first in memory and
// then in sqlite.
type Service struct {
	db        *storage.DB
	extractor PageExtractor
	store     *DocumentStore
	mem       *memoryCache
	log       *zap.SugaredLogger
	workers   int
}

func NewService(db *storage.DB, extractor PageExtractor, cfg config.Config, log *zap.SugaredLogger) *Service {
	workers := cfg.ExtractWorkers
	if workers <= 0 {
		workers = 1
	}
	return &Service{
		db:        db,
		extractor: extractor,
		store:     NewDocumentStore(cfg.UploadDir),
		mem:       newMemoryCache(time.Duration(cfg.CacheTTLSec) * time.Second),
		log:       log,
		workers:   workers,
	}
}

// Register stores an uploaded scan and its page texts and returns its handle.
func (s *Service) Register(name string, content []byte) (internal.DocumentRow, error) {
	doc, err := s.store.Store(name, content)
	if err != nil {
		return internal.DocumentRow{}, fmt.Errorf("store document: %w", err)
	}

	pages, total, err := ReadPages(content)
	if err != nil {
		return internal.DocumentRow{}, err
	}
	doc.PageCount = total

	if err := s.db.UpsertDocument(doc); err != nil {
		return internal.DocumentRow{}, err
	}
	if err := s.db.SavePageTexts(doc.Hash, pages); err != nil {
		return internal.DocumentRow{}, err
	}
	s.log.Infow("document registered", "hash", doc.Hash, "name", name, "pages", total, "textPages", len(pages))
	return doc, nil
}

// Extract returns the records of every readable page of doc. A cached result
// is returned unless force is set.
func (s *Service) Extract(ctx context.Context, doc internal.DocumentRow, force bool) (internal.ExtractionResult, error) {
	if !force {
		if res, ok, err := s.Cached(doc.Hash); err != nil {
			return internal.ExtractionResult{}, err
		} else if ok {
			s.log.Infow("extraction cache hit", "hash", doc.Hash, "records", len(res.Records))
			return res, nil
		}
	}

	pages, err := s.db.ListPageTexts(doc.Hash)
	if err != nil {
		return internal.ExtractionResult{}, err
	}

	start := time.Now()
	records, err := s.extractPages(ctx, pages)
	if err != nil {
		return internal.ExtractionResult{}, err
	}

	res := internal.ExtractionResult{Records: records, ValidPages: make([]int, 0, len(records))}
	for _, r := range records {
		res.ValidPages = append(res.ValidPages, r.PageNumber)
	}

	if err := s.db.SaveExtraction(doc.Hash, res.Records, res.ValidPages); err != nil {
		return internal.ExtractionResult{}, err
	}
	s.mem.set(doc.Hash, copyResult(res))
	_ = s.db.SetMetadata("lastExtractionAt", time.Now().UTC().Format(time.RFC3339))

	s.log.Infow("extraction done", "hash", doc.Hash, "pages", len(pages), "records", len(records), "ms", time.Since(start).Milliseconds())
	return res, nil
}

// Cached looks the document up in both cache tiers.
func (s *Service) Cached(hash string) (internal.ExtractionResult, bool, error) {
	if res, ok := s.mem.get(hash); ok {
		res = copyResult(res)
		res.FromCache = true
		return res, true, nil
	}
	cached, err := s.db.GetExtraction(hash)
	if err != nil {
		return internal.ExtractionResult{}, false, err
	}
	if cached == nil {
		return internal.ExtractionResult{}, false, nil
	}
	res := internal.ExtractionResult{Records: cached.Records, ValidPages: cached.ValidPages}
	s.mem.set(hash, copyResult(res))
	res.FromCache = true
	return res, true, nil
}

// Recheck extracts a single page again. Without a known page the page texts
// are searched for the passport number.
func (s *Service) Recheck(ctx context.Context, doc internal.DocumentRow, pageNumber int, passportNumber string) (*internal.ExtractedRecord, error) {
	pages, err := s.db.ListPageTexts(doc.Hash)
	if err != nil {
		return nil, err
	}

	page := findPage(pages, pageNumber, passportNumber)
	if page == nil {
		return nil, ErrPageNotFound
	}

	rec, err := s.extractor.ExtractPage(ctx, page.Text)
	if err != nil {
		return nil, fmt.Errorf("page %d: %w", page.PageNumber, err)
	}
	rec.PageNumber = page.PageNumber
	if err := ValidateRecord(rec); err != nil {
		return nil, fmt.Errorf("page %d: %w", page.PageNumber, err)
	}
	s.mem.delete(doc.Hash)
	return &rec, nil
}

// Store persists a result produced outside Extract, such as after a recheck.
func (s *Service) Store(hash string, res internal.ExtractionResult) error {
	if err := s.db.SaveExtraction(hash, res.Records, res.ValidPages); err != nil {
		return err
	}
	s.mem.set(hash, copyResult(res))
	return nil
}

// ClearCache empties both cache tiers and removes the stored documents.
func (s *Service) ClearCache() error {
	s.mem.flush()
	paths, err := s.db.ClearCache()
	if err != nil {
		return err
	}
	if err := s.store.Remove(paths); err != nil {
		return err
	}
	_ = s.db.SetMetadata("lastClearedAt", time.Now().UTC().Format(time.RFC3339))
	s.log.Infow("cache cleared", "documents", len(paths))
	return nil
}

type pageResult struct {
	record internal.ExtractedRecord
	ok     bool
}

func (s *Service) extractPages(ctx context.Context, pages []internal.PageText) ([]internal.ExtractedRecord, error) {
	results := make([]pageResult, len(pages))
	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup

	for i, page := range pages {
		select {
		case <-ctx.Done():
			wg.Wait()
			return nil, ctx.Err()
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(i int, page internal.PageText) {
			defer wg.Done()
			defer func() { <-sem }()

			rec, err := s.extractor.ExtractPage(ctx, page.Text)
			if err != nil {
				s.log.Warnw("page extraction failed", "page", page.PageNumber, "error", err)
				return
			}
			rec.PageNumber = page.PageNumber
			if err := ValidateRecord(rec); err != nil {
				s.log.Warnw("page skipped", "page", page.PageNumber, "reason", err)
				return
			}
			results[i] = pageResult{record: rec, ok: true}
		}(i, page)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := []internal.ExtractedRecord{}
	for _, r := range results {
		if r.ok {
			out = append(out, r.record)
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].PageNumber < out[b].PageNumber })
	return out, nil
}

func findPage(pages []internal.PageText, pageNumber int, passportNumber string) *internal.PageText {
	if pageNumber > 0 {
		for i := range pages {
			if pages[i].PageNumber == pageNumber {
				return &pages[i]
			}
		}
	}
	needle := util.NormalizeIdentifier(passportNumber)
	if needle == "" {
		return nil
	}
	for i := range pages {
		if strings.Contains(util.NormalizeIdentifier(pages[i].Text), needle) {
			return &pages[i]
		}
	}
	return nil
}

func copyResult(res internal.ExtractionResult) internal.ExtractionResult {
	out := internal.ExtractionResult{FromCache: res.FromCache}
	out.Records = append([]internal.ExtractedRecord(nil), res.Records...)
	out.ValidPages = append([]int(nil), res.ValidPages...)
	return out
}
