package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"visareview/internal"
	"visareview/internal/config"
	"visareview/internal/extraction"
	"visareview/internal/logging"
	"visareview/internal/pipeline"
	"visareview/internal/report"
	"visareview/internal/session"
	"visareview/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	log, err := logging.New(cfg.LogLevel)
	must(err)
	defer func() { _ = log.Sync() }()

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc := extraction.NewService(db, extraction.NewClient(cfg), cfg, log)
	opts := pipeline.ImportOptions{VisaTypeColumn: cfg.VisaTypeColumn}

	cmd := os.Args[1]
	switch cmd {
	case "check":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", "", "applicant import (.csv|.xlsx)")
		acceptance := fs.String("acceptance", "", "acceptance list (.html|.csv|.xlsx)")
		format := fs.String("format", "text", "text|json")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*input) == "" {
			must(fmt.Errorf("--input is required"))
		}

		s := session.New(svc, log)
		must(loadImport(s, *input, opts))
		loadAcceptance(s, log, *acceptance)

		a, err := s.Analyze()
		must(err)
		must(printReport(cfg, *format, analysisReport(s.Applicants(), a)))
		progress, err := s.Progress()
		must(err)
		if *format == "text" {
			fmt.Printf("rows to review: %d\n", progress.Total)
		}
	case "extract":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		pdfPath := fs.String("pdf", "", "scanned passports (.pdf)")
		hash := fs.String("hash", "", "hash of a previously registered scan")
		force := fs.Bool("force", false, "ignore cached results")
		format := fs.String("format", "text", "text|json")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*pdfPath) == "" && strings.TrimSpace(*hash) == "" {
			must(fmt.Errorf("--pdf or --hash is required"))
		}

		var doc internal.DocumentRow
		if *hash != "" {
			doc, err = db.MustDocument(strings.TrimSpace(*hash))
		} else {
			doc, err = registerFile(svc, *pdfPath)
		}
		must(err)
		res, err := svc.Extract(ctx, doc, *force)
		must(err)
		if *format == "json" {
			must(report.WriteJSON(os.Stdout, res))
			return
		}
		fmt.Printf("extracted %d records from %d pages (cache=%v) hash=%s\n", len(res.Records), doc.PageCount, res.FromCache, doc.Hash)
		for _, r := range res.Records {
			fmt.Printf("  page %d %s %s %s %s %s\n", r.PageNumber, r.PassportNumber, r.FullName(), r.Gender, r.BirthDate, r.ExpiryDate)
		}
	case "reconcile":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", "", "applicant import (.csv|.xlsx)")
		pdfPath := fs.String("pdf", "", "scanned passports (.pdf)")
		acceptance := fs.String("acceptance", "", "acceptance list (.html|.csv|.xlsx)")
		output := fs.String("output", "", "review report (.xlsx)")
		format := fs.String("format", "text", "text|json")
		force := fs.Bool("force", false, "ignore cached results")
		recheck := fs.Bool("recheck", false, "re-extract the pages behind every error once")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*input) == "" || strings.TrimSpace(*pdfPath) == "" {
			must(fmt.Errorf("--input and --pdf are required"))
		}

		s := session.New(svc, log)
		must(loadImport(s, *input, opts))
		loadAcceptance(s, log, *acceptance)
		doc, err := registerFile(svc, *pdfPath)
		must(err)
		s.SetDocument(doc)

		r, err := review(ctx, s, *force, *recheck)
		must(err)
		must(printReport(cfg, *format, r))
		must(exportReport(r, *output))
	case "run":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		eml := fs.String("eml", "", "submission mail (.eml)")
		output := fs.String("output", "", "review report (.xlsx)")
		format := fs.String("format", "text", "text|json")
		force := fs.Bool("force", false, "ignore cached results")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*eml) == "" {
			must(fmt.Errorf("--eml is required"))
		}

		raw, err := os.ReadFile(*eml)
		must(err)
		bundle, err := pipeline.ReadBundle(raw)
		must(err)
		log.Infow("bundle read", "subject", bundle.Subject, "attachments", bundle.Attachments)

		applicants, err := pipeline.ParseApplicants(bundle.Applicants.Name, bundle.Applicants.Content, opts)
		must(err)
		s := session.New(svc, log)
		s.LoadImport(applicants)

		var entries []internal.AcceptanceEntry
		if bundle.Acceptance != nil {
			entries, err = pipeline.ParseAcceptanceList(bundle.Acceptance.Name, bundle.Acceptance.Content)
			if err != nil {
				log.Warnw("acceptance list unreadable", "name", bundle.Acceptance.Name, "error", err)
				entries = nil
			}
		}
		s.LoadAcceptance(entries)

		var r pipeline.Report
		if bundle.Passports != nil {
			doc, err := svc.Register(bundle.Passports.Name, bundle.Passports.Content)
			must(err)
			s.SetDocument(doc)
			r, err = review(ctx, s, *force, false)
			must(err)
		} else {
			log.Warnw("bundle has no passport scan, skipping extraction")
			r, err = s.Report()
			must(err)
		}
		must(printReport(cfg, *format, r))
		must(exportReport(r, *output))
	case "cache:clear":
		must(svc.ClearCache())
		fmt.Println("cache cleared")
	case "cache:status":
		for _, key := range []string{"lastExtractionAt", "lastClearedAt"} {
			v, err := db.GetMetadata(key)
			must(err)
			if v == nil {
				fmt.Printf("%s: never\n", key)
				continue
			}
			fmt.Printf("%s: %s\n", key, *v)
		}
	default:
		usage()
		os.Exit(1)
	}
}

func loadImport(s *session.Session, path string, opts pipeline.ImportOptions) error {
	applicants, err := pipeline.ReadApplicants(path, opts)
	if err != nil {
		return fmt.Errorf("read import: %w", err)
	}
	if len(applicants) == 0 {
		return session.ErrNoImportData
	}
	s.LoadImport(applicants)
	return nil
}

// loadAcceptance never fails: an unreadable list falls back to the import.
func loadAcceptance(s *session.Session, log *zap.SugaredLogger, path string) {
	if strings.TrimSpace(path) == "" {
		s.LoadAcceptance(nil)
		return
	}
	entries, err := pipeline.ReadAcceptanceList(path)
	if err != nil {
		log.Warnw("acceptance list unreadable", "path", path, "error", err)
		entries = nil
	}
	s.LoadAcceptance(entries)
}

func registerFile(svc *extraction.Service, path string) (internal.DocumentRow, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return internal.DocumentRow{}, err
	}
	return svc.Register(filepath.Base(path), raw)
}

func review(ctx context.Context, s *session.Session, force, recheck bool) (pipeline.Report, error) {
	if _, err := s.Process(ctx, force); err != nil {
		return pipeline.Report{}, err
	}
	if recheck {
		if err := s.MarkAllErrors(); err != nil {
			return pipeline.Report{}, err
		}
		if _, err := s.RecheckErrors(ctx); err != nil {
			return pipeline.Report{}, err
		}
	}
	return s.Report()
}

func analysisReport(applicants []internal.ApplicantRecord, a session.Analysis) pipeline.Report {
	return pipeline.Report{
		Applicants:   applicants,
		Sequence:     a.Sequence,
		Highlights:   a.Highlights,
		Compound:     a.Compound,
		Visa:         a.Visa,
		UsedFallback: a.UsedFallback,
	}
}

func printReport(cfg config.Config, format string, r pipeline.Report) error {
	switch format {
	case "json":
		return report.WriteJSON(os.Stdout, r)
	case "text":
		report.ConfigureColor(cfg.NoColor, os.Stdout)
		fmt.Print(report.NewFormatter().Format(r))
		return nil
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func exportReport(r pipeline.Report, output string) error {
	if strings.TrimSpace(output) == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return err
	}
	if err := pipeline.ExportReportToXLSX(r, output); err != nil {
		return err
	}
	fmt.Printf("report written to %s\n", output)
	return nil
}

func usage() {
	fmt.Println("usage: visareview <command>")
	fmt.Println("commands:")
	fmt.Println("  check --input=applicants.xlsx [--acceptance=list.html] [--format=text|json]")
	fmt.Println("  extract --pdf=passports.pdf|--hash=... [--force] [--format=text|json]")
	fmt.Println("  reconcile --input=applicants.xlsx --pdf=passports.pdf [--acceptance=...] [--output=report.xlsx] [--recheck] [--force]")
	fmt.Println("  run --eml=submission.eml [--output=report.xlsx] [--force]")
	fmt.Println("  cache:clear")
	fmt.Println("  cache:status")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
