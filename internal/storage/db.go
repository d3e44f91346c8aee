package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"visareview/internal"
)

// DB is the extraction cache. Review state never lands here; it only keeps
// what the document-understanding service already returned so that a
// document is not sent twice.
type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS documents (
  hash TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  path TEXT NOT NULL,
  pageCount INTEGER NOT NULL DEFAULT 0,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS page_texts (
  documentHash TEXT NOT NULL,
  pageNumber INTEGER NOT NULL,
  text TEXT NOT NULL,
  PRIMARY KEY(documentHash, pageNumber),
  FOREIGN KEY(documentHash) REFERENCES documents(hash)
);

CREATE TABLE IF NOT EXISTS extraction_results (
  documentHash TEXT PRIMARY KEY,
  recordsJson TEXT NOT NULL,
  validPagesJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(documentHash) REFERENCES documents(hash)
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

func (d *DB) UpsertDocument(doc internal.DocumentRow) error {
	_, err := d.conn.Exec(`
INSERT INTO documents (hash, name, path, pageCount)
VALUES (?, ?, ?, ?)
ON CONFLICT(hash) DO UPDATE SET
  name=excluded.name,
  path=excluded.path,
  pageCount=excluded.pageCount,
  updatedAt=CURRENT_TIMESTAMP
`, doc.Hash, doc.Name, doc.Path, doc.PageCount)
	return err
}

func (d *DB) GetDocument(hash string) (*internal.DocumentRow, error) {
	var row internal.DocumentRow
	err := d.conn.QueryRow(`SELECT hash, name, path, pageCount FROM documents WHERE hash = ?`, hash).
		Scan(&row.Hash, &row.Name, &row.Path, &row.PageCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) MustDocument(hash string) (internal.DocumentRow, error) {
	row, err := d.GetDocument(hash)
	if err != nil {
		return internal.DocumentRow{}, err
	}
	if row == nil {
		return internal.DocumentRow{}, fmt.Errorf("document not found: %s", hash)
	}
	return *row, nil
}

func (d *DB) SavePageTexts(hash string, pages []internal.PageText) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
INSERT INTO page_texts (documentHash, pageNumber, text) VALUES (?, ?, ?)
ON CONFLICT(documentHash, pageNumber) DO UPDATE SET text = excluded.text
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range pages {
		if _, err := stmt.Exec(hash, p.PageNumber, p.Text); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (d *DB) ListPageTexts(hash string) ([]internal.PageText, error) {
	rows, err := d.conn.Query(`SELECT pageNumber, text FROM page_texts WHERE documentHash = ? ORDER BY pageNumber ASC`, hash)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.PageText
	for rows.Next() {
		var p internal.PageText
		if err := rows.Scan(&p.PageNumber, &p.Text); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (d *DB) SaveExtraction(hash string, records []internal.ExtractedRecord, validPages []int) error {
	if records == nil {
		records = []internal.ExtractedRecord{}
	}
	if validPages == nil {
		validPages = []int{}
	}
	recordsJSON, err := json.Marshal(records)
	if err != nil {
		return err
	}
	pagesJSON, err := json.Marshal(validPages)
	if err != nil {
		return err
	}
	_, err = d.conn.Exec(`
INSERT INTO extraction_results (documentHash, recordsJson, validPagesJson)
VALUES (?, ?, ?)
ON CONFLICT(documentHash) DO UPDATE SET
  recordsJson=excluded.recordsJson,
  validPagesJson=excluded.validPagesJson,
  createdAt=CURRENT_TIMESTAMP
`, hash, string(recordsJSON), string(pagesJSON))
	return err
}

func (d *DB) GetExtraction(hash string) (*internal.CachedExtraction, error) {
	var recordsJSON, pagesJSON string
	out := internal.CachedExtraction{DocumentHash: hash}
	err := d.conn.QueryRow(`SELECT recordsJson, validPagesJson, createdAt FROM extraction_results WHERE documentHash = ?`, hash).
		Scan(&recordsJSON, &pagesJSON, &out.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(recordsJSON), &out.Records); err != nil {
		return nil, fmt.Errorf("decode cached records: %w", err)
	}
	if err := json.Unmarshal([]byte(pagesJSON), &out.ValidPages); err != nil {
		return nil, fmt.Errorf("decode cached pages: %w", err)
	}
	return &out, nil
}

// ClearCache drops every cached document, page text and extraction result
// and returns the stored document paths so the caller can remove the files.
func (d *DB) ClearCache() ([]string, error) {
	tx, err := d.conn.Begin()
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.Query(`SELECT path FROM documents`)
	if err != nil {
		return nil, err
	}
	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			_ = rows.Close()
			return nil, err
		}
		paths = append(paths, p)
	}
	_ = rows.Close()

	for _, stmt := range []string{
		`DELETE FROM extraction_results`,
		`DELETE FROM page_texts`,
		`DELETE FROM documents`,
	} {
		if _, err := tx.Exec(stmt); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return paths, nil
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}
