// Package store consolidates per-query email files into one deduplicated
// SQLite table and exports it as the master CSV.
package store

import (
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

const schema = `
CREATE TABLE IF NOT EXISTS emails (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    email TEXT NOT NULL,
    location TEXT,
    source TEXT,
    added_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_emails_email ON emails(email);
CREATE INDEX IF NOT EXISTS idx_emails_location ON emails(location);
`

const unknownLocation = "Unknown"

// Header of the consolidated CSV.
var Header = []string{"Sr No.", "Emails", "Location"}

type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// Open opens (creating if needed) the database at path.
func Open(path string, log zerolog.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		log.Warn().Err(err).Msg("Failed to set WAL mode")
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db, log: log}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Add inserts email unless it is already stored. It reports whether a row
// was added.
func (s *Store) Add(email, location, source string) (bool, error) {
	return insert(s.db, email, location, source)
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func insert(db execer, email, location, source string) (bool, error) {
	const stmt = `INSERT OR IGNORE INTO emails (email, location, source) VALUES (?, ?, ?);`
	res, err := db.Exec(stmt, email, location, source)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) Count() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM emails;`).Scan(&n)
	return n, err
}

// Result summarises one ingest run.
type Result struct {
	Files    int
	Added    int
	Rejected int
}

// Ingest loads every .csv file in dir, keeps addresses that pass the domain
// filter and deletes each file once its rows are committed.
func (s *Store) Ingest(dir, domain string) (Result, error) {
	var res Result
	entries, err := os.ReadDir(dir)
	if err != nil {
		return res, fmt.Errorf("read output dir: %w", err)
	}
	valid := Filter(domain)

	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		added, rejected, err := s.ingestFile(path, LocationFromFilename(e.Name()), valid)
		if err != nil {
			return res, err
		}
		if err := os.Remove(path); err != nil {
			return res, fmt.Errorf("remove ingested file: %w", err)
		}
		res.Files++
		res.Added += added
		res.Rejected += rejected
		s.log.Info().
			Str("file", e.Name()).
			Int("added", added).
			Int("rejected", rejected).
			Msg("Ingested")
	}
	return res, nil
}

func (s *Store) ingestFile(path, location string, valid func(string) bool) (int, int, error) {
	rows, err := readRows(path)
	if err != nil {
		return 0, 0, err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, 0, err
	}
	defer tx.Rollback()

	added, rejected := 0, 0
	source := filepath.Base(path)
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		email := strings.ToLower(strings.TrimSpace(row[1]))
		if !valid(email) {
			rejected++
			continue
		}
		ok, err := insert(tx, email, location, source)
		if err != nil {
			return 0, 0, fmt.Errorf("insert %s: %w", email, err)
		}
		if ok {
			added++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, 0, err
	}
	return added, rejected, nil
}

// Seed loads a previously exported consolidated CSV so serial numbers stay
// continuous when the database is recreated. A missing file is not an error.
func (s *Store) Seed(path string) (int, error) {
	rows, err := readRows(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	added := 0
	for _, row := range rows {
		if len(row) < 2 || strings.TrimSpace(row[1]) == "" {
			continue
		}
		location := unknownLocation
		if len(row) > 2 && row[2] != "" {
			location = row[2]
		}
		ok, err := s.Add(strings.ToLower(strings.TrimSpace(row[1])), location, filepath.Base(path))
		if err != nil {
			return added, err
		}
		if ok {
			added++
		}
	}
	return added, nil
}

// readRows returns the data rows of a CSV file, skipping its header.
func readRows(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	var rows [][]string
	for first := true; ; first = false {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		if first {
			continue
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

// Export writes every stored address to path in insertion order with
// serial numbers starting at 1. It returns the number of rows written.
func (s *Store) Export(path string) (int, error) {
	rows, err := s.db.Query(`SELECT email, COALESCE(location, '') FROM emails ORDER BY id;`)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("create export dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create export: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(Header); err != nil {
		return 0, err
	}
	n := 0
	for rows.Next() {
		var email, location string
		if err := rows.Scan(&email, &location); err != nil {
			return n, err
		}
		n++
		if err := w.Write([]string{strconv.Itoa(n), email, location}); err != nil {
			return n, err
		}
	}
	if err := rows.Err(); err != nil {
		return n, err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return n, err
	}
	return n, f.Close()
}

// Filter returns the address check for domain. Addresses containing "%"
// never pass; an empty domain accepts any well-formed address.
func Filter(domain string) func(string) bool {
	domain = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(domain)), "@")
	host := `[a-z0-9.\-]+\.[a-z]{2,}`
	if domain != "" {
		host = regexp.QuoteMeta(domain)
	}
	re := regexp.MustCompile(`^[a-z0-9._+\-]+@` + host + `$`)
	return func(email string) bool {
		return !strings.Contains(email, "%") && re.MatchString(email)
	}
}

// LocationFromFilename recovers the city from an output file named after a
// site-scoped query, e.g. site-instagram-com-new-york-gmail-com_1a2b3c4d.csv
// gives "New York".
func LocationFromFilename(name string) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	if i := strings.LastIndex(base, "_"); i >= 0 {
		base = base[:i]
	}
	parts := strings.Split(strings.Trim(base, "-"), "-")
	if len(parts) < 6 || parts[0] != "site" {
		return unknownLocation
	}
	var words []string
	for _, w := range parts[3 : len(parts)-2] {
		if w == "" {
			continue
		}
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words = append(words, string(r))
	}
	return strings.Join(words, " ")
}
