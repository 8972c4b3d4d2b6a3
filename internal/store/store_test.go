package store

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "db", "emails.sqlite"), zerolog.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func writeCSV(t *testing.T, path string, rows [][]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	return rows
}

func TestIngestAndExport(t *testing.T) {
	s := openTestStore(t)
	dir := t.TempDir()

	writeCSV(t, filepath.Join(dir, "site-instagram-com-new-york-gmail-com_1a2b3c4d.csv"), [][]string{
		{"Sr No.", "Emails"},
		{"1", "alice@gmail.com"},
		{"2", "bob@yahoo.com"},
		{"3", "100%sure@gmail.com"},
		{"4", "Carol@Gmail.com"},
	})
	writeCSV(t, filepath.Join(dir, "site-x-com-boston-gmail-com_9f8e7d6c.csv"), [][]string{
		{"Sr No.", "Emails"},
		{"1", "alice@gmail.com"},
		{"2", "dave@gmail.com"},
	})
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("keep me"), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := s.Ingest(dir, "gmail.com")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if diff := cmp.Diff(Result{Files: 2, Added: 3, Rejected: 2}, res); diff != "" {
		t.Errorf("Ingest() mismatch (-want +got):\n%s", diff)
	}

	left, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(left) != 1 || left[0].Name() != "notes.txt" {
		t.Errorf("files left after ingest: %v", left)
	}

	out := filepath.Join(t.TempDir(), "emails", "extracted_emails.csv")
	n, err := s.Export(out)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if n != 3 {
		t.Errorf("exported %d rows, want 3", n)
	}
	want := [][]string{
		Header,
		{"1", "alice@gmail.com", "New York"},
		{"2", "carol@gmail.com", "New York"},
		{"3", "dave@gmail.com", "Boston"},
	}
	if diff := cmp.Diff(want, readCSV(t, out)); diff != "" {
		t.Errorf("export mismatch (-want +got):\n%s", diff)
	}
}

func TestSeedKeepsSerialsContinuous(t *testing.T) {
	master := filepath.Join(t.TempDir(), "extracted_emails.csv")
	writeCSV(t, master, [][]string{
		Header,
		{"1", "old@gmail.com", "Austin"},
		{"5", "old@gmail.com", "Austin"},
		{"9", "older@gmail.com", "Reno"},
	})

	s := openTestStore(t)
	added, err := s.Seed(master)
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if added != 2 {
		t.Errorf("seeded %d rows, want 2", added)
	}
	if ok, err := s.Add("new@gmail.com", "Denver", "test"); err != nil || !ok {
		t.Fatalf("Add: %v %v", ok, err)
	}

	if _, err := s.Export(master); err != nil {
		t.Fatal(err)
	}
	want := [][]string{
		Header,
		{"1", "old@gmail.com", "Austin"},
		{"2", "older@gmail.com", "Reno"},
		{"3", "new@gmail.com", "Denver"},
	}
	if diff := cmp.Diff(want, readCSV(t, master)); diff != "" {
		t.Errorf("export mismatch (-want +got):\n%s", diff)
	}

	if n, err := s.Seed(filepath.Join(t.TempDir(), "missing.csv")); err != nil || n != 0 {
		t.Errorf("Seed(missing) = %d, %v", n, err)
	}
}

func TestAddIgnoresDuplicates(t *testing.T) {
	s := openTestStore(t)
	if ok, _ := s.Add("a@gmail.com", "X", "t"); !ok {
		t.Fatal("first insert ignored")
	}
	if ok, _ := s.Add("a@gmail.com", "Y", "t"); ok {
		t.Error("duplicate inserted")
	}
	if n, err := s.Count(); err != nil || n != 1 {
		t.Errorf("Count() = %d, %v", n, err)
	}
}

func TestFilter(t *testing.T) {
	testCases := []struct {
		domain string
		email  string
		want   bool
	}{
		{"gmail.com", "a.b+c@gmail.com", true},
		{"@gmail.com", "a@gmail.com", true},
		{"gmail.com", "a@gmail.co", false},
		{"gmail.com", "a@notgmail.com", false},
		{"gmail.com", "a%b@gmail.com", false},
		{"", "a@yahoo.com", true},
		{"", "not-an-email", false},
	}

	for _, testCase := range testCases {
		if got := Filter(testCase.domain)(testCase.email); got != testCase.want {
			t.Errorf("Filter(%q)(%q) = %v, want %v", testCase.domain, testCase.email, got, testCase.want)
		}
	}
}

func TestLocationFromFilename(t *testing.T) {
	testCases := []struct {
		name string
		want string
	}{
		{"site-instagram-com-new-york-gmail-com_1a2b3c4d.csv", "New York"},
		{"site-linkedin-com-st-louis-gmail-com_ffffffff.csv", "St Louis"},
		{"site-x-com-boston-gmail-com.csv", "Boston"},
		{"plumber-boston_1a2b3c4d.csv", "Unknown"},
		{"results.csv", "Unknown"},
	}
	for _, testCase := range testCases {
		if got := LocationFromFilename(testCase.name); got != testCase.want {
			t.Errorf("LocationFromFilename(%q) = %q, want %q", testCase.name, got, testCase.want)
		}
	}
}
