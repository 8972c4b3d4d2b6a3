// Package crawl runs a task list through a session controller and writes
// one email file per productive query.
package crawl

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hiteshvirani/email.scrapping/internal/queries"
	"github.com/hiteshvirani/email.scrapping/internal/session"
)

const maxSlugLen = 50

var nonWord = regexp.MustCompile(`[\W_]+`)

// Runner crawls one task. *session.Controller implements it.
type Runner interface {
	Run(ctx context.Context, task session.Task) session.Outcome
	Stats() session.Stats
}

// Batch processes one task-list file.
type Batch struct {
	Runner    Runner
	OutputDir string
	MaxPages  int
	Log       zerolog.Logger
	// Suffix names output files; it defaults to the first 8 characters of a
	// random UUID.
	Suffix func() string
}

// Summary describes a finished batch.
type Summary struct {
	RunID      string
	Tasks      int
	Skipped    int
	Saved      int
	Failed     int
	Challenges int
	Emails     int
	Files      []string
	Session    session.Stats
}

// Slug turns a query into a file-name stem.
func Slug(query string) string {
	s := nonWord.ReplaceAllString(strings.ToLower(query), "-")
	if len(s) > maxSlugLen {
		s = s[:maxSlugLen]
	}
	return s
}

// Run crawls every pending row of the task list at path. Rows that produced
// emails are removed from the file afterwards, including when ctx is
// cancelled part way.
func (b *Batch) Run(ctx context.Context, path string) (Summary, error) {
	sum := Summary{RunID: uuid.NewString()}
	log := b.Log.With().Str("run_id", sum.RunID).Logger()

	tasks, err := queries.ReadTasks(path)
	if err != nil {
		return sum, err
	}
	if len(tasks) == 0 {
		log.Warn().Str("csv", path).Msg("No queries to process")
		return sum, nil
	}
	if err := os.MkdirAll(b.OutputDir, 0o755); err != nil {
		return sum, fmt.Errorf("create output dir: %w", err)
	}

	processed := make(map[int]bool)
	for i, t := range tasks {
		if t.Done {
			sum.Skipped++
			continue
		}
		if ctx.Err() != nil {
			log.Warn().Msg("Received shutdown signal, stopping.")
			break
		}

		sum.Tasks++
		log.Info().Int("row", t.Index).Int("of", len(tasks)).Str("query", t.Query).Msg("Processing query")
		out := b.Runner.Run(ctx, session.Task{Query: t.Query, MaxPages: b.MaxPages})
		if out.Challenge {
			sum.Challenges++
		}
		if out.Err != nil {
			sum.Failed++
		}
		if len(out.Emails) == 0 {
			log.Warn().Str("query", t.Query).Msg("No emails found for query")
			continue
		}

		file, err := b.save(t.Query, out.Emails)
		if err != nil {
			return sum, err
		}
		sum.Saved++
		sum.Emails += len(out.Emails)
		sum.Files = append(sum.Files, file)
		processed[i] = true
		log.Info().Int("emails", len(out.Emails)).Str("file", filepath.Base(file)).Msg("Saved emails")
	}

	if len(processed) > 0 {
		remaining := make([]queries.Task, 0, len(tasks)-len(processed))
		for i, t := range tasks {
			if !processed[i] {
				remaining = append(remaining, t)
			}
		}
		if err := queries.WriteTasks(path, remaining); err != nil {
			return sum, err
		}
		log.Info().Int("removed", len(processed)).Msg("Removed processed queries from source CSV")
	}

	sum.Session = b.Runner.Stats()
	log.Info().
		Int("pages", sum.Session.PagesProcessed).
		Int("emails", sum.Session.EmailsFound).
		Int("challenges", sum.Session.Challenges).
		Int("failed", sum.Failed).
		Msg("Scraping statistics")
	return sum, nil
}

func (b *Batch) suffix() string {
	if b.Suffix != nil {
		return b.Suffix()
	}
	return uuid.NewString()[:8]
}

// save writes emails to <slug>_<suffix>.csv with a Sr No. column.
func (b *Batch) save(query string, emails []string) (string, error) {
	path := filepath.Join(b.OutputDir, fmt.Sprintf("%s_%s.csv", Slug(query), b.suffix()))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create output file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"Sr No.", "Emails"}); err != nil {
		return "", err
	}
	for i, e := range emails {
		if err := w.Write([]string{strconv.Itoa(i + 1), e}); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("write output file: %w", err)
	}
	return path, f.Close()
}
