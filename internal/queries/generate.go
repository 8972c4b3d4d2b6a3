package queries

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/hiteshvirani/email.scrapping/internal/config"
)

const filePrefix = "search.queries"

// Generator enumerates site × city × provider queries into numbered task
// list files under Dir: search.queries.1.csv, search.queries.2.csv, ...
type Generator struct {
	Dir       string
	Sites     []string
	Cities    []string
	Providers []string
	PerFile   int
	Log       zerolog.Logger
}

// GeneratorFrom builds a Generator from the query options in cfg.
func GeneratorFrom(cfg config.Config, log zerolog.Logger) Generator {
	return Generator{
		Dir:       cfg.InputDir,
		Sites:     cfg.QuerySites,
		Cities:    cfg.QueryCities,
		Providers: cfg.QueryProviders,
		PerFile:   cfg.QueriesPerFile,
		Log:       log,
	}
}

// Query formats one search query: site "City" "@provider".
func Query(site, city, provider string) string {
	return fmt.Sprintf("%s %q %q", site, city, provider)
}

// FilePath is the path of the n-th task list file in dir.
func FilePath(dir string, n int) string {
	return filepath.Join(dir, fmt.Sprintf("%s.%d.csv", filePrefix, n))
}

// Queries returns every combination not already in existing, in site, city,
// provider order with duplicates removed.
func (g Generator) Queries(existing map[string]bool) []string {
	seen := make(map[string]bool)
	var out []string
	for _, site := range g.Sites {
		for _, city := range g.Cities {
			city = strings.TrimSpace(city)
			if city == "" {
				continue
			}
			for _, provider := range g.Providers {
				q := Query(site, city, provider)
				if existing[q] || seen[q] {
					continue
				}
				seen[q] = true
				out = append(out, q)
			}
		}
	}
	return out
}

// existing scans the numbered files in Dir and returns the queries already
// present, the highest index used and the first unused file number.
func (g Generator) existing() (map[string]bool, int, int, error) {
	queries := make(map[string]bool)
	lastIndex := 0
	n := 1
	for ; ; n++ {
		path := FilePath(g.Dir, n)
		tasks, err := ReadTasks(path)
		if errors.Is(err, os.ErrNotExist) {
			break
		}
		if err != nil {
			return nil, 0, 0, err
		}
		for _, t := range tasks {
			queries[t.Query] = true
			lastIndex = max(lastIndex, t.Index)
		}
	}
	return queries, lastIndex, n, nil
}

// Generate writes every new query to fresh numbered files of at most PerFile
// rows, continuing the row index of the existing files. It returns the
// number of queries written and the files created.
func (g Generator) Generate() (int, []string, error) {
	if g.PerFile <= 0 {
		return 0, nil, errors.New("queries per file must be positive")
	}
	if err := os.MkdirAll(g.Dir, 0o755); err != nil {
		return 0, nil, fmt.Errorf("create input dir: %w", err)
	}

	existing, lastIndex, fileNum, err := g.existing()
	if err != nil {
		return 0, nil, err
	}
	g.Log.Info().Int("existing", len(existing)).Msg("Loaded existing queries")

	fresh := g.Queries(existing)
	if len(fresh) == 0 {
		g.Log.Info().Msg("No new queries to generate")
		return 0, nil, nil
	}

	var files []string
	for start := 0; start < len(fresh); start += g.PerFile {
		chunk := fresh[start:min(start+g.PerFile, len(fresh))]
		tasks := make([]Task, len(chunk))
		for i, q := range chunk {
			lastIndex++
			tasks[i] = Task{Index: lastIndex, Query: q}
		}
		path := FilePath(g.Dir, fileNum)
		if err := appendTasks(path, tasks); err != nil {
			return start, files, err
		}
		g.Log.Info().Int("queries", len(chunk)).Str("file", path).Msg("Wrote queries")
		files = append(files, path)
		fileNum++
	}
	return len(fresh), files, nil
}
