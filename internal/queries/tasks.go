// Package queries reads and writes task-list CSV files and generates new
// search queries into them.
package queries

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Task is one row of a task list: [index, query, done?].
type Task struct {
	Index int
	Query string
	Done  bool
}

// IsDone reports whether a done column value marks the row as finished.
func IsDone(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes", "y", "done":
		return true
	}
	return false
}

// ReadTasks parses a task list. Rows without a query are skipped; a missing
// or non-numeric index takes the row's position.
func ReadTasks(path string) ([]Task, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open task list: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	var tasks []Task
	for line := 1; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read task list %s: %w", path, err)
		}
		if len(rec) < 2 || strings.TrimSpace(rec[1]) == "" {
			continue
		}
		idx, err := strconv.Atoi(strings.TrimSpace(rec[0]))
		if err != nil {
			idx = line
		}
		t := Task{Index: idx, Query: strings.TrimSpace(rec[1])}
		if len(rec) > 2 {
			t.Done = IsDone(rec[2])
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// WriteTasks replaces the task list at path. Done rows carry a third column.
func WriteTasks(path string, tasks []Task) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create task list dir: %w", err)
		}
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create task list: %w", err)
	}

	w := csv.NewWriter(f)
	for _, t := range tasks {
		rec := []string{strconv.Itoa(t.Index), t.Query}
		if t.Done {
			rec = append(rec, "true")
		}
		if err := w.Write(rec); err != nil {
			f.Close()
			return fmt.Errorf("write task list: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("write task list: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close task list: %w", err)
	}
	return os.Rename(tmp, path)
}

// appendTasks adds rows to the end of the file at path, creating it if needed.
func appendTasks(path string, tasks []Task) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	for _, t := range tasks {
		if err := w.Write([]string{strconv.Itoa(t.Index), t.Query}); err != nil {
			f.Close()
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
