package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/mycoflow/mycoflow/internal/model"
)

// Journal appends one JSON line per tick to a metric file, in the format
// the original myco_act.c emitted: one compact object per line, no
// indentation, newline-terminated.
type Journal struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

// OpenJournal opens (creating/appending) the journal file at path. If path
// is empty, the returned Journal's Write calls are no-ops, matching the
// source's behavior when metric_file is unset.
func OpenJournal(path string) (*Journal, error) {
	if path == "" {
		return &Journal{}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("snapshot: open metric file: %w", err)
	}
	return &Journal{path: path, f: f}, nil
}

// Write appends a single journal line. Safe for concurrent use.
func (j *Journal) Write(line model.JournalLine) error {
	if j.f == nil {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	b, err := json.Marshal(line)
	if err != nil {
		return fmt.Errorf("snapshot: marshal journal line: %w", err)
	}
	b = append(b, '\n')
	if _, err := j.f.Write(b); err != nil {
		return fmt.Errorf("snapshot: write journal line: %w", err)
	}
	return nil
}

// Close closes the underlying file, if any was opened.
func (j *Journal) Close() error {
	if j.f == nil {
		return nil
	}
	return j.f.Close()
}
