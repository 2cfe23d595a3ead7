package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"ammcore/internal/model"
)

// JsonlJournal appends pool events to a JSONL file.
type JsonlJournal struct {
	path string
	mu   sync.Mutex
}

func NewJsonlJournal(path string) *JsonlJournal {
	return &JsonlJournal{path: path}
}

// PutEvents appends a batch of events as JSON lines. A local append is not
// interrupted once started, so the context is not consulted.
func (s *JsonlJournal) PutEvents(_ context.Context, events []model.PoolEvent) error {
	if len(events) == 0 {
		return nil
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create journal dir: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, event := range events {
		line, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("marshal pool event: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write pool event: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush journal: %w", err)
	}

	return nil
}

// Discard drops every event.
type Discard struct{}

func (Discard) PutEvents(context.Context, []model.PoolEvent) error { return nil }

type tee []Journal

// Tee fans every batch out to each journal, stopping at the first failure.
func Tee(journals ...Journal) Journal {
	return tee(journals)
}

func (t tee) PutEvents(ctx context.Context, events []model.PoolEvent) error {
	for _, journal := range t {
		if err := journal.PutEvents(ctx, events); err != nil {
			return err
		}
	}
	return nil
}
