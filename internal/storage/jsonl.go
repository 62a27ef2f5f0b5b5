package storage

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"liquidityVault/internal/model"
)

// JsonlStorage appends events to a JSONL file, one event per line.
type JsonlStorage struct {
	path string
	mu   sync.Mutex
}

var (
	_ EventWriter   = (*JsonlStorage)(nil)
	_ FailureWriter = (*JsonlStorage)(nil)
)

func NewJsonlStorage(path string) *JsonlStorage {
	return &JsonlStorage{path: path}
}

func (s *JsonlStorage) Path() string { return s.path }

// Reset removes the file so the next batch starts a new journal.
func (s *JsonlStorage) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("reset output file: %w", err)
	}
	return nil
}

// PutEventBatch appends a batch of events as JSON lines.
func (s *JsonlStorage) PutEventBatch(events []model.VaultEvent) error {
	if len(events) == 0 {
		return nil
	}
	return s.appendLines(func(enc *json.Encoder) error {
		for _, ev := range events {
			if err := enc.Encode(ev); err != nil {
				return fmt.Errorf("write event %s/%d: %w", ev.Vault, ev.Seq, err)
			}
		}
		return nil
	})
}

// PutFailures appends rejected scenario steps as JSON lines.
func (s *JsonlStorage) PutFailures(failures []model.StepFailure) error {
	if len(failures) == 0 {
		return nil
	}
	return s.appendLines(func(enc *json.Encoder) error {
		for _, f := range failures {
			if err := enc.Encode(f); err != nil {
				return fmt.Errorf("write failure of step %d: %w", f.Step, err)
			}
		}
		return nil
	})
}

func (s *JsonlStorage) appendLines(write func(enc *json.Encoder) error) error {
	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	if err := write(json.NewEncoder(writer)); err != nil {
		return err
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}
