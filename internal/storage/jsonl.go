package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"neoswaps/internal/model"
)

// JsonlStorage appends journal entries and command errors to two JSONL files. Records
// whose seq is already present in a file are skipped, so replaying a batch that was
// written before a crash does not duplicate lines.
type JsonlStorage struct {
	path       string
	errorsPath string
	mu         sync.Mutex
	written    map[string]uint64
}

// NewJsonlStorage writes entries to path and errors to errorsPath. An empty
// errorsPath discards errors.
func NewJsonlStorage(path, errorsPath string) *JsonlStorage {
	return &JsonlStorage{path: path, errorsPath: errorsPath, written: make(map[string]uint64)}
}

// PutEntries appends a batch of journal entries as JSON lines.
func (s *JsonlStorage) PutEntries(_ context.Context, entries []model.JournalEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendNew(s, s.path, entries, func(e model.JournalEntry) uint64 { return e.Seq })
}

// PutErrors appends a batch of rejected commands as JSON lines.
func (s *JsonlStorage) PutErrors(_ context.Context, errs []model.CommandError) error {
	if s.errorsPath == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendNew(s, s.errorsPath, errs, func(e model.CommandError) uint64 { return e.Seq })
}

func appendNew[T any](s *JsonlStorage, path string, records []T, seqOf func(T) uint64) error {
	if len(records) == 0 {
		return nil
	}
	last, ok := s.written[path]
	if !ok {
		var err error
		if last, err = lastSeq(path); err != nil {
			return err
		}
	}

	fresh := make([]T, 0, len(records))
	for _, record := range records {
		if seq := seqOf(record); seq > last {
			fresh = append(fresh, record)
			last = seq
		}
	}
	if err := appendLines(path, fresh); err != nil {
		return err
	}
	s.written[path] = last
	return nil
}

// lastSeq returns the highest seq found in an existing JSONL file.
func lastSeq(path string) (uint64, error) {
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	var highest uint64
	for scanner.Scan() {
		var rec struct {
			Seq uint64 `json:"seq"`
		}
		// A torn final line carries no seq.
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue
		}
		if rec.Seq > highest {
			highest = rec.Seq
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("scan output file: %w", err)
	}
	return highest, nil
}

func appendLines[T any](path string, records []T) error {
	if len(records) == 0 {
		return nil
	}

	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, record := range records {
		line, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}
