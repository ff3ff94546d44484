package storage

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"swapPilot/internal/model"
)

// JsonlStorage keeps token entries in a JSONL file, one token per line.
type JsonlStorage struct {
	path string
	mu   sync.Mutex
}

func NewJsonlStorage(path string) *JsonlStorage {
	return &JsonlStorage{path: path}
}

// LoadTokens reads every entry. A missing file is an empty list.
func (s *JsonlStorage) LoadTokens(ctx context.Context) ([]model.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open tokens file: %w", err)
	}
	defer file.Close()

	var tokens []model.Token
	scanner := bufio.NewScanner(file)
	line := 0
	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var token model.Token
		if err := json.Unmarshal(raw, &token); err != nil {
			return nil, fmt.Errorf("parse %s line %d: %w", s.path, line, err)
		}
		tokens = append(tokens, token)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read tokens file: %w", err)
	}
	return tokens, nil
}

// PutTokens replaces the file contents with tokens via a tmp file rename.
func (s *JsonlStorage) PutTokens(_ context.Context, tokens []model.Token) error {
	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var buf bytes.Buffer
	for _, token := range tokens {
		line, err := json.Marshal(token)
		if err != nil {
			return fmt.Errorf("marshal token: %w", err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write tokens tmp: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("replace tokens file: %w", err)
	}
	return nil
}
