package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"quizbot/internal/domain"
)

const bankExt = ".csv"

// BankStore keeps question banks as CSV files. Writes go to the primary
// directory; reads fall back to the extra search paths in order.
type BankStore struct {
	dir         string
	searchPaths []string
}

func NewBankStore(dir string, searchPaths ...string) (*BankStore, error) {
	if dir == "" {
		dir = "./quizzes"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create bank dir: %w", err)
	}
	return &BankStore{dir: dir, searchPaths: searchPaths}, nil
}

func (s *BankStore) LoadSource(_ context.Context, bankID string) ([]byte, error) {
	for _, dir := range s.dirs() {
		data, err := os.ReadFile(s.path(dir, bankID))
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read bank %s: %w", bankID, err)
		}
	}
	return nil, fmt.Errorf("%s: %w", bankID, domain.ErrBankNotFound)
}

// Save writes the bank atomically so a concurrent reader never sees a partial file.
func (s *BankStore) Save(_ context.Context, bankID string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("save bank %s: %w", bankID, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("save bank %s: %w", bankID, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save bank %s: %w", bankID, err)
	}
	if err := os.Rename(tmp.Name(), s.path(s.dir, bankID)); err != nil {
		return fmt.Errorf("save bank %s: %w", bankID, err)
	}
	return nil
}

// Delete removes a bank from the primary directory. Banks found only on a
// search path are read-only.
func (s *BankStore) Delete(_ context.Context, bankID string) error {
	err := os.Remove(s.path(s.dir, bankID))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s: %w", bankID, domain.ErrBankNotFound)
	}
	return err
}

func (s *BankStore) List(_ context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	ids := make([]string, 0)
	for _, dir := range s.dirs() {
		entries, err := os.ReadDir(dir)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("list banks: %w", err)
		}
		for _, entry := range entries {
			name := entry.Name()
			if entry.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, bankExt) {
				continue
			}
			id := strings.TrimSuffix(name, bankExt)
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *BankStore) dirs() []string {
	return append([]string{s.dir}, s.searchPaths...)
}

func (s *BankStore) path(dir, bankID string) string {
	return filepath.Join(dir, filepath.Base(bankID)+bankExt)
}
