package storage

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"match-collector/internal/logger"
)

const identitySuffix = "_puuids.txt"

// IdentityStore keeps one newline-delimited identity list per unit,
// named {TIER}_{DIV}_puuids.txt or {TIER}_puuids.txt
type IdentityStore struct {
	dir string
}

func NewIdentityStore(dir string) (*IdentityStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return &IdentityStore{dir: dir}, nil
}

// Path returns the list file of a unit label
func (s *IdentityStore) Path(label string) string {
	return filepath.Join(s.dir, label+identitySuffix)
}

// WriteIdentities replaces the list of label
func (s *IdentityStore) WriteIdentities(label string, ids []string) error {
	path := s.Path(label)
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmp, err)
	}
	w := bufio.NewWriter(f)
	for _, id := range ids {
		if _, err := w.WriteString(id + "\n"); err != nil {
			f.Close()
			return fmt.Errorf("failed to write identity: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", tmp, err)
	}

	logger.Component("storage").WithFields(logger.Fields{"file": filepath.Base(path), "identities": len(ids)}).Info("identity list saved")
	return nil
}

// LoadIdentities reads a list file. Blank lines and # comments are skipped,
// duplicates keep their first position.
func LoadIdentities(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	seen := make(map[string]struct{})
	var ids []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, dup := seen[line]; dup {
			continue
		}
		seen[line] = struct{}{}
		ids = append(ids, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return ids, nil
}

// LabelFromIdentityFile derives the unit label from a list file name
func LabelFromIdentityFile(path string) string {
	base := filepath.Base(path)
	if label, ok := strings.CutSuffix(base, identitySuffix); ok {
		return label
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}
