package acquired

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gpbackup/pkg/logger"
)

// JSONStore keeps the acquired ids as a flat JSON array of strings
type JSONStore struct {
	path              string
	backupBeforeWrite bool
	logger            logger.Logger
}

// NewJSONStore creates a store backed by the file at path
func NewJSONStore(path string, log logger.Logger) *JSONStore {
	if log == nil {
		log = logger.GetLogger()
	}
	return &JSONStore{
		path:   path,
		logger: log.WithField("component", "acquired"),
	}
}

// SetBackupBeforeWrite keeps a copy of the previous file at <path>.backup before each overwrite
func (s *JSONStore) SetBackupBeforeWrite(enabled bool) {
	s.backupBeforeWrite = enabled
}

func (s *JSONStore) Location() string {
	return s.path
}

func (s *JSONStore) Close() error {
	return nil
}

// Load reads the id list; a missing file is an empty set
func (s *JSONStore) Load(ctx context.Context) (*Set, error) {
	file, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.InfoWithFields("No acquired list yet, starting empty", map[string]interface{}{
				"path": s.path,
			})
			return NewSet(nil), nil
		}
		return nil, fmt.Errorf("failed to open acquired list: %w", err)
	}
	defer file.Close()

	var ids []string
	if err := json.NewDecoder(file).Decode(&ids); err != nil {
		return nil, fmt.Errorf("failed to decode acquired list: %w", err)
	}

	set := NewSet(ids)
	s.logger.DebugWithFields("Acquired list loaded", map[string]interface{}{
		"path":  s.path,
		"count": set.Len(),
	})
	return set, nil
}

// Persist atomically replaces the file with ids
func (s *JSONStore) Persist(ctx context.Context, ids []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ids == nil {
		ids = []string{}
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create acquired list directory: %w", err)
		}
	}

	if s.backupBeforeWrite {
		if err := s.backup(); err != nil {
			return err
		}
	}

	tempPath := s.path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary acquired list: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(ids); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode acquired list: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync acquired list: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close acquired list: %w", err)
	}

	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace acquired list: %w", err)
	}

	s.logger.DebugWithFields("Acquired list saved", map[string]interface{}{
		"path":  s.path,
		"count": len(ids),
	})
	return nil
}

// backup copies the current file to <path>.backup
func (s *JSONStore) backup() error {
	src, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open acquired list for backup: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(s.path + ".backup")
	if err != nil {
		return fmt.Errorf("failed to create backup file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to copy acquired list to backup: %w", err)
	}
	return nil
}
