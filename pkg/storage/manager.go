package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	errs "gpbackup/pkg/errors"
	"gpbackup/pkg/logger"
)

const (
	tempSuffix  = ".tmp"
	idPrefixLen = 12
)

// Manager owns the staging directory downloads land in before relocation
type Manager struct {
	stagingDir string
	logger     logger.Logger

	// mu serializes picking a staged name
	mu sync.Mutex
}

// RelocateResult reports what a relocation pass did
type RelocateResult struct {
	Moved  []string
	Failed []RelocateFailure
	// DestinationMissing is set when nothing was moved because the
	// destination directory does not exist
	DestinationMissing bool
}

// RelocateFailure describes one staged file that could not be moved
type RelocateFailure struct {
	Filename string
	Err      error
}

// Remaining returns how many staged files were left behind
func (r RelocateResult) Remaining() int {
	return len(r.Failed)
}

// NewManager creates a storage manager for stagingDir. The directory is not
// created until EnsureStagingDir or SaveFile is called.
func NewManager(stagingDir string, log logger.Logger) *Manager {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Manager{
		stagingDir: stagingDir,
		logger:     log.WithField("component", "storage"),
	}
}

// StagingDir returns the staging directory path
func (m *Manager) StagingDir() string {
	return m.stagingDir
}

// EnsureStagingDir creates the staging directory if it does not exist
func (m *Manager) EnsureStagingDir() error {
	info, err := os.Stat(m.stagingDir)
	if err == nil {
		if !info.IsDir() {
			return errs.New(errs.ErrorTypeStorage, "ensure staging", m.stagingDir+" is not a directory")
		}
		return nil
	}
	if !os.IsNotExist(err) {
		return errs.Wrap(errs.ErrorTypeStorage, "ensure staging", err)
	}

	if err := os.MkdirAll(m.stagingDir, 0755); err != nil {
		return errs.Wrap(errs.ErrorTypeStorage, "ensure staging", err)
	}
	m.logger.WarnWithFields("Created staging directory because it did not exist", map[string]interface{}{
		"path": m.stagingDir,
	})
	return nil
}

// SaveFile writes r into the staging directory under filename and returns
// the number of bytes written. Each call writes its own temporary file. When
// the name is already taken by another staged file, the item is staged as
// "<name> (<id prefix>)<ext>" instead of replacing it.
func (m *Manager) SaveFile(r io.Reader, filename, id string) (int64, error) {
	name := filepath.Base(filename)
	if name == "." || name == string(filepath.Separator) {
		return 0, fmt.Errorf("invalid filename %q", filename)
	}

	out, err := os.CreateTemp(m.stagingDir, name+".*"+tempSuffix)
	if err != nil {
		return 0, fmt.Errorf("failed to create temporary file: %w", err)
	}
	tempFile := out.Name()

	n, err := io.Copy(out, r)
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return n, fmt.Errorf("failed to write media data: %w", err)
	}
	if closeErr != nil {
		os.Remove(tempFile)
		return n, fmt.Errorf("failed to close file: %w", closeErr)
	}
	if err := os.Chmod(tempFile, 0644); err != nil {
		os.Remove(tempFile)
		return n, fmt.Errorf("failed to set file mode: %w", err)
	}

	staged, err := m.claim(tempFile, name, id)
	if err != nil {
		os.Remove(tempFile)
		return n, fmt.Errorf("failed to rename temporary file: %w", err)
	}
	if staged != name {
		m.logger.InfoWithFields("Filename already staged, saved under another name", map[string]interface{}{
			"filename":  name,
			"staged_as": staged,
			"media_id":  id,
		})
	}

	return n, nil
}

// claim renames tempFile to the first free staged name for the item
func (m *Manager) claim(tempFile, name, id string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for attempt := 0; ; attempt++ {
		candidate := stagedName(name, id, attempt)
		target := filepath.Join(m.stagingDir, candidate)
		if _, err := os.Lstat(target); err == nil {
			continue
		} else if !os.IsNotExist(err) {
			return "", err
		}
		return candidate, os.Rename(tempFile, target)
	}
}

func stagedName(name, id string, attempt int) string {
	if attempt == 0 {
		return name
	}

	tag := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' {
			return '_'
		}
		return r
	}, id)
	if len(tag) > idPrefixLen {
		tag = tag[:idPrefixLen]
	}
	if tag == "" {
		tag = "copy"
	}
	if attempt > 1 {
		tag = fmt.Sprintf("%s-%d", tag, attempt)
	}

	ext := filepath.Ext(name)
	return fmt.Sprintf("%s (%s)%s", strings.TrimSuffix(name, ext), tag, ext)
}

// Relocate moves every regular file directly inside the staging directory
// into destinationDir. Failures are per file: the file stays in staging and
// the pass continues. The returned error is reserved for a staging directory
// that cannot be read.
func (m *Manager) Relocate(ctx context.Context, destinationDir string) (RelocateResult, error) {
	var result RelocateResult

	entries, err := os.ReadDir(m.stagingDir)
	if err != nil {
		if os.IsNotExist(err) {
			m.logger.DebugWithFields("Staging directory does not exist, nothing to move", map[string]interface{}{
				"path": m.stagingDir,
			})
			return result, nil
		}
		return result, errs.Wrap(errs.ErrorTypeRelocation, "read staging", err)
	}

	var staged []string
	for _, entry := range entries {
		// in-flight or abandoned downloads stay behind
		if entry.Type().IsRegular() && !strings.HasSuffix(entry.Name(), tempSuffix) {
			staged = append(staged, entry.Name())
		}
	}
	if len(staged) == 0 {
		return result, nil
	}

	if info, err := os.Stat(destinationDir); err != nil || !info.IsDir() {
		cause := err
		if cause == nil {
			cause = fmt.Errorf("%s is not a directory", destinationDir)
		}
		m.logger.WithError(cause).ErrorWithFields("Destination unavailable, leaving files in staging", map[string]interface{}{
			"destination": destinationDir,
			"files":       len(staged),
		})
		result.DestinationMissing = true
		for _, name := range staged {
			result.Failed = append(result.Failed, RelocateFailure{
				Filename: name,
				Err:      errs.Wrap(errs.ErrorTypeRelocation, "relocate", cause),
			})
		}
		return result, nil
	}

	for _, name := range staged {
		if err := ctx.Err(); err != nil {
			return result, errs.Wrap(errs.ErrorTypeRelocation, "relocate", err)
		}

		err := moveFile(filepath.Join(m.stagingDir, name), filepath.Join(destinationDir, name))
		logger.LogRelocation(m.logger, name, destinationDir, err)
		if err != nil {
			result.Failed = append(result.Failed, RelocateFailure{
				Filename: name,
				Err:      errs.Wrap(errs.ErrorTypeRelocation, "relocate", err),
			})
			continue
		}
		result.Moved = append(result.Moved, name)
	}

	m.logger.InfoWithFields("Relocation finished", map[string]interface{}{
		"moved":  len(result.Moved),
		"failed": len(result.Failed),
	})
	return result, nil
}

// moveFile refuses to overwrite an existing destination file
func moveFile(src, dst string) error {
	if _, err := os.Lstat(dst); err == nil {
		return fmt.Errorf("destination path %s already exists", dst)
	} else if !os.IsNotExist(err) {
		return err
	}

	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}

	var linkErr *os.LinkError
	if errs.As(err, &linkErr) && errs.Is(linkErr.Err, syscall.EXDEV) {
		return copyAndRemove(src, dst)
	}
	return err
}

func copyAndRemove(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("failed to copy across devices: %w", err)
	}
	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return err
	}

	in.Close()
	return os.Remove(src)
}
