package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"photosync/pkg/logger"
)

// In-progress downloads are written to ".photosync-<name>.part". SanitizeFilename
// never returns a name of that shape, so temp files cannot collide with
// completed items.
const (
	PartPrefix = ".photosync-"
	PartSuffix = ".part"
)

// PartName returns the temp file name used while writing name
func PartName(name string) string {
	return PartPrefix + name + PartSuffix
}

// IsPartName reports whether name has the temp file shape
func IsPartName(name string) bool {
	return len(name) >= len(PartPrefix)+len(PartSuffix) &&
		strings.HasPrefix(name, PartPrefix) &&
		strings.HasSuffix(name, PartSuffix)
}

// copyBufferSize bounds memory per in-flight download
const copyBufferSize = 32 * 1024

// Swappable for fault injection in tests.
var (
	renameFunc  = os.Rename
	chtimesFunc = os.Chtimes
)

// CrossDeviceError is returned when the rename onto the final path crosses
// filesystems (EXDEV). Files are never copied across devices.
type CrossDeviceError struct {
	Src string
	Dst string
	Err error
}

func (e *CrossDeviceError) Error() string {
	return fmt.Sprintf("cannot move %q to %q across filesystems: %v", e.Src, e.Dst, e.Err)
}

func (e *CrossDeviceError) Unwrap() error { return e.Err }

// LocalFile describes a materialized item
type LocalFile struct {
	Path       string
	Name       string
	Size       int64
	ModTimeSet bool
}

// Manager writes items into a single output directory
type Manager struct {
	outputDir string
	logger    logger.Logger
}

// NewManager creates a new storage manager, creating outputDir if needed
func NewManager(outputDir string) (*Manager, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	return &Manager{
		outputDir: outputDir,
		logger:    logger.GetLogger(),
	}, nil
}

// SetLogger replaces the manager's logger
func (m *Manager) SetLogger(log logger.Logger) {
	m.logger = log
}

// GetOutputDir returns the output directory path
func (m *Manager) GetOutputDir() string {
	return m.outputDir
}

// Place streams r into the output directory under the sanitized form of
// name. When haveTime is set, the file's access and modification times are
// set to createdAt after the rename.
func (m *Manager) Place(ctx context.Context, name string, r io.Reader, createdAt time.Time, haveTime bool) (*LocalFile, error) {
	safe := SanitizeFilename(name)
	final := filepath.Join(m.outputDir, safe)
	part := filepath.Join(m.outputDir, PartName(safe))

	if fi, err := os.Lstat(final); err == nil && fi.IsDir() {
		return nil, fmt.Errorf("cannot write %s: path is a directory", final)
	}

	size, err := writePart(ctx, part, r)
	if err != nil {
		os.Remove(part)
		return nil, err
	}

	if err := rename(part, final); err != nil {
		os.Remove(part)
		return nil, fmt.Errorf("failed to move %s into place: %w", safe, err)
	}
	syncDirBestEffort(m.outputDir)

	file := &LocalFile{Path: final, Name: safe, Size: size}
	if haveTime {
		if err := chtimesFunc(final, createdAt, createdAt); err != nil {
			// The content is already committed; only the timestamp is lost.
			m.logger.WithError(err).WarnWithFields("Failed to set file time", map[string]interface{}{
				"file": safe,
			})
		} else {
			file.ModTimeSet = true
		}
	}

	return file, nil
}

// writePart copies r into path in bounded chunks, checking ctx between them,
// and fsyncs before returning.
func writePart(ctx context.Context, path string, r io.Reader) (int64, error) {
	out, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return 0, fmt.Errorf("failed to create temporary file: %w", err)
	}

	buf := make([]byte, copyBufferSize)
	// Hide ReadFrom/WriteTo so the copy always goes through buf.
	n, err := io.CopyBuffer(struct{ io.Writer }{out}, &ctxReader{ctx: ctx, r: r}, buf)
	if err != nil {
		out.Close()
		return n, fmt.Errorf("failed to write item data: %w", err)
	}

	if err := out.Sync(); err != nil {
		out.Close()
		return n, fmt.Errorf("failed to sync temporary file: %w", err)
	}
	if err := out.Close(); err != nil {
		return n, fmt.Errorf("failed to close temporary file: %w", err)
	}
	return n, nil
}

// RemoveStalePartials deletes temp files left behind by an interrupted run
// and returns how many were removed. Completed files are never touched.
func (m *Manager) RemoveStalePartials() (int, error) {
	entries, err := os.ReadDir(m.outputDir)
	if err != nil {
		return 0, fmt.Errorf("failed to read directory: %w", err)
	}

	removed := 0
	var errs []error
	for _, entry := range entries {
		if entry.IsDir() || !IsPartName(entry.Name()) {
			continue
		}
		if err := os.Remove(filepath.Join(m.outputDir, entry.Name())); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
			continue
		}
		removed++
	}

	if removed > 0 {
		m.logger.InfoWithFields("Removed partial downloads", map[string]interface{}{
			"count": removed,
			"dir":   m.outputDir,
		})
	}
	return removed, errors.Join(errs...)
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// rename wraps renameFunc and marks EXDEV failures as CrossDeviceError
func rename(src, dst string) error {
	if err := renameFunc(src, dst); err != nil {
		if isEXDEV(err) {
			return &CrossDeviceError{Src: src, Dst: dst, Err: err}
		}
		return err
	}
	return nil
}

func syncDirBestEffort(dir string) {
	if runtime.GOOS == "windows" {
		return
	}
	f, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = f.Sync()
	_ = f.Close()
}
