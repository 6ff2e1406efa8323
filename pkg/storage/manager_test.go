package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photosync/pkg/logger"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(filepath.Join(t.TempDir(), "out"))
	require.NoError(t, err)
	m.SetLogger(logger.NewNopLogger())
	return m
}

func TestPlace(t *testing.T) {
	m := newTestManager(t)
	created := time.Date(2021, 5, 4, 3, 2, 1, 0, time.UTC)
	data := bytes.Repeat([]byte("x"), 100_000)

	file, err := m.Place(context.Background(), "IMG_0001.jpg", bytes.NewReader(data), created, true)
	require.NoError(t, err)

	assert.Equal(t, "IMG_0001.jpg", file.Name)
	assert.Equal(t, filepath.Join(m.GetOutputDir(), "IMG_0001.jpg"), file.Path)
	assert.Equal(t, int64(len(data)), file.Size)
	assert.True(t, file.ModTimeSet)

	content, err := os.ReadFile(file.Path)
	require.NoError(t, err)
	assert.Equal(t, data, content)

	info, err := os.Stat(file.Path)
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(created))

	_, err = os.Stat(filepath.Join(m.GetOutputDir(), PartName("IMG_0001.jpg")))
	assert.True(t, os.IsNotExist(err))
}

func TestPlaceWithoutTimeKeepsWriteTime(t *testing.T) {
	m := newTestManager(t)
	before := time.Now().Add(-time.Minute)

	file, err := m.Place(context.Background(), "a.png", strings.NewReader("png"), time.Time{}, false)
	require.NoError(t, err)
	assert.False(t, file.ModTimeSet)

	info, err := os.Stat(file.Path)
	require.NoError(t, err)
	assert.True(t, info.ModTime().After(before))
}

func TestPlaceOverwritesExisting(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	_, err := m.Place(ctx, "dup.jpg", strings.NewReader("first"), time.Time{}, false)
	require.NoError(t, err)
	file, err := m.Place(ctx, "dup.jpg", strings.NewReader("second"), time.Time{}, false)
	require.NoError(t, err)

	content, err := os.ReadFile(file.Path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(content))
}

func TestPlaceSanitizesName(t *testing.T) {
	m := newTestManager(t)

	file, err := m.Place(context.Background(), "../../etc/pass?wd", strings.NewReader("x"), time.Time{}, false)
	require.NoError(t, err)
	assert.Equal(t, "....etcpasswd", file.Name)
	assert.Equal(t, m.GetOutputDir(), filepath.Dir(file.Path))
}

// failingReader yields some bytes and then an error, like a dropped connection.
type failingReader struct {
	sent bool
}

func (f *failingReader) Read(p []byte) (int, error) {
	if !f.sent {
		f.sent = true
		return copy(p, "partial"), nil
	}
	return 0, io.ErrUnexpectedEOF
}

func TestPlaceInterruptedLeavesNoFinalFile(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Place(context.Background(), "broken.jpg", &failingReader{}, time.Time{}, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	entries, err := os.ReadDir(m.GetOutputDir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// pausingReader lets the test observe the directory while a write is in flight.
type pausingReader struct {
	first   bool
	reached chan struct{}
	resume  chan struct{}
}

func (p *pausingReader) Read(b []byte) (int, error) {
	if !p.first {
		p.first = true
		return copy(b, "chunk"), nil
	}
	close(p.reached)
	<-p.resume
	return 0, io.EOF
}

func TestPlaceFinalPathNeverPartial(t *testing.T) {
	m := newTestManager(t)
	r := &pausingReader{reached: make(chan struct{}), resume: make(chan struct{})}

	done := make(chan error, 1)
	go func() {
		_, err := m.Place(context.Background(), "slow.jpg", r, time.Time{}, false)
		done <- err
	}()

	<-r.reached
	_, err := os.Stat(filepath.Join(m.GetOutputDir(), "slow.jpg"))
	assert.True(t, os.IsNotExist(err), "final path must not exist mid-write")
	_, err = os.Stat(filepath.Join(m.GetOutputDir(), PartName("slow.jpg")))
	assert.NoError(t, err)

	close(r.resume)
	require.NoError(t, <-done)

	content, err := os.ReadFile(filepath.Join(m.GetOutputDir(), "slow.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "chunk", string(content))
}

func TestPlaceCancelled(t *testing.T) {
	m := newTestManager(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Place(ctx, "c.jpg", strings.NewReader("data"), time.Time{}, false)
	assert.ErrorIs(t, err, context.Canceled)

	entries, err := os.ReadDir(m.GetOutputDir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPlaceRenameFailure(t *testing.T) {
	m := newTestManager(t)

	old := renameFunc
	renameFunc = func(src, dst string) error { return errors.New("rename refused") }
	defer func() { renameFunc = old }()

	_, err := m.Place(context.Background(), "r.jpg", strings.NewReader("data"), time.Time{}, false)
	require.Error(t, err)

	entries, err := os.ReadDir(m.GetOutputDir())
	require.NoError(t, err)
	assert.Empty(t, entries, "part file must be cleaned up")
}

func TestPlaceChtimesFailureIsNotFatal(t *testing.T) {
	tl := logger.NewTestLogger()
	m := newTestManager(t)
	m.SetLogger(tl)

	old := chtimesFunc
	chtimesFunc = func(string, time.Time, time.Time) error { return errors.New("read-only fs") }
	defer func() { chtimesFunc = old }()

	file, err := m.Place(context.Background(), "t.jpg", strings.NewReader("data"), time.Now(), true)
	require.NoError(t, err)
	assert.False(t, file.ModTimeSet)
	assert.Len(t, tl.GetMessagesByLevel("WARN"), 1)
}

func TestPlaceTargetIsDirectory(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, os.Mkdir(filepath.Join(m.GetOutputDir(), "album.jpg"), 0755))

	_, err := m.Place(context.Background(), "album.jpg", strings.NewReader("data"), time.Time{}, false)
	assert.Error(t, err)
}

func TestRemoveStalePartials(t *testing.T) {
	m := newTestManager(t)
	dir := m.GetOutputDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, PartName("a.jpg")), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, PartName("b.mp4")), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "keep.jpg"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "clip.part"), []byte("x"), 0644))

	removed, err := m.RemoveStalePartials()
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"clip.part", "keep.jpg"}, names)
}

func TestPlaceKeepsCompletedPartNamedFiles(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	_, err := m.Place(ctx, "x.part", strings.NewReader("finished"), time.Time{}, false)
	require.NoError(t, err)
	_, err = m.Place(ctx, "x", strings.NewReader("other"), time.Time{}, false)
	require.NoError(t, err)

	removed, err := m.RemoveStalePartials()
	require.NoError(t, err)
	assert.Zero(t, removed)

	content, err := os.ReadFile(filepath.Join(m.GetOutputDir(), "x.part"))
	require.NoError(t, err)
	assert.Equal(t, "finished", string(content))
}
