package processor

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bdougie/scxmask/internal/filter"
	"github.com/bdougie/scxmask/internal/mask"
	"github.com/bdougie/scxmask/internal/models"
	"github.com/bdougie/scxmask/internal/storage"
	"github.com/bdougie/scxmask/internal/video"
)

var testInfo = video.Info{Width: 4, Height: 2, NumFrames: 6, Format: video.Y8}

func newClip(t *testing.T, log string, offset int, strict bool) (*filter.Environment, filter.Clip) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "xvid.stats")
	require.NoError(t, os.WriteFile(path, []byte(log), 0644))

	env := filter.NewEnvironment(slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err := env.LoadPlugin(filter.Register)
	require.NoError(t, err)

	clip, err := env.Invoke(filter.FunctionName, filter.BlankClip{VI: testInfo}, map[string]any{
		"path":   path,
		"offset": offset,
		"strict": strict,
	})
	require.NoError(t, err)
	return env, clip
}

type memStorage struct {
	mu      sync.Mutex
	results []models.MaskResult
	flushed bool
}

func (m *memStorage) AddResult(_ context.Context, r models.MaskResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, r)
	return nil
}

func (m *memStorage) Flush() error {
	m.flushed = true
	return nil
}

const log6 = "# XviD 2pass stat file\nmeta\nmeta\ni\np\np\ni\np\np\n"

func TestProcessWritesInOrder(t *testing.T) {
	env, clip := newClip(t, log6, 0, false)
	var buf bytes.Buffer
	sink := NewRawSink(&buf)
	store := &memStorage{}

	p := NewProcessor(env, filter.FunctionName, clip, sink,
		WithWorkers(3),
		WithStorage(store),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	require.NoError(t, p.Process(context.Background(), 0, 6))
	require.NoError(t, sink.Close())

	frameSize := testInfo.Width * testInfo.Height
	require.Equal(t, 6*frameSize, buf.Len())
	want := []byte{255, 0, 0, 255, 0, 0}
	for n, w := range want {
		frame := buf.Bytes()[n*frameSize : (n+1)*frameSize]
		assert.Equal(t, bytes.Repeat([]byte{w}, frameSize), frame, "frame %d", n)
	}

	assert.True(t, store.flushed)
	require.Len(t, store.results, 6)
	for n, r := range store.results {
		assert.Equal(t, n, r.Frame)
		assert.Equal(t, models.FillValue(want[n]), r.Fill)
	}
	assert.Equal(t, "I", store.results[3].Type)
	assert.Equal(t, 6, sink.Frames())
}

func TestProcessLenientPastEnd(t *testing.T) {
	env, clip := newClip(t, log6, 4, false)
	var buf bytes.Buffer
	store := &memStorage{}

	p := NewProcessor(env, filter.FunctionName, clip, NewRawSink(&buf), WithStorage(store))
	require.NoError(t, p.Process(context.Background(), 0, 4))

	require.Len(t, store.results, 4)
	assert.Equal(t, "P", store.results[0].Type)
	assert.Equal(t, models.NoFrame, store.results[2].Type)
	assert.Equal(t, 6, store.results[2].LogicalIndex)
}

func TestProcessStrictStops(t *testing.T) {
	env, clip := newClip(t, log6, 0, true)
	sink := NewRawSink(io.Discard)
	store := &memStorage{}

	p := NewProcessor(env, filter.FunctionName, clip, sink, WithWorkers(2), WithStorage(store))
	err := p.Process(context.Background(), 0, 40)
	require.Error(t, err)
	assert.ErrorIs(t, err, mask.ErrOutOfRangeFrame)

	var oor *mask.OutOfRangeError
	require.True(t, errors.As(err, &oor))
	assert.Equal(t, 5, oor.MaxIndex)
	assert.LessOrEqual(t, len(store.results), 6)
	assert.True(t, store.flushed)
}

func TestProcessCancelled(t *testing.T) {
	env, clip := newClip(t, log6, 0, false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewProcessor(env, filter.FunctionName, clip, NewRawSink(io.Discard))
	err := p.Process(ctx, 0, 1000)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProcessNothing(t *testing.T) {
	env, clip := newClip(t, log6, 0, false)
	store := &memStorage{}
	p := NewProcessor(env, filter.FunctionName, clip, NewRawSink(io.Discard), WithStorage(store))
	require.NoError(t, p.Process(context.Background(), 0, 0))
	assert.True(t, store.flushed)
}

type failingSink struct{ after int }

func (f *failingSink) WriteFrame(n int, _ *video.Frame) error {
	if n >= f.after {
		return errors.New("disk full")
	}
	return nil
}

func (f *failingSink) Close() error { return nil }

func TestProcessSinkError(t *testing.T) {
	env, clip := newClip(t, log6, 0, false)
	p := NewProcessor(env, filter.FunctionName, clip, &failingSink{after: 2})
	err := p.Process(context.Background(), 0, 6)
	assert.ErrorContains(t, err, "write frame 2: disk full")
}

func TestProcessWithFileStorage(t *testing.T) {
	env, clip := newClip(t, log6, 0, false)
	dir := t.TempDir()
	store := storage.NewFileStorage(dir, "clip")

	p := NewProcessor(env, filter.FunctionName, clip, NewRawSink(io.Discard), WithStorage(store))
	require.NoError(t, p.Process(context.Background(), 0, 6))

	results, err := storage.LoadResults(store.Path())
	require.NoError(t, err)
	require.Len(t, results, 6)
	assert.Equal(t, models.White, results[0].Fill)
}
