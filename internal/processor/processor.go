package processor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/bdougie/scxmask/internal/filter"
	"github.com/bdougie/scxmask/internal/models"
	"github.com/bdougie/scxmask/internal/storage"
	"github.com/bdougie/scxmask/internal/video"
)

const (
	DefaultWorkers = 4 // Adjust based on your CPU cores
	progressEvery  = 500
)

// FrameSink receives rendered frames in frame order
type FrameSink interface {
	WriteFrame(n int, f *video.Frame) error
	Close() error
}

type describer interface {
	Describe(n int) models.MaskResult
}

type rendered struct {
	n     int
	frame *video.Frame
	err   error
}

// Processor requests mask frames from a clip on a worker pool and writes
// them out in order
type Processor struct {
	clip    filter.Clip
	name    string
	env     *filter.Environment
	sink    FrameSink
	storage storage.Storage
	workers int
	logger  *slog.Logger
}

// Option configures a Processor
type Option func(*Processor)

// WithWorkers sets the number of goroutines requesting frames
func WithWorkers(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithStorage records a MaskResult for every frame written
func WithStorage(s storage.Storage) Option {
	return func(p *Processor) { p.storage = s }
}

// WithLogger sets the progress logger
func WithLogger(l *slog.Logger) Option {
	return func(p *Processor) { p.logger = l }
}

// NewProcessor builds a processor for clip. name is the function the clip
// was created by and is used when reporting frame errors.
func NewProcessor(env *filter.Environment, name string, clip filter.Clip, sink FrameSink, opts ...Option) *Processor {
	p := &Processor{
		clip:    clip,
		name:    name,
		env:     env,
		sink:    sink,
		storage: storage.Discard{},
		workers: DefaultWorkers,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process renders frames first through first+count-1. The first error stops
// the run; frames before it have already been written.
func (p *Processor) Process(ctx context.Context, first, count int) error {
	if count <= 0 {
		return p.storage.Flush()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p.logger.Info("rendering masks", "first", first, "count", count, "workers", p.workers)

	workChan := make(chan models.WorkItem, p.workers)
	resultsChan := make(chan rendered, p.workers)
	// tokens bound how far workers may run ahead of the writer
	inflight := make(chan struct{}, p.workers*4)

	var wg sync.WaitGroup
	remainingFrames := atomic.Int64{}
	remainingFrames.Store(int64(count))

	// Start worker pool
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for work := range workChan {
				if ctx.Err() != nil {
					continue
				}
				f, err := p.env.GetFrame(p.name, p.clip, work.FrameNum)
				resultsChan <- rendered{n: work.FrameNum, frame: f, err: err}
			}
		}()
	}

	// Send work to workers
	go func() {
		defer close(workChan)
		for i := 0; i < count; i++ {
			select {
			case inflight <- struct{}{}:
			case <-ctx.Done():
				return
			}
			select {
			case workChan <- models.WorkItem{FrameNum: first + i, Total: count}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	var firstErr error
	pending := make(map[int]rendered)
	next := first
	for r := range resultsChan {
		if firstErr != nil {
			continue
		}
		if r.err != nil {
			firstErr = fmt.Errorf("frame %d: %w", r.n, r.err)
			cancel()
			continue
		}
		pending[r.n] = r
		for {
			out, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			if err := p.write(ctx, out); err != nil {
				firstErr = err
				cancel()
				break
			}
			<-inflight
			next++

			remaining := remainingFrames.Add(-1)
			if remaining%progressEvery == 0 {
				p.logger.Debug("mask progress", "remaining", remaining, "total", count)
			}
		}
	}

	if firstErr == nil && next < first+count {
		firstErr = fmt.Errorf("stopped after %d of %d frames: %w", next-first, count, ctx.Err())
	}
	if err := p.storage.Flush(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("failed to flush final results: %w", err)
	}
	if firstErr != nil {
		return firstErr
	}

	p.logger.Info("masks rendered", "frames", count)
	return nil
}

func (p *Processor) write(ctx context.Context, r rendered) error {
	if err := p.sink.WriteFrame(r.n, r.frame); err != nil {
		return fmt.Errorf("write frame %d: %w", r.n, err)
	}

	result := models.MaskResult{Frame: r.n, Fill: models.FillValue(r.frame.Planes[0].Data[0])}
	if d, ok := p.clip.(describer); ok {
		result = d.Describe(r.n)
	}
	if err := p.storage.AddResult(ctx, result); err != nil {
		return fmt.Errorf("store frame %d: %w", r.n, err)
	}
	return nil
}
