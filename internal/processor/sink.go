package processor

import (
	"bufio"
	"io"

	"github.com/bdougie/scxmask/internal/video"
)

// RawSink writes frames as headerless planar video
type RawSink struct {
	w      *bufio.Writer
	closer io.Closer
	frames int
}

// NewRawSink wraps w. If w is an io.Closer it is closed by Close.
func NewRawSink(w io.Writer) *RawSink {
	s := &RawSink{w: bufio.NewWriterSize(w, 1<<20)}
	if c, ok := w.(io.Closer); ok {
		s.closer = c
	}
	return s
}

func (s *RawSink) WriteFrame(n int, f *video.Frame) error {
	if err := video.WriteRaw(s.w, f); err != nil {
		return err
	}
	s.frames++
	return nil
}

// Frames returns how many frames were written
func (s *RawSink) Frames() int { return s.frames }

func (s *RawSink) Close() error {
	err := s.w.Flush()
	if s.closer != nil {
		if cerr := s.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
