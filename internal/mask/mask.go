// Package mask turns a frame classification sequence into uniform
// keyframe masks.
package mask

import (
	"errors"
	"fmt"

	"github.com/bdougie/scxmask/internal/models"
	"github.com/bdougie/scxmask/internal/video"
	"github.com/bdougie/scxmask/internal/xvidlog"
)

var ErrOutOfRangeFrame = errors.New("invalid frame requested")

// OutOfRangeError is returned in strict mode for indices outside the log
type OutOfRangeError struct {
	Index    int
	MaxIndex int
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("%v. Maximum frame: %d. Set strict=false if you want to allow this.", ErrOutOfRangeFrame, e.MaxIndex)
}

func (e *OutOfRangeError) Is(target error) bool {
	return target == ErrOutOfRangeFrame
}

// Render returns the fill value for a logical frame index
func Render(logical int, seq *xvidlog.Sequence, strict bool) (models.FillValue, error) {
	t, ok := seq.At(logical)
	if !ok {
		if strict {
			return models.Black, &OutOfRangeError{Index: logical, MaxIndex: seq.Len() - 1}
		}
		return models.Black, nil
	}
	if t == models.Keyframe {
		return models.White, nil
	}
	return models.Black, nil
}

// Generator maps output frame numbers onto a parsed log. It holds no mutable
// state and may be shared between goroutines.
type Generator struct {
	seq    *xvidlog.Sequence
	offset int
	strict bool
}

// New returns a generator over seq. offset is added to every requested frame.
func New(seq *xvidlog.Sequence, offset int, strict bool) *Generator {
	return &Generator{seq: seq, offset: offset, strict: strict}
}

// LogicalIndex returns the log index looked up for output frame n
func (g *Generator) LogicalIndex(n int) int {
	return n + g.offset
}

// Render returns the fill value for output frame n
func (g *Generator) Render(n int) (models.FillValue, error) {
	return Render(g.LogicalIndex(n), g.seq, g.strict)
}

// Type returns the classification behind output frame n
func (g *Generator) Type(n int) (models.FrameType, bool) {
	return g.seq.At(g.LogicalIndex(n))
}

// Len returns the length of the underlying sequence
func (g *Generator) Len() int {
	return g.seq.Len()
}

// Fill writes v into every byte of the frame. Chroma planes of planar
// formats get the same value as luma.
func Fill(f *video.Frame, v models.FillValue) {
	planes := f.Planes
	if !f.Format.IsPlanar() || f.Format.IsY8() {
		planes = planes[:min(len(planes), 1)]
	}
	for _, p := range planes {
		fillBytes(p.Data, byte(v))
	}
}

func fillBytes(b []byte, v byte) {
	if len(b) == 0 {
		return
	}
	b[0] = v
	for filled := 1; filled < len(b); filled *= 2 {
		copy(b[filled:], b[:filled])
	}
}
