// Package video describes clip geometry and the frame buffers the host
// hands to a filter.
package video

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// PixelFormat identifies the sample layout of a frame
type PixelFormat int

const (
	Y8 PixelFormat = iota
	YV12
	I420
	YV16
	YV24
	YUY2
	RGB24
	RGB32
)

const frameAlign = 16

var formatNames = map[PixelFormat]string{
	Y8:    "y8",
	YV12:  "yv12",
	I420:  "i420",
	YV16:  "yv16",
	YV24:  "yv24",
	YUY2:  "yuy2",
	RGB24: "rgb24",
	RGB32: "rgb32",
}

// ffmpeg -pix_fmt names for the same layouts
var ffmpegNames = map[PixelFormat]string{
	Y8:    "gray",
	YV12:  "yuv420p",
	I420:  "yuv420p",
	YV16:  "yuv422p",
	YV24:  "yuv444p",
	YUY2:  "yuyv422",
	RGB24: "bgr24",
	RGB32: "bgra",
}

func (f PixelFormat) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("PixelFormat(%d)", int(f))
}

// FFmpegName returns the ffmpeg pixel format with the same memory layout
func (f PixelFormat) FFmpegName() string {
	return ffmpegNames[f]
}

// ParsePixelFormat accepts our names as well as the ffmpeg ones
func ParsePixelFormat(name string) (PixelFormat, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for f, n := range formatNames {
		if n == name {
			return f, nil
		}
	}
	switch name {
	case "gray":
		return Y8, nil
	case "yuv420p", "yuvj420p":
		return YV12, nil
	case "yuv422p", "yuvj422p":
		return YV16, nil
	case "yuv444p", "yuvj444p":
		return YV24, nil
	case "yuyv422":
		return YUY2, nil
	case "bgr24":
		return RGB24, nil
	case "bgra":
		return RGB32, nil
	}
	return 0, fmt.Errorf("unsupported pixel format '%s'", name)
}

// IsPlanar reports whether each component lives in its own plane
func (f PixelFormat) IsPlanar() bool {
	switch f {
	case Y8, YV12, I420, YV16, YV24:
		return true
	}
	return false
}

// IsY8 reports whether the format is luma only
func (f PixelFormat) IsY8() bool { return f == Y8 }

// subsampling returns the chroma plane shift in each direction
func (f PixelFormat) subsampling() (x, y uint) {
	switch f {
	case YV12, I420:
		return 1, 1
	case YV16:
		return 1, 0
	}
	return 0, 0
}

func (f PixelFormat) bytesPerPixel() int {
	switch f {
	case YUY2:
		return 2
	case RGB24:
		return 3
	case RGB32:
		return 4
	}
	return 1
}

// Info is the clip description a filter is constructed against
type Info struct {
	Width     int
	Height    int
	NumFrames int
	Format    PixelFormat
}

// Validate checks that the geometry fits the pixel format
func (vi Info) Validate() error {
	if vi.Width <= 0 || vi.Height <= 0 {
		return fmt.Errorf("invalid frame size %dx%d", vi.Width, vi.Height)
	}
	if vi.NumFrames < 0 {
		return errors.New("negative frame count")
	}
	if _, ok := formatNames[vi.Format]; !ok {
		return fmt.Errorf("unknown pixel format %d", int(vi.Format))
	}
	sx, sy := vi.Format.subsampling()
	if vi.Format == YUY2 {
		sx = 1
	}
	if vi.Width%(1<<sx) != 0 || vi.Height%(1<<sy) != 0 {
		return fmt.Errorf("frame size %dx%d is not a multiple of the %s subsampling", vi.Width, vi.Height, vi.Format)
	}
	return nil
}

// Plane is one rectangle of samples. Rows are Pitch bytes apart and
// RowSize bytes of each row are visible.
type Plane struct {
	Data    []byte
	Pitch   int
	RowSize int
	Height  int
}

// Row returns the visible bytes of row y
func (p Plane) Row(y int) []byte {
	off := y * p.Pitch
	return p.Data[off : off+p.RowSize]
}

// Frame is a single video frame. Planar formats carry Y, U, V in that order;
// packed formats and Y8 carry a single plane.
type Frame struct {
	Format PixelFormat
	Planes []Plane
}

// NewFrame allocates a zeroed frame laid out for vi
func NewFrame(vi Info) *Frame {
	f := &Frame{Format: vi.Format}
	if !vi.Format.IsPlanar() || vi.Format.IsY8() {
		f.Planes = []Plane{newPlane(vi.Width*vi.Format.bytesPerPixel(), vi.Height)}
		return f
	}

	sx, sy := vi.Format.subsampling()
	f.Planes = []Plane{
		newPlane(vi.Width, vi.Height),
		newPlane(vi.Width>>sx, vi.Height>>sy),
		newPlane(vi.Width>>sx, vi.Height>>sy),
	}
	return f
}

func newPlane(rowSize, height int) Plane {
	pitch := (rowSize + frameAlign - 1) &^ (frameAlign - 1)
	return Plane{
		Data:    make([]byte, pitch*height),
		Pitch:   pitch,
		RowSize: rowSize,
		Height:  height,
	}
}

// Size returns the number of visible bytes in the frame
func (f *Frame) Size() int {
	n := 0
	for _, p := range f.Planes {
		n += p.RowSize * p.Height
	}
	return n
}

// WriteRaw writes the visible rows of every plane to w, dropping pitch padding
func WriteRaw(w io.Writer, f *Frame) error {
	for _, p := range f.Planes {
		for y := 0; y < p.Height; y++ {
			if _, err := w.Write(p.Row(y)); err != nil {
				return err
			}
		}
	}
	return nil
}
