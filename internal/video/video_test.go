package video

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFrameLayout(t *testing.T) {
	tests := []struct {
		format PixelFormat
		planes [][2]int // row size, height
	}{
		{Y8, [][2]int{{20, 10}}},
		{YV12, [][2]int{{20, 10}, {10, 5}, {10, 5}}},
		{I420, [][2]int{{20, 10}, {10, 5}, {10, 5}}},
		{YV16, [][2]int{{20, 10}, {10, 10}, {10, 10}}},
		{YV24, [][2]int{{20, 10}, {20, 10}, {20, 10}}},
		{YUY2, [][2]int{{40, 10}}},
		{RGB24, [][2]int{{60, 10}}},
		{RGB32, [][2]int{{80, 10}}},
	}

	for _, tt := range tests {
		t.Run(tt.format.String(), func(t *testing.T) {
			vi := Info{Width: 20, Height: 10, Format: tt.format}
			require.NoError(t, vi.Validate())

			f := NewFrame(vi)
			require.Len(t, f.Planes, len(tt.planes))
			for i, want := range tt.planes {
				p := f.Planes[i]
				assert.Equal(t, want[0], p.RowSize, "plane %d row size", i)
				assert.Equal(t, want[1], p.Height, "plane %d height", i)
				assert.Zero(t, p.Pitch%frameAlign, "plane %d pitch", i)
				assert.GreaterOrEqual(t, p.Pitch, p.RowSize)
				assert.Len(t, p.Data, p.Pitch*p.Height)
			}
		})
	}
}

func TestFormatPredicates(t *testing.T) {
	assert.True(t, Y8.IsPlanar())
	assert.True(t, Y8.IsY8())
	assert.True(t, YV12.IsPlanar())
	assert.False(t, YV12.IsY8())
	assert.False(t, YUY2.IsPlanar())
	assert.False(t, RGB32.IsPlanar())
}

func TestParsePixelFormat(t *testing.T) {
	for name, want := range map[string]PixelFormat{
		"yv12":    YV12,
		"YV24":    YV24,
		"gray":    Y8,
		"yuv420p": YV12,
		"yuv422p": YV16,
		"bgra":    RGB32,
	} {
		got, err := ParsePixelFormat(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := ParsePixelFormat("p010")
	assert.Error(t, err)
}

func TestInfoValidate(t *testing.T) {
	assert.Error(t, Info{Width: 0, Height: 10, Format: Y8}.Validate())
	assert.Error(t, Info{Width: 10, Height: 10, NumFrames: -1, Format: Y8}.Validate())
	assert.Error(t, Info{Width: 11, Height: 10, Format: YV12}.Validate())
	assert.Error(t, Info{Width: 10, Height: 11, Format: YV12}.Validate())
	assert.NoError(t, Info{Width: 10, Height: 11, Format: YV16}.Validate())
	assert.Error(t, Info{Width: 11, Height: 10, Format: YUY2}.Validate())
	assert.Error(t, Info{Width: 10, Height: 10, Format: PixelFormat(99)}.Validate())
}

func TestFrameSize(t *testing.T) {
	f := NewFrame(Info{Width: 8, Height: 4, Format: YV12})
	assert.Equal(t, 8*4+2*4*2, f.Size())
	assert.Len(t, f.Planes[0].Row(3), 8)
}

func TestWriteRawDropsPadding(t *testing.T) {
	f := NewFrame(Info{Width: 4, Height: 2, Format: YV12})
	for i := range f.Planes {
		for j := range f.Planes[i].Data {
			f.Planes[i].Data[j] = byte(i + 1)
		}
	}

	var buf bytes.Buffer
	require.NoError(t, WriteRaw(&buf, f))
	assert.Equal(t, []byte{1, 1, 1, 1, 1, 1, 1, 1, 2, 2, 3, 3}, buf.Bytes())
}
