package extractor

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/bdougie/scxmask/internal/video"
)

var containerExts = map[string]bool{
	".mp4":  true,
	".mkv":  true,
	".avi":  true,
	".mov":  true,
	".webm": true,
}

// IsContainer reports whether path should be encoded by ffmpeg rather than
// written as raw frames
func IsContainer(path string) bool {
	return containerExts[strings.ToLower(filepath.Ext(path))]
}

// Encoder pipes raw mask frames into an ffmpeg process
type Encoder struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	w      *bufio.Writer
	stderr bytes.Buffer
	output string
	logger *slog.Logger
}

// NewEncoder starts ffmpeg writing outputPath from frames laid out as vi
func NewEncoder(ctx context.Context, vi video.Info, frameRate, outputPath string, logger *slog.Logger) (*Encoder, error) {
	if dir := filepath.Dir(outputPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory '%s': %v", dir, err)
		}
	}

	e := &Encoder{output: outputPath, logger: logger}
	e.cmd = exec.CommandContext(ctx,
		"ffmpeg",
		"-y",
		"-v", "error",
		"-f", "rawvideo",
		"-pix_fmt", vi.Format.FFmpegName(),
		"-s", fmt.Sprintf("%dx%d", vi.Width, vi.Height),
		"-r", frameRate,
		"-i", "-",
		outputPath,
	)
	e.cmd.Stderr = &e.stderr

	stdin, err := e.cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	if err := e.cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	e.stdin = stdin
	e.w = bufio.NewWriterSize(stdin, 1<<20)

	logger.Info("encoding masks", "output", outputPath, "pix_fmt", vi.Format.FFmpegName(), "size", fmt.Sprintf("%dx%d", vi.Width, vi.Height))
	return e, nil
}

func (e *Encoder) WriteFrame(n int, f *video.Frame) error {
	if err := video.WriteRaw(e.w, f); err != nil {
		return fmt.Errorf("ffmpeg pipe: %w\nOutput: %s", err, e.stderr.String())
	}
	return nil
}

// Close finishes the stream and waits for ffmpeg to exit
func (e *Encoder) Close() error {
	flushErr := e.w.Flush()
	e.stdin.Close()
	if err := e.cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg failed: %v\nOutput: %s", err, e.stderr.String())
	}
	if flushErr != nil {
		return flushErr
	}
	e.logger.Info("masks encoded", "output", e.output)
	return nil
}
