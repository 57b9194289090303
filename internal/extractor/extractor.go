package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"

	"github.com/bdougie/scxmask/internal/video"
)

type probeOutput struct {
	Streams []struct {
		Width         int    `json:"width"`
		Height        int    `json:"height"`
		PixFmt        string `json:"pix_fmt"`
		NbFrames      string `json:"nb_frames"`
		NbReadPackets string `json:"nb_read_packets"`
		AvgFrameRate  string `json:"avg_frame_rate"`
	} `json:"streams"`
}

// Clip is what ffprobe reported about the first video stream of a file
type Clip struct {
	Info      video.Info
	FrameRate string
}

// ProbeClip reads the geometry and frame count of videoPath with ffprobe.
// Pixel formats without a mask layout fall back to yv12.
func ProbeClip(ctx context.Context, videoPath string, logger *slog.Logger) (Clip, error) {
	// Check if video file exists
	if _, err := os.Stat(videoPath); os.IsNotExist(err) {
		return Clip{}, fmt.Errorf("video file does not exist at path: '%s'", videoPath)
	}

	cmd := exec.CommandContext(ctx,
		"ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-count_packets",
		"-show_entries", "stream=width,height,pix_fmt,nb_frames,nb_read_packets,avg_frame_rate",
		"-of", "json",
		videoPath,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		return Clip{}, fmt.Errorf("ffprobe failed: %v\nOutput: %s", err, stderr.String())
	}

	return parseProbe(output, logger)
}

func parseProbe(output []byte, logger *slog.Logger) (Clip, error) {
	var probe probeOutput
	if err := json.Unmarshal(output, &probe); err != nil {
		return Clip{}, fmt.Errorf("failed to decode ffprobe output: %w", err)
	}
	if len(probe.Streams) == 0 {
		return Clip{}, fmt.Errorf("no video stream found")
	}
	s := probe.Streams[0]

	format, err := video.ParsePixelFormat(s.PixFmt)
	if err != nil {
		logger.Warn("unsupported source pixel format, using yv12", "pix_fmt", s.PixFmt)
		format = video.YV12
	}

	frames, err := strconv.Atoi(s.NbReadPackets)
	if err != nil {
		frames, err = strconv.Atoi(s.NbFrames)
		if err != nil {
			return Clip{}, fmt.Errorf("ffprobe reported no frame count")
		}
	}

	rate := s.AvgFrameRate
	if rate == "" || rate == "0/0" {
		rate = "25"
	}

	return Clip{
		Info: video.Info{
			Width:     s.Width,
			Height:    s.Height,
			NumFrames: frames,
			Format:    format,
		},
		FrameRate: rate,
	}, nil
}
