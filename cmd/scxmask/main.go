package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/lmittmann/tint"

	"github.com/bdougie/scxmask/internal/config"
	"github.com/bdougie/scxmask/internal/extractor"
	"github.com/bdougie/scxmask/internal/filter"
	"github.com/bdougie/scxmask/internal/processor"
	"github.com/bdougie/scxmask/internal/storage"
	"github.com/bdougie/scxmask/internal/video"
)

const usage = `Usage: scxmask --log xvid.stats (--clip source.mp4 | --width W --height H) [options]

  --offset N         added to each output frame before the log lookup (default 0)
  --strict           fail on frames outside the log instead of writing black
  --frames N         number of frames to write (default: clip or log length)
  --format F         pixel format: y8 yv12 i420 yv16 yv24 yuy2 rgb24 rgb32 (default yv12)
  --rate R           frame rate passed to ffmpeg (default 25 or the clip's rate)
  --output PATH      raw frames, '-' for stdout, or a .mp4/.mkv/.avi/.mov/.webm to encode
  --workers N        concurrent frame requests (default 4)
  --results DIR      write mask_results.json under DIR
  --database-url URL record mask results in PostgreSQL
  --config FILE      YAML file with the same settings
  --log-level L      debug, info, warn or error (default info)`

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "scxmask:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, usage)
		return err
	}

	level, _ := cfg.Level()
	logger := slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: "15:04:05",
		}),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	info, rate, err := clipInfo(ctx, cfg, logger)
	if err != nil {
		return err
	}

	env := filter.NewEnvironment(logger)
	if _, err := env.LoadPlugin(filter.Register); err != nil {
		return err
	}

	named := map[string]any{
		"offset": cfg.Offset,
		"strict": cfg.Strict,
	}
	if cfg.LogPath != "" {
		named["path"] = cfg.LogPath
	}
	clip, err := env.Invoke(filter.FunctionName, filter.BlankClip{VI: info}, named)
	if err != nil {
		return err
	}

	count := frameCount(cfg, info, clip)
	logger.Info("mask filter ready",
		"log", cfg.LogPath,
		"offset", cfg.Offset,
		"strict", cfg.Strict,
		"size", fmt.Sprintf("%dx%d", info.Width, info.Height),
		"format", info.Format.String(),
		"frames", count,
	)

	sink, err := openSink(ctx, cfg.Output, info, rate, logger)
	if err != nil {
		return err
	}

	store, closeStore, err := openStorage(ctx, cfg, logger)
	if err != nil {
		sink.Close()
		return err
	}
	defer closeStore()

	p := processor.NewProcessor(env, filter.FunctionName, clip, sink,
		processor.WithWorkers(cfg.Workers),
		processor.WithStorage(store),
		processor.WithLogger(logger),
	)
	procErr := p.Process(ctx, 0, count)
	if err := sink.Close(); err != nil && procErr == nil {
		procErr = err
	}
	return procErr
}

func clipInfo(ctx context.Context, cfg config.Config, logger *slog.Logger) (video.Info, string, error) {
	if cfg.Clip != "" {
		probed, err := extractor.ProbeClip(ctx, cfg.Clip, logger)
		if err != nil {
			return video.Info{}, "", err
		}
		logger.Debug("clip probed", "clip", cfg.Clip, "frames", probed.Info.NumFrames, "rate", probed.FrameRate)
		rate := probed.FrameRate
		if cfg.FrameRate != config.DefaultRate {
			rate = cfg.FrameRate
		}
		return probed.Info, rate, nil
	}

	format, err := video.ParsePixelFormat(cfg.Format)
	if err != nil {
		return video.Info{}, "", err
	}
	return video.Info{
		Width:     cfg.Width,
		Height:    cfg.Height,
		NumFrames: cfg.Frames,
		Format:    format,
	}, cfg.FrameRate, nil
}

// frameCount prefers an explicit --frames, then the clip, then the log
func frameCount(cfg config.Config, info video.Info, clip filter.Clip) int {
	if cfg.Frames > 0 {
		return cfg.Frames
	}
	if info.NumFrames > 0 {
		return info.NumFrames
	}
	if m, ok := clip.(*filter.ScxMask); ok {
		return m.Generator().Len()
	}
	return 0
}

func openSink(ctx context.Context, output string, info video.Info, rate string, logger *slog.Logger) (processor.FrameSink, error) {
	switch {
	case output == "" || output == "-":
		return processor.NewRawSink(nopCloser{os.Stdout}), nil
	case extractor.IsContainer(output):
		return extractor.NewEncoder(ctx, info, rate, output, logger)
	default:
		if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
		f, err := os.Create(output)
		if err != nil {
			return nil, err
		}
		return processor.NewRawSink(f), nil
	}
}

func openStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) (storage.Storage, func(), error) {
	switch {
	case cfg.DatabaseURL != "":
		if err := storage.InitSchema(ctx, cfg.DatabaseURL); err != nil {
			return nil, nil, err
		}
		pg, err := storage.NewPostgresStorage(ctx, cfg.DatabaseURL, cfg.LogPath)
		if err != nil {
			return nil, nil, err
		}
		return pg, func() {
			if err := pg.Close(); err != nil {
				logger.Error("closing database", "error", err)
			}
		}, nil
	case cfg.ResultsDir != "":
		name := strings.TrimSuffix(filepath.Base(cfg.LogPath), filepath.Ext(cfg.LogPath))
		fs := storage.NewFileStorage(cfg.ResultsDir, name)
		logger.Debug("writing mask results", "path", fs.Path())
		return fs, func() {}, nil
	default:
		return storage.Discard{}, func() {}, nil
	}
}

// nopCloser keeps stdout open after the sink is closed
type nopCloser struct {
	*os.File
}

func (nopCloser) Close() error { return nil }
