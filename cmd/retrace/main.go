// Command retrace renders a sphere scene with one pool job per pixel and writes a PNG.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-pkgz/jobpool"
	"github.com/go-pkgz/jobpool/middleware"
	"github.com/go-pkgz/jobpool/render"
)

type options struct {
	config  string
	out     string
	workers int
	samples int
	width   int
	height  int
	json    bool
	debug   bool
}

func main() {
	opts := parseFlags()
	logger := setupLogger(opts)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, opts, logger); err != nil {
		logger.Error("render failed", "error", err)
		cancel()
		os.Exit(1) //nolint:gocritic // cancel called above
	}
}

func parseFlags() options {
	var opts options
	flag.StringVar(&opts.config, "config", "", "scene file (YAML/JSON), built-in scene if empty")
	flag.StringVar(&opts.out, "out", "retrace.png", "output PNG file")
	flag.IntVar(&opts.workers, "workers", 0, "number of workers, overrides render.workers")
	flag.IntVar(&opts.samples, "samples", 0, "samples per pixel, overrides render.samples")
	flag.IntVar(&opts.width, "width", 0, "image width, overrides render.width")
	flag.IntVar(&opts.height, "height", 0, "image height, overrides render.height")
	flag.BoolVar(&opts.json, "json", false, "log in JSON format")
	flag.BoolVar(&opts.debug, "debug", false, "debug logging")
	flag.Parse()
	return opts
}

func setupLogger(opts options) *slog.Logger {
	level := slog.LevelInfo
	if opts.debug {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	if opts.json {
		return slog.New(slog.NewJSONHandler(os.Stderr, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, handlerOpts))
}

// loadConfig reads the scene file or takes the built-in one, then applies command line overrides
func loadConfig(opts options) (*FileConfig, error) {
	cfg := DefaultConfig()
	if opts.config != "" {
		var err error
		if cfg, err = LoadFile(opts.config); err != nil {
			return nil, err
		}
	}

	if opts.workers > 0 {
		cfg.Render.Workers = opts.workers
	}
	if opts.samples > 0 {
		cfg.Render.Samples = opts.samples
	}
	if opts.width > 0 {
		cfg.Render.Width = opts.width
	}
	if opts.height > 0 {
		cfg.Render.Height = opts.height
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// makeRenderer sets up the renderer with middlewares from the config
func makeRenderer(cfg *FileConfig, logger *slog.Logger) (render.Renderer, error) {
	timeout, err := cfg.jobTimeout()
	if err != nil {
		return render.Renderer{}, err
	}

	mws := []jobpool.Middleware{
		middleware.Recovery(func(p any) { logger.Error("pixel job panicked", "panic", p) }),
	}
	if cfg.Render.Retries > 0 {
		mws = append(mws, middleware.Retry(cfg.Render.Retries+1, 10*time.Millisecond))
	}
	if timeout > 0 {
		mws = append(mws, middleware.Timeout(timeout))
	}
	// innermost, validator has to see the job itself
	mws = append(mws, middleware.Validator(render.ValidateJob))

	return render.Renderer{
		Workers:     cfg.Render.Workers,
		Samples:     cfg.Render.Samples,
		Logger:      logger,
		Middlewares: mws,
	}, nil
}

func run(ctx context.Context, opts options, logger *slog.Logger) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	vp, err := cfg.ViewPlane()
	if err != nil {
		return fmt.Errorf("invalid camera: %w", err)
	}

	r, err := makeRenderer(cfg, logger)
	if err != nil {
		return err
	}

	logger.Info("rendering", "width", vp.Width, "height", vp.Height, "samples", cfg.Render.Samples,
		"spheres", len(cfg.Spheres))
	res, err := r.Render(ctx, cfg.Scene(), vp)
	if err != nil {
		return err
	}

	fh, err := os.Create(opts.out)
	if err != nil {
		return fmt.Errorf("can't create output file: %w", err)
	}
	if err := res.Image.WritePNG(fh); err != nil {
		_ = fh.Close()
		return fmt.Errorf("can't write image: %w", err)
	}
	if err := fh.Close(); err != nil {
		return fmt.Errorf("can't close output file: %w", err)
	}

	logger.Info("done", "file", opts.out, "pixels", res.Pixels, "stats", res.Stats.String(),
		"elapsed", res.Elapsed.Round(time.Millisecond))
	return nil
}
