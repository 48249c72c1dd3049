package render

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"runtime"
	"time"

	"github.com/go-pkgz/jobpool"
	"github.com/go-pkgz/jobpool/metrics"
)

// PixelTask computes the color of a single pixel and stores it in the image
func PixelTask(scene *Scene, img *Image, vp *ViewPlane, pt Point, numOfSamples int) {
	c := vp.ComputePixel(scene, pt.X, pt.Y, numOfSamples)
	img.Set(pt.X, pt.Y, c)
}

// RetraceJob renders one pixel, implements jobpool.Job
type RetraceJob struct {
	scene        *Scene
	image        *Image
	viewPlane    *ViewPlane
	point        Point
	numOfSamples int
}

// NewRetraceJob makes a job rendering the pixel at point
func NewRetraceJob(scene *Scene, img *Image, vp *ViewPlane, point Point, numOfSamples int) *RetraceJob {
	return &RetraceJob{scene: scene, image: img, viewPlane: vp, point: point, numOfSamples: numOfSamples}
}

// Execute renders the pixel. The job can't fail, a canceled context only skips it.
func (j *RetraceJob) Execute(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	PixelTask(j.scene, j.image, j.viewPlane, j.point, j.numOfSamples)
	metrics.Get(ctx).Inc(metricPixels)
	return nil
}

// Validate checks the job has everything to render and its pixel is inside both the image and the view plane
func (j *RetraceJob) Validate() error {
	if j.scene == nil || j.image == nil || j.viewPlane == nil {
		return errors.New("incomplete job, scene, image and view plane required")
	}
	if j.numOfSamples < 0 {
		return fmt.Errorf("negative number of samples %d", j.numOfSamples)
	}
	pt := j.point
	if pt.X < 0 || pt.Y < 0 || pt.X >= j.viewPlane.Width || pt.Y >= j.viewPlane.Height {
		return fmt.Errorf("pixel %d:%d outside of view plane %dx%d", pt.X, pt.Y, j.viewPlane.Width, j.viewPlane.Height)
	}
	if b := j.image.Bounds(); !image.Pt(pt.X, pt.Y).In(b) {
		return fmt.Errorf("pixel %d:%d outside of image %v", pt.X, pt.Y, b)
	}
	return nil
}

// ValidateJob checks a job before it runs, for use with middleware.Validator.
// Anything but a RetraceJob is rejected.
func ValidateJob(job jobpool.Job) error {
	rj, ok := job.(*RetraceJob)
	if !ok {
		return fmt.Errorf("unexpected job type %T", job)
	}
	return rj.Validate()
}

const metricPixels = "pixels"

// Renderer splits an image into per-pixel jobs and runs them on a job pool
type Renderer struct {
	Workers     int // number of workers, NumCPU if 0
	Samples     int // samples per pixel
	Logger      *slog.Logger
	Middlewares []jobpool.Middleware
}

// Result of a render
type Result struct {
	Image   *Image
	Stats   metrics.Stats
	Pixels  int
	Elapsed time.Duration
}

// Render renders the scene as seen through the view plane. All jobs are queued first, then the
// pool is joined and returns once every pixel is done.
func (r Renderer) Render(ctx context.Context, scene *Scene, vp *ViewPlane) (Result, error) {
	workers := r.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	logger := r.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	st := time.Now()
	img := NewImage(vp.Width, vp.Height)
	p := jobpool.New(workers, jobpool.WithLogger(logger)).Use(r.Middlewares...)
	for y := range vp.Height {
		for x := range vp.Width {
			if err := p.AddJob(NewRetraceJob(scene, img, vp, Point{X: x, Y: y}, r.Samples)); err != nil {
				return Result{}, fmt.Errorf("can't queue pixel %d:%d: %w", x, y, err)
			}
		}
	}
	logger.DebugContext(ctx, "render queued", slog.Int("pixels", vp.Width*vp.Height), slog.Int("workers", workers))

	if err := p.Join(ctx); err != nil {
		return Result{}, fmt.Errorf("render failed: %w", err)
	}
	return Result{
		Image:   img,
		Stats:   p.Metrics().GetStats(),
		Pixels:  p.Metrics().Get(metricPixels),
		Elapsed: time.Since(st),
	}, nil
}
