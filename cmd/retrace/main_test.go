package main

import (
	"context"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const yamlScene = `
render:
  width: 16
  height: 12
  samples: 2
  workers: 3
  job_timeout: 1s
  retries: 1
camera:
  position: [0, 0, -5]
  look_at: [0, 0, 0]
  fov: 45
background: [0, 0, 0.3]
ambient: 0.2
spheres:
  - center: [0, 0, 0]
    radius: 1
    color: [1, 0.5, 0]
lights:
  - position: [3, 3, -3]
    intensity: 1
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFile(t *testing.T) {
	t.Run("yaml", func(t *testing.T) {
		cfg, err := LoadFile(writeFile(t, "scene.yaml", yamlScene))
		require.NoError(t, err)
		require.NoError(t, cfg.Validate())

		assert.Equal(t, 16, cfg.Render.Width)
		assert.Equal(t, 3, cfg.Render.Workers)
		assert.Equal(t, "1s", cfg.Render.JobTimeout)
		assert.Equal(t, [3]float64{0, 0, -5}, cfg.Camera.Position)
		assert.InDelta(t, 0.2, cfg.Ambient, 1e-9)
		require.Len(t, cfg.Spheres, 1)
		assert.InDelta(t, 1, cfg.Spheres[0].Radius, 1e-9)
		require.Len(t, cfg.Lights, 1)
		assert.Equal(t, uint64(1), cfg.Render.Seed, "seed kept from defaults")
	})

	t.Run("json", func(t *testing.T) {
		content := `{"render": {"width": 8, "height": 8}, "spheres": [{"center": [0,0,3], "radius": 1, "color": [1,1,1]}]}`
		cfg, err := LoadFile(writeFile(t, "scene.json", content))
		require.NoError(t, err)
		require.NoError(t, cfg.Validate())
		assert.Equal(t, 8, cfg.Render.Width)
		assert.Equal(t, 4, cfg.Render.Samples, "default samples")
	})

	t.Run("unsupported format", func(t *testing.T) {
		_, err := LoadFile(writeFile(t, "scene.toml", "x = 1"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported config format")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
	})

	t.Run("broken yaml", func(t *testing.T) {
		_, err := LoadFile(writeFile(t, "scene.yml", "render: [1, 2"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse YAML")
	})
}

func TestFileConfig_Validate(t *testing.T) {
	tbl := []struct {
		name   string
		modify func(c *FileConfig)
		errStr string
	}{
		{"defaults valid", func(*FileConfig) {}, ""},
		{"zero width", func(c *FileConfig) { c.Render.Width = 0 }, "must be positive"},
		{"negative workers", func(c *FileConfig) { c.Render.Workers = -1 }, "render.workers"},
		{"negative samples", func(c *FileConfig) { c.Render.Samples = -1 }, "render.samples"},
		{"negative retries", func(c *FileConfig) { c.Render.Retries = -1 }, "render.retries"},
		{"bad timeout", func(c *FileConfig) { c.Render.JobTimeout = "soon" }, "render.job_timeout"},
		{"no spheres", func(c *FileConfig) { c.Spheres = nil }, "no spheres"},
		{"bad radius", func(c *FileConfig) { c.Spheres[1].Radius = 0 }, "sphere 1"},
	}
	for _, tt := range tbl {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.errStr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errStr)
		})
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	cfg, err := loadConfig(options{workers: 7, samples: 9, width: 10, height: 20})
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Render.Workers)
	assert.Equal(t, 9, cfg.Render.Samples)
	assert.Equal(t, 10, cfg.Render.Width)
	assert.Equal(t, 20, cfg.Render.Height)

	_, err = loadConfig(options{config: writeFile(t, "empty.yaml", "render: {width: 4, height: 4}")})
	require.Error(t, err, "file without spheres")
	assert.Contains(t, err.Error(), "invalid config")
}

func TestMakeRenderer(t *testing.T) {
	cfg := DefaultConfig()
	r, err := makeRenderer(cfg, slog.Default())
	require.NoError(t, err)
	assert.Len(t, r.Middlewares, 2, "recovery and validator")

	cfg.Render.Retries = 2
	cfg.Render.JobTimeout = "100ms"
	r, err = makeRenderer(cfg, slog.Default())
	require.NoError(t, err)
	assert.Len(t, r.Middlewares, 4)

	t.Run("chain renders and validates", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Render.Width, cfg.Render.Height, cfg.Render.Workers = 8, 6, 2
		cfg.Render.Retries = 1
		r, err := makeRenderer(cfg, slog.New(slog.DiscardHandler))
		require.NoError(t, err)
		vp, err := cfg.ViewPlane()
		require.NoError(t, err)

		res, err := r.Render(context.Background(), cfg.Scene(), vp)
		require.NoError(t, err)
		assert.Equal(t, 48, res.Pixels)
		assert.Equal(t, 48, res.Stats.Processed)
		assert.Equal(t, 0, res.Stats.Errors, "every pixel job passed validation")
	})
}

func TestRun(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.png")
	opts := options{config: writeFile(t, "scene.yaml", yamlScene), out: out}
	logger := slog.New(slog.DiscardHandler)

	require.NoError(t, run(context.Background(), opts, logger))

	fh, err := os.Open(out) //nolint:gosec // test file
	require.NoError(t, err)
	defer fh.Close()
	img, err := png.Decode(fh)
	require.NoError(t, err)
	assert.Equal(t, 16, img.Bounds().Dx())
	assert.Equal(t, 12, img.Bounds().Dy())
}
