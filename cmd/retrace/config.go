package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/go-pkgz/jobpool/render"
)

// FileConfig is the structure of the scene file
type FileConfig struct {
	Render     RenderConfig   `yaml:"render" json:"render"`
	Camera     CameraConfig   `yaml:"camera" json:"camera"`
	Background [3]float64     `yaml:"background" json:"background"`
	Ambient    float64        `yaml:"ambient" json:"ambient"`
	Spheres    []SphereConfig `yaml:"spheres" json:"spheres"`
	Lights     []LightConfig  `yaml:"lights" json:"lights"`
}

// RenderConfig holds output and pool settings
type RenderConfig struct {
	Width      int    `yaml:"width" json:"width"`
	Height     int    `yaml:"height" json:"height"`
	Samples    int    `yaml:"samples" json:"samples"`
	Workers    int    `yaml:"workers" json:"workers"`
	Seed       uint64 `yaml:"seed" json:"seed"`
	JobTimeout string `yaml:"job_timeout" json:"job_timeout"`
	Retries    int    `yaml:"retries" json:"retries"`
}

// CameraConfig describes the viewer
type CameraConfig struct {
	Position [3]float64 `yaml:"position" json:"position"`
	LookAt   [3]float64 `yaml:"look_at" json:"look_at"`
	Up       [3]float64 `yaml:"up" json:"up"`
	FOV      float64    `yaml:"fov" json:"fov"`
}

// SphereConfig is a single sphere
type SphereConfig struct {
	Center [3]float64 `yaml:"center" json:"center"`
	Radius float64    `yaml:"radius" json:"radius"`
	Color  [3]float64 `yaml:"color" json:"color"`
}

// LightConfig is a point light
type LightConfig struct {
	Position  [3]float64 `yaml:"position" json:"position"`
	Intensity float64    `yaml:"intensity" json:"intensity"`
}

// DefaultConfig returns the built-in scene, used without --config
func DefaultConfig() *FileConfig {
	return &FileConfig{
		Render: RenderConfig{Width: 320, Height: 240, Samples: 4, Seed: 1},
		Camera: CameraConfig{Position: [3]float64{0, 1, -4}, LookAt: [3]float64{0, 0.5, 0}, FOV: 60},
		Background: [3]float64{0.1, 0.1, 0.2},
		Ambient:    0.1,
		Spheres: []SphereConfig{
			{Center: [3]float64{0, -100, 0}, Radius: 100, Color: [3]float64{0.8, 0.8, 0.8}},
			{Center: [3]float64{0, 1, 0}, Radius: 1, Color: [3]float64{0.9, 0.2, 0.2}},
			{Center: [3]float64{-2, 0.5, 1}, Radius: 0.5, Color: [3]float64{0.2, 0.9, 0.2}},
			{Center: [3]float64{2, 0.7, 0.5}, Radius: 0.7, Color: [3]float64{0.2, 0.2, 0.9}},
		},
		Lights: []LightConfig{{Position: [3]float64{-5, 8, -6}, Intensity: 0.9}},
	}
}

// LoadFile reads the scene file, YAML or JSON by extension. Missing render settings keep defaults.
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path from the command line
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	defaults := DefaultConfig()
	config := FileConfig{Render: defaults.Render, Camera: defaults.Camera, Background: defaults.Background}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}

	return &config, nil
}

// Validate checks the config
func (f *FileConfig) Validate() error {
	if f.Render.Width <= 0 || f.Render.Height <= 0 {
		return errors.New("render.width and render.height must be positive")
	}
	if f.Render.Samples < 0 {
		return errors.New("render.samples must be non-negative")
	}
	if f.Render.Workers < 0 {
		return errors.New("render.workers must be non-negative")
	}
	if f.Render.Retries < 0 {
		return errors.New("render.retries must be non-negative")
	}
	if _, err := f.jobTimeout(); err != nil {
		return err
	}
	if len(f.Spheres) == 0 {
		return errors.New("scene has no spheres")
	}
	for i, s := range f.Spheres {
		if s.Radius <= 0 {
			return fmt.Errorf("sphere %d: radius must be positive", i)
		}
	}
	return nil
}

func (f *FileConfig) jobTimeout() (time.Duration, error) {
	if f.Render.JobTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(f.Render.JobTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid render.job_timeout: %w", err)
	}
	return d, nil
}

// Scene converts the config to a render scene
func (f *FileConfig) Scene() *render.Scene {
	res := &render.Scene{Background: toColor(f.Background), Ambient: f.Ambient}
	for _, s := range f.Spheres {
		res.Spheres = append(res.Spheres, render.Sphere{Center: toVec(s.Center), Radius: s.Radius, Color: toColor(s.Color)})
	}
	for _, l := range f.Lights {
		res.Lights = append(res.Lights, render.Light{Position: toVec(l.Position), Intensity: l.Intensity})
	}
	return res
}

// ViewPlane makes the view plane for the configured camera and image size
func (f *FileConfig) ViewPlane() (*render.ViewPlane, error) {
	cam := render.Camera{
		Position: toVec(f.Camera.Position),
		LookAt:   toVec(f.Camera.LookAt),
		Up:       toVec(f.Camera.Up),
		FOV:      f.Camera.FOV,
	}
	return render.NewViewPlane(cam, f.Render.Width, f.Render.Height, f.Render.Seed)
}

func toVec(v [3]float64) render.Vec3 { return render.Vec3{X: v[0], Y: v[1], Z: v[2]} }

func toColor(v [3]float64) render.Color { return render.Color{R: v[0], G: v[1], B: v[2]} }
