// Package config defines the settings shared by the ray cloud tools.
package config

import (
	"math"

	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/raycloud/density"
	"go.viam.com/raycloud/mesh"
	"go.viam.com/raycloud/raycloud"
)

// Failure policy names accepted by surfel.on_failure.
const (
	OnFailureSkip  = "skip"
	OnFailureAbort = "abort"
)

// Default values filled in by Ensure.
const (
	DefaultSpacingScale = 2.0
)

// A Config describes how the ray cloud operations are tuned.
type Config struct {
	ConfigFilePath string `json:"-"`

	ChunkSize       int           `json:"chunk_size,omitempty"`
	SpacingExponent float64       `json:"spacing_exponent,omitempty"`
	Surfel          SurfelConfig  `json:"surfel"`
	Mesh            MeshConfig    `json:"mesh"`
	Density         DensityConfig `json:"density"`
	Debug           bool          `json:"debug,omitempty"`

	// LogFile, when set, also receives every log line as JSON.
	LogFile string `json:"log_file,omitempty"`
}

// SurfelConfig tunes surfel estimation.
type SurfelConfig struct {
	Neighbours int    `json:"neighbours,omitempty"`
	OnFailure  string `json:"on_failure,omitempty"`
}

// MeshConfig tunes mesh classification.
type MeshConfig struct {
	VoxelWidth float64 `json:"voxel_width,omitempty"`
}

// DensityConfig tunes density volumes and their renders.
type DensityConfig struct {
	// MinRays of zero or below disables neighbour priors.
	MinRays *float64 `json:"min_rays,omitempty"`
	// PixelWidth of zero estimates the width from the point spacing.
	PixelWidth   float64 `json:"pixel_width,omitempty"`
	SpacingScale float64 `json:"spacing_scale,omitempty"`
}

// Default returns a config with every default filled in.
func Default() *Config {
	cfg := &Config{}
	cfg.Ensure()
	return cfg
}

// Ensure fills in defaults for any unset field.
func (c *Config) Ensure() {
	if c.ChunkSize == 0 {
		c.ChunkSize = raycloud.DefaultChunkSize
	}
	if c.SpacingExponent == 0 {
		c.SpacingExponent = raycloud.DefaultSpacingExponent
	}
	if c.Surfel.Neighbours == 0 {
		c.Surfel.Neighbours = raycloud.DefaultSurfelNeighbours
	}
	if c.Surfel.OnFailure == "" {
		c.Surfel.OnFailure = OnFailureSkip
	}
	if c.Mesh.VoxelWidth == 0 {
		c.Mesh.VoxelWidth = mesh.DefaultVoxelWidth
	}
	if c.Density.MinRays == nil {
		minRays := float64(density.DefaultMinRays)
		c.Density.MinRays = &minRays
	}
	if c.Density.SpacingScale == 0 {
		c.Density.SpacingScale = DefaultSpacingScale
	}
}

// Validate returns an error if the config holds values no operation can run with.
func (c *Config) Validate(path string) error {
	if c.ChunkSize < 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("chunk_size must be positive, got %d", c.ChunkSize))
	}
	if !positiveFinite(c.SpacingExponent) {
		return utils.NewConfigValidationError(path, errors.Errorf("spacing_exponent must be positive, got %v", c.SpacingExponent))
	}
	if err := c.Surfel.Validate(path + ".surfel"); err != nil {
		return err
	}
	if err := c.Mesh.Validate(path + ".mesh"); err != nil {
		return err
	}
	return c.Density.Validate(path + ".density")
}

// Validate ensures all parts of the surfel config are valid.
func (s *SurfelConfig) Validate(path string) error {
	if s.Neighbours < 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("neighbours must be positive, got %d", s.Neighbours))
	}
	switch s.OnFailure {
	case "":
		return utils.NewConfigValidationFieldRequiredError(path, "on_failure")
	case OnFailureSkip, OnFailureAbort:
		return nil
	default:
		return utils.NewConfigValidationError(path,
			errors.Errorf("on_failure must be %q or %q, got %q", OnFailureSkip, OnFailureAbort, s.OnFailure))
	}
}

// Validate ensures all parts of the mesh config are valid.
func (m *MeshConfig) Validate(path string) error {
	if !positiveFinite(m.VoxelWidth) {
		return utils.NewConfigValidationError(path, errors.Errorf("voxel_width must be positive, got %v", m.VoxelWidth))
	}
	return nil
}

// Validate ensures all parts of the density config are valid.
func (d *DensityConfig) Validate(path string) error {
	if d.MinRays == nil {
		return utils.NewConfigValidationFieldRequiredError(path, "min_rays")
	}
	if math.IsNaN(*d.MinRays) || math.IsInf(*d.MinRays, 0) {
		return utils.NewConfigValidationError(path, errors.Errorf("min_rays must be finite, got %v", *d.MinRays))
	}
	if d.PixelWidth < 0 || math.IsNaN(d.PixelWidth) || math.IsInf(d.PixelWidth, 0) {
		return utils.NewConfigValidationError(path, errors.Errorf("pixel_width must not be negative, got %v", d.PixelWidth))
	}
	if !positiveFinite(d.SpacingScale) {
		return utils.NewConfigValidationError(path, errors.Errorf("spacing_scale must be positive, got %v", d.SpacingScale))
	}
	return nil
}

func positiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}

// SurfelOptions converts the surfel settings. The searcher, drawer and progress
// are left for the caller.
func (c *Config) SurfelOptions() raycloud.SurfelOptions {
	opts := raycloud.SurfelOptions{Neighbours: c.Surfel.Neighbours}
	if c.Surfel.OnFailure == OnFailureAbort {
		opts.OnFailure = raycloud.AbortOnFailure
	}
	return opts
}

// SpacingOptions converts the spacing settings.
func (c *Config) SpacingOptions() raycloud.SpacingOptions {
	return raycloud.SpacingOptions{Exponent: c.SpacingExponent, ChunkSize: c.ChunkSize}
}

// MeshOptions converts the mesh settings.
func (c *Config) MeshOptions() mesh.Options {
	return mesh.Options{VoxelWidth: c.Mesh.VoxelWidth}
}

// RenderOptions converts the density settings. A zero PixelWidth must be
// replaced by the caller, usually with PixelWidthForSpacing.
func (c *Config) RenderOptions(view density.ViewDirection, style density.Style) density.RenderOptions {
	minRays := float32(density.DefaultMinRays)
	if c.Density.MinRays != nil {
		minRays = float32(*c.Density.MinRays)
	}
	return density.RenderOptions{
		View:       view,
		Style:      style,
		PixelWidth: c.Density.PixelWidth,
		MinRays:    minRays,
		ChunkSize:  c.ChunkSize,
	}
}

// PixelWidthForSpacing returns the configured pixel width, or the point spacing
// scaled by spacing_scale when none is configured.
func (c *Config) PixelWidthForSpacing(spacing float64) float64 {
	if c.Density.PixelWidth > 0 {
		return c.Density.PixelWidth
	}
	return spacing * c.Density.SpacingScale
}
