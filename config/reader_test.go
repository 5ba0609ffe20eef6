package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/edaniels/golog"
	"go.viam.com/test"

	"go.viam.com/raycloud/density"
	"go.viam.com/raycloud/raycloud"
)

func TestDefaults(t *testing.T) {
	logger := golog.NewTestLogger(t)
	cfg, err := FromReader("", strings.NewReader("{}"), logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.ChunkSize, test.ShouldEqual, 1000000)
	test.That(t, cfg.SpacingExponent, test.ShouldEqual, 2.0)
	test.That(t, cfg.Surfel.Neighbours, test.ShouldEqual, 16)
	test.That(t, cfg.Surfel.OnFailure, test.ShouldEqual, OnFailureSkip)
	test.That(t, cfg.Mesh.VoxelWidth, test.ShouldEqual, 1.0)
	test.That(t, *cfg.Density.MinRays, test.ShouldEqual, 10.0)
	test.That(t, cfg.Density.PixelWidth, test.ShouldEqual, 0.0)
	test.That(t, cfg.Density.SpacingScale, test.ShouldEqual, 2.0)
	test.That(t, cfg.Debug, test.ShouldBeFalse)

	test.That(t, Default(), test.ShouldResemble, cfg)
}

func TestFromReader(t *testing.T) {
	logger := golog.NewTestLogger(t)
	cfg, err := FromReader("in-memory", strings.NewReader(`{
		"chunk_size": 500,
		"surfel": {"neighbours": 8, "on_failure": "abort"},
		"mesh": {"voxel_width": 0.25},
		"density": {"min_rays": -1, "pixel_width": 0.1},
		"debug": true,
		"log_file": "/tmp/raycloud.log"
	}`), logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.ConfigFilePath, test.ShouldEqual, "in-memory")
	test.That(t, cfg.Debug, test.ShouldBeTrue)
	test.That(t, cfg.LogFile, test.ShouldEqual, "/tmp/raycloud.log")

	surfel := cfg.SurfelOptions()
	test.That(t, surfel.Neighbours, test.ShouldEqual, 8)
	test.That(t, surfel.OnFailure, test.ShouldEqual, raycloud.AbortOnFailure)

	spacing := cfg.SpacingOptions()
	test.That(t, spacing.ChunkSize, test.ShouldEqual, 500)
	test.That(t, spacing.Exponent, test.ShouldEqual, 2.0)

	test.That(t, cfg.MeshOptions().VoxelWidth, test.ShouldEqual, 0.25)

	render := cfg.RenderOptions(density.ViewFront, density.StyleGradient)
	test.That(t, render.View, test.ShouldEqual, density.ViewFront)
	test.That(t, render.Style, test.ShouldEqual, density.StyleGradient)
	test.That(t, render.MinRays, test.ShouldEqual, float32(-1))
	test.That(t, render.ChunkSize, test.ShouldEqual, 500)
	test.That(t, cfg.PixelWidthForSpacing(3), test.ShouldEqual, 0.1)

	cfg.Density.PixelWidth = 0
	test.That(t, cfg.PixelWidthForSpacing(3), test.ShouldEqual, 6.0)
}

func TestFromReaderErrors(t *testing.T) {
	logger := golog.NewTestLogger(t)
	for _, tc := range []struct {
		name  string
		input string
		err   string
	}{
		{"not json", "{", "failed to decode Config from json"},
		{"unknown field", `{"chunks": 3}`, "failed to decode Config from json"},
		{"negative chunk", `{"chunk_size": -3}`, "chunk_size must be positive"},
		{"negative exponent", `{"spacing_exponent": -1}`, "spacing_exponent must be positive"},
		{"bad policy", `{"surfel": {"on_failure": "retry"}}`, "on_failure must be"},
		{"negative neighbours", `{"surfel": {"neighbours": -2}}`, "neighbours must be positive"},
		{"negative voxel", `{"mesh": {"voxel_width": -1}}`, "voxel_width must be positive"},
		{"negative pixel", `{"density": {"pixel_width": -0.5}}`, "pixel_width must not be negative"},
		{"negative scale", `{"density": {"spacing_scale": -2}}`, "spacing_scale must be positive"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := FromReader("", strings.NewReader(tc.input), logger)
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, err.Error(), test.ShouldContainSubstring, tc.err)
		})
	}
}

func TestValidateRequiredFields(t *testing.T) {
	cfg := Default()
	cfg.Surfel.OnFailure = ""
	err := cfg.Validate("config")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "on_failure")

	cfg = Default()
	cfg.Density.MinRays = nil
	err = cfg.Validate("config")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "min_rays")
}

func TestReadSubstitutesEnvironment(t *testing.T) {
	logger := golog.NewTestLogger(t)
	t.Setenv("RAYCLOUD_TEST_CHUNK", "2048")

	path := filepath.Join(t.TempDir(), "raycloud.json")
	test.That(t, os.WriteFile(path, []byte(`{"chunk_size": ${RAYCLOUD_TEST_CHUNK}}`), 0o600), test.ShouldBeNil)

	cfg, err := Read(path, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.ChunkSize, test.ShouldEqual, 2048)
	test.That(t, cfg.ConfigFilePath, test.ShouldEqual, path)

	_, err = Read(filepath.Join(t.TempDir(), "missing.json"), logger)
	test.That(t, err, test.ShouldNotBeNil)
}
