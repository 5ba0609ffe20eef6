package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// samePath returns true if abs(path1) and abs(path2) are the same.
func samePath(path1, path2 string) (bool, error) {
	abs1, err := filepath.Abs(path1)
	if err != nil {
		return false, err
	}
	abs2, err := filepath.Abs(path2)
	if err != nil {
		return false, err
	}
	return abs1 == abs2, nil
}

// checkOutput refuses to overwrite the input and makes sure the directory of
// the output exists.
func checkOutput(input, output string) error {
	same, err := samePath(input, output)
	if err != nil {
		return err
	}
	if same {
		return errors.Errorf("output %q would overwrite the input", output)
	}
	dir := filepath.Dir(output)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return errors.Wrap(err, fmt.Sprintf("could not create directory: %s", dir))
	}
	info, err := os.Stat(dir)
	if err != nil {
		return errors.Wrap(err, fmt.Sprintf("could not stat directory: %s", dir))
	}
	if !info.IsDir() {
		return fmt.Errorf("resolved path is not a directory: %s", dir)
	}
	return nil
}

// trimExt returns path without its extension.
func trimExt(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path))
}

// vectorFromValues accepts one value, applied to x and y with z left at zero,
// or three values.
func vectorFromValues(name string, values []float64) (r3.Vector, error) {
	switch len(values) {
	case 0:
		return r3.Vector{}, nil
	case 1:
		return r3.Vector{X: values[0], Y: values[0]}, nil
	case 3:
		return r3.Vector{X: values[0], Y: values[1], Z: values[2]}, nil
	default:
		return r3.Vector{}, errors.Errorf("%s takes 1 or 3 values, got %d", name, len(values))
	}
}
