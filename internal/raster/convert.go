// Package raster post-processes exported GeoTIFFs locally.
package raster

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/airbusgeo/godal"
	"github.com/sirupsen/logrus"
)

var (
	ErrUnknownFormat  = errors.New("unknown output format")
	ErrInvalidStretch = errors.New("invalid stretch range")
)

var formats = map[string]struct {
	driver string
	ext    string
}{
	"png":  {"PNG", "png"},
	"jpg":  {"JPEG", "jpg"},
	"jpeg": {"JPEG", "jpg"},
	"webp": {"WEBP", "webp"},
	"bmp":  {"BMP", "bmp"},
	"tif":  {"GTiff", "tif"},
	"tiff": {"GTiff", "tif"},
}

type ConvertOptions struct {
	Format    string
	OutputDir string
	// Channels are the 1-indexed source bands mapped to red, green and blue.
	Channels [3]int
	// Min and Max stretch source values onto 0-255. When nil the range is
	// taken from the data.
	Min *float64
	Max *float64
}

func DefaultConvertOptions() ConvertOptions {
	return ConvertOptions{Format: "png", OutputDir: "out", Channels: [3]int{1, 2, 3}}
}

// Convert writes src as an 8-bit RGB image in opts.Format and returns the
// output path, <OutputDir>/<name root>.<ext>. A missing .tif suffix on src
// is added.
func Convert(src string, opts ConvertOptions) (dst string, err error) {
	format, ok := formats[strings.ToLower(opts.Format)]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, opts.Format)
	}
	if (opts.Min == nil) != (opts.Max == nil) {
		return "", fmt.Errorf("%w: min and max must be given together", ErrInvalidStretch)
	}
	if opts.Min != nil && *opts.Min == *opts.Max {
		return "", fmt.Errorf("%w: min and max are both %v", ErrInvalidStretch, *opts.Min)
	}
	if !strings.HasSuffix(src, ".tif") {
		src += ".tif"
	}

	godal.RegisterAll()
	ds, err := godal.Open(src)
	if err != nil {
		return "", err
	}
	defer func() {
		err = errors.Join(err, ds.Close())
	}()

	nBands := len(ds.Bands())
	for _, c := range opts.Channels {
		if c < 1 || c > nBands {
			return "", fmt.Errorf("channel %d out of range, %s has %d bands", c, src, nBands)
		}
	}

	outDir := TrimSlash(opts.OutputDir)
	if outDir == "" {
		outDir = "."
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", err
	}
	dst = filepath.Join(outDir, FileNameRoot(src)+"."+format.ext)

	logrus.WithFields(logrus.Fields{"src": src, "dst": dst}).Info("Converting GeoTIFF")
	out, err := ds.Translate(dst, translateSwitches(format.driver, opts))
	if err != nil {
		return "", fmt.Errorf("translate %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	return dst, nil
}

func translateSwitches(driver string, opts ConvertOptions) []string {
	switches := []string{"-of", driver, "-ot", "Byte"}
	for _, c := range opts.Channels {
		switches = append(switches, "-b", strconv.Itoa(c))
	}
	switches = append(switches, "-scale")
	if opts.Min != nil && opts.Max != nil {
		switches = append(switches,
			strconv.FormatFloat(*opts.Min, 'f', -1, 64),
			strconv.FormatFloat(*opts.Max, 'f', -1, 64),
			"0", "255",
		)
	}
	return switches
}

func TrimSlash(path string) string {
	return strings.TrimSuffix(path, "/")
}

// FileNameRoot strips parent directories and the extension from path.
func FileNameRoot(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}
