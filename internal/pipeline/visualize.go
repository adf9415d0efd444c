package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"

	geojson "github.com/paulmach/go.geojson"
	"github.com/sirupsen/logrus"

	"utiligee/internal/ee"
	"utiligee/internal/geometry"
)

var ErrInvalidVis = errors.New("invalid visualization parameters")

type VisParams struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

func NewVisParams(min, max float64) (VisParams, error) {
	if math.IsNaN(min) || math.IsNaN(max) || math.IsInf(min, 0) || math.IsInf(max, 0) {
		return VisParams{}, fmt.Errorf("%w: min and max must be finite", ErrInvalidVis)
	}
	if min >= max {
		return VisParams{}, fmt.Errorf("%w: min %v is not below max %v", ErrInvalidVis, min, max)
	}
	return VisParams{Min: min, Max: max}, nil
}

type ViewOptions struct {
	// MaxError is the centroid tolerance in meters.
	MaxError float64
	Zoom     int
	Vis      VisParams
	Label    string
}

func DefaultViewOptions() ViewOptions {
	return ViewOptions{
		MaxError: 1,
		Zoom:     10,
		Vis:      VisParams{Min: 0.0, Max: 255.0},
		Label:    "True Color",
	}
}

// View is what the map shows: where it is centered and the one layer on it.
type View struct {
	Center geometry.LatLng   `json:"center"`
	Zoom   int               `json:"zoom"`
	Layer  ee.MapLayer       `json:"layer"`
	Region *geojson.Geometry `json:"region,omitempty"`
}

// Visualize centers the map on the platform-computed centroid of region and
// adds img clipped to region (not to the centroid) as a layer. Its output
// feeds nothing downstream.
func Visualize(ctx context.Context, s ee.Session, region geometry.Region, img Image, opts ViewOptions) (View, error) {
	if opts.Zoom < 0 || opts.Zoom > 24 {
		return View{}, fmt.Errorf("zoom %d out of range [0, 24]", opts.Zoom)
	}
	value, err := s.ComputeValue(ctx, region.CentroidNode(opts.MaxError))
	if err != nil {
		return View{}, fmt.Errorf("centroid: %w", err)
	}
	center, err := geometry.PointFromValue(value)
	if err != nil {
		return View{}, fmt.Errorf("centroid: %w", err)
	}

	layer, err := s.CreateMap(ctx, img.Clip(region).Node(), ee.VisParams(opts.Vis), opts.Label)
	if err != nil {
		return View{}, fmt.Errorf("add layer %q: %w", opts.Label, err)
	}
	logrus.WithFields(logrus.Fields{
		"lat":   center.Lat,
		"lng":   center.Lng,
		"zoom":  opts.Zoom,
		"layer": layer.ID,
	}).Info("Map view ready")

	return View{Center: center, Zoom: opts.Zoom, Layer: layer, Region: region.Geometry()}, nil
}
