// Package geometry holds the caller-supplied region that the pipeline
// clips, exports and centers on. The region is external input: it comes
// from a GeoJSON document or a bounding box and is only validated here.
package geometry

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/golang/geo/s2"
	geojson "github.com/paulmach/go.geojson"

	"utiligee/internal/expr"
)

var (
	ErrEmptyRegion       = errors.New("empty region")
	ErrUnsupportedType   = errors.New("unsupported geometry type")
	ErrInvalidCoordinate = errors.New("invalid coordinate")
)

// DefaultBounds is the lower Manhattan rectangle used when no region is given.
var DefaultBounds = [4]float64{-74.02065034469021, 40.7175360876491, -73.96855111678494, 40.69053317927286}

type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Region is a validated Polygon, MultiPolygon or Point.
type Region struct {
	geom   *geojson.Geometry
	bounds *[4]float64
}

// Load reads a GeoJSON file holding a Feature, a single-feature
// FeatureCollection or a bare Geometry.
func Load(path string) (Region, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Region{}, err
	}
	r, err := FromGeoJSON(data)
	if err != nil {
		return Region{}, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

func FromGeoJSON(data []byte) (Region, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return Region{}, err
	}

	var geom *geojson.Geometry
	switch probe.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return Region{}, err
		}
		if len(fc.Features) != 1 {
			return Region{}, fmt.Errorf("feature collection has %d features, want 1", len(fc.Features))
		}
		geom = fc.Features[0].Geometry
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return Region{}, err
		}
		geom = f.Geometry
	default:
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return Region{}, err
		}
		geom = g
	}
	return FromGeometry(geom)
}

func FromGeometry(geom *geojson.Geometry) (Region, error) {
	if geom == nil {
		return Region{}, ErrEmptyRegion
	}
	r := Region{geom: geom}
	if err := r.validate(); err != nil {
		return Region{}, err
	}
	return r, nil
}

// FromBounds builds a rectangle from two opposite corners. The corners may
// be given in any order; the region always holds the minimum corner first.
func FromBounds(xmin, ymin, xmax, ymax float64) (Region, error) {
	x0, x1 := math.Min(xmin, xmax), math.Max(xmin, xmax)
	y0, y1 := math.Min(ymin, ymax), math.Max(ymin, ymax)
	ring := [][]float64{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}, {x0, y0}}
	r, err := FromGeometry(geojson.NewPolygonGeometry([][][]float64{ring}))
	if err != nil {
		return Region{}, err
	}
	r.bounds = &[4]float64{x0, y0, x1, y1}
	return r, nil
}

// ParseBounds parses "xmin,ymin,xmax,ymax" (commas or spaces).
func ParseBounds(s string) (Region, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
	if len(fields) != 4 {
		return Region{}, fmt.Errorf("region %q: want 4 values xmin,ymin,xmax,ymax, got %d", s, len(fields))
	}
	var v [4]float64
	for i, f := range fields {
		x, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return Region{}, fmt.Errorf("region %q: %w", s, err)
		}
		v[i] = x
	}
	return FromBounds(v[0], v[1], v[2], v[3])
}

func (r Region) Geometry() *geojson.Geometry {
	return r.geom
}

func (r Region) IsZero() bool {
	return r.geom == nil
}

// Node is the region as a platform geometry constructor.
func (r Region) Node() *expr.Node {
	if r.bounds != nil {
		return expr.Invoke("GeometryConstructors.Rectangle", expr.Args{
			"coordinates": expr.Constant(r.bounds[:]),
		})
	}
	switch r.geom.Type {
	case geojson.GeometryPoint:
		return expr.Invoke("GeometryConstructors.Point", expr.Args{
			"coordinates": expr.Constant(r.geom.Point),
		})
	case geojson.GeometryMultiPolygon:
		return expr.Invoke("GeometryConstructors.MultiPolygon", expr.Args{
			"coordinates": expr.Constant(r.geom.MultiPolygon),
		})
	default:
		return expr.Invoke("GeometryConstructors.Polygon", expr.Args{
			"coordinates": expr.Constant(r.geom.Polygon),
		})
	}
}

// CentroidNode asks the platform for the centroid of the region, computed
// to within maxError meters.
func (r Region) CentroidNode(maxError float64) *expr.Node {
	return expr.Invoke("Geometry.centroid", expr.Args{
		"geometry": r.Node(),
		"maxError": expr.Invoke("ErrorMargin", expr.Args{
			"value": expr.Constant(maxError),
			"unit":  expr.Constant("meters"),
		}),
	})
}

func (r Region) validate() error {
	switch {
	case r.geom.IsPoint():
		return checkPosition(r.geom.Point)
	case r.geom.IsPolygon():
		return checkPolygon(r.geom.Polygon)
	case r.geom.IsMultiPolygon():
		if len(r.geom.MultiPolygon) == 0 {
			return ErrEmptyRegion
		}
		for _, poly := range r.geom.MultiPolygon {
			if err := checkPolygon(poly); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedType, r.geom.Type)
	}
}

func checkPolygon(poly [][][]float64) error {
	if len(poly) == 0 {
		return ErrEmptyRegion
	}
	for i, ring := range poly {
		if len(ring) < 4 {
			return fmt.Errorf("%w: ring %d has %d positions, want at least 4", ErrInvalidCoordinate, i, len(ring))
		}
		for _, pos := range ring {
			if err := checkPosition(pos); err != nil {
				return err
			}
		}
		first, last := ring[0], ring[len(ring)-1]
		if first[0] != last[0] || first[1] != last[1] {
			return fmt.Errorf("%w: ring %d is not closed", ErrInvalidCoordinate, i)
		}
		if loopFromRing(ring).Area() == 0 {
			return fmt.Errorf("%w: ring %d has no area", ErrInvalidCoordinate, i)
		}
	}
	return nil
}

func checkPosition(pos []float64) error {
	if len(pos) < 2 {
		return fmt.Errorf("%w: position %v", ErrInvalidCoordinate, pos)
	}
	lng, lat := pos[0], pos[1]
	if math.IsNaN(lng) || math.IsNaN(lat) || lng < -180 || lng > 180 || lat < -90 || lat > 90 {
		return fmt.Errorf("%w: position %v", ErrInvalidCoordinate, pos)
	}
	return nil
}

// loopFromRing drops the closing position and normalizes orientation so the
// loop encloses the smaller of the two regions it bounds.
func loopFromRing(ring [][]float64) *s2.Loop {
	points := make([]s2.Point, 0, len(ring)-1)
	for _, pos := range ring[:len(ring)-1] {
		points = append(points, s2.PointFromLatLng(s2.LatLngFromDegrees(pos[1], pos[0])))
	}
	loop := s2.LoopFromPoints(points)
	loop.Normalize()
	return loop
}
