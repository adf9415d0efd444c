package geometry

import (
	"encoding/json"
	"fmt"

	"github.com/golang/geo/r3"
	"github.com/golang/geo/s2"
	geojson "github.com/paulmach/go.geojson"
)

// LocalCentroid approximates the region's centroid on the sphere. It is
// used where no platform is available (dry runs); the pipeline otherwise
// asks the platform.
func (r Region) LocalCentroid() LatLng {
	if r.geom.IsPoint() {
		return LatLng{Lat: r.geom.Point[1], Lng: r.geom.Point[0]}
	}
	polys := r.geom.MultiPolygon
	if r.geom.IsPolygon() {
		polys = [][][][]float64{r.geom.Polygon}
	}

	var sum r3.Vector
	for _, poly := range polys {
		for i, ring := range poly {
			c := loopFromRing(ring).Centroid()
			if i == 0 {
				sum = sum.Add(c.Vector)
			} else {
				sum = sum.Sub(c.Vector)
			}
		}
	}
	ll := s2.LatLngFromPoint(s2.Point{Vector: sum.Normalize()})
	return LatLng{Lat: ll.Lat.Degrees(), Lng: ll.Lng.Degrees()}
}

// PointGeoJSON renders p the way the platform returns a computed point.
func PointGeoJSON(p LatLng) map[string]any {
	return map[string]any{
		"type":        "Point",
		"coordinates": []any{p.Lng, p.Lat},
	}
}

// PointFromValue decodes a computed GeoJSON point.
func PointFromValue(v any) (LatLng, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return LatLng{}, err
	}
	g, err := geojson.UnmarshalGeometry(raw)
	if err != nil {
		return LatLng{}, fmt.Errorf("decode point: %w", err)
	}
	if !g.IsPoint() || len(g.Point) < 2 {
		return LatLng{}, fmt.Errorf("%w: want Point, got %s", ErrUnsupportedType, g.Type)
	}
	p := LatLng{Lat: g.Point[1], Lng: g.Point[0]}
	if err := checkPosition(g.Point); err != nil {
		return LatLng{}, err
	}
	return p, nil
}
