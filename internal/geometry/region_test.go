package geometry

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const square = `{"type":"Polygon","coordinates":[[[0,0],[2,0],[2,2],[0,2],[0,0]]]}`

func TestFromGeoJSONVariants(t *testing.T) {
	inputs := map[string]string{
		"geometry":   square,
		"feature":    `{"type":"Feature","properties":{},"geometry":` + square + `}`,
		"collection": `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{},"geometry":` + square + `}]}`,
	}
	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			r, err := FromGeoJSON([]byte(in))
			require.NoError(t, err)
			assert.True(t, r.Geometry().IsPolygon())
			assert.Equal(t, "GeometryConstructors.Polygon", r.Node().FunctionName())
		})
	}
}

func TestFromGeoJSONRejects(t *testing.T) {
	cases := map[string]struct {
		in   string
		want error
	}{
		"line":      {`{"type":"LineString","coordinates":[[0,0],[1,1]]}`, ErrUnsupportedType},
		"open ring": {`{"type":"Polygon","coordinates":[[[0,0],[2,0],[2,2],[0,2]]]}`, ErrInvalidCoordinate},
		"unclosed":  {`{"type":"Polygon","coordinates":[[[0,0],[2,0],[2,2],[0,2],[1,1]]]}`, ErrInvalidCoordinate},
		"latitude":  {`{"type":"Point","coordinates":[0,91]}`, ErrInvalidCoordinate},
		"empty":     {`{"type":"Polygon","coordinates":[]}`, ErrEmptyRegion},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := FromGeoJSON([]byte(tc.in))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}

	_, err := FromGeoJSON([]byte(`{"type":"FeatureCollection","features":[]}`))
	assert.Error(t, err)
}

func TestParseBounds(t *testing.T) {
	r, err := ParseBounds("-74.02065034469021,40.7175360876491,-73.96855111678494,40.69053317927286")
	require.NoError(t, err)
	n := r.Node()
	assert.Equal(t, "GeometryConstructors.Rectangle", n.FunctionName())
	v, ok := n.Arg("coordinates").Value()
	require.True(t, ok)
	// the default bounds list the northern edge first
	want := []float64{-74.02065034469021, 40.69053317927286, -73.96855111678494, 40.7175360876491}
	assert.Equal(t, want, v)

	// the rectangle sent out spans the same box as the validated polygon
	ring := r.Geometry().Polygon[0]
	assert.Equal(t, []float64{want[0], want[1]}, ring[0])
	assert.Equal(t, []float64{want[2], want[3]}, ring[2])

	_, err = ParseBounds("1,2,3")
	assert.Error(t, err)
	_, err = ParseBounds("a,2,3,4")
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "region.geojson")
	require.NoError(t, os.WriteFile(path, []byte(square), 0o644))
	r, err := Load(path)
	require.NoError(t, err)
	assert.False(t, r.IsZero())

	_, err = Load(filepath.Join(t.TempDir(), "missing.geojson"))
	assert.Error(t, err)
}

func TestCentroidNode(t *testing.T) {
	r, err := FromGeoJSON([]byte(square))
	require.NoError(t, err)
	n := r.CentroidNode(1)
	assert.Equal(t, "Geometry.centroid", n.FunctionName())
	assert.Equal(t, r.Node().FunctionName(), n.Arg("geometry").FunctionName())
	margin := n.Arg("maxError")
	assert.Equal(t, "ErrorMargin", margin.FunctionName())
	v, _ := margin.Arg("value").Value()
	assert.Equal(t, 1.0, v)
}

func TestLocalCentroid(t *testing.T) {
	r, err := FromGeoJSON([]byte(square))
	require.NoError(t, err)
	c := r.LocalCentroid()
	assert.InDelta(t, 1.0, c.Lat, 0.01)
	assert.InDelta(t, 1.0, c.Lng, 0.01)

	// clockwise rings describe the same region
	cw, err := FromGeoJSON([]byte(`{"type":"Polygon","coordinates":[[[0,0],[0,2],[2,2],[2,0],[0,0]]]}`))
	require.NoError(t, err)
	c = cw.LocalCentroid()
	assert.InDelta(t, 1.0, c.Lat, 0.01)
	assert.InDelta(t, 1.0, c.Lng, 0.01)

	p, err := FromGeoJSON([]byte(`{"type":"Point","coordinates":[5,6]}`))
	require.NoError(t, err)
	assert.Equal(t, LatLng{Lat: 6, Lng: 5}, p.LocalCentroid())
}

func TestPointFromValue(t *testing.T) {
	p, err := PointFromValue(PointGeoJSON(LatLng{Lat: 40.7, Lng: -74}))
	require.NoError(t, err)
	assert.Equal(t, LatLng{Lat: 40.7, Lng: -74}, p)

	_, err = PointFromValue(map[string]any{"type": "Polygon", "coordinates": []any{}})
	assert.Error(t, err)
}
