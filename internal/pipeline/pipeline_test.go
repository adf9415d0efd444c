package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"utiligee/internal/ee"
	"utiligee/internal/expr"
	"utiligee/internal/geometry"
)

func testRegion(t *testing.T) geometry.Region {
	t.Helper()
	r, err := geometry.FromGeoJSON([]byte(`{"type":"Polygon","coordinates":[[[-74.02,40.69],[-73.96,40.69],[-73.96,40.72],[-74.02,40.72],[-74.02,40.69]]]}`))
	require.NoError(t, err)
	return r
}

func constant(t *testing.T, n *expr.Node) any {
	t.Helper()
	v, ok := n.Value()
	require.True(t, ok, "not a constant")
	return v
}

func TestSelectDatasetPassesThroughIDAndRange(t *testing.T) {
	c, err := SelectDataset("USDA/NAIP/DOQQ", "2017-01-01", "2018-12-31")
	require.NoError(t, err)

	load := c.Node().Find("ImageCollection.load")
	require.NotNil(t, load)
	assert.Equal(t, "USDA/NAIP/DOQQ", constant(t, load.Arg("id")))

	rng := c.Node().Find("DateRange")
	require.NotNil(t, rng)
	assert.Equal(t, "2017-01-01", constant(t, rng.Arg("start")))
	assert.Equal(t, "2018-12-31", constant(t, rng.Arg("end")))
	assert.Equal(t, "system:time_start", constant(t, c.Node().Find("Filter.dateRangeContains").Arg("rightField")))
}

func TestSelectDatasetRejectsMalformedInput(t *testing.T) {
	_, err := SelectDataset("", "2017-01-01", "2018-12-31")
	assert.ErrorIs(t, err, ErrEmptyDataset)

	_, err = SelectDataset("USDA/NAIP/DOQQ", "2017/01/01", "2018-12-31")
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestFilterLessThan(t *testing.T) {
	c, err := SelectDataset("COPERNICUS/S2_SR", "2020-01-01", "2020-06-01")
	require.NoError(t, err)
	filtered := c.FilterLessThan("CLOUDY_PIXEL_PERCENTAGE", 20)

	lt := filtered.Node().Find("Filter.lessThan")
	require.NotNil(t, lt)
	assert.Equal(t, "CLOUDY_PIXEL_PERCENTAGE", constant(t, lt.Arg("leftField")))
	assert.Equal(t, 20.0, constant(t, lt.Arg("rightValue")))
	// the date filter stays underneath
	assert.NotNil(t, filtered.Node().Find("Filter.dateRangeContains"))
}

func TestComposeBandsSelectsExactBandsBeforeMean(t *testing.T) {
	c, err := SelectDataset("USDA/NAIP/DOQQ", "2017-01-01", "2018-12-31")
	require.NoError(t, err)
	img, err := ComposeBands(c, []string{"R", "G", "B"})
	require.NoError(t, err)

	root := img.Node()
	assert.Equal(t, "ImageCollection.mean", root.FunctionName())
	mapped := root.Arg("collection")
	assert.Equal(t, "Collection.map", mapped.FunctionName())
	sel := mapped.Arg("baseAlgorithm").Body()
	assert.Equal(t, "Image.select", sel.FunctionName())
	bands, ok := sel.Arg("bandSelectors").StringItems()
	require.True(t, ok)
	assert.Equal(t, []string{"R", "G", "B"}, bands)

	_, err = ComposeBands(c, nil)
	assert.ErrorIs(t, err, ErrEmptyBands)
}

func TestComposeBandsIsDeterministic(t *testing.T) {
	c, err := SelectDataset("USDA/NAIP/DOQQ", "2017-01-01", "2018-12-31")
	require.NoError(t, err)
	first, err := ComposeBands(c, []string{"R", "G", "B"})
	require.NoError(t, err)
	second, err := ComposeBands(c, []string{"R", "G", "B"})
	require.NoError(t, err)

	a, err := expr.Marshal(first.Node())
	require.NoError(t, err)
	b, err := expr.Marshal(second.Node())
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestNewVisParams(t *testing.T) {
	v, err := NewVisParams(0.0, 255.0)
	require.NoError(t, err)
	assert.Equal(t, VisParams{Min: 0, Max: 255}, v)

	_, err = NewVisParams(10, 10)
	assert.ErrorIs(t, err, ErrInvalidVis)
}

func TestNewExportRequestValidates(t *testing.T) {
	region := testRegion(t)
	img := Image{node: expr.Invoke("Image.load", expr.Args{"id": expr.Constant("x")})}
	drive := ee.Destination{Kind: ee.Drive}

	req, err := NewExportRequest(img, "small", 1, region, drive)
	require.NoError(t, err)
	assert.Equal(t, "small", req.Destination.FilenamePrefix)

	_, err = NewExportRequest(img, "", 1, region, drive)
	assert.ErrorIs(t, err, ErrEmptyDescription)
	_, err = NewExportRequest(img, "small", 0, region, drive)
	assert.ErrorIs(t, err, ErrInvalidScale)
	_, err = NewExportRequest(img, "small", 1, geometry.Region{}, drive)
	assert.ErrorIs(t, err, ErrMissingRegion)
	_, err = NewExportRequest(Image{}, "small", 1, region, drive)
	assert.ErrorIs(t, err, ErrMissingImage)
	_, err = NewExportRequest(img, "small", 1, region, ee.Destination{Kind: ee.CloudStorage})
	assert.Error(t, err)
}

func newRecorder(region geometry.Region) *ee.Recorder {
	r := ee.NewRecorder()
	r.Stub("Geometry.centroid", geometry.PointGeoJSON(region.LocalCentroid()))
	return r
}

func TestRunIssuesCallsInOrder(t *testing.T) {
	region := testRegion(t)
	rec := newRecorder(region)

	res, err := Run(context.Background(), rec, region, DefaultConfig())
	require.NoError(t, err)

	var methods []string
	for _, c := range rec.Calls() {
		methods = append(methods, c.Method)
	}
	assert.Equal(t, []string{"ComputeValue", "CreateMap", "ExportImage"}, methods)
	assert.Equal(t, ee.StatePending, res.Job.State)
	require.NotNil(t, res.View)
}

func TestVisualizeUsesCentroidForCenterAndRegionForClip(t *testing.T) {
	region := testRegion(t)
	rec := ee.NewRecorder()
	rec.Stub("Geometry.centroid", geometry.PointGeoJSON(geometry.LatLng{Lat: 40.705, Lng: -73.99}))

	res, err := Run(context.Background(), rec, region, DefaultConfig())
	require.NoError(t, err)

	compute := rec.CallsTo("ComputeValue")
	require.Len(t, compute, 1)
	centroid := compute[0].Node
	assert.Equal(t, "Geometry.centroid", centroid.FunctionName())
	assert.Equal(t, 1.0, constant(t, centroid.Arg("maxError").Arg("value")))
	assertSameRegion(t, region, centroid.Arg("geometry"))

	assert.Equal(t, geometry.LatLng{Lat: 40.705, Lng: -73.99}, res.View.Center)
	assert.Equal(t, 10, res.View.Zoom)

	maps := rec.CallsTo("CreateMap")
	require.Len(t, maps, 1)
	assert.Equal(t, ee.VisParams{Min: 0.0, Max: 255.0}, maps[0].Vis)
	assert.Equal(t, "True Color", maps[0].Label)
	clip := maps[0].Node
	assert.Equal(t, "Image.clip", clip.FunctionName())
	assertSameRegion(t, region, clip.Arg("geometry"))
	assert.Nil(t, clip.Find("Geometry.centroid"))
}

func TestExportPassesFieldsThrough(t *testing.T) {
	region := testRegion(t)
	rec := newRecorder(region)

	_, err := Run(context.Background(), rec, region, DefaultConfig())
	require.NoError(t, err)

	exports := rec.CallsTo("ExportImage")
	require.Len(t, exports, 1)
	req := exports[0].Export
	assert.Equal(t, "small", req.Description)
	assert.NotEmpty(t, req.RequestID)
	assert.Equal(t, ee.Drive, req.Destination.Kind)

	node := req.Expression
	assert.Equal(t, "Image.clipToBoundsAndScale", node.FunctionName())
	assert.Equal(t, 1.0, constant(t, node.Arg("scale")))
	assertSameRegion(t, region, node.Arg("geometry"))
	assert.Equal(t, "ImageCollection.mean", node.Arg("input").FunctionName())
	assert.Nil(t, node.Find("Geometry.centroid"))
}

func TestRunSkipView(t *testing.T) {
	region := testRegion(t)
	rec := ee.NewRecorder()
	cfg := DefaultConfig()
	cfg.SkipView = true

	res, err := Run(context.Background(), rec, region, cfg)
	require.NoError(t, err)
	assert.Nil(t, res.View)
	assert.Len(t, rec.Calls(), 1)
}

func TestRunPropagatesRemoteFailure(t *testing.T) {
	region := testRegion(t)
	rec := newRecorder(region)
	quota := errors.New("quota exceeded")
	rec.Err = quota

	_, err := Run(context.Background(), rec, region, DefaultConfig())
	assert.ErrorIs(t, err, quota)
}

func assertSameRegion(t *testing.T, region geometry.Region, n *expr.Node) {
	t.Helper()
	want, err := expr.Marshal(region.Node())
	require.NoError(t, err)
	got, err := expr.Marshal(n)
	require.NoError(t, err)
	assert.JSONEq(t, string(want), string(got))
}
