package preview

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"utiligee/internal/ee"
	"utiligee/internal/geometry"
	"utiligee/internal/pipeline"
)

func testView() pipeline.View {
	return pipeline.View{
		Center: geometry.LatLng{Lat: 40.7, Lng: -74},
		Zoom:   10,
		Layer: ee.MapLayer{
			ID:      "projects/p/maps/abc",
			TileURL: "https://earthengine.googleapis.com/v1/projects/p/maps/abc/tiles/{z}/{x}/{y}",
			Label:   "True Color",
			Vis:     ee.VisParams{Min: 0, Max: 255},
		},
	}
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestViewJSON(t *testing.T) {
	h := NewServer(DefaultConfig(), testView()).Handler()
	w := get(t, h, "/api/view")
	require.Equal(t, http.StatusOK, w.Code)

	var got pipeline.View
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, testView(), got)
}

func TestCenter(t *testing.T) {
	h := NewServer(DefaultConfig(), testView()).Handler()
	w := get(t, h, "/api/view/center")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"type":"Point","coordinates":[-74,40.7]}`, w.Body.String())

	got, err := geometry.PointFromValue(json.RawMessage(w.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, testView().Center, got)
}

func TestPage(t *testing.T) {
	h := NewServer(DefaultConfig(), testView()).Handler()
	w := get(t, h, "/")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "<title>True Color</title>")
	assert.Contains(t, w.Body.String(), "abc")
}

func TestHealth(t *testing.T) {
	h := NewServer(DefaultConfig(), testView()).Handler()
	w := get(t, h, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
}
