package preview

import (
	"encoding/json"
	"html/template"
	"net/http"

	"github.com/sirupsen/logrus"

	"utiligee/internal/geometry"
	"utiligee/internal/pipeline"
)

var page = template.Must(template.New("map").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Layer.Label}}</title>
<link rel="stylesheet" href="https://unpkg.com/leaflet@1.9.4/dist/leaflet.css">
<script src="https://unpkg.com/leaflet@1.9.4/dist/leaflet.js"></script>
<style>html, body, #map { height: 100%; margin: 0; }</style>
</head>
<body>
<div id="map"></div>
<script>
var view = {{.}};
var map = L.map('map').setView([view.center.lat, view.center.lng], view.zoom);
L.tileLayer('https://tile.openstreetmap.org/{z}/{x}/{y}.png', {
  maxZoom: 19,
  attribution: '&copy; OpenStreetMap contributors'
}).addTo(map);
var layer = L.tileLayer(view.layer.tileUrl, {maxZoom: 24}).addTo(map);
if (view.region) {
  L.geoJSON(view.region, {style: {fill: false, weight: 1}}).addTo(map);
}
L.control.layers(null, {[view.layer.label]: layer}).addTo(map);
</script>
</body>
</html>
`))

type viewHandler struct {
	view pipeline.View
}

func newViewHandler(view pipeline.View) *viewHandler {
	return &viewHandler{view: view}
}

func (h *viewHandler) Page(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := page.Execute(w, h.view); err != nil {
		logrus.WithError(err).Error("Render map page")
	}
}

func (h *viewHandler) View(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.view)
}

func (h *viewHandler) Center(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, geometry.PointGeoJSON(h.view.Center))
}

func respondWithJSON(w http.ResponseWriter, status int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		logrus.WithError(err).Error("Encode response")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}
