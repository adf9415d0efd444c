package celltools

import (
	"fmt"

	"github.com/golang/geo/s2"
)

// cellToWKT renders the cell boundary as a closed WKT polygon in lng/lat order.
func cellToWKT(cell s2.Cell) string {
	wkt := "POLYGON(("
	for k := 0; k < 4; k++ {
		latlng := s2.LatLngFromPoint(cell.Vertex(k))
		wkt += fmt.Sprintf("%v %v, ", latlng.Lng.Degrees(), latlng.Lat.Degrees())
	}
	closingPoint := s2.LatLngFromPoint(cell.Vertex(0))
	wkt += fmt.Sprintf("%v %v))", closingPoint.Lng.Degrees(), closingPoint.Lat.Degrees())

	return wkt
}
