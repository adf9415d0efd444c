package celltools

import (
	"strings"
	"testing"

	"github.com/golang/geo/s2"
)

func TestCellToWKT(t *testing.T) {
	cell := s2.CellFromCellID(s2.CellID(uint64(1152921779484753920)))
	wktString := cellToWKT(cell)

	if !strings.HasPrefix(wktString, "POLYGON((") || !strings.HasSuffix(wktString, "))") {
		t.Fatalf("not a WKT polygon: %s", wktString)
	}
	coords := strings.Split(strings.TrimSuffix(strings.TrimPrefix(wktString, "POLYGON(("), "))"), ", ")
	if len(coords) != 5 {
		t.Fatalf("got %d positions, want 5", len(coords))
	}
	if coords[0] != coords[4] {
		t.Errorf("ring not closed: %s != %s", coords[0], coords[4])
	}
}
