package cellsio

import (
	"os"

	"github.com/sirupsen/logrus"

	"utiligee/celltools"
)

// WriteToCSV writes one ';' separated line per cell. The geometry column is
// WKT, which contains commas.
func WriteToCSV(cellData []celltools.S2CellData, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if err := f.Close(); err != nil {
			logrus.Error(err)
		}
	}()

	if _, err := f.WriteString("s2_id;band;value;geom\n"); err != nil {
		return err
	}

	for i, cell := range cellData {
		if i%10000 == 0 {
			logrus.Infof("Writing cell %d", i)
		}
		if _, err := f.WriteString(cell.String() + "\n"); err != nil {
			return err
		}
	}
	return f.Sync()
}
