package cellsio

import (
	"errors"
	"os"

	"github.com/parquet-go/parquet-go"
	"github.com/sirupsen/logrus"

	"utiligee/celltools"
)

// DefaultRowBufferSize is how many rows are buffered between flushes.
const DefaultRowBufferSize = 64 * 1024

type CellRow struct {
	S2id  int64   `parquet:"s2_id"`
	Band  string  `parquet:"band,dict"`
	Value float64 `parquet:"value"`
	Geom  string  `parquet:"geom"`
}

func toRow(cell celltools.S2CellData) CellRow {
	return CellRow{int64(cell.Cell), cell.Band, cell.Data, cell.GeomString}
}

// WriteToParquet writes cellData as snappy-compressed parquet, flushing a row
// group every rowBufferSize rows.
func WriteToParquet(cellData []celltools.S2CellData, path string, rowBufferSize int) (err error) {
	if rowBufferSize <= 0 {
		rowBufferSize = DefaultRowBufferSize
	}
	output, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, output.Close())
	}()

	writer := parquet.NewGenericWriter[CellRow](output, parquet.Compression(&parquet.Snappy))
	rowBuf := make([]CellRow, 0, rowBufferSize)
	for i, cell := range cellData {
		rowBuf = append(rowBuf, toRow(cell))
		if len(rowBuf) == rowBufferSize {
			logrus.Infof("Writing cell %d", i)
			if _, err := writer.Write(rowBuf); err != nil {
				return err
			}
			if err := writer.Flush(); err != nil {
				return err
			}
			rowBuf = rowBuf[:0]
		}
	}
	if len(rowBuf) > 0 {
		if _, err := writer.Write(rowBuf); err != nil {
			return err
		}
	}
	return writer.Close()
}

// ReadParquet reads back rows written by WriteToParquet.
func ReadParquet(path string) ([]CellRow, error) {
	return parquet.ReadFile[CellRow](path)
}
