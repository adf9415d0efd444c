package celltools

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/airbusgeo/godal"
	"github.com/golang/geo/s2"
	"github.com/sirupsen/logrus"
)

type Point struct {
	Lat float64
	Lng float64
}

type BandContainer struct {
	Band   *godal.Band
	Name   string
	Origin Point
	XRes   float64
	YRes   float64
	mu     sync.Mutex
}

// S2CellData is the aggregated value of one band over one S2 cell.
type S2CellData struct {
	Cell       s2.CellID
	Band       string
	Data       float64
	GeomString string
}

type S2CellGeom struct {
	cell s2.CellID
	geom string
}

func (c S2CellData) String() string {
	return fmt.Sprintf("%v;%s;%v;%s", int64(c.Cell), c.Band, c.Data, c.GeomString)
}

type ConfigOpts struct {
	NumWorkers int
	S2Lvl      int
	AggFunc    AggFunc
	// BandNames label the bands in order. Unnamed bands become b1, b2, ...
	BandNames []string
}

type pixelValue struct {
	cell s2.CellID
	data float64
}

// CompositeToS2 aggregates every band of the GeoTIFF at path onto S2 cells
// at opts.S2Lvl. Rasters in a projected CRS are warped to WGS84 first.
// Results are ordered by band, then cell id.
func CompositeToS2(path string, opts ConfigOpts) (results []S2CellData, err error) {
	if opts.NumWorkers < 1 {
		return nil, fmt.Errorf("need at least one worker, got %d", opts.NumWorkers)
	}
	if opts.S2Lvl < 0 || opts.S2Lvl > s2.MaxLevel {
		return nil, fmt.Errorf("s2 level %d out of range [0, %d]", opts.S2Lvl, s2.MaxLevel)
	}
	if opts.AggFunc == nil {
		opts.AggFunc = Mean
	}

	godal.RegisterAll()
	ds, err := openGeographic(path)
	if err != nil {
		logrus.Error(err)
		return nil, err
	}
	defer func() {
		err = errors.Join(err, ds.Close())
	}()

	origin, xRes, yRes, err := getOriginAndResolution(ds)
	if err != nil {
		return nil, err
	}

	bands := ds.Bands()
	for i := range bands {
		band := &BandContainer{
			Band:   &bands[i],
			Name:   bandName(opts.BandNames, i),
			Origin: origin,
			XRes:   xRes,
			YRes:   yRes,
		}
		logrus.Infof("Indexing band %s", band.Name)
		cells, err := indexBand(band, opts)
		if err != nil {
			return nil, fmt.Errorf("band %s: %w", band.Name, err)
		}
		results = append(results, cells...)
	}
	return results, nil
}

func bandName(names []string, i int) string {
	if i < len(names) && names[i] != "" {
		return names[i]
	}
	return fmt.Sprintf("b%d", i+1)
}

// openGeographic opens path, warping it in memory to EPSG:4326 when its
// pixels are not already in geographic coordinates.
func openGeographic(path string) (*godal.Dataset, error) {
	ds, err := godal.Open(path)
	if err != nil {
		return nil, err
	}
	if ds.Projection() == "" || ds.SpatialRef().Geographic() {
		return ds, nil
	}
	logrus.Debugf("Warping %s to EPSG:4326", path)
	name := strings.TrimSuffix(path, ".tif")
	warped, err := ds.Warp("/vsimem/"+strings.ReplaceAll(name, "/", "_")+"_4326.tif",
		[]string{"-of", "GTiff", "-t_srs", "EPSG:4326"})
	if cerr := ds.Close(); cerr != nil {
		logrus.Error(cerr)
	}
	if err != nil {
		return nil, fmt.Errorf("warp %s: %w", path, err)
	}
	return warped, nil
}

func indexBand(band *BandContainer, opts ConfigOpts) ([]S2CellData, error) {
	done := make(chan struct{})
	defer close(done)

	blocks := genBlocks(band, done)
	resCh, errCh := processBlocks(band, blocks, opts)
	resMap := groupByCell(resCh)
	// resCh is closed only after every worker has returned
	if err := <-errCh; err != nil {
		return nil, err
	}
	return aggCellResults(band.Name, resMap, opts.AggFunc), nil
}

// Produce blocks from a raster band, putting them in a channel to be consumed
// downstream. The production here is happening serially, but there would be
// very little speedup from parallelising at this step.
func genBlocks(band *BandContainer, done <-chan struct{}) <-chan godal.Block {
	blocks := make(chan godal.Block)
	firstBlock := band.Band.Structure().FirstBlock()
	go func() {
		defer close(blocks)
		for block, ok := firstBlock, true; ok; block, ok = block.Next() {
			select {
			case blocks <- block:
			case <-done:
				return
			}
		}
	}()
	return blocks
}

// processBlocks fans blocks out to opts.NumWorkers workers. A worker stops at
// its first failed block; the first such error is sent on the returned error
// channel, which is closed once all workers are done.
func processBlocks(band *BandContainer, blocks <-chan godal.Block, opts ConfigOpts) (<-chan pixelValue, <-chan error) {
	resCh := make(chan pixelValue, 1024)
	errCh := make(chan error, 1)
	var wg sync.WaitGroup

	wg.Add(opts.NumWorkers)
	for i := 0; i < opts.NumWorkers; i++ {
		go func() {
			defer wg.Done()
			for block := range blocks {
				logrus.Debugf("Processing %s block at [%v, %v]", band.Name, block.X0, block.Y0)
				if err := rasterBlockToS2(band, block, opts.S2Lvl, resCh); err != nil {
					logrus.Error(err)
					select {
					case errCh <- fmt.Errorf("block at [%d, %d]: %w", block.X0, block.Y0, err):
					default:
					}
					return
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(resCh)
		close(errCh)
	}()
	return resCh, errCh
}

func rasterBlockToS2(band *BandContainer, block godal.Block, s2Lvl int, resCh chan<- pixelValue) error {
	blockOrigin := blockOrigin(block, band.XRes, band.YRes, band.Origin)
	blockBuf := make([]float64, block.H*block.W)

	if err := lockedRead(band, block, blockBuf); err != nil {
		return err
	}

	noData, hasNoData := band.Band.NoData()

	for pix := 0; pix < block.W*block.H; pix++ {
		value := blockBuf[pix]
		if hasNoData && value == noData {
			continue
		}
		// GDAL is row-major
		row := pix / block.W
		col := pix % block.W

		lat := blockOrigin.Lat + (float64(row)+0.5)*band.YRes
		lng := blockOrigin.Lng + (float64(col)+0.5)*band.XRes

		cell := s2.CellIDFromLatLng(s2.LatLngFromDegrees(lat, lng)).Parent(s2Lvl)
		resCh <- pixelValue{cell: cell, data: value}
	}
	return nil
}

// readBlock fills buf with the pixels of block.
var readBlock = func(band *godal.Band, block godal.Block, buf []float64) error {
	return band.Read(block.X0, block.Y0, buf, block.W, block.H)
}

// Locking is required to read from compressed rasters.
func lockedRead(band *BandContainer, block godal.Block, blockBuf []float64) error {
	band.mu.Lock()
	defer band.mu.Unlock()
	return readBlock(band.Band, block, blockBuf)
}

func groupByCell(resCh <-chan pixelValue) map[S2CellGeom][]float64 {
	outMap := make(map[S2CellGeom][]float64)
	geoms := make(map[s2.CellID]string)
	for v := range resCh {
		geom, ok := geoms[v.cell]
		if !ok {
			geom = cellToWKT(s2.CellFromCellID(v.cell))
			geoms[v.cell] = geom
		}
		key := S2CellGeom{v.cell, geom}
		outMap[key] = append(outMap[key], v.data)
	}
	return outMap
}

func aggCellResults(bandName string, resMap map[S2CellGeom][]float64, aggFunc AggFunc) []S2CellData {
	aggResults := make([]S2CellData, 0, len(resMap))
	for cellGeom, values := range resMap {
		aggResults = append(aggResults, S2CellData{
			Cell:       cellGeom.cell,
			Band:       bandName,
			Data:       aggFunc(values...),
			GeomString: cellGeom.geom,
		})
	}
	sort.Slice(aggResults, func(i, j int) bool { return aggResults[i].Cell < aggResults[j].Cell })
	return aggResults
}

func getOriginAndResolution(ds *godal.Dataset) (Point, float64, float64, error) {
	gt, err := ds.GeoTransform()
	if err != nil {
		return Point{}, 0, 0, err
	}
	origin := Point{gt[3], gt[0]}
	return origin, gt[1], gt[5], nil
}

func blockOrigin(rasterBlock godal.Block, xRes, yRes float64, origin Point) Point {
	originLng := float64(rasterBlock.X0)*xRes + origin.Lng
	originLat := float64(rasterBlock.Y0)*yRes + origin.Lat
	return Point{originLat, originLng}
}
