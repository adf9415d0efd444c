package pipeline

import (
	"context"

	"github.com/sirupsen/logrus"

	"utiligee/internal/ee"
	"utiligee/internal/geometry"
)

// Config drives one run of the chain. The defaults reproduce the NAIP true
// color composite over lower Manhattan.
type Config struct {
	Dataset string
	Start   string
	End     string
	Bands   []string
	// CloudMax, when positive, drops members whose CLOUDY_PIXEL_PERCENTAGE
	// is not below it.
	CloudMax float64

	View     ViewOptions
	SkipView bool

	Description string
	Scale       float64
	Destination ee.Destination
	MaxPixels   int64
}

func DefaultConfig() Config {
	return Config{
		Dataset:     "USDA/NAIP/DOQQ",
		Start:       "2017-01-01",
		End:         "2018-12-31",
		Bands:       []string{"R", "G", "B"},
		View:        DefaultViewOptions(),
		Description: "small",
		Scale:       1,
		Destination: ee.Destination{Kind: ee.Drive},
	}
}

type Result struct {
	Composite Image
	View      *View
	Job       ee.Job
}

// Composite builds the mean composite described by cfg. No request is sent.
func Composite(cfg Config) (Image, error) {
	collection, err := SelectDataset(cfg.Dataset, cfg.Start, cfg.End)
	if err != nil {
		return Image{}, err
	}
	if cfg.CloudMax > 0 {
		collection = collection.FilterLessThan("CLOUDY_PIXEL_PERCENTAGE", cfg.CloudMax)
	}
	logrus.WithFields(logrus.Fields{
		"dataset": cfg.Dataset,
		"start":   cfg.Start,
		"end":     cfg.End,
	}).Debug("Dataset selected")
	return ComposeBands(collection, cfg.Bands)
}

// Run issues the steps in order on s. The first failing step ends the run
// and its error is returned as is.
func Run(ctx context.Context, s ee.Session, region geometry.Region, cfg Config) (Result, error) {
	composite, err := Composite(cfg)
	if err != nil {
		return Result{}, err
	}
	res := Result{Composite: composite}

	if !cfg.SkipView {
		view, err := Visualize(ctx, s, region, composite, cfg.View)
		if err != nil {
			return res, err
		}
		res.View = &view
	}

	req, err := NewExportRequest(composite, cfg.Description, cfg.Scale, region, cfg.Destination)
	if err != nil {
		return res, err
	}
	req.MaxPixels = cfg.MaxPixels
	res.Job, err = Export(ctx, s, req)
	return res, err
}
