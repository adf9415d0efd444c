package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"utiligee/internal/ee"
	"utiligee/internal/geometry"
)

var (
	ErrEmptyDescription = errors.New("export description is empty")
	ErrInvalidScale     = errors.New("export scale must be a positive number of meters per pixel")
	ErrMissingRegion    = errors.New("export region is required")
	ErrMissingImage     = errors.New("export image is required")
)

// ExportRequest is one export job. Scale is ground meters per pixel;
// smaller values give finer resolution.
type ExportRequest struct {
	Image       Image
	Description string
	Scale       float64
	Region      geometry.Region
	Destination ee.Destination
	MaxPixels   int64
}

func NewExportRequest(img Image, description string, scale float64, region geometry.Region, dest ee.Destination) (ExportRequest, error) {
	if img.node == nil {
		return ExportRequest{}, ErrMissingImage
	}
	if description == "" {
		return ExportRequest{}, ErrEmptyDescription
	}
	if !(scale > 0) || math.IsInf(scale, 0) {
		return ExportRequest{}, fmt.Errorf("%w: %v", ErrInvalidScale, scale)
	}
	if region.IsZero() {
		return ExportRequest{}, ErrMissingRegion
	}
	switch dest.Kind {
	case ee.Drive:
	case ee.CloudStorage:
		if dest.Bucket == "" {
			return ExportRequest{}, fmt.Errorf("cloud storage export needs a bucket")
		}
	default:
		return ExportRequest{}, fmt.Errorf("unknown export destination %q", dest.Kind)
	}
	if dest.FilenamePrefix == "" {
		dest.FilenamePrefix = description
	}
	return ExportRequest{
		Image:       img,
		Description: description,
		Scale:       scale,
		Region:      region,
		Destination: dest,
	}, nil
}

// Export submits req and returns as soon as the platform has queued it.
// Completion is observed separately through the job id.
func Export(ctx context.Context, s ee.Session, req ExportRequest) (ee.Job, error) {
	node := req.Image.ClipToBoundsAndScale(req.Region, req.Scale).Node()
	job, err := s.ExportImage(ctx, ee.ExportImage{
		Expression:  node,
		Description: req.Description,
		Destination: req.Destination,
		MaxPixels:   req.MaxPixels,
		RequestID:   uuid.NewString(),
	})
	if err != nil {
		return ee.Job{}, fmt.Errorf("submit export: %w", err)
	}
	logrus.WithFields(logrus.Fields{
		"job":         job.ID,
		"description": req.Description,
		"scale":       req.Scale,
	}).Info("Export submitted")
	return job, nil
}
