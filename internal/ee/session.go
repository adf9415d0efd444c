// Package ee is the explicit session handle to the remote imagery platform.
// Every remote call in the tool goes through a Session passed in by the
// caller; there is no process-wide client.
package ee

import (
	"context"
	"errors"
	"time"

	"utiligee/internal/expr"
)

// Session is the set of remote operations the tool consumes.
type Session interface {
	// ComputeValue evaluates an expression and returns its JSON-decoded result.
	ComputeValue(ctx context.Context, node *expr.Node) (any, error)
	// CreateMap registers an image for tiled display.
	CreateMap(ctx context.Context, node *expr.Node, vis VisParams, label string) (MapLayer, error)
	// ExportImage enqueues an export job and returns without waiting for it.
	ExportImage(ctx context.Context, req ExportImage) (Job, error)
	Operation(ctx context.Context, id string) (Job, error)
	CancelOperation(ctx context.Context, id string) error
	ListOperations(ctx context.Context) ([]Job, error)
}

var ErrUnknownOperation = errors.New("unknown operation")

// VisParams is the display stretch applied to every band of a map layer.
type VisParams struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

type MapLayer struct {
	ID      string    `json:"id"`
	TileURL string    `json:"tileUrl"`
	Label   string    `json:"label"`
	Vis     VisParams `json:"vis"`
}

type DestinationKind string

const (
	Drive        DestinationKind = "drive"
	CloudStorage DestinationKind = "gcs"
)

// Destination says where an export is written. Folder applies to Drive,
// Bucket to Cloud Storage.
type Destination struct {
	Kind           DestinationKind
	Folder         string
	Bucket         string
	FilenamePrefix string
}

type ExportImage struct {
	Expression  *expr.Node
	Description string
	Destination Destination
	FileFormat  string
	MaxPixels   int64
	RequestID   string
}

type State string

const (
	StatePending    State = "PENDING"
	StateRunning    State = "RUNNING"
	StateCancelling State = "CANCELLING"
	StateSucceeded  State = "SUCCEEDED"
	StateFailed     State = "FAILED"
	StateCancelled  State = "CANCELLED"
)

func (s State) Terminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateCancelled:
		return true
	}
	return false
}

// Job is a snapshot of a remote export operation.
type Job struct {
	ID              string    `json:"id"`
	Description     string    `json:"description"`
	State           State     `json:"state"`
	Progress        float64   `json:"progress"`
	Done            bool      `json:"done"`
	Error           string    `json:"error,omitempty"`
	DestinationURIs []string  `json:"destinationUris,omitempty"`
	CreateTime      time.Time `json:"createTime,omitempty"`
	UpdateTime      time.Time `json:"updateTime,omitempty"`
}
