// Package pipeline is the dataset, composite, visualize and export chain.
// Nothing here computes imagery: each step builds an expression describing
// the work, and the session ships it to the platform.
package pipeline

import (
	"errors"
	"fmt"
	"time"

	"utiligee/internal/expr"
)

const dateLayout = "2006-01-02"

var (
	ErrEmptyDataset = errors.New("dataset id is empty")
	ErrInvalidDate  = errors.New("invalid date")
)

// Collection is a remote image collection handle plus its filter chain.
type Collection struct {
	node *expr.Node
}

func (c Collection) Node() *expr.Node {
	return c.node
}

// SelectDataset loads the catalog collection id restricted to [start, end).
// The id and dates are passed through as given; only the date layout is
// checked locally.
func SelectDataset(id, start, end string) (Collection, error) {
	if id == "" {
		return Collection{}, ErrEmptyDataset
	}
	for _, d := range []string{start, end} {
		if _, err := time.Parse(dateLayout, d); err != nil {
			return Collection{}, fmt.Errorf("%w %q: want YYYY-MM-DD", ErrInvalidDate, d)
		}
	}

	load := expr.Invoke("ImageCollection.load", expr.Args{"id": expr.Constant(id)})
	filter := expr.Invoke("Filter.dateRangeContains", expr.Args{
		"leftValue": expr.Invoke("DateRange", expr.Args{
			"start": expr.Constant(start),
			"end":   expr.Constant(end),
		}),
		"rightField": expr.Constant("system:time_start"),
	})
	return Collection{node: filterCollection(load, filter)}, nil
}

// FilterLessThan keeps members whose metadata property is below value,
// e.g. CLOUDY_PIXEL_PERCENTAGE for Sentinel-2.
func (c Collection) FilterLessThan(property string, value float64) Collection {
	filter := expr.Invoke("Filter.lessThan", expr.Args{
		"leftField":  expr.Constant(property),
		"rightValue": expr.Constant(value),
	})
	return Collection{node: filterCollection(c.node, filter)}
}

func filterCollection(collection, filter *expr.Node) *expr.Node {
	return expr.Invoke("Collection.filter", expr.Args{
		"collection": collection,
		"filter":     filter,
	})
}
