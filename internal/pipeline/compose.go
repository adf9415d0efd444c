package pipeline

import (
	"errors"
	"fmt"

	"utiligee/internal/expr"
	"utiligee/internal/geometry"
)

const mappingVar = "_MAPPING_VAR_0_0"

var ErrEmptyBands = errors.New("no bands selected")

// Image is a remote image handle.
type Image struct {
	node *expr.Node
}

func (i Image) Node() *expr.Node {
	return i.node
}

// ComposeBands selects bands, in order, from every member of c and reduces
// the stack to its per-pixel mean.
func ComposeBands(c Collection, bands []string) (Image, error) {
	if len(bands) == 0 {
		return Image{}, ErrEmptyBands
	}
	for i, b := range bands {
		if b == "" {
			return Image{}, fmt.Errorf("band %d: empty name", i)
		}
	}

	selectBands := expr.Function([]string{mappingVar}, expr.Invoke("Image.select", expr.Args{
		"input":         expr.Argument(mappingVar),
		"bandSelectors": expr.Strings(bands),
	}))
	selected := expr.Invoke("Collection.map", expr.Args{
		"collection":    c.node,
		"baseAlgorithm": selectBands,
	})
	return Image{node: expr.Invoke("ImageCollection.mean", expr.Args{"collection": selected})}, nil
}

func (i Image) Clip(region geometry.Region) Image {
	return Image{node: expr.Invoke("Image.clip", expr.Args{
		"input":    i.node,
		"geometry": region.Node(),
	})}
}

// ClipToBoundsAndScale is the export form of the image: clipped to the
// region's bounds and resampled to scale meters per pixel.
func (i Image) ClipToBoundsAndScale(region geometry.Region, scale float64) Image {
	return Image{node: expr.Invoke("Image.clipToBoundsAndScale", expr.Args{
		"input":    i.node,
		"geometry": region.Node(),
		"scale":    expr.Constant(scale),
	})}
}
