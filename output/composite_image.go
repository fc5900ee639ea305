package output

import (
	"fmt"
	"math"

	"github.com/fogleman/gg"
	"github.com/terralens/terralens-mosaic-poc/internal/raster"
	"github.com/terralens/terralens-mosaic-poc/internal/tiles"
)

// CreateCompositePreview renders a composite to PNG using three of its
// bands as RGB channels with the visualization min/max/gamma stretch.
// No-data pixels come out fully transparent.
func CreateCompositePreview(comp *raster.Composite, red, green, blue string, vis tiles.Vis, outputPath string) error {
	channels := [3]raster.Band{}
	for i, name := range []string{red, green, blue} {
		band, ok := comp.Band(name)
		if !ok {
			return fmt.Errorf("composite has no band %q", name)
		}
		channels[i] = band
	}

	dc := gg.NewContext(comp.Grid.SizeX, comp.Grid.SizeY)
	for y := 0; y < comp.Grid.SizeY; y++ {
		for x := 0; x < comp.Grid.SizeX; x++ {
			if comp.ValidCount[y][x] == 0 {
				dc.SetRGBA(0, 0, 0, 0)
			} else {
				dc.SetRGB(
					stretch(channels[0][y][x], vis),
					stretch(channels[1][y][x], vis),
					stretch(channels[2][y][x], vis),
				)
			}
			dc.SetPixel(x, y)
		}
	}

	if err := dc.SavePNG(outputPath); err != nil {
		return fmt.Errorf("failed to save preview image: %v", err)
	}
	return nil
}

func stretch(v float64, vis tiles.Vis) float64 {
	if raster.IsNoData(v) || vis.Max <= vis.Min {
		return 0
	}
	t := (v - vis.Min) / (vis.Max - vis.Min)
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	if vis.Gamma > 0 {
		t = math.Pow(t, 1/vis.Gamma)
	}
	return t
}
