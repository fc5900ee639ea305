package composite

import (
	"fmt"
	"runtime"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/terralens/terralens-mosaic-poc/internal/raster"
	"golang.org/x/sync/errgroup"
)

// Options describe the target of one temporal reduction. Grid is required so
// an empty scene set still yields a correctly shaped all-no-data composite.
// Region may be nil, meaning no clip.
type Options struct {
	Grid   raster.Grid
	Bands  []string
	Region orb.Geometry
	Year   int
}

// Build reduces a set of masked scenes to one composite raster: per pixel
// and per band, the median over every scene where that pixel is valid.
// Pixels with no valid observation, and pixels outside the region geometry,
// come out as no-data. The reduction sorts each pixel's value set before
// taking the median, so the result is invariant to scene order.
func Build(scenes []raster.MaskedScene, opts Options) (*raster.Composite, error) {
	if len(opts.Bands) == 0 {
		return nil, fmt.Errorf("no output bands requested")
	}
	inRegion, err := regionTest(opts.Region)
	if err != nil {
		return nil, err
	}

	for _, scene := range scenes {
		if !scene.Reflectance.Grid.Equal(opts.Grid) {
			return nil, fmt.Errorf("scene %s: %w", scene.Date.Format("2006-01-02"), raster.ErrGridMismatch)
		}
	}

	bands := make([][]raster.Band, len(opts.Bands))
	for i, name := range opts.Bands {
		for _, scene := range scenes {
			b, ok := scene.Reflectance.Band(name)
			if !ok {
				return nil, fmt.Errorf("scene %s is missing band %q", scene.Date.Format("2006-01-02"), name)
			}
			bands[i] = append(bands[i], b)
		}
	}

	out := &raster.Composite{
		Grid:       opts.Grid,
		Year:       opts.Year,
		Names:      append([]string(nil), opts.Bands...),
		Bands:      make([]raster.Band, len(opts.Bands)),
		ValidCount: make([][]int, opts.Grid.SizeY),
		SceneCount: len(scenes),
	}
	for i := range out.Bands {
		out.Bands[i] = raster.NewBand(opts.Grid.SizeX, opts.Grid.SizeY)
	}
	for y := range out.ValidCount {
		out.ValidCount[y] = make([]int, opts.Grid.SizeX)
	}

	// Rows are independent; each goroutine writes only its own row.
	g := new(errgroup.Group)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for y := 0; y < opts.Grid.SizeY; y++ {
		g.Go(func() error {
			values := make([]float64, 0, len(scenes))
			for x := 0; x < opts.Grid.SizeX; x++ {
				px, py := opts.Grid.PixelCenter(x, y)
				if !inRegion(orb.Point{px, py}) {
					for i := range out.Bands {
						out.Bands[i][y][x] = raster.NoData
					}
					continue
				}
				count := 0
				for _, scene := range scenes {
					if scene.Mask[y][x] {
						count++
					}
				}
				out.ValidCount[y][x] = count
				for i := range out.Bands {
					values = values[:0]
					for s, scene := range scenes {
						if scene.Mask[y][x] {
							values = append(values, bands[i][s][y][x])
						}
					}
					if len(values) == 0 {
						out.Bands[i][y][x] = raster.NoData
						continue
					}
					out.Bands[i][y][x] = median(values)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// median sorts in place. Even-sized sets take the mean of the two
// middle-ranked values.
func median(values []float64) float64 {
	sort.Float64s(values)
	n := len(values)
	if n%2 == 1 {
		return values[n/2]
	}
	return (values[n/2-1] + values[n/2]) / 2
}

func regionTest(region orb.Geometry) (func(orb.Point) bool, error) {
	switch geom := region.(type) {
	case nil:
		return func(orb.Point) bool { return true }, nil
	case orb.Polygon:
		return func(pt orb.Point) bool { return planar.PolygonContains(geom, pt) }, nil
	case orb.MultiPolygon:
		return func(pt orb.Point) bool { return planar.MultiPolygonContains(geom, pt) }, nil
	default:
		return nil, fmt.Errorf("unsupported region geometry %T", region)
	}
}
