package composite_test

import (
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"
	"github.com/terralens/terralens-mosaic-poc/internal/composite"
	"github.com/terralens/terralens-mosaic-poc/internal/raster"
)

func testGrid(sizeX, sizeY int) raster.Grid {
	return raster.Grid{
		SizeX:        sizeX,
		SizeY:        sizeY,
		GeoTransform: [6]float64{0, 1, 0, float64(sizeY), 0, -1},
	}
}

// maskedScene builds a single-band scene where every pixel holds the same
// value, with the given validity per pixel.
func maskedScene(grid raster.Grid, value float64, valid raster.Mask) raster.MaskedScene {
	band := raster.NewBand(grid.SizeX, grid.SizeY)
	for y := range band {
		for x := range band[y] {
			band[y][x] = value
		}
	}
	return raster.MaskedScene{
		Date: time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC),
		Reflectance: raster.ReflectanceRaster{
			Grid:  grid,
			Names: []string{"SR_B4"},
			Bands: []raster.Band{band},
		},
		Mask: valid,
	}
}

func allValid(grid raster.Grid) raster.Mask {
	m := raster.NewMask(grid.SizeX, grid.SizeY)
	for y := range m {
		for x := range m[y] {
			m[y][x] = true
		}
	}
	return m
}

func allInvalid(grid raster.Grid) raster.Mask {
	return raster.NewMask(grid.SizeX, grid.SizeY)
}

func options(grid raster.Grid) composite.Options {
	return composite.Options{Grid: grid, Bands: []string{"SR_B4"}, Year: 2021}
}

func TestMedianEvenCount(t *testing.T) {
	grid := testGrid(1, 1)
	scenes := []raster.MaskedScene{
		maskedScene(grid, 1, allValid(grid)),
		maskedScene(grid, 2, allValid(grid)),
		maskedScene(grid, 3, allValid(grid)),
		maskedScene(grid, 4, allValid(grid)),
	}

	comp, err := composite.Build(scenes, options(grid))
	require.NoError(t, err)
	require.Equal(t, 2.5, comp.Bands[0][0][0])
	require.Equal(t, 4, comp.ValidCount[0][0])
	require.Equal(t, 4, comp.SceneCount)
}

func TestMedianSingleObservation(t *testing.T) {
	grid := testGrid(1, 1)
	scenes := []raster.MaskedScene{maskedScene(grid, 5, allValid(grid))}

	comp, err := composite.Build(scenes, options(grid))
	require.NoError(t, err)
	require.Equal(t, 5.0, comp.Bands[0][0][0])
	require.Equal(t, 1, comp.ValidCount[0][0])
}

func TestMedianIgnoresInvalidObservations(t *testing.T) {
	grid := testGrid(1, 1)
	scenes := []raster.MaskedScene{
		maskedScene(grid, 1, allValid(grid)),
		maskedScene(grid, 100, allInvalid(grid)),
		maskedScene(grid, 3, allValid(grid)),
	}

	comp, err := composite.Build(scenes, options(grid))
	require.NoError(t, err)
	require.Equal(t, 2.0, comp.Bands[0][0][0])
	require.Equal(t, 2, comp.ValidCount[0][0])
	require.Equal(t, 3, comp.SceneCount)
}

func TestAllInvalidPixelIsNoData(t *testing.T) {
	grid := testGrid(1, 1)
	scenes := []raster.MaskedScene{
		maskedScene(grid, 1, allInvalid(grid)),
		maskedScene(grid, 2, allInvalid(grid)),
	}

	comp, err := composite.Build(scenes, options(grid))
	require.NoError(t, err)
	require.True(t, raster.IsNoData(comp.Bands[0][0][0]))
	require.Equal(t, 0, comp.ValidCount[0][0])
}

func TestOrderIndependence(t *testing.T) {
	grid := testGrid(2, 2)

	partial := allValid(grid)
	partial[0][1] = false
	partial[1][0] = false

	scenes := []raster.MaskedScene{
		maskedScene(grid, 0.1, allValid(grid)),
		maskedScene(grid, 0.7, partial),
		maskedScene(grid, 0.4, allValid(grid)),
		maskedScene(grid, 0.2, allInvalid(grid)),
	}

	reference, err := composite.Build(scenes, options(grid))
	require.NoError(t, err)

	permutations := [][]int{
		{3, 2, 1, 0},
		{1, 3, 0, 2},
		{2, 0, 3, 1},
	}
	for _, perm := range permutations {
		shuffled := make([]raster.MaskedScene, len(scenes))
		for i, j := range perm {
			shuffled[i] = scenes[j]
		}
		comp, err := composite.Build(shuffled, options(grid))
		require.NoError(t, err)
		requireSameComposite(t, reference, comp)
	}
}

func TestEmptyInputYieldsAllNoData(t *testing.T) {
	grid := testGrid(3, 2)

	comp, err := composite.Build(nil, options(grid))
	require.NoError(t, err)
	require.Equal(t, 0, comp.SceneCount)
	require.Len(t, comp.Bands[0], 2)
	require.Len(t, comp.Bands[0][0], 3)
	for y := 0; y < grid.SizeY; y++ {
		for x := 0; x < grid.SizeX; x++ {
			require.True(t, raster.IsNoData(comp.Bands[0][y][x]))
			require.Equal(t, 0, comp.ValidCount[y][x])
		}
	}
	require.Equal(t, 0.0, comp.ValidPixelFraction())
}

func TestClipBoundary(t *testing.T) {
	grid := testGrid(4, 4)

	// Left half of the grid: pixel centers at x = 0.5 and 1.5.
	region := orb.Polygon{{{0, 0}, {2, 0}, {2, 4}, {0, 4}, {0, 0}}}

	scenes := []raster.MaskedScene{maskedScene(grid, 7, allValid(grid))}
	opts := options(grid)
	opts.Region = region

	comp, err := composite.Build(scenes, opts)
	require.NoError(t, err)

	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			if x < 2 {
				require.Equal(t, 7.0, comp.Bands[0][y][x], "pixel (%d,%d)", x, y)
				require.Equal(t, 1, comp.ValidCount[y][x])
			} else {
				// Outside the region: no-data even though the scene is valid there.
				require.True(t, raster.IsNoData(comp.Bands[0][y][x]), "pixel (%d,%d)", x, y)
				require.Equal(t, 0, comp.ValidCount[y][x])
			}
		}
	}
}

func TestMultiPolygonClip(t *testing.T) {
	grid := testGrid(2, 1)
	region := orb.MultiPolygon{
		{{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}},
	}

	scenes := []raster.MaskedScene{maskedScene(grid, 1, allValid(grid))}
	opts := options(grid)
	opts.Region = region

	comp, err := composite.Build(scenes, opts)
	require.NoError(t, err)
	require.Equal(t, 1.0, comp.Bands[0][0][0])
	require.True(t, raster.IsNoData(comp.Bands[0][0][1]))
}

func TestUnsupportedRegionGeometry(t *testing.T) {
	grid := testGrid(1, 1)
	opts := options(grid)
	opts.Region = orb.LineString{{0, 0}, {1, 1}}

	_, err := composite.Build(nil, opts)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported region geometry")
}

func TestGridMismatchRejected(t *testing.T) {
	grid := testGrid(2, 2)
	other := testGrid(3, 3)

	scenes := []raster.MaskedScene{maskedScene(other, 1, allValid(other))}

	_, err := composite.Build(scenes, options(grid))
	require.ErrorIs(t, err, raster.ErrGridMismatch)
}

func TestMissingBandRejected(t *testing.T) {
	grid := testGrid(1, 1)
	scenes := []raster.MaskedScene{maskedScene(grid, 1, allValid(grid))}

	opts := options(grid)
	opts.Bands = []string{"SR_B7"}

	_, err := composite.Build(scenes, opts)
	require.Error(t, err)
	require.Contains(t, err.Error(), "missing band")
}

// requireSameComposite compares band data treating two no-data pixels as
// equal (NaN breaks plain equality).
func requireSameComposite(t *testing.T, want, got *raster.Composite) {
	t.Helper()
	require.Equal(t, want.Names, got.Names)
	require.Equal(t, want.ValidCount, got.ValidCount)
	require.Equal(t, want.SceneCount, got.SceneCount)
	for i := range want.Bands {
		for y := range want.Bands[i] {
			for x := range want.Bands[i][y] {
				wv, gv := want.Bands[i][y][x], got.Bands[i][y][x]
				if raster.IsNoData(wv) {
					require.True(t, raster.IsNoData(gv), "band %d pixel (%d,%d)", i, x, y)
					continue
				}
				require.Equal(t, wv, gv, "band %d pixel (%d,%d)", i, x, y)
			}
		}
	}
}
