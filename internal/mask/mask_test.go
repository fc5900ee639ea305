package mask_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/terralens/terralens-mosaic-poc/internal/mask"
	"github.com/terralens/terralens-mosaic-poc/internal/raster"
)

func testGrid(sizeX, sizeY int) raster.Grid {
	return raster.Grid{
		SizeX:        sizeX,
		SizeY:        sizeY,
		GeoTransform: [6]float64{0, 1, 0, float64(sizeY), 0, -1},
	}
}

func sceneWithCode(code uint16, raw float64) raster.Scene {
	grid := testGrid(1, 1)
	return raster.Scene{
		Date:    time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC),
		Quality: &raster.QualityRaster{Grid: grid, Codes: [][]uint16{{code}}},
		Reflectance: &raster.ReflectanceRaster{
			Grid:  grid,
			Names: []string{"SR_B4"},
			Bands: []raster.Band{{{raw}}},
		},
	}
}

func TestApplyMaskTruthTable(t *testing.T) {
	p := mask.DefaultParams()

	cases := []struct {
		name   string
		cloud  bool
		shadow bool
		valid  bool
	}{
		{"clear", false, false, true},
		{"cloud only", true, false, false},
		{"shadow only", false, true, false},
		{"cloud and shadow", true, true, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var code uint16
			if tc.cloud {
				code |= 1 << p.CloudBit
			}
			if tc.shadow {
				code |= 1 << p.ShadowBit
			}

			masked, err := mask.Apply(sceneWithCode(code, 10000), p)
			require.NoError(t, err)
			require.Equal(t, tc.valid, masked.Mask[0][0])
		})
	}
}

func TestApplyScalesReflectance(t *testing.T) {
	p := mask.DefaultParams()

	masked, err := mask.Apply(sceneWithCode(0, 10000), p)
	require.NoError(t, err)
	require.InDelta(t, -0.1975, masked.Reflectance.Bands[0][0][0], 1e-12)
}

func TestApplyScalesInvalidPixelsToo(t *testing.T) {
	p := mask.DefaultParams()
	code := uint16(1) << p.CloudBit

	masked, err := mask.Apply(sceneWithCode(code, 10000), p)
	require.NoError(t, err)
	require.False(t, masked.Mask[0][0])
	require.InDelta(t, -0.1975, masked.Reflectance.Bands[0][0][0], 1e-12)
}

func TestApplyConfigurableBitPositions(t *testing.T) {
	p := mask.Params{Scale: 1, Offset: 0, CloudBit: 1, ShadowBit: 2}

	// Bit 3 set means nothing under this encoding.
	masked, err := mask.Apply(sceneWithCode(1<<3, 100), p)
	require.NoError(t, err)
	require.True(t, masked.Mask[0][0])

	masked, err = mask.Apply(sceneWithCode(1<<1, 100), p)
	require.NoError(t, err)
	require.False(t, masked.Mask[0][0])
}

func TestApplyMissingQualityBand(t *testing.T) {
	scene := sceneWithCode(0, 10000)
	scene.Quality = nil

	_, err := mask.Apply(scene, mask.DefaultParams())
	require.ErrorIs(t, err, raster.ErrMissingQualityBand)
}

func TestApplyGridMismatch(t *testing.T) {
	scene := sceneWithCode(0, 10000)
	scene.Quality = &raster.QualityRaster{
		Grid:  testGrid(2, 2),
		Codes: [][]uint16{{0, 0}, {0, 0}},
	}

	_, err := mask.Apply(scene, mask.DefaultParams())
	require.ErrorIs(t, err, raster.ErrGridMismatch)
}

func TestApplyMaskCoversAllBands(t *testing.T) {
	grid := testGrid(2, 1)
	scene := raster.Scene{
		Date:    time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC),
		Quality: &raster.QualityRaster{Grid: grid, Codes: [][]uint16{{1 << 3, 0}}},
		Reflectance: &raster.ReflectanceRaster{
			Grid:  grid,
			Names: []string{"SR_B4", "SR_B3"},
			Bands: []raster.Band{{{100, 200}}, {{300, 400}}},
		},
	}

	masked, err := mask.Apply(scene, mask.Params{Scale: 1, Offset: 0, CloudBit: 3, ShadowBit: 4})
	require.NoError(t, err)

	// Validity is per pixel, uniform across bands.
	require.False(t, masked.Mask[0][0])
	require.True(t, masked.Mask[0][1])
	require.Equal(t, 100.0, masked.Reflectance.Bands[0][0][0])
	require.Equal(t, 400.0, masked.Reflectance.Bands[1][0][1])
}
