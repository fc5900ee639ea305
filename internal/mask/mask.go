package mask

import (
	"fmt"

	"github.com/terralens/terralens-mosaic-poc/internal/raster"
)

// Params configure the quality masking of one scene. Bit positions follow
// the sensor's QA-band encoding; the defaults match the Landsat Collection 2
// QA_PIXEL layout and surface-reflectance rescaling.
type Params struct {
	Scale     float64
	Offset    float64
	CloudBit  uint
	ShadowBit uint
}

func DefaultParams() Params {
	return Params{
		Scale:     0.0000275,
		Offset:    -0.2,
		CloudBit:  3,
		ShadowBit: 4,
	}
}

// Apply classifies every pixel of the scene as usable or not from its QA
// codes and rescales the raw digital numbers to physical reflectance.
// A pixel is usable iff neither the cloud bit nor the shadow bit is set.
// Scaling is unconditional: invalid pixels keep their scaled value and are
// only flagged by the mask.
func Apply(scene raster.Scene, p Params) (raster.MaskedScene, error) {
	if scene.Quality == nil {
		return raster.MaskedScene{}, fmt.Errorf("scene %s: %w", scene.Date.Format("2006-01-02"), raster.ErrMissingQualityBand)
	}
	if scene.Reflectance == nil {
		return raster.MaskedScene{}, fmt.Errorf("scene %s has no reflectance bands", scene.Date.Format("2006-01-02"))
	}
	if !scene.Quality.Grid.Equal(scene.Reflectance.Grid) {
		return raster.MaskedScene{}, fmt.Errorf("scene %s: quality band vs reflectance: %w", scene.Date.Format("2006-01-02"), raster.ErrGridMismatch)
	}

	grid := scene.Reflectance.Grid
	m := raster.NewMask(grid.SizeX, grid.SizeY)
	for y := 0; y < grid.SizeY; y++ {
		for x := 0; x < grid.SizeX; x++ {
			code := scene.Quality.Codes[y][x]
			cloud := (code >> p.CloudBit) & 1
			shadow := (code >> p.ShadowBit) & 1
			m[y][x] = cloud == 0 && shadow == 0
		}
	}

	scaled := raster.ReflectanceRaster{
		Grid:  grid,
		Names: append([]string(nil), scene.Reflectance.Names...),
		Bands: make([]raster.Band, len(scene.Reflectance.Bands)),
	}
	for i, band := range scene.Reflectance.Bands {
		out := raster.NewBand(grid.SizeX, grid.SizeY)
		for y := range band {
			for x, raw := range band[y] {
				out[y][x] = raw*p.Scale + p.Offset
			}
		}
		scaled.Bands[i] = out
	}

	return raster.MaskedScene{
		Date:        scene.Date,
		Reflectance: scaled,
		Mask:        m,
	}, nil
}
