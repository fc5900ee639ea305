package raster

import (
	"errors"
	"math"
	"time"
)

var (
	// ErrMissingQualityBand is returned when a scene lacks its QA band.
	ErrMissingQualityBand = errors.New("scene has no quality band")
	// ErrGridMismatch is returned when a raster's grid does not line up with the target grid.
	ErrGridMismatch = errors.New("raster grid does not match target grid")
)

// Grid is the spatial layout shared by every raster in a pipeline run:
// pixel dimensions, the GDAL-style geotransform and the spatial reference
// as WKT. The geotransform and SRS are carried through untouched.
type Grid struct {
	SizeX        int
	SizeY        int
	GeoTransform [6]float64
	SRS          string
}

func (g Grid) Equal(other Grid) bool {
	return g.SizeX == other.SizeX &&
		g.SizeY == other.SizeY &&
		g.GeoTransform == other.GeoTransform &&
		g.SRS == other.SRS
}

// PixelCenter returns the georeferenced coordinates of the center of pixel (x, y).
func (g Grid) PixelCenter(x, y int) (float64, float64) {
	gt := g.GeoTransform
	px := gt[0] + gt[1]*(float64(x)+0.5) + gt[2]*(float64(y)+0.5)
	py := gt[3] + gt[4]*(float64(x)+0.5) + gt[5]*(float64(y)+0.5)
	return px, py
}

// Band is a single raster band, indexed [row][column].
type Band [][]float64

func NewBand(sizeX, sizeY int) Band {
	b := make(Band, sizeY)
	for y := range b {
		b[y] = make([]float64, sizeX)
	}
	return b
}

// NoData marks a pixel with no valid contributing observation. Band data
// alone cannot distinguish it from a valid value, so composites also carry
// a per-pixel valid-observation count.
var NoData = math.NaN()

func IsNoData(v float64) bool {
	return math.IsNaN(v)
}

// QualityRaster is one scene's bit-packed QA band.
type QualityRaster struct {
	Grid  Grid
	Codes [][]uint16
}

// ReflectanceRaster holds a scene's surface-reflectance bands in band-list order.
type ReflectanceRaster struct {
	Grid  Grid
	Names []string
	Bands []Band
}

func (r ReflectanceRaster) Band(name string) (Band, bool) {
	for i, n := range r.Names {
		if n == name {
			return r.Bands[i], true
		}
	}
	return nil, false
}

// Mask marks which pixels of a scene are usable, true meaning usable.
type Mask [][]bool

func NewMask(sizeX, sizeY int) Mask {
	m := make(Mask, sizeY)
	for y := range m {
		m[y] = make([]bool, sizeX)
	}
	return m
}

// Scene is one satellite observation as loaded from the catalog. Quality is
// nil when the acquisition shipped without its QA band.
type Scene struct {
	Region      string
	Date        time.Time
	Quality     *QualityRaster
	Reflectance *ReflectanceRaster
}

// MaskedScene is a scene after quality masking: reflectance scaled to
// physical units and a boolean mask flagging usable pixels. Invalid pixels
// keep their scaled values; only the mask governs their visibility.
type MaskedScene struct {
	Date        time.Time
	Reflectance ReflectanceRaster
	Mask        Mask
}

// Composite is one representative raster for a (region, year) pair. Band
// values are NaN wherever ValidCount is zero; ValidCount is authoritative
// for the no-data state.
type Composite struct {
	Grid       Grid
	Year       int
	Names      []string
	Bands      []Band
	ValidCount [][]int
	SceneCount int
}

func (c *Composite) Band(name string) (Band, bool) {
	for i, n := range c.Names {
		if n == name {
			return c.Bands[i], true
		}
	}
	return nil, false
}

// ValidPixelFraction reports the share of pixels with at least one valid
// contributing observation.
func (c *Composite) ValidPixelFraction() float64 {
	total := c.Grid.SizeX * c.Grid.SizeY
	if total == 0 {
		return 0
	}
	valid := 0
	for _, row := range c.ValidCount {
		for _, n := range row {
			if n > 0 {
				valid++
			}
		}
	}
	return float64(valid) / float64(total)
}
