package landsat

import (
	"fmt"
	"math"

	"github.com/airbusgeo/godal"
	"github.com/terralens/terralens-mosaic-poc/internal/raster"
)

// GeoTIFF no-data value written in place of NaN.
const noDataValue = -9999.0

// WriteComposite exports a composite as a multi-band Float32 GeoTIFF.
func WriteComposite(comp *raster.Composite, path string) error {
	godal.RegisterInternalDrivers()

	ds, err := godal.Create(godal.GTiff, path, len(comp.Bands), godal.Float32, comp.Grid.SizeX, comp.Grid.SizeY)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer ds.Close()

	if err := ds.SetGeoTransform(comp.Grid.GeoTransform); err != nil {
		return fmt.Errorf("failed to set GeoTransform on %s: %w", path, err)
	}
	if comp.Grid.SRS != "" {
		sr, err := godal.NewSpatialRefFromWKT(comp.Grid.SRS)
		if err != nil {
			return fmt.Errorf("invalid SRS for %s: %w", path, err)
		}
		defer sr.Close()
		if err := ds.SetSpatialRef(sr); err != nil {
			return fmt.Errorf("failed to set SRS on %s: %w", path, err)
		}
	}

	outBands := ds.Bands()
	data := make([]float64, comp.Grid.SizeX*comp.Grid.SizeY)
	for i, band := range comp.Bands {
		for y := range band {
			for x, v := range band[y] {
				if math.IsNaN(v) {
					v = noDataValue
				}
				data[y*comp.Grid.SizeX+x] = v
			}
		}
		if err := outBands[i].SetNoData(noDataValue); err != nil {
			return fmt.Errorf("failed to set no-data on band %s: %w", comp.Names[i], err)
		}
		if err := outBands[i].Write(0, 0, data, comp.Grid.SizeX, comp.Grid.SizeY); err != nil {
			return fmt.Errorf("failed to write band %s: %w", comp.Names[i], err)
		}
	}
	return nil
}
