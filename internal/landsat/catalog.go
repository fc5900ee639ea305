package landsat

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/airbusgeo/godal"
	"github.com/terralens/terralens-mosaic-poc/internal/raster"
	"github.com/terralens/terralens-mosaic-poc/internal/utils"
)

// BandLayout describes how scene GeoTIFFs are organized: surface-reflectance
// bands first, in order, then the QA band last.
type BandLayout struct {
	Reflectance []string
	QualityName string
}

func DefaultLayout() BandLayout {
	return BandLayout{
		Reflectance: []string{"SR_B4", "SR_B3", "SR_B2"},
		QualityName: "QA_PIXEL",
	}
}

// Catalog reads per-scene GeoTIFFs from a directory. Files are named
// <region>_<YYYY-MM-DD>.tif. A JSON side file lists acquisitions known to be
// unusable so they are not reopened on every run.
type Catalog struct {
	Dir    string
	Layout BandLayout
}

func NewCatalog(dir string, layout BandLayout) *Catalog {
	return &Catalog{Dir: dir, Layout: layout}
}

func (c *Catalog) invalidScenesFile() string {
	return filepath.Join(c.Dir, "invalid_scenes.json")
}

func (c *Catalog) loadInvalidScenes() map[string]struct{} {
	invalid := make(map[string]struct{})
	data, err := os.ReadFile(c.invalidScenesFile())
	if err != nil {
		return invalid
	}
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return invalid
	}
	for _, name := range names {
		invalid[name] = struct{}{}
	}
	return invalid
}

func (c *Catalog) saveInvalidScene(name string) {
	invalid := c.loadInvalidScenes()
	invalid[name] = struct{}{}
	names := make([]string, 0, len(invalid))
	for n := range invalid {
		names = append(names, n)
	}
	data, _ := json.Marshal(names)
	_ = os.WriteFile(c.invalidScenesFile(), data, 0644)
}

func (c *Catalog) sceneFile(region string, date time.Time) string {
	return filepath.Join(c.Dir, fmt.Sprintf("%s_%s.tif", region, date.Format("2006-01-02")))
}

// listFiles returns the catalog files for a region inside the closed
// interval [start, end], keyed by acquisition date.
func (c *Catalog) listFiles(region string, start, end time.Time) (map[time.Time]string, error) {
	pattern := filepath.Join(c.Dir, region+"_*.tif")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to list scenes for %s: %w", region, err)
	}

	invalid := c.loadInvalidScenes()
	files := make(map[time.Time]string)
	for _, path := range matches {
		name := filepath.Base(path)
		if _, bad := invalid[name]; bad {
			continue
		}
		stem := strings.TrimSuffix(name, ".tif")
		idx := strings.LastIndex(stem, "_")
		if idx < 0 {
			continue
		}
		date, err := time.Parse("2006-01-02", stem[idx+1:])
		if err != nil {
			continue
		}
		if date.Before(start) || date.After(end) {
			continue
		}
		files[date] = path
	}
	return files, nil
}

// Scenes loads every catalog scene for the region and interval, sorted by
// acquisition date. A scene file without a QA band is returned with a nil
// QualityRaster so the masking stage can reject and report it.
func (c *Catalog) Scenes(region string, start, end time.Time) ([]raster.Scene, error) {
	files, err := c.listFiles(region, start, end)
	if err != nil {
		return nil, err
	}

	scenes := make([]raster.Scene, 0, len(files))
	for _, date := range utils.GetSortedKeys(files, true) {
		scene, err := c.readScene(region, date, files[date])
		if err != nil {
			return nil, err
		}
		scenes = append(scenes, scene)
	}
	return scenes, nil
}

// TargetGrid returns the grid of the first scene in the interval, which
// every other scene in a run is expected to share.
func (c *Catalog) TargetGrid(region string, start, end time.Time) (raster.Grid, error) {
	files, err := c.listFiles(region, start, end)
	if err != nil {
		return raster.Grid{}, err
	}
	dates := utils.GetSortedKeys(files, true)
	if len(dates) == 0 {
		return raster.Grid{}, fmt.Errorf("no scenes found for region %s between %s and %s", region, start.Format("2006-01-02"), end.Format("2006-01-02"))
	}
	ds, err := openDataset(files[dates[0]])
	if err != nil {
		return raster.Grid{}, err
	}
	defer ds.Close()
	return readGrid(ds)
}

func (c *Catalog) readScene(region string, date time.Time, path string) (raster.Scene, error) {
	ds, err := openDataset(path)
	if err != nil {
		return raster.Scene{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer ds.Close()

	grid, err := readGrid(ds)
	if err != nil {
		return raster.Scene{}, fmt.Errorf("%s: %w", path, err)
	}

	bands := ds.Bands()
	if len(bands) < len(c.Layout.Reflectance) {
		return raster.Scene{}, fmt.Errorf("%s has %d bands, expected at least %d reflectance bands", path, len(bands), len(c.Layout.Reflectance))
	}

	reflectance := &raster.ReflectanceRaster{
		Grid:  grid,
		Names: append([]string(nil), c.Layout.Reflectance...),
		Bands: make([]raster.Band, len(c.Layout.Reflectance)),
	}
	for i := range c.Layout.Reflectance {
		data, err := readBand(bands[i], grid)
		if err != nil {
			return raster.Scene{}, fmt.Errorf("failed to read band %s of %s: %w", c.Layout.Reflectance[i], path, err)
		}
		reflectance.Bands[i] = data
	}

	scene := raster.Scene{
		Region:      region,
		Date:        date,
		Reflectance: reflectance,
	}

	// QA band, when present, sits after the reflectance bands.
	if len(bands) > len(c.Layout.Reflectance) {
		data, err := readBand(bands[len(c.Layout.Reflectance)], grid)
		if err != nil {
			return raster.Scene{}, fmt.Errorf("failed to read band %s of %s: %w", c.Layout.QualityName, path, err)
		}
		codes := make([][]uint16, grid.SizeY)
		for y := range codes {
			codes[y] = make([]uint16, grid.SizeX)
			for x := range codes[y] {
				codes[y][x] = uint16(data[y][x])
			}
		}
		scene.Quality = &raster.QualityRaster{Grid: grid, Codes: codes}
	}

	return scene, nil
}

func openDataset(path string) (*godal.Dataset, error) {
	godal.RegisterInternalDrivers()
	return godal.Open(path, godal.ErrLogger(func(ec godal.ErrorCategory, code int, msg string) error {
		if ec == godal.CE_Warning {
			return nil
		}
		return errors.New(msg)
	}))
}

func readGrid(ds *godal.Dataset) (raster.Grid, error) {
	structure := ds.Structure()
	gt, err := ds.GeoTransform()
	if err != nil {
		return raster.Grid{}, fmt.Errorf("failed to get GeoTransform: %w", err)
	}
	grid := raster.Grid{
		SizeX:        structure.SizeX,
		SizeY:        structure.SizeY,
		GeoTransform: gt,
	}
	if sr := ds.SpatialRef(); sr != nil {
		defer sr.Close()
		if wkt, err := sr.WKT(); err == nil {
			grid.SRS = wkt
		}
	}
	return grid, nil
}

func readBand(band godal.Band, grid raster.Grid) (raster.Band, error) {
	data := make([]float64, grid.SizeX*grid.SizeY)
	if err := band.Read(0, 0, data, grid.SizeX, grid.SizeY); err != nil {
		return nil, err
	}
	result := make(raster.Band, grid.SizeY)
	for y := range result {
		result[y] = data[y*grid.SizeX : (y+1)*grid.SizeX]
	}
	return result, nil
}
