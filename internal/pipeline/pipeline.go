package pipeline

import (
	"fmt"
	"sync"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/paulmach/orb"
	"github.com/schollz/progressbar/v3"
	"github.com/terralens/terralens-mosaic-poc/internal/composite"
	"github.com/terralens/terralens-mosaic-poc/internal/mask"
	"github.com/terralens/terralens-mosaic-poc/internal/raster"
	"github.com/terralens/terralens-mosaic-poc/internal/tiles"
)

// SceneSource yields the scenes intersecting a region and closed date
// interval. The catalog is the production implementation.
type SceneSource interface {
	Scenes(region string, start, end time.Time) ([]raster.Scene, error)
}

type Config struct {
	Region       string
	Geometry     orb.Geometry
	Grid         raster.Grid
	Bands        []string
	StartYear    int
	EndYear      int
	Mask         mask.Params
	Vis          tiles.Vis
	TileTemplate string
	Workers      int
	Quiet        bool
}

// Rejection records a scene excluded from a year's composite and why.
type Rejection struct {
	Date   time.Time
	Reason string
}

// YearResult is one year's composite plus its audit trail. Error is set when
// the whole year failed; a failed year never blocks the others.
type YearResult struct {
	Year               int     `csv:"year"`
	ScenesFound        int     `csv:"scenes_found"`
	ScenesUsed         int     `csv:"scenes_used"`
	ScenesRejected     int     `csv:"scenes_rejected"`
	ValidPixelFraction float64 `csv:"valid_pixel_fraction"`
	TileURL            string  `csv:"tile_url"`
	Error              string  `csv:"error"`

	Composite  *raster.Composite `csv:"-"`
	Rejections []Rejection       `csv:"-"`
}

// Run builds one composite per year in [StartYear, EndYear].
func Run(source SceneSource, cfg Config) ([]YearResult, error) {
	if cfg.EndYear < cfg.StartYear {
		return nil, fmt.Errorf("end year %d is before start year %d", cfg.EndYear, cfg.StartYear)
	}
	if len(cfg.Bands) == 0 {
		return nil, fmt.Errorf("no bands configured")
	}
	if cfg.Grid.SizeX <= 0 || cfg.Grid.SizeY <= 0 {
		return nil, fmt.Errorf("invalid target grid %dx%d", cfg.Grid.SizeX, cfg.Grid.SizeY)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}

	results := make([]YearResult, 0, cfg.EndYear-cfg.StartYear+1)
	for year := cfg.StartYear; year <= cfg.EndYear; year++ {
		results = append(results, buildYear(source, cfg, year))
	}
	return results, nil
}

func buildYear(source SceneSource, cfg Config, year int) YearResult {
	result := YearResult{Year: year}

	start := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(year, 12, 31, 23, 59, 59, 0, time.UTC)

	scenes, err := source.Scenes(cfg.Region, start, end)
	if err != nil {
		result.Error = fmt.Sprintf("failed to select scenes: %v", err)
		return result
	}
	result.ScenesFound = len(scenes)

	masked, rejections := maskScenes(scenes, cfg, year)
	result.Rejections = rejections
	result.ScenesRejected = len(rejections)
	result.ScenesUsed = len(masked)
	for _, rejection := range rejections {
		fmt.Printf("Rejected scene %s for %d: %s\n", rejection.Date.Format("2006-01-02"), year, rejection.Reason)
	}

	comp, err := composite.Build(masked, composite.Options{
		Grid:   cfg.Grid,
		Bands:  cfg.Bands,
		Region: cfg.Geometry,
		Year:   year,
	})
	if err != nil {
		result.Error = fmt.Sprintf("failed to build composite: %v", err)
		return result
	}
	result.Composite = comp
	result.ValidPixelFraction = comp.ValidPixelFraction()

	if cfg.TileTemplate != "" {
		url, err := tiles.BuildURL(cfg.TileTemplate, year, cfg.Vis)
		if err != nil {
			result.Error = fmt.Sprintf("failed to build tile reference: %v", err)
			return result
		}
		result.TileURL = url
	}

	return result
}

// maskScenes runs the quality masker over the year's scenes on a worker
// pool. Each scene is independent; a rejected scene is reported and never
// contributes to the reduction.
func maskScenes(scenes []raster.Scene, cfg Config, year int) ([]raster.MaskedScene, []Rejection) {
	var (
		mu         sync.Mutex
		masked     []raster.MaskedScene
		rejections []Rejection
	)

	var progressBar *progressbar.ProgressBar
	if !cfg.Quiet && len(scenes) > 0 {
		progressBar = progressbar.Default(int64(len(scenes)), fmt.Sprintf("Masking scenes for %d", year))
	}

	wp := workerpool.New(cfg.Workers)
	for _, scene := range scenes {
		s := scene
		wp.Submit(func() {
			ms, err := maskScene(s, cfg)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				rejections = append(rejections, Rejection{Date: s.Date, Reason: err.Error()})
			} else {
				masked = append(masked, ms)
			}
			if progressBar != nil {
				progressBar.Add(1)
			}
		})
	}
	wp.StopWait()

	if progressBar != nil {
		progressBar.Finish()
	}
	return masked, rejections
}

func maskScene(scene raster.Scene, cfg Config) (raster.MaskedScene, error) {
	if scene.Reflectance == nil {
		return raster.MaskedScene{}, fmt.Errorf("scene %s has no reflectance bands", scene.Date.Format("2006-01-02"))
	}
	if !scene.Reflectance.Grid.Equal(cfg.Grid) {
		return raster.MaskedScene{}, fmt.Errorf("scene %s: %v", scene.Date.Format("2006-01-02"), raster.ErrGridMismatch)
	}
	return mask.Apply(scene, cfg.Mask)
}
