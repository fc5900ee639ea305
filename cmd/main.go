package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/common-nighthawk/go-figure"
	bannercolor "github.com/fatih/color"
	"github.com/gocarina/gocsv"
	"github.com/joho/godotenv"
	"github.com/terralens/terralens-mosaic-poc/internal/boundary"
	"github.com/terralens/terralens-mosaic-poc/internal/landsat"
	"github.com/terralens/terralens-mosaic-poc/internal/mask"
	"github.com/terralens/terralens-mosaic-poc/internal/notification"
	"github.com/terralens/terralens-mosaic-poc/internal/pipeline"
	"github.com/terralens/terralens-mosaic-poc/internal/properties"
	"github.com/terralens/terralens-mosaic-poc/internal/tiles"
	"github.com/terralens/terralens-mosaic-poc/output"
)

const landsatRevisitDays = 16

func printBanner() {
	figure1 := figure.NewFigure("TerraLens", "isometric1", true)
	figure2 := figure.NewFigure("Mosaic", "isometric1", true)
	bannercolor.Cyan(figure1.String())
	bannercolor.Cyan(figure2.String())
	fmt.Println()
}

func main() {
	printBanner()
	godotenv.Load()

	currentYear := time.Now().Year()

	region := flag.String("region", "", "region name to composite")
	idProp := flag.String("id-prop", "name", "boundary feature property holding the region name")
	startYear := flag.Int("start-year", currentYear-4, "first year to composite")
	endYear := flag.Int("end-year", currentYear, "last year to composite")
	bandsFlag := flag.String("bands", "SR_B4,SR_B3,SR_B2", "comma-separated reflectance bands, in scene band order")
	boundaryFile := flag.String("boundary", properties.BoundaryFile(), "GeoJSON boundary dataset")
	scenesDir := flag.String("scenes", properties.ScenesDir(), "directory of per-scene GeoTIFFs")
	outDir := flag.String("out", filepath.Join(properties.RootPath(), "data", "result"), "output directory")
	fetch := flag.Bool("fetch", false, "download missing scenes before compositing")
	list := flag.Bool("list", false, "list available region names and exit")
	flag.Parse()

	boundaries := boundary.NewService(*boundaryFile)

	if *list {
		names, err := boundaries.Names(*idProp)
		if err != nil {
			fmt.Printf("Failed to list regions: %v\n", err)
			os.Exit(1)
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return
	}

	if *region == "" {
		fmt.Println("Missing -region. Use -list to see available regions.")
		os.Exit(1)
	}

	if err := run(boundaries, *region, *idProp, *startYear, *endYear, *bandsFlag, *scenesDir, *outDir, *fetch); err != nil {
		fmt.Printf("Error: %v\n", err)
		if properties.DiscordErrorNotificationUrl() != "" {
			notification.SendDiscordErrorNotification(err.Error())
		}
		os.Exit(1)
	}
}

func run(boundaries *boundary.Service, region, idProp string, startYear, endYear int, bandsFlag, scenesDir, outDir string, fetch bool) error {
	geometry, err := boundaries.Region(idProp, region)
	if err != nil {
		return err
	}

	bands := strings.Split(bandsFlag, ",")
	for i := range bands {
		bands[i] = strings.TrimSpace(bands[i])
	}

	layout := landsat.DefaultLayout()
	layout.Reflectance = bands
	catalog := landsat.NewCatalog(scenesDir, layout)

	rangeStart := time.Date(startYear, 1, 1, 0, 0, 0, 0, time.UTC)
	rangeEnd := time.Date(endYear, 12, 31, 23, 59, 59, 0, time.UTC)

	if fetch {
		fmt.Printf("Fetching missing scenes for %s between %d and %d\n", region, startYear, endYear)
		if err := catalog.Ensure(region, geometry, rangeStart, rangeEnd, landsatRevisitDays); err != nil {
			return err
		}
	}

	grid, err := catalog.TargetGrid(region, rangeStart, rangeEnd)
	if err != nil {
		return err
	}

	maskParams := mask.Params{
		Scale:     properties.ReflectanceScale(),
		Offset:    properties.ReflectanceOffset(),
		CloudBit:  uint(properties.CloudBit()),
		ShadowBit: uint(properties.ShadowBit()),
	}

	results, err := pipeline.Run(catalog, pipeline.Config{
		Region:       region,
		Geometry:     geometry,
		Grid:         grid,
		Bands:        bands,
		StartYear:    startYear,
		EndYear:      endYear,
		Mask:         maskParams,
		Vis:          tiles.DefaultVis(),
		TileTemplate: properties.TileURLTemplate(),
		Workers:      properties.MaskWorkers(),
	})
	if err != nil {
		return err
	}

	if err := os.MkdirAll(outDir, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create output directory: %v", err)
	}

	failures := 0
	for _, result := range results {
		if result.Error != "" {
			failures++
			fmt.Printf("%d: FAILED: %s\n", result.Year, result.Error)
			continue
		}

		tifPath := filepath.Join(outDir, fmt.Sprintf("%s_%d.tif", region, result.Year))
		if err := landsat.WriteComposite(result.Composite, tifPath); err != nil {
			fmt.Printf("%d: failed to write GeoTIFF: %v\n", result.Year, err)
		}

		pngPath := filepath.Join(outDir, fmt.Sprintf("%s_%d.png", region, result.Year))
		if len(bands) >= 3 {
			if err := output.CreateCompositePreview(result.Composite, bands[0], bands[1], bands[2], tiles.DefaultVis(), pngPath); err != nil {
				fmt.Printf("%d: failed to render preview: %v\n", result.Year, err)
			}
		}

		fmt.Printf("%d: %d/%d scenes used, %.1f%% valid pixels\n", result.Year, result.ScenesUsed, result.ScenesFound, result.ValidPixelFraction*100)
		fmt.Printf("%d: tiles at %s\n", result.Year, result.TileURL)
	}

	reportPath := filepath.Join(outDir, fmt.Sprintf("%s_report.csv", region))
	if err := writeReport(results, reportPath); err != nil {
		return err
	}
	fmt.Printf("Report written to %s\n", reportPath)

	if properties.DiscordSuccessNotificationUrl() != "" {
		notification.SendDiscordSuccessNotification(fmt.Sprintf(
			"Region %s: %d composites built, %d years failed.", region, len(results)-failures, failures))
	}

	if failures == len(results) {
		return fmt.Errorf("every year failed for region %s", region)
	}
	return nil
}

func writeReport(results []pipeline.YearResult, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %v", err)
	}
	defer file.Close()

	if err := gocsv.MarshalFile(&results, file); err != nil {
		return fmt.Errorf("failed to write report: %v", err)
	}
	return nil
}
