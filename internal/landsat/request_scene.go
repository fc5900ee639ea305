package landsat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"golang.org/x/oauth2/clientcredentials"
)

// ErrSceneNotFound reports an acquisition gap, not a request failure.
var ErrSceneNotFound = fmt.Errorf("scene not found")

const sceneResolutionMeters = 30

func calculatePixels(distance float64, resolution float64) int {
	pixels := distance * (111_000.0 / resolution)
	if pixels < 1 {
		return 1
	}
	return int(pixels)
}

// RequestScene fetches one day's acquisition over the geometry from the
// processing API as a GeoTIFF with the layout's reflectance bands plus the
// QA band. Credentials come from the environment.
func RequestScene(geom orb.Geometry, day time.Time, layout BandLayout) ([]byte, error) {
	start := day
	end := day.Add(time.Hour*23 + time.Minute*59 + time.Second*59)

	bound := geom.Bound()
	widthPixels := calculatePixels(bound.Max[0]-bound.Min[0], sceneResolutionMeters)
	heightPixels := calculatePixels(bound.Max[1]-bound.Min[1], sceneResolutionMeters)
	// Clamp to allowed range (1-2500)
	if widthPixels > 2500 {
		widthPixels = 2500
	}
	if heightPixels > 2500 {
		heightPixels = 2500
	}

	geometryGeojson, err := json.Marshal(geojson.NewGeometry(geom))
	if err != nil {
		return nil, fmt.Errorf("failed to export geometry to GeoJSON: %w", err)
	}
	var geojsonMap map[string]interface{}
	if err := json.Unmarshal(geometryGeojson, &geojsonMap); err != nil {
		return nil, fmt.Errorf("failed to parse GeoJSON: %w", err)
	}

	bandNames := append(append([]string(nil), layout.Reflectance...), layout.QualityName)
	requestPayload := map[string]interface{}{
		"input": map[string]interface{}{
			"bounds": map[string]interface{}{
				"geometry": geojsonMap,
			},
			"data": []map[string]interface{}{
				{
					"dataFilter": map[string]interface{}{
						"timeRange": map[string]string{
							"from": start.Format(time.RFC3339),
							"to":   end.Format(time.RFC3339),
						},
					},
					"type":  "landsat-c2-l2",
					"bands": bandNames,
				},
			},
		},
		"output": map[string]interface{}{
			"width":  widthPixels,
			"height": heightPixels,
			"responses": []map[string]interface{}{
				{
					"identifier": "default",
					"format": map[string]string{
						"type": "image/tiff",
					},
				},
			},
		},
	}

	requestBody, err := json.Marshal(requestPayload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %v", err)
	}

	clientID := os.Getenv("LANDSAT_CLIENT_ID")
	clientSecret := os.Getenv("LANDSAT_CLIENT_SECRET")
	tokenURL := os.Getenv("LANDSAT_TOKEN_URL")
	processURL := os.Getenv("LANDSAT_PROCESS_URL")

	if clientID == "" || clientSecret == "" || tokenURL == "" || processURL == "" {
		return nil, fmt.Errorf("missing required environment variables: LANDSAT_CLIENT_ID, LANDSAT_CLIENT_SECRET, LANDSAT_TOKEN_URL, or LANDSAT_PROCESS_URL")
	}

	config := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
	}
	httpClient := config.Client(context.Background())

	retries := 10
	var response *http.Response
	for attempt := 1; attempt <= retries; attempt++ {
		response, err = httpClient.Post(processURL, "application/json", bytes.NewBuffer(requestBody))
		if err == nil && response.StatusCode == http.StatusOK {
			break
		}

		if response != nil {
			body, _ := io.ReadAll(response.Body)
			bodyStr := string(body)
			response.Body.Close()
			response = nil
			if strings.Contains(bodyStr, "404") {
				return nil, ErrSceneNotFound
			}
			if strings.Contains(bodyStr, "403") {
				return nil, fmt.Errorf("unauthorized access, check your client ID and secret")
			}
			err = fmt.Errorf("unexpected response: %s", bodyStr)
			fmt.Printf("Attempt %d failed: %s\n", attempt, bodyStr)
		} else {
			fmt.Printf("Attempt %d failed: %v\n", attempt, err)
		}

		time.Sleep(5 * time.Second)
	}

	if response == nil {
		return nil, fmt.Errorf("failed to request scene after %d attempts: %v", retries, err)
	}
	defer response.Body.Close()

	content, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %v", err)
	}
	return content, nil
}

// Ensure downloads any scene missing from the catalog for the interval,
// stepping by the satellite revisit period. Acquisition gaps are remembered
// in the invalid-scene list so they are not requested again.
func (c *Catalog) Ensure(region string, geom orb.Geometry, start, end time.Time, revisitDays int) error {
	if err := os.MkdirAll(c.Dir, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create scenes directory: %v", err)
	}

	invalid := c.loadInvalidScenes()
	for day := start; !day.After(end); day = day.AddDate(0, 0, revisitDays) {
		path := c.sceneFile(region, day)
		name := fmt.Sprintf("%s_%s.tif", region, day.Format("2006-01-02"))
		if _, bad := invalid[name]; bad {
			continue
		}
		if _, err := os.Stat(path); err == nil {
			continue
		}

		data, err := RequestScene(geom, day, c.Layout)
		if err != nil {
			if err == ErrSceneNotFound {
				c.saveInvalidScene(name)
				continue
			}
			return fmt.Errorf("error requesting scene for %s: %w", day.Format("2006-01-02"), err)
		}

		if err := os.WriteFile(path, data, 0644); err != nil {
			return fmt.Errorf("failed to write scene file: %v", err)
		}
	}
	return nil
}
