package tiles

import (
	"fmt"
	"strconv"
	"strings"
)

// Vis are display-stretch parameters for tile rendering and previews. They
// never affect composite values.
type Vis struct {
	Min   float64
	Max   float64
	Gamma float64
}

func DefaultVis() Vis {
	return Vis{Min: 0.0, Max: 0.3, Gamma: 1.4}
}

// Reference is the retrievable tile endpoint for one year's composite.
type Reference struct {
	Year int
	URL  string
}

// BuildURL expands a tile URL template for one year. The template must
// contain a {year} placeholder; {min}, {max} and {gamma} are replaced with
// the visualization parameters, and {z}/{x}/{y} are left for the tile
// client.
func BuildURL(template string, year int, vis Vis) (string, error) {
	if template == "" {
		return "", fmt.Errorf("tile URL template is empty")
	}
	if !strings.Contains(template, "{year}") {
		return "", fmt.Errorf("tile URL template %q has no {year} placeholder", template)
	}
	r := strings.NewReplacer(
		"{year}", strconv.Itoa(year),
		"{min}", formatFloat(vis.Min),
		"{max}", formatFloat(vis.Max),
		"{gamma}", formatFloat(vis.Gamma),
	)
	return r.Replace(template), nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
