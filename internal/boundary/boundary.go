package boundary

import (
	"fmt"
	"os"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/terralens/terralens-mosaic-poc/internal/cache"
)

// Service resolves region names against a local GeoJSON boundary dataset.
// Lookups are cached because boundary files for administrative areas run to
// tens of megabytes and the same region is resolved once per run.
type Service struct {
	filePath string
	cache    *cache.FileCache[*geojson.Feature]
}

func NewService(filePath string) *Service {
	return &Service{
		filePath: filePath,
		cache:    cache.NewFileCache[*geojson.Feature]("boundaries"),
	}
}

// Region returns the geometry of the named region. idProp is the feature
// property to match against; when it does not match, every string property
// is tried, so callers can pass the human name without knowing the schema.
// Matching is case-insensitive.
func (s *Service) Region(idProp, name string) (orb.Geometry, error) {
	key := s.cache.GenerateKey(s.filePath, idProp, name)
	if feat, ok := s.cache.Get(key); ok {
		return feat.Geometry, nil
	}

	fc, err := s.load()
	if err != nil {
		return nil, err
	}

	feat := findFeature(fc, idProp, name)
	if feat == nil {
		return nil, fmt.Errorf("region %q not found in %s", name, s.filePath)
	}

	if err := s.cache.Set(key, feat); err != nil {
		fmt.Printf("Failed to cache boundary for %s: %v\n", name, err)
	}
	return feat.Geometry, nil
}

// Names lists the values of idProp across the dataset, for region discovery.
func (s *Service) Names(idProp string) ([]string, error) {
	fc, err := s.load()
	if err != nil {
		return nil, err
	}
	var names []string
	for _, feat := range fc.Features {
		if v, ok := feat.Properties[idProp]; ok {
			if str, ok := v.(string); ok {
				names = append(names, str)
			}
		}
	}
	return names, nil
}

func (s *Service) load() (*geojson.FeatureCollection, error) {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read boundary file %s: %w", s.filePath, err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("invalid GeoJSON in %s: %w", s.filePath, err)
	}
	return fc, nil
}

func findFeature(fc *geojson.FeatureCollection, idProp, name string) *geojson.Feature {
	want := strings.ToLower(strings.TrimSpace(name))
	for _, feat := range fc.Features {
		if v, ok := feat.Properties[idProp]; ok {
			if str, ok := v.(string); ok && strings.ToLower(strings.TrimSpace(str)) == want {
				return feat
			}
		}
	}
	// Schema unknown or wrong property name: try every string property.
	for _, feat := range fc.Features {
		for _, v := range feat.Properties {
			if str, ok := v.(string); ok && strings.ToLower(strings.TrimSpace(str)) == want {
				return feat
			}
		}
	}
	return nil
}
