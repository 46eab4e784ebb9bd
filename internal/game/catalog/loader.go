package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// yamlCatalogFile is the top-level YAML structure for catalog files.
// Field names follow the short keys of the public /locations payload.
type yamlCatalogFile struct {
	HighRisk  []string       `yaml:"high_risk"`
	Locations []yamlLocation `yaml:"locations"`
}

type yamlLocation struct {
	Name      string  `yaml:"n"`
	Lat       float64 `yaml:"lat"`
	Lng       float64 `yaml:"lng"`
	Level     int     `yaml:"lvl"`
	Rarity    string  `yaml:"rarity"`
	Radiation int     `yaml:"radiation"`
}

// LoadFromFile reads and validates a catalog YAML file.
//
// Precondition: path must point to a readable YAML catalog file.
// Postcondition: Returns a validated Catalog or a non-nil error.
func LoadFromFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog file %s: %w", path, err)
	}
	return LoadFromBytes(data)
}

// LoadFromBytes parses and validates a catalog from YAML bytes. A file
// without a high_risk list uses DefaultHighRisk.
//
// Postcondition: Returns a validated, non-empty Catalog or a non-nil error.
func LoadFromBytes(data []byte) (*Catalog, error) {
	var file yamlCatalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing catalog YAML: %w", err)
	}
	if len(file.Locations) == 0 {
		return nil, fmt.Errorf("catalog contains no locations")
	}

	highRisk := file.HighRisk
	if len(highRisk) == 0 {
		highRisk = DefaultHighRisk
	}

	locs := make([]Location, 0, len(file.Locations))
	for _, yl := range file.Locations {
		locs = append(locs, Location{
			Name:          yl.Name,
			RequiredLevel: yl.Level,
			Lat:           yl.Lat,
			Lng:           yl.Lng,
			Rarity:        yl.Rarity,
			Radiation:     yl.Radiation,
		})
	}

	c, err := New(locs, highRisk)
	if err != nil {
		return nil, fmt.Errorf("validating catalog: %w", err)
	}
	return c, nil
}
