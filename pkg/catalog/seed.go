package catalog

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"tourgo/pkg/config"
	"tourgo/pkg/model"
)

// seedFile is the on-disk catalog format, so a venue can ship its POI list
// as a YAML file instead of a pre-built database.
type seedFile struct {
	POIs []seedPOI `yaml:"pois"`
}

type seedPOI struct {
	ID       string        `yaml:"id"`
	Code     string        `yaml:"code"`
	Type     string        `yaml:"type"`
	Name     string        `yaml:"name"`
	Lat      float64       `yaml:"lat"`
	Lon      float64       `yaml:"lon"`
	Alt      float64       `yaml:"alt"`
	Tags     []string      `yaml:"tags"`
	Active   *bool         `yaml:"active"` // default true
	Contents []seedContent `yaml:"contents"`
}

type seedContent struct {
	ID          string            `yaml:"id"`
	Language    string            `yaml:"language"`
	Type        string            `yaml:"type"`
	Title       string            `yaml:"title"`
	Description string            `yaml:"description"`
	MediaURL    string            `yaml:"media_url"`
	Duration    config.Duration   `yaml:"duration"`
	Active      *bool             `yaml:"active"` // default true
	Metadata    map[string]string `yaml:"metadata"`
}

// LoadSeedFile reads a YAML catalog file and tracks every POI in it.
// Already-cataloged POIs with the same ID are replaced.
func (m *Manager) LoadSeedFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read catalog seed: %w", err)
	}

	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return 0, fmt.Errorf("failed to parse catalog seed: %w", err)
	}

	now := time.Now()
	for i := range seed.POIs {
		sp := &seed.POIs[i]
		if sp.ID == "" {
			return 0, fmt.Errorf("catalog seed entry %d has no id", i)
		}

		p := &model.POI{
			ID:        sp.ID,
			Code:      sp.Code,
			Type:      model.POIType(sp.Type),
			Name:      sp.Name,
			Lat:       sp.Lat,
			Lon:       sp.Lon,
			Alt:       sp.Alt,
			Tags:      sp.Tags,
			Active:    sp.Active == nil || *sp.Active,
			CreatedAt: now,
			UpdatedAt: now,
		}
		for _, sc := range sp.Contents {
			p.Contents = append(p.Contents, model.Content{
				ID:          sc.ID,
				Language:    model.Language(sc.Language),
				Type:        model.ContentType(sc.Type),
				Title:       sc.Title,
				Description: sc.Description,
				MediaURL:    sc.MediaURL,
				Duration:    time.Duration(sc.Duration),
				Active:      sc.Active == nil || *sc.Active,
				Metadata:    sc.Metadata,
			})
		}
		m.Track(p)
	}

	m.logger.Info("Loaded catalog seed", "path", path, "pois", len(seed.POIs))
	return len(seed.POIs), nil
}
