package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"scriptportal-backend-go/internal/models"
	"scriptportal-backend-go/internal/rubric"
)

type catalogFile struct {
	Tiers []models.Tier `yaml:"tiers"`
}

// LoadCatalog reads pricing tiers from a YAML file. An empty path returns no
// tiers and no error.
func LoadCatalog(path string) ([]models.Tier, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(data)
}

func ParseCatalog(data []byte) ([]models.Tier, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	seen := map[string]bool{}
	for i, tier := range file.Tiers {
		id := strings.TrimSpace(tier.ID)
		if id == "" {
			return nil, fmt.Errorf("catalog tier %d: missing id", i+1)
		}
		if seen[id] {
			return nil, fmt.Errorf("catalog tier %q: duplicate id", id)
		}
		seen[id] = true
		if tier.Amount < 0 {
			return nil, fmt.Errorf("catalog tier %q: negative amount", id)
		}
		granularity, err := rubric.ParseGranularity(string(tier.Granularity))
		if err != nil {
			return nil, fmt.Errorf("catalog tier %q: %w", id, err)
		}
		file.Tiers[i].ID = id
		file.Tiers[i].Granularity = granularity
	}
	return file.Tiers, nil
}
