// Package seeds loads the default-feed bootstrap file. Feeds listed there are
// registered on first start so a fresh install is not empty.
package seeds

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Seed struct {
	URL   string `yaml:"url"`
	Title string `yaml:"title"`
}

type seedsFile struct {
	Feeds []Seed `yaml:"feeds"`
}

// Load reads the seeds YAML file. A missing file is not an error; it just
// means no default feeds.
func Load(path string) ([]Seed, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read seeds file: %w", err)
	}

	var parsed seedsFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse seeds file: %w", err)
	}

	seeds := make([]Seed, 0, len(parsed.Feeds))
	for i, seed := range parsed.Feeds {
		if seed.URL == "" {
			return nil, fmt.Errorf("seed %d is missing a url", i)
		}
		seeds = append(seeds, seed)
	}

	return seeds, nil
}
