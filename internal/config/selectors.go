package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"top8scraper/internal/scraper"
)

// LoadSelectors reads a selectors override file. Keys missing from the file keep
// their default value.
func LoadSelectors(filePath string) (*scraper.Selectors, error) {
	if filePath == "" {
		return nil, fmt.Errorf("selectors file path is empty")
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open selectors file: %w", err)
	}
	defer file.Close()

	selectors := scraper.DefaultSelectors()
	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(selectors); err != nil {
		return nil, fmt.Errorf("failed to parse selectors YAML: %w", err)
	}

	if err := validateSelectors(selectors); err != nil {
		return nil, err
	}

	return selectors, nil
}

// Selectors returns the configured selectors, or the built-in ones when
// selectors_file is unset.
func (c *Config) Selectors() (*scraper.Selectors, error) {
	if c.SelectorsFile == "" {
		return scraper.DefaultSelectors(), nil
	}
	return LoadSelectors(c.SelectorsFile)
}

func validateSelectors(s *scraper.Selectors) error {
	required := []struct {
		key   string
		value string
	}{
		{"event_meta", s.EventMeta},
		{"event_title", s.EventTitle},
		{"deck_links", s.DeckLinks},
		{"deck_meta", s.DeckMeta},
		{"deck_cards", s.DeckCards},
		{"card_attr", s.CardAttr},
		{"top_marker", s.TopMarker},
		{"event_param", s.EventParam},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%s is required", r.key)
		}
	}
	return nil
}
