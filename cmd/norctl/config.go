package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tailscale/hujson"
)

// MediaConfig describes the flash topology norctl should format or expect
// when opening an image file, loadable from an optional JSON-with-comments
// (JWCC) file.
type MediaConfig struct {
	NPEB                    int  `json:"npeb,omitempty"`
	PEBSize                 int  `json:"peb_size,omitempty"`
	WriteVacantPlaceholders bool `json:"write_vacant_placeholders,omitempty"`
}

// DefaultMediaConfig is a topology small enough to page through in a
// terminal, large enough to hold a meaningful demo.
func DefaultMediaConfig() MediaConfig {
	return MediaConfig{NPEB: 4, PEBSize: 4096}
}

// LoadMediaConfig reads path, standardizes it from JWCC to JSON via
// hujson, and merges it over DefaultMediaConfig. A missing path is not an
// error; the defaults are returned unchanged.
func LoadMediaConfig(path string) (MediaConfig, error) {
	cfg := DefaultMediaConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return MediaConfig{}, fmt.Errorf("norctl: read config %q: %w", path, err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return MediaConfig{}, fmt.Errorf("norctl: invalid JWCC in %q: %w", path, err)
	}

	var overlay MediaConfig
	if err := json.Unmarshal(standardized, &overlay); err != nil {
		return MediaConfig{}, fmt.Errorf("norctl: invalid JSON in %q: %w", path, err)
	}

	if overlay.NPEB != 0 {
		cfg.NPEB = overlay.NPEB
	}
	if overlay.PEBSize != 0 {
		cfg.PEBSize = overlay.PEBSize
	}
	if overlay.WriteVacantPlaceholders {
		cfg.WriteVacantPlaceholders = true
	}

	return cfg, nil
}
