package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadInspection parses and validates a station configuration file. This is
// the only place the config package touches the filesystem; the engine itself
// accepts parsed structs only.
func LoadInspection(path string) (*InspectionConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg InspectionConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// LoadTeach parses a taught-geometry file.
func LoadTeach(path string) (TeachData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return TeachData{}, fmt.Errorf("read teach data: %w", err)
	}
	var t TeachData
	if err := json.Unmarshal(data, &t); err != nil {
		return TeachData{}, fmt.Errorf("parse teach data: %w", err)
	}
	return t, nil
}

// SaveTeach writes taught geometry atomically: teach files are shared with
// the running station, so a torn write must never be observable.
func SaveTeach(path string, t TeachData) error {
	return writeJSON(path, t)
}

// SaveInspection writes a station configuration after validating it.
func SaveInspection(path string, cfg *InspectionConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return writeJSON(path, cfg)
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
