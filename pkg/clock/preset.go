package clock

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Preset is a named time control: initial minutes per player and an
// increment credited after every completed move.
type Preset struct {
	Name             string `json:"name" yaml:"name"`
	Minutes          int    `json:"minutes" yaml:"minutes"`
	IncrementSeconds int    `json:"increment_seconds" yaml:"increment_seconds"`
}

// Initial is the time each player starts with
func (p Preset) Initial() time.Duration {
	return time.Duration(p.Minutes) * time.Minute
}

// Increment is the time credited to a player after they complete a move
func (p Preset) Increment() time.Duration {
	return time.Duration(p.IncrementSeconds) * time.Second
}

// Validate rejects presets with negative values. A zero minute preset is allowed.
func (p Preset) Validate() error {
	if p.Minutes < 0 || p.IncrementSeconds < 0 {
		return &RejectedError{Command: "preset", Reason: ReasonInvalidPreset}
	}
	return nil
}

func (p Preset) String() string {
	if p.Name != "" {
		return p.Name
	}
	if p.IncrementSeconds == 0 {
		return fmt.Sprintf("%d min", p.Minutes)
	}
	return fmt.Sprintf("%d min | %d sec", p.Minutes, p.IncrementSeconds)
}

// DefaultPresetName is the preset selected when nothing else is configured
const DefaultPresetName = "15 min | 5 sec"

// DefaultPresets returns the built-in time controls, shortest first.
func DefaultPresets() []Preset {
	return []Preset{
		{Name: "1 min", Minutes: 1, IncrementSeconds: 0},
		{Name: "1 min | 1 sec", Minutes: 1, IncrementSeconds: 1},
		{Name: "2 min | 1 sec", Minutes: 2, IncrementSeconds: 1},
		{Name: "3 min", Minutes: 3, IncrementSeconds: 0},
		{Name: "3 min | 2 sec", Minutes: 3, IncrementSeconds: 2},
		{Name: "5 min", Minutes: 5, IncrementSeconds: 0},
		{Name: "5 min | 3 sec", Minutes: 5, IncrementSeconds: 3},
		{Name: "10 min", Minutes: 10, IncrementSeconds: 0},
		{Name: "10 min | 5 sec", Minutes: 10, IncrementSeconds: 5},
		{Name: "15 min | 5 sec", Minutes: 15, IncrementSeconds: 5},
		{Name: "30 min", Minutes: 30, IncrementSeconds: 0},
		{Name: "30 min | 10 sec", Minutes: 30, IncrementSeconds: 10},
		{Name: "60 min | 30 sec", Minutes: 60, IncrementSeconds: 30},
	}
}

// FindPreset looks a preset up by name, ignoring case and surrounding spaces
func FindPreset(presets []Preset, name string) (Preset, bool) {
	name = strings.TrimSpace(name)
	for _, p := range presets {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return Preset{}, false
}

type presetFile struct {
	Presets []Preset `yaml:"presets"`
}

// LoadPresets reads a YAML preset file. An empty path or a missing file
// yields the default presets.
func LoadPresets(path string) ([]Preset, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultPresets(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultPresets(), nil
		}
		return nil, fmt.Errorf("failed to read preset file: %w", err)
	}

	return ParsePresets(data)
}

// ParsePresets decodes and validates a YAML preset list
func ParsePresets(data []byte) ([]Preset, error) {
	var file presetFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse preset file: %w", err)
	}
	if len(file.Presets) == 0 {
		return nil, errors.New("preset file defines no presets")
	}

	seen := make(map[string]bool, len(file.Presets))
	for i, p := range file.Presets {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("preset %d (%q): %w", i, p.Name, err)
		}
		if strings.TrimSpace(p.Name) == "" {
			file.Presets[i].Name = p.String()
		}
		key := strings.ToLower(file.Presets[i].Name)
		if seen[key] {
			return nil, fmt.Errorf("duplicate preset name %q", file.Presets[i].Name)
		}
		seen[key] = true
	}

	return file.Presets, nil
}
