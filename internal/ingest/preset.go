package ingest

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/KaramelBytes/cleanloom/internal/dataset"
)

// ErrUnknownPreset is returned for names LookupPreset does not know.
var ErrUnknownPreset = errors.New("unknown preset")

// PresetInfo describes one bundled dataset.
type PresetInfo struct {
	Name  string
	File  string
	Title string
}

var presets = map[string]PresetInfo{
	"iris":   {Name: "iris", File: "corrupted_iris.csv", Title: "Iris Flower"},
	"energy": {Name: "energy", File: "corrupted_energy.csv", Title: "Energy Consumption"},
	"car":    {Name: "car", File: "corrupted_car.csv", Title: "Car Insurance"},
}

// Presets lists the bundled datasets sorted by name.
func Presets() []PresetInfo {
	out := make([]PresetInfo, 0, len(presets))
	for _, p := range presets {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// LookupPreset accepts either a short name ("iris") or the file name.
func LookupPreset(name string) (PresetInfo, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	if p, ok := presets[key]; ok {
		return p, true
	}
	for _, p := range presets {
		if p.File == key {
			return p, true
		}
	}
	return PresetInfo{}, false
}

// Preset loads a bundled dataset from dir and returns it with its file name.
func Preset(dir, name string, opt Options) (*dataset.Dataset, string, error) {
	p, ok := LookupPreset(name)
	if !ok {
		return nil, "", fmt.Errorf("%w %q", ErrUnknownPreset, name)
	}
	ds, err := ReadFile(filepath.Join(dir, p.File), opt)
	if err != nil {
		return nil, "", fmt.Errorf("load preset %s: %w", p.Name, err)
	}
	return ds, p.File, nil
}
