package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"github.com/Dosada05/volley-tournament/models"
	"gopkg.in/yaml.v3"
)

//go:embed presets.yaml
var defaultPresets []byte

// PhasePreset - шаблон одной фазы King-турнира.
type PhasePreset struct {
	Name              string `yaml:"name" json:"name"`
	TeamSize          int    `yaml:"team_size" json:"team_size"`
	PoolCount         int    `yaml:"pool_count" json:"pool_count"`
	QualifiersPerPool int    `yaml:"qualifiers_per_pool" json:"qualifiers_per_pool"`
	RepechageSlots    int    `yaml:"repechage_slots" json:"repechage_slots"`
	RoundsPerPool     int    `yaml:"rounds_per_pool" json:"rounds_per_pool"`
}

// FormatPreset - готовый формат турнира: вид, настройки и план фаз.
type FormatPreset struct {
	Key         string                    `yaml:"key" json:"key"`
	Name        string                    `yaml:"name" json:"name"`
	Kind        models.TournamentKind     `yaml:"kind" json:"kind"`
	Description string                    `yaml:"description" json:"description,omitempty"`
	Settings    models.TournamentSettings `yaml:"settings" json:"settings"`
	Phases      []PhasePreset             `yaml:"phases" json:"phases,omitempty"`
}

// PhasePlan converts the preset into numbered phases ready to be configured.
func (p FormatPreset) PhasePlan() []models.Phase {
	phases := make([]models.Phase, len(p.Phases))
	for i, pp := range p.Phases {
		phases[i] = models.Phase{
			Number:            i + 1,
			Name:              pp.Name,
			TeamSize:          pp.TeamSize,
			PoolCount:         pp.PoolCount,
			QualifiersPerPool: pp.QualifiersPerPool,
			RepechageSlots:    pp.RepechageSlots,
			RoundsPerPool:     pp.RoundsPerPool,
		}
	}
	return phases
}

type Presets struct {
	list  []FormatPreset
	byKey map[string]FormatPreset
}

type presetsFile struct {
	Presets []FormatPreset `yaml:"presets"`
}

// LoadPresets reads presets from path, or the embedded defaults when path is empty.
func LoadPresets(path string) (*Presets, error) {
	data := defaultPresets
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read format presets %s: %w", path, err)
		}
		data = raw
	}
	return ParsePresets(data)
}

func ParsePresets(data []byte) (*Presets, error) {
	var file presetsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse format presets: %w", err)
	}
	if len(file.Presets) == 0 {
		return nil, errors.New("format presets file contains no presets")
	}

	p := &Presets{byKey: make(map[string]FormatPreset, len(file.Presets))}
	for _, preset := range file.Presets {
		if preset.Key == "" {
			return nil, fmt.Errorf("format preset %q has no key", preset.Name)
		}
		if _, dup := p.byKey[preset.Key]; dup {
			return nil, fmt.Errorf("duplicate format preset key %q", preset.Key)
		}
		if !preset.Kind.Valid() {
			return nil, fmt.Errorf("format preset %q: unknown kind %q", preset.Key, preset.Kind)
		}
		if preset.Kind.IsPhased() && len(preset.Phases) == 0 {
			return nil, fmt.Errorf("format preset %q: %s needs at least one phase", preset.Key, preset.Kind)
		}
		if err := preset.Settings.Validate(); err != nil {
			return nil, fmt.Errorf("format preset %q: %w", preset.Key, err)
		}
		p.list = append(p.list, preset)
		p.byKey[preset.Key] = preset
	}
	return p, nil
}

func (p *Presets) All() []FormatPreset {
	out := make([]FormatPreset, len(p.list))
	copy(out, p.list)
	return out
}

func (p *Presets) Get(key string) (FormatPreset, bool) {
	preset, ok := p.byKey[key]
	return preset, ok
}
