// Package policy defines the game modes a session can run under and the
// knobs each mode turns: spawn cadence, concurrency, ammo and miss budgets,
// difficulty scaling, and the retreat edge policy.
package policy

import (
	_ "embed"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"skyhunt/server/internal/engine"
)

//go:embed modes.yaml
var embeddedModes []byte

// DefaultModeName is used when a session does not pick a mode.
const DefaultModeName = "classic"

// Scaling is the authoring form of a difficulty rule. Durations are written
// in whole seconds to keep the YAML hand-editable.
type Scaling struct {
	StartLevel      int `yaml:"startLevel" json:"startLevel"`
	MaxLevel        int `yaml:"maxLevel" json:"maxLevel"`
	Step            int `yaml:"step" json:"step"`
	IntervalSeconds int `yaml:"intervalSeconds" json:"intervalSeconds"`
}

// Rule converts the authoring form into the engine's scaling rule.
func (s Scaling) Rule() engine.ScalingRule {
	return engine.ScalingRule{
		StartLevel: s.StartLevel,
		MaxLevel:   s.MaxLevel,
		Step:       s.Step,
		Interval:   time.Duration(s.IntervalSeconds) * time.Second,
	}.Normalized()
}

// Mode is one playable game mode.
type Mode struct {
	Name        string `yaml:"name" json:"name"`
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description" json:"description"`

	// DurationSeconds ends the session when it elapses; zero means the
	// session runs until another limit stops it.
	DurationSeconds int `yaml:"durationSeconds" json:"durationSeconds,omitempty"`

	// Ammo and MissLimit budget the player; zero disables the budget.
	Ammo      int `yaml:"ammo" json:"ammo,omitempty"`
	MissLimit int `yaml:"missLimit" json:"missLimit,omitempty"`

	Archetype         string  `yaml:"archetype" json:"archetype"`
	MaxConcurrent     int     `yaml:"maxConcurrent" json:"maxConcurrent"`
	SpawnEverySeconds float64 `yaml:"spawnEverySeconds" json:"spawnEverySeconds"`

	// BossEvery promotes every Nth spawn to the boss archetype.
	BossEvery int `yaml:"bossEvery" json:"bossEvery,omitempty"`

	// RetreatWraps keeps retreating targets in play by wrapping them to
	// the opposite edge instead of despawning.
	RetreatWraps bool `yaml:"retreatWraps" json:"retreatWraps,omitempty"`

	Scaling Scaling `yaml:"scaling" json:"scaling"`
}

// Duration returns the session time limit, zero when unlimited.
func (m Mode) Duration() time.Duration {
	return time.Duration(m.DurationSeconds) * time.Second
}

// SpawnInterval returns the pacing between spawns.
func (m Mode) SpawnInterval() time.Duration {
	return time.Duration(m.SpawnEverySeconds * float64(time.Second))
}

type modesFile struct {
	Modes []Mode `yaml:"modes"`
}

// Catalog stores the loaded mode set indexed by name.
type Catalog struct {
	modesByName map[string]Mode
	order       []string
}

// GlobalCatalog provides the default mode set bundled with the server.
var GlobalCatalog = MustLoadCatalog(engine.GlobalLibrary)

// MustLoadCatalog loads the embedded modes or panics on failure.
func MustLoadCatalog(library *engine.Library) *Catalog {
	catalog, err := LoadCatalog(library)
	if err != nil {
		panic(fmt.Errorf("policy: load catalog: %w", err))
	}
	return catalog
}

// LoadCatalog decodes and validates the embedded mode definitions. Every
// mode must name an archetype the behaviour library can resolve.
func LoadCatalog(library *engine.Library) (*Catalog, error) {
	var file modesFile
	if err := yaml.Unmarshal(embeddedModes, &file); err != nil {
		return nil, fmt.Errorf("policy: decode modes: %w", err)
	}
	if len(file.Modes) == 0 {
		return nil, fmt.Errorf("policy: no modes defined")
	}

	catalog := &Catalog{modesByName: make(map[string]Mode, len(file.Modes))}
	for _, mode := range file.Modes {
		if err := validateMode(mode, library); err != nil {
			return nil, fmt.Errorf("policy: mode %q: %w", mode.Name, err)
		}
		key := strings.ToLower(mode.Name)
		if _, exists := catalog.modesByName[key]; exists {
			return nil, fmt.Errorf("policy: duplicate mode %q", mode.Name)
		}
		catalog.modesByName[key] = mode
		catalog.order = append(catalog.order, key)
	}
	if _, ok := catalog.modesByName[DefaultModeName]; !ok {
		return nil, fmt.Errorf("policy: default mode %q missing", DefaultModeName)
	}
	return catalog, nil
}

func validateMode(mode Mode, library *engine.Library) error {
	if strings.TrimSpace(mode.Name) == "" {
		return fmt.Errorf("missing name")
	}
	if mode.DurationSeconds < 0 || mode.Ammo < 0 || mode.MissLimit < 0 || mode.BossEvery < 0 {
		return fmt.Errorf("negative budget")
	}
	if mode.MaxConcurrent < 1 {
		return fmt.Errorf("maxConcurrent must be at least 1")
	}
	if mode.SpawnEverySeconds <= 0 {
		return fmt.Errorf("spawnEverySeconds must be positive")
	}
	if library != nil {
		if library.ConfigForArchetype(mode.Archetype) == nil {
			return fmt.Errorf("unknown archetype %q", mode.Archetype)
		}
		if mode.BossEvery > 0 && library.ConfigForArchetype("boss") == nil {
			return fmt.Errorf("bossEvery set but no boss archetype")
		}
	}
	return nil
}

// Mode resolves a mode by name, falling back to the default for an empty
// name. The boolean reports whether the name was known.
func (c *Catalog) Mode(name string) (Mode, bool) {
	if c == nil {
		return Mode{}, false
	}
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		key = DefaultModeName
	}
	mode, ok := c.modesByName[key]
	return mode, ok
}

// Names lists the catalogued modes in authoring order.
func (c *Catalog) Names() []string {
	if c == nil {
		return nil
	}
	return append([]string(nil), c.order...)
}
