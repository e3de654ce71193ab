package animation

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// MotionPreset contributes motion-specific guidance lines to every
// frame prompt of a run. The zero value means "no preset".
type MotionPreset struct {
	Key      string   `yaml:"key"`
	Name     string   `yaml:"name"`
	Guidance []string `yaml:"guidance"`
}

// Catalog maps motion keys to presets. The built-in set can be extended
// or overridden from a YAML file.
type Catalog struct {
	presets map[string]MotionPreset
	order   []string
}

var builtinPresets = []MotionPreset{
	{
		Key:  "walk_cycle",
		Name: "Walk Cycle",
		Guidance: []string{
			"Classic walk cycle: contact, down, passing and up positions spread evenly across the frames.",
			"Arms swing opposite to the legs; the torso bobs slightly on passing poses.",
			"Feet stay on one consistent ground line in every frame.",
		},
	},
	{
		Key:  "run_cycle",
		Name: "Run Cycle",
		Guidance: []string{
			"Energetic run cycle with airborne passing poses and a forward lean.",
			"Arms pump harder and legs reach further than a walk.",
			"Head height dips and rises with the stride.",
		},
	},
	{
		Key:  "idle_bounce",
		Name: "Idle Bounce",
		Guidance: []string{
			"Subtle idle: a gentle vertical bounce with relaxed breathing motion.",
			"Small secondary motion on hair, clothing or accessories.",
			"Pose changes stay tiny so the loop reads as standing in place.",
		},
	},
	{
		Key:  "jump",
		Name: "Jump",
		Guidance: []string{
			"Full jump arc: anticipation squash, launch stretch, airborne apex, landing recovery.",
			"Place the apex near the middle of the cycle so the landing flows back into frame 1.",
		},
	},
	{
		Key:  "wave",
		Name: "Wave",
		Guidance: []string{
			"Friendly wave: one arm raised, the hand sweeping side to side across the frames.",
			"The rest of the body holds a relaxed standing pose.",
		},
	},
	{
		Key:  "spin",
		Name: "Spin",
		Guidance: []string{
			"The character rotates in place, facing a different direction each frame.",
			"Spread the rotation evenly so the last frame leads back into the first.",
		},
	},
	{
		Key:  "attack_swing",
		Name: "Attack Swing",
		Guidance: []string{
			"Melee swing: wind-up, strike, follow-through, return to guard.",
			"Weight shifts onto the leading foot on the strike frame.",
		},
	},
	{
		Key:  "hover",
		Name: "Hover",
		Guidance: []string{
			"Floating hover: the whole character drifts up and down without touching the ground.",
			"Add a slight tilt or limb drift so neighboring frames stay distinguishable.",
		},
	},
}

// DefaultCatalog returns the built-in motion presets.
func DefaultCatalog() *Catalog {
	c := &Catalog{presets: make(map[string]MotionPreset, len(builtinPresets))}
	for _, p := range builtinPresets {
		c.add(p)
	}
	return c
}

func (c *Catalog) add(p MotionPreset) {
	key := strings.ToLower(strings.TrimSpace(p.Key))
	if key == "" {
		return
	}
	p.Key = key
	if _, exists := c.presets[key]; !exists {
		c.order = append(c.order, key)
	}
	c.presets[key] = p
}

// Get looks up a preset by key, case-insensitively.
func (c *Catalog) Get(key string) (MotionPreset, bool) {
	p, ok := c.presets[strings.ToLower(strings.TrimSpace(key))]
	return p, ok
}

// Presets returns all presets in registration order.
func (c *Catalog) Presets() []MotionPreset {
	out := make([]MotionPreset, 0, len(c.order))
	for _, key := range c.order {
		out = append(out, c.presets[key])
	}
	return out
}

type catalogFile struct {
	Presets []MotionPreset `yaml:"presets"`
}

// LoadFile merges presets from a YAML file into the catalog. A preset
// with a known key replaces the built-in entry; new keys are appended.
func (c *Catalog) LoadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read motion catalog: %w", err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("parse motion catalog: %w", err)
	}

	for _, p := range file.Presets {
		if strings.TrimSpace(p.Key) == "" {
			return fmt.Errorf("motion catalog: preset %q has no key", p.Name)
		}
		c.add(p)
	}
	return nil
}
