package settings

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Config is the file form of ISA settings, e.g.
//
//	isa: x86_64
//	presets: [nehalem]
//	flags:
//	  has_lzcnt: true
//	  is_pic: false
type Config struct {
	// ISA is the name of the target. It may be empty when the target is chosen elsewhere.
	ISA     string          `yaml:"isa"`
	Presets []string        `yaml:"presets"`
	Flags   map[string]bool `yaml:"flags"`
}

// maxConfigSize bounds the size of configuration files read by LoadConfig.
const maxConfigSize = 1 << 20

// ParseConfig decodes a YAML configuration.
func ParseConfig(data []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("invalid settings config: %w", err)
	}
	return &c, nil
}

// LoadConfig reads and decodes the YAML configuration at path.
func LoadConfig(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > maxConfigSize {
		return nil, fmt.Errorf("settings config %s too large: %d bytes", path, info.Size())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Apply enables the presets, then sets the flags in name order.
//
// ISA is not checked here: one Template can serve several targets, so the
// caller resolves the target from ISA before creating b.
func (c *Config) Apply(b *Builder) error {
	for _, p := range c.Presets {
		if err := b.Enable(p); err != nil {
			return err
		}
	}
	names := make([]string, 0, len(c.Flags))
	for n := range c.Flags {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		if err := b.Set(n, c.Flags[n]); err != nil {
			return err
		}
	}
	return nil
}
