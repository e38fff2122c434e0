// Package nconfig loads a host's NeoNucleus setup from a TOML file, the
// same tomlSettings/loadConfig pattern the rest of this code base's
// config loading follows: struct field names map straight onto TOML
// keys, and an unrecognized field is a hard error rather than a
// silently ignored typo.
package nconfig

import (
	"bufio"
	"fmt"
	"os"
	"reflect"

	"github.com/naoina/toml"

	"github.com/speedy-lex/neonucleus/backends/drive"
	"github.com/speedy-lex/neonucleus/backends/eeprom"
	"github.com/speedy-lex/neonucleus/backends/filesystem"
	"github.com/speedy-lex/neonucleus/backends/screen"
)

// tomlSettings keeps Go field names verbatim as TOML keys, matching the
// rest of this code base's config convention, and rejects unknown keys
// instead of silently dropping them.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string { return key },
	FieldToKey:    func(rt reflect.Type, field string) string { return field },
	MissingField: func(rt reflect.Type, field string) error {
		return fmt.Errorf("field '%s' is not defined in %s", field, rt.String())
	},
}

// UniverseConfig configures an embedding host's universe-wide limits.
type UniverseConfig struct {
	ComponentCap int `toml:",omitempty"`
}

// ComputerConfig configures a single computer, mirroring the fields a
// host must pick before calling computer.New.
type ComputerConfig struct {
	Address      string
	MemoryLimit  int64
	ComponentCap int
	MaxEnergy    float64 `toml:",omitempty"`
	CallBudget   float64 `toml:",omitempty"`
}

// Config is the top-level host configuration: the universe plus every
// computer and its component controls it should come up with.
type Config struct {
	Universe  UniverseConfig
	Computers []ComputerConfig

	EEPROM     eeprom.Control
	Drive      drive.Control
	Filesystem filesystem.Control
	GPU        screen.GPUControl
}

// Default returns zero-cost defaults suitable for a test or demo
// universe: no energy/heat/latency charges, and one computer with the
// kernel's default call budget of 256.
func Default() Config {
	return Config{
		Universe: UniverseConfig{ComponentCap: 32},
		Computers: []ComputerConfig{
			{Address: "cpu-0", MemoryLimit: 256 * 1024, ComponentCap: 16, MaxEnergy: 5000, CallBudget: 256},
		},
	}
}

// Load reads and decodes a TOML file at path into cfg, which should
// normally start as Default().
func Load(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
	if _, ok := err.(*toml.LineError); ok {
		err = fmt.Errorf("%s, %w", path, err)
	}
	return err
}
