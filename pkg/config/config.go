// Package config loads necessist.toml (§6) and merges its ignore-pattern
// lists with a backend's built-ins into pkg/ignore matchers (§4.E).
//
// Grounding: BurntSushi/toml is used the way ariga-atlas and
// DataDog-dd-trace-go parse their TOML configuration files; unknown-key
// rejection comes from toml.MetaData.Undecoded() rather than the teacher's
// JSON Schema compiler (github.com/santhosh-tekuri/jsonschema/v6), since
// necessist.toml's shape is four flat string-list keys with no need for a
// schema document — see DESIGN.md "Dropped teacher dependencies".
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/mpyw/necessist/pkg/ignore"
)

// DefaultFileName is necessist.toml's conventional name at the project root.
const DefaultFileName = "necessist.toml"

// Config is the decoded necessist.toml (§6). Every key is optional.
type Config struct {
	IgnoredFunctions []string `toml:"ignored_functions"`
	IgnoredMacros    []string `toml:"ignored_macros"`
	IgnoredMethods   []string `toml:"ignored_methods"`
	IgnoredTests     []string `toml:"ignored_tests"`
}

// Load reads and decodes <root>/necessist.toml. A missing file is not an
// error: it is treated as an empty Config, since every key is optional
// (§6). An unknown top-level key is a fatal parse error (§7.1).
func Load(root string) (*Config, error) {
	path := filepath.Join(root, DefaultFileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Config{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var cfg Config
	meta, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%s: unknown configuration key %q", path, undecoded[0].String())
	}
	return &cfg, nil
}

// Matchers is the set of compiled ignore matchers for one candidate
// category, built by merging a Config's user-supplied patterns with a
// backend's built-in lists (§4.E).
type Matchers struct {
	Functions *ignore.Matcher
	Macros    *ignore.Matcher
	Methods   *ignore.Matcher
	Tests     *ignore.Matcher
}

// Compile merges cfg's pattern lists with builtins and compiles each
// category into a Matcher.
func Compile(cfg *Config, builtinFunctions, builtinMacros, builtinMethods, builtinTests []string) (*Matchers, error) {
	functions, err := ignore.Compile(ignore.Merge(builtinFunctions, cfg.IgnoredFunctions))
	if err != nil {
		return nil, fmt.Errorf("ignored_functions: %w", err)
	}
	macros, err := ignore.Compile(ignore.Merge(builtinMacros, cfg.IgnoredMacros))
	if err != nil {
		return nil, fmt.Errorf("ignored_macros: %w", err)
	}
	methods, err := ignore.Compile(ignore.Merge(builtinMethods, cfg.IgnoredMethods))
	if err != nil {
		return nil, fmt.Errorf("ignored_methods: %w", err)
	}
	tests := ignore.CompileLiteral(ignore.Merge(builtinTests, cfg.IgnoredTests))
	return &Matchers{Functions: functions, Macros: macros, Methods: methods, Tests: tests}, nil
}
