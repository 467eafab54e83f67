// =============================================================================
// internal/config/config.go - YAML scan profile loading
// =============================================================================
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile holds a reusable scan configuration. Every field mirrors a
// command line flag; explicit flags win over profile values.
type Profile struct {
	Targets        string `yaml:"targets"`
	Ports          string `yaml:"ports"`
	Batch          int    `yaml:"batch"`
	TimeoutMs      uint64 `yaml:"timeout_ms"`
	TcpTries       int    `yaml:"tcp_tries"`
	PingTries      int    `yaml:"ping_tries"`
	PingIntervalMs uint64 `yaml:"ping_interval_ms"`
	Mode           int    `yaml:"mode"`
	PrintLevel     *int   `yaml:"printlevel"`
	JSONPath       string `yaml:"json_path"`
}

// Default returns a profile holding the driver defaults
func Default() *Profile {
	return &Profile{
		Batch:          5000,
		TimeoutMs:      1500,
		TcpTries:       1,
		PingTries:      1,
		PingIntervalMs: 1000,
		Mode:           0,
		PrintLevel:     intPtr(3),
	}
}

func intPtr(v int) *int {
	return &v
}

// Load reads a profile from a YAML file and fills missing values with
// the driver defaults
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	p.applyDefaults()

	return &p, nil
}

// applyDefaults fills in missing values with defaults
func (p *Profile) applyDefaults() {
	def := Default()

	if p.Batch == 0 {
		p.Batch = def.Batch
	}
	if p.TimeoutMs == 0 {
		p.TimeoutMs = def.TimeoutMs
	}
	if p.TcpTries == 0 {
		p.TcpTries = def.TcpTries
	}
	if p.PingTries == 0 {
		p.PingTries = def.PingTries
	}
	if p.PingIntervalMs == 0 {
		p.PingIntervalMs = def.PingIntervalMs
	}
	// Printlevel 0 is valid (suppress), so a pointer distinguishes a
	// missing key from an explicit zero
	if p.PrintLevel == nil {
		p.PrintLevel = def.PrintLevel
	}
}
