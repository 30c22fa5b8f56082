// SPDX-License-Identifier: GPL-3.0
// Copyright 2024 Pete Heist

package dot11dcf

import (
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the tunable DCF parameters. The teacher's config.go is a
// flat file of package-level constants baked into its simulator binary;
// here the equivalent settings must be adjustable at runtime through
// the option channel (command cmd=1,2) and dumpable (cmd=0), so they're
// promoted to a struct guarded by a mutex instead. cmd=3 sets the beacon
// interval on the Mac's SyncClock and leaves BeaconInterval here as it
// was.
type Config struct {
	mu sync.RWMutex

	RetryLimit  int           `yaml:"retry_limit"`
	SlotTime    time.Duration `yaml:"slot_time"`
	SIFSTime    time.Duration `yaml:"sifs_time"`
	CWMin       int           `yaml:"cw_min"`
	CWMax       int           `yaml:"cw_max"`
	RTTEstimate time.Duration `yaml:"rtt_estimate"`

	// AlignmentUnit and AlignmentEpsilon implement the 50-unit slot
	// boundary contract (spec §4.3): a wait state only advances when
	// time() % AlignmentUnit <= AlignmentEpsilon.
	AlignmentUnit    time.Duration `yaml:"alignment_unit"`
	AlignmentEpsilon time.Duration `yaml:"alignment_epsilon"`

	BeaconInterval time.Duration `yaml:"beacon_interval"`

	// SlotSelectionPolicy, if non-zero, forces backoff = CW*slot_time
	// instead of a random draw (spec §4.3's debug override).
	SlotSelectionPolicy int `yaml:"slot_selection_policy"`

	DebugLevel int `yaml:"debug_level"`
}

// DefaultRTTEstimate is the empirically measured RTT constant the
// reference implementation hard-codes (spec §4.2).
const DefaultRTTEstimate = 646 * time.Millisecond

// DefaultConfig returns a Config seeded from the given radio's exposed
// 802.11 constants plus the spec's fixed defaults.
func DefaultConfig(p RadioParams) *Config {
	return &Config{
		RetryLimit:       p.RetryLimit,
		SlotTime:         p.SlotTime,
		SIFSTime:         p.SIFSTime,
		CWMin:            p.CWMin,
		CWMax:            p.CWMax,
		RTTEstimate:      DefaultRTTEstimate,
		AlignmentUnit:    50 * time.Millisecond,
		AlignmentEpsilon: 2 * time.Millisecond,
		BeaconInterval:   -1,
	}
}

// snapshot is the value copy used for YAML dumps and read-mostly access,
// so callers never hold Config's lock while formatting or logging.
type snapshot struct {
	RetryLimit          int           `yaml:"retry_limit"`
	SlotTime            time.Duration `yaml:"slot_time"`
	SIFSTime            time.Duration `yaml:"sifs_time"`
	CWMin               int           `yaml:"cw_min"`
	CWMax               int           `yaml:"cw_max"`
	RTTEstimate         time.Duration `yaml:"rtt_estimate"`
	AlignmentUnit       time.Duration `yaml:"alignment_unit"`
	AlignmentEpsilon    time.Duration `yaml:"alignment_epsilon"`
	BeaconInterval      time.Duration `yaml:"beacon_interval"`
	SlotSelectionPolicy int           `yaml:"slot_selection_policy"`
	DebugLevel          int           `yaml:"debug_level"`
}

func (c *Config) snapshot() snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return snapshot{
		c.RetryLimit, c.SlotTime, c.SIFSTime, c.CWMin, c.CWMax, c.RTTEstimate,
		c.AlignmentUnit, c.AlignmentEpsilon, c.BeaconInterval,
		c.SlotSelectionPolicy, c.DebugLevel,
	}
}

// Dump marshals the current settings to YAML, the way tinyrange-cc's
// site_config.go round-trips its SiteConfig, for command(cmd=0, _).
func (c *Config) Dump() (string, error) {
	b, err := yaml.Marshal(c.snapshot())
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (c *Config) setDebugLevel(level int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.DebugLevel = level
}

func (c *Config) debugLevel() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.DebugLevel
}

func (c *Config) setSlotSelectionPolicy(policy int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.SlotSelectionPolicy = policy
}

func (c *Config) slotSelectionPolicy() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.SlotSelectionPolicy
}

func (c *Config) retryLimit() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.RetryLimit
}

func (c *Config) cwBounds() (min, max int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.CWMin, c.CWMax
}

func (c *Config) slotTime() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.SlotTime
}

func (c *Config) sifsTime() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.SIFSTime
}

func (c *Config) alignment() (unit, epsilon time.Duration) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.AlignmentUnit, c.AlignmentEpsilon
}
