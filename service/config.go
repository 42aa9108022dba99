package service

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"time"

	"cosmossdk.io/math"
)

// Config holds the service configuration
type Config struct {
	// Multicast feeds
	MDMcastIP         string `json:"md_mcast_ip"`
	MDMcastPort       int    `json:"md_mcast_port"`
	ClearingMcastIP   string `json:"clearing_mcast_ip"`
	ClearingMcastPort int    `json:"clearing_mcast_port"`
	McastBindIP       string `json:"mcast_bind_ip"`

	// Serving surfaces
	RESTHost string `json:"rest_host"`
	RESTPort int    `json:"rest_port"`
	WSHost   string `json:"ws_host"`
	WSPort   int    `json:"ws_port"`

	// Book engine: map, btree or skiplist
	Engine string `json:"engine"`

	// Fee charged per unit of traded volume in dashboard pnl, as a
	// decimal string
	Fee string `json:"fee"`

	// Dashboard frame cadence
	SnapshotIntervalMs int `json:"snapshot_interval_ms"`

	DisableRateLimit bool   `json:"disable_rate_limit"`
	LogLevel         string `json:"log_level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		MDMcastIP:          "239.0.0.1",
		MDMcastPort:        12345,
		ClearingMcastIP:    "239.0.0.2",
		ClearingMcastPort:  12346,
		McastBindIP:        "0.0.0.0",
		RESTHost:           "0.0.0.0",
		RESTPort:           5000,
		WSHost:             "0.0.0.0",
		WSPort:             9002,
		Engine:             "map",
		Fee:                "0.05",
		SnapshotIntervalMs: 100,
		LogLevel:           "info",
	}
}

// LoadConfig loads configuration from a file. A missing file yields the
// defaults; a present but malformed file is an error.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// Validate checks the configuration for values that cannot work. The book
// engine name is validated where the book is built.
func (c *Config) Validate() error {
	for _, g := range []struct {
		name string
		ip   string
		port int
	}{
		{"md", c.MDMcastIP, c.MDMcastPort},
		{"clearing", c.ClearingMcastIP, c.ClearingMcastPort},
	} {
		ip := net.ParseIP(g.ip)
		if ip == nil {
			return fmt.Errorf("%s multicast ip %q does not parse", g.name, g.ip)
		}
		if !ip.IsMulticast() {
			return fmt.Errorf("%s multicast ip %q is not a multicast address", g.name, g.ip)
		}
		if g.port <= 0 || g.port > 65535 {
			return fmt.Errorf("%s multicast port %d out of range", g.name, g.port)
		}
	}

	if net.ParseIP(c.McastBindIP) == nil {
		return fmt.Errorf("bind ip %q does not parse", c.McastBindIP)
	}

	if c.RESTPort <= 0 || c.RESTPort > 65535 {
		return fmt.Errorf("rest port %d out of range", c.RESTPort)
	}
	if c.WSPort <= 0 || c.WSPort > 65535 {
		return fmt.Errorf("ws port %d out of range", c.WSPort)
	}
	if c.RESTPort == c.WSPort {
		return fmt.Errorf("rest and ws ports collide on %d", c.RESTPort)
	}

	fee, err := math.LegacyNewDecFromStr(c.Fee)
	if err != nil {
		return fmt.Errorf("fee %q does not parse: %w", c.Fee, err)
	}
	if fee.IsNegative() {
		return fmt.Errorf("fee %q is negative", c.Fee)
	}

	if c.SnapshotIntervalMs <= 0 {
		return fmt.Errorf("snapshot interval %dms must be positive", c.SnapshotIntervalMs)
	}

	return nil
}

// MDGroup returns the market data group as "ip:port".
func (c *Config) MDGroup() string {
	return fmt.Sprintf("%s:%d", c.MDMcastIP, c.MDMcastPort)
}

// ClearingGroup returns the clearing group as "ip:port".
func (c *Config) ClearingGroup() string {
	return fmt.Sprintf("%s:%d", c.ClearingMcastIP, c.ClearingMcastPort)
}

// SnapshotInterval returns the frame cadence as a duration.
func (c *Config) SnapshotInterval() time.Duration {
	return time.Duration(c.SnapshotIntervalMs) * time.Millisecond
}

// FeeDec returns the parsed fee. Call Validate first; an unparseable fee
// comes back as zero.
func (c *Config) FeeDec() math.LegacyDec {
	fee, err := math.LegacyNewDecFromStr(c.Fee)
	if err != nil {
		return math.LegacyZeroDec()
	}
	return fee
}
