package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
)

// Config captures the runtime configuration for the synthd daemon.
type Config struct {
	ListenAddress   string        `toml:"ListenAddress"`
	DataDir         string        `toml:"DataDir"`
	Environment     string        `toml:"Environment"`
	TreasuryAddress string        `toml:"TreasuryAddress"`
	Liability       Liability     `toml:"liability"`
	Risk            Risk          `toml:"risk"`
	Oracle          Oracle        `toml:"oracle"`
	Log             Log           `toml:"log"`
	Assets          []Asset       `toml:"assets"`
	Faucet          FaucetOptions `toml:"faucet"`
	RateLimit       RateLimit     `toml:"ratelimit"`
}

// RateLimit bounds per-client RPC throughput. A zero RequestsPerMinute
// disables the limiter.
type RateLimit struct {
	RequestsPerMinute float64 `toml:"RequestsPerMinute"`
	Burst             int     `toml:"Burst"`
}

// Liability describes the issued dollar-pegged token.
type Liability struct {
	Name    string `toml:"Name"`
	Symbol  string `toml:"Symbol"`
	Address string `toml:"Address"`
}

// Risk groups the engine safety parameters.
type Risk struct {
	LiquidationThresholdPercent uint64 `toml:"LiquidationThresholdPercent"`
	LiquidationBonusPercent     uint64 `toml:"LiquidationBonusPercent"`
}

// Oracle captures the freshness rules applied to consumed price rounds.
type Oracle struct {
	MaxAge duration `toml:"MaxAge"`
}

// Log configures optional file rotation for the structured log stream.
type Log struct {
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
}

// Asset registers one collateral asset and its price feed. Exactly one of
// FeedURL (live HTTP feed) or StaticPrice (pinned answer, development only)
// must be set.
type Asset struct {
	Address      string `toml:"Address"`
	FeedAddress  string `toml:"FeedAddress"`
	FeedURL      string `toml:"FeedURL"`
	StaticPrice  string `toml:"StaticPrice"`
	FeedDecimals uint8  `toml:"FeedDecimals"`
}

// FaucetOptions gates the development faucet endpoint that credits collateral
// balances over RPC.
type FaucetOptions struct {
	Enabled bool `toml:"Enabled"`
}

type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// MaxAgeDuration returns the configured oracle freshness window.
func (c *Config) MaxAgeDuration() time.Duration {
	return c.Oracle.MaxAge.Duration
}

// Load reads and validates the configuration at the given path.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.ListenAddress) == "" {
		c.ListenAddress = ":8645"
	}
	if strings.TrimSpace(c.Liability.Name) == "" {
		c.Liability.Name = "Synth Dollar"
	}
	if strings.TrimSpace(c.Liability.Symbol) == "" {
		c.Liability.Symbol = "SUSD"
	}
	if c.Risk.LiquidationThresholdPercent == 0 {
		c.Risk.LiquidationThresholdPercent = 50
	}
	if c.Risk.LiquidationBonusPercent == 0 {
		c.Risk.LiquidationBonusPercent = 10
	}
	if c.Oracle.MaxAge.Duration == 0 {
		c.Oracle.MaxAge.Duration = 3 * time.Hour
	}
}

// Validate rejects configurations the engine constructor would refuse, so
// mistakes surface at startup with a file/field context.
func (c *Config) Validate() error {
	if _, err := parseAddress(c.TreasuryAddress, "TreasuryAddress"); err != nil {
		return err
	}
	if _, err := parseAddress(c.Liability.Address, "liability.Address"); err != nil {
		return err
	}
	if len(c.Assets) == 0 {
		return fmt.Errorf("config: at least one collateral asset is required")
	}
	seen := make(map[common.Address]bool, len(c.Assets))
	for i, asset := range c.Assets {
		addr, err := parseAddress(asset.Address, fmt.Sprintf("assets[%d].Address", i))
		if err != nil {
			return err
		}
		if seen[addr] {
			return fmt.Errorf("config: duplicate collateral asset %s", asset.Address)
		}
		seen[addr] = true
		if _, err := parseAddress(asset.FeedAddress, fmt.Sprintf("assets[%d].FeedAddress", i)); err != nil {
			return err
		}
		hasURL := strings.TrimSpace(asset.FeedURL) != ""
		hasStatic := strings.TrimSpace(asset.StaticPrice) != ""
		if hasURL == hasStatic {
			return fmt.Errorf("config: assets[%d] requires exactly one of FeedURL or StaticPrice", i)
		}
	}
	return nil
}

func parseAddress(value, field string) (common.Address, error) {
	trimmed := strings.TrimSpace(value)
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("config: %s: invalid address %q", field, value)
	}
	return common.HexToAddress(trimmed), nil
}

// ParsedTreasury returns the validated treasury address.
func (c *Config) ParsedTreasury() common.Address {
	return common.HexToAddress(strings.TrimSpace(c.TreasuryAddress))
}

// ParsedLiabilityAddress returns the validated liability token address.
func (c *Config) ParsedLiabilityAddress() common.Address {
	return common.HexToAddress(strings.TrimSpace(c.Liability.Address))
}
