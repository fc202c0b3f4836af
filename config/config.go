// Copyright 2024 The depositbridge Authors
// SPDX-License-Identifier: LGPL-3.0-only

package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/naoina/toml"
)

const (
	DefaultDataDir           = "./depositbridge/data"
	DefaultListenAddr        = "127.0.0.1:8579"
	DefaultMaxProcessingTime = 24 * time.Hour
	DefaultCancelTimeDelta   = time.Hour
)

// TokenMapping pairs an origin token with its destination counterpart.
type TokenMapping struct {
	Origin string `toml:"origin"`
	Dest   string `toml:"dest"`
}

// Config is the daemon configuration, loadable from TOML.
type Config struct {
	// DataDir holds the leveldb store.
	DataDir string `toml:"data_dir"`
	// ListenAddr is the RPC HTTP listen address.
	ListenAddr string `toml:"listen_addr"`

	// Owner gates all administrative operations.
	Owner string `toml:"owner"`
	// SettlementConsumer is the only identity allowed to drain.
	SettlementConsumer string `toml:"settlement_consumer"`
	// Coordinator is the identity the coordinator submits under.
	Coordinator string `toml:"coordinator"`
	// Router is the optional custody intermediary; empty disables it.
	Router string `toml:"router"`
	// DestBridge is the destination-domain contact point.
	DestBridge string `toml:"dest_bridge"`
	// WrappedNative is the native-wrapped token the coordinator rejects.
	WrappedNative string `toml:"wrapped_native"`

	// MaxProcessingTimeSec and CancelTimeDeltaSec are the expiry window
	// and the cancellation grace period, in seconds.
	MaxProcessingTimeSec uint64 `toml:"max_processing_time_sec"`
	CancelTimeDeltaSec   uint64 `toml:"cancel_time_delta_sec"`

	// BaseFee seeds the gas-market fee oracle, in origin wei.
	BaseFee uint64 `toml:"base_fee"`

	Tokens []TokenMapping `toml:"tokens"`
}

// Load reads a TOML config file and fills in defaults.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg := new(Config)
	if err := toml.NewDecoder(f).Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %v", path, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir
	}
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.MaxProcessingTimeSec == 0 {
		c.MaxProcessingTimeSec = uint64(DefaultMaxProcessingTime / time.Second)
	}
	if c.CancelTimeDeltaSec == 0 {
		c.CancelTimeDeltaSec = uint64(DefaultCancelTimeDelta / time.Second)
	}
}

// Validate rejects configurations that cannot possibly run.
func (c *Config) Validate() error {
	if !common.IsHexAddress(c.Owner) {
		return fmt.Errorf("required field owner invalid: %q", c.Owner)
	}
	if !common.IsHexAddress(c.SettlementConsumer) {
		return fmt.Errorf("required field settlement_consumer invalid: %q", c.SettlementConsumer)
	}
	if !common.IsHexAddress(c.Coordinator) {
		return fmt.Errorf("required field coordinator invalid: %q", c.Coordinator)
	}
	if !common.IsHexAddress(c.DestBridge) {
		return fmt.Errorf("required field dest_bridge invalid: %q", c.DestBridge)
	}
	if c.Router != "" && !common.IsHexAddress(c.Router) {
		return fmt.Errorf("field router invalid: %q", c.Router)
	}
	if c.WrappedNative != "" && !common.IsHexAddress(c.WrappedNative) {
		return fmt.Errorf("field wrapped_native invalid: %q", c.WrappedNative)
	}
	for i, tm := range c.Tokens {
		if !common.IsHexAddress(tm.Origin) || !common.IsHexAddress(tm.Dest) {
			return fmt.Errorf("token mapping %d invalid: %q -> %q", i, tm.Origin, tm.Dest)
		}
	}
	return nil
}

func (c *Config) MaxProcessingTime() time.Duration {
	return time.Duration(c.MaxProcessingTimeSec) * time.Second
}

func (c *Config) CancelTimeDelta() time.Duration {
	return time.Duration(c.CancelTimeDeltaSec) * time.Second
}
