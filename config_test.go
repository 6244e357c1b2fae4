package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigValidates(t *testing.T) {
	if err := validateConfig(defaultConfig()); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestValidateConfig_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty base url", func(c *Config) { c.BaseURL = " " }},
		{"bad network", func(c *Config) { c.Network = "devnet" }},
		{"zero threads", func(c *Config) { c.MinerThreads = 0 }},
		{"zero wallets", func(c *Config) { c.MaxWallets = 0 }},
		{"zero instances", func(c *Config) { c.MaxInstances = 0 }},
		{"zero poll wait", func(c *Config) { c.ChallengeWaitSeconds = 0 }},
		{"stats without interval", func(c *Config) { c.StatsURL = "http://stats"; c.StatsIntervalSeconds = 0 }},
	}
	for _, c := range cases {
		cfg := defaultConfig()
		c.mutate(&cfg)
		if err := validateConfig(cfg); err == nil {
			t.Fatalf("%s: expected validation error", c.name)
		}
	}
}

func TestConfigFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := defaultConfig()
	cfg.BaseURL = "http://example.test/api"
	cfg.Network = "testnet"
	cfg.MinerThreads = 7
	cfg.MaxWallets = 4
	cfg.LogDebug = true
	cfg.Sha256Simd = false
	cfg.MiningEnd = time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	if err := rewriteConfigFile(path, cfg); err != nil {
		t.Fatalf("rewriteConfigFile: %v", err)
	}

	fc, ok, err := loadConfigFile(path)
	if err != nil {
		t.Fatalf("loadConfigFile: %v", err)
	}
	if !ok {
		t.Fatalf("config file not found after writing")
	}
	loaded := defaultConfig()
	applyFileConfig(&loaded, *fc)

	if loaded.BaseURL != cfg.BaseURL {
		t.Fatalf("base url %q, want %q", loaded.BaseURL, cfg.BaseURL)
	}
	if loaded.Network != "testnet" || loaded.Mainnet() {
		t.Fatalf("network did not round-trip: %q", loaded.Network)
	}
	if loaded.MinerThreads != 7 || loaded.MaxWallets != 4 {
		t.Fatalf("numeric fields did not round-trip: threads=%d wallets=%d", loaded.MinerThreads, loaded.MaxWallets)
	}
	if !loaded.LogDebug {
		t.Fatalf("log_debug did not round-trip")
	}
	if loaded.Sha256Simd {
		t.Fatalf("sha256_simd=false did not round-trip")
	}
	if !loaded.MiningEnd.Equal(cfg.MiningEnd) {
		t.Fatalf("mining_end %v, want %v", loaded.MiningEnd, cfg.MiningEnd)
	}
}

func TestLoadConfigFile_Missing(t *testing.T) {
	_, ok, err := loadConfigFile(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("missing file must not error: %v", err)
	}
	if ok {
		t.Fatalf("missing file reported as loaded")
	}
}

func TestLoadConfigFile_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("base_url = [unclosed"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, err := loadConfigFile(path); err == nil {
		t.Fatalf("expected parse error for malformed config")
	}
}

func TestApplyEnvConfig(t *testing.T) {
	t.Setenv("APP_BASE_URL", "http://env.test/")
	t.Setenv("APP_NETWORK", "Testnet")
	t.Setenv("APP_MINER_THREADS", "5")
	t.Setenv("APP_MAX_WALLETS", "nonsense")
	t.Setenv("APP_LOG_DEBUG", "true")
	t.Setenv("APP_SHA256_SIMD", "0")

	cfg := defaultConfig()
	before := cfg.MaxWallets
	applyEnvConfig(&cfg)

	if cfg.BaseURL != "http://env.test" {
		t.Fatalf("base url %q, want trailing slash stripped", cfg.BaseURL)
	}
	if cfg.Network != "testnet" {
		t.Fatalf("network %q, want lowercased testnet", cfg.Network)
	}
	if cfg.MinerThreads != 5 {
		t.Fatalf("threads %d, want 5", cfg.MinerThreads)
	}
	if cfg.MaxWallets != before {
		t.Fatalf("invalid numeric override changed max_wallets to %d", cfg.MaxWallets)
	}
	if !cfg.LogDebug {
		t.Fatalf("APP_LOG_DEBUG=true not applied")
	}
	if cfg.Sha256Simd {
		t.Fatalf("APP_SHA256_SIMD=0 not applied")
	}
}

func TestMainnetSelector(t *testing.T) {
	cfg := defaultConfig()
	if !cfg.Mainnet() {
		t.Fatalf("default network must be mainnet")
	}
	cfg.Network = "testnet"
	if cfg.Mainnet() {
		t.Fatalf("testnet reported as mainnet")
	}
}
