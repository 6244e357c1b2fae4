package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml"
)

const (
	defaultBaseURL              = "http://scavenger.prod.gd.midnighttge.io"
	defaultNetwork              = "mainnet"
	defaultMaxWallets           = 10
	defaultMaxInstances         = 10
	defaultChallengeWaitSeconds = 30
	defaultStatsInterval        = 30
	defaultDataDir              = "data"
)

// miningEndDefault is the hard end of the mining period; past this the miner
// switches to donation-only behavior even if the API keeps serving challenges.
var miningEndDefault = time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC)

type Config struct {
	BaseURL string
	// Network selects the address flavor: "mainnet" or "testnet".
	Network string
	// MinerThreads is the nonce-search worker count. Zero means NumCPU.
	MinerThreads int
	// MaxWallets caps how many wallets the container grows to. Wallets are
	// never removed once created.
	MaxWallets int
	// DataDir holds logs and the receipt database.
	DataDir string
	// ConfigRoot holds shared state (donation list) visible to all
	// instances. Defaults to DataDir.
	ConfigRoot string
	// InstanceRoot is the parent of the numbered per-instance directories.
	InstanceRoot string
	MaxInstances int
	// ChallengeWaitSeconds is the poll interval while no challenge is
	// active or after a submission.
	ChallengeWaitSeconds int
	MiningEnd            time.Time

	// Optional stats push endpoint. Empty disables the reporter.
	StatsURL             string
	StatsIntervalSeconds int
	StatsBearerToken     string
	ContainerPrefix      string
	ContainerID          string

	// Sha256Simd selects the SIMD SHA-256 backend for table generation and
	// the search digest. Disable to fall back to the standard library.
	Sha256Simd bool

	LogDebug bool
}

func (cfg Config) Mainnet() bool {
	return cfg.Network != "testnet"
}

// fileConfig mirrors Config with pointer fields so a config file can override
// any subset of the defaults and leave the rest alone.
type fileConfig struct {
	BaseURL              *string `toml:"base_url,omitempty"`
	Network              *string `toml:"network,omitempty"`
	MinerThreads         *int    `toml:"miner_threads,omitempty"`
	MaxWallets           *int    `toml:"max_wallets,omitempty"`
	DataDir              *string `toml:"data_dir,omitempty"`
	ConfigRoot           *string `toml:"config_root,omitempty"`
	InstanceRoot         *string `toml:"instance_root,omitempty"`
	MaxInstances         *int    `toml:"max_instances,omitempty"`
	ChallengeWaitSeconds *int    `toml:"challenge_wait_seconds,omitempty"`
	MiningEnd            *string `toml:"mining_end,omitempty"`
	StatsURL             *string `toml:"stats_url,omitempty"`
	StatsIntervalSeconds *int    `toml:"stats_interval_seconds,omitempty"`
	StatsBearerToken     *string `toml:"stats_bearer_token,omitempty"`
	ContainerPrefix      *string `toml:"container_prefix,omitempty"`
	ContainerID          *string `toml:"container_id,omitempty"`
	Sha256Simd           *bool   `toml:"sha256_simd,omitempty"`
	LogDebug             *bool   `toml:"log_debug,omitempty"`
}

func defaultConfig() Config {
	return Config{
		BaseURL:              defaultBaseURL,
		Network:              defaultNetwork,
		MinerThreads:         runtime.NumCPU(),
		MaxWallets:           defaultMaxWallets,
		DataDir:              defaultDataDir,
		ConfigRoot:           defaultDataDir,
		InstanceRoot:         filepath.Join(defaultDataDir, "instances"),
		MaxInstances:         defaultMaxInstances,
		ChallengeWaitSeconds: defaultChallengeWaitSeconds,
		MiningEnd:            miningEndDefault,
		StatsIntervalSeconds: defaultStatsInterval,
		ContainerPrefix:      "scavenger",
		Sha256Simd:           true,
	}
}

func defaultConfigPath() string {
	return filepath.Join(defaultDataDir, "config.toml")
}

func loadConfig(configPath string) Config {
	cfg := defaultConfig()

	if configPath == "" {
		configPath = defaultConfigPath()
	}

	if fc, ok, err := loadConfigFile(configPath); err != nil {
		fatal("config file", err, "path", configPath)
	} else if ok {
		applyFileConfig(&cfg, *fc)
	} else {
		if err := rewriteConfigFile(configPath, cfg); err != nil {
			fatal("write default config", err, "path", configPath)
		}
		logger.Info("created default config file", "path", configPath)
	}

	applyEnvConfig(&cfg)

	if cfg.ConfigRoot == "" {
		cfg.ConfigRoot = cfg.DataDir
	}
	if cfg.InstanceRoot == "" {
		cfg.InstanceRoot = filepath.Join(cfg.DataDir, "instances")
	}
	return cfg
}

func loadConfigFile(path string) (*fileConfig, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read %s: %w", path, err)
	}

	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return nil, true, fmt.Errorf("parse %s: %w", path, err)
	}
	return &fc, true, nil
}

func applyFileConfig(cfg *Config, fc fileConfig) {
	if fc.BaseURL != nil && *fc.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(*fc.BaseURL, "/")
	}
	if fc.Network != nil && *fc.Network != "" {
		cfg.Network = strings.ToLower(strings.TrimSpace(*fc.Network))
	}
	if fc.MinerThreads != nil && *fc.MinerThreads > 0 {
		cfg.MinerThreads = *fc.MinerThreads
	}
	if fc.MaxWallets != nil && *fc.MaxWallets > 0 {
		cfg.MaxWallets = *fc.MaxWallets
	}
	if fc.DataDir != nil && *fc.DataDir != "" {
		cfg.DataDir = *fc.DataDir
	}
	if fc.ConfigRoot != nil && *fc.ConfigRoot != "" {
		cfg.ConfigRoot = *fc.ConfigRoot
	}
	if fc.InstanceRoot != nil && *fc.InstanceRoot != "" {
		cfg.InstanceRoot = *fc.InstanceRoot
	}
	if fc.MaxInstances != nil && *fc.MaxInstances > 0 {
		cfg.MaxInstances = *fc.MaxInstances
	}
	if fc.ChallengeWaitSeconds != nil && *fc.ChallengeWaitSeconds > 0 {
		cfg.ChallengeWaitSeconds = *fc.ChallengeWaitSeconds
	}
	if fc.MiningEnd != nil && *fc.MiningEnd != "" {
		if t, err := time.Parse(time.RFC3339, *fc.MiningEnd); err == nil {
			cfg.MiningEnd = t
		} else {
			logger.Warn("invalid mining_end in config; keeping default", "value", *fc.MiningEnd, "error", err)
		}
	}
	if fc.StatsURL != nil {
		cfg.StatsURL = strings.TrimSpace(*fc.StatsURL)
	}
	if fc.StatsIntervalSeconds != nil && *fc.StatsIntervalSeconds > 0 {
		cfg.StatsIntervalSeconds = *fc.StatsIntervalSeconds
	}
	if fc.StatsBearerToken != nil {
		cfg.StatsBearerToken = *fc.StatsBearerToken
	}
	if fc.ContainerPrefix != nil && *fc.ContainerPrefix != "" {
		cfg.ContainerPrefix = *fc.ContainerPrefix
	}
	if fc.ContainerID != nil && *fc.ContainerID != "" {
		cfg.ContainerID = *fc.ContainerID
	}
	if fc.Sha256Simd != nil {
		cfg.Sha256Simd = *fc.Sha256Simd
	}
	if fc.LogDebug != nil {
		cfg.LogDebug = *fc.LogDebug
	}
}

// applyEnvConfig overlays APP_* environment variables on top of whatever the
// config file produced. Container deployments set these instead of editing
// files.
func applyEnvConfig(cfg *Config) {
	envString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	envInt := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				*dst = n
			} else {
				logger.Warn("ignoring invalid integer environment override", "key", key, "value", v)
			}
		}
	}

	envString("APP_BASE_URL", &cfg.BaseURL)
	envString("APP_NETWORK", &cfg.Network)
	envInt("APP_MINER_THREADS", &cfg.MinerThreads)
	envInt("APP_MAX_WALLETS", &cfg.MaxWallets)
	envString("APP_DATA_DIR", &cfg.DataDir)
	envString("APP_CONFIG_ROOT", &cfg.ConfigRoot)
	envString("APP_INSTANCE_ROOT", &cfg.InstanceRoot)
	envInt("APP_MAX_INSTANCES", &cfg.MaxInstances)
	envString("APP_STATS_URL", &cfg.StatsURL)
	envInt("APP_STATS_INTERVAL_SECONDS", &cfg.StatsIntervalSeconds)
	envString("APP_STATS_BEARER_TOKEN", &cfg.StatsBearerToken)
	envString("APP_CONTAINER_PREFIX", &cfg.ContainerPrefix)
	envString("APP_CONTAINER_ID", &cfg.ContainerID)
	if v, ok := os.LookupEnv("APP_SHA256_SIMD"); ok {
		cfg.Sha256Simd = v == "1" || strings.EqualFold(v, "true")
	}
	if v, ok := os.LookupEnv("APP_LOG_DEBUG"); ok {
		cfg.LogDebug = v == "1" || strings.EqualFold(v, "true")
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.Network = strings.ToLower(strings.TrimSpace(cfg.Network))
}

func validateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return fmt.Errorf("base_url is required")
	}
	if cfg.Network != "mainnet" && cfg.Network != "testnet" {
		return fmt.Errorf("network must be mainnet or testnet, got %q", cfg.Network)
	}
	if cfg.MinerThreads <= 0 {
		return fmt.Errorf("miner_threads must be > 0, got %d", cfg.MinerThreads)
	}
	if cfg.MaxWallets <= 0 {
		return fmt.Errorf("max_wallets must be > 0, got %d", cfg.MaxWallets)
	}
	if cfg.MaxInstances <= 0 {
		return fmt.Errorf("max_instances must be > 0, got %d", cfg.MaxInstances)
	}
	if cfg.ChallengeWaitSeconds <= 0 {
		return fmt.Errorf("challenge_wait_seconds must be > 0, got %d", cfg.ChallengeWaitSeconds)
	}
	if cfg.StatsURL != "" && cfg.StatsIntervalSeconds <= 0 {
		return fmt.Errorf("stats_interval_seconds must be > 0 when stats_url is set")
	}
	return nil
}

func rewriteConfigFile(path string, cfg Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	strPtr := func(v string) *string { return &v }
	intPtr := func(v int) *int { return &v }
	boolPtr := func(v bool) *bool { return &v }

	fc := fileConfig{
		BaseURL:              strPtr(cfg.BaseURL),
		Network:              strPtr(cfg.Network),
		MinerThreads:         intPtr(cfg.MinerThreads),
		MaxWallets:           intPtr(cfg.MaxWallets),
		DataDir:              strPtr(cfg.DataDir),
		ConfigRoot:           strPtr(cfg.ConfigRoot),
		InstanceRoot:         strPtr(cfg.InstanceRoot),
		MaxInstances:         intPtr(cfg.MaxInstances),
		ChallengeWaitSeconds: intPtr(cfg.ChallengeWaitSeconds),
		MiningEnd:            strPtr(cfg.MiningEnd.UTC().Format(time.RFC3339)),
		StatsIntervalSeconds: intPtr(cfg.StatsIntervalSeconds),
		ContainerPrefix:      strPtr(cfg.ContainerPrefix),
		Sha256Simd:           boolPtr(cfg.Sha256Simd),
		LogDebug:             boolPtr(cfg.LogDebug),
	}
	if cfg.StatsURL != "" {
		fc.StatsURL = strPtr(cfg.StatsURL)
	}
	if cfg.ContainerID != "" {
		fc.ContainerID = strPtr(cfg.ContainerID)
	}
	// The bearer token is deliberately never written back out.

	data, err := toml.Marshal(fc)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	tmpName := path + ".tmp"
	if err := os.WriteFile(tmpName, data, 0o644); err != nil {
		return fmt.Errorf("write temp config: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename %s to %s: %w", tmpName, path, err)
	}
	return nil
}
