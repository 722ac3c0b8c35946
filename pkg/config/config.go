package config

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const ConfigFileName = ".btcdash.json"

// EnvAPIURL overrides the explorer backend base URL from the environment.
// When set it wins over the config file.
const EnvAPIURL = "BTCDASH_API_URL"

const (
	DefaultRefreshIntervalSeconds = 30
	DefaultPriceWindowDays        = 1
	DefaultFiatDecimals           = 2
	DefaultExplorerURL            = "https://www.blockchain.com/explorer"
)

// Config holds application-wide settings.
type Config struct {
	APIBaseURL             string `json:"api_base_url,omitempty"`
	CoinGeckoURL           string `json:"coingecko_url,omitempty"`
	ExplorerURL            string `json:"explorer_url,omitempty"`
	RefreshIntervalSeconds int    `json:"refresh_interval_seconds"`
	PriceWindowDays        int    `json:"price_window_days"`
	FiatDecimals           int    `json:"fiat_decimals"`
}

// RefreshInterval returns the metrics polling cadence. Values below one
// second fall back to the default; the result is always a positive
// interval.
func (c Config) RefreshInterval() time.Duration {
	if c.RefreshIntervalSeconds < 1 {
		return DefaultRefreshIntervalSeconds * time.Second
	}
	return time.Duration(c.RefreshIntervalSeconds) * time.Second
}

func defaultConfig() Config {
	return Config{
		ExplorerURL:            DefaultExplorerURL,
		RefreshIntervalSeconds: DefaultRefreshIntervalSeconds,
		PriceWindowDays:        DefaultPriceWindowDays,
		FiatDecimals:           DefaultFiatDecimals,
	}
}

func GetConfigPath(customPath string) (string, error) {
	if customPath != "" {
		return customPath, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigFileName), nil
}

func LoadConfigFromFile(path string) (Config, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return defaultConfig(), nil
	}
	if err != nil {
		return Config{}, err
	}
	defer func() { _ = f.Close() }()
	return LoadConfig(f)
}

func LoadConfig(r io.Reader) (Config, error) {
	var raw struct {
		APIBaseURL             *string `json:"api_base_url"`
		BackendURL             *string `json:"backend_url"` // Legacy
		CoinGeckoURL           *string `json:"coingecko_url"`
		ExplorerURL            *string `json:"explorer_url"`
		RefreshIntervalSeconds *int    `json:"refresh_interval_seconds"`
		PriceWindowDays        *int    `json:"price_window_days"`
		FiatDecimals           *int    `json:"fiat_decimals"`
	}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return Config{}, err
	}

	cfg := defaultConfig()
	if raw.APIBaseURL != nil {
		cfg.APIBaseURL = *raw.APIBaseURL
	} else if raw.BackendURL != nil {
		cfg.APIBaseURL = *raw.BackendURL
	}
	if raw.CoinGeckoURL != nil {
		cfg.CoinGeckoURL = *raw.CoinGeckoURL
	}
	if raw.ExplorerURL != nil {
		cfg.ExplorerURL = *raw.ExplorerURL
	}
	if raw.RefreshIntervalSeconds != nil {
		cfg.RefreshIntervalSeconds = *raw.RefreshIntervalSeconds
	}
	if raw.PriceWindowDays != nil {
		cfg.PriceWindowDays = *raw.PriceWindowDays
	}
	if raw.FiatDecimals != nil {
		cfg.FiatDecimals = *raw.FiatDecimals
	}
	return cfg, nil
}

// ResolveBaseURL returns the explorer backend base URL and where it came
// from ("env" or "config"). An empty URL means neither source set one.
func ResolveBaseURL(cfg Config) (string, string) {
	if env := strings.TrimSpace(os.Getenv(EnvAPIURL)); env != "" {
		return strings.TrimRight(env, "/"), "env"
	}
	return strings.TrimRight(cfg.APIBaseURL, "/"), "config"
}

// Validate returns the list of structural problems with the config.
// An empty slice means the config is usable.
func Validate(cfg Config) []string {
	var errs []string
	if cfg.RefreshIntervalSeconds < 1 {
		errs = append(errs, fmt.Sprintf("refresh_interval_seconds must be >= 1, got %d", cfg.RefreshIntervalSeconds))
	}
	if cfg.PriceWindowDays < 1 || cfg.PriceWindowDays > 365 {
		errs = append(errs, fmt.Sprintf("price_window_days must be between 1 and 365, got %d", cfg.PriceWindowDays))
	}
	if cfg.FiatDecimals < 0 || cfg.FiatDecimals > 8 {
		errs = append(errs, fmt.Sprintf("fiat_decimals must be between 0 and 8, got %d", cfg.FiatDecimals))
	}
	for _, u := range []struct{ name, value string }{
		{"api_base_url", cfg.APIBaseURL},
		{"coingecko_url", cfg.CoinGeckoURL},
		{"explorer_url", cfg.ExplorerURL},
	} {
		if u.value == "" {
			continue
		}
		parsed, err := url.Parse(u.value)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			errs = append(errs, fmt.Sprintf("%s must be an http(s) URL, got %q", u.name, u.value))
		}
	}
	return errs
}

func SaveConfig(cfg Config, path string) error {
	if errs := Validate(cfg); len(errs) > 0 {
		return fmt.Errorf("validation failed: %s", strings.Join(errs, "; "))
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	// Create a backup of the existing file
	if _, err := os.Stat(path); err == nil {
		backupPath := fmt.Sprintf("%s.%s.bak", path, time.Now().Format("20060102-150405"))
		input, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read existing config for backup: %w", err)
		}
		if err := os.WriteFile(backupPath, input, 0644); err != nil {
			return fmt.Errorf("failed to write backup config: %w", err)
		}
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

func RestoreLastBackup(configPath string) error {
	matches, err := filepath.Glob(configPath + ".*.bak")
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		return fmt.Errorf("no backup files found")
	}
	sort.Strings(matches)
	lastBackup := matches[len(matches)-1]

	data, err := os.ReadFile(lastBackup)
	if err != nil {
		return err
	}
	return os.WriteFile(configPath, data, 0644)
}
