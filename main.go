package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"btcdash/pkg/api"
	"btcdash/pkg/config"
	"btcdash/pkg/models"
	"btcdash/pkg/server"
	"btcdash/pkg/tui"
	"btcdash/pkg/watcher"

	"go.uber.org/zap"
)

// Version should be set during build
var Version = "dev"

func main() {
	testFlag := flag.Bool("t", false, "Test configuration and exit")
	testLongFlag := flag.Bool("test", false, "Test configuration and exit")
	jsonFlag := flag.Bool("json", false, "Output test results as JSON")
	configFlag := flag.String("config", "", "Path to configuration file")
	restoreFlag := flag.Bool("restore", false, "Restore the last config backup and exit")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	serverFlag := flag.Bool("server", false, "Run in headless server mode")
	portFlag := flag.Int("port", 8080, "Port for API server")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("btcdash version %s\n", Version)
		os.Exit(0)
	}

	cfgInput := *configFlag
	if cfgInput == "" && len(flag.Args()) > 0 {
		cfgInput = flag.Args()[0]
	}
	path, err := config.GetConfigPath(cfgInput)
	if err != nil {
		fmt.Printf("Error determining config path: %v\n", err)
		os.Exit(1)
	}

	if *restoreFlag {
		if err := config.RestoreLastBackup(path); err != nil {
			fmt.Printf("Error restoring backup: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Restored last backup of %s\n", path)
		os.Exit(0)
	}

	cfg, err := config.LoadConfigFromFile(path)
	if err != nil {
		fmt.Printf("Error loading config from %s: %v\n", path, err)
		os.Exit(1)
	}

	baseURL, baseURLSource := config.ResolveBaseURL(cfg)

	if *testFlag || *testLongFlag {
		if _, ok := runConfigTest(cfg, path, baseURL, baseURLSource, *jsonFlag); !ok {
			os.Exit(1)
		}
		return
	}

	// First run: persist the defaults so there is a file to edit.
	if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		if saveErr := config.SaveConfig(cfg, path); saveErr != nil {
			fmt.Printf("Warning: could not write default config to %s: %v\n", path, saveErr)
		}
	}

	if errs := config.Validate(cfg); len(errs) > 0 {
		for _, e := range errs {
			fmt.Printf("Error: %s\n", e)
		}
		fmt.Printf("Fix %s or run with -t for a full report.\n", path)
		os.Exit(1)
	}

	if baseURL == "" {
		fmt.Println("Error: no explorer backend configured.")
		fmt.Printf("Set %s or add \"api_base_url\" to %s.\n", config.EnvAPIURL, path)
		os.Exit(1)
	}

	logger := buildLogger(*serverFlag)
	defer func() { _ = logger.Sync() }()

	client := api.NewClient(baseURL, cfg.CoinGeckoURL, logger)
	logger.Info("using explorer backend",
		zap.String("url", client.BackendURL()),
		zap.String("source", baseURLSource))
	w := watcher.NewWatcher(cfg, client, logger)
	w.Start(context.Background())

	srv := server.NewServer(w, logger)
	go func() {
		if err := srv.Start(*portFlag); err != nil {
			logger.Error("server stopped", zap.Error(err))
		}
	}()

	if *serverFlag {
		fmt.Printf("Running in server mode on port %d...\n", *portFlag)
		select {} // Keep alive
	}

	tui.Start(w, cfg, logger, Version)
	w.Stop()
}

// buildLogger keeps log output away from the terminal the TUI owns:
// interactive runs log to a file under the temp dir, headless runs log
// to stderr.
func buildLogger(headless bool) *zap.Logger {
	if headless {
		if logger, err := zap.NewDevelopment(); err == nil {
			return logger
		}
		return zap.NewNop()
	}
	logCfg := zap.NewProductionConfig()
	logCfg.OutputPaths = []string{filepath.Join(os.TempDir(), "btcdash.log")}
	logCfg.ErrorOutputPaths = logCfg.OutputPaths
	if logger, err := logCfg.Build(); err == nil {
		return logger
	}
	return zap.NewNop()
}

// runConfigTest validates the config and probes both upstreams. It
// reports success and leaves exiting to the caller.
func runConfigTest(cfg config.Config, path, baseURL, baseURLSource string, asJSON bool) (models.TestReport, bool) {
	report := models.TestReport{
		ConfigPath:     path,
		ValidStructure: true,
		APIBaseURL:     baseURL,
		BaseURLSource:  baseURLSource,
	}

	if !asJSON {
		fmt.Printf("Testing configuration at: %s\n", path)
	}

	if errs := config.Validate(cfg); len(errs) > 0 {
		report.ValidStructure = false
		report.StructureErrors = errs
		if !asJSON {
			for _, e := range errs {
				fmt.Printf("Error: %s\n", e)
			}
		}
	}
	if baseURL == "" {
		report.ValidStructure = false
		msg := fmt.Sprintf("no explorer backend configured: set %s or \"api_base_url\"", config.EnvAPIURL)
		report.StructureErrors = append(report.StructureErrors, msg)
		if !asJSON {
			fmt.Printf("Error: %s\n", msg)
		}
	}
	if !report.ValidStructure {
		emitReport(report, asJSON)
		return report, false
	}

	if !asJSON {
		fmt.Printf("Backend URL (%s): %s\n", baseURLSource, baseURL)
	}

	geckoURL := cfg.CoinGeckoURL
	if geckoURL == "" {
		geckoURL = api.CoinGeckoBaseURL
	}

	client := api.NewClient(baseURL, cfg.CoinGeckoURL, zap.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	probes := []struct {
		endpoint string
		run      func() error
	}{
		{baseURL + "/latest_block_metrics", func() error {
			_, err := client.LatestMetrics(ctx)
			return err
		}},
		{geckoURL + "/coins/bitcoin/market_chart", func() error {
			_, err := client.MarketChart(ctx, cfg.PriceWindowDays)
			return err
		}},
	}

	ok := true
	for _, p := range probes {
		if !asJSON {
			fmt.Printf("  Probing %s ... ", p.endpoint)
		}
		res := models.ProbeResult{Endpoint: p.endpoint, Status: "ok"}
		if err := p.run(); err != nil {
			res.Status = "error"
			res.Error = err.Error()
			ok = false
			if !asJSON {
				fmt.Printf("Failed: %v\n", err)
			}
		} else if !asJSON {
			fmt.Println("OK")
		}
		report.Probes = append(report.Probes, res)
	}

	emitReport(report, asJSON)
	return report, ok
}

func emitReport(report models.TestReport, asJSON bool) {
	if !asJSON {
		return
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(report)
}
