package tui

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"btcdash/pkg/config"
	"btcdash/pkg/utils"
)

// formatAgo renders the time since the last successful refresh.
func formatAgo(t, now time.Time) string {
	if t.IsZero() {
		return "never"
	}
	d := now.Sub(t)
	if d < time.Second {
		return "just now"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	}
	return fmt.Sprintf("%dm ago", int(d.Minutes()))
}

// formatDifficulty scales raw difficulty into trillions, the unit
// explorers quote it in.
func formatDifficulty(d float64) string {
	if d >= 1e12 {
		return utils.FormatFloat(d/1e12, 2) + " T"
	}
	return utils.FormatFloat(d, 0)
}

func formatBTC(v float64) string {
	return utils.FormatFloat(v, 4) + " BTC"
}

func formatUSD(v float64, decimals int) string {
	return "$" + utils.FormatFloat(v, decimals)
}

// explorerBlockURL builds the public explorer page for a block height.
func explorerBlockURL(cfg config.Config, height int64) string {
	base := strings.TrimRight(cfg.ExplorerURL, "/")
	return fmt.Sprintf("%s/blocks/btc/%d", base, height)
}

// openBrowser opens the specified URL in the default browser.
func openBrowser(url string) error {
	var cmd string
	var args []string

	switch runtime.GOOS {
	case "windows":
		cmd = "cmd"
		args = []string{"/c", "start"}
	case "darwin":
		cmd = "open"
	default: // "linux", "freebsd", "openbsd", "netbsd"
		cmd = "xdg-open"
	}
	args = append(args, url)
	return exec.Command(cmd, args...).Start()
}
