package tui

import (
	"fmt"
	"os"

	"btcdash/pkg/config"
	"btcdash/pkg/watcher"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

func Start(w *watcher.Watcher, cfg config.Config, logger *zap.Logger, version string) {
	Version = version
	p := tea.NewProgram(
		initialModel(w, cfg, logger),
		tea.WithAltScreen(),
	)

	if _, err := p.Run(); err != nil {
		fmt.Printf("Alas, there's been an error: %v", err)
		os.Exit(1)
	}
}
