package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"btcdash/pkg/utils"
)

func (m model) View() string {
	if m.showHelp {
		return m.viewHelp()
	}
	if m.showDetail {
		return m.viewDetail()
	}
	return m.viewDashboard()
}

func (m model) viewDashboard() string {
	targetBoxWidth := m.width - 4
	if targetBoxWidth < 0 {
		targetBoxWidth = 0
	}

	var sections []string
	sections = append(sections, m.metricsBox(targetBoxWidth))
	if chartBox := m.chartBox(targetBoxWidth); chartBox != "" {
		sections = append(sections, chartBox)
	}
	sections = append(sections, m.blocksBox(targetBoxWidth))
	content := lipgloss.JoinVertical(lipgloss.Center, sections...)

	// Footer
	line1 := "j/k: select • enter: details • c: copy hash • o: explorer • r: refresh • ?: help • q: quit"
	line2 := fmt.Sprintf("auto-refresh: %ds • v%s", m.cfg.RefreshIntervalSeconds, Version)

	var footer string
	if m.width > 0 {
		l1 := subtleStyle.Width(m.width).Align(lipgloss.Center).Render(line1)
		l2 := subtleStyle.Width(m.width).Align(lipgloss.Center).Render(line2)
		footer = lipgloss.JoinVertical(lipgloss.Center, l1, l2)
	} else {
		footer = subtleStyle.Render(line1 + "\n" + line2)
	}
	if m.statusMessage != "" {
		footer = lipgloss.JoinVertical(lipgloss.Center, infoStyle.Render(m.statusMessage), footer)
	}

	// Construct Top Bar
	priceDisplay := "BTC: N/A"
	heightDisplay := "Height: N/A"
	if m.snapshot != nil {
		priceDisplay = fmt.Sprintf("BTC: $%s", utils.FormatFloat(m.snapshot.MarketPrice, m.cfg.FiatDecimals))
		heightDisplay = fmt.Sprintf("Height: %s", utils.AddCommas(strconv.FormatInt(m.snapshot.Height, 10)))
	}
	leftBlock := lipgloss.JoinHorizontal(lipgloss.Top,
		subtleStyle.Render(" "+priceDisplay),
		subtleStyle.Render(" • "),
		subtleStyle.Render(heightDisplay),
	)

	spinnerView := ""
	if m.loadingAny() {
		spinnerView = m.spinner.View() + " "
	}
	rightBlock := subtleStyle.Render(fmt.Sprintf("%sUpdated: %s ", spinnerView, formatAgo(m.lastUpdate, time.Now())))
	gap := m.width - lipgloss.Width(leftBlock) - lipgloss.Width(rightBlock)
	if gap < 0 {
		gap = 0
	}
	topBar := lipgloss.JoinHorizontal(lipgloss.Top, leftBlock, strings.Repeat(" ", gap), rightBlock)

	h := m.height - 1
	if h < 0 {
		h = 0
	}

	// Center the content on the screen
	return lipgloss.JoinVertical(lipgloss.Left,
		topBar,
		lipgloss.Place(
			m.width,
			h,
			lipgloss.Center,
			lipgloss.Center,
			lipgloss.JoinVertical(lipgloss.Center, content, "\n", footer),
		),
	)
}

func (m model) metricsBox(targetBoxWidth int) string {
	header := titleStyle.Render("Bitcoin Explorer Dashboard")

	var body string
	switch {
	case m.snapshot == nil && m.snapshotState == stateLoading:
		body = m.spinner.View() + " Connecting to explorer backend..."
	case m.snapshot == nil:
		body = errStyle.Render("Error fetching chain metrics:") + "\n" + m.snapshotErr.Error()
	default:
		body = m.metricsGrid()
		if m.snapshotErr != nil {
			note := errStyle.Render(fmt.Sprintf("Last refresh failed: %v", m.snapshotErr)) +
				subtleStyle.Render(" (showing last good data)")
			body = lipgloss.JoinVertical(lipgloss.Left, body, "", note)
		}
	}

	return boxStyle.Width(targetBoxWidth).Align(lipgloss.Center).Render(
		lipgloss.JoinVertical(lipgloss.Center, header, "\n", body),
	)
}

func (m model) metricsGrid() string {
	s := m.snapshot
	row := func(label, value string) string {
		return fmt.Sprintf("%s %s", subtleStyle.Render(fmt.Sprintf("%-18s", label)), value)
	}

	left := []string{
		row("Height", utils.AddCommas(strconv.FormatInt(s.Height, 10))),
		row("Latest Block", utils.TruncateString(s.Hash, 24)),
		row("Market Price", formatUSD(s.MarketPrice, m.cfg.FiatDecimals)),
		row("Difficulty", formatDifficulty(s.Difficulty)),
		row("Hashrate", utils.FormatHashrate(s.Hashrate)),
		row("Blockchain Size", utils.FormatBytes(s.BlockchainSize)),
	}
	right := []string{
		row("Transactions", utils.AddCommas(strconv.FormatInt(s.TxCount, 10))),
		row("Total Sent Today", formatUSD(s.TotalSentToday, m.cfg.FiatDecimals)),
		row("24h Sent Value", formatBTC(s.Value)),
		row("Value Today", formatBTC(s.ValueToday)),
		row("Avg Transaction", formatBTC(s.AverageValue)),
		row("Median Transaction", formatBTC(s.MedianValue)),
	}

	return lipgloss.JoinHorizontal(lipgloss.Top,
		strings.Join(left, "\n"),
		"    ",
		strings.Join(right, "\n"),
	)
}

// chartBox renders the price history graph sized to the space left over
// by the other sections. A failed or empty history renders nothing.
func (m model) chartBox(targetBoxWidth int) string {
	if m.chartState != stateReady || m.series.Empty() {
		return ""
	}

	graphWidth := targetBoxWidth - 14 // 4 for box borders/padding, ~10 for axis labels
	if graphWidth < 10 {
		graphWidth = 10
	}
	graphHeight := m.height - 30
	if graphHeight < 3 {
		graphHeight = 3
	}
	if graphHeight > 7 {
		graphHeight = 7
	}

	graph := m.series.Render(graphWidth, graphHeight)
	if graph == "" {
		return ""
	}
	return boxStyle.Width(targetBoxWidth).Align(lipgloss.Center).Render(graph)
}

func (m model) blocksBox(targetBoxWidth int) string {
	header := tableHeaderStyle.Render("Recent Blocks")

	var body string
	switch {
	case m.blocksState == stateLoading:
		body = m.spinner.View() + " Loading recent blocks..."
	case len(m.heights) == 0:
		body = subtleStyle.Render("No blocks available")
	default:
		maxRows := m.height - 24
		if maxRows < 5 {
			maxRows = 5
		}
		if maxRows > len(m.heights) {
			maxRows = len(m.heights)
		}
		start := 0
		if len(m.heights) > maxRows {
			start = m.listIdx - maxRows/2
			if start < 0 {
				start = 0
			}
			if start > len(m.heights)-maxRows {
				start = len(m.heights) - maxRows
			}
		}

		var rows []string
		for i := start; i < start+maxRows; i++ {
			cursor := "  "
			if i == m.listIdx {
				cursor = "> "
			}
			line := fmt.Sprintf("%sBlock %s", cursor, utils.AddCommas(strconv.FormatInt(m.heights[i], 10)))
			if i == m.listIdx {
				line = selectedStyle.Render(line)
			}
			rows = append(rows, line)
		}
		body = lipgloss.JoinVertical(lipgloss.Left, header, strings.Join(rows, "\n"))
	}

	return boxStyle.Width(targetBoxWidth).Render(body)
}

func (m model) viewDetail() string {
	heightStr := utils.AddCommas(strconv.FormatInt(m.detailHeight, 10))
	header := titleStyle.Render(fmt.Sprintf("Block %s", heightStr))

	var body string
	switch m.detailState {
	case stateLoading:
		body = fmt.Sprintf("%s Loading block %s...", m.spinner.View(), heightStr)
	case stateFailed:
		body = errStyle.Render("Error fetching block:") + "\n" + m.detailErr.Error()
	default:
		body = m.viewport.View()
	}

	content := boxStyle.Render(lipgloss.JoinVertical(lipgloss.Center, header, "\n", body))

	footer := subtleStyle.Render("↑/↓: scroll • c: copy hash • o: open in explorer • esc: back")
	if m.statusMessage != "" {
		footer = lipgloss.JoinVertical(lipgloss.Center, infoStyle.Render(m.statusMessage), footer)
	}

	return lipgloss.Place(
		m.width,
		m.height,
		lipgloss.Center,
		lipgloss.Center,
		lipgloss.JoinVertical(lipgloss.Center, content, "\n", footer),
	)
}

func (m model) viewHelp() string {
	shortcuts := []string{
		"r: Refresh Data",
		"j/↓: Next Block",
		"k/↑: Previous Block",
		"enter: Block Details",
		"c: Copy Block Hash",
		"o: Open in Explorer",
		"q/ctrl+c: Quit",
		"?: Toggle Help",
	}

	header := titleStyle.Render("Help: Main View")
	content := boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, header, "\n", strings.Join(shortcuts, "\n")))
	footer := subtleStyle.Render("Press '?' or 'esc' to close")

	return lipgloss.Place(
		m.width,
		m.height,
		lipgloss.Center,
		lipgloss.Center,
		lipgloss.JoinVertical(lipgloss.Center, content, "\n", footer),
	)
}
