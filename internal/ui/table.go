package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/salusconnect/internal/salus"
)

// FormatCelsius renders a hundredths value as "21.5°C"
func FormatCelsius(x100 float64) string {
	return fmt.Sprintf("%.1f°C", salus.CelsiusFromSetpoint(x100))
}

// DisplayName picks the nickname for dsn if one is set, else the cloud name.
func DisplayName(s salus.DeviceSummary, nicknames map[string]string) string {
	if nick := nicknames[s.ID]; nick != "" {
		return nick
	}
	if s.Name != "" {
		return s.Name
	}
	return s.ID
}

// HeatingBadge returns a styled heating/idle marker
func HeatingBadge(heating bool) string {
	if heating {
		return HeatingStyle.Render(HeatingMarker + " heating")
	}
	return IdleStyle.Render(IdleMarker + " idle")
}

var tableColumns = []string{"NAME", "DEVICE ID", "CURRENT", "TARGET", "HUMIDITY", "STATE"}

// RenderDeviceTable renders summaries as an aligned table.
// nicknames (DSN → label) may be nil.
func RenderDeviceTable(summaries []salus.DeviceSummary, nicknames map[string]string) string {
	if len(summaries) == 0 {
		return StepPendingStyle.Render("  No thermostats found on this account.")
	}

	rows := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, []string{
			DisplayName(s, nicknames),
			s.ID,
			FormatCelsius(s.Current),
			FormatCelsius(s.Target),
			fmt.Sprintf("%.0f", s.Humidity),
			HeatingBadge(s.Heating),
		})
	}

	widths := make([]int, len(tableColumns))
	for i, c := range tableColumns {
		widths[i] = lipgloss.Width(c)
	}
	for _, row := range rows {
		for i, cell := range row {
			if w := lipgloss.Width(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var b strings.Builder
	b.WriteString(renderRow(tableColumns, widths, &TableHeaderStyle))
	b.WriteString("\n")
	for _, row := range rows {
		b.WriteString(renderRow(row, widths, nil))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderRow(cells []string, widths []int, style *lipgloss.Style) string {
	parts := make([]string, len(cells))
	for i, cell := range cells {
		padded := cell + strings.Repeat(" ", widths[i]-lipgloss.Width(cell))
		if style != nil {
			padded = style.Render(padded)
		}
		parts[i] = padded
	}
	return "  " + strings.TrimRight(strings.Join(parts, "  "), " ")
}

// RenderCompactList renders one line per device
func RenderCompactList(summaries []salus.DeviceSummary, nicknames map[string]string) string {
	lines := make([]string, 0, len(summaries))
	for _, s := range summaries {
		labelled := s
		labelled.Name = DisplayName(s, nicknames)
		lines = append(lines, labelled.FormatCompact())
	}
	return strings.Join(lines, "\n")
}
