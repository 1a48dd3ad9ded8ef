package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/salusconnect/internal/salus"
	"github.com/muurk/salusconnect/internal/ui"
)

// Client is the part of salus.Client the dashboard drives.
type Client interface {
	ListDevices(ctx context.Context) ([]salus.DeviceSummary, error)
	UpdateTemperature(ctx context.Context, id string, value float64) (int, error)
}

// Mode is the dashboard's current screen state
type Mode int

const (
	ModeLoading Mode = iota
	ModeList
	ModeEditing
	ModeSaving
)

// Messages for async operations
type devicesLoadedMsg struct {
	summaries []salus.DeviceSummary
	err       error
	at        time.Time
}

type setpointDoneMsg struct {
	id     string
	value  float64
	status int
	err    error
}

// dashboardKeyMap defines key bindings for the device list
type dashboardKeyMap struct {
	Up       key.Binding
	Down     key.Binding
	Setpoint key.Binding
	Refresh  key.Binding
	Quit     key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k dashboardKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Setpoint, k.Refresh, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k dashboardKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down},
		{k.Setpoint, k.Refresh, k.Quit},
	}
}

// editKeyMap defines key bindings while entering a setpoint
type editKeyMap struct {
	Confirm key.Binding
	Cancel  key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k editKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Confirm, k.Cancel}
}

// FullHelp returns keybindings for the expanded help view
func (k editKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Confirm, k.Cancel}}
}

// thermostatItem wraps a DeviceSummary for use with bubbles/list
type thermostatItem struct {
	summary salus.DeviceSummary
	label   string
}

func (t thermostatItem) FilterValue() string {
	return t.label + " " + t.summary.ID
}

func (t thermostatItem) Title() string {
	if t.summary.Heating {
		return t.label + "  " + HeatingStyle.Render(ui.HeatingMarker+" heating")
	}
	return t.label
}

func (t thermostatItem) Description() string {
	return fmt.Sprintf("%s now • target %s • %.0f%% RH • %s",
		ui.FormatCelsius(t.summary.Current),
		ui.FormatCelsius(t.summary.Target),
		t.summary.Humidity,
		t.summary.ID,
	)
}

// Options configures the dashboard
type Options struct {
	Nicknames map[string]string // DSN → label
	Timeout   time.Duration     // per client call; default salus.DefaultTimeout
	Now       func() time.Time
}

// DashboardModel lists the account's thermostats and edits setpoints.
type DashboardModel struct {
	client    Client
	nicknames map[string]string
	timeout   time.Duration
	now       func() time.Time

	// keepStatus holds a setpoint confirmation across the refresh that follows it
	keepStatus bool

	Mode        Mode
	List        list.Model
	Input       textinput.Model
	Spinner     spinner.Model
	Help        help.Model
	Keys        dashboardKeyMap
	EditKeys    editKeyMap
	Editing     salus.DeviceSummary
	Status      string
	StatusLevel ui.ResultType
	LastRefresh time.Time

	Width  int
	Height int
}

// NewDashboardModel creates a dashboard in the loading state
func NewDashboardModel(client Client, opts Options) DashboardModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	input := textinput.New()
	input.Placeholder = "21.5"
	input.CharLimit = 6
	input.Width = 10
	input.Prompt = "°C › "

	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.Foreground(PrimaryColor).BorderForeground(PrimaryColor)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.BorderForeground(PrimaryColor)

	devices := list.New([]list.Item{}, delegate, MinTerminalWidth, 20)
	devices.Title = "Thermostats"
	devices.SetShowStatusBar(false)
	devices.SetShowHelp(false)
	devices.SetFilteringEnabled(true)
	devices.Styles.Title = TitleStyle

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = salus.DefaultTimeout
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return DashboardModel{
		client:    client,
		nicknames: opts.Nicknames,
		timeout:   timeout,
		now:       now,
		Mode:      ModeLoading,
		List:      devices,
		Input:     input,
		Spinner:   s,
		Help:      help.New(),
		Keys: dashboardKeyMap{
			Up: key.NewBinding(
				key.WithKeys("up", "k"),
				key.WithHelp("↑/k", "move up"),
			),
			Down: key.NewBinding(
				key.WithKeys("down", "j"),
				key.WithHelp("↓/j", "move down"),
			),
			Setpoint: key.NewBinding(
				key.WithKeys("s"),
				key.WithHelp("s", "set temperature"),
			),
			Refresh: key.NewBinding(
				key.WithKeys("r"),
				key.WithHelp("r", "refresh"),
			),
			Quit: key.NewBinding(
				key.WithKeys("q"),
				key.WithHelp("q", "quit"),
			),
		},
		EditKeys: editKeyMap{
			Confirm: key.NewBinding(
				key.WithKeys("enter"),
				key.WithHelp("enter", "apply"),
			),
			Cancel: key.NewBinding(
				key.WithKeys("esc"),
				key.WithHelp("esc", "cancel"),
			),
		},
	}
}

// Init starts the first load
func (m DashboardModel) Init() tea.Cmd {
	return tea.Batch(m.Spinner.Tick, m.loadDevices())
}

// loadDevices runs ListDevices off the UI goroutine
func (m DashboardModel) loadDevices() tea.Cmd {
	client, timeout, now := m.client, m.timeout, m.now
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		summaries, err := client.ListDevices(ctx)
		return devicesLoadedMsg{summaries: summaries, err: err, at: now()}
	}
}

// writeSetpoint runs UpdateTemperature off the UI goroutine
func (m DashboardModel) writeSetpoint(id string, value float64) tea.Cmd {
	client, timeout := m.client, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		status, err := client.UpdateTemperature(ctx, id, value)
		return setpointDoneMsg{id: id, value: value, status: status, err: err}
	}
}

// Update handles messages and updates the model
func (m DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.List.SetSize(max(msg.Width-4, MinTerminalWidth-4), max(msg.Height-8, 5))
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch m.Mode {
		case ModeEditing:
			return m.updateEditing(msg)
		case ModeList:
			return m.updateList(msg)
		}
		// Keys are ignored while a call is in flight
		return m, nil

	case devicesLoadedMsg:
		m.Mode = ModeList
		if msg.err != nil {
			m.keepStatus = false
			m.setStatus(ui.ResultFailure, "Refresh failed: "+salus.ShortErrorMessage(msg.err))
			return m, nil
		}
		m.LastRefresh = msg.at
		if !m.keepStatus {
			m.setStatus(ui.ResultSuccess, fmt.Sprintf("%d thermostat(s) loaded", len(msg.summaries)))
		}
		m.keepStatus = false
		cmd := m.List.SetItems(m.items(msg.summaries))
		return m, cmd

	case setpointDoneMsg:
		if msg.err != nil {
			m.Mode = ModeList
			m.setStatus(ui.ResultFailure, "Setpoint failed: "+salus.ShortErrorMessage(msg.err))
			return m, nil
		}
		if msg.status < 200 || msg.status > 299 {
			m.Mode = ModeList
			m.setStatus(ui.ResultWarning, fmt.Sprintf("Salus Connect answered HTTP %d; setpoint may not be applied", msg.status))
			return m, nil
		}
		m.Mode = ModeLoading
		m.keepStatus = true
		m.setStatus(ui.ResultSuccess, fmt.Sprintf("%s set to %s (HTTP %d)",
			m.labelFor(msg.id), ui.FormatCelsius(msg.value), msg.status))
		return m, tea.Batch(m.Spinner.Tick, m.loadDevices())

	case spinner.TickMsg:
		if m.Mode != ModeLoading && m.Mode != ModeSaving {
			return m, nil
		}
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd
	}

	if m.Mode == ModeEditing {
		var cmd tea.Cmd
		m.Input, cmd = m.Input.Update(msg)
		return m, cmd
	}
	var cmd tea.Cmd
	m.List, cmd = m.List.Update(msg)
	return m, cmd
}

// updateList handles keyboard input on the device list
func (m DashboardModel) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// While filtering, every key belongs to the filter input
	if m.List.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.List, cmd = m.List.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.Keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.Keys.Refresh):
		m.Mode = ModeLoading
		return m, tea.Batch(m.Spinner.Tick, m.loadDevices())

	case key.Matches(msg, m.Keys.Setpoint):
		item, ok := m.List.SelectedItem().(thermostatItem)
		if !ok {
			return m, nil
		}
		m.Mode = ModeEditing
		m.Editing = item.summary
		m.Input.SetValue(strconv.FormatFloat(salus.CelsiusFromSetpoint(item.summary.Target), 'f', 1, 64))
		m.Input.CursorEnd()
		cmd := m.Input.Focus()
		return m, cmd
	}

	var cmd tea.Cmd
	m.List, cmd = m.List.Update(msg)
	return m, cmd
}

// updateEditing handles keyboard input in the setpoint prompt
func (m DashboardModel) updateEditing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.EditKeys.Cancel):
		m.Mode = ModeList
		m.Input.Blur()
		return m, nil

	case key.Matches(msg, m.EditKeys.Confirm):
		value, err := ParseCelsius(m.Input.Value())
		if err != nil {
			m.setStatus(ui.ResultFailure, salus.ShortErrorMessage(err))
			return m, nil
		}
		m.Mode = ModeSaving
		m.Input.Blur()
		m.setStatus(ui.ResultWarning, "Writing setpoint...")
		return m, tea.Batch(m.Spinner.Tick, m.writeSetpoint(m.Editing.ID, value))
	}

	var cmd tea.Cmd
	m.Input, cmd = m.Input.Update(msg)
	return m, cmd
}

// ParseCelsius reads a temperature typed by the user and returns hundredths.
func ParseCelsius(text string) (float64, error) {
	text = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), "°C"))
	celsius, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, salus.NewValidationError(fmt.Sprintf("%q is not a temperature", text))
	}
	value := salus.SetpointFromCelsius(celsius)
	if err := salus.ValidateSetpoint(value); err != nil {
		return 0, salus.NewValidationError(fmt.Sprintf("temperature must be between %.1f°C and %.1f°C",
			salus.CelsiusFromSetpoint(salus.MinSetpoint), salus.CelsiusFromSetpoint(salus.MaxSetpoint)))
	}
	return value, nil
}

func (m *DashboardModel) setStatus(level ui.ResultType, text string) {
	m.StatusLevel = level
	m.Status = text
}

func (m DashboardModel) items(summaries []salus.DeviceSummary) []list.Item {
	items := make([]list.Item, len(summaries))
	for i, s := range summaries {
		items[i] = thermostatItem{summary: s, label: ui.DisplayName(s, m.nicknames)}
	}
	return items
}

func (m DashboardModel) labelFor(id string) string {
	if m.Editing.ID == id {
		return ui.DisplayName(m.Editing, m.nicknames)
	}
	return ui.DisplayName(salus.DeviceSummary{ID: id}, m.nicknames)
}

// View renders the current screen
func (m DashboardModel) View() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render(AppName))
	b.WriteString(" ")
	b.WriteString(SubtitleStyle.Render(AppVersion()))
	b.WriteString("\n\n")

	switch m.Mode {
	case ModeLoading:
		if len(m.List.Items()) == 0 {
			b.WriteString(m.Spinner.View() + " Loading thermostats...")
			b.WriteString("\n")
			break
		}
		b.WriteString(m.List.View())
		b.WriteString("\n" + m.Spinner.View() + " Refreshing...")

	case ModeList:
		if len(m.List.Items()) == 0 {
			b.WriteString(SubtitleStyle.Render("No thermostats found on this account."))
			b.WriteString("\n")
		} else {
			b.WriteString(m.List.View())
		}

	case ModeEditing, ModeSaving:
		prompt := fmt.Sprintf("New setpoint for %s\nCurrent %s • target %s\n\n%s",
			ui.DisplayName(m.Editing, m.nicknames),
			ui.FormatCelsius(m.Editing.Current),
			ui.FormatCelsius(m.Editing.Target),
			m.Input.View(),
		)
		if m.Mode == ModeSaving {
			prompt += "\n\n" + m.Spinner.View() + " Writing..."
		}
		b.WriteString(PromptBoxStyle.Render(prompt))
	}

	if status := m.renderStatus(); status != "" {
		b.WriteString("\n")
		b.WriteString(status)
	}

	b.WriteString("\n")
	if m.Mode == ModeEditing {
		b.WriteString(HelpStyle.Render(m.Help.View(m.EditKeys)))
	} else {
		b.WriteString(HelpStyle.Render(m.Help.View(m.Keys)))
	}
	return lipgloss.NewStyle().Margin(1, 2).Render(b.String())
}

func (m DashboardModel) renderStatus() string {
	if m.Status == "" {
		return ""
	}
	text := m.Status
	if !m.LastRefresh.IsZero() && m.StatusLevel == ui.ResultSuccess {
		text += SubtitleStyle.Render(" • updated " + m.LastRefresh.Format("15:04:05"))
	}
	switch m.StatusLevel {
	case ui.ResultFailure:
		return StatusErrorStyle.Render(text)
	case ui.ResultWarning:
		return StatusWarningStyle.Render(text)
	default:
		return StatusStyle.Render(text)
	}
}

// Run starts the dashboard full-screen and blocks until the user quits.
func Run(ctx context.Context, client Client, opts Options) error {
	p := tea.NewProgram(NewDashboardModel(client, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
