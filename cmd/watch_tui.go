// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Stanislav Starcha, egg17

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/egg17/powerboxctl/internal/station"
	"github.com/egg17/powerboxctl/pkg/powerbox"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

const (
	watchRefreshInterval = 500 * time.Millisecond
	watchMaxEvents       = 100
	watchLogTail         = 6
	watchEventTail       = 5
)

var sparklineRunes = []rune("▁▂▃▄▅▆▇█")

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// watchEvent is one entry in the dashboard event log.
type watchEvent struct {
	timestamp time.Time
	message   string
	isError   bool
}

// watchModel is the Bubble Tea model for the dashboard.
type watchModel struct {
	connMgr  *watchConnManager
	sess     *station.Session
	connInfo string

	// Refreshed from the session on every tick
	snap   station.Snapshot
	levels []powerbox.OptFloat
	logs   []station.LogMessage

	events []watchEvent

	levelBar progress.Model

	// UI state
	width          int
	height         int
	quitting       bool
	connectionLost bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type watchTickMsg time.Time

type watchEventMsg struct {
	text    string
	isError bool
}

type connectionLostMsg struct{}

type reconnectedMsg struct {
	connInfo string
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialWatchModel(connMgr *watchConnManager, sess *station.Session, connInfo string) watchModel {
	bar := progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage())
	bar.Width = 40

	return watchModel{
		connMgr:  connMgr,
		sess:     sess,
		connInfo: connInfo,
		events:   make([]watchEvent, 0),
		levelBar: bar,
		width:    80,
		height:   24,
	}
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m watchModel) Init() tea.Cmd {
	return watchTickCmd()
}

func watchTickCmd() tea.Cmd {
	return tea.Tick(watchRefreshInterval, func(t time.Time) tea.Msg {
		return watchTickMsg(t)
	})
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.levelBar.Width = m.width - 20
		if m.levelBar.Width < 20 {
			m.levelBar.Width = 20
		}

	case watchTickMsg:
		m.snap = m.sess.Snapshot()
		m.levels = m.sess.History(powerbox.ChartBMSLevel)
		m.logs = m.sess.Logs()
		return m, watchTickCmd()

	case watchEventMsg:
		m.addEvent(msg.text, msg.isError)

	case connectionLostMsg:
		m.connectionLost = true
		m.addEvent("Connection lost - reconnecting...", true)

	case reconnectedMsg:
		m.connectionLost = false
		m.connInfo = msg.connInfo
		m.addEvent("Reconnected", false)
	}

	return m, nil
}

func (m *watchModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "p":
		if m.snap.PSU.Active.Valid && m.snap.PSU.Active.Value {
			m.sendCommand(powerbox.NewPSUDisableCommand(), "PSU disable")
		} else {
			m.sendCommand(powerbox.NewPSUEnableCommand(), "PSU enable")
		}

	case "i":
		if m.snap.Inverter.Active.Valid && m.snap.Inverter.Active.Value {
			m.sendCommand(powerbox.NewInverterDisableCommand(), "Inverter disable")
		} else {
			m.sendCommand(powerbox.NewInverterEnableCommand(), "Inverter enable")
		}

	case "a":
		if m.snap.ATS.Active.Valid && m.snap.ATS.Active.Value {
			m.sendCommand(powerbox.NewATSDisableCommand(), "ATS disable")
		} else {
			m.sendCommand(powerbox.NewATSEnableCommand(), "ATS enable")
		}

	case "[":
		if level, ok := m.adjustedCurrentLevel(-1); ok {
			m.sendCommand(powerbox.NewPSUCurrentLimitCommand(level),
				fmt.Sprintf("PSU current limit %d", level))
		}

	case "]":
		if level, ok := m.adjustedCurrentLevel(1); ok {
			m.sendCommand(powerbox.NewPSUCurrentLimitCommand(level),
				fmt.Sprintf("PSU current limit %d", level))
		}

	case "h":
		m.sendCommand(powerbox.NewPullHistoryCommand(), "History pull")
	}

	return m, nil
}

// adjustedCurrentLevel returns the current limit level moved by delta,
// clamped at zero. Unknown level starts from zero.
func (m *watchModel) adjustedCurrentLevel(delta int) (uint8, bool) {
	level := 0
	if m.snap.PSU.CurrentChannel.Valid {
		level = m.snap.PSU.CurrentChannel.Value
	}
	level += delta
	if level < 0 || level > 255 {
		return 0, false
	}
	return uint8(level), true
}

func (m *watchModel) sendCommand(payload []byte, label string) {
	if m.connectionLost {
		m.addEvent(fmt.Sprintf("Cannot send %s: connection lost", label), true)
		return
	}
	if err := m.connMgr.send(payload); err != nil {
		m.addEvent(fmt.Sprintf("Failed to send %s: %v", label, err), true)
		return
	}
	m.addEvent(fmt.Sprintf("Sent %s", label), false)
}

func (m *watchModel) addEvent(message string, isError bool) {
	m.events = append(m.events, watchEvent{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})
	if len(m.events) > watchMaxEvents {
		m.events = m.events[len(m.events)-watchMaxEvents:]
	}
}

//////////////////////////////////////////////////////////////
// View
//////////////////////////////////////////////////////////////

func (m watchModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	// Header
	s.WriteString(titleStyle.Render("POWERBOX WATCH"))
	s.WriteString(" ")
	connStatus := m.connInfo
	if m.connectionLost {
		connStatus = warningStyle.Render("RECONNECTING...")
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | q=quit p=psu i=inverter a=ats [=limit- ]=limit+ h=history", connStatus)))
	s.WriteString("\n")

	// Device identification line
	if m.snap.Manufacturer != "" || m.snap.Model != "" {
		s.WriteString(fmt.Sprintf(" %s %s",
			labelStyle.Render("Device:"),
			valueStyle.Render(strings.TrimSpace(fmt.Sprintf("%s %s %s",
				m.snap.Manufacturer, m.snap.Model, m.snap.Firmware)))))
	}
	s.WriteString("\n\n")

	// Subsystem panels
	panelWidth := (m.width - 12) / 4
	if panelWidth < 22 {
		panelWidth = 22
	}
	panels := lipgloss.JoinHorizontal(lipgloss.Top,
		boxStyle.Width(panelWidth).Render(m.renderBatteryPanel(labelStyle, valueStyle, errorStyle)),
		boxStyle.Width(panelWidth).Render(m.renderChargerPanel(labelStyle, valueStyle, errorStyle)),
		boxStyle.Width(panelWidth).Render(m.renderInverterPanel(labelStyle, valueStyle, errorStyle)),
		boxStyle.Width(panelWidth).Render(m.renderSystemPanel(labelStyle, valueStyle, errorStyle)),
	)
	s.WriteString(panels)
	s.WriteString("\n")

	// Charge level sparkline
	s.WriteString(boxStyle.Width(m.width - 4).Render(m.renderSparkline(labelStyle, valueStyle)))
	s.WriteString("\n")

	// Log tail
	s.WriteString(boxStyle.Width(m.width - 4).Render(m.renderLogTail(labelStyle, headerStyle, warningStyle, errorStyle)))
	s.WriteString("\n")

	// Event log
	s.WriteString(boxStyle.Width(m.width - 4).Render(m.renderEvents(labelStyle, headerStyle, warningStyle, errorStyle)))

	return s.String()
}

func (m watchModel) renderBatteryPanel(labelStyle, valueStyle, errorStyle lipgloss.Style) string {
	b := m.snap.BMS
	var s strings.Builder
	s.WriteString(labelStyle.Render("BATTERY"))
	s.WriteString("\n")
	s.WriteString(fmt.Sprintf("Level:   %s\n", valueStyle.Render(optIntStr(b.Level, "%"))))
	s.WriteString(fmt.Sprintf("Voltage: %s\n", valueStyle.Render(optFloatStr(b.Voltage, " V"))))
	s.WriteString(fmt.Sprintf("Current: %s\n", valueStyle.Render(optIntStr(b.Current, " A"))))
	s.WriteString(fmt.Sprintf("Temp:    %s\n", valueStyle.Render(optIntStr(b.MOSTemp, " °C"))))

	cells := make([]string, len(b.CellVoltage))
	for i, cv := range b.CellVoltage {
		cells[i] = optFloatStr(cv, "")
	}
	s.WriteString(fmt.Sprintf("Cells:   %s\n", valueStyle.Render(strings.Join(cells, " "))))

	charge := boolGlyph(b.AllowCharge)
	discharge := boolGlyph(b.AllowDischarge)
	s.WriteString(fmt.Sprintf("Chg/Dis: %s/%s\n", charge, discharge))

	if b.ExternalErrors != 0 {
		s.WriteString(errorStyle.Render(powerbox.FormatBMSErrors(b.ExternalErrors)))
		s.WriteString("\n")
	}
	return s.String()
}

func (m watchModel) renderChargerPanel(labelStyle, valueStyle, errorStyle lipgloss.Style) string {
	p := m.snap.PSU
	var s strings.Builder
	s.WriteString(labelStyle.Render("CHARGER"))
	s.WriteString("\n")
	s.WriteString(fmt.Sprintf("Active:  %s\n", boolGlyph(p.Active)))
	s.WriteString(fmt.Sprintf("Power:   %s / %s\n",
		valueStyle.Render(optIntStr(p.Power1, " W")), valueStyle.Render(optIntStr(p.Power2, " W"))))
	s.WriteString(fmt.Sprintf("AC in:   %s\n", valueStyle.Render(optIntStr(p.ACVoltage, " V"))))
	s.WriteString(fmt.Sprintf("Fan:     %s\n", valueStyle.Render(optIntStr(p.FanRPM, " RPM"))))
	s.WriteString(fmt.Sprintf("Temps:   %s / %s\n",
		valueStyle.Render(optIntStr(p.Temp1, "")), valueStyle.Render(optIntStr(p.Temp2, " °C"))))
	s.WriteString(fmt.Sprintf("Limit:   %s\n", valueStyle.Render(optIntStr(p.CurrentChannel, ""))))
	if p.ExternalErrors != 0 || p.InternalErrors != 0 {
		s.WriteString(errorStyle.Render(fmt.Sprintf("Errors: 0x%02X/0x%02X", p.ExternalErrors, p.InternalErrors)))
		s.WriteString("\n")
	}
	return s.String()
}

func (m watchModel) renderInverterPanel(labelStyle, valueStyle, errorStyle lipgloss.Style) string {
	inv := m.snap.Inverter
	var s strings.Builder
	s.WriteString(labelStyle.Render("INVERTER"))
	s.WriteString("\n")
	s.WriteString(fmt.Sprintf("Active:  %s\n", boolGlyph(inv.Active)))
	s.WriteString(fmt.Sprintf("Power:   %s\n", valueStyle.Render(optIntStr(inv.Power, " W"))))
	s.WriteString(fmt.Sprintf("AC out:  %s\n", valueStyle.Render(optIntStr(inv.ACVoltage, " V"))))
	s.WriteString(fmt.Sprintf("Fan:     %s\n", valueStyle.Render(optIntStr(inv.FanRPM, " RPM"))))
	s.WriteString(fmt.Sprintf("Temp:    %s\n", valueStyle.Render(optIntStr(inv.Temp, " °C"))))
	if inv.ExternalErrors != 0 || inv.InternalErrors != 0 {
		s.WriteString(errorStyle.Render(fmt.Sprintf("Errors: 0x%02X/0x%02X", inv.ExternalErrors, inv.InternalErrors)))
		s.WriteString("\n")
	}
	return s.String()
}

func (m watchModel) renderSystemPanel(labelStyle, valueStyle, errorStyle lipgloss.Style) string {
	mcu := m.snap.MCU
	ats := m.snap.ATS
	var s strings.Builder
	s.WriteString(labelStyle.Render("SYSTEM"))
	s.WriteString("\n")
	version := "--"
	if mcu.Version.Valid {
		version = mcu.Version.Value.String()
	}
	s.WriteString(fmt.Sprintf("FW:      %s\n", valueStyle.Render(version)))
	uptime := "--"
	if mcu.Uptime.Valid {
		uptime = formatWatchUptime(mcu.Uptime.Value)
	}
	s.WriteString(fmt.Sprintf("Uptime:  %s\n", valueStyle.Render(uptime)))
	s.WriteString(fmt.Sprintf("Temp:    %s\n", valueStyle.Render(optIntStr(mcu.Temp, " °C"))))
	s.WriteString(fmt.Sprintf("Memory:  %s\n", valueStyle.Render(optIntStr(mcu.MemoryUsed, "%"))))
	s.WriteString(fmt.Sprintf("ATS:     %s\n", boolGlyph(ats.Active)))
	if mcu.InternalErrors != 0 || ats.InternalErrors != 0 {
		s.WriteString(errorStyle.Render(fmt.Sprintf("Errors: 0x%02X/0x%02X", mcu.InternalErrors, ats.InternalErrors)))
		s.WriteString("\n")
	}
	return s.String()
}

// renderSparkline draws the charge level history as a one-line bar chart,
// newest sample rightmost. Absent slots render as spaces.
func (m watchModel) renderSparkline(labelStyle, valueStyle lipgloss.Style) string {
	var s strings.Builder
	s.WriteString(labelStyle.Render("CHARGE LEVEL"))

	width := m.width - 10
	if width < 20 {
		width = 20
	}
	samples := m.levels
	if len(samples) > width {
		samples = samples[len(samples)-width:]
	}

	line := make([]rune, 0, len(samples))
	latest := ""
	for _, v := range samples {
		if !v.Valid {
			line = append(line, ' ')
			continue
		}
		idx := int(v.Value * float64(len(sparklineRunes)) / 101.0)
		if idx < 0 {
			idx = 0
		}
		if idx >= len(sparklineRunes) {
			idx = len(sparklineRunes) - 1
		}
		line = append(line, sparklineRunes[idx])
		latest = fmt.Sprintf("%.0f%%", v.Value)
	}

	if latest != "" {
		s.WriteString(" ")
		s.WriteString(valueStyle.Render(latest))
	}
	s.WriteString("\n")
	if m.snap.BMS.Level.Valid {
		s.WriteString(m.levelBar.ViewAs(float64(m.snap.BMS.Level.Value) / 100.0))
		s.WriteString("\n")
	}
	s.WriteString(string(line))
	return s.String()
}

func (m watchModel) renderLogTail(labelStyle, headerStyle, warningStyle, errorStyle lipgloss.Style) string {
	var s strings.Builder
	s.WriteString(labelStyle.Render("STATION LOG"))
	s.WriteString("\n")

	if len(m.logs) == 0 {
		s.WriteString(headerStyle.Render("  (no log messages)"))
		return s.String()
	}

	start := len(m.logs) - watchLogTail
	if start < 0 {
		start = 0
	}
	for _, msg := range m.logs[start:] {
		sevStyle := headerStyle
		switch msg.Severity {
		case powerbox.LogWarning:
			sevStyle = warningStyle
		case powerbox.LogError, powerbox.LogCritical:
			sevStyle = errorStyle
		}
		s.WriteString(fmt.Sprintf("%s %s %s\n",
			headerStyle.Render(msg.At.Format("15:04:05")),
			sevStyle.Render(fmt.Sprintf("%-7s", powerbox.FormatLogSeverity(msg.Severity))),
			msg.Text))
	}
	return strings.TrimRight(s.String(), "\n")
}

func (m watchModel) renderEvents(labelStyle, headerStyle, warningStyle, errorStyle lipgloss.Style) string {
	var s strings.Builder
	s.WriteString(labelStyle.Render("EVENTS"))
	s.WriteString("\n")

	if len(m.events) == 0 {
		s.WriteString(headerStyle.Render("  (no events yet)"))
		return s.String()
	}

	start := len(m.events) - watchEventTail
	if start < 0 {
		start = 0
	}
	for _, entry := range m.events[start:] {
		icon := "i"
		style := warningStyle
		if entry.isError {
			icon = "x"
			style = errorStyle
		}
		s.WriteString(fmt.Sprintf("%s %s %s\n",
			headerStyle.Render(entry.timestamp.Format("15:04:05.000")),
			style.Render(icon),
			entry.message))
	}
	return strings.TrimRight(s.String(), "\n")
}

//////////////////////////////////////////////////////////////
// Helpers
//////////////////////////////////////////////////////////////

func optIntStr(v powerbox.OptInt, suffix string) string {
	if !v.Valid {
		return "--"
	}
	return fmt.Sprintf("%d%s", v.Value, suffix)
}

func optFloatStr(v powerbox.OptFloat, suffix string) string {
	if !v.Valid {
		return "--"
	}
	return fmt.Sprintf("%.2f%s", v.Value, suffix)
}

func boolGlyph(v powerbox.OptBool) string {
	switch {
	case !v.Valid:
		return "--"
	case v.Value:
		return "ON"
	default:
		return "OFF"
	}
}

// formatWatchUptime renders seconds-since-boot compactly.
func formatWatchUptime(seconds uint32) string {
	d := time.Duration(seconds) * time.Second
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	secs := int(d.Seconds()) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, secs)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, secs)
	default:
		return fmt.Sprintf("%ds", secs)
	}
}
