package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muurk/sockserve/internal/engine"
)

// DefaultRefreshInterval is how often the dashboard polls for statistics.
const DefaultRefreshInterval = 500 * time.Millisecond

// StatsSource supplies the rows the dashboard shows.
type StatsSource interface {
	Snapshot() []engine.Stats
}

type tickMsg time.Time

type allStoppedMsg struct{}

// DashboardModel is a Bubble Tea model showing live per-server statistics.
// It quits on q, esc or ctrl+c, and when the done channel closes.
type DashboardModel struct {
	source   StatsSource
	header   *Header
	done     <-chan struct{}
	interval time.Duration

	stats    []engine.Stats
	started  time.Time
	spinner  spinner.Model
	meter    Meter
	width    int
	quitting bool
}

// NewDashboard creates a dashboard for source. done may be nil.
func NewDashboard(source StatsSource, header *Header, done <-chan struct{}) DashboardModel {
	s := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(PrimaryColor)),
	)
	return DashboardModel{
		source:   source,
		header:   header,
		done:     done,
		interval: DefaultRefreshInterval,
		stats:    source.Snapshot(),
		started:  time.Now(),
		spinner:  s,
		meter:    NewMeter(16),
		width:    header.Width,
	}
}

func (m DashboardModel) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m DashboardModel) waitDone() tea.Cmd {
	if m.done == nil {
		return nil
	}
	done := m.done
	return func() tea.Msg {
		<-done
		return allStoppedMsg{}
	}
}

// Init implements tea.Model
func (m DashboardModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.tick(), m.waitDone())
}

// Update implements tea.Model
func (m DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = clampWidth(msg.Width)
		m.header.SetWidth(m.width)

	case tickMsg:
		m.stats = m.source.Snapshot()
		return m, m.tick()

	case allStoppedMsg:
		m.stats = m.source.Snapshot()
		m.quitting = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View implements tea.Model
func (m DashboardModel) View() string {
	var b strings.Builder

	b.WriteString(m.header.Render())
	b.WriteString("\n\n")

	b.WriteString(ColumnHeaderStyle.Render(fmt.Sprintf("  %-14s %-14s %-22s %-24s %s",
		"SERVER", "STATE", "ADDRESS", "CONNECTIONS", "ACCEPTED / SERVED / FAILED / DROPPED / BUSY")))
	b.WriteString("\n")

	for _, st := range m.stats {
		b.WriteString(m.renderRow(st))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.quitting {
		b.WriteString(FooterStyle.Render("stopping..."))
	} else {
		uptime := time.Since(m.started).Truncate(time.Second)
		b.WriteString(m.spinner.View())
		b.WriteString(FooterStyle.Render(fmt.Sprintf("up %s · press q to stop", uptime)))
	}
	b.WriteString("\n")

	return b.String()
}

func (m DashboardModel) renderRow(st engine.Stats) string {
	state := StateStyle(st.State).Render(fmt.Sprintf("%-14s", st.State))
	counters := fmt.Sprintf("%d / %d / %d / %d / %d",
		st.Accepted, st.Served, st.Failed, st.Rejected, st.BusyEpisodes)

	return fmt.Sprintf("  %-14s %s %-22s %s  %s",
		truncate(st.Name, 14),
		state,
		truncate(st.Addr, 22),
		m.meter.Render(st.Active, st.MaxConnections),
		counters,
	)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

// RunDashboard runs the dashboard until the user quits, ctx ends, or
// done closes.
func RunDashboard(ctx context.Context, source StatsSource, header *Header, done <-chan struct{}) error {
	p := tea.NewProgram(NewDashboard(source, header, done), tea.WithContext(ctx), tea.WithAltScreen())
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
