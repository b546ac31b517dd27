package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/muurk/sockserve/internal/engine"
)

type fakeSource struct {
	calls int
	stats []engine.Stats
}

func (f *fakeSource) Snapshot() []engine.Stats {
	f.calls++
	return f.stats
}

func newTestDashboard(src *fakeSource, done <-chan struct{}) DashboardModel {
	h := NewHeader("sockserve", "sockserve serve", nil).SetWidth(100)
	return NewDashboard(src, h, done)
}

func TestFraction(t *testing.T) {
	tests := []struct {
		active, max int
		want        float64
	}{
		{0, 10, 0},
		{5, 10, 0.5},
		{10, 10, 1},
		{12, 10, 1},
		{3, 0, 0},
		{-1, 4, 0},
	}

	for _, tt := range tests {
		if got := Fraction(tt.active, tt.max); got != tt.want {
			t.Errorf("Fraction(%d, %d) = %v, want %v", tt.active, tt.max, got, tt.want)
		}
	}
}

func TestMeter_Render(t *testing.T) {
	out := NewMeter(10).Render(2, 3)
	if !strings.Contains(out, "2/3") {
		t.Errorf("Render() = %q, want it to contain 2/3", out)
	}
}

func TestDashboard_TickRefreshesStats(t *testing.T) {
	src := &fakeSource{}
	m := newTestDashboard(src, nil)
	initial := src.calls

	src.stats = []engine.Stats{
		{Name: "echo", Addr: "127.0.0.1:7007", State: engine.StateReady, Active: 1, MaxConnections: 10, Accepted: 4},
		{Name: "chargen", Addr: "127.0.0.1:7019", State: engine.StateBusy, Active: 2, MaxConnections: 2},
	}

	next, cmd := m.Update(tickMsg{})
	if cmd == nil {
		t.Error("tick should schedule the next tick")
	}
	if src.calls != initial+1 {
		t.Errorf("Snapshot() called %d times, want %d", src.calls, initial+1)
	}

	view := next.View()
	for _, want := range []string{"echo", "chargen", "ready", "busy", "127.0.0.1:7007", "2/2", "press q to stop"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q", want)
		}
	}
}

func TestDashboard_QuitKeys(t *testing.T) {
	for _, key := range []tea.KeyMsg{
		{Type: tea.KeyRunes, Runes: []rune("q")},
		{Type: tea.KeyEsc},
		{Type: tea.KeyCtrlC},
	} {
		m := newTestDashboard(&fakeSource{}, nil)
		next, cmd := m.Update(key)
		if cmd == nil {
			t.Fatalf("%s: no command returned", key)
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Errorf("%s: command is not tea.Quit", key)
		}
		if !strings.Contains(next.View(), "stopping") {
			t.Errorf("%s: view should show stopping", key)
		}
	}
}

func TestDashboard_QuitsWhenAllStopped(t *testing.T) {
	done := make(chan struct{})
	m := newTestDashboard(&fakeSource{}, done)

	close(done)
	msg := m.waitDone()()
	if _, ok := msg.(allStoppedMsg); !ok {
		t.Fatalf("waitDone() produced %T, want allStoppedMsg", msg)
	}

	_, cmd := m.Update(msg)
	if cmd == nil {
		t.Fatal("allStoppedMsg should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("command is not tea.Quit")
	}
}

func TestDashboard_WindowResize(t *testing.T) {
	m := newTestDashboard(&fakeSource{}, nil)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 20, Height: 10})
	if got := next.(DashboardModel).width; got != MinTerminalWidth {
		t.Errorf("width = %d, want clamp to %d", got, MinTerminalWidth)
	}
}

func TestHeader_ParamsSorted(t *testing.T) {
	h := NewHeader("sockserve", "sockserve serve", map[string]string{
		"Servers": "3",
		"Config":  "/tmp/config.yaml",
	}).SetWidth(80)

	out := h.Render()
	ci := strings.Index(out, "Config:")
	si := strings.Index(out, "Servers:")
	if ci < 0 || si < 0 || ci > si {
		t.Errorf("params not rendered in key order:\n%s", out)
	}
	if !strings.Contains(out, "SOCKSERVE") {
		t.Error("title should be upper-cased")
	}
}

func TestResult_Render(t *testing.T) {
	fail := NewFailureResult("Server failed to start", errors.New("address already in use"), []string{"Pick another port"}).
		SetWidth(80).Render()
	for _, want := range []string{"FAILED", "address already in use", "Troubleshooting:", "Pick another port"} {
		if !strings.Contains(fail, want) {
			t.Errorf("failure box missing %q", want)
		}
	}

	ok := NewSuccessResult("Configuration written", nil).AddDetail("Path", "/tmp/x.yaml").SetWidth(80).Render()
	if !strings.Contains(ok, "SUCCESS") || !strings.Contains(ok, "/tmp/x.yaml") {
		t.Errorf("success box = %q", ok)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate() = %q, want short", got)
	}
	if got := truncate("a-very-long-server-name", 8); got != "a-very-…" {
		t.Errorf("truncate() = %q, want a-very-…", got)
	}
}

func TestPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintHeader("sockserve", "sockserve scan", map[string]string{"Timeout": "5s"})
	p.Linef("%d. %s", 1, "echo (echo over tcp) at 10.0.0.2:7007")
	p.Blank()
	p.PrintWarning("No servers found", map[string]string{"Hint": "use --advertise"})
	p.PrintError("Scan failed", errors.New("multicast disabled"), []string{"Allow multicast"})

	out := buf.String()
	for _, want := range []string{
		"SOCKSERVE", "Timeout:", "1. echo (echo over tcp) at 10.0.0.2:7007\n\n",
		"WARNING", "use --advertise", "FAILED", "multicast disabled", "Allow multicast",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
