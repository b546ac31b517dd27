// Package ui provides terminal UI components for the sockserve CLI.
//
// This package uses Bubble Tea and Lipgloss to render terminal output.
// Most components follow a "print once" pattern through Printer:
//
//   - Header: command banner showing the operation and its parameters
//   - Result: success, warning or failure boxes with details
//
// The one interactive component is the dashboard, a Bubble Tea program
// that polls a StatsSource and shows a row per server with its state,
// a slot-utilization meter and its connection counters.
//
// Example:
//
//	header := ui.NewHeader("sockserve", "sockserve serve", map[string]string{
//	    "Config": path,
//	})
//	err := ui.RunDashboard(ctx, supervisor, header, supervisor.Done())
//
// # Logging Integration
//
// The dashboard takes over the terminal, so the serve command keeps zap
// quiet while it runs unless SOCKSERVE_LOG_LEVEL is set explicitly.
package ui
