package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
)

// Meter renders connection-slot utilization as a gradient bar.
type Meter struct {
	bar progress.Model
}

// NewMeter creates a meter of the given bar width.
func NewMeter(width int) Meter {
	if width < 5 {
		width = 5
	}
	return Meter{
		bar: progress.New(
			progress.WithDefaultGradient(),
			progress.WithWidth(width),
			progress.WithoutPercentage(),
		),
	}
}

// Fraction returns active/max clamped to [0, 1].
func Fraction(active, max int) float64 {
	if max <= 0 || active <= 0 {
		return 0
	}
	if active >= max {
		return 1
	}
	return float64(active) / float64(max)
}

// Render returns the bar followed by "active/max".
func (m Meter) Render(active, max int) string {
	count := fmt.Sprintf("%d/%d", active, max)
	style := lipgloss.NewStyle().Foreground(TextColor)
	if max > 0 && active >= max {
		style = style.Foreground(WarningColor)
	}
	return m.bar.ViewAs(Fraction(active, max)) + " " + style.Render(count)
}
