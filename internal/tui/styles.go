package tui

import "github.com/charmbracelet/lipgloss"

// Theme groups the styles used by the CLI. The zero value renders plain text.
type Theme struct {
	Header lipgloss.Style
	OK     lipgloss.Style
	Warn   lipgloss.Style
	Fail   lipgloss.Style
	Muted  lipgloss.Style
	Border lipgloss.Style
}

// NewTheme returns the colored theme, or a plain one when color is false.
func NewTheme(color bool) Theme {
	if !color {
		plain := lipgloss.NewStyle()
		return Theme{Header: plain.Bold(true), OK: plain, Warn: plain, Fail: plain, Muted: plain, Border: plain}
	}
	return Theme{
		Header: lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary),
		OK:     lipgloss.NewStyle().Foreground(ColorSuccess),
		Warn:   lipgloss.NewStyle().Foreground(ColorWarning),
		Fail:   lipgloss.NewStyle().Foreground(ColorError).Bold(true),
		Muted:  lipgloss.NewStyle().Foreground(ColorTextMuted),
		Border: lipgloss.NewStyle().Foreground(ColorBorder),
	}
}

// Status is the outcome of a single check line.
type Status int

const (
	StatusOK Status = iota
	StatusWarn
	StatusFail
)

// Check renders one "  icon label" status line.
func (t Theme) Check(s Status, label string) string {
	switch s {
	case StatusOK:
		return "  " + t.OK.Render("✓") + " " + label
	case StatusWarn:
		return "  " + t.Warn.Render("○") + " " + label
	default:
		return "  " + t.Fail.Render("✗") + " " + label
	}
}

// Field renders a "key: value" line with a muted key.
func (t Theme) Field(key, value string) string {
	return "    " + t.Muted.Render(key+":") + " " + value
}
