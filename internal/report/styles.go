package report

import "github.com/charmbracelet/lipgloss"

// styles holds the lipgloss styles of one renderer. Plain rendering uses
// zero styles so output carries no escape codes.
type styles struct {
	title   lipgloss.Style
	section lipgloss.Style
	success lipgloss.Style
	failure lipgloss.Style
	muted   lipgloss.Style
	ignored lipgloss.Style
}

func newStyles(color bool) styles {
	if !color {
		plain := lipgloss.NewStyle()
		return styles{title: plain, section: plain, success: plain, failure: plain, muted: plain, ignored: plain}
	}
	return styles{
		title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")),
		section: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		success: lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		failure: lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		ignored: lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true),
	}
}
