package main

import (
	"github.com/charmbracelet/lipgloss"
)

// Palette
var (
	primary = lipgloss.Color("#8BC34A")
	accent  = lipgloss.Color("#2196F3")
	warning = lipgloss.Color("#FFC107")
	muted   = lipgloss.Color("#6b7785")
	border  = lipgloss.Color("#2a3850")
)

// styles holds the terminal styles used by the commands.
var styles = struct {
	Title   lipgloss.Style
	Heading lipgloss.Style
	Muted   lipgloss.Style
	Warning lipgloss.Style
	Header  lipgloss.Style
	Cell    lipgloss.Style
	Number  lipgloss.Style
	Border  lipgloss.Style
}{
	Title:   lipgloss.NewStyle().Bold(true).Foreground(primary),
	Heading: lipgloss.NewStyle().Bold(true).Foreground(accent).MarginTop(1),
	Muted:   lipgloss.NewStyle().Foreground(muted),
	Warning: lipgloss.NewStyle().Foreground(warning),
	Header:  lipgloss.NewStyle().Bold(true).Foreground(primary).Padding(0, 1),
	Cell:    lipgloss.NewStyle().Padding(0, 1),
	Number:  lipgloss.NewStyle().Padding(0, 1).Align(lipgloss.Right),
	Border:  lipgloss.NewStyle().Foreground(border),
}
