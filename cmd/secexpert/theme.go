package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeanpaul/secexpert/internal/memory"
)

var (
	Red       = lipgloss.Color("#FF5F56")
	Amber     = lipgloss.Color("#FFB000")
	Green     = lipgloss.Color("#00C832")
	Cyan      = lipgloss.Color("#00D4AA")
	LightGray = lipgloss.Color("#aaaaaa")
	White     = lipgloss.Color("#e0e0e0")

	BannerStyle = lipgloss.NewStyle().
			Foreground(Cyan).
			Bold(true)

	LabelStyle = lipgloss.NewStyle().
			Foreground(White).
			Bold(true)

	SectionStyle = lipgloss.NewStyle().
			Foreground(Amber).
			Bold(true).
			Underline(true)

	OKStyle = lipgloss.NewStyle().
		Foreground(Green).
		Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(Red).
			Bold(true)

	HelpStyle = lipgloss.NewStyle().
			Foreground(LightGray)

	QuestionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Cyan).
			Padding(0, 1)

	riskStyles = map[string]lipgloss.Style{
		"high":   lipgloss.NewStyle().Foreground(Red).Bold(true),
		"medium": lipgloss.NewStyle().Foreground(Amber),
		"low":    lipgloss.NewStyle().Foreground(Green),
	}
)

func riskStyle(level string) lipgloss.Style {
	if s, ok := riskStyles[strings.ToLower(level)]; ok {
		return s
	}
	return HelpStyle
}

// renderMarkdown falls back to the raw text when glamour cannot render.
func renderMarkdown(md string, width int) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}

// renderReport prints each report section under its own header.
func renderReport(report string, width int) string {
	var b strings.Builder
	for _, s := range memory.Sections(report) {
		fmt.Fprintf(&b, "\n%s\n", SectionStyle.Render(s.Title))
		b.WriteString(renderMarkdown(s.Body, width))
	}
	return b.String()
}
