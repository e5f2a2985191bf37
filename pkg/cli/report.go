package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme defines the color scheme for styled reports.
type Theme struct {
	Primary lipgloss.Color // accent color for titles and labels
	Dim     lipgloss.Color // dimmed color for secondary text
}

// DefaultTheme is the default teal theme.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00d7af"),
	Dim:     lipgloss.Color("#6e7681"),
}

// Styles holds the lipgloss styles derived from a theme.
type Styles struct {
	Title  lipgloss.Style
	Label  lipgloss.Style
	Value  lipgloss.Style
	Dim    lipgloss.Style
	Border lipgloss.Style
}

// NewStyles creates styles from a theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Title:  lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Label:  lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Value:  lipgloss.NewStyle(),
		Dim:    lipgloss.NewStyle().Foreground(t.Dim),
		Border: lipgloss.NewStyle().Foreground(t.Primary),
	}
}

// Row is one label/value line in a report section.
type Row struct {
	Label string
	Value string
}

// Section is a titled group of rows.
type Section struct {
	Title string
	Rows  []Row
}

// Report renders a titled, boxed report of sections to the terminal.
type Report struct {
	Styles   Styles
	Title    string
	Sections []Section
}

// Render renders the report as a string.
func (r Report) Render() string {
	width := r.width()
	bc := r.Styles.Border

	var lines []string
	lines = append(lines, bc.Render("╭"+strings.Repeat("─", width-2)+"╮"))

	title := r.Styles.Title.Render(r.Title)
	lines = append(lines, r.boxLine(title, width))

	for _, sec := range r.Sections {
		label := r.Styles.Label.Render(sec.Title)
		pad := max(0, width-3-lipgloss.Width(label))
		lines = append(lines, bc.Render("├─")+label+bc.Render(strings.Repeat("─", pad)+"┤"))
		for _, row := range sec.Rows {
			text := row.Value
			if row.Label != "" {
				text = r.Styles.Dim.Render(row.Label+": ") + r.Styles.Value.Render(row.Value)
			}
			lines = append(lines, r.boxLine(text, width))
		}
	}

	lines = append(lines, bc.Render("╰"+strings.Repeat("─", width-2)+"╯"))
	return strings.Join(lines, "\n")
}

// boxLine wraps one content line in the box border, padded to width.
func (r Report) boxLine(text string, width int) string {
	bc := r.Styles.Border
	pad := max(0, width-4-lipgloss.Width(text))
	return bc.Render("│") + " " + text + strings.Repeat(" ", pad) + " " + bc.Render("│")
}

// width computes the box width from the longest line, with a floor.
func (r Report) width() int {
	w := lipgloss.Width(r.Title) + 4
	for _, sec := range r.Sections {
		if sw := lipgloss.Width(sec.Title) + 4; sw > w {
			w = sw
		}
		for _, row := range sec.Rows {
			lw := lipgloss.Width(row.Value) + 4
			if row.Label != "" {
				lw += lipgloss.Width(row.Label) + 2
			}
			if lw > w {
				w = lw
			}
		}
	}
	return max(w, 40)
}

// Percent formats a 0..1 fraction as a percentage.
func Percent(f float64) string {
	return fmt.Sprintf("%.1f%%", f*100)
}
