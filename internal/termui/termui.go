// Package termui styles the terminal output of the javalens commands.
package termui

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	ErrorColor  = lipgloss.Color("#CC3333")
	WarnColor   = lipgloss.Color("#FF8800")
	GoodColor   = lipgloss.Color("#228B22")
	InfoColor   = lipgloss.Color("#4682B4")
	TextColor   = lipgloss.Color("#CCCCCC")
	MutedColor  = lipgloss.Color("#888888")
	BorderColor = lipgloss.Color("#666666")
)

var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(InfoColor).
			Bold(true).
			Padding(0, 1)

	HeaderStyle = lipgloss.NewStyle().Foreground(InfoColor).Bold(true)
	KeyStyle    = lipgloss.NewStyle().Foreground(InfoColor)
	ValueStyle  = lipgloss.NewStyle().Foreground(TextColor)
	MutedStyle  = lipgloss.NewStyle().Foreground(MutedColor)
	WarnStyle   = lipgloss.NewStyle().Foreground(WarnColor).Bold(true)
	ErrorStyle  = lipgloss.NewStyle().Foreground(ErrorColor).Bold(true)
	GoodStyle   = lipgloss.NewStyle().Foreground(GoodColor).Bold(true)

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(BorderColor).
			Padding(0, 1)
)

// Title renders a banner line.
func Title(s string) string {
	return TitleStyle.Render(s)
}

// Header renders a section heading.
func Header(s string) string {
	return HeaderStyle.Render(s)
}

// KeyValue renders "key: value" with the key padded to keyWidth.
func KeyValue(key, value string, keyWidth int) string {
	k := KeyStyle.Width(keyWidth).Render(key + ":")
	return lipgloss.JoinHorizontal(lipgloss.Top, k, " ", ValueStyle.Render(value))
}

// Counts renders one bar per key, sorted by key, scaled to the largest count.
func Counts(counts map[string]int, width int) string {
	keys := make([]string, 0, len(counts))
	keyWidth, top := 0, 0
	for k, n := range counts {
		keys = append(keys, k)
		keyWidth = max(keyWidth, len(k)+1)
		top = max(top, n)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		n := counts[k]
		ratio := 0.0
		if top > 0 {
			ratio = float64(n) / float64(top)
		}
		lines = append(lines, KeyValue(k, fmt.Sprintf("%s %d", Bar(ratio, width), n), keyWidth))
	}
	return strings.Join(lines, "\n")
}

// Bar renders a horizontal bar filled to ratio (0..1).
func Bar(ratio float64, width int) string {
	if width <= 0 {
		return ""
	}
	filled := int(math.Round(math.Min(math.Max(ratio, 0), 1) * float64(width)))
	return GoodStyle.Render(strings.Repeat("█", filled)) + MutedStyle.Render(strings.Repeat("░", width-filled))
}

// List renders items as a bulleted list.
func List(items []string) string {
	var b strings.Builder
	for i, it := range items {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(MutedStyle.Render("•") + " " + it)
	}
	return b.String()
}

// Box frames content.
func Box(content string) string {
	return BoxStyle.Render(content)
}

// Warn renders a warning line.
func Warn(s string) string {
	return WarnStyle.Render("warning:") + " " + s
}

// Error renders an error line.
func Error(err error) string {
	return ErrorStyle.Render("error:") + " " + err.Error()
}
