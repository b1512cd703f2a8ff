package colorize

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss/v2"
	"github.com/charmbracelet/x/exp/charmtone"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(charmtone.Malibu.Hex()))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color(charmtone.Smoke.Hex()))
	countStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color(charmtone.Guac.Hex()))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color(charmtone.Zest.Hex()))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color(charmtone.Cheeky.Hex()))
	unusedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color(charmtone.Charcoal.Hex()))
	summaryFrame = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(charmtone.Charple.Hex())).
			Padding(0, 1)
)

// Summary is the outcome of a run as shown to the user.
type Summary struct {
	Methods    int
	Changed    int
	Failed     []string
	Registered int
	Used       int
}

// Render formats s, with colors and a frame when colors are enabled.
func (s Summary) Render() string {
	style := func(st lipgloss.Style, v string) string {
		if !Enabled() {
			return v
		}
		return st.Render(v)
	}

	var lines []string
	lines = append(lines, style(headerStyle, "Inliner summary"))
	lines = append(lines, fmt.Sprintf("%s %s of %d", style(labelStyle, "methods changed:"), style(countStyle, fmt.Sprint(s.Changed)), s.Methods))

	used := style(countStyle, fmt.Sprint(s.Used))
	if s.Used < s.Registered {
		used = style(warnStyle, fmt.Sprint(s.Used))
	}
	lines = append(lines, fmt.Sprintf("%s %s of %d", style(labelStyle, "decrypters used:"), used, s.Registered))

	if len(s.Failed) == 0 {
		lines = append(lines, style(unusedStyle, "no handler failures"))
	} else {
		lines = append(lines, style(failStyle, fmt.Sprintf("%d method(s) partially inlined:", len(s.Failed))))
		for _, name := range s.Failed {
			lines = append(lines, "  "+style(failStyle, name))
		}
	}

	out := strings.Join(lines, "\n")
	if !Enabled() {
		return out
	}
	return summaryFrame.Render(out)
}
