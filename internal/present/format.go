package present

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Styles controls terminal rendering of the digit strip.
type Styles struct {
	Header  lipgloss.Style
	Hit     lipgloss.Style // highlighted slot
	Slot    lipgloss.Style // ordinary slot
	InHit   lipgloss.Style // issue/digits of a row inside the hit
	NoMatch lipgloss.Style
}

// DefaultStyles returns the colour scheme used by the CLI.
func DefaultStyles() Styles {
	return Styles{
		Header:  lipgloss.NewStyle().Bold(true),
		Hit:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
		Slot:    lipgloss.NewStyle().Faint(true),
		InHit:   lipgloss.NewStyle().Bold(true),
		NoMatch: lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
	}
}

// PlainStyles renders without any terminal escapes.
func PlainStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{Header: plain, Hit: plain, Slot: plain, InHit: plain, NoMatch: plain}
}

// FormatText writes sections as a terminal listing. Highlighted slots are
// bracketed as well as styled so the output stays readable without colour.
func FormatText(w io.Writer, sections []Section, st Styles) error {
	var b strings.Builder
	for _, sec := range sections {
		b.WriteString(st.Header.Render(fmt.Sprintf("== %s (%s) ==", sec.Indicator, sec.Label)))
		b.WriteByte('\n')
		if sec.NoMatch {
			b.WriteString(st.NoMatch.Render(sec.Message))
			b.WriteString("\n\n")
			continue
		}
		for n, m := range sec.Matches {
			fmt.Fprintf(&b, "match %d: year %d, issues %s (%s)\n", n+1, m.Year, strings.Join(m.Issues, ","), m.Direction)
			for _, r := range m.Rows {
				marker := "  "
				head := fmt.Sprintf("%-9s %s  sum %2d", r.Issue, r.Digits, r.Sum)
				if r.InHit {
					marker = "> "
					head = st.InHit.Render(head)
				}
				b.WriteString(marker)
				b.WriteString(head)
				b.WriteString("  ")
				b.WriteString(stripText(r.Strip, st))
				b.WriteByte('\n')
			}
			b.WriteByte('\n')
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func stripText(slots []Slot, st Styles) string {
	parts := make([]string, len(slots))
	for i, s := range slots {
		if s.Highlighted {
			parts[i] = st.Hit.Render(fmt.Sprintf("[%d]", s.Digit))
		} else {
			parts[i] = st.Slot.Render(fmt.Sprintf(" %d ", s.Digit))
		}
	}
	return strings.Join(parts, "")
}

// FormatMarkdown writes sections as Markdown tables, with highlighted slots in bold.
func FormatMarkdown(w io.Writer, sections []Section) error {
	var b strings.Builder
	for _, sec := range sections {
		fmt.Fprintf(&b, "## %s (%s)\n\n", sec.Indicator, sec.Label)
		if sec.NoMatch {
			fmt.Fprintf(&b, "_%s_\n\n", sec.Message)
			continue
		}
		for n, m := range sec.Matches {
			fmt.Fprintf(&b, "### Match %d: %d, issues %s (%s)\n\n", n+1, m.Year, strings.Join(m.Issues, ", "), m.Direction)
			b.WriteString("| Issue | Number | Sum | 0 | 1 | 2 | 3 | 4 | 5 | 6 | 7 | 8 | 9 |\n")
			b.WriteString("|---|---|---|---|---|---|---|---|---|---|---|---|---|\n")
			for _, r := range m.Rows {
				issue := r.Issue
				if r.InHit {
					issue = "**" + issue + "**"
				}
				fmt.Fprintf(&b, "| %s | %s | %d |", issue, r.Digits, r.Sum)
				for _, s := range r.Strip {
					if s.Highlighted {
						fmt.Fprintf(&b, " **%d** |", s.Digit)
					} else {
						fmt.Fprintf(&b, " %d |", s.Digit)
					}
				}
				b.WriteByte('\n')
			}
			b.WriteByte('\n')
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}
