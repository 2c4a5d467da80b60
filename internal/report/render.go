package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"golang.org/x/term"

	"github.com/mvp-joe/archlint/internal/config"
	"github.com/mvp-joe/archlint/internal/model"
)

// Styles holds the terminal styles used by the text renderer.
type Styles struct {
	Error   lipgloss.Style
	Warning lipgloss.Style
	Info    lipgloss.Style
	Success lipgloss.Style
	Muted   lipgloss.Style
	Bold    lipgloss.Style
}

// DefaultStyles returns the coloured styles used on a terminal.
func DefaultStyles() *Styles {
	return &Styles{
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		Info:    lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		Muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		Bold:    lipgloss.NewStyle().Bold(true),
	}
}

// PlainStyles returns styles that render text unchanged.
func PlainStyles() *Styles {
	plain := lipgloss.NewStyle()
	return &Styles{Error: plain, Warning: plain, Info: plain, Success: plain, Muted: plain, Bold: plain}
}

func (s *Styles) severity(sev model.Severity) lipgloss.Style {
	switch sev {
	case model.SeverityError:
		return s.Error
	case model.SeverityWarn:
		return s.Warning
	case model.SeverityInfo:
		return s.Info
	default:
		return s.Muted
	}
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Renderer writes reports in one output format.
type Renderer struct {
	format string
	styles *Styles
}

// NewRenderer creates a renderer for format ("text", "json" or "markdown").
// Colour only applies to the text format.
func NewRenderer(format string, color bool) (*Renderer, error) {
	switch format {
	case config.FormatText, config.FormatJSON, config.FormatMarkdown:
	case "":
		format = config.FormatText
	default:
		return nil, config.NewFieldError("output.format", config.ErrInvalidFormat, "'%s'", format)
	}
	styles := PlainStyles()
	if color && format == config.FormatText {
		styles = DefaultStyles()
	}
	return &Renderer{format: format, styles: styles}, nil
}

// Format returns the renderer's output format.
func (r *Renderer) Format() string {
	return r.format
}

// Render writes rep to w.
func (r *Renderer) Render(w io.Writer, rep *Report) error {
	switch r.format {
	case config.FormatJSON:
		return renderJSON(w, rep)
	case config.FormatMarkdown:
		return renderMarkdown(w, rep)
	default:
		return r.renderText(w, rep)
	}
}

func renderJSON(w io.Writer, rep *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

func location(v model.Violation) string {
	if v.Line <= 0 {
		return v.Unit
	}
	return v.Unit + ":" + strconv.Itoa(v.Line)
}

func (r *Renderer) renderText(w io.Writer, rep *Report) error {
	s := r.styles

	if rep.Status == StatusInterrupted {
		_, err := fmt.Fprintln(w, s.Warning.Render("Scan interrupted: no results reported"))
		return err
	}

	if len(rep.Violations) > 0 {
		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"Severity", "Location", "Rule", "Message"})
		for _, v := range rep.Violations {
			t.AppendRow(table.Row{
				s.severity(v.Severity).Render(v.Severity.String()),
				location(v),
				s.Muted.Render(v.RuleID),
				v.Message,
			})
		}
		t.Render()
	}

	if len(rep.Coverage) > 0 {
		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.SetStyle(table.StyleLight)
		t.SetTitle("Coverage")
		t.AppendHeader(table.Row{"Layer", "Units", "Exempt", "Missing", "Mean line", "Min", "Status"})
		for _, l := range rep.Coverage {
			status := s.Success.Render(l.Status)
			if l.Status != StatusOK {
				status = s.Error.Render(l.Status)
			}
			t.AppendRow(table.Row{l.Layer.String(), l.Units, l.Exempt, l.Missing, percent(l.MeanLine), percent(l.Min), status})
		}
		t.Render()
	}

	summary := fmt.Sprintf("%d units, %d errors, %d warnings, %d infos",
		rep.Units, rep.Summary.Errors, rep.Summary.Warnings, rep.Summary.Infos)
	if rep.Degraded > 0 {
		summary += fmt.Sprintf(" (%d units failed to parse)", rep.Degraded)
	}
	mark := s.Success.Render("✓")
	if rep.Status != StatusOK {
		mark = s.severity(rep.Highest).Render("✗")
	}
	_, err := fmt.Fprintf(w, "%s %s: %s\n", mark, s.Bold.Render(rep.Status), summary)
	return err
}

func renderMarkdown(w io.Writer, rep *Report) error {
	fmt.Fprintf(w, "# Conformance report\n\n**Status:** `%s`\n\n", rep.Status)
	if rep.Status == StatusInterrupted {
		return nil
	}
	fmt.Fprintf(w, "| Errors | Warnings | Infos | Units |\n| --- | --- | --- | --- |\n| %d | %d | %d | %d |\n\n",
		rep.Summary.Errors, rep.Summary.Warnings, rep.Summary.Infos, rep.Units)

	if len(rep.Violations) > 0 {
		fmt.Fprintf(w, "## Violations\n\n")
		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.AppendHeader(table.Row{"Severity", "Location", "Rule", "Symbol", "Message"})
		for _, v := range rep.Violations {
			t.AppendRow(table.Row{v.Severity.String(), "`" + location(v) + "`", v.RuleID, v.Symbol, v.Message})
		}
		t.RenderMarkdown()
		fmt.Fprintln(w)
	}

	if len(rep.Coverage) > 0 {
		fmt.Fprintf(w, "## Coverage\n\n")
		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.AppendHeader(table.Row{"Layer", "Units", "Exempt", "Missing", "Mean line", "Min", "Status"})
		for _, l := range rep.Coverage {
			t.AppendRow(table.Row{l.Layer.String(), l.Units, l.Exempt, l.Missing, percent(l.MeanLine), percent(l.Min), l.Status})
		}
		t.RenderMarkdown()
		fmt.Fprintln(w)
	}
	return nil
}

func percent(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}
