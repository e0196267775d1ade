// Package ui renders the CLI's human-facing output. A Printer owns its
// writer and lipgloss renderer, so commands write to whatever sink cobra
// hands them and tests capture plain text.
package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Brand colors.
const (
	ColorBrand  = lipgloss.Color("#ff6600")
	ColorPurple = lipgloss.Color("#5f00d7")
)

// Status icons.
const (
	IconSuccess = "✔"
	IconWarn    = "⚠"
	IconFail    = "✖"
)

const bannerArt = `█▀█ █▀█ █▀█ ▀█▀ ▄▀█ █▄▄ ▄▀█ █▀ █▀▀
█▀▀ █▄█ █▀▄  █  █▀█ █▄█ █▀█ ▄█ ██▄`

const tagline = "Deploy your infrastructure anywhere."

// Printer writes styled lines to w.
type Printer struct {
	w io.Writer
	r *lipgloss.Renderer

	info    lipgloss.Style
	warning lipgloss.Style
	danger  lipgloss.Style
	success lipgloss.Style
	muted   lipgloss.Style
	key     lipgloss.Style
	brand   lipgloss.Style
	panel   lipgloss.Style
}

// New returns a Printer whose color profile is detected from w.
func New(w io.Writer) *Printer {
	r := lipgloss.NewRenderer(w)
	return &Printer{
		w:       w,
		r:       r,
		info:    r.NewStyle().Faint(true).Foreground(lipgloss.Color("6")),
		warning: r.NewStyle().Foreground(lipgloss.Color("5")),
		danger:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("1")),
		success: r.NewStyle().Bold(true).Foreground(lipgloss.Color("2")),
		muted:   r.NewStyle().Faint(true),
		key:     r.NewStyle().Bold(true).Foreground(ColorBrand),
		brand:   r.NewStyle().Bold(true).Foreground(ColorBrand),
		panel: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorPurple).
			Padding(0, 1),
	}
}

// Writer returns the underlying sink.
func (p *Printer) Writer() io.Writer {
	return p.w
}

// Println writes an unstyled line.
func (p *Printer) Println(a ...any) {
	fmt.Fprintln(p.w, a...)
}

// Info writes a dim informational line.
func (p *Printer) Info(format string, a ...any) {
	fmt.Fprintln(p.w, p.info.Render(fmt.Sprintf(format, a...)))
}

// Muted writes a faint line.
func (p *Printer) Muted(format string, a ...any) {
	fmt.Fprintln(p.w, p.muted.Render(fmt.Sprintf(format, a...)))
}

// Warn writes a warning line prefixed with IconWarn.
func (p *Printer) Warn(format string, a ...any) {
	fmt.Fprintln(p.w, p.warning.Render(IconWarn+" "+fmt.Sprintf(format, a...)))
}

// Fail writes an error line prefixed with IconFail.
func (p *Printer) Fail(format string, a ...any) {
	fmt.Fprintln(p.w, p.danger.Render(IconFail+" "+fmt.Sprintf(format, a...)))
}

// Success writes a success line prefixed with IconSuccess.
func (p *Printer) Success(format string, a ...any) {
	fmt.Fprintln(p.w, p.success.Render(IconSuccess+" "+fmt.Sprintf(format, a...)))
}

// KeyValue writes "  key: value" with the key highlighted.
func (p *Printer) KeyValue(key, value string) {
	fmt.Fprintf(p.w, "  %s %s\n", p.key.Render(key+":"), value)
}

// Banner writes the Portabase logo and tagline.
func (p *Printer) Banner() {
	fmt.Fprintln(p.w)
	fmt.Fprintln(p.w, p.brand.Render(bannerArt))
	fmt.Fprintln(p.w, p.muted.Render(tagline))
	fmt.Fprintln(p.w)
}

// Panel writes title and optional detail lines inside a rounded border.
func (p *Printer) Panel(title string, lines ...string) {
	body := p.r.NewStyle().Bold(true).Render(title)
	if len(lines) > 0 {
		body += "\n" + p.muted.Render(strings.Join(lines, "\n"))
	}
	fmt.Fprintln(p.w, p.panel.Render(body))
}

// Table writes a bordered table with a header row.
func (p *Printer) Table(title string, headers []string, rows [][]string) {
	if title != "" {
		fmt.Fprintln(p.w, p.r.NewStyle().Bold(true).Render(title))
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(p.muted).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return p.key.Padding(0, 1)
			}
			return p.r.NewStyle().Padding(0, 1)
		})
	fmt.Fprintln(p.w, t.Render())
}
