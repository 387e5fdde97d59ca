// Package ui renders CLI output.
package ui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/pterm/pterm"

	"github.com/satishbabariya/libsql-go/runtime/types"
)

var (
	// Colors
	PrimaryColor   = lipgloss.Color("#00D9FF")
	SuccessColor   = lipgloss.Color("#00FF88")
	WarningColor   = lipgloss.Color("#FFB800")
	ErrorColor     = lipgloss.Color("#FF4444")
	SecondaryColor = lipgloss.Color("#6C757D")

	// Styles
	TitleStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor).
			Bold(true)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(SuccessColor).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(WarningColor).
			Bold(true)

	InfoStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor)

	SecondaryStyle = lipgloss.NewStyle().
			Foreground(SecondaryColor)

	nullColor = color.New(color.Faint, color.Italic)
	kindColor = map[types.Kind]*color.Color{
		types.KindInteger: color.New(color.FgCyan),
		types.KindFloat:   color.New(color.FgCyan),
		types.KindBlob:    color.New(color.FgMagenta),
	}
)

// DisableColor turns off styling of every printer.
func DisableColor() {
	color.NoColor = true
	pterm.DisableStyling()
}

// PrintSuccess prints a success message
func PrintSuccess(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, SuccessStyle.Render("✓ "+fmt.Sprintf(format, args...)))
}

// PrintError prints an error message
func PrintError(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, ErrorStyle.Render("✗ "+fmt.Sprintf(format, args...)))
}

// PrintWarning prints a warning message
func PrintWarning(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, WarningStyle.Render("⚠ "+fmt.Sprintf(format, args...)))
}

// PrintInfo prints an info message
func PrintInfo(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, InfoStyle.Render("ℹ "+fmt.Sprintf(format, args...)))
}

// PrintSection prints a section header
func PrintSection(w io.Writer, title string) {
	section := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(SecondaryColor).
		Render(TitleStyle.Render(title))
	fmt.Fprintln(w, section)
}

// PrintTable prints a table using pterm
func PrintTable(w io.Writer, headers []string, rows [][]string) error {
	data := pterm.TableData{headers}
	data = append(data, rows...)
	out, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, out)
	return err
}

// PrintMarkdown renders markdown content
func PrintMarkdown(w io.Writer, content string) error {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return err
	}

	out, err := r.Render(content)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(w, out)
	return err
}

// FormatValue renders a cell for a result table. Blobs of vector columns
// are unpacked; other blobs show a hex preview.
func FormatValue(v types.Value, decl types.DeclType) string {
	switch v.Kind() {
	case types.KindNull:
		return nullColor.Sprint("NULL")
	case types.KindBlob:
		b, err := v.AsBytes()
		if err != nil {
			return v.String()
		}
		if _, ok := decl.VectorDims(); ok {
			if vec, err := types.VectorFromBytes(b); err == nil {
				return kindColor[types.KindBlob].Sprint([]float32(vec))
			}
		}
		return kindColor[types.KindBlob].Sprintf("x'%s' (%d bytes)", preview(b), len(b))
	}
	if c, ok := kindColor[v.Kind()]; ok {
		return c.Sprint(v.String())
	}
	return v.String()
}

func preview(b []byte) string {
	const limit = 8
	if len(b) > limit {
		return fmt.Sprintf("%X…", b[:limit])
	}
	return fmt.Sprintf("%X", b)
}
