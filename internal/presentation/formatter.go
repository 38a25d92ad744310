package presentation

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Formatter handles output formatting
type Formatter struct {
	writer io.Writer
	styles styles
}

// NewFormatter creates a formatter. Styling is dropped when writer is not a
// terminal.
func NewFormatter(writer io.Writer) *Formatter {
	return &Formatter{
		writer: writer,
		styles: newStyles(lipgloss.NewRenderer(writer)),
	}
}

// FormatJSON writes v as indented JSON.
func (f *Formatter) FormatJSON(v any) error {
	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// FormatArtifacts writes artifacts as a JSON array.
func (f *Formatter) FormatArtifacts(artifacts []ArtifactDTO) error {
	if artifacts == nil {
		artifacts = []ArtifactDTO{}
	}
	return f.FormatJSON(artifacts)
}

// FormatExtractSummary writes a short report of an extraction run.
func (f *Formatter) FormatExtractSummary(s ExtractSummaryDTO) error {
	var b strings.Builder
	b.WriteString(f.styles.title.Render(fmt.Sprintf("extracted %d artifacts from %d files", s.Artifacts, s.Files)))
	if s.Session != "" {
		b.WriteString(" " + f.styles.muted.Render("session "+s.Session))
	}
	b.WriteByte('\n')

	writeNames := func(style lipgloss.Style, sign string, names []string) {
		for _, n := range names {
			b.WriteString("  " + style.Render(sign+" "+n) + "\n")
		}
	}
	writeNames(f.styles.addition, "+", s.Added)
	writeNames(f.styles.warning, "~", s.Changed)
	writeNames(f.styles.deletion, "-", s.Removed)

	for _, sk := range s.Skipped {
		b.WriteString("  " + f.styles.warning.Render(fmt.Sprintf("skipped %s:%d", sk.File, sk.Line)) +
			" " + f.styles.muted.Render(sk.Error) + "\n")
	}
	_, err := io.WriteString(f.writer, b.String())
	return err
}

// FormatFileEvent writes one line describing a file outcome.
func (f *Formatter) FormatFileEvent(e FileEventDTO) error {
	label := f.styles.outcome(e.Outcome).Render(string(e.Outcome))
	line := label + strings.Repeat(" ", max(1, 10-len(e.Outcome))) + e.Path
	if e.Cached {
		line += " " + f.styles.muted.Render("(cached)")
	}
	if e.Error != "" {
		line += " " + f.styles.failure.Render(e.Error)
	}
	_, err := io.WriteString(f.writer, line+"\n")
	return err
}

// FormatRunSummary writes the totals of a rewrite run.
func (f *Formatter) FormatRunSummary(s RunSummaryDTO) error {
	parts := []string{
		f.styles.success.Render(fmt.Sprintf("%d rewritten", s.Rewritten)),
		f.styles.muted.Render(fmt.Sprintf("%d unchanged", s.Unchanged)),
	}
	if s.Skipped > 0 {
		parts = append(parts, f.styles.warning.Render(fmt.Sprintf("%d skipped", s.Skipped)))
	}
	if s.Failed > 0 {
		parts = append(parts, f.styles.failure.Render(fmt.Sprintf("%d failed", s.Failed)))
	}
	if s.Cached > 0 {
		parts = append(parts, f.styles.accent.Render(fmt.Sprintf("%d cached", s.Cached)))
	}
	line := strings.Join(parts, ", ") + " " + f.styles.muted.Render("in "+s.Duration.Round(time.Millisecond).String())
	_, err := io.WriteString(f.writer, line+"\n")
	return err
}

// FormatDiff writes a unified diff, coloring added and removed lines.
func (f *Formatter) FormatDiff(diff string) error {
	if diff == "" {
		return nil
	}
	var b strings.Builder
	for _, line := range strings.SplitAfter(diff, "\n") {
		if line == "" {
			continue
		}
		text := strings.TrimSuffix(line, "\n")
		switch {
		case strings.HasPrefix(text, "+++"), strings.HasPrefix(text, "---"):
			text = f.styles.title.Render(text)
		case strings.HasPrefix(text, "@@"):
			text = f.styles.accent.Render(text)
		case strings.HasPrefix(text, "+"):
			text = f.styles.addition.Render(text)
		case strings.HasPrefix(text, "-"):
			text = f.styles.deletion.Render(text)
		}
		b.WriteString(text + "\n")
	}
	_, err := io.WriteString(f.writer, b.String())
	return err
}
