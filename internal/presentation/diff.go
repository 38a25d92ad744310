package presentation

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DefaultContext is the number of unchanged lines shown around a change.
const DefaultContext = 3

// LineType classifies a line of a hunk.
type LineType int

const (
	LineContext LineType = iota
	LineAddition
	LineDeletion
)

// DiffLine is one line of a hunk, without its trailing newline.
type DiffLine struct {
	Type    LineType
	Content string
}

// DiffHunk is a contiguous region of change. Line numbers are 1-based.
type DiffHunk struct {
	OldStart, OldCount int
	NewStart, NewCount int
	Lines              []DiffLine
}

// Header returns the "@@ -a,b +c,d @@" line of the hunk.
func (h DiffHunk) Header() string {
	return fmt.Sprintf("@@ -%s +%s @@", hunkRange(h.OldStart, h.OldCount), hunkRange(h.NewStart, h.NewCount))
}

func hunkRange(start, count int) string {
	if count == 0 {
		// An empty range names the line before it.
		return fmt.Sprintf("%d,0", start-1)
	}
	if count == 1 {
		return fmt.Sprintf("%d", start)
	}
	return fmt.Sprintf("%d,%d", start, count)
}

// ComputeHunks diffs old and new line by line.
func ComputeHunks(oldText, newText string, context int) []DiffHunk {
	if oldText == newText {
		return nil
	}
	lines := lineDiff(oldText, newText)

	var hunks []DiffHunk
	oldLine, newLine := 1, 1
	i := 0
	for i < len(lines) {
		if lines[i].Type == LineContext {
			oldLine++
			newLine++
			i++
			continue
		}

		// Start a hunk with up to context lines before the change.
		lead := 0
		for lead < context && i-lead-1 >= 0 && lines[i-lead-1].Type == LineContext {
			lead++
		}
		h := DiffHunk{OldStart: oldLine - lead, NewStart: newLine - lead}
		h.Lines = append(h.Lines, lines[i-lead:i]...)
		h.OldCount, h.NewCount = lead, lead

		// Extend while changes are within 2*context unchanged lines.
		for i < len(lines) {
			if lines[i].Type != LineContext {
				h.Lines = append(h.Lines, lines[i])
				if lines[i].Type == LineDeletion {
					h.OldCount++
					oldLine++
				} else {
					h.NewCount++
					newLine++
				}
				i++
				continue
			}
			run := 0
			for i+run < len(lines) && lines[i+run].Type == LineContext {
				run++
			}
			if i+run < len(lines) && run <= 2*context {
				h.Lines = append(h.Lines, lines[i:i+run]...)
				h.OldCount += run
				h.NewCount += run
				oldLine += run
				newLine += run
				i += run
				continue
			}
			trail := min(run, context)
			h.Lines = append(h.Lines, lines[i:i+trail]...)
			h.OldCount += trail
			h.NewCount += trail
			break
		}
		hunks = append(hunks, h)
	}
	return hunks
}

// lineDiff returns every line of both texts tagged with how it changed.
func lineDiff(oldText, newText string) []DiffLine {
	dmp := diffmatchpatch.New()
	a, b, lineArray := dmp.DiffLinesToChars(oldText, newText)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lineArray)

	var out []DiffLine
	for _, d := range diffs {
		t := LineContext
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			t = LineAddition
		case diffmatchpatch.DiffDelete:
			t = LineDeletion
		}
		for _, l := range splitLines(d.Text) {
			out = append(out, DiffLine{Type: t, Content: l})
		}
	}
	return out
}

// splitLines splits text into lines, dropping the terminator of the last one.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(text, "\n"), "\n")
}

// UnifiedDiff renders a unified diff of one file. It returns "" when the
// texts are equal.
func UnifiedDiff(path, oldText, newText string) string {
	hunks := ComputeHunks(oldText, newText, DefaultContext)
	if len(hunks) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "--- a/%s\n+++ b/%s\n", path, path)
	for _, h := range hunks {
		b.WriteString(h.Header())
		b.WriteByte('\n')
		for _, l := range h.Lines {
			b.WriteByte(linePrefix(l.Type))
			b.WriteString(l.Content)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func linePrefix(t LineType) byte {
	switch t {
	case LineAddition:
		return '+'
	case LineDeletion:
		return '-'
	default:
		return ' '
	}
}
