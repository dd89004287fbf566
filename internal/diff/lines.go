package diff

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Op classifies a line in a prompt text diff.
type Op int

const (
	OpEqual Op = iota
	OpInsert
	OpDelete
)

// Line is one line of a prompt text diff.
type Line struct {
	Op   Op
	Text string
}

// Lines computes a line-level diff between two prompt texts. The
// line-to-rune mapping keeps diffmatchpatch from splitting inside a line,
// which matters for prompts where a line is usually one instruction.
func Lines(oldText, newText string) []Line {
	if oldText == newText {
		return equalLines(oldText)
	}

	dmp := diffmatchpatch.New()
	oldChars, newChars, lineArray := dmp.DiffLinesToChars(oldText, newText)
	diffs := dmp.DiffMain(oldChars, newChars, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)
	diffs = dmp.DiffCleanupSemantic(diffs)

	var lines []Line
	for _, d := range diffs {
		op := OpEqual
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			op = OpInsert
		case diffmatchpatch.DiffDelete:
			op = OpDelete
		}
		for _, text := range splitKeepNonEmpty(d.Text) {
			lines = append(lines, Line{Op: op, Text: text})
		}
	}
	return lines
}

// Unified renders a line diff in the familiar +/- prefixed form.
func Unified(oldText, newText string) string {
	var sb strings.Builder
	for _, line := range Lines(oldText, newText) {
		switch line.Op {
		case OpInsert:
			sb.WriteString("+ ")
		case OpDelete:
			sb.WriteString("- ")
		default:
			sb.WriteString("  ")
		}
		sb.WriteString(line.Text)
		sb.WriteString("\n")
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

func equalLines(text string) []Line {
	var lines []Line
	for _, t := range splitKeepNonEmpty(text) {
		lines = append(lines, Line{Op: OpEqual, Text: t})
	}
	return lines
}

func splitKeepNonEmpty(text string) []string {
	parts := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	if len(parts) == 1 && parts[0] == "" {
		return nil
	}
	return parts
}
