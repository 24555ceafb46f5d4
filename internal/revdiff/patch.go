package revdiff

import (
	"strings"

	difflib "github.com/pmezard/go-difflib/difflib"
)

const defaultPatchContext = 3

// UnifiedPatch renders a change as a line-based unified diff of the formatted
// values. It is a plain-text companion to the highlighted markup and is never
// escaped. Returns "" when the formatted sides are identical.
func UnifiedPatch(change ChangeDiff, context int) string {
	if context <= 0 {
		context = defaultPatchContext
	}
	before := sideText(change.Previous)
	after := sideText(change.Next)
	if before == after {
		return ""
	}
	patch, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        splitLinesKeepNL(before),
		B:        splitLinesKeepNL(after),
		FromFile: "previous/" + change.FieldName,
		ToFile:   "new/" + change.FieldName,
		Context:  context,
	})
	if err != nil {
		return ""
	}
	return patch
}

func sideText(segments []Segment) string {
	var b strings.Builder
	for _, segment := range segments {
		b.WriteString(segment.Value)
	}
	return b.String()
}

// splitLinesKeepNL splits s into lines, each ending in "\n" so the last line
// does not trigger difflib's missing-newline handling.
func splitLinesKeepNL(s string) []string {
	if s == "" {
		return []string{}
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	} else {
		lines[len(lines)-1] += "\n"
	}
	return lines
}
