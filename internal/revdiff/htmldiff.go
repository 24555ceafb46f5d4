package revdiff

import (
	"encoding/json"
	"strings"
)

// DefaultHTMLCutoff is the middle-region length (in runes) at which the HTML
// differ stops comparing characters and marks the whole region as replaced.
const DefaultHTMLCutoff = 100

// envelopeKeys are the members of a JSON rich-text envelope that carry markup.
var envelopeKeys = []string{"html", "content"}

// IsHTML reports whether value looks like markup or is a JSON envelope around markup.
func IsHTML(value string) bool {
	_, ok := htmlBody(value)
	return ok
}

// htmlBody returns the markup to diff for value: the value itself when it
// contains tags, or the markup member of a JSON envelope.
func htmlBody(value string) (string, bool) {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "{") {
		var envelope map[string]any
		if err := json.Unmarshal([]byte(trimmed), &envelope); err == nil {
			for _, key := range envelopeKeys {
				inner, _ := envelope[key].(string)
				if looksLikeMarkup(inner) {
					return inner, true
				}
			}
			return value, false
		}
	}
	return value, looksLikeMarkup(value)
}

func looksLikeMarkup(value string) bool {
	return strings.Contains(value, "<") && strings.Contains(value, ">")
}

// DiffHTML computes a character diff of two markup strings with the default cutoff.
func DiffHTML(prev, next string) ([]Segment, []Segment) {
	return diffMarkup(prev, next, DefaultHTMLCutoff)
}

func diffMarkup(prev, next string, cutoff int) ([]Segment, []Segment) {
	if prev == "" && next == "" {
		return []Segment{}, []Segment{}
	}
	if prev == "" {
		return []Segment{}, []Segment{{Kind: SegmentAdded, Value: next}}
	}
	if next == "" {
		return []Segment{{Kind: SegmentRemoved, Value: prev}}, []Segment{}
	}
	if cutoff < 1 {
		cutoff = DefaultHTMLCutoff
	}
	if collapseWhitespace(prev) == collapseWhitespace(next) {
		return []Segment{{Kind: SegmentCommon, Value: prev}}, []Segment{{Kind: SegmentCommon, Value: next}}
	}

	a := []rune(prev)
	b := []rune(next)

	prefix := 0
	for prefix < len(a) && prefix < len(b) && a[prefix] == b[prefix] {
		prefix++
	}
	limit := min(len(a)-prefix, len(b)-prefix)
	suffix := 0
	for suffix < limit && a[len(a)-1-suffix] == b[len(b)-1-suffix] {
		suffix++
	}

	prevMiddle := a[prefix : len(a)-suffix]
	nextMiddle := b[prefix : len(b)-suffix]

	var left, right segmentBuilder
	left.add(SegmentCommon, string(a[:prefix]))
	right.add(SegmentCommon, string(b[:prefix]))

	if len(prevMiddle) < cutoff && len(nextMiddle) < cutoff {
		positionalDiff(&left, &right, prevMiddle, nextMiddle)
	} else {
		left.add(SegmentRemoved, string(prevMiddle))
		right.add(SegmentAdded, string(nextMiddle))
	}

	left.add(SegmentCommon, string(a[len(a)-suffix:]))
	right.add(SegmentCommon, string(b[len(b)-suffix:]))
	return left.segments(), right.segments()
}

// positionalDiff compares the two regions index by index. An insertion early in
// the region shifts every later comparison; that approximation is accepted.
func positionalDiff(left, right *segmentBuilder, a, b []rune) {
	for k := 0; k < max(len(a), len(b)); k++ {
		switch {
		case k >= len(a):
			right.add(SegmentAdded, string(b[k]))
		case k >= len(b):
			left.add(SegmentRemoved, string(a[k]))
		case a[k] == b[k]:
			left.add(SegmentCommon, string(a[k]))
			right.add(SegmentCommon, string(b[k]))
		default:
			left.add(SegmentRemoved, string(a[k]))
			right.add(SegmentAdded, string(b[k]))
		}
	}
}

func collapseWhitespace(value string) string {
	return strings.Join(strings.Fields(value), " ")
}
