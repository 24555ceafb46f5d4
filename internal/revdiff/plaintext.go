package revdiff

import (
	"strings"
	"unicode"
)

// DefaultLookahead is how many tokens the plain-text differ scans ahead to
// resynchronize after a mismatch.
const DefaultLookahead = 50

// DiffText computes a token diff of prev against next with the default lookahead.
func DiffText(prev, next string) ([]Segment, []Segment) {
	return diffTokens(prev, next, DefaultLookahead)
}

func diffTokens(prev, next string, lookahead int) ([]Segment, []Segment) {
	if prev == "" && next == "" {
		return []Segment{}, []Segment{}
	}
	if prev == "" {
		return []Segment{}, []Segment{{Kind: SegmentAdded, Value: next}}
	}
	if next == "" {
		return []Segment{{Kind: SegmentRemoved, Value: prev}}, []Segment{}
	}
	if lookahead < 1 {
		lookahead = DefaultLookahead
	}

	a := tokenize(prev)
	b := tokenize(next)
	var left, right segmentBuilder

	i, j := 0, 0
	for i < len(a) || j < len(b) {
		if i >= len(a) {
			right.add(SegmentAdded, b[j:]...)
			break
		}
		if j >= len(b) {
			left.add(SegmentRemoved, a[i:]...)
			break
		}
		if a[i] == b[j] {
			left.add(SegmentCommon, a[i])
			right.add(SegmentCommon, b[j])
			i++
			j++
			continue
		}

		inserted, removed := resync(a, b, i, j, lookahead)
		switch {
		case inserted > 0:
			right.add(SegmentAdded, b[j:j+inserted]...)
			j += inserted
		case removed > 0:
			left.add(SegmentRemoved, a[i:i+removed]...)
			i += removed
		default:
			left.add(SegmentRemoved, a[i])
			right.add(SegmentAdded, b[j])
			i++
			j++
		}
	}
	return left.segments(), right.segments()
}

// resync looks for the nearest offset k <= lookahead where a[i] reappears in b
// (tokens inserted) or b[j] reappears in a (tokens removed). Insertion wins ties.
// Both results are zero when nothing matches inside the window.
func resync(a, b []string, i, j, lookahead int) (inserted, removed int) {
	for k := 1; k <= lookahead; k++ {
		insertOK := j+k < len(b)
		removeOK := i+k < len(a)
		if !insertOK && !removeOK {
			return 0, 0
		}
		if insertOK && a[i] == b[j+k] {
			return k, 0
		}
		if removeOK && a[i+k] == b[j] {
			return 0, k
		}
	}
	return 0, 0
}

// tokenize splits s into alternating whitespace and non-whitespace runs so that
// concatenating the tokens reproduces s exactly.
func tokenize(s string) []string {
	tokens := make([]string, 0, len(s)/4+1)
	start := 0
	inSpace := false
	for idx, r := range s {
		space := unicode.IsSpace(r)
		if idx == 0 {
			inSpace = space
			continue
		}
		if space != inSpace {
			tokens = append(tokens, s[start:idx])
			start = idx
			inSpace = space
		}
	}
	if start < len(s) {
		tokens = append(tokens, s[start:])
	}
	return tokens
}

type segmentBuilder struct {
	items   []Segment
	kind    SegmentKind
	pending strings.Builder
}

func (b *segmentBuilder) add(kind SegmentKind, values ...string) {
	for _, value := range values {
		if value == "" {
			continue
		}
		if b.pending.Len() > 0 && b.kind != kind {
			b.flush()
		}
		b.kind = kind
		b.pending.WriteString(value)
	}
}

func (b *segmentBuilder) flush() {
	if b.pending.Len() == 0 {
		return
	}
	b.items = append(b.items, Segment{Kind: b.kind, Value: b.pending.String()})
	b.pending.Reset()
}

func (b *segmentBuilder) segments() []Segment {
	b.flush()
	if b.items == nil {
		return []Segment{}
	}
	return b.items
}
