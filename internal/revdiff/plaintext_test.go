package revdiff

import (
	"reflect"
	"strings"
	"testing"
)

func joinSegments(segments []Segment) string {
	var out strings.Builder
	for _, segment := range segments {
		out.WriteString(segment.Value)
	}
	return out.String()
}

func TestDiffTextBothEmpty(t *testing.T) {
	prev, next := DiffText("", "")
	if len(prev) != 0 || len(next) != 0 {
		t.Fatalf("expected no segments, got prev=%v next=%v", prev, next)
	}
}

func TestDiffTextPureAddition(t *testing.T) {
	prev, next := DiffText("", "X")
	if len(prev) != 0 {
		t.Fatalf("expected empty previous side, got %v", prev)
	}
	want := []Segment{{Kind: SegmentAdded, Value: "X"}}
	if !reflect.DeepEqual(next, want) {
		t.Fatalf("expected %v, got %v", want, next)
	}
}

func TestDiffTextPureDeletion(t *testing.T) {
	prev, next := DiffText("X", "")
	want := []Segment{{Kind: SegmentRemoved, Value: "X"}}
	if !reflect.DeepEqual(prev, want) {
		t.Fatalf("expected %v, got %v", want, prev)
	}
	if len(next) != 0 {
		t.Fatalf("expected empty new side, got %v", next)
	}
}

func TestDiffTextInsertedWord(t *testing.T) {
	prev, next := DiffText("The quick fox", "The quick brown fox")

	wantNext := []Segment{
		{Kind: SegmentCommon, Value: "The quick "},
		{Kind: SegmentAdded, Value: "brown "},
		{Kind: SegmentCommon, Value: "fox"},
	}
	if !reflect.DeepEqual(next, wantNext) {
		t.Fatalf("unexpected new side: %#v", next)
	}
	wantPrev := []Segment{{Kind: SegmentCommon, Value: "The quick fox"}}
	if !reflect.DeepEqual(prev, wantPrev) {
		t.Fatalf("unexpected previous side: %#v", prev)
	}
}

func TestDiffTextRemovedWords(t *testing.T) {
	prev, next := DiffText("alpha beta gamma delta", "alpha delta")
	if got := joinSegments(prev); got != "alpha beta gamma delta" {
		t.Fatalf("previous side does not reconstruct input: %q", got)
	}
	if got := joinSegments(next); got != "alpha delta" {
		t.Fatalf("new side does not reconstruct input: %q", got)
	}
	var removed string
	for _, segment := range prev {
		if segment.Kind == SegmentRemoved {
			removed += segment.Value
		}
		if segment.Kind == SegmentAdded {
			t.Fatalf("previous side must not carry added segments: %v", prev)
		}
	}
	if removed != "beta gamma " {
		t.Fatalf("expected removed %q, got %q", "beta gamma ", removed)
	}
}

func TestDiffTextSubstitutionOutsideWindow(t *testing.T) {
	prev, next := diffTokens("one two", "uno dos", 1)
	if got := joinSegments(prev); got != "one two" {
		t.Fatalf("previous side does not reconstruct input: %q", got)
	}
	if got := joinSegments(next); got != "uno dos" {
		t.Fatalf("new side does not reconstruct input: %q", got)
	}
	if prev[0].Kind != SegmentRemoved || next[0].Kind != SegmentAdded {
		t.Fatalf("expected substitution, got prev=%v next=%v", prev, next)
	}
}

func TestDiffTextRoundTrip(t *testing.T) {
	cases := [][2]string{
		{"Deliver the onboarding plan\n\nby Q3.", "Deliver the revised onboarding plan\nby Q4 2026."},
		{"  leading and trailing  ", "leading\tand trailing"},
		{"a b c d e f", "f e d c b a"},
		{"naïve café résumé", "naïve coffee résumé"},
	}
	for _, tc := range cases {
		prev, next := DiffText(tc[0], tc[1])
		if got := joinSegments(prev); got != tc[0] {
			t.Fatalf("previous side mismatch: want %q got %q", tc[0], got)
		}
		if got := joinSegments(next); got != tc[1] {
			t.Fatalf("new side mismatch: want %q got %q", tc[1], got)
		}
		for _, segment := range prev {
			if segment.Kind == SegmentAdded {
				t.Fatalf("added segment on previous side for %q", tc[0])
			}
		}
		for _, segment := range next {
			if segment.Kind == SegmentRemoved {
				t.Fatalf("removed segment on new side for %q", tc[1])
			}
		}
	}
}

func TestDiffTextLongInputStaysBounded(t *testing.T) {
	words := make([]string, 0, 20000)
	for i := 0; i < 20000; i++ {
		words = append(words, "word")
	}
	prev := strings.Join(words, " ")
	next := "intro " + prev + " outro"

	prevSegments, nextSegments := DiffText(prev, next)
	if joinSegments(prevSegments) != prev || joinSegments(nextSegments) != next {
		t.Fatal("long input did not round-trip")
	}
}

func TestTokenizeKeepsWhitespace(t *testing.T) {
	got := tokenize("a  b\nc")
	want := []string{"a", "  ", "b", "\n", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
