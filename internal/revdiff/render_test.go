package revdiff

import (
	"html"
	"strings"
	"testing"
)

func TestHighlightEscapesPlainText(t *testing.T) {
	segments := []Segment{
		{Kind: SegmentCommon, Value: "Fee: "},
		{Kind: SegmentAdded, Value: `<script>alert("x")</script> & 'more'`},
	}
	got := Highlight(segments, KindPlain)
	want := `Fee: <span class="diff-added">&lt;script&gt;alert(&#34;x&#34;)&lt;/script&gt; &amp; &#39;more&#39;</span>`
	if got != want {
		t.Fatalf("unexpected markup:\n%s\nwant:\n%s", got, want)
	}
}

func TestHighlightKeepsHTMLVerbatim(t *testing.T) {
	segments := []Segment{
		{Kind: SegmentCommon, Value: "<p>Hello "},
		{Kind: SegmentRemoved, Value: "<em>old</em> "},
		{Kind: SegmentCommon, Value: "world</p>"},
	}
	got := Highlight(segments, KindHTML)
	want := `<p>Hello <span class="diff-removed"><em>old</em> </span>world</p>`
	if got != want {
		t.Fatalf("unexpected markup:\n%s\nwant:\n%s", got, want)
	}
}

func TestPlainTextRoundTripThroughRenderer(t *testing.T) {
	prev := `Budget < $10k & "fixed"`
	next := `Budget < $12k & "fixed" (revised)`
	prevSegments, nextSegments := DiffText(prev, next)

	stripped := func(markup string) string {
		markup = strings.ReplaceAll(markup, addedOpen, "")
		markup = strings.ReplaceAll(markup, removedOpen, "")
		markup = strings.ReplaceAll(markup, spanClose, "")
		return html.UnescapeString(markup)
	}
	if got := stripped(Highlight(prevSegments, KindPlain)); got != prev {
		t.Fatalf("previous side mismatch: %q", got)
	}
	if got := stripped(Highlight(nextSegments, KindPlain)); got != next {
		t.Fatalf("new side mismatch: %q", got)
	}
}

func TestRenderViewsPerSide(t *testing.T) {
	change := defaultEngine.CompareField("client_name", `Acme "Ltd" & Co`, `Acme "Group" & Co`)

	rendered := Render(change, ViewRaw, ViewHighlighted)
	if rendered.Previous != "Acme &#34;Ltd&#34; &amp; Co" {
		t.Fatalf("unexpected raw previous side: %q", rendered.Previous)
	}
	if !strings.Contains(rendered.New, addedOpen) {
		t.Fatalf("expected highlighted new side, got %q", rendered.New)
	}

	plain := Render(change, ViewPlain, ViewPlain)
	if strings.Contains(plain.Previous, "<span") || strings.Contains(plain.New, "<span") {
		t.Fatalf("plain view must not carry highlight markup: %+v", plain)
	}
	if plain.New != "Acme &#34;Group&#34; &amp; Co" {
		t.Fatalf("unexpected plain new side: %q", plain.New)
	}
}

func TestRawHTMLIsNotEscaped(t *testing.T) {
	if got := Raw("<p>x</p>", KindHTML); got != "<p>x</p>" {
		t.Fatalf("expected verbatim markup, got %q", got)
	}
}

func TestParseView(t *testing.T) {
	if ParseView("RAW") != ViewRaw || ParseView("plain") != ViewPlain || ParseView("") != ViewHighlighted || ParseView("bogus") != ViewHighlighted {
		t.Fatal("unexpected view parsing")
	}
}
