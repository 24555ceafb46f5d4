package revdiff

import (
	"html"
	"strings"
)

const (
	removedOpen = `<span class="diff-removed">`
	addedOpen   = `<span class="diff-added">`
	spanClose   = `</span>`
)

// View selects how one side of a change is rendered.
type View string

const (
	ViewHighlighted View = "highlighted"
	ViewPlain       View = "plain"
	ViewRaw         View = "raw"
)

// ParseView maps a query value to a View, defaulting to highlighted.
func ParseView(value string) View {
	switch View(strings.ToLower(strings.TrimSpace(value))) {
	case ViewPlain:
		return ViewPlain
	case ViewRaw:
		return ViewRaw
	default:
		return ViewHighlighted
	}
}

// Highlight renders segments as markup. Plain-text segment values are escaped
// before wrapping; HTML values are inserted as-is.
func Highlight(segments []Segment, kind FieldKind) string {
	var out strings.Builder
	for _, segment := range segments {
		value := segment.Value
		if kind != KindHTML {
			value = html.EscapeString(value)
		}
		switch segment.Kind {
		case SegmentRemoved:
			out.WriteString(removedOpen)
			out.WriteString(value)
			out.WriteString(spanClose)
		case SegmentAdded:
			out.WriteString(addedOpen)
			out.WriteString(value)
			out.WriteString(spanClose)
		default:
			out.WriteString(value)
		}
	}
	return out.String()
}

// Plain renders segments without highlight wrappers.
func Plain(segments []Segment, kind FieldKind) string {
	var out strings.Builder
	for _, segment := range segments {
		if kind == KindHTML {
			out.WriteString(segment.Value)
			continue
		}
		out.WriteString(html.EscapeString(segment.Value))
	}
	return out.String()
}

// Raw renders an unprocessed field value, escaped unless the field is HTML.
func Raw(value string, kind FieldKind) string {
	if kind == KindHTML {
		return value
	}
	return html.EscapeString(value)
}

// Rendered holds the display markup for both sides of a change.
type Rendered struct {
	Previous string `json:"previous_rendered"`
	New      string `json:"new_rendered"`
}

// Render produces display markup for a change, each side in its own view.
// When the engine sanitized HTML, the raw view shows the sanitized body.
func Render(change ChangeDiff, previous, next View) Rendered {
	prevValue, nextValue := change.PreviousValue, change.NewValue
	if change.sanitized {
		prevValue, nextValue = change.rawPrevious, change.rawNext
	}
	return Rendered{
		Previous: renderSide(change.Previous, prevValue, change.Kind, previous),
		New:      renderSide(change.Next, nextValue, change.Kind, next),
	}
}

func renderSide(segments []Segment, value string, kind FieldKind, view View) string {
	switch view {
	case ViewRaw:
		return Raw(value, kind)
	case ViewPlain:
		return Plain(segments, kind)
	default:
		return Highlight(segments, kind)
	}
}
