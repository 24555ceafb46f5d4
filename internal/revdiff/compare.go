package revdiff

import (
	"fmt"
	"strings"
	"unicode"
)

// DefaultContentFields are the large free-form SOW sections whose edits are
// reported as content edits rather than field updates.
var DefaultContentFields = []string{
	"executive_summary",
	"project_description",
	"project_scope",
	"scope_of_work",
	"objectives",
	"deliverables",
	"assumptions",
	"out_of_scope",
	"timeline",
	"acceptance_criteria",
	"terms_and_conditions",
	"custom_content",
}

// Sanitizer cleans trusted-but-unvetted markup before it is diffed.
// *bluemonday.Policy satisfies this interface.
type Sanitizer interface {
	Sanitize(string) string
}

type Options struct {
	Lookahead     int
	HTMLCutoff    int
	ContentFields []string
	Sanitizer     Sanitizer
}

// Engine compares snapshots. It holds only read-only configuration and is safe
// for concurrent use.
type Engine struct {
	lookahead     int
	htmlCutoff    int
	contentFields map[string]struct{}
	sanitizer     Sanitizer
}

var defaultEngine = NewEngine(Options{})

func NewEngine(opts Options) *Engine {
	if opts.Lookahead < 1 {
		opts.Lookahead = DefaultLookahead
	}
	if opts.HTMLCutoff < 1 {
		opts.HTMLCutoff = DefaultHTMLCutoff
	}
	if opts.ContentFields == nil {
		opts.ContentFields = DefaultContentFields
	}
	contentFields := make(map[string]struct{}, len(opts.ContentFields))
	for _, name := range opts.ContentFields {
		name = strings.ToLower(strings.TrimSpace(name))
		if name != "" {
			contentFields[name] = struct{}{}
		}
	}
	return &Engine{
		lookahead:     opts.Lookahead,
		htmlCutoff:    opts.HTMLCutoff,
		contentFields: contentFields,
		sanitizer:     opts.Sanitizer,
	}
}

// Compute diffs prev against next with the default engine.
func Compute(prev, next Snapshot) DiffResult {
	return defaultEngine.Compute(prev, next)
}

// Compute diffs prev against next. Direction is the caller's: prev is always the
// "previous" side regardless of versions or timestamps.
func (e *Engine) Compute(prev, next Snapshot) DiffResult {
	changes := make([]ChangeDiff, 0)
	prevValues := prev.Fields.Map()
	nextValues := next.Fields.Map()
	for _, name := range unionFieldNames(prev.Fields, next.Fields) {
		before := prevValues[name]
		after := nextValues[name]
		if before == after {
			continue
		}
		changes = append(changes, e.CompareField(name, before, after))
	}
	return DiffResult{
		Snapshot1:    prev.Ref(),
		Snapshot2:    next.Ref(),
		Changes:      changes,
		TotalChanges: len(changes),
	}
}

// CompareField builds the change record for one field, picking the differ that
// matches the value shape.
func (e *Engine) CompareField(name, before, after string) ChangeDiff {
	change := ChangeDiff{
		FieldName:     name,
		PreviousValue: before,
		NewValue:      after,
		ChangeType:    e.classify(name),
	}
	label := fieldLabel(name)

	prevList, prevIsList := FormatRoleList(before)
	nextList, nextIsList := FormatRoleList(after)
	// A list paired with non-empty text of another shape is not a list edit.
	structured := (prevIsList || nextIsList) &&
		(prevIsList || before == "") &&
		(nextIsList || after == "")
	switch {
	case structured:
		change.Kind = KindStructured
		change.Previous = wholeValue(prevList)
		change.Next = wholeValue(nextList)
	case e.isHTMLField(before, after):
		change.Kind = KindHTML
		prevBody, _ := htmlBody(before)
		nextBody, _ := htmlBody(after)
		if e.sanitizer != nil {
			prevBody = e.sanitizer.Sanitize(prevBody)
			nextBody = e.sanitizer.Sanitize(nextBody)
			change.rawPrevious, change.rawNext = prevBody, nextBody
			change.sanitized = true
		}
		change.Previous, change.Next = diffMarkup(prevBody, nextBody, e.htmlCutoff)
	default:
		change.Kind = KindPlain
		change.Previous, change.Next = diffTokens(before, after, e.lookahead)
	}

	switch {
	case change.ChangeType == ChangeStatusChange:
		change.DiffSummary = fmt.Sprintf("%s changed from %s to %s", label, displayValue(before), displayValue(after))
	case change.Kind == KindStructured:
		change.DiffSummary = label + " list updated"
	case change.ChangeType == ChangeContentEdit:
		change.DiffSummary = label + " content modified"
	default:
		change.DiffSummary = label + " updated"
	}
	return change
}

func (e *Engine) classify(name string) ChangeType {
	lower := strings.ToLower(name)
	if lower == "status" || strings.HasSuffix(lower, "_status") {
		return ChangeStatusChange
	}
	if _, ok := e.contentFields[lower]; ok {
		return ChangeContentEdit
	}
	return ChangeFieldUpdate
}

func (e *Engine) isHTMLField(before, after string) bool {
	return (before != "" && IsHTML(before)) || (after != "" && IsHTML(after))
}

func unionFieldNames(prev, next Fields) []string {
	names := make([]string, 0, len(prev)+len(next))
	seen := make(map[string]struct{}, len(prev)+len(next))
	for _, fields := range []Fields{prev, next} {
		for _, field := range fields {
			if _, ok := seen[field.Name]; ok {
				continue
			}
			seen[field.Name] = struct{}{}
			names = append(names, field.Name)
		}
	}
	return names
}

func wholeValue(value string) []Segment {
	if value == "" {
		return []Segment{}
	}
	return []Segment{{Kind: SegmentCommon, Value: value}}
}

func displayValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return "(empty)"
	}
	return value
}

func fieldLabel(name string) string {
	words := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-' || r == ' ' || r == '.'
	})
	if len(words) == 0 {
		return "Field"
	}
	label := []rune(strings.ToLower(strings.Join(words, " ")))
	label[0] = unicode.ToUpper(label[0])
	return string(label)
}
