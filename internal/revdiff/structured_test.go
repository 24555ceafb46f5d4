package revdiff

import "testing"

func TestFormatRoleList(t *testing.T) {
	value := `[
		{"role":"Project Manager","name":"Dana Ortiz","email":"dana@example.com","responsibilities":"Owns the delivery plan"},
		{"role":"Solution Architect","name":"Sam Lee","email":"sam@example.com"}
	]`
	got, ok := FormatRoleList(value)
	if !ok {
		t.Fatal("expected role list to be detected")
	}
	want := "1. Project Manager\n" +
		"   User: Dana Ortiz (dana@example.com)\n" +
		"   Responsibilities: Owns the delivery plan\n" +
		"\n" +
		"2. Solution Architect\n" +
		"   User: Sam Lee (sam@example.com)"
	if got != want {
		t.Fatalf("unexpected formatting:\n%s\nwant:\n%s", got, want)
	}
}

func TestFormatRoleListAcceptsTitleKey(t *testing.T) {
	got, ok := FormatRoleList(`[{"title":"Sponsor","email":"exec@example.com","responsibilities":["Budget","Sign-off"]}]`)
	if !ok {
		t.Fatal("expected title-keyed list to be detected")
	}
	want := "1. Sponsor\n   User: (exec@example.com)\n   Responsibilities: Budget; Sign-off"
	if got != want {
		t.Fatalf("unexpected formatting: %q", got)
	}
}

func TestFormatRoleListRejectsOtherShapes(t *testing.T) {
	cases := []string{
		``,
		`plain text`,
		`[]`,
		`["a","b"]`,
		`[{"sku":"X-1","qty":3}]`,
		`[{"name":"No role here"}]`,
		`[{"role":"PM","name":"A"}, "stray"]`,
		`[{"role":"PM","name":"A"`,
		`{"role":"PM","name":"A"}`,
	}
	for _, value := range cases {
		if _, ok := FormatRoleList(value); ok {
			t.Fatalf("expected %q not to be treated as a role list", value)
		}
	}
}
