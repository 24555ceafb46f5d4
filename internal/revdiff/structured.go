package revdiff

import (
	"encoding/json"
	"fmt"
	"strings"
)

var (
	identityKeys       = []string{"name", "email"}
	roleKeys           = []string{"role", "title", "role_name", "position", "job_title"}
	nameKeys           = []string{"name", "user_name", "full_name"}
	responsibilityKeys = []string{"responsibilities", "responsibility", "description", "duties"}
)

// FormatRoleList reformats a JSON array of contact/role records into a numbered,
// readable block. ok is false when value does not have that shape.
func FormatRoleList(value string) (string, bool) {
	entries, ok := parseRoleList(value)
	if !ok {
		return "", false
	}

	blocks := make([]string, 0, len(entries))
	for idx, entry := range entries {
		lines := []string{fmt.Sprintf("%d. %s", idx+1, firstString(entry, roleKeys))}
		name := firstString(entry, nameKeys)
		email := stringMember(entry, "email")
		switch {
		case name != "" && email != "":
			lines = append(lines, fmt.Sprintf("   User: %s (%s)", name, email))
		case name != "":
			lines = append(lines, "   User: "+name)
		case email != "":
			lines = append(lines, "   User: ("+email+")")
		}
		if text := firstString(entry, responsibilityKeys); text != "" {
			lines = append(lines, "   Responsibilities: "+text)
		}
		blocks = append(blocks, strings.Join(lines, "\n"))
	}
	return strings.Join(blocks, "\n\n"), true
}

// IsRoleList reports whether value is a JSON array of role/contact records.
func IsRoleList(value string) bool {
	_, ok := parseRoleList(value)
	return ok
}

func parseRoleList(value string) ([]map[string]any, bool) {
	trimmed := strings.TrimSpace(value)
	if !strings.HasPrefix(trimmed, "[") {
		return nil, false
	}
	var items []any
	if err := json.Unmarshal([]byte(trimmed), &items); err != nil || len(items) == 0 {
		return nil, false
	}

	entries := make([]map[string]any, 0, len(items))
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			return nil, false
		}
		entries = append(entries, entry)
	}
	first := entries[0]
	if !hasAnyKey(first, identityKeys) || !hasAnyKey(first, roleKeys) {
		return nil, false
	}
	return entries, true
}

func hasAnyKey(entry map[string]any, keys []string) bool {
	for _, key := range keys {
		if _, ok := entry[key]; ok {
			return true
		}
	}
	return false
}

func firstString(entry map[string]any, keys []string) string {
	for _, key := range keys {
		if value := stringMember(entry, key); value != "" {
			return value
		}
	}
	return ""
}

func stringMember(entry map[string]any, key string) string {
	switch value := entry[key].(type) {
	case string:
		return strings.TrimSpace(value)
	case nil:
		return ""
	case []any:
		parts := make([]string, 0, len(value))
		for _, item := range value {
			if text, ok := item.(string); ok && strings.TrimSpace(text) != "" {
				parts = append(parts, strings.TrimSpace(text))
			}
		}
		return strings.Join(parts, "; ")
	default:
		return fmt.Sprint(value)
	}
}
