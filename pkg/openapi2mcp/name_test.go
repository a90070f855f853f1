package openapi2mcp

import (
	"strings"
	"testing"
)

func TestSanitizeToolName_Basic(t *testing.T) {
	cases := map[string]string{
		"getUser":              "getuser",
		"get User By ID":       "get_user_by_id",
		"GET_/v3/{domain}":     "get_v3_domain",
		"list-messages":        "list-messages",
		"weird!!chars##here":   "weird_chars_here",
		"__leading_trailing__": "leading_trailing",
	}
	for raw, want := range cases {
		if got := SanitizeToolName(raw); got != want {
			t.Errorf("SanitizeToolName(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestSanitizeToolName_Deterministic(t *testing.T) {
	raw := "POST_/v3/routes/{route_id}/definition/versions/{version_id}/deployments"
	first := SanitizeToolName(raw)
	for i := 0; i < 10; i++ {
		if got := SanitizeToolName(raw); got != first {
			t.Fatalf("SanitizeToolName not deterministic: %q vs %q", got, first)
		}
	}
}

func TestSanitizeToolName_Idempotent(t *testing.T) {
	inputs := []string{
		"getUser",
		"GET_/v3/{domain}/messages",
		strings.Repeat("very_long_operation_name_", 10),
	}
	for _, raw := range inputs {
		once := SanitizeToolName(raw)
		twice := SanitizeToolName(once)
		if once != twice {
			t.Errorf("SanitizeToolName not idempotent for %q: %q -> %q", raw, once, twice)
		}
	}
}

func TestSanitizeToolName_Truncation(t *testing.T) {
	longA := strings.Repeat("alpha_", 20) + "one"
	longB := strings.Repeat("alpha_", 20) + "two"
	a := SanitizeToolName(longA)
	b := SanitizeToolName(longB)
	if len(a) > maxToolNameLen {
		t.Fatalf("truncated name too long: %d chars", len(a))
	}
	if a == b {
		t.Fatalf("distinct long names collapsed to the same tool name %q", a)
	}
}

func TestSanitizeToolName_Charset(t *testing.T) {
	name := SanitizeToolName("Ünïcode/Path {id} + $filter=état")
	for _, r := range name {
		legal := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-'
		if !legal {
			t.Fatalf("illegal rune %q in sanitized name %q", r, name)
		}
	}
}
