package policy

import (
	"strings"
	"testing"
)

func TestMatchAny(t *testing.T) {
	rules := []Rule{{Pattern: "foo"}, {Pattern: "bar", Response: "got bar"}}

	if _, hit := matchAny(rules, "nothing here"); hit {
		t.Fatalf("expected no match")
	}

	r, hit := matchAny(rules, "a BAR was mentioned")
	if !hit {
		t.Fatalf("expected case-insensitive match on 'bar'")
	}
	if r.Response != "got bar" {
		t.Fatalf("expected matched rule's response, got %q", r.Response)
	}
}

func TestRuleCompile_InvalidPatternNeverMatches(t *testing.T) {
	r := Rule{Pattern: "("}
	if re := r.compile(); re != nil {
		t.Fatalf("expected invalid regex to compile to nil")
	}
}

func TestRuleCompile_OverLengthPatternNeverMatches(t *testing.T) {
	r := Rule{Pattern: strings.Repeat("a", maxPatternLen+1)}
	if re := r.compile(); re != nil {
		t.Fatalf("expected over-length pattern to compile to nil")
	}
}

func TestRuleCompile_EmptyPatternNeverMatches(t *testing.T) {
	r := Rule{Pattern: ""}
	if re := r.compile(); re != nil {
		t.Fatalf("expected empty pattern to compile to nil")
	}
}
