package router

import (
	"testing"

	"github.com/meridian-gw/meridian/internal/testutil"
	"github.com/meridian-gw/meridian/pkg/breaker"
	"github.com/meridian-gw/meridian/pkg/registry"
)

func TestRuleMatches(t *testing.T) {
	tests := []struct {
		name  string
		glob  string
		model string
		want  bool
	}{
		{"exact", "gpt-4o", "gpt-4o", true},
		{"prefix glob", "gpt-*", "gpt-4o-mini", true},
		{"prefix glob miss", "gpt-*", "claude-sonnet", false},
		{"wildcard", "*", "anything", true},
		{"single char", "gpt-?", "gpt-4", true},
		{"single char miss", "gpt-?", "gpt-4o", false},
		{"malformed pattern", "gpt-[", "gpt-4", false},
		{"empty pattern", "", "gpt-4", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Rule{ModelGlob: tt.glob}
			if got := r.Matches(tt.model); got != tt.want {
				t.Errorf("Matches(%q) with glob %q = %v, want %v", tt.model, tt.glob, got, tt.want)
			}
		})
	}
}

func TestSortRules(t *testing.T) {
	rules := []Rule{
		{Name: "b", Priority: 2},
		{Name: "z", Priority: 1},
		{Name: "a", Priority: 2},
		{Name: "m", Priority: 1},
	}
	sorted := sortRules(rules)

	wantOrder := []string{"m", "z", "a", "b"}
	for i, want := range wantOrder {
		if sorted[i].Name != want {
			t.Fatalf("sorted[%d] = %s, want %s (full order %v)", i, sorted[i].Name, want, names(sorted))
		}
	}
	// Input must be left untouched.
	if rules[0].Name != "b" {
		t.Fatal("sortRules mutated its input")
	}
}

func names(rules []Rule) []string {
	out := make([]string, len(rules))
	for i, r := range rules {
		out[i] = r.Name
	}
	return out
}

func TestResolveCandidates(t *testing.T) {
	reg := registry.New()
	for _, name := range []string{"anthropic", "bedrock", "openai"} {
		if _, err := reg.Register(testutil.NewMockProvider(name, "gpt-4o", "claude-sonnet"), breaker.Config{}); err != nil {
			t.Fatalf("Register(%s) error = %v", name, err)
		}
	}

	tests := []struct {
		name  string
		rules []Rule
		model string
		want  []string
	}{
		{
			name:  "no rules falls back to model index",
			model: "gpt-4o",
			want:  []string{"anthropic", "bedrock", "openai"},
		},
		{
			name: "matching rule supplies chain",
			rules: []Rule{
				{Name: "gpt", Priority: 1, ModelGlob: "gpt-*", Provider: "openai", Fallbacks: []string{"bedrock"}},
			},
			model: "gpt-4o",
			want:  []string{"openai", "bedrock"},
		},
		{
			name: "first matching rule wins",
			rules: []Rule{
				{Name: "specific", Priority: 1, ModelGlob: "gpt-4o", Provider: "openai"},
				{Name: "broad", Priority: 2, ModelGlob: "*", Provider: "anthropic"},
			},
			model: "gpt-4o",
			want:  []string{"openai"},
		},
		{
			name: "non-matching rules skipped",
			rules: []Rule{
				{Name: "claude", Priority: 1, ModelGlob: "claude-*", Provider: "anthropic"},
			},
			model: "gpt-4o",
			want:  []string{"anthropic", "bedrock", "openai"},
		},
		{
			name: "unknown provider in chain skipped",
			rules: []Rule{
				{Name: "gpt", Priority: 1, ModelGlob: "gpt-*", Provider: "missing", Fallbacks: []string{"openai"}},
			},
			model: "gpt-4o",
			want:  []string{"openai"},
		},
		{
			name: "duplicate in chain keeps first position",
			rules: []Rule{
				{Name: "gpt", Priority: 1, ModelGlob: "gpt-*", Provider: "openai", Fallbacks: []string{"bedrock", "openai"}},
			},
			model: "gpt-4o",
			want:  []string{"openai", "bedrock"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolveCandidates(sortRules(tt.rules), reg, tt.model)
			if len(got) != len(tt.want) {
				t.Fatalf("resolveCandidates() = %v, want %v", entryNames(got), tt.want)
			}
			for i, e := range got {
				if e.Name() != tt.want[i] {
					t.Fatalf("resolveCandidates()[%d] = %s, want %s", i, e.Name(), tt.want[i])
				}
			}
		})
	}
}
