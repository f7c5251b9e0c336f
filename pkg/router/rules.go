package router

import (
	"path"
	"sort"

	"github.com/meridian-gw/meridian/pkg/registry"
)

// Rule is an ordered routing predicate. Rules are evaluated in priority order
// (lower value first); the first rule whose model glob matches the request
// supplies an explicit provider plus a fallback chain. A request matching no
// rule falls back to every provider serving the model.
type Rule struct {
	// Name identifies the rule in logs and validation errors.
	Name string

	// Priority orders evaluation; lower values are evaluated first.
	Priority int

	// ModelGlob is a glob pattern matched against the request model
	// (e.g. "gpt-4*", "claude-*").
	ModelGlob string

	// Provider is the explicit provider to route matching requests to.
	Provider string

	// Fallbacks is the ordered fallback chain tried after Provider.
	Fallbacks []string
}

// Matches reports whether the rule's glob matches the model. A malformed
// pattern never matches; patterns are validated at configuration load.
func (r Rule) Matches(model string) bool {
	ok, err := path.Match(r.ModelGlob, model)
	return err == nil && ok
}

// sortRules orders rules by priority, then name for a stable tie-break.
func sortRules(rules []Rule) []Rule {
	sorted := make([]Rule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Priority != sorted[j].Priority {
			return sorted[i].Priority < sorted[j].Priority
		}
		return sorted[i].Name < sorted[j].Name
	})
	return sorted
}

// resolveCandidates produces the ordered candidate set for a model: the first
// matching rule's provider chain, or every provider serving the model when no
// rule matches. Providers named by a rule but not serving the request are
// skipped; duplicates keep their first position.
func resolveCandidates(rules []Rule, reg *registry.Registry, model string) []*registry.Entry {
	for _, rule := range rules {
		if !rule.Matches(model) {
			continue
		}
		names := append([]string{rule.Provider}, rule.Fallbacks...)
		seen := make(map[string]bool, len(names))
		candidates := make([]*registry.Entry, 0, len(names))
		for _, name := range names {
			if seen[name] {
				continue
			}
			seen[name] = true
			if e := reg.Get(name); e != nil {
				candidates = append(candidates, e)
			}
		}
		return candidates
	}
	return reg.ProvidersForModel(model)
}
