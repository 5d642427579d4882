package models

import "strings"

// NormalizeSkill returns the canonical form of a skill name used for every comparison.
func NormalizeSkill(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// NormalizeSkills normalizes, drops blanks and deduplicates while keeping first-seen order.
func NormalizeSkills(names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		skill := NormalizeSkill(n)
		if skill == "" {
			continue
		}
		if _, dup := seen[skill]; dup {
			continue
		}
		seen[skill] = struct{}{}
		out = append(out, skill)
	}
	return out
}

// SkillSet is a lookup set over normalized skill names.
type SkillSet map[string]struct{}

// NewSkillSet builds a SkillSet from raw names.
func NewSkillSet(names []string) SkillSet {
	set := make(SkillSet, len(names))
	for _, n := range NormalizeSkills(names) {
		set[n] = struct{}{}
	}
	return set
}

// Has reports whether the normalized form of name is in the set.
func (s SkillSet) Has(name string) bool {
	_, ok := s[NormalizeSkill(name)]
	return ok
}

// Intersects reports whether any of names is in the set.
func (s SkillSet) Intersects(names []string) bool {
	for _, n := range names {
		if s.Has(n) {
			return true
		}
	}
	return false
}
