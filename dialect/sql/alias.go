package sql

import (
	"strconv"
	"strings"
)

// aliasScope is the set of aliases in use by one top-level statement, its
// joins and its subqueries. The suffix counter is scoped to it, so compiling
// independent statements is deterministic.
type aliasScope struct {
	used    map[string]struct{}
	counter int
}

func newAliasScope() *aliasScope {
	return &aliasScope{used: make(map[string]struct{})}
}

func (s *aliasScope) has(alias string) bool {
	_, ok := s.used[alias]
	return ok
}

// derive reserves the alias derived from name: its first three characters,
// lower-cased, suffixed with the counter until unique.
func (s *aliasScope) derive(name string) string {
	return s.unique(deriveAlias(name))
}

// unique reserves proposed, or proposed with the next free counter suffix.
func (s *aliasScope) unique(proposed string) string {
	alias := proposed
	for s.has(alias) {
		s.counter++
		alias = proposed + strconv.Itoa(s.counter)
	}
	s.used[alias] = struct{}{}
	return alias
}

// reserve claims an explicit alias. It reports false if already taken.
func (s *aliasScope) reserve(alias string) bool {
	if s.has(alias) {
		return false
	}
	s.used[alias] = struct{}{}
	return true
}

func (s *aliasScope) release(alias string) {
	delete(s.used, alias)
}

func deriveAlias(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	r := []rune(name)
	if len(r) > 3 {
		r = r[:3]
	}
	if len(r) == 0 {
		return "t"
	}
	return strings.ToLower(string(r))
}
