package config

import "regexp"

// Entry is one line's contribution to a directive.
type Entry struct {
	// Condition restricts the entry to contexts the pattern matches. Nil means
	// the entry always applies.
	Condition *regexp.Regexp
	// ConditionSource is the pattern text as written in the file.
	ConditionSource string
	// Extension entries fold into the accumulated value instead of replacing it.
	Extension bool
	// Left extensions prepend rather than append.
	Left bool
	// Value is the raw template, with `\$` escapes already encoded as `$$`.
	Value string
}

// Kind reports the entry's operator as written.
func (e Entry) Kind() string {
	switch {
	case e.Extension && e.Left:
		return "<+="
	case e.Extension:
		return "+="
	default:
		return "="
	}
}

// Store maps directive keys to their ordered entry chains. Key order follows
// first insertion so listings are stable.
type Store struct {
	chains map[string][]Entry
	order  []string
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{chains: make(map[string][]Entry)}
}

// Append links an entry into the chain for key. An unconditional replacement
// discards any existing chain; extensions and conditioned entries accumulate
// onto an existing chain and only start one when the key is new.
func (s *Store) Append(key string, entry Entry) {
	chain, exists := s.chains[key]
	if !exists {
		s.order = append(s.order, key)
	}
	if exists && (entry.Extension || entry.Condition != nil) {
		s.chains[key] = append(chain, entry)
		return
	}
	s.chains[key] = []Entry{entry}
}

// Lookup returns the chain for key. The returned slice must not be modified.
func (s *Store) Lookup(key string) ([]Entry, bool) {
	chain, ok := s.chains[key]
	return chain, ok && len(chain) > 0
}

// Keys lists every directive key in first-insertion order.
func (s *Store) Keys() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Len reports how many directive keys are defined.
func (s *Store) Len() int {
	return len(s.order)
}
