package config

import (
	"strconv"
	"strings"
)

// Vars supplies substitution values for `$name` and `$(name)` references.
type Vars map[string]string

// Resolve folds the chain for key under condition and substitutes vars. The
// boolean is false when the key is unknown or folds to an empty string.
func (s *Store) Resolve(key, condition string, vars Vars) (string, bool) {
	chain, ok := s.Lookup(key)
	if !ok {
		return "", false
	}

	var acc string
	for _, entry := range chain {
		if entry.Condition != nil && !entry.Condition.MatchString(condition) {
			continue
		}
		switch {
		case !entry.Extension:
			acc = entry.Value
		case entry.Left:
			acc = entry.Value + acc
		default:
			acc += entry.Value
		}
	}
	if acc == "" {
		return "", false
	}
	return substitute(acc, vars), true
}

// substitute expands variable references in a single pass. Substituted text is
// never rescanned.
func substitute(template string, vars Vars) string {
	if strings.IndexByte(template, '$') < 0 {
		return template
	}
	var b strings.Builder
	b.Grow(len(template))
	for i := 0; i < len(template); {
		c := template[i]
		if c != '$' {
			b.WriteByte(c)
			i++
			continue
		}
		if i+1 < len(template) && template[i+1] == '$' {
			b.WriteByte('$')
			i += 2
			continue
		}

		var name string
		if i+1 < len(template) && template[i+1] == '(' {
			end := strings.IndexByte(template[i+2:], ')')
			if end < 0 {
				name = template[i+2:]
				i = len(template)
			} else {
				name = template[i+2 : i+2+end]
				i += 2 + end + 1
			}
		} else {
			j := i + 1
			for j < len(template) && isIdentByte(template[j]) {
				j++
			}
			name = template[i+1 : j]
			i = j
		}
		b.WriteString(vars[name])
	}
	return b.String()
}

// Bool treats absence and values starting with 0, F, f, N, or n as false.
func (s *Store) Bool(key, condition string) bool {
	raw, ok := s.Resolve(key, condition, nil)
	if !ok {
		return false
	}
	switch raw[0] {
	case '0', 'F', 'f', 'N', 'n':
		return false
	}
	return true
}

// Int parses the resolved value, returning 0 on absence or parse failure.
func (s *Store) Int(key, condition string) int {
	raw, ok := s.Resolve(key, condition, nil)
	if !ok {
		return 0
	}
	raw = strings.TrimSpace(raw)
	if v, err := strconv.Atoi(raw); err == nil {
		return v
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return int(f)
	}
	return 0
}

// Float parses the resolved value, returning 0 on absence or parse failure.
func (s *Store) Float(key, condition string) float64 {
	raw, ok := s.Resolve(key, condition, nil)
	if !ok {
		return 0
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0
	}
	return v
}

// Lines resolves key and splits the result into non-blank, trimmed lines.
func (s *Store) Lines(key, condition string, vars Vars) []string {
	raw, ok := s.Resolve(key, condition, vars)
	if !ok {
		return nil
	}
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
