package config

import (
	"log/slog"
	"regexp"
	"strings"

	"splicer/internal/logging"
)

// Extend parses a directive document and links its entries into store.
// Malformed lines are skipped; source only labels log output.
func Extend(store *Store, document, source string, logger *slog.Logger) {
	if logger == nil {
		logger = logging.NewNop()
	}
	lines := logicalLines(document)

	prefix := ""
	for _, line := range lines {
		rest := strings.TrimLeft(line, whitespace)
		if rest == "" || rest[0] == '#' {
			continue
		}

		if rest[0] == '[' {
			name := rest[1:]
			if end := strings.IndexByte(name, ']'); end >= 0 {
				name = name[:end]
			}
			if name == "" {
				prefix = ""
			} else {
				prefix = name + "."
			}
			continue
		}

		entry, key, ok := parseDirective(rest, prefix)
		if !ok {
			logger.Debug("skipping malformed directive line",
				logging.String("source", source),
				logging.String("line", line),
			)
			continue
		}

		logger.Debug("directive",
			logging.String("source", source),
			logging.String("key", key),
			logging.String("operator", entry.Kind()),
			logging.String("condition", entry.ConditionSource),
			logging.String("value", entry.Value),
		)
		store.Append(key, entry)
	}
}

const whitespace = " \t\r\n\v"

func isIdentByte(c byte) bool {
	return (c >= 'A' && c <= 'Z') ||
		(c >= 'a' && c <= 'z') ||
		(c >= '0' && c <= '9') ||
		c == '_'
}

// logicalLines splits document into lines and folds backslash continuations.
func logicalLines(document string) []string {
	physical := strings.Split(document, "\n")
	out := make([]string, 0, len(physical))
	for i := 0; i < len(physical); i++ {
		line := strings.TrimSuffix(physical[i], "\r")
		for continues(line) && i+1 < len(physical) {
			i++
			line = line[:len(line)-1] + strings.TrimSuffix(physical[i], "\r")
		}
		out = append(out, line)
	}
	return out
}

// continues reports whether line ends in an unescaped backslash.
func continues(line string) bool {
	run := 0
	for i := len(line) - 1; i >= 0 && line[i] == '\\'; i-- {
		run++
	}
	return run%2 == 1
}

func parseDirective(line, prefix string) (Entry, string, bool) {
	var entry Entry
	pos := 0

	if line[pos] == '/' {
		pos++
		var pattern strings.Builder
		for pos < len(line) && line[pos] != '/' {
			if line[pos] == '\\' && pos+1 < len(line) && line[pos+1] == '/' {
				pattern.WriteByte('/')
				pos += 2
				continue
			}
			pattern.WriteByte(line[pos])
			pos++
		}
		if pos < len(line) {
			pos++
		}
		re, err := regexp.Compile(pattern.String())
		if err != nil {
			return Entry{}, "", false
		}
		entry.Condition = re
		entry.ConditionSource = pattern.String()
	}

	pos = skipWhitespace(line, pos)
	start := pos
	for pos < len(line) && isIdentByte(line[pos]) {
		pos++
	}
	if pos == start {
		return Entry{}, "", false
	}
	key := prefix + line[start:pos]

	pos = skipWhitespace(line, pos)
	switch {
	case strings.HasPrefix(line[pos:], "="):
		pos++
	case strings.HasPrefix(line[pos:], "+="):
		entry.Extension = true
		pos += 2
	case strings.HasPrefix(line[pos:], "<+="):
		entry.Extension = true
		entry.Left = true
		pos += 3
	default:
		return Entry{}, "", false
	}

	pos = skipWhitespace(line, pos)
	entry.Value = unescapeValue(line[pos:])
	return entry, key, true
}

func skipWhitespace(line string, pos int) int {
	for pos < len(line) && strings.IndexByte(whitespace, line[pos]) >= 0 {
		pos++
	}
	return pos
}

// unescapeValue decodes backslash escapes. An escaped dollar is emitted as
// `$$` so substitution later yields a literal dollar sign.
func unescapeValue(raw string) string {
	if strings.IndexByte(raw, '\\') < 0 {
		return raw
	}
	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c != '\\' || i+1 >= len(raw) {
			b.WriteByte(c)
			continue
		}
		i++
		switch next := raw[i]; next {
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case 'v':
			b.WriteByte('\v')
		case '$':
			b.WriteString("$$")
		default:
			b.WriteByte(next)
		}
	}
	return b.String()
}
