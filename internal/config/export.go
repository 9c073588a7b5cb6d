package config

import (
	"fmt"
	"io"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// ExportTOML writes the unconditioned resolution of every directive as a TOML
// document grouped by namespace. Keys that fold to an empty value are omitted.
func (e *Engine) ExportTOML(w io.Writer) error {
	doc := make(map[string]any)
	for _, key := range e.store.Keys() {
		value, ok := e.store.Resolve(key, "", nil)
		if !ok {
			continue
		}
		insertDotted(doc, key, value)
	}
	data, err := toml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// insertDotted nests value under the dot-separated segments of key. When a
// segment is already taken by a scalar the full key is stored flat instead.
func insertDotted(doc map[string]any, key, value string) {
	parts := strings.Split(key, ".")
	node := doc
	for _, part := range parts[:len(parts)-1] {
		child, exists := node[part]
		if !exists {
			next := make(map[string]any)
			node[part] = next
			node = next
			continue
		}
		next, ok := child.(map[string]any)
		if !ok {
			doc[key] = value
			return
		}
		node = next
	}
	leaf := parts[len(parts)-1]
	if _, isTable := node[leaf].(map[string]any); isTable {
		doc[key] = value
		return
	}
	node[leaf] = value
}
