package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"splicer/internal/logging"
)

//go:embed defaults.conf
var defaultDocument string

// DefaultFileName is the project file looked up in each ancestor directory.
const DefaultFileName = "splicer.conf"

// MaxDepth bounds the cascade: the embedded defaults plus up to MaxDepth-1
// directory levels ending at the working directory.
const MaxDepth = 17

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ErrUnsupportedEncoding marks directive files saved as UTF-16 or UCS-2.
var ErrUnsupportedEncoding = errors.New("unsupported config encoding")

// Options controls how Load assembles the cascade.
type Options struct {
	// Dir is the innermost directory of the ancestor walk. Empty means the
	// process working directory.
	Dir string
	// FileName overrides DefaultFileName.
	FileName string
	// Override is loaded last, after the ancestor walk.
	Override string
	// DefaultsOnly skips the ancestor walk and any override.
	DefaultsOnly bool
	Logger       *slog.Logger
}

// Engine is a frozen directive store plus the list of files that built it.
type Engine struct {
	store   *Store
	sources []string
}

// Load builds an Engine from the embedded defaults and the configured files.
// Missing or unreadable files are skipped; a UTF-16 file aborts the load.
func Load(opts Options) (*Engine, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "config")

	engine := &Engine{store: NewStore()}
	Extend(engine.store, defaultDocument, "defaults", logger)
	engine.sources = append(engine.sources, "defaults")
	if opts.DefaultsOnly {
		return engine, nil
	}

	paths, err := cascadePaths(opts.Dir, opts.FileName)
	if err != nil {
		return nil, err
	}
	if override := strings.TrimSpace(opts.Override); override != "" {
		paths = append(paths, override)
	}
	for _, path := range paths {
		loaded, err := engine.extendFile(path, logger)
		if err != nil {
			return nil, err
		}
		if loaded {
			engine.sources = append(engine.sources, path)
		}
	}
	return engine, nil
}

// Defaults returns an Engine holding only the embedded defaults.
func Defaults() *Engine {
	engine, _ := Load(Options{DefaultsOnly: true})
	return engine
}

// FromDocuments builds an Engine from the embedded defaults followed by the
// given documents, in order.
func FromDocuments(documents ...string) *Engine {
	engine := Defaults()
	for i, doc := range documents {
		name := fmt.Sprintf("document-%d", i+1)
		Extend(engine.store, doc, name, nil)
		engine.sources = append(engine.sources, name)
	}
	return engine
}

// DefaultDocument returns the embedded default directives.
func DefaultDocument() string {
	return defaultDocument
}

// cascadePaths lists candidate files from the outermost ancestor down to dir.
// Ancestors that collapse onto the filesystem root are visited once.
func cascadePaths(dir, fileName string) ([]string, error) {
	if strings.TrimSpace(fileName) == "" {
		fileName = DefaultFileName
	}
	if strings.TrimSpace(dir) == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve config directory %q: %w", dir, err)
	}

	levels := make([]string, 0, MaxDepth-1)
	current := abs
	for len(levels) < MaxDepth-1 {
		levels = append(levels, current)
		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}

	paths := make([]string, 0, len(levels))
	for i := len(levels) - 1; i >= 0; i-- {
		paths = append(paths, filepath.Join(levels[i], fileName))
	}
	return paths, nil
}

func (e *Engine) extendFile(path string, logger *slog.Logger) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, nil
	}
	document, err := decodeDocument(data)
	if err != nil {
		return false, fmt.Errorf("%s: %w", path, err)
	}
	logger.Debug("loading config file", logging.String("path", path))
	Extend(e.store, document, path, logger)
	return true, nil
}

// decodeDocument rejects UTF-16/UCS-2 input and strips a UTF-8 byte-order mark.
func decodeDocument(data []byte) (string, error) {
	if len(data) >= 2 && (data[0] == 0xFF || data[1] == 0xFF) {
		return "", fmt.Errorf("%w: use UTF-8 or ASCII", ErrUnsupportedEncoding)
	}
	// other bytes pass through untouched, valid UTF-8 or not
	return string(bytes.TrimPrefix(data, utf8BOM)), nil
}

// Store exposes the underlying directive store.
func (e *Engine) Store() *Store {
	return e.store
}

// Sources lists the loaded documents in load order.
func (e *Engine) Sources() []string {
	out := make([]string, len(e.sources))
	copy(out, e.sources)
	return out
}

// Resolve resolves key for condition with vars.
func (e *Engine) Resolve(key, condition string, vars Vars) (string, bool) {
	return e.store.Resolve(key, condition, vars)
}

// String resolves key with no condition context and no variables.
func (e *Engine) String(key string) string {
	value, _ := e.store.Resolve(key, "", nil)
	return value
}

// StringFor resolves key for condition with no variables.
func (e *Engine) StringFor(key, condition string) string {
	value, _ := e.store.Resolve(key, condition, nil)
	return value
}

// StringOr resolves key with no condition, falling back when absent.
func (e *Engine) StringOr(key, fallback string) string {
	if value, ok := e.store.Resolve(key, "", nil); ok {
		return value
	}
	return fallback
}

// Bool reads a boolean directive for condition.
func (e *Engine) Bool(key, condition string) bool {
	return e.store.Bool(key, condition)
}

// Int reads an integer directive for condition.
func (e *Engine) Int(key, condition string) int {
	return e.store.Int(key, condition)
}

// Float reads a floating-point directive for condition.
func (e *Engine) Float(key, condition string) float64 {
	return e.store.Float(key, condition)
}

// Lines reads a newline-separated list directive.
func (e *Engine) Lines(key, condition string, vars Vars) []string {
	return e.store.Lines(key, condition, vars)
}
