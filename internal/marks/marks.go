package marks

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Opcode identifies a mark's meaning.
type Opcode byte

// Known opcodes.
const (
	In             Opcode = 'i'
	Out            Opcode = 'o'
	FastForwardOut Opcode = 'f'
	NormalIn       Opcode = 'n'
	Restart        Opcode = 'r'
	Annotate       Opcode = 'm'
)

// PassThroughEnd is the out mark synthesized when no mark source exists.
const PassThroughEnd = 86400

// Known reports whether op is one of the defined opcodes.
func (op Opcode) Known() bool {
	switch op {
	case In, Out, FastForwardOut, NormalIn, Restart, Annotate:
		return true
	}
	return false
}

// String returns the opcode's name.
func (op Opcode) String() string {
	switch op {
	case In:
		return "in"
	case Out:
		return "out"
	case FastForwardOut:
		return "fast-forward-out"
	case NormalIn:
		return "normal-in"
	case Restart:
		return "restart"
	case Annotate:
		return "annotate"
	case 0:
		return "empty"
	}
	return fmt.Sprintf("unknown(%q)", byte(op))
}

// Mark is one timestamped edit decision.
type Mark struct {
	Op   Opcode
	Time float64
	// Line holds the source line without its terminator. It is empty for
	// synthesized marks.
	Line string
}

// Source yields marks in stream order.
type Source interface {
	Next() (Mark, bool)
	Err() error
}

// Reader is a single-pass Source backed by a line reader or a fixed list.
type Reader struct {
	scanner *bufio.Scanner
	fixed   []Mark
	closer  io.Closer
	err     error
}

// NewReader reads marks lazily from r, one per line. Lines whose first byte is
// not a known opcode are still returned so they can be passed through; the
// compiler ignores them.
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	return &Reader{scanner: scanner}
}

// PassThrough yields `in@0` then `out@86400`, keeping everything.
func PassThrough() *Reader {
	return &Reader{fixed: []Mark{
		{Op: In, Time: 0},
		{Op: Out, Time: PassThroughEnd},
	}}
}

// Open reads marks from path. A file that cannot be opened yields the
// pass-through sequence instead of an error.
func Open(path string) *Reader {
	if strings.TrimSpace(path) == "" {
		return PassThrough()
	}
	f, err := os.Open(path)
	if err != nil {
		return PassThrough()
	}
	r := NewReader(f)
	r.closer = f
	return r
}

// Next returns the next mark, or false at end of stream.
func (r *Reader) Next() (Mark, bool) {
	if r.scanner == nil {
		if len(r.fixed) == 0 {
			return Mark{}, false
		}
		m := r.fixed[0]
		r.fixed = r.fixed[1:]
		return m, true
	}
	if !r.scanner.Scan() {
		r.err = r.scanner.Err()
		return Mark{}, false
	}
	return ParseLine(r.scanner.Text()), true
}

// Err reports a read failure that ended the stream early.
func (r *Reader) Err() error {
	return r.err
}

// Close releases the underlying file, if Open created one.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	err := r.closer.Close()
	r.closer = nil
	return err
}

// ParseLine decodes one mark line. A timestamp that does not parse reads as 0.
func ParseLine(line string) Mark {
	line = strings.TrimSuffix(line, "\r")
	if line == "" {
		return Mark{}
	}
	return Mark{Op: Opcode(line[0]), Time: leadingFloat(line[1:]), Line: line}
}

// leadingFloat parses the longest numeric prefix of s after leading spaces.
func leadingFloat(s string) float64 {
	s = strings.TrimLeft(s, " \t")
	end := 0
	for end < len(s) && strings.IndexByte("0123456789+-.eE", s[end]) >= 0 {
		end++
	}
	for ; end > 0; end-- {
		if v, err := strconv.ParseFloat(s[:end], 64); err == nil {
			return v
		}
	}
	return 0
}

// Write emits m in stream form. Marks read from a stream are written back
// verbatim.
func Write(w io.Writer, m Mark) error {
	var err error
	switch {
	case m.Line != "":
		_, err = fmt.Fprintf(w, "%s\n", m.Line)
	case m.Op == 0:
		_, err = io.WriteString(w, "\n")
	default:
		_, err = fmt.Fprintf(w, "%c%f\n", byte(m.Op), m.Time)
	}
	return err
}
