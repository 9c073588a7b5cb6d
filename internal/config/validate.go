package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate reports directive values that would make every stage fail. It does
// not second-guess filter templates, which are opaque to splicer.
func (e *Engine) Validate() error {
	var problems []string

	if e.FFmpegBinary() == "" {
		problems = append(problems, KeyFFmpeg+" must not be empty")
	}
	if e.FFprobeBinary() == "" {
		problems = append(problems, KeyFFprobe+" must not be empty")
	}
	if format := e.RawFormat(); format == "" || strings.ContainsAny(format, `/\`) {
		problems = append(problems, fmt.Sprintf("%s must be a bare extension, got %q", KeyRawFormat, format))
	}
	if steps := e.Int("steps.aproc", ""); steps < 0 {
		problems = append(problems, fmt.Sprintf("steps.aproc must be >= 0, got %d", steps))
	}
	if v := e.Float("marktofilter.fflen", ""); v < 0 {
		problems = append(problems, fmt.Sprintf("marktofilter.fflen must be >= 0, got %g", v))
	}
	if v := e.Float("marktofilter.minffspeed", ""); v < 0 {
		problems = append(problems, fmt.Sprintf("marktofilter.minffspeed must be >= 0, got %g", v))
	}
	if v := e.Int("scheduler.maxjobs", ""); v < 0 {
		problems = append(problems, fmt.Sprintf("scheduler.maxjobs must be >= 0, got %d", v))
	}
	switch format := strings.ToLower(strings.TrimSpace(e.String(KeyLogFormat))); format {
	case "", "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("%s: unsupported value %q", KeyLogFormat, format))
	}

	if len(problems) == 0 {
		return nil
	}
	return errors.New("invalid configuration: " + strings.Join(problems, "; "))
}
