package staging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/bmatcuk/doublestar"

	"splicer/internal/logging"
	"splicer/internal/workspace"
)

// CleanResult contains the outcome of a cleanup operation.
type CleanResult struct {
	Removed []string
	Errors  []CleanupError
}

// CleanupError pairs a file path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// FileInfo describes one intermediate file.
type FileInfo struct {
	Name    string
	Path    string
	ModTime time.Time
	Size    int64
}

// Patterns returns the globs matching intermediate files of a workspace
// holding tracks in format.
func Patterns(format string) []string {
	return []string{
		"*-noiser." + format,
		"*-aproc[0-9]*." + format,
		"*-noise." + workspace.NoiseProfile,
	}
}

// ListIntermediates returns the intermediate files of ws sorted by name.
func ListIntermediates(ws workspace.Workspace) ([]FileInfo, error) {
	entries, err := os.ReadDir(ws.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	patterns := Patterns(ws.Format)

	var files []FileInfo
	for _, entry := range entries {
		if entry.IsDir() || !matchesAny(patterns, entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, FileInfo{
			Name:    entry.Name(),
			Path:    filepath.Join(ws.Dir, entry.Name()),
			ModTime: info.ModTime(),
			Size:    info.Size(),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// CleanIntermediates removes intermediate files of ws last modified more than
// maxAge ago. A zero maxAge removes all of them.
func CleanIntermediates(ctx context.Context, ws workspace.Workspace, maxAge time.Duration, logger *slog.Logger) CleanResult {
	if logger == nil {
		logger = logging.NewNop()
	}
	result := CleanResult{}

	files, err := ListIntermediates(ws)
	if err != nil {
		result.Errors = append(result.Errors, CleanupError{Path: ws.Dir, Error: err})
		return result
	}

	cutoff := time.Now().Add(-maxAge)
	for _, file := range files {
		if ctx.Err() != nil {
			break
		}
		if maxAge > 0 && !file.ModTime.Before(cutoff) {
			continue
		}
		if err := os.Remove(file.Path); err != nil && !os.IsNotExist(err) {
			result.Errors = append(result.Errors, CleanupError{Path: file.Path, Error: err})
			logger.WarnContext(ctx, "failed to remove intermediate file",
				logging.String("path", file.Path),
				logging.Error(err),
				logging.String(logging.FieldEventType, "staging_cleanup_failed"),
			)
			continue
		}
		result.Removed = append(result.Removed, file.Path)
		logger.InfoContext(ctx, "removed intermediate file",
			logging.String("path", file.Path),
			logging.Duration("age", time.Since(file.ModTime)),
			logging.Int64("bytes", file.Size),
			logging.String(logging.FieldEventType, "staging_cleanup"),
		)
	}
	return result
}

func matchesAny(patterns []string, name string) bool {
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, name); ok {
			return true
		}
	}
	return false
}
