package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofrs/flock"
)

// Fixed names inside a project directory.
const (
	LockFileName  = ".splicer.lock"
	StateDirName  = ".splicer"
	JournalName   = "journal.db"
	SyncFormat    = "flac"
	NoiseProfile  = "f32"
	TrackExt      = "track"
	procSuffix    = "-proc"
	rawSuffix     = "-raw"
	syncSuffix    = "-sync"
	noiserSuffix  = "-noiser"
	noiseSuffix   = "-noise"
	stageInfix    = "-aproc"
	marksBaseName = "marks"
)

// ErrLocked reports that another splicer run holds the workspace lock.
var ErrLocked = errors.New("workspace is locked by another splicer run")

// Workspace resolves hand-off file names in one directory.
type Workspace struct {
	Dir string
	// Format is the container extension of intermediate audio files.
	Format string
}

// New returns a Workspace rooted at dir. An empty dir means the working
// directory.
func New(dir, format string) Workspace {
	if strings.TrimSpace(dir) == "" {
		dir = "."
	}
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	return Workspace{Dir: dir, Format: format}
}

// Path joins name onto the workspace directory.
func (w Workspace) Path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(w.Dir, name)
}

// RawFile is a demuxed capture awaiting processing.
func (w Workspace) RawFile(base string) string {
	return w.Path(base + rawSuffix + "." + w.Format)
}

// SyncFile is an externally synchronized capture.
func (w Workspace) SyncFile(base string) string {
	return w.Path(base + syncSuffix + "." + SyncFormat)
}

// NoiserFile is the noise-reduced intermediate.
func (w Workspace) NoiserFile(base string) string {
	return w.Path(base + noiserSuffix + "." + w.Format)
}

// NoiseProfile is the learned noise profile.
func (w Workspace) NoiseProfile(base string) string {
	return w.Path(base + noiseSuffix + "." + NoiseProfile)
}

// StageFile is the output of processing step i.
func (w Workspace) StageFile(base string, i int) string {
	return w.Path(base + stageInfix + strconv.Itoa(i) + "." + w.Format)
}

// ProcFile is the processed track.
func (w Workspace) ProcFile(base string) string {
	return w.Path(base + procSuffix + "." + w.Format)
}

// TrackFile marks a video stream for clipping.
func (w Workspace) TrackFile(title string) string {
	return w.Path(title + "." + TrackExt)
}

// MarksFile is the bookmark listing for a restart segment.
func (w Workspace) MarksFile(suffix string) string {
	return w.Path(marksBaseName + suffix + ".txt")
}

// OutputFile is the clipped output of base for a restart segment.
func (w Workspace) OutputFile(base, suffix, ext string) string {
	return w.Path(base + suffix + "." + ext)
}

// StateDir holds splicer's own bookkeeping.
func (w Workspace) StateDir() string {
	return w.Path(StateDirName)
}

// JournalPath is the run journal database.
func (w Workspace) JournalPath() string {
	return filepath.Join(w.StateDir(), JournalName)
}

// BaseFromProc strips the processed-track suffix from a file name.
func (w Workspace) BaseFromProc(name string) (string, bool) {
	return strings.CutSuffix(filepath.Base(name), procSuffix+"."+w.Format)
}

// BaseFromRaw strips the raw-capture suffix from a file name.
func (w Workspace) BaseFromRaw(name string) (string, bool) {
	return strings.CutSuffix(filepath.Base(name), rawSuffix+"."+w.Format)
}

// BaseFromSync strips the synchronized-capture suffix from a file name.
func BaseFromSync(name string) (string, bool) {
	return strings.CutSuffix(filepath.Base(name), syncSuffix+"."+SyncFormat)
}

// RestartSuffix names restart segment i (0-based) of a timeline with total
// restarts. A timeline without restarts has no suffix.
func RestartSuffix(i, total int) string {
	if total == 0 {
		return ""
	}
	return strconv.Itoa(i + 1)
}

// Exists reports whether path names an existing file.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Lock is an exclusive advisory lock on a workspace.
type Lock struct {
	path string
	lock *flock.Flock
}

// Acquire takes the workspace lock without blocking.
func (w Workspace) Acquire() (*Lock, error) {
	path := w.Path(LockFileName)
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (%s)", ErrLocked, path)
	}
	return &Lock{path: path, lock: lock}, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// Release unlocks the workspace. It is safe to call more than once.
func (l *Lock) Release() error {
	if l == nil || l.lock == nil {
		return nil
	}
	err := l.lock.Unlock()
	l.lock = nil
	return err
}
