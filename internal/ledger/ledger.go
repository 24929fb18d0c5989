package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/411A/lms-archiver/generic"
)

var (
	ErrCorruptState  = errors.New("ledger content is not valid JSON")
	ErrUnknownCourse = errors.New("course not present in ledger")
)

// DefaultPath is the conventional ledger location, kept for compatibility
// with state files written by earlier versions.
const DefaultPath = "downloaded.json"

// CourseState is everything the ledger knows about one course: which archives
// have been downloaded, which media files have been extracted, and where.
type CourseState struct {
	rars           generic.Set[string]
	mp4s           generic.Set[string]
	downloadFolder string
	extractFolder  string
}

func newCourseState(downloadFolder, extractFolder string) *CourseState {
	return &CourseState{
		rars:           generic.NewSet[string](),
		mp4s:           generic.NewSet[string](),
		downloadFolder: downloadFolder,
		extractFolder:  extractFolder,
	}
}

func (s *CourseState) Archives() []string     { return sorted(s.rars.ToSlice()) }
func (s *CourseState) Media() []string        { return sorted(s.mp4s.ToSlice()) }
func (s *CourseState) DownloadFolder() string { return s.downloadFolder }
func (s *CourseState) ExtractFolder() string  { return s.extractFolder }

// A Ledger is the durable record of completed downloads and extractions,
// keyed by course key. Every mutation is flushed to disk before it returns,
// so a crash loses at most the in-flight unit of work.
type Ledger struct {
	path    string
	courses map[string]*CourseState
	log     *zap.SugaredLogger
}

// Load reads the ledger from path, creating an empty one if the file does
// not exist. Entries in the legacy shape (a bare list of media filenames) are
// migrated to the structured shape and the migrated ledger is persisted
// before Load returns. Unparseable content is backed up to <path>.corrupt and
// replaced with an empty ledger; the archives on disk remain the source of
// truth, so this is recoverable.
func Load(path string) (*Ledger, error) {
	l := &Ledger{
		path:    path,
		courses: make(map[string]*CourseState),
		log:     zap.S().Named("ledger"),
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return l, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}

	courses, migrated, err := decode(data)
	if err != nil {
		l.log.Warnw("recovering from corrupt ledger with empty state", "path", path, "error", err)
		if err := backupCorrupt(path, data); err != nil {
			return nil, err
		}
		return l, nil
	}
	l.courses = courses

	if migrated {
		l.log.Infow("migrated legacy ledger entries", "path", path)
		if err := l.persist(); err != nil {
			return nil, fmt.Errorf("failed to persist migrated ledger: %w", err)
		}
	}
	return l, nil
}

// EnsureCourse creates the course's entry if it is missing, recording its
// resolved folders, and persists the change.
func (l *Ledger) EnsureCourse(courseKey, downloadFolder, extractFolder string) error {
	st, ok := l.courses[courseKey]
	if !ok {
		l.courses[courseKey] = newCourseState(downloadFolder, extractFolder)
		return l.persist()
	}
	// Folders from migrated legacy entries are empty; fill them in.
	if st.downloadFolder == "" || st.extractFolder == "" {
		if st.downloadFolder == "" {
			st.downloadFolder = downloadFolder
		}
		if st.extractFolder == "" {
			st.extractFolder = extractFolder
		}
		return l.persist()
	}
	return nil
}

// Course returns the state for a course key, or nil if the course is unknown.
func (l *Ledger) Course(courseKey string) *CourseState {
	return l.courses[courseKey]
}

// CourseKeys returns all known course keys in sorted order.
func (l *Ledger) CourseKeys() []string {
	keys := make([]string, 0, len(l.courses))
	for k := range l.courses {
		keys = append(keys, k)
	}
	return sorted(keys)
}

// HasArchive reports whether the archive is recorded as downloaded.
func (l *Ledger) HasArchive(courseKey, filename string) bool {
	st, ok := l.courses[courseKey]
	return ok && st.rars.Contains(filename)
}

// HasMedia reports whether the media file is recorded as extracted.
func (l *Ledger) HasMedia(courseKey, filename string) bool {
	st, ok := l.courses[courseKey]
	return ok && st.mp4s.Contains(filename)
}

// RecordArchive marks the archive as downloaded and persists the ledger.
// Recording the same filename again is a no-op.
func (l *Ledger) RecordArchive(courseKey, filename string) error {
	st, ok := l.courses[courseKey]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCourse, courseKey)
	}
	if !st.rars.Add(filename) {
		return nil
	}
	return l.persist()
}

// RecordMedia marks the media file as extracted and persists the ledger.
// Recording the same filename again is a no-op.
func (l *Ledger) RecordMedia(courseKey, filename string) error {
	st, ok := l.courses[courseKey]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCourse, courseKey)
	}
	if !st.mp4s.Add(filename) {
		return nil
	}
	return l.persist()
}

// persist writes the whole ledger to a temporary file and atomically renames
// it over the real one, so a reader can never observe a partial write.
func (l *Ledger) persist() error {
	data, err := json.MarshalIndent(encode(l.courses), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode ledger: %w", err)
	}
	dir := filepath.Dir(l.path)
	tmp, err := os.CreateTemp(dir, ".ledger-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temporary ledger file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err = tmp.Write(data); err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write temporary ledger file: %w", err)
	}
	if err := os.Rename(tmpPath, l.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to replace ledger file: %w", err)
	}
	return nil
}

func backupCorrupt(path string, data []byte) error {
	backupPath := path + ".corrupt"
	if err := os.WriteFile(backupPath, data, 0644); err != nil {
		return fmt.Errorf("failed to back up corrupt ledger to %s: %w", backupPath, err)
	}
	return nil
}

func sorted(items []string) []string {
	sort.Strings(items)
	return items
}
