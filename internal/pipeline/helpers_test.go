package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/411A/lms-archiver"
	"github.com/411A/lms-archiver/internal/ledger"
)

// fakeNavigator serves canned courses and recordings, writing fixed content
// for downloads. Refs listed in failRefs always fail.
type fakeNavigator struct {
	courses    []lms_archiver.Course
	recordings map[string][]lms_archiver.RecordingDescriptor
	listErrs   map[string]error
	failRefs   map[string]error
	downloads  int
	attempts   int
}

func (f *fakeNavigator) Login(context.Context, lms_archiver.Credentials) error {
	return nil
}

func (f *fakeNavigator) ListCourses(context.Context) ([]lms_archiver.Course, error) {
	return f.courses, nil
}

func (f *fakeNavigator) ListRecordings(_ context.Context, course lms_archiver.Course) ([]lms_archiver.RecordingDescriptor, error) {
	if err := f.listErrs[course.ID]; err != nil {
		return nil, err
	}
	return f.recordings[course.ID], nil
}

func (f *fakeNavigator) Download(_ context.Context, ref string, destPath string) error {
	f.attempts++
	if err := f.failRefs[ref]; err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0775); err != nil {
		return err
	}
	if err := os.WriteFile(destPath, []byte("archive:"+ref), 0644); err != nil {
		return err
	}
	f.downloads++
	return nil
}

// fakeExtractor materializes canned file names into the destination dir.
// Archives listed in fail always fail; archives in contents get those files,
// everything else gets a single video named after the archive stem.
type fakeExtractor struct {
	contents map[string][]string
	fail     map[string]error
	calls    int
}

func (f *fakeExtractor) Extract(_ context.Context, archivePath string, destDir string) ([]string, error) {
	f.calls++
	base := filepath.Base(archivePath)
	if err := f.fail[base]; err != nil {
		return nil, err
	}
	names, ok := f.contents[base]
	if !ok {
		names = []string{lms_archiver.MediaFilenameFor(base)}
	}
	var paths []string
	for _, name := range names {
		path := filepath.Join(destDir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0775); err != nil {
			return nil, err
		}
		if err := os.WriteFile(path, []byte("media:"+name), 0644); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func testDescriptor(index int) lms_archiver.RecordingDescriptor {
	return lms_archiver.RecordingDescriptor{
		Index:       index,
		Timestamp:   lms_archiver.RecordingTimestamp{Date: "1404-08-04", Hour: 15, Minute: 7},
		DownloadRef: fmt.Sprintf("ref-%02d", index),
	}
}

func testConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	return Config{
		DownloadsDir:    filepath.Join(dir, "downloads"),
		OutputDir:       filepath.Join(dir, "extracted"),
		DownloadTimeout: time.Second,
		Attempts:        3,
		RetryDelay:      time.Millisecond,
	}
}

func testLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	l, err := ledger.Load(filepath.Join(t.TempDir(), "downloaded.json"))
	require.NoError(t, err)
	return l
}
