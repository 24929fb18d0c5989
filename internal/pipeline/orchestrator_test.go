package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	assert_ "github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/411A/lms-archiver"
	"github.com/411A/lms-archiver/internal/ledger"
)

func testCourse() lms_archiver.Course {
	return lms_archiver.Course{ID: "165057", Name: "Networks"}
}

func descriptors(n int) []lms_archiver.RecordingDescriptor {
	ds := make([]lms_archiver.RecordingDescriptor, 0, n)
	for i := 1; i <= n; i++ {
		ds = append(ds, testDescriptor(i))
	}
	return ds
}

func TestOrchestratorFullRunIsIdempotent(t *testing.T) {
	assert := assert_.New(t)
	require := require.New(t)
	cfg := testConfig(t)
	statePath := filepath.Join(t.TempDir(), "downloaded.json")
	led, err := ledger.Load(statePath)
	require.NoError(err)

	course := testCourse()
	nav := &fakeNavigator{
		courses:    []lms_archiver.Course{course},
		recordings: map[string][]lms_archiver.RecordingDescriptor{course.ID: descriptors(2)},
	}
	ext := &fakeExtractor{}
	orchestrator := NewOrchestrator(nav, ext, led, cfg)

	summaries, err := orchestrator.Run(context.Background(), "")
	require.NoError(err)
	require.Len(summaries, 1)
	assert.Equal(2, summaries[0].Downloaded)
	assert.Equal(2, summaries[0].Extracted)
	assert.Equal(0, summaries[0].Skipped)
	assert.Equal(0, summaries[0].Failed)
	assert.NoError(summaries[0].Err)

	stateAfterFirst, err := os.ReadFile(statePath)
	require.NoError(err)

	// Second run against the unchanged listing: no new work, no state change.
	summaries, err = orchestrator.Run(context.Background(), "")
	require.NoError(err)
	require.Len(summaries, 1)
	assert.Equal(0, summaries[0].Downloaded)
	assert.Equal(0, summaries[0].Extracted)
	assert.Equal(2, summaries[0].Skipped)
	assert.Equal(2, nav.downloads)
	assert.Equal(2, ext.calls)

	stateAfterSecond, err := os.ReadFile(statePath)
	require.NoError(err)
	assert.Equal(string(stateAfterFirst), string(stateAfterSecond))
}

func TestOrchestratorNeverRefetchesExtractedRecordings(t *testing.T) {
	assert := assert_.New(t)
	require := require.New(t)
	cfg := testConfig(t)

	course := testCourse()
	key := course.Key()
	desc := testDescriptor(1)

	// A migrated legacy ledger: the media is recorded but no archive is,
	// and the archive itself is long gone from disk.
	statePath := filepath.Join(t.TempDir(), "downloaded.json")
	legacy := fmt.Sprintf(`{%q: [%q]}`, key, desc.MediaFilename())
	require.NoError(os.WriteFile(statePath, []byte(legacy), 0644))
	led, err := ledger.Load(statePath)
	require.NoError(err)

	mediaPath := filepath.Join(cfg.OutputDir, key, desc.MediaFilename())
	require.NoError(os.MkdirAll(filepath.Dir(mediaPath), 0775))
	require.NoError(os.WriteFile(mediaPath, []byte("video bytes"), 0644))

	nav := &fakeNavigator{
		courses:    []lms_archiver.Course{course},
		recordings: map[string][]lms_archiver.RecordingDescriptor{course.ID: {desc}},
	}
	ext := &fakeExtractor{}

	summaries, err := NewOrchestrator(nav, ext, led, cfg).Run(context.Background(), "")
	require.NoError(err)
	require.Len(summaries, 1)
	assert.Equal(1, summaries[0].Skipped)
	assert.Equal(0, summaries[0].Downloaded)
	assert.Equal(0, summaries[0].Failed)
	assert.Equal(0, nav.downloads)
	assert.Equal(0, ext.calls)
}

func TestOrchestratorCountsBackfilledMediaAsSkipped(t *testing.T) {
	assert := assert_.New(t)
	require := require.New(t)
	cfg := testConfig(t)
	led := testLedger(t)

	course := testCourse()
	desc := testDescriptor(1)

	// Media present on disk but unknown to the ledger; the archive still has
	// to be fetched, after which extraction backfills instead of extracting.
	mediaPath := filepath.Join(cfg.OutputDir, course.Key(), desc.MediaFilename())
	require.NoError(os.MkdirAll(filepath.Dir(mediaPath), 0775))
	require.NoError(os.WriteFile(mediaPath, []byte("video bytes"), 0644))

	nav := &fakeNavigator{
		courses:    []lms_archiver.Course{course},
		recordings: map[string][]lms_archiver.RecordingDescriptor{course.ID: {desc}},
	}
	ext := &fakeExtractor{}

	summaries, err := NewOrchestrator(nav, ext, led, cfg).Run(context.Background(), "")
	require.NoError(err)
	require.Len(summaries, 1)
	assert.Equal(1, summaries[0].Downloaded)
	assert.Equal(1, summaries[0].Skipped)
	assert.Equal(0, summaries[0].Extracted)
	assert.Equal(0, ext.calls)
	assert.True(led.HasMedia(course.Key(), desc.MediaFilename()))
}

func TestOrchestratorIsolatesRecordingFailures(t *testing.T) {
	assert := assert_.New(t)
	require := require.New(t)
	cfg := testConfig(t)
	led := testLedger(t)

	course := testCourse()
	ds := descriptors(4)
	nav := &fakeNavigator{
		courses:    []lms_archiver.Course{course},
		recordings: map[string][]lms_archiver.RecordingDescriptor{course.ID: ds},
	}
	ext := &fakeExtractor{fail: map[string]error{
		ds[1].ArchiveFilename(): errors.New("archive unreadable"),
	}}

	summaries, err := NewOrchestrator(nav, ext, led, cfg).Run(context.Background(), "")
	require.NoError(err)
	require.Len(summaries, 1)

	// Recording #2 failed, but #1, #3 and #4 still went through.
	assert.Equal(4, summaries[0].Downloaded)
	assert.Equal(3, summaries[0].Extracted)
	assert.Equal(1, summaries[0].Failed)
	assert.Error(summaries[0].Err)
	key := course.Key()
	assert.True(led.HasMedia(key, ds[0].MediaFilename()))
	assert.False(led.HasMedia(key, ds[1].MediaFilename()))
	assert.True(led.HasMedia(key, ds[2].MediaFilename()))
	assert.True(led.HasMedia(key, ds[3].MediaFilename()))
}

func TestOrchestratorSkipsExtractionAfterFailedDownload(t *testing.T) {
	assert := assert_.New(t)
	require := require.New(t)
	cfg := testConfig(t)
	led := testLedger(t)

	course := testCourse()
	ds := descriptors(2)
	nav := &fakeNavigator{
		courses:    []lms_archiver.Course{course},
		recordings: map[string][]lms_archiver.RecordingDescriptor{course.ID: ds},
		failRefs:   map[string]error{ds[0].DownloadRef: errors.New("stalled")},
	}
	ext := &fakeExtractor{}

	summaries, err := NewOrchestrator(nav, ext, led, cfg).Run(context.Background(), "")
	require.NoError(err)

	assert.Equal(1, summaries[0].Failed)
	assert.Equal(1, summaries[0].Downloaded)
	assert.Equal(1, summaries[0].Extracted)
	// Only the successfully downloaded recording reached extraction.
	assert.Equal(1, ext.calls)
	assert.False(led.HasArchive(course.Key(), ds[0].ArchiveFilename()))
}

func TestOrchestratorCourseFilter(t *testing.T) {
	assert := assert_.New(t)
	require := require.New(t)
	cfg := testConfig(t)
	led := testLedger(t)

	a := lms_archiver.Course{ID: "1", Name: "A"}
	b := lms_archiver.Course{ID: "2", Name: "B"}
	nav := &fakeNavigator{
		courses: []lms_archiver.Course{a, b},
		recordings: map[string][]lms_archiver.RecordingDescriptor{
			"1": descriptors(1),
			"2": descriptors(1),
		},
	}
	orchestrator := NewOrchestrator(nav, &fakeExtractor{}, led, cfg)

	summaries, err := orchestrator.Run(context.Background(), "2")
	require.NoError(err)
	require.Len(summaries, 1)
	assert.Equal(b, summaries[0].Course)

	_, err = orchestrator.Run(context.Background(), "999")
	assert.ErrorIs(err, ErrCourseNotFound)
}

func TestOrchestratorHandlesEmptyCourse(t *testing.T) {
	assert := assert_.New(t)
	require := require.New(t)
	cfg := testConfig(t)
	led := testLedger(t)

	course := testCourse()
	nav := &fakeNavigator{courses: []lms_archiver.Course{course}}

	summaries, err := NewOrchestrator(nav, &fakeExtractor{}, led, cfg).Run(context.Background(), "")
	require.NoError(err)
	require.Len(summaries, 1)
	assert.Equal(0, summaries[0].Recordings)
	assert.Equal(0, summaries[0].Failed)
	assert.NoError(summaries[0].Err)
}

func TestOrchestratorSkipsCourseWithBrokenListing(t *testing.T) {
	assert := assert_.New(t)
	require := require.New(t)
	cfg := testConfig(t)
	led := testLedger(t)

	broken := lms_archiver.Course{ID: "1", Name: "Broken"}
	healthy := lms_archiver.Course{ID: "2", Name: "Healthy"}
	nav := &fakeNavigator{
		courses:    []lms_archiver.Course{broken, healthy},
		recordings: map[string][]lms_archiver.RecordingDescriptor{"2": descriptors(1)},
		listErrs:   map[string]error{"1": errors.New("listing malformed")},
	}

	summaries, err := NewOrchestrator(nav, &fakeExtractor{}, led, cfg).Run(context.Background(), "")
	require.NoError(err)
	require.Len(summaries, 2)
	assert.Equal(1, summaries[0].Failed)
	assert.Error(summaries[0].Err)
	assert.Equal(1, summaries[1].Extracted)
}
