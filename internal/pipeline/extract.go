package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/411A/lms-archiver"
	"github.com/411A/lms-archiver/generic"
	"github.com/411A/lms-archiver/internal/ledger"
	"github.com/411A/lms-archiver/util"
)

var ErrNoMediaFound = errors.New("no media file found in archive")

// Extraction unpacks one downloaded archive and relocates its video to the
// course's extract folder under the deterministic media name.
type Extraction struct {
	extractor lms_archiver.Extractor
	ledger    *ledger.Ledger
	attempts  int
	delay     time.Duration
	log       *zap.SugaredLogger
}

func NewExtraction(extractor lms_archiver.Extractor, led *ledger.Ledger, config Config) *Extraction {
	config = config.withDefaults()
	return &Extraction{
		extractor: extractor,
		ledger:    led,
		attempts:  config.Attempts,
		delay:     config.RetryDelay,
		log:       zap.S().Named("extract"),
	}
}

// Run extracts the media for one downloaded archive into extractFolder. A
// non-nil error means the ledger could not be persisted and the run must
// stop; extraction failures are reported through the Outcome and leave the
// archive in place for manual inspection.
func (e *Extraction) Run(ctx context.Context, courseKey string, archivePath string, extractFolder string) (Outcome, error) {
	mediaName := lms_archiver.MediaFilenameFor(filepath.Base(archivePath))
	mediaPath := filepath.Join(extractFolder, mediaName)
	log := e.log.With("course", courseKey, "media", mediaName, "job_id", uuid.NewString())

	if e.ledger.HasMedia(courseKey, mediaName) && fileExists(mediaPath) {
		log.Debug("media already extracted, skipping")
		return skipped(), nil
	}
	if fileExists(mediaPath) {
		log.Info("media present on disk but not in ledger, backfilling")
		if err := e.ledger.RecordMedia(courseKey, mediaName); err != nil {
			return Outcome{}, err
		}
		return skipped(), nil
	}

	scratchDir := filepath.Join(os.TempDir(), "lms-archiver-"+uuid.NewString())
	if err := os.MkdirAll(scratchDir, 0775); err != nil {
		return failed(fmt.Errorf("failed to create scratch dir: %w", err)), nil
	}
	defer os.RemoveAll(scratchDir)

	log.Infow("extracting archive", "archive", archivePath)
	res := generic.Retry(ctx, e.attempts, e.delay, func() ([]string, error) {
		return e.extractor.Extract(ctx, archivePath, scratchDir)
	})
	if res.IsErr() {
		return failed(fmt.Errorf("failed to extract %s: %w", filepath.Base(archivePath), res.Error)), nil
	}
	files := res.Value

	selected, err := selectMedia(files)
	if err != nil {
		return failed(fmt.Errorf("%s: %w", filepath.Base(archivePath), err)), nil
	}
	if count := countMedia(files); count > 1 {
		log.Warnw("multiple media files in archive, picking first by path order", "count", count, "selected", selected)
	}

	if err := util.MoveFile(selected, mediaPath); err != nil {
		return failed(fmt.Errorf("failed to move extracted media: %w", err)), nil
	}
	if err := e.ledger.RecordMedia(courseKey, mediaName); err != nil {
		return Outcome{}, err
	}
	log.Info("extraction complete")
	return extracted(), nil
}

// selectMedia picks the media file to keep: the first match in lexicographic
// path order, so the choice is deterministic across runs.
func selectMedia(files []string) (string, error) {
	media := mediaFiles(files)
	if len(media) == 0 {
		return "", ErrNoMediaFound
	}
	return media[0], nil
}

func countMedia(files []string) int {
	return len(mediaFiles(files))
}

func mediaFiles(files []string) []string {
	var media []string
	for _, f := range files {
		if isMedia(f) {
			media = append(media, f)
		}
	}
	sort.Strings(media)
	return media
}

func isMedia(path string) bool {
	return strings.EqualFold(filepath.Ext(path), lms_archiver.MediaExt)
}
