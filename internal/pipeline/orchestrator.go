package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/411A/lms-archiver"
	"github.com/411A/lms-archiver/internal/ledger"
)

var ErrCourseNotFound = errors.New("course not found")

// Summary is the per-course tally reported to the user. Skipped counts
// recordings whose media was already in place, whether or not the archive
// had to be fetched first; Err aggregates the failure reasons for this
// course.
type Summary struct {
	Course     lms_archiver.Course
	Recordings int
	Skipped    int
	Downloaded int
	Extracted  int
	Failed     int
	Err        error
}

type Config struct {
	DownloadsDir    string
	OutputDir       string
	DownloadTimeout time.Duration
	// Attempts and RetryDelay shape the retry schedule used by both pipeline
	// stages; zero values pick the defaults.
	Attempts   int
	RetryDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.DownloadTimeout <= 0 {
		c.DownloadTimeout = lms_archiver.DefaultDownloadTimeout
	}
	if c.Attempts < 1 {
		c.Attempts = defaultAttempts
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = defaultRetryDelay
	}
	return c
}

// Orchestrator drives the download and extraction pipelines across courses.
// Courses and recordings are processed sequentially so that every ledger
// write has a single, auditable ordering.
type Orchestrator struct {
	nav        lms_archiver.Navigator
	ledger     *ledger.Ledger
	config     Config
	downloader *Downloader
	extraction *Extraction
	log        *zap.SugaredLogger
}

func NewOrchestrator(nav lms_archiver.Navigator, extractor lms_archiver.Extractor, led *ledger.Ledger, config Config) *Orchestrator {
	config = config.withDefaults()
	return &Orchestrator{
		nav:        nav,
		ledger:     led,
		config:     config,
		downloader: NewDownloader(nav, led, config),
		extraction: NewExtraction(extractor, led, config),
		log:        zap.S().Named("orchestrator"),
	}
}

// Run processes every course, or just the one matching courseID if it is
// non-empty. A non-nil error means the run stopped early (unknown course ID,
// ledger durability failure, or cancellation); per-course problems are
// reported in the summaries instead.
func (o *Orchestrator) Run(ctx context.Context, courseID string) ([]Summary, error) {
	courses, err := o.nav.ListCourses(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	if courseID != "" {
		course, ok := findCourse(courses, courseID)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrCourseNotFound, courseID)
		}
		courses = []lms_archiver.Course{course}
	}

	summaries := make([]Summary, 0, len(courses))
	for _, course := range courses {
		if err := ctx.Err(); err != nil {
			return summaries, err
		}
		summary, err := o.processCourse(ctx, course)
		summaries = append(summaries, summary)
		if err != nil {
			return summaries, err
		}
	}
	return summaries, nil
}

// processCourse runs both pipelines over every recording of one course.
// Failures of individual recordings are tallied and aggregated, never
// aborting siblings; only ledger durability failures propagate as errors.
func (o *Orchestrator) processCourse(ctx context.Context, course lms_archiver.Course) (Summary, error) {
	key := course.Key()
	log := o.log.With("course", key)
	summary := Summary{Course: course}

	downloadFolder := filepath.Join(o.config.DownloadsDir, key)
	extractFolder := filepath.Join(o.config.OutputDir, key)
	for _, dir := range []string{downloadFolder, extractFolder} {
		if err := os.MkdirAll(dir, 0775); err != nil {
			summary.Err = err
			summary.Failed++
			return summary, nil
		}
	}
	if err := o.ledger.EnsureCourse(key, downloadFolder, extractFolder); err != nil {
		return summary, err
	}

	descriptors, err := o.nav.ListRecordings(ctx, course)
	if err != nil {
		// A malformed or unreachable listing skips this course, not the run.
		log.Errorw("failed to list recordings", "error", err)
		summary.Err = err
		summary.Failed++
		return summary, nil
	}
	summary.Recordings = len(descriptors)
	if len(descriptors) == 0 {
		log.Info("no offline recordings")
		return summary, nil
	}
	log.Infow("processing recordings", "count", len(descriptors))

	var problems error
	for _, desc := range descriptors {
		if err := ctx.Err(); err != nil {
			summary.Err = problems
			return summary, err
		}

		// A recording whose media is already in place needs neither stage;
		// going through the download check would re-fetch archives that were
		// cleaned up after extraction or never tracked by a legacy ledger.
		if o.ledger.HasMedia(key, desc.MediaFilename()) && fileExists(filepath.Join(extractFolder, desc.MediaFilename())) {
			log.Debugw("media already extracted, skipping recording", "media", desc.MediaFilename())
			summary.Skipped++
			continue
		}

		dl, err := o.downloader.Run(ctx, key, desc, downloadFolder)
		if err != nil {
			summary.Err = problems
			return summary, err
		}
		if dl.Status == StatusFailed {
			log.Errorw("recording failed", "archive", desc.ArchiveFilename(), "error", dl.Err)
			summary.Failed++
			problems = multierror.Append(problems, dl.Err)
			continue
		}
		if dl.Status == StatusDownloaded {
			summary.Downloaded++
		}

		archivePath := filepath.Join(downloadFolder, desc.ArchiveFilename())
		ext, err := o.extraction.Run(ctx, key, archivePath, extractFolder)
		if err != nil {
			summary.Err = problems
			return summary, err
		}
		switch ext.Status {
		case StatusFailed:
			log.Errorw("recording failed", "archive", desc.ArchiveFilename(), "error", ext.Err)
			summary.Failed++
			problems = multierror.Append(problems, ext.Err)
		case StatusExtracted:
			summary.Extracted++
		case StatusSkipped:
			summary.Skipped++
		}
	}
	summary.Err = problems
	return summary, nil
}

func findCourse(courses []lms_archiver.Course, id string) (lms_archiver.Course, bool) {
	for _, c := range courses {
		if c.ID == id {
			return c, true
		}
	}
	return lms_archiver.Course{}, false
}
