package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/411A/lms-archiver"
	"github.com/411A/lms-archiver/generic"
	"github.com/411A/lms-archiver/internal/ledger"
)

const (
	defaultAttempts   = 3
	defaultRetryDelay = 5 * time.Second
)

// Downloader fetches one recording's archive, consulting the ledger before
// and updating it after, so repeated runs never re-download.
type Downloader struct {
	nav      lms_archiver.Navigator
	ledger   *ledger.Ledger
	timeout  time.Duration
	attempts int
	delay    time.Duration
	log      *zap.SugaredLogger
}

func NewDownloader(nav lms_archiver.Navigator, led *ledger.Ledger, config Config) *Downloader {
	config = config.withDefaults()
	return &Downloader{
		nav:      nav,
		ledger:   led,
		timeout:  config.DownloadTimeout,
		attempts: config.Attempts,
		delay:    config.RetryDelay,
		log:      zap.S().Named("download"),
	}
}

// Run downloads the archive for one recording descriptor into downloadFolder.
// A non-nil error means the ledger could not be persisted and the run must
// stop; everything else is reported through the Outcome.
func (d *Downloader) Run(ctx context.Context, courseKey string, desc lms_archiver.RecordingDescriptor, downloadFolder string) (Outcome, error) {
	filename := desc.ArchiveFilename()
	archivePath := filepath.Join(downloadFolder, filename)
	log := d.log.With("course", courseKey, "archive", filename, "job_id", uuid.NewString())

	if d.ledger.HasArchive(courseKey, filename) && fileExists(archivePath) {
		log.Debug("archive already downloaded, skipping")
		return skipped(), nil
	}
	// A file on disk that the ledger doesn't know about (manual copy, partial
	// migration) is authoritative; backfill the record instead of re-fetching.
	if fileExists(archivePath) {
		log.Info("archive present on disk but not in ledger, backfilling")
		if err := d.ledger.RecordArchive(courseKey, filename); err != nil {
			return Outcome{}, err
		}
		return skipped(), nil
	}

	log.Infow("downloading archive", "ref", desc.DownloadRef)
	res := generic.Retry_(ctx, d.attempts, d.delay, func() error {
		dctx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()
		if err := d.nav.Download(dctx, desc.DownloadRef, archivePath); err != nil {
			log.Warnw("download attempt failed", "error", err)
			return err
		}
		return nil
	})
	if res.IsErr() {
		// The ledger stays untouched: a failed download must never be
		// recorded as present.
		return failed(fmt.Errorf("failed to download %s after %d attempts: %w", filename, d.attempts, res.Error)), nil
	}

	if err := d.ledger.RecordArchive(courseKey, filename); err != nil {
		return Outcome{}, err
	}
	log.Info("download complete")
	return downloaded(), nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}
