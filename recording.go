package lms_archiver

import (
	"fmt"
	"strings"
)

const (
	ArchiveExt = ".rar"
	MediaExt   = ".mp4"
)

// A RecordingTimestamp is the date and time of a recording exactly as the LMS
// presents it: the date stays in the source calendar, only the period-of-day
// suffix is resolved to a 24-hour clock.
type RecordingTimestamp struct {
	Date   string // "YYYY-MM-DD"
	Hour   int
	Minute int
}

func (t RecordingTimestamp) String() string {
	return fmt.Sprintf("%s %02d:%02d", t.Date, t.Hour, t.Minute)
}

// A RecordingDescriptor is one offline recording package listed on a course's
// recording page, before any download happens.
type RecordingDescriptor struct {
	// Index is the 1-based position in the recording list (session order).
	Index     int
	Timestamp RecordingTimestamp
	// DownloadRef is the opaque reference (URL) used to fetch the archive.
	DownloadRef string
}

// ArchiveFilename is a pure function of (Index, Timestamp), so the same
// recording always maps to the same name; idempotency checks rely on this.
func (d RecordingDescriptor) ArchiveFilename() string {
	return fmt.Sprintf("%02d_%s_%02d-%02d%s", d.Index, d.Timestamp.Date, d.Timestamp.Hour, d.Timestamp.Minute, ArchiveExt)
}

// MediaFilename is the expected name of the video inside the archive: same
// stem as ArchiveFilename with the media extension.
func (d RecordingDescriptor) MediaFilename() string {
	return MediaFilenameFor(d.ArchiveFilename())
}

// MediaFilenameFor derives the media filename from an archive filename.
func MediaFilenameFor(archiveFilename string) string {
	return strings.TrimSuffix(archiveFilename, ArchiveExt) + MediaExt
}
