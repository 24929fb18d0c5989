package lms_archiver

import (
	"context"
)

// An Extractor unpacks a downloaded archive into destDir and reports the
// extracted file paths. It does not decide which of them is the wanted media.
type Extractor interface {
	Extract(ctx context.Context, archivePath string, destDir string) ([]string, error)
}
