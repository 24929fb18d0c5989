package unrar

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"path/filepath"
	"sort"

	"go.uber.org/zap"
)

var (
	ErrNoExtractor = errors.New("no archive extractor found, install 7z or unrar")
)

// Extractor unpacks .rar archives by shelling out to 7z (preferred) or unrar.
// It implements lms_archiver.Extractor.
type Extractor struct {
	log *zap.SugaredLogger
}

func New() *Extractor {
	return &Extractor{log: zap.S().Named("unrar")}
}

// Extract unpacks archivePath into destDir and returns the paths of all
// extracted files in lexicographic order.
func (e *Extractor) Extract(ctx context.Context, archivePath string, destDir string) ([]string, error) {
	if err := e.run(ctx, archivePath, destDir); err != nil {
		return nil, err
	}
	var files []string
	err := filepath.WalkDir(destDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list extracted files: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

// run tries each known tool in turn, falling back on failure as well as on
// absence, the same way the archive might only be readable by one of them.
func (e *Extractor) run(ctx context.Context, archivePath string, destDir string) error {
	attempted := false
	if path, err := exec.LookPath("7z"); err == nil {
		attempted = true
		cmd := exec.CommandContext(ctx, path, "x", archivePath, "-o"+destDir, "-y")
		if out, err := cmd.CombinedOutput(); err == nil {
			return nil
		} else {
			e.log.Warnw("7z extraction failed", "archive", archivePath, "error", err, "output", string(out))
		}
	}
	if path, err := exec.LookPath("unrar"); err == nil {
		attempted = true
		cmd := exec.CommandContext(ctx, path, "x", "-y", archivePath, destDir)
		if out, err := cmd.CombinedOutput(); err == nil {
			return nil
		} else {
			e.log.Warnw("unrar extraction failed", "archive", archivePath, "error", err, "output", string(out))
		}
	}
	if !attempted {
		return ErrNoExtractor
	}
	return fmt.Errorf("failed to extract %s with available tools", archivePath)
}
