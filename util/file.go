package util

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// MoveFile renames src to dest, falling back to copy-and-delete when the two
// paths live on different filesystems (the usual case when moving out of the
// system temp directory).
func MoveFile(src string, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0775); err != nil {
		return err
	}
	if err := os.Rename(src, dest); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer in.Close()
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create destination: %w", err)
	}
	if _, err = io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dest)
		return fmt.Errorf("failed to copy file: %w", err)
	}
	if err = out.Close(); err != nil {
		_ = os.Remove(dest)
		return err
	}
	return os.Remove(src)
}
