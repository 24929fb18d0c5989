package moodle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/411A/lms-archiver"
)

var ErrEmptyDownload = errors.New("download produced an empty file")

// Download fetches the archive behind ref into destPath. The ref points at
// the recording's download page, which in turn links the actual MP4 archive;
// both hops are followed here. The file is streamed to a temporary name and
// renamed into place only on success, so a failed download leaves nothing at
// destPath.
func (n *Navigator) Download(ctx context.Context, ref string, destPath string) error {
	if !n.loggedIn {
		return ErrNotLoggedIn
	}
	fileURL, err := n.resolveArchiveURL(ctx, n.resolve(ref))
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return err
	}
	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d for %s", resp.StatusCode, fileURL)
	}

	return n.saveStream(ctx, destPath, resp.Body, resp.ContentLength)
}

// resolveArchiveURL follows the download page to the link labelled "MP4". A
// ref that already serves the file (anything that isn't an HTML page) is
// returned as-is.
func (n *Navigator) resolveArchiveURL(ctx context.Context, pageURL string) (string, error) {
	pctx, cancel := context.WithTimeout(ctx, n.pageTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(pctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := n.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to load download page: %w", err)
	}
	defer resp.Body.Close()
	if !strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		return pageURL, nil
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to parse download page: %w", err)
	}
	href := ""
	doc.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if strings.Contains(a.Text(), "MP4") {
			href, _ = a.Attr("href")
			return false
		}
		return true
	})
	if href == "" {
		return "", fmt.Errorf("no MP4 link on download page %s", pageURL)
	}
	return n.resolve(href), nil
}

// saveStream writes the stream to destPath via a temporary file, reporting
// progress as bytes arrive.
func (n *Navigator) saveStream(ctx context.Context, destPath string, stream io.Reader, expected int64) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0775); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".download-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary download file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	var written io.Writer = tmp
	if n.progress != nil {
		n.progress(0, expected)
		written = io.MultiWriter(tmp, &progressWriter{expected: expected, report: n.progress})
	}
	size, err := io.Copy(written, lms_archiver.NewReaderContext(ctx, stream))
	if err != nil {
		cleanup()
		return fmt.Errorf("failed to save stream: %w", err)
	}
	if size == 0 {
		cleanup()
		return ErrEmptyDownload
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

// progressWriter counts bytes flowing through it, feeding the progress
// callback. It must come after the file in the MultiWriter so failed writes
// are not counted.
type progressWriter struct {
	downloaded int64
	expected   int64
	report     ProgressFunc
}

func (w *progressWriter) Write(p []byte) (int, error) {
	w.downloaded += int64(len(p))
	w.report(w.downloaded, w.expected)
	return len(p), nil
}
