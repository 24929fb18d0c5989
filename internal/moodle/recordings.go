package moodle

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/411A/lms-archiver"
)

// offlineMarker tags the list items that carry a downloadable recording.
const offlineMarker = "آفلاین"

// ListRecordings loads the course's recording list page and parses every
// offline recording into a descriptor. Malformed entries are logged and
// skipped; an empty list is a normal result.
func (n *Navigator) ListRecordings(ctx context.Context, course lms_archiver.Course) ([]lms_archiver.RecordingDescriptor, error) {
	if !n.loggedIn {
		return nil, ErrNotLoggedIn
	}
	moduleID, ok := n.recordingModules[course.ID]
	if !ok {
		return nil, fmt.Errorf("no recordings module known for course %s (ListCourses not run?)", course.Key())
	}

	pageURL := n.resolve("/mod/onlineclass/view.php?id=" + moduleID + "&action=recording.list")
	doc, _, err := n.getDocument(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to load recording list: %w", err)
	}
	return parseRecordingList(doc, n.log.With("course", course.Key()))
}

func parseRecordingList(doc *goquery.Document, log *zap.SugaredLogger) ([]lms_archiver.RecordingDescriptor, error) {
	// The recording list is the second <ul> on the page with at least three
	// items; the first such list is site navigation.
	var lists []*goquery.Selection
	doc.Find("ul").Each(func(_ int, ul *goquery.Selection) {
		if ul.ChildrenFiltered("li").Length() >= 3 {
			lists = append(lists, ul)
		}
	})
	if len(lists) < 2 {
		return nil, nil
	}

	var descriptors []lms_archiver.RecordingDescriptor
	index := 0
	lists[1].ChildrenFiltered("li").Each(func(i int, li *goquery.Selection) {
		html, err := li.Html()
		if err != nil || !strings.Contains(html, offlineMarker) {
			return
		}
		index++
		d, err := lms_archiver.ParseRecordingEntry(html, index)
		if err != nil {
			log.Warnw("skipping malformed recording entry", "item", i+1, "error", err)
			return
		}
		descriptors = append(descriptors, d)
	})
	return descriptors, nil
}
