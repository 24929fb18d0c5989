package moodle

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/411A/lms-archiver"
	"github.com/411A/lms-archiver/util"
)

var (
	parentheticalRe = regexp.MustCompile(`\([^)]*\)`)
	digitsRe        = regexp.MustCompile(`\d+`)
	onlineclassRe   = regexp.MustCompile(`/mod/onlineclass/view\.php\?id=(\d+)`)
)

// Screen-reader boilerplate that pollutes the course anchor text.
var unwantedCourseText = []string{
	"درس ستاره‌دار شده است",
	"نام درس",
}

// ListCourses scrapes the "my courses" page for course tiles, then visits
// each course page to find its onlineclass (recordings) module. Courses
// without one are skipped; that is normal for seminar-type courses.
func (n *Navigator) ListCourses(ctx context.Context) ([]lms_archiver.Course, error) {
	if !n.loggedIn {
		return nil, ErrNotLoggedIn
	}
	doc, _, err := n.getDocument(ctx, n.resolve(myCoursesPath))
	if err != nil {
		return nil, fmt.Errorf("failed to load courses page: %w", err)
	}

	var all []lms_archiver.Course
	doc.Find("div[data-course-id]").Each(func(_ int, tile *goquery.Selection) {
		id, ok := tile.Attr("data-course-id")
		if !ok || id == "" {
			return
		}
		all = append(all, lms_archiver.Course{ID: id, Name: courseName(tile, id)})
	})
	n.log.Infow("found course tiles", "count", len(all))

	courses := make([]lms_archiver.Course, 0, len(all))
	for _, course := range all {
		moduleID, err := n.findRecordingModule(ctx, course.ID)
		if err != nil {
			n.log.Warnw("failed to inspect course page", "course", course.Key(), "error", err)
			continue
		}
		if moduleID == "" {
			n.log.Infow("course has no recordings module, skipping", "course", course.Key())
			continue
		}
		n.recordingModules[course.ID] = moduleID
		courses = append(courses, course)
	}
	n.log.Infow("found courses with recordings", "count", len(courses))
	return courses, nil
}

// findRecordingModule returns the onlineclass module ID for a course, or ""
// if the course page has no such module.
func (n *Navigator) findRecordingModule(ctx context.Context, courseID string) (string, error) {
	pageURL := n.resolve("/course/view.php?id=" + courseID)
	doc, _, err := n.getDocument(ctx, pageURL)
	if err != nil {
		return "", err
	}
	href, ok := doc.Find(`a[href*="/mod/onlineclass/view.php?id="]`).First().Attr("href")
	if !ok {
		return "", nil
	}
	m := onlineclassRe.FindStringSubmatch(href)
	if m == nil {
		return "", nil
	}
	return m[1], nil
}

// courseName cleans the course anchor text into a path-safe name, falling
// back to "Course_<id>" when the tile has no usable anchor.
func courseName(tile *goquery.Selection, id string) string {
	anchor := tile.Find("a.aalink.coursename").First()
	if anchor.Length() == 0 {
		return "Course_" + id
	}
	text := strings.TrimSpace(anchor.Text())
	anchor.Find("span.sr-only").Each(func(_ int, span *goquery.Selection) {
		text = strings.ReplaceAll(text, strings.TrimSpace(span.Text()), "")
	})
	for _, unwanted := range unwantedCourseText {
		text = strings.ReplaceAll(text, unwanted, "")
	}
	text = parentheticalRe.ReplaceAllString(text, "")
	text = digitsRe.ReplaceAllString(text, "")
	text = util.SanitizeFilename(text)
	text = strings.ReplaceAll(text, " ", "_")
	if text == "" {
		return "Course_" + id
	}
	return text
}
