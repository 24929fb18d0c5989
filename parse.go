package lms_archiver

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	ErrNoOfflineLink = errors.New("no offline download link in entry")
	ErrNoTimestamp   = errors.New("no recognizable timestamp in entry")
)

// offlineMarker is the anchor text the LMS uses for downloadable recordings.
const offlineMarker = "آفلاین"

// periodOffset resolves the Persian period-of-day word to a 24-hour offset.
var periodOffset = map[string]int{
	"صبح": 0,
	"ظهر": 12,
	"عصر": 12,
	"شب":  12,
}

var persianMonths = map[string]string{
	"فروردین":  "01",
	"اردیبهشت": "02",
	"خرداد":    "03",
	"تیر":      "04",
	"مرداد":    "05",
	"شهریور":   "06",
	"مهر":      "07",
	"آبان":     "08",
	"آذر":      "09",
	"دی":       "10",
	"بهمن":     "11",
	"اسفند":    "12",
}

var (
	parensRe = regexp.MustCompile(`\(([^)]+)\)`)
	dateRe   = regexp.MustCompile(`(\d+)\s+(\S+)\s+(\d+)`)
	timeRe   = regexp.MustCompile(`(\d+):(\d+)\s+(\S+)`)
)

// ParseRecordingEntry turns the inner HTML of one recording list item into a
// typed RecordingDescriptor. index is the 1-based position of the item in the
// course's recording list.
func ParseRecordingEntry(entryHTML string, index int) (RecordingDescriptor, error) {
	var d RecordingDescriptor

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(entryHTML))
	if err != nil {
		return d, fmt.Errorf("failed to parse entry HTML: %w", err)
	}

	href := ""
	doc.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if strings.Contains(a.Text(), offlineMarker) {
			href, _ = a.Attr("href")
			return false
		}
		return true
	})
	if href == "" {
		return d, ErrNoOfflineLink
	}

	ts, err := parseTimestamp(doc.Text())
	if err != nil {
		return d, err
	}

	d.Index = index
	d.Timestamp = ts
	d.DownloadRef = href
	return d, nil
}

// parseTimestamp finds the parenthesized "(weekday، date، time)" group in the
// entry text and normalizes it.
func parseTimestamp(text string) (RecordingTimestamp, error) {
	var ts RecordingTimestamp

	var parts []string
	for _, m := range parensRe.FindAllStringSubmatch(text, -1) {
		if !containsPersianMonth(m[1]) {
			continue
		}
		for _, p := range strings.Split(m[1], "،") {
			parts = append(parts, strings.TrimSpace(p))
		}
		break
	}
	if len(parts) < 3 {
		return ts, ErrNoTimestamp
	}
	datePart, timePart := parts[1], parts[2]

	dm := dateRe.FindStringSubmatch(datePart)
	if dm == nil {
		return ts, fmt.Errorf("%w: unparseable date %q", ErrNoTimestamp, datePart)
	}
	day, _ := strconv.Atoi(dm[1])
	month, ok := persianMonths[dm[2]]
	if !ok {
		return ts, fmt.Errorf("%w: unknown month %q", ErrNoTimestamp, dm[2])
	}
	year := dm[3]

	tm := timeRe.FindStringSubmatch(timePart)
	if tm == nil {
		return ts, fmt.Errorf("%w: unparseable time %q", ErrNoTimestamp, timePart)
	}
	hour, _ := strconv.Atoi(tm[1])
	minute, _ := strconv.Atoi(tm[2])

	ts.Date = fmt.Sprintf("%s-%s-%02d", year, month, day)
	ts.Hour = (hour % 12) + periodOffset[tm[3]]
	ts.Minute = minute
	return ts, nil
}

func containsPersianMonth(s string) bool {
	for name := range persianMonths {
		if strings.Contains(s, name) {
			return true
		}
	}
	return false
}
