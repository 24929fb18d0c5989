package lms_archiver

import (
	"context"
)

type Credentials struct {
	Username string
	Password string
}

// A Navigator knows how to drive the LMS: authenticate, enumerate courses,
// and fetch recording archives. Implementations own their session state.
type Navigator interface {
	// Login authenticates the session. Must be called before any other method.
	Login(ctx context.Context, creds Credentials) error
	// ListCourses returns every course the authenticated user is enrolled in
	// that has a recordings module. A course without recordings is normal.
	ListCourses(ctx context.Context) ([]Course, error)
	// ListRecordings returns the offline recording descriptors for a course,
	// in session order. An empty result is normal (e.g. seminar courses).
	ListRecordings(ctx context.Context, course Course) ([]RecordingDescriptor, error)
	// Download fetches the archive behind ref into destPath. A partial file
	// must not be left behind at destPath on failure.
	Download(ctx context.Context, ref string, destPath string) error
}
