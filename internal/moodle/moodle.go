package moodle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/411A/lms-archiver"
)

const (
	loginPath     = "/login/index.php"
	myCoursesPath = "/my/courses.php"
)

var (
	ErrAuthentication = errors.New("login failed, check credentials")
	ErrNotLoggedIn    = errors.New("not logged in")
)

// ProgressFunc is called while a download streams, with the bytes received so
// far and the total expected (0 when the server does not say).
type ProgressFunc func(downloaded int64, expected int64)

type Option func(*Navigator)

func WithHTTPClient(client *http.Client) Option {
	return func(n *Navigator) {
		n.client = client
	}
}

func WithProgress(f ProgressFunc) Option {
	return func(n *Navigator) {
		n.progress = f
	}
}

// Navigator drives a Moodle-based LMS over plain HTTP with a cookie session.
// It implements lms_archiver.Navigator.
type Navigator struct {
	baseURL     *url.URL
	client      *http.Client
	pageTimeout time.Duration
	progress    ProgressFunc
	log         *zap.SugaredLogger

	loggedIn bool
	// onlineclass module ID per course ID, resolved during ListCourses.
	recordingModules map[string]string
}

func New(baseURL string, pageTimeout time.Duration, opts ...Option) (*Navigator, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	n := &Navigator{
		baseURL:          parsed,
		client:           &http.Client{Jar: jar},
		pageTimeout:      pageTimeout,
		log:              zap.S().Named("moodle"),
		recordingModules: make(map[string]string),
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.client.Jar == nil {
		n.client.Jar = jar
	}
	return n, nil
}

// Login fetches the login form to obtain the CSRF token, posts the
// credentials, and verifies the session landed away from the login page.
func (n *Navigator) Login(ctx context.Context, creds lms_archiver.Credentials) error {
	n.log.Infow("logging in", "base_url", n.baseURL.String(), "username", creds.Username)

	loginURL := n.resolve(loginPath)
	doc, _, err := n.getDocument(ctx, loginURL)
	if err != nil {
		return fmt.Errorf("failed to load login page: %w", err)
	}
	// Moodle embeds a one-time token in the login form.
	token, _ := doc.Find(`input[name="logintoken"]`).Attr("value")

	form := url.Values{
		"username": {creds.Username},
		"password": {creds.Password},
	}
	if token != "" {
		form.Set("logintoken", token)
	}

	pctx, cancel := context.WithTimeout(ctx, n.pageTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(pctx, http.MethodPost, loginURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("login request failed: %w", err)
	}
	defer resp.Body.Close()

	// A failed login bounces back to the login page.
	if strings.Contains(strings.ToLower(resp.Request.URL.Path), "login") {
		return ErrAuthentication
	}
	n.loggedIn = true
	n.log.Info("login successful")
	return nil
}

// resolve joins a path or possibly-relative reference with the base URL.
func (n *Navigator) resolve(ref string) string {
	parsed, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return n.baseURL.ResolveReference(parsed).String()
}

// getDocument fetches a page within the page-load timeout and parses it.
func (n *Navigator) getDocument(ctx context.Context, pageURL string) (*goquery.Document, *url.URL, error) {
	pctx, cancel := context.WithTimeout(ctx, n.pageTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(pctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, nil, err
	}
	resp, err := n.client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, pageURL)
	}
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse %s: %w", pageURL, err)
	}
	return doc, resp.Request.URL, nil
}
