package shiftapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	appLog "shiftbook/internal/log"
	"shiftbook/internal/model"
)

var (
	// ErrFetch wraps every failure of GET /shifts.
	ErrFetch = errors.New("fetch shifts failed")
	// ErrMutation wraps every failure of a book or cancel request.
	ErrMutation = errors.New("shift mutation failed")
	// ErrNotModifiedNoCache is returned when the source answers 304 but no
	// earlier body is held.
	ErrNotModifiedNoCache = errors.New("received 304 Not Modified but no cached body available")
)

// RequestError describes a failed request to the Shift Source. Kind is
// ErrFetch or ErrMutation so callers can use errors.Is.
type RequestError struct {
	Kind       error
	Op         string
	ShiftID    model.ID
	StatusCode int
	Err        error
}

func (e *RequestError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	b.WriteString(": ")
	b.WriteString(e.Op)
	if e.ShiftID != "" {
		b.WriteString(" ")
		b.WriteString(string(e.ShiftID))
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *RequestError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// ListResult is the outcome of one GET /shifts.
type ListResult struct {
	Shifts []model.Shift
	// Rejected lists records dropped at ingestion.
	Rejected []error
	// FromCache is true when the source answered 304 and the previous body
	// was reused.
	FromCache bool
}

// RejectedErr joins the ingestion errors, or returns nil when every record
// was accepted.
func (r ListResult) RejectedErr() error {
	return errors.Join(r.Rejected...)
}

// cacheEntry holds the validators and body of the last 200 response.
type cacheEntry struct {
	ETag         string
	LastModified string
	Body         []byte
	UpdatedAt    time.Time
}

// Client talks to the Shift Source. It keeps the last list body in memory so
// that conditional GETs answered with 304 can be served without a transfer.
type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.Mutex
	cache *cacheEntry
}

// NewClient creates a Client for baseURL, e.g. "http://localhost:5000".
// A zero timeout selects 15 seconds.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// List fetches the full shift collection in source order, honoring ETag and
// Last-Modified from the previous successful response.
func (c *Client) List(ctx context.Context) (ListResult, error) {
	fail := func(status int, err error) (ListResult, error) {
		return ListResult{}, &RequestError{Kind: ErrFetch, Op: "list", StatusCode: status, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/shifts", nil)
	if err != nil {
		return fail(0, err)
	}
	req.Header.Set("Accept", "application/json")

	c.mu.Lock()
	cached := c.cache
	c.mu.Unlock()
	if cached != nil {
		if cached.ETag != "" {
			req.Header.Set("If-None-Match", cached.ETag)
		}
		if cached.LastModified != "" {
			req.Header.Set("If-Modified-Since", cached.LastModified)
		}
	}

	appLog.Debug("shift list fetch start", "url", redactURL(c.baseURL))

	resp, err := c.http.Do(req)
	if err != nil {
		return fail(0, err)
	}
	defer resp.Body.Close()

	var body []byte
	fromCache := false

	switch resp.StatusCode {
	case http.StatusOK:
		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fail(resp.StatusCode, err)
		}

	case http.StatusNotModified:
		if cached == nil || len(cached.Body) == 0 {
			return fail(resp.StatusCode, ErrNotModifiedNoCache)
		}
		body = cached.Body
		fromCache = true

	default:
		return fail(resp.StatusCode, errors.New(resp.Status))
	}

	var records []model.Record
	if err := json.Unmarshal(body, &records); err != nil {
		return fail(resp.StatusCode, fmt.Errorf("decode body: %w", err))
	}

	if !fromCache {
		c.mu.Lock()
		c.cache = &cacheEntry{
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
			Body:         body,
			UpdatedAt:    time.Now().UTC(),
		}
		c.mu.Unlock()
	}

	shifts, rejected := model.Ingest(records)
	for _, rerr := range rejected {
		appLog.Warn("shift record rejected", "reason", rerr.Error())
	}

	appLog.Info("shift list fetch success",
		"url", redactURL(c.baseURL),
		"count", len(shifts),
		"rejected", len(rejected),
		"from_cache", fromCache,
	)

	return ListResult{Shifts: shifts, Rejected: rejected, FromCache: fromCache}, nil
}

// Book asks the source to book id for the current worker.
func (c *Client) Book(ctx context.Context, id model.ID) error {
	return c.mutate(ctx, "book", id)
}

// Cancel asks the source to release id.
func (c *Client) Cancel(ctx context.Context, id model.ID) error {
	return c.mutate(ctx, "cancel", id)
}

func (c *Client) mutate(ctx context.Context, op string, id model.ID) error {
	fail := func(status int, err error) error {
		return &RequestError{Kind: ErrMutation, Op: op, ShiftID: id, StatusCode: status, Err: err}
	}

	endpoint := c.baseURL + "/shifts/" + url.PathEscape(string(id)) + "/" + op
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(nil))
	if err != nil {
		return fail(0, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fail(0, err)
	}
	defer resp.Body.Close()
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fail(resp.StatusCode, errors.New(resp.Status))
	}

	appLog.Info("shift mutation success", "op", op, "id", id)
	return nil
}

// redactURL keeps scheme and host of u and hides the rest for logging.
func redactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	parsed, err := url.Parse(u)
	if err != nil || parsed.Host == "" {
		return "shiftapi://...(redacted)"
	}
	if parsed.Path == "" || parsed.Path == "/" {
		return parsed.Scheme + "://" + parsed.Host
	}
	return parsed.Scheme + "://" + parsed.Host + redactedSuffix
}
