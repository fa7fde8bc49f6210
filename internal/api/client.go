// Package api is the HTTP client for the document analysis service.
//
// Every call maps transport and HTTP failures onto the error taxonomy in
// internal/errors, so callers branch on errors.Classify rather than on
// status codes.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	lerrors "github.com/Iron-Ham/lance/internal/errors"
	"github.com/Iron-Ham/lance/internal/logging"
)

// RequestIDHeader carries a per-request UUID so client and service logs
// can be correlated.
const RequestIDHeader = "X-Request-ID"

// DefaultBaseURL is used when Config.BaseURL is empty.
const DefaultBaseURL = "http://localhost:8000"

// maxErrorBody bounds how much of an error response is read for its detail.
const maxErrorBody = 64 * 1024

// Config holds configuration for creating a Client.
type Config struct {
	// BaseURL is the service root. Endpoints live under {BaseURL}/api.
	BaseURL string

	// Timeout bounds each request. Zero means no client-side limit.
	Timeout time.Duration

	// HTTPClient is used for all requests. Defaults to a new client with
	// Timeout applied.
	HTTPClient *http.Client

	// Logger receives one debug entry per request. Defaults to NopLogger.
	Logger *logging.Logger

	// NewRequestID overrides request ID generation. Defaults to uuid.NewString.
	NewRequestID func() string
}

// Client is a typed client for the analysis service.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	logger       *logging.Logger
	newRequestID func() string
}

// NewClient creates a Client. Returns an error if the base URL is not an
// absolute http(s) URL.
func NewClient(cfg Config) (*Client, error) {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	base = strings.TrimRight(base, "/")

	u, err := url.Parse(base)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, lerrors.NewValidationError("base URL must be an absolute http(s) URL").
			WithField("base_url").WithValue(cfg.BaseURL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}

	newID := cfg.NewRequestID
	if newID == nil {
		newID = uuid.NewString
	}

	return &Client{
		baseURL:      base,
		httpClient:   httpClient,
		logger:       logger.WithComponent("api"),
		newRequestID: newID,
	}, nil
}

// BaseURL returns the normalized service root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Upload sends files as one multipart request and returns the new session.
func (c *Client) Upload(ctx context.Context, paths []string) (*UploadResult, error) {
	if len(paths) == 0 {
		return nil, lerrors.NewValidationError("at least one file is required").WithField("files")
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, path := range paths {
		if err := addFilePart(mw, path); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, lerrors.Wrap(err, "finalize upload body")
	}

	var result UploadResult
	err := c.doJSON(ctx, call{
		op:          "upload",
		method:      http.MethodPost,
		path:        "/api/upload",
		body:        &body,
		contentType: mw.FormDataContentType(),
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func addFilePart(mw *multipart.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return lerrors.NewValidationError("cannot read upload file").WithField("files").WithValue(path).WithCause(err)
	}
	defer func() { _ = f.Close() }()

	part, err := mw.CreateFormFile("files", filepath.Base(path))
	if err != nil {
		return lerrors.Wrap(err, "create multipart part")
	}
	if _, err := io.Copy(part, f); err != nil {
		return lerrors.Wrapf(err, "read %s", path)
	}
	return nil
}

// Start launches the analysis pipeline for an uploaded session.
func (c *Client) Start(ctx context.Context, sessionID string) (*Ack, error) {
	var ack Ack
	err := c.doJSON(ctx, call{
		op:        "start analysis",
		method:    http.MethodPost,
		path:      sessionPath(sessionID, "start"),
		sessionID: sessionID,
	}, &ack)
	if err != nil {
		return nil, err
	}
	return &ack, nil
}

// Answer submits answers to the pending clarifying questions.
func (c *Client) Answer(ctx context.Context, sessionID string, answers map[string]string) (*Ack, error) {
	payload, err := json.Marshal(answers)
	if err != nil {
		return nil, lerrors.Wrap(err, "encode answers")
	}

	var ack Ack
	err = c.doJSON(ctx, call{
		op:          "submit answers",
		method:      http.MethodPost,
		path:        sessionPath(sessionID, "answer"),
		body:        bytes.NewReader(payload),
		contentType: "application/json",
		sessionID:   sessionID,
	}, &ack)
	if err != nil {
		return nil, err
	}
	return &ack, nil
}

// Status fetches the current status of a session.
func (c *Client) Status(ctx context.Context, sessionID string) (*SessionStatus, error) {
	var status SessionStatus
	err := c.doJSON(ctx, call{
		op:        "fetch status",
		method:    http.MethodGet,
		path:      sessionPath(sessionID, "status"),
		sessionID: sessionID,
	}, &status)
	if err != nil {
		return nil, err
	}
	if status.SessionID == "" {
		status.SessionID = sessionID
	}
	return &status, nil
}

// Artifacts lists the downloadable outputs of a session.
func (c *Client) Artifacts(ctx context.Context, sessionID string) ([]Artifact, error) {
	var list artifactList
	err := c.doJSON(ctx, call{
		op:        "list artifacts",
		method:    http.MethodGet,
		path:      sessionPath(sessionID, "artifacts"),
		sessionID: sessionID,
	}, &list)
	if err != nil {
		return nil, err
	}
	return list.Artifacts, nil
}

// Download opens an artifact stream. The caller must close it. The
// returned size is -1 when the service does not report a length.
func (c *Client) Download(ctx context.Context, sessionID, name string) (io.ReadCloser, int64, error) {
	resp, err := c.do(ctx, call{
		op:        "download artifact",
		method:    http.MethodGet,
		path:      sessionPath(sessionID, "download", name),
		sessionID: sessionID,
		artifact:  name,
	})
	if err != nil {
		return nil, 0, err
	}
	return resp.Body, resp.ContentLength, nil
}

// Delete permanently removes a session and its data.
func (c *Client) Delete(ctx context.Context, sessionID string) (*Ack, error) {
	var ack Ack
	err := c.doJSON(ctx, call{
		op:          "delete session",
		method:      http.MethodPost,
		path:        sessionPath(sessionID, "delete"),
		body:        strings.NewReader(`{"confirm":true}`),
		contentType: "application/json",
		sessionID:   sessionID,
	}, &ack)
	if err != nil {
		return nil, err
	}
	return &ack, nil
}

// Health reports whether the service is up.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.doJSON(ctx, call{op: "health check", method: http.MethodGet, path: "/api/health"}, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

func sessionPath(sessionID string, parts ...string) string {
	segments := []string{"/api/session", url.PathEscape(sessionID)}
	for _, p := range parts {
		segments = append(segments, url.PathEscape(p))
	}
	return strings.Join(segments, "/")
}

// call describes one request.
type call struct {
	op          string
	method      string
	path        string
	body        io.Reader
	contentType string
	sessionID   string
	artifact    string
}

// doJSON performs the call and decodes a 2xx JSON body into out.
func (c *Client) doJSON(ctx context.Context, cl call, out any) error {
	resp, err := c.do(ctx, cl)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return lerrors.NewNetworkError(cl.op, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return lerrors.NewServerError(cl.op, resp.StatusCode, "malformed response: "+err.Error())
	}
	return nil
}

// do sends the request and returns the response for 2xx statuses. Any
// other outcome is closed and returned as a classified error.
func (c *Client) do(ctx context.Context, cl call) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, cl.method, c.baseURL+cl.path, cl.body)
	if err != nil {
		return nil, lerrors.Wrapf(err, "%s: build request", cl.op)
	}
	requestID := c.newRequestID()
	req.Header.Set(RequestIDHeader, requestID)
	req.Header.Set("Accept", "application/json")
	if cl.contentType != "" {
		req.Header.Set("Content-Type", cl.contentType)
	}

	log := c.logger.With("request_id", requestID, "op", cl.op)
	if cl.sessionID != "" {
		log = log.WithSession(cl.sessionID)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Debug("request failed", "error", err.Error(), "duration_ms", time.Since(start).Milliseconds())
		return nil, lerrors.NewNetworkError(cl.op, err)
	}
	log.Debug("request completed", "status", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	defer func() { _ = resp.Body.Close() }()
	data, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if readErr != nil {
		return nil, lerrors.NewNetworkError(cl.op, readErr)
	}
	return nil, classifyStatus(cl, resp.StatusCode, errorDetail(data))
}

// classifyStatus maps a non-2xx response onto the error taxonomy. The
// service wraps its own 404s into 500s ("Failed to get status: 404:
// Session not found"), so a 5xx whose detail carries a not-found marker
// is treated as NotFound.
func classifyStatus(cl call, code int, detail string) error {
	switch {
	case code == http.StatusNotFound || (code >= 500 && isWrappedNotFound(detail)):
		return notFound(cl, detail).WithCause(fmt.Errorf("HTTP %d: %s", code, detail))
	case code >= 500:
		return lerrors.NewServerError(cl.op, code, detail)
	default:
		return lerrors.NewRequestError(cl.op, code, detail)
	}
}

func notFound(cl call, detail string) *lerrors.NotFoundError {
	if cl.artifact != "" && strings.Contains(strings.ToLower(detail), "artifact") {
		return lerrors.NewNotFoundError("artifact", cl.artifact)
	}
	id := cl.sessionID
	if id == "" {
		id = cl.path
	}
	return lerrors.NewNotFoundError("session", id)
}

func isWrappedNotFound(detail string) bool {
	d := strings.ToLower(detail)
	return strings.Contains(d, "404") && strings.Contains(d, "not found")
}

// errorDetail extracts a readable detail from an error body. The service
// uses {"detail": "..."}; validation failures carry a structured detail,
// which is returned as raw JSON.
func errorDetail(data []byte) string {
	var body errorBody
	if err := json.Unmarshal(data, &body); err == nil && len(body.Detail) > 0 {
		var s string
		if err := json.Unmarshal(body.Detail, &s); err == nil {
			return s
		}
		return string(body.Detail)
	}
	return strings.TrimSpace(string(data))
}
