// Package api is the HTTP client for the sustainability-scoring backend.
// It attaches the session's bearer token, clears it on 401, and turns every
// failure into an *Error whose kind matches ErrTransport or ErrAuthExpired.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"greenpath/internal/logging"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Credentials is the token holder the client reads from and clears.
type Credentials interface {
	Token() string
	SetToken(token string) error
	ClearToken() error
}

// Client talks to the backend REST API.
type Client struct {
	baseURL  string
	http     *http.Client
	creds    Credentials
	validate *validator.Validate
	log      *zap.Logger
}

// New creates a client for baseURL. creds may be nil for anonymous use.
func New(baseURL string, timeout time.Duration, creds Credentials) *Client {
	validate := validator.New(validator.WithRequiredStructEnabled())
	_ = validate.RegisterValidation("useremail", func(fl validator.FieldLevel) bool {
		return userEmailPattern.MatchString(fl.Field().String())
	})
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: timeout},
		creds:    creds,
		validate: validate,
		log:      logging.Get(logging.CategoryAPI),
	}
}

// userEmailPattern is the address shape the admin form accepts.
var userEmailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]{2,}$`)

// BaseURL returns the API root the client was built with.
func (c *Client) BaseURL() string { return c.baseURL }

// ArtifactURL returns the absolute URL of a project report artifact.
func (c *Client) ArtifactURL(projectID string, artifact Artifact) string {
	return c.baseURL + projectPath(projectID, string(artifact))
}

// request is one call to the backend.
type request struct {
	method string
	path   string
	query  url.Values
	body   any
	accept string
}

// do performs req and returns the raw response body of a 2xx response.
func (c *Client) do(ctx context.Context, req request) ([]byte, error) {
	var payload io.Reader
	if req.body != nil {
		data, err := json.Marshal(req.body)
		if err != nil {
			return nil, errors.Wrap(err, "failed to encode request body")
		}
		payload = bytes.NewReader(data)
	}

	target := c.baseURL + req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, payload)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build request")
	}
	requestID := uuid.NewString()
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Request-ID", requestID)
	if req.accept != "" {
		httpReq.Header.Set("Accept", req.accept)
	}
	if c.creds != nil {
		if token := c.creds.Token(); token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.log.Warn("request failed",
			zap.String("method", req.method),
			zap.String("path", req.path),
			zap.String("request_id", requestID),
			zap.Error(err))
		return nil, newNetworkError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newNetworkError(err)
	}

	c.log.Debug("request completed",
		zap.String("method", req.method),
		zap.String("path", req.path),
		zap.Int("status", resp.StatusCode),
		zap.String("request_id", requestID),
		zap.Duration("latency", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if resp.StatusCode == http.StatusUnauthorized && c.creds != nil {
			if err := c.creds.ClearToken(); err != nil {
				c.log.Warn("failed to clear token after 401", zap.Error(err))
			}
		}
		return nil, newStatusError(resp.StatusCode, body)
	}
	return body, nil
}

// projectPath builds /projects/{id}[/suffix] with the id escaped.
func projectPath(projectID string, suffix string) string {
	p := "/projects/" + url.PathEscape(projectID)
	if suffix != "" {
		p += "/" + suffix
	}
	return p
}

func dryRunQuery(dryRun bool) url.Values {
	if !dryRun {
		return nil
	}
	return url.Values{"dry_run": []string{"1"}}
}

func (c *Client) check(payload any) error {
	if err := c.validate.Struct(payload); err != nil {
		return errors.Mark(errors.Wrap(err, "validation failed"), ErrInvalidPayload)
	}
	return nil
}
