package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/angelmondragon/localdrop/pkg/logger"
	"github.com/angelmondragon/localdrop/pkg/metrics"
)

const (
	defaultTimeout         = 30 * time.Second
	responseReadLimit      = 4 << 20
	errorBodyExcerptLength = 512
)

// Role selects the API namespace a client talks to.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleRider    Role = "rider"
	RoleStore    Role = "store"
)

// Prefix is the path segment of the role's namespace.
func (r Role) Prefix() string {
	switch r {
	case RoleRider:
		return "dboy/"
	case RoleStore:
		return "store/"
	}
	return ""
}

func (r Role) valid() bool {
	return r == RoleCustomer || r == RoleRider || r == RoleStore
}

// Client performs calls against one role namespace of the marketplace API.
// It never retries.
type Client struct {
	httpClient *http.Client
	baseURL    string
	role       Role
	timeout    time.Duration
	logg       *logger.Logger
	metrics    *metrics.GatewayMetrics
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout overrides the per-call upper bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithLogger(logg *logger.Logger) Option {
	return func(c *Client) {
		if logg != nil {
			c.logg = logg
		}
	}
}

func WithMetrics(m *metrics.GatewayMetrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// New builds a client for role rooted at baseURL.
func New(baseURL string, role Role, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(baseURL)
	if trimmed == "" {
		return nil, errors.New("api base url is required")
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("parsing api base url: %w", err)
	}
	if !role.valid() {
		return nil, fmt.Errorf("unknown gateway role %q", role)
	}

	client := &Client{
		httpClient: &http.Client{},
		baseURL:    strings.TrimRight(trimmed, "/") + "/",
		role:       role,
		timeout:    defaultTimeout,
		logg:       logger.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

func (c *Client) Role() Role {
	return c.role
}

func (c *Client) endpointURL(endpoint string, params url.Values) string {
	u := c.baseURL + c.role.Prefix() + strings.TrimLeft(endpoint, "/")
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	return c.do(ctx, endpoint, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, c.endpointURL(endpoint, params), nil)
	}, out)
}

func (c *Client) post(ctx context.Context, endpoint string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &Error{Message: "could not encode request"}
	}
	return c.do(ctx, endpoint, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpointURL(endpoint, nil), bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}, out)
}

// Attachment is a file sent as a multipart part.
type Attachment struct {
	Field       string
	Filename    string
	ContentType string
	Data        []byte
}

func (c *Client) postMultipart(ctx context.Context, endpoint string, fields map[string]string, file Attachment, out any) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return &Error{Message: "could not encode request"}
		}
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, file.Field, file.Filename))
	header.Set("Content-Type", file.ContentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return &Error{Message: "could not encode request"}
	}
	if _, err := part.Write(file.Data); err != nil {
		return &Error{Message: "could not encode request"}
	}
	if err := writer.Close(); err != nil {
		return &Error{Message: "could not encode request"}
	}

	body := buf.Bytes()
	return c.do(ctx, endpoint, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpointURL(endpoint, nil), bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", writer.FormDataContentType())
		return req, nil
	}, out)
}

func (c *Client) do(ctx context.Context, endpoint string, build func(context.Context) (*http.Request, error), out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	req, err := build(ctx)
	if err != nil {
		return c.fail(ctx, endpoint, "build", start, &Error{Message: "could not build request"}, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		gerr := transportError(ctx, err)
		return c.fail(ctx, endpoint, "transport", start, gerr, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, responseReadLimit))
	if err != nil {
		gerr := transportError(ctx, err)
		return c.fail(ctx, endpoint, "transport", start, gerr, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		gerr := statusError(resp.StatusCode, body)
		return c.fail(ctx, endpoint, "http_error", start, gerr, gerr)
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			status := resp.StatusCode
			gerr := &Error{Status: &status, Message: "invalid response from server"}
			return c.fail(ctx, endpoint, "decode", start, gerr, err)
		}
	}

	c.metrics.Observe(string(c.role), endpoint, "ok", time.Since(start))
	return nil
}

func (c *Client) fail(ctx context.Context, endpoint, outcome string, start time.Time, gerr *Error, cause error) error {
	c.metrics.Observe(string(c.role), endpoint, outcome, time.Since(start))
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"role":     string(c.role),
		"endpoint": endpoint,
		"outcome":  outcome,
	})
	if gerr.Status != nil {
		logCtx = c.logg.WithField(logCtx, "status", *gerr.Status)
	}
	c.logg.WarnErr(logCtx, "gateway.call.failed", cause)
	return gerr
}

func transportError(ctx context.Context, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &Error{Message: "request timed out"}
	}
	if errors.Is(err, context.Canceled) {
		return &Error{Message: "request cancelled"}
	}
	return &Error{Message: "network error, please check your connection"}
}

func statusError(status int, body []byte) *Error {
	gerr := &Error{Status: &status, Message: http.StatusText(status)}
	if len(body) == 0 {
		return gerr
	}

	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		excerpt := strings.TrimSpace(string(body))
		if len(excerpt) > errorBodyExcerptLength {
			excerpt = excerpt[:errorBodyExcerptLength]
		}
		gerr.Data = excerpt
		return gerr
	}
	gerr.Data = data
	if obj, ok := data.(map[string]any); ok {
		for _, field := range []string{"message", "msg", "error"} {
			if s, ok := obj[field].(string); ok && strings.TrimSpace(s) != "" {
				gerr.Message = s
				break
			}
		}
	}
	return gerr
}
