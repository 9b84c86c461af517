// Package httpclient talks to the voice backend's REST API: it joins paths to
// the configured base URL, attaches the standard headers and normalizes
// success, error and parse-failure handling. It never retries.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"voice-agent-console/internal/logger"
)

type Options struct {
	BaseURL string
	// Headers are passed through on every request, e.g. a tunnel bypass header.
	Headers map[string]string
	Timeout time.Duration
	Log     *logger.Logger
	// HTTPClient overrides the default client; Timeout is ignored when set.
	HTTPClient *http.Client
}

type Client struct {
	base    string
	headers map[string]string
	hc      *http.Client
	log     *logger.Logger
}

// RequestOptions is the optional part of a request. A nil *RequestOptions is a GET.
type RequestOptions struct {
	Method string
	// Body is JSON encoded when non-nil.
	Body   any
	Header http.Header
}

func New(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	log := opts.Log
	if log == nil {
		log = logger.Discard()
	}
	return &Client{
		base:    strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"),
		headers: opts.Headers,
		hc:      hc,
		log:     log.Component("httpclient"),
	}
}

// Base returns the normalized base URL.
func (c *Client) Base() string {
	return c.base
}

// URL joins path onto the base address.
func (c *Client) URL(path string) string {
	if strings.HasPrefix(path, "/") {
		return c.base + path
	}
	return c.base + "/" + path
}

// Do sends one request and returns the raw response. The caller closes the body.
func (c *Client) Do(ctx context.Context, path string, opts *RequestOptions) (*http.Response, error) {
	if opts == nil {
		opts = &RequestOptions{}
	}
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if opts.Body != nil {
		data, err := json.Marshal(opts.Body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.URL(path), body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("X-Request-ID", uuid.New().String())
	for k, vs := range opts.Header {
		req.Header.Del(k)
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	start := time.Now()
	resp, err := c.hc.Do(req)
	entry := c.log.WithFields(logrus.Fields{
		"req_id":      req.Header.Get("X-Request-ID"),
		"method":      method,
		"path":        path,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	if err != nil {
		entry.WithField("error", err.Error()).Warn("upstream request failed")
		return nil, err
	}
	entry.WithField("http_status", resp.StatusCode).Debug("upstream request finished")
	return resp, nil
}

// DecodeJSON performs the request and decodes a JSON response into out.
//
// Failures, in order of checking: transport error, non-2xx (*RequestError),
// HTML where JSON was expected (ErrProxyIntercepted), unparsable body
// (*MalformedResponseError).
func (c *Client) DecodeJSON(ctx context.Context, path string, opts *RequestOptions, out any) error {
	resp, err := c.Do(ctx, path, opts)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	text := string(raw)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &RequestError{StatusCode: resp.StatusCode, Body: text}
	}

	ct := strings.ToLower(resp.Header.Get("Content-Type"))
	if !strings.Contains(ct, "application/json") && looksLikeHTML(text) {
		return ErrProxyIntercepted
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &MalformedResponseError{Err: err}
	}
	return nil
}

// GetJSON is DecodeJSON with the result type as a type parameter.
func GetJSON[T any](ctx context.Context, c *Client, path string, opts *RequestOptions) (T, error) {
	var out T
	err := c.DecodeJSON(ctx, path, opts, &out)
	return out, err
}

func looksLikeHTML(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	return strings.HasPrefix(t, "<!doctype") || strings.HasPrefix(t, "<html")
}
