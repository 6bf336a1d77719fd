package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"boutique/backoffice/internal/apperr"
	"boutique/backoffice/internal/session"
)

const maxErrorBody = 64 << 10

// Client talks to the boutique REST backend. It is safe for concurrent use.
type Client struct {
	baseURL    string
	http       *http.Client
	session    *session.Session
	logger     logrus.FieldLogger
	retryDelay time.Duration
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.http.Timeout = timeout
		}
	}
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithRetryDelay(delay time.Duration) Option {
	return func(c *Client) {
		if delay >= 0 {
			c.retryDelay = delay
		}
	}
}

func New(baseURL string, sess *session.Session, opts ...Option) *Client {
	if sess == nil {
		sess = session.New(nil)
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		http:       &http.Client{Timeout: 10 * time.Second},
		session:    sess,
		logger:     logrus.StandardLogger(),
		retryDelay: 300 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.WithField("component", "apiclient")
	return c
}

func (c *Client) Session() *session.Session {
	return c.session
}

type request struct {
	method      string
	path        string
	query       url.Values
	body        []byte
	contentType string
	noAuth      bool
	absoluteURL string
}

func (r request) idempotent() bool {
	return r.method == http.MethodGet || r.method == http.MethodHead
}

func (r request) label() string {
	return r.method + " " + r.path
}

// doJSON sends a request and decodes a JSON body into out (when non-nil).
func (c *Client) doJSON(ctx context.Context, req request, out any) error {
	resp, err := c.send(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent || out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if !isJSON(resp.Header.Get("Content-Type")) {
		return &apperr.ServerError{Status: resp.StatusCode, Detail: "server returned a non-JSON response"}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return &apperr.ServerError{Status: resp.StatusCode, Detail: "server returned an empty body"}
		}
		return &apperr.ServerError{Status: resp.StatusCode, Detail: "malformed response body", Err: err}
	}
	return nil
}

// send executes req and returns a 2xx response. Idempotent requests get one
// retry on transport failures and 5xx; writes are never retried.
func (c *Client) send(ctx context.Context, req request) (*http.Response, error) {
	resp, err := c.sendOnce(ctx, req)
	if err == nil || !req.idempotent() || !retryable(err) {
		return resp, err
	}

	c.logger.WithError(err).WithField("request", req.label()).Warn("retrying idempotent request")
	if c.retryDelay > 0 {
		timer := time.NewTimer(c.retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, &apperr.NetworkError{Op: req.label(), Err: ctx.Err()}
		case <-timer.C:
		}
	}
	return c.sendOnce(ctx, req)
}

func (c *Client) sendOnce(ctx context.Context, req request) (*http.Response, error) {
	target := req.absoluteURL
	if target == "" {
		target = c.baseURL + req.path
		if len(req.query) > 0 {
			target += "?" + req.query.Encode()
		}
	}

	var body io.Reader
	if req.body != nil {
		body = bytes.NewReader(req.body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", req.label(), err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}
	if !req.noAuth {
		if token := c.session.AccessToken(); token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &apperr.NetworkError{Op: req.label(), Err: err}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()

	detail := readDetail(resp)
	if resp.StatusCode == http.StatusUnauthorized && !req.noAuth {
		c.session.Teardown(ctx, "401 from "+req.label())
		return nil, &apperr.SessionExpiredError{Detail: detail}
	}
	if resp.StatusCode == http.StatusNotFound && detail == "" {
		detail = "endpoint not found"
	}
	return nil, &apperr.ServerError{Status: resp.StatusCode, Detail: detail}
}

func retryable(err error) bool {
	var network *apperr.NetworkError
	if errors.As(err, &network) {
		return !errors.Is(network.Err, context.Canceled)
	}
	var server *apperr.ServerError
	if errors.As(err, &server) {
		return server.Temporary()
	}
	return false
}

// readDetail extracts the backend's human message from an error body. It
// understands {"detail"}, {"message"} and {"error"} shapes.
func readDetail(resp *http.Response) string {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(raw) == 0 {
		return ""
	}
	if !isJSON(resp.Header.Get("Content-Type")) {
		if resp.StatusCode >= 500 {
			return ""
		}
		return strings.TrimSpace(string(raw))
	}

	var body struct {
		Detail  string `json:"detail"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	switch {
	case body.Detail != "":
		return body.Detail
	case body.Message != "":
		return body.Message
	default:
		return body.Error
	}
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

func jsonBody(v any) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode request body: %w", err)
	}
	return payload, nil
}
