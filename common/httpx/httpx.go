package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/atomic"

	"github.com/neuralmind-ai/nsx-chatbot/config"
)

// Client executes outbound calls with a per-attempt deadline. Only timeouts
// are retried, immediately and up to MaxRetries attempts in total. Any HTTP
// status is returned as-is for the caller to classify.
type Client struct {
	hc  *http.Client
	opt Options

	calls   atomic.Int64
	retries atomic.Int64
}

type Options struct {
	Timeout    time.Duration
	MaxRetries int
}

// Request describes one call. Body is JSON-encoded when set. Timeout
// overrides Options.Timeout for this call.
type Request struct {
	Method  string
	URL     string
	Params  url.Values
	Headers map[string]string
	Body    any
	Timeout time.Duration
}

// Response is a fully read reply.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (r *Response) OK() bool { return r.StatusCode >= 200 && r.StatusCode < 300 }

// JSON exposes the body for gjson lookups.
func (r *Response) JSON() gjson.Result { return gjson.ParseBytes(r.Body) }

func NewFromConfig(cfg *config.HTTPClientConfig) *Client {
	to := 10 * time.Second
	if cfg != nil && cfg.TimeoutMs > 0 {
		to = time.Duration(cfg.TimeoutMs) * time.Millisecond
	}
	retries := 3
	if cfg != nil && cfg.MaxRetries > 0 {
		retries = cfg.MaxRetries
	}
	transport := &http.Transport{
		Proxy:           http.ProxyFromEnvironment,
		DialContext:     (&net.Dialer{Timeout: to}).DialContext,
		MaxIdleConns:    100,
		IdleConnTimeout: 30 * time.Second,
	}
	return New(Options{Timeout: to, MaxRetries: retries}, &http.Client{Transport: transport})
}

func New(opt Options, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{}
	}
	if opt.MaxRetries <= 0 {
		opt.MaxRetries = 1
	}
	return &Client{hc: hc, opt: opt}
}

// MaxRetries is the attempt ceiling shared with non-HTTP callers of Retry.
func (c *Client) MaxRetries() int { return c.opt.MaxRetries }

// Stats returns the number of attempts made and how many of them were retries.
func (c *Client) Stats() (calls, retries int64) { return c.calls.Load(), c.retries.Load() }

// Execute runs req. After the last timed-out attempt the error is KindTimeout;
// other transport errors are returned unclassified on the first failure.
func (c *Client) Execute(ctx context.Context, req Request) (*Response, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.opt.Timeout
	}
	var payload []byte
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("httpx: encode body: %w", err)
		}
		payload = b
	}
	target := req.URL
	if len(req.Params) > 0 {
		target += "?" + req.Params.Encode()
	}

	resp, err := Retry(ctx, c.opt.MaxRetries, timeout, req.Method+" "+req.URL,
		func(actx context.Context) (*Response, error) {
			c.calls.Inc()
			return c.once(actx, req, target, payload)
		},
		func(uint, error) { c.retries.Inc() },
	)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) once(actx context.Context, req Request, target string, payload []byte) (*Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	hr, err := http.NewRequestWithContext(actx, method, target, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		hr.Header.Set("Content-Type", "application/json")
	}
	for k, v := range req.Headers {
		hr.Header.Set(k, v)
	}
	resp, err := c.hc.Do(hr)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: b}, nil
}
