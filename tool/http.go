package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/relayforge/relay"
)

const (
	defaultHTTPTimeout     = 30 * time.Second
	defaultMaxResponseSize = 1 << 20
)

// HTTPToolOption configures the HTTP tool.
type HTTPToolOption func(*fetcher)

// fetcher executes the http_request tool under host and size policy.
type fetcher struct {
	client          *http.Client
	allowedHosts    []string
	blockedHosts    []string
	maxResponseSize int64
	timeout         time.Duration
}

// WithHTTPClient sets a custom HTTP client. The client's own timeout wins
// over WithHTTPTimeout.
func WithHTTPClient(c *http.Client) HTTPToolOption {
	return func(f *fetcher) {
		f.client = c
	}
}

// WithAllowedHosts restricts requests to the given hosts and their
// subdomains. Empty means any host not explicitly blocked.
func WithAllowedHosts(hosts ...string) HTTPToolOption {
	return func(f *fetcher) {
		f.allowedHosts = hosts
	}
}

// WithBlockedHosts denies requests to the given hosts and their subdomains.
func WithBlockedHosts(hosts ...string) HTTPToolOption {
	return func(f *fetcher) {
		f.blockedHosts = hosts
	}
}

// WithMaxResponseSize caps how much of the response body is read (default 1MB).
func WithMaxResponseSize(bytes int64) HTTPToolOption {
	return func(f *fetcher) {
		f.maxResponseSize = bytes
	}
}

// WithHTTPTimeout sets the request timeout (default 30s).
func WithHTTPTimeout(d time.Duration) HTTPToolOption {
	return func(f *fetcher) {
		f.timeout = d
	}
}

// httpArgs are the model-facing arguments of the http_request tool.
type httpArgs struct {
	URL     string            `json:"url" desc:"URL to request" required:"true"`
	Method  string            `json:"method" desc:"HTTP method, default GET" enum:"GET,POST,PUT,DELETE,PATCH"`
	Headers map[string]string `json:"headers" desc:"Request headers"`
	Body    string            `json:"body" desc:"Request body (for POST/PUT/PATCH)"`
}

// httpResult is the JSON document the tool returns to the model.
type httpResult struct {
	Status     string            `json:"status"`
	StatusCode int               `json:"status_code"`
	Headers    map[string]string `json:"headers"`
	Body       string            `json:"body"`
	BodySize   int               `json:"body_size"`
	Truncated  bool              `json:"truncated,omitempty"`
}

// NewHTTPTool creates the http_request tool: a generic fetch with host
// allow/block policy and a bounded response size.
func NewHTTPTool(opts ...HTTPToolOption) Registration {
	f := &fetcher{
		maxResponseSize: defaultMaxResponseSize,
		timeout:         defaultHTTPTimeout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.client == nil {
		f.client = &http.Client{Timeout: f.timeout}
	}

	return WithHandler(
		"http_request",
		"Make an HTTP request to a URL",
		MustSchemaFor[httpArgs](),
		f.handle,
	)
}

func (f *fetcher) handle(ctx context.Context, call relay.ToolCall) (string, error) {
	var args httpArgs
	if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
		return "", relay.NewValidationError(relay.CodeInvalidRequest,
			fmt.Sprintf("http_request: malformed arguments: %v", err))
	}
	if err := f.allow(args.URL); err != nil {
		return "", err
	}

	result, err := f.fetch(ctx, args)
	if err != nil {
		return "", err
	}
	out, err := json.Marshal(result)
	if err != nil {
		return "", relay.NewToolExecutionError("http_request: encoding response", err)
	}
	return string(out), nil
}

// allow enforces the host policy. Blocked hosts win over allowed hosts.
func (f *fetcher) allow(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return relay.NewValidationError(relay.CodeInvalidRequest,
			fmt.Sprintf("http_request: invalid url %q: %v", rawURL, err))
	}
	host := u.Hostname()

	for _, blocked := range f.blockedHosts {
		if hostMatches(host, blocked) {
			return relay.NewValidationError(relay.CodeInvalidRequest,
				fmt.Sprintf("http_request: host %q is blocked", host))
		}
	}
	if len(f.allowedHosts) == 0 {
		return nil
	}
	for _, allowed := range f.allowedHosts {
		if hostMatches(host, allowed) {
			return nil
		}
	}
	return relay.NewValidationError(relay.CodeInvalidRequest,
		fmt.Sprintf("http_request: host %q is not allowed", host))
}

func hostMatches(host, pattern string) bool {
	return host == pattern || strings.HasSuffix(host, "."+pattern)
}

func (f *fetcher) fetch(ctx context.Context, args httpArgs) (*httpResult, error) {
	method := args.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if args.Body != "" {
		body = strings.NewReader(args.Body)
	}
	req, err := http.NewRequestWithContext(ctx, method, args.URL, body)
	if err != nil {
		return nil, relay.NewValidationError(relay.CodeInvalidRequest,
			fmt.Sprintf("http_request: %v", err))
	}
	for k, v := range args.Headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, relay.NewToolExecutionError("http_request failed", err)
	}
	defer resp.Body.Close()

	// Read one byte past the cap to detect truncation.
	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxResponseSize+1))
	if err != nil {
		return nil, relay.NewToolExecutionError("http_request: reading response", err)
	}
	truncated := int64(len(data)) > f.maxResponseSize
	if truncated {
		data = data[:f.maxResponseSize]
	}

	result := &httpResult{
		Status:     resp.Status,
		StatusCode: resp.StatusCode,
		Headers:    make(map[string]string, len(resp.Header)),
		Body:       string(data),
		BodySize:   len(data),
		Truncated:  truncated,
	}
	for name, values := range resp.Header {
		if len(values) > 0 {
			result.Headers[name] = values[0]
		}
	}
	return result, nil
}
