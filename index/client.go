package index

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Client configuration defaults.
const (
	DefaultMaxIdleConns        = 50
	DefaultMaxIdleConnsPerHost = 20
	DefaultIdleConnTimeout     = 90 * time.Second
	DefaultRequestTimeout      = 15 * time.Second
)

// Client fetches package summaries from an HTTP sparse index.
//
// The index is laid out one file per package, each file holding one JSON
// record per published version, newline-delimited. Results are cached per
// package name, so repeated queries during a resolution hit the network at
// most once.
type Client struct {
	baseURL string
	client  *http.Client

	cache sync.Map // map[string][]*Summary keyed by package name
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// WithTimeout sets a custom HTTP request timeout.
// Zero or negative values fall back to the default timeout (15 seconds).
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.client.Timeout = timeout
		} else {
			c.client.Timeout = DefaultRequestTimeout
		}
	}
}

// NewClient creates a client for the given sparse index base URL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	transport := &http.Transport{
		MaxIdleConns:        DefaultMaxIdleConns,
		MaxIdleConnsPerHost: DefaultMaxIdleConnsPerHost,
		IdleConnTimeout:     DefaultIdleConnTimeout,
		DisableCompression:  false,
	}

	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client: &http.Client{
			Timeout:   DefaultRequestTimeout,
			Transport: transport,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// BaseURL returns the index base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Versions fetches all published versions of a package, cached per name.
// A missing package returns ErrPackageNotFound; transport failures return a
// *FetchError with Network set.
func (c *Client) Versions(ctx context.Context, name string) ([]*Summary, error) {
	if cached, ok := c.cache.Load(name); ok {
		return cached.([]*Summary), nil
	}

	url := c.baseURL + "/" + indexPath(name)
	data, err := c.fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	summaries, err := parseRecords(name, data)
	if err != nil {
		return nil, err
	}

	c.cache.Store(name, summaries)
	return summaries, nil
}

// fetch performs an HTTP GET and returns the response body.
func (c *Client) fetch(ctx context.Context, url string) ([]byte, error) {
	name := url[strings.LastIndex(url, "/")+1:]

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, &FetchError{Name: name, Err: err}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &FetchError{Name: name, Network: true, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound, http.StatusGone:
		return nil, fmt.Errorf("%s: %w", name, ErrPackageNotFound)
	default:
		return nil, &FetchError{Name: name, Network: true, Err: fmt.Errorf("HTTP %d: %s", resp.StatusCode, url)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Name: name, Network: true, Err: err}
	}
	return data, nil
}

// indexPath computes the sharded path of a package's index file.
// Short names live under 1/ and 2/; longer names shard by their first four
// characters so registry directories stay small.
func indexPath(name string) string {
	switch len(name) {
	case 0:
		return name
	case 1:
		return "1/" + name
	case 2:
		return "2/" + name
	case 3:
		return "3/" + name[:1] + "/" + name
	default:
		return name[:2] + "/" + name[2:4] + "/" + name
	}
}
