package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"

	"pkdindustries/forkingdongles/internal/metrics"
)

const (
	DefaultMaxBytes  = 4 << 20
	DefaultTimeout   = 15 * time.Second
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:128.0) Gecko/20100101 Firefox/128.0"
)

var (
	ErrTooLarge    = errors.New("response body too large")
	ErrBadResponse = errors.New("bad response")
)

// Kind is how a response body was decoded.
type Kind int

const (
	KindBytes Kind = iota
	KindImage
	KindHTML
	KindJSON
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindHTML:
		return "html"
	case KindJSON:
		return "json"
	default:
		return "bytes"
	}
}

// Response is a fetched and decoded HTTP response. Exactly one of Image, Document
// or JSON is set according to Kind; Body always holds the raw (capped) bytes.
type Response struct {
	URL         string
	Status      int
	Header      http.Header
	ContentType string
	Charset     string
	Length      int64
	Truncated   bool
	Kind        Kind

	Body     []byte
	Image    image.Image
	Format   string
	Document *html.Node
	JSON     any
}

// Text returns the body converted to UTF-8 according to the declared charset.
func (r *Response) Text() string {
	reader, err := charset.NewReader(bytes.NewReader(r.Body), r.ContentType+"; charset="+r.Charset)
	if err != nil {
		return string(r.Body)
	}
	out, err := io.ReadAll(reader)
	if err != nil {
		return string(r.Body)
	}
	return string(out)
}

type Options struct {
	Timeout   time.Duration
	MaxBytes  int64
	UserAgent string
	// Failures is the number of consecutive failures against one host before
	// requests to it fail fast.
	Failures uint32
	// Cooldown is how long a tripped host stays open.
	Cooldown time.Duration
	Client   *http.Client
}

// Fetcher performs GET requests with per-host circuit breakers.
type Fetcher struct {
	client    *http.Client
	maxBytes  int64
	userAgent string
	failures  uint32
	cooldown  time.Duration

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[*Response]
}

func New(opts Options) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Failures == 0 {
		opts.Failures = 5
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = time.Minute
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &Fetcher{
		client:    client,
		maxBytes:  opts.MaxBytes,
		userAgent: opts.UserAgent,
		failures:  opts.Failures,
		cooldown:  opts.Cooldown,
		breakers:  make(map[string]*gobreaker.CircuitBreaker[*Response]),
	}
}

func (f *Fetcher) breaker(host string) *gobreaker.CircuitBreaker[*Response] {
	f.mu.Lock()
	defer f.mu.Unlock()

	if cb, ok := f.breakers[host]; ok {
		return cb
	}
	failures := f.failures
	cb := gobreaker.NewCircuitBreaker[*Response](gobreaker.Settings{
		Name:        "fetch:" + host,
		MaxRequests: 1,
		Timeout:     f.cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			zap.S().Warnw("Circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	f.breakers[host] = cb
	return cb
}

// Fetch GETs rawURL, following redirects, and decodes the body by content type:
// image/* to an image.Image, text/html to a parsed document, application/json
// to a JSON value, anything else left as bytes. Bodies past the size cap are
// truncated; truncated images and JSON fail with ErrTooLarge.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid url %q: unsupported scheme", rawURL)
	}

	resp, err := f.breaker(u.Host).Execute(func() (*Response, error) {
		return f.get(ctx, u.String())
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("host %q circuit open: %w", u.Host, err)
		}
		return nil, err
	}

	if err := f.decode(resp); err != nil {
		return nil, err
	}
	metrics.FetchRequests.WithLabelValues(resp.Kind.String()).Inc()
	return resp, nil
}

func (f *Fetcher) get(ctx context.Context, rawURL string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.userAgent)

	httpResp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("%w: %s", ErrBadResponse, httpResp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	resp := &Response{
		URL:    httpResp.Request.URL.String(),
		Status: httpResp.StatusCode,
		Header: httpResp.Header,
		Length: httpResp.ContentLength,
	}
	if int64(len(body)) > f.maxBytes {
		body = body[:f.maxBytes]
		resp.Truncated = true
	}
	resp.Body = body
	if resp.Length < 0 {
		resp.Length = int64(len(body))
	}

	resp.ContentType, resp.Charset = parseContentType(httpResp.Header.Get("Content-Type"))
	return resp, nil
}

func parseContentType(header string) (string, string) {
	if header == "" {
		return "application/octet-stream", "utf-8"
	}
	mediaType, params, err := mime.ParseMediaType(header)
	if err != nil {
		mediaType, _, _ = strings.Cut(header, ";")
		mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	}
	cs := params["charset"]
	if cs == "" {
		cs = "utf-8"
	}
	return mediaType, strings.ToLower(cs)
}

func (f *Fetcher) decode(resp *Response) error {
	switch {
	case strings.HasPrefix(resp.ContentType, "image/"):
		if resp.Truncated {
			return fmt.Errorf("%w: image exceeds %d bytes", ErrTooLarge, f.maxBytes)
		}
		img, format, err := image.Decode(bytes.NewReader(resp.Body))
		if err != nil {
			return fmt.Errorf("failed to decode image: %w", err)
		}
		resp.Kind, resp.Image, resp.Format = KindImage, img, format

	case resp.ContentType == "application/json":
		if resp.Truncated {
			return fmt.Errorf("%w: json exceeds %d bytes", ErrTooLarge, f.maxBytes)
		}
		if !gjson.ValidBytes(resp.Body) {
			return fmt.Errorf("%w: invalid json", ErrBadResponse)
		}
		resp.Kind, resp.JSON = KindJSON, gjson.ParseBytes(resp.Body).Value()

	case resp.ContentType == "text/html":
		reader, err := charset.NewReader(bytes.NewReader(resp.Body), resp.ContentType+"; charset="+resp.Charset)
		if err != nil {
			return fmt.Errorf("failed to decode charset %s: %w", resp.Charset, err)
		}
		doc, err := html.Parse(reader)
		if err != nil {
			return fmt.Errorf("failed to parse html: %w", err)
		}
		resp.Kind, resp.Document = KindHTML, doc

	default:
		resp.Kind = KindBytes
	}
	return nil
}
