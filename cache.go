package main

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-openapi/strfmt"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mgazza/octopus-insights/internal/metrics"
)

// cachedResponse is a helper struct to store the response fields
// we care about in a simple JSON format.
type cachedResponse struct {
	Status     string              `json:"status"`
	StatusCode int                 `json:"status_code"`
	Proto      string              `json:"proto"`
	Header     map[string][]string `json:"header"`
	Body       []byte              `json:"body"`
}

// CachingRoundTripper implements http.RoundTripper. Successful GET responses
// for a period that has already ended are written to CacheDir and replayed on
// later identical requests. Anything still open is always fetched.
type CachingRoundTripper struct {
	// UnderlyingTransport will be used when there's a cache miss.
	// If nil, http.DefaultTransport will be used.
	UnderlyingTransport http.RoundTripper

	// CacheDir is the directory where response files are stored.
	CacheDir string

	Logger *zap.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

func (c *CachingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	next := c.UnderlyingTransport
	if next == nil {
		next = http.DefaultTransport
	}
	if !c.cacheable(req) {
		return next.RoundTrip(req)
	}

	// Read the request body into memory so we can hash it
	// and also send it on to the next transport.
	var bodyBytes []byte
	if req.Body != nil {
		var err error
		bodyBytes, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
	}

	// We ignore headers, so only method, URL, and body are used.
	cacheFilePath := c.cacheFilePath(cacheKey(req.Method, req.URL.String(), bodyBytes))

	if cr, err := loadCachedResponse(cacheFilePath); err == nil {
		metrics.RecordResponseCacheLookup(true)
		return buildHTTPResponse(req, *cr), nil
	}
	metrics.RecordResponseCacheLookup(false)

	resp, err := next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	cr := cachedResponse{
		Status:     resp.Status,
		StatusCode: resp.StatusCode,
		Proto:      resp.Proto,
		Header:     resp.Header.Clone(),
		Body:       respBodyBytes,
	}
	// Errors are not cached so that a later run retries them.
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := saveCachedResponse(cacheFilePath, &cr); err != nil && c.Logger != nil {
			c.Logger.Warn("failed to write response cache", zap.String("path", cacheFilePath), zap.Error(err))
		}
	}

	// We need to return a new http.Response that has a readable Body.
	return buildHTTPResponse(req, cr), nil
}

// cacheable reports whether the response to req can no longer change: a GET
// whose period_to lies in the past.
func (c *CachingRoundTripper) cacheable(req *http.Request) bool {
	if req.Method != http.MethodGet {
		return false
	}
	periodTo := req.URL.Query().Get("period_to")
	if periodTo == "" {
		return false
	}
	to, err := strfmt.ParseDateTime(periodTo)
	if err != nil {
		return false
	}
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	return time.Time(to).Before(now())
}

// cacheKey builds a SHA-256 hash string from method, url, and request body.
func cacheKey(method, url string, body []byte) string {
	hash := sha256.New()
	hash.Write([]byte(method))
	hash.Write([]byte(url))
	if len(body) > 0 {
		hash.Write(body)
	}
	return hex.EncodeToString(hash.Sum(nil))
}

// cacheFilePath returns the path to the cache file for the given key.
func (c *CachingRoundTripper) cacheFilePath(key string) string {
	return filepath.Join(c.CacheDir, key+".json")
}

// loadCachedResponse reads and deserializes a cached file.
func loadCachedResponse(path string) (*cachedResponse, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cr cachedResponse
	if err := json.Unmarshal(data, &cr); err != nil {
		return nil, err
	}
	return &cr, nil
}

// saveCachedResponse saves the response struct to a file in JSON format.
func saveCachedResponse(path string, cr *cachedResponse) error {
	data, err := json.MarshalIndent(cr, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// buildHTTPResponse constructs a new *http.Response from cachedResponse data.
func buildHTTPResponse(req *http.Request, cr cachedResponse) *http.Response {
	return &http.Response{
		Status:        cr.Status,
		StatusCode:    cr.StatusCode,
		Proto:         cr.Proto,
		Header:        cr.Header,
		Body:          io.NopCloser(bytes.NewReader(cr.Body)),
		ContentLength: int64(len(cr.Body)),
		Request:       req,
	}
}

// RateLimitedRoundTripper waits on Limiter before each request and records
// the outcome of every call that reaches the API.
type RateLimitedRoundTripper struct {
	UnderlyingTransport http.RoundTripper
	Limiter             *rate.Limiter
}

// NewRateLimitedRoundTripper allows rps requests per second with bursts of burst.
func NewRateLimitedRoundTripper(next http.RoundTripper, rps float64, burst int) *RateLimitedRoundTripper {
	return &RateLimitedRoundTripper{
		UnderlyingTransport: next,
		Limiter:             rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (r *RateLimitedRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	next := r.UnderlyingTransport
	if next == nil {
		next = http.DefaultTransport
	}
	if r.Limiter != nil {
		if err := r.Limiter.Wait(req.Context()); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	resp, err := next.RoundTrip(req)
	if err != nil {
		metrics.RecordOctopusRequest(0, time.Since(start))
		return nil, err
	}
	metrics.RecordOctopusRequest(resp.StatusCode, time.Since(start))
	return resp, nil
}
