// Package geocode talks to the Google Geocoding API.
package geocode

import (
	"context"
	crand "crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"freshlistings/internal/adapters/observability"
	"freshlistings/internal/domain"
)

const DefaultBaseURL = "https://maps.googleapis.com/maps/api/geocode/json"

var (
	ErrDenied = errors.New("geocode: request denied")
	ErrStatus = errors.New("geocode: unexpected status")
)

type Client struct {
	base   string
	hc     *http.Client
	key    string
	region string
	rl     *rate.Limiter
}

type Option func(*Client)

// WithRegion biases results to a ccTLD region and restricts them to that country. Default "au".
func WithRegion(region string) Option { return func(c *Client) { c.region = region } }

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.hc = hc } }

func New(base, key string, rps int, opts ...Option) (*Client, error) {
	if key == "" {
		return nil, fmt.Errorf("geocoding API key is required")
	}
	if base == "" {
		base = DefaultBaseURL
	}
	if rps <= 0 {
		rps = 10
	}
	c := &Client{
		base:   base,
		hc:     &http.Client{Timeout: 10 * time.Second},
		key:    key,
		region: "au",
		rl:     rate.NewLimiter(rate.Limit(rps), rps),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

type apiResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		FormattedAddress string `json:"formatted_address"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// Lookup returns candidates best first. ZERO_RESULTS is an empty list, not an error.
// All failures wrap domain.ErrUpstream.
func (c *Client) Lookup(ctx context.Context, address string) ([]domain.GeocodeCandidate, error) {
	q := url.Values{}
	q.Set("address", address)
	q.Set("region", c.region)
	q.Set("components", "country:"+strings.ToUpper(c.region))
	q.Set("key", c.key)

	var out apiResponse
	if err := c.get(ctx, c.base+"?"+q.Encode(), &out); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrUpstream, err)
	}

	switch out.Status {
	case "OK":
	case "ZERO_RESULTS":
		return []domain.GeocodeCandidate{}, nil
	case "REQUEST_DENIED":
		return nil, fmt.Errorf("%w: %w: %s", domain.ErrUpstream, ErrDenied, out.ErrorMessage)
	default:
		return nil, fmt.Errorf("%w: %w %q", domain.ErrUpstream, ErrStatus, out.Status)
	}

	cands := make([]domain.GeocodeCandidate, 0, len(out.Results))
	for _, r := range out.Results {
		cands = append(cands, domain.GeocodeCandidate{
			FormattedAddress: r.FormattedAddress,
			Lat:              r.Geometry.Location.Lat,
			Lng:              r.Geometry.Location.Lng,
		})
	}
	return cands, nil
}

// get performs a GET with client-side rate limiting, retries, and JSON decode into out.
// Retries on 429 and transient 5xx, honoring Retry-After when provided.
func (c *Client) get(ctx context.Context, u string, out any) error {
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}

	var lastErr error
	for i := 0; i < 4; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "freshlistings/1.0")

		start := time.Now()
		resp, err := c.hc.Do(req)
		if err != nil {
			observability.ObserveExternal("geocode", "geocode/json", 0, time.Since(start))
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// url.Error carries the full URL, key included
			lastErr = errors.New("geocode transport failure")
			if i < 3 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr
		}
		observability.ObserveExternal("geocode", "geocode/json", resp.StatusCode, time.Since(start))

		switch resp.StatusCode {
		case http.StatusOK:
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			return err

		case http.StatusUnauthorized, http.StatusForbidden:
			resp.Body.Close()
			return ErrDenied

		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			wait := retryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = fmt.Errorf("remote %d", resp.StatusCode)
			if i < 3 && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr

		default:
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return fmt.Errorf("bad status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
		}
	}

	return lastErr
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After (seconds or HTTP-date). Returns 0 if absent/invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff doubles from 200ms per attempt with up to +50% jitter.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	return base + time.Duration(0.5*f*float64(base))
}
