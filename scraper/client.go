package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/codewidneha/kitchenhub/config"
	"github.com/codewidneha/kitchenhub/models"
)

var ErrUnexpectedStatusCode = errors.New("unexpected status code")

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

// jsonClient is the shared HTTP listing client. Each platform wires its
// own path and response envelope; fetches are bounded by the configured
// timeout and retried with exponential backoff.
type jsonClient struct {
	platform string
	baseURL  string
	path     string
	envelope string
	client   *http.Client
	retry    config.AdapterConfig
}

func newJSONClient(platform, baseURL, path, envelope string, retry config.AdapterConfig) *jsonClient {
	return &jsonClient{
		platform: platform,
		baseURL:  baseURL,
		path:     path,
		envelope: envelope,
		client:   &http.Client{Timeout: retry.Timeout()},
		retry:    retry,
	}
}

func (c *jsonClient) Platform() string { return c.platform }

// Fetch pulls the raw listings near the origin. Every failure comes back
// as an *AdapterError so the orchestrator can isolate it per platform.
func (c *jsonClient) Fetch(ctx context.Context, location string, lat, lng float64) ([]models.RawListing, error) {
	reqURL, err := c.searchURL(location, lat, lng)
	if err != nil {
		return nil, &AdapterError{Platform: c.platform, Reason: "bad request url", Err: err}
	}

	var lastErr error
	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		if delay := c.retry.RetryDelay(attempt); delay > 0 {
			select {
			case <-ctx.Done():
				return nil, &AdapterError{Platform: c.platform, Reason: "fetch cancelled", Err: ctx.Err()}
			case <-time.After(delay):
			}
		}

		listings, err := c.fetchOnce(ctx, reqURL)
		if err == nil {
			return listings, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		logrus.Printf("platform %s fetch attempt %d/%d failed: %v", c.platform, attempt, c.retry.MaxAttempts, err)
	}

	return nil, &AdapterError{Platform: c.platform, Reason: "fetch failed", Err: lastErr}
}

func (c *jsonClient) fetchOnce(ctx context.Context, reqURL string) ([]models.RawListing, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatusCode, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return c.decode(body)
}

// decode accepts either a bare JSON array or an object wrapping the
// array under the platform's envelope key.
func (c *jsonClient) decode(body []byte) ([]models.RawListing, error) {
	var bare []models.RawListing
	if err := json.Unmarshal(body, &bare); err == nil {
		return bare, nil
	}

	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}
	raw, ok := wrapped[c.envelope]
	if !ok {
		return nil, fmt.Errorf("payload missing %q field", c.envelope)
	}
	var listings []models.RawListing
	if err := json.Unmarshal(raw, &listings); err != nil {
		return nil, fmt.Errorf("failed to decode %q field: %w", c.envelope, err)
	}
	return listings, nil
}

func (c *jsonClient) searchURL(location string, lat, lng float64) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}
	u.Path, err = url.JoinPath(u.Path, c.path)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("location", location)
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lng", strconv.FormatFloat(lng, 'f', -1, 64))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
