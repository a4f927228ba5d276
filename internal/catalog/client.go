package catalog

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/tidwall/gjson"

	"github.com/pauljones0/epic-free-games-bot/internal/models"
)

const elementsPath = "data.Catalog.searchStore.elements"

// Fetcher returns the raw catalog elements of one upstream response.
type Fetcher interface {
	Fetch(ctx context.Context) ([]gjson.Result, error)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Fetch issues a single request to the promotions endpoint. There is no
// retry: a failed attempt is reported to the caller as ErrUpstreamUnavailable.
func (c *Client) Fetch(ctx context.Context) ([]gjson.Result, error) {
	reqURL, err := c.requestURL()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build catalog request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "gzip, br")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", models.ErrUpstreamUnavailable, resp.StatusCode)
	}

	body, err := readBody(resp)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", models.ErrUpstreamUnavailable, err)
	}

	elements, err := parseElements(body)
	if err != nil {
		// An absent element list is indistinguishable from an empty catalog.
		slog.Warn("Catalog response has unexpected shape, treating as empty", "error", err)
		return []gjson.Result{}, nil
	}
	slog.Info("Fetched catalog", "elements", len(elements))
	return elements, nil
}

func (c *Client) requestURL() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid catalog URL %q: %w", c.baseURL, err)
	}
	q := u.Query()
	q.Set("locale", "en-US")
	q.Set("country", "US")
	q.Set("allowCountries", "US")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func parseElements(body []byte) ([]gjson.Result, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: body is not valid JSON", models.ErrMalformedResponse)
	}
	list := gjson.GetBytes(body, elementsPath)
	if !list.IsArray() {
		return nil, fmt.Errorf("%w: %s is missing or not an array", models.ErrMalformedResponse, elementsPath)
	}
	return list.Array(), nil
}

func readBody(resp *http.Response) ([]byte, error) {
	var reader io.Reader
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		defer gz.Close()
		reader = gz
	case "br":
		reader = brotli.NewReader(resp.Body)
	default:
		reader = resp.Body
	}
	return io.ReadAll(reader)
}
