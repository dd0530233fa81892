package mapbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/fleet-map/internal/domain"
	"github.com/couchcryptid/fleet-map/internal/observability"
)

const defaultBaseURL = "https://api.mapbox.com/search/geocode/v6"

// Client implements domain.AddressResolver using the Mapbox Geocoding v6
// reverse endpoint.
type Client struct {
	token      string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Mapbox reverse geocoding client.
func NewClient(token string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    defaultBaseURL,
		metrics:    metrics,
		logger:     logger,
	}
}

// ResolveAddress returns the nearest street address to pos.
func (c *Client) ResolveAddress(ctx context.Context, pos domain.Position) (domain.Address, error) {
	params := url.Values{
		"longitude":    {strconv.FormatFloat(pos.Lon, 'f', 6, 64)},
		"latitude":     {strconv.FormatFloat(pos.Lat, 'f', 6, 64)},
		"types":        {"address"},
		"limit":        {"1"},
		"access_token": {c.token},
	}

	start := time.Now()
	addr, err := c.lookup(ctx, c.baseURL+"/reverse?"+params.Encode())
	c.metrics.GeocodeAPIDuration.Observe(time.Since(start).Seconds())

	outcome := "success"
	switch {
	case err != nil:
		outcome = "error"
	case addr.Full == "":
		outcome = "empty"
		c.logger.Debug("no address found", "lat", pos.Lat, "lon", pos.Lon)
	}
	c.metrics.GeocodeRequests.WithLabelValues(outcome).Inc()
	return addr, err
}

func (c *Client) lookup(ctx context.Context, fullURL string) (domain.Address, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return domain.Address{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Address{}, fmt.Errorf("reverse geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		return domain.Address{}, fmt.Errorf("mapbox API error: status %d: %s", resp.StatusCode, body)
	}

	var fc featureCollection
	if err := json.NewDecoder(resp.Body).Decode(&fc); err != nil {
		return domain.Address{}, fmt.Errorf("decode response: %w", err)
	}
	if len(fc.Features) == 0 {
		return domain.Address{}, nil
	}
	return fc.Features[0].Properties.address(), nil
}

type featureCollection struct {
	Features []feature `json:"features"`
}

type feature struct {
	Properties properties `json:"properties"`
}

type properties struct {
	Name        string         `json:"name"`
	FullAddress string         `json:"full_address"`
	Context     featureContext `json:"context"`
}

type featureContext struct {
	Place    named `json:"place"`
	Region   named `json:"region"`
	Postcode named `json:"postcode"`
}

type named struct {
	Name string `json:"name"`
}

func (p properties) address() domain.Address {
	return domain.Address{
		Full:     p.FullAddress,
		Street:   p.Name,
		Place:    p.Context.Place.Name,
		Region:   p.Context.Region.Name,
		Postcode: p.Context.Postcode.Name,
	}
}
