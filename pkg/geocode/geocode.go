package geocode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"freezefit/pkg/logger"

	"github.com/tidwall/gjson"
)

var (
	ErrNoResult     = errors.New("address could not be geocoded")
	ErrEmptyAddress = errors.New("address is empty")
)

type Coordinates struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	DisplayName string  `json:"display_name,omitempty"`
}

type Geocoder interface {
	Geocode(ctx context.Context, address string) (*Coordinates, error)
}

// Address joins the non-empty address parts into a single query string.
func Address(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ", ")
}

// NominatimClient talks to a Nominatim-compatible search endpoint.
type NominatimClient struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	log        *logger.Logger
}

func NewNominatimClient(baseURL, userAgent string, timeout time.Duration, log *logger.Logger) *NominatimClient {
	return &NominatimClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

func (c *NominatimClient) Geocode(ctx context.Context, address string) (*Coordinates, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, ErrEmptyAddress
	}

	query := url.Values{}
	query.Set("format", "json")
	query.Set("limit", "1")
	query.Set("q", address)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build geocode request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocode request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read geocode response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("geocoder returned status %d", resp.StatusCode)
	}

	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("geocoder returned invalid JSON")
	}

	result := gjson.GetBytes(body, "0")
	if !result.Exists() {
		return nil, ErrNoResult
	}

	// Nominatim encodes coordinates as strings; Float handles both.
	lat := result.Get("lat")
	lon := result.Get("lon")
	if !lat.Exists() || !lon.Exists() {
		return nil, ErrNoResult
	}

	coords := &Coordinates{
		Latitude:    lat.Float(),
		Longitude:   lon.Float(),
		DisplayName: result.Get("display_name").String(),
	}

	c.log.Debug("Address geocoded",
		"address", address,
		"latitude", coords.Latitude,
		"longitude", coords.Longitude,
		"duration", time.Since(start),
	)

	return coords, nil
}
