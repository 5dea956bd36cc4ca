package iss

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultAPIURL is the "Where the ISS at?" endpoint for the ISS.
const DefaultAPIURL = "https://api.wheretheiss.at/v1/satellites/25544"

// maxBodyBytes bounds the response size accepted from the position API.
const maxBodyBytes = 1 << 20

// StatusError reports a non-200 response from the position API.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d from %s", e.StatusCode, e.URL)
}

// apiResponse mirrors the fields of the wheretheiss.at satellite payload
// that the tracker consumes.
type apiResponse struct {
	Name       string   `json:"name"`
	ID         int      `json:"id"`
	Latitude   *float64 `json:"latitude"`
	Longitude  *float64 `json:"longitude"`
	Altitude   *float64 `json:"altitude"`
	Velocity   *float64 `json:"velocity"`
	Visibility string   `json:"visibility"`
	Timestamp  int64    `json:"timestamp"`
}

// APISource fetches the satellite position from an HTTP JSON API.
type APISource struct {
	url        string
	httpClient *http.Client
}

// NewAPISource creates an APISource for url. An empty url selects
// DefaultAPIURL; a non-positive timeout selects 5 seconds.
func NewAPISource(url string, timeout time.Duration) *APISource {
	if url == "" {
		url = DefaultAPIURL
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &APISource{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Name implements Source.
func (s *APISource) Name() string { return "api" }

// URL returns the configured endpoint.
func (s *APISource) URL() string { return s.url }

// Position performs one GET against the API and decodes the response.
func (s *APISource) Position(ctx context.Context) (Position, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return Position{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return Position{}, fmt.Errorf("fetching position: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return Position{}, &StatusError{StatusCode: resp.StatusCode, URL: s.url}
	}

	var body apiResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&body); err != nil {
		return Position{}, fmt.Errorf("decoding position: %w", err)
	}
	if body.Latitude == nil || body.Longitude == nil {
		return Position{}, fmt.Errorf("decoding position: response missing latitude/longitude")
	}

	pos := Position{
		Latitude:   *body.Latitude,
		Longitude:  *body.Longitude,
		Visibility: body.Visibility,
		Source:     s.Name(),
	}
	if body.Altitude != nil {
		pos.AltitudeKm = *body.Altitude
	}
	if body.Velocity != nil {
		pos.VelocityKmh = *body.Velocity
	}
	if body.Timestamp > 0 {
		pos.Timestamp = time.Unix(body.Timestamp, 0).UTC()
	} else {
		pos.Timestamp = time.Now().UTC()
	}
	return pos, nil
}
