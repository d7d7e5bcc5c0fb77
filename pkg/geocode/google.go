package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"github.com/rotisserie/eris"
)

const (
	googleBaseURL = "https://maps.googleapis.com"
	googlePath    = "/maps/api/geocode/json"
)

// googleGeocodeResponse is the JSON response from the Google Geocoding API.
type googleGeocodeResponse struct {
	Results      []googleResult `json:"results"`
	Status       string         `json:"status"`
	ErrorMessage string         `json:"error_message"`
}

type googleResult struct {
	Geometry struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
		LocationType string `json:"location_type"`
	} `json:"geometry"`
	FormattedAddress string `json:"formatted_address"`
}

// geocodeGoogle geocodes a free-text address using the Google Geocoding API.
// Google has no limit parameter; Forward truncates the results.
func (g *geocoder) geocodeGoogle(ctx context.Context, query string, _ int) ([]Result, error) {
	params := url.Values{
		"address": {query},
		"key":     {g.cfg.APIKey},
	}

	reqURL := g.cfg.BaseURL + googlePath + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: google build request")
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: google request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("geocode: google returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: google read body")
	}

	var googleResp googleGeocodeResponse
	if err := json.Unmarshal(body, &googleResp); err != nil {
		return nil, eris.Wrap(err, "geocode: google parse response")
	}

	switch googleResp.Status {
	case "OK":
	case "ZERO_RESULTS":
		return nil, nil
	default:
		return nil, eris.Errorf("geocode: google status %s: %s", googleResp.Status, googleResp.ErrorMessage)
	}

	results := make([]Result, 0, len(googleResp.Results))
	for _, r := range googleResp.Results {
		results = append(results, Result{
			Formatted:  r.FormattedAddress,
			Latitude:   r.Geometry.Location.Lat,
			Longitude:  r.Geometry.Location.Lng,
			Confidence: googleLocationTypeToConfidence(r.Geometry.LocationType),
			Source:     ProviderGoogle,
		})
	}
	return results, nil
}

// googleLocationTypeToConfidence maps Google's location_type onto OpenCage's
// 0-10 confidence scale.
func googleLocationTypeToConfidence(locType string) int {
	switch locType {
	case "ROOFTOP":
		return 10
	case "RANGE_INTERPOLATED":
		return 8
	case "GEOMETRIC_CENTER":
		return 6
	default:
		return 3
	}
}
