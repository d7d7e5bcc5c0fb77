package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rotisserie/eris"
)

const (
	opencageBaseURL = "https://api.opencagedata.com"
	opencagePath    = "/geocode/v1/json"
)

// opencageResponse is the JSON response from the OpenCage forward geocoding API.
type opencageResponse struct {
	Results []opencageResult `json:"results"`
	Status  struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"status"`
}

type opencageResult struct {
	Formatted  string `json:"formatted"`
	Confidence int    `json:"confidence"`
	Geometry   struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	} `json:"geometry"`
}

// geocodeOpenCage queries OpenCage with q, limit and key.
func (g *geocoder) geocodeOpenCage(ctx context.Context, query string, limit int) ([]Result, error) {
	params := url.Values{
		"q":     {query},
		"limit": {strconv.Itoa(limit)},
		"key":   {g.cfg.APIKey},
	}

	reqURL := g.cfg.BaseURL + opencagePath + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: opencage build request")
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: opencage request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("geocode: opencage returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: opencage read body")
	}

	var ocResp opencageResponse
	if err := json.Unmarshal(body, &ocResp); err != nil {
		return nil, eris.Wrap(err, "geocode: opencage parse response")
	}

	results := make([]Result, 0, len(ocResp.Results))
	for _, r := range ocResp.Results {
		results = append(results, Result{
			Formatted:  r.Formatted,
			Latitude:   r.Geometry.Lat,
			Longitude:  r.Geometry.Lng,
			Confidence: r.Confidence,
			Source:     ProviderOpenCage,
		})
	}
	return results, nil
}
