// Package google is a client for the Google Places text search and place
// details web services.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/places-catalog/internal/resilience"
)

const defaultBaseURL = "https://maps.googleapis.com/maps/api/place"

// DefaultDetailFields is the details field mask used when none is configured.
var DefaultDetailFields = []string{
	"place_id",
	"name",
	"formatted_address",
	"formatted_phone_number",
	"website",
	"rating",
	"user_ratings_total",
	"opening_hours",
	"price_level",
	"icon",
	"geometry",
	"types",
}

// API status values returned in the response body.
const (
	StatusOK             = "OK"
	StatusZeroResults    = "ZERO_RESULTS"
	StatusInvalidRequest = "INVALID_REQUEST"
	StatusOverQueryLimit = "OVER_QUERY_LIMIT"
	StatusRequestDenied  = "REQUEST_DENIED"
	StatusUnknownError   = "UNKNOWN_ERROR"
	StatusNotFound       = "NOT_FOUND"
)

// ErrPageTokenNotReady is returned when a continuation token is presented
// before the upstream has activated it. The call may succeed after a delay.
var ErrPageTokenNotReady = errors.New("google: page token not ready")

// Client performs Google Places API operations.
type Client interface {
	TextSearch(ctx context.Context, req TextSearchRequest) (*TextSearchResponse, error)
	PlaceDetails(ctx context.Context, placeID string, fields []string) (*PlaceDetails, error)
}

// TextSearchRequest is one text search page request. PageToken is empty for
// the first page.
type TextSearchRequest struct {
	Query     string
	PageToken string
}

// TextSearchResponse is one page of text search results.
type TextSearchResponse struct {
	Results       []Place `json:"results"`
	NextPageToken string  `json:"next_page_token,omitempty"`
	Status        string  `json:"status"`
	ErrorMessage  string  `json:"error_message,omitempty"`
}

// Place is a text search result. Raw holds the result object as received.
type Place struct {
	PlaceID          string          `json:"place_id"`
	Name             string          `json:"name"`
	FormattedAddress string          `json:"formatted_address"`
	Geometry         *Geometry       `json:"geometry,omitempty"`
	Types            []string        `json:"types,omitempty"`
	Rating           *float64        `json:"rating,omitempty"`
	UserRatingsTotal *int            `json:"user_ratings_total,omitempty"`
	PriceLevel       *int            `json:"price_level,omitempty"`
	OpeningHours     *OpeningHours   `json:"opening_hours,omitempty"`
	Icon             string          `json:"icon,omitempty"`
	Raw              json.RawMessage `json:"-"`
}

// PlaceDetails holds the detail fields of a single place.
type PlaceDetails struct {
	PlaceID              string        `json:"place_id"`
	Name                 string        `json:"name"`
	FormattedAddress     string        `json:"formatted_address"`
	FormattedPhoneNumber string        `json:"formatted_phone_number"`
	Website              string        `json:"website"`
	Rating               *float64      `json:"rating,omitempty"`
	UserRatingsTotal     *int          `json:"user_ratings_total,omitempty"`
	PriceLevel           *int          `json:"price_level,omitempty"`
	OpeningHours         *OpeningHours `json:"opening_hours,omitempty"`
	Icon                 string        `json:"icon,omitempty"`
	Geometry             *Geometry     `json:"geometry,omitempty"`
	Types                []string      `json:"types,omitempty"`
}

// Geometry wraps a place location.
type Geometry struct {
	Location LatLng `json:"location"`
}

// LatLng is a WGS84 coordinate.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// OpeningHours carries the open-now flag.
type OpeningHours struct {
	OpenNow *bool `json:"open_now,omitempty"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithLimiter makes every call wait on l before hitting the network. One
// limiter is shared by all requests issued through the client.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *httpClient) {
		c.limiter = l
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a Google Places API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) TextSearch(ctx context.Context, req TextSearchRequest) (*TextSearchResponse, error) {
	params := url.Values{}
	if req.PageToken != "" {
		params.Set("pagetoken", req.PageToken)
	} else {
		params.Set("query", req.Query)
	}

	body, err := c.get(ctx, "/textsearch/json", params)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Results       []json.RawMessage `json:"results"`
		NextPageToken string            `json:"next_page_token"`
		Status        string            `json:"status"`
		ErrorMessage  string            `json:"error_message"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, eris.Wrap(err, "google: unmarshal text search response")
	}

	if err := checkStatus(envelope.Status, envelope.ErrorMessage, req.PageToken != ""); err != nil {
		return nil, err
	}

	resp := &TextSearchResponse{
		Results:       make([]Place, 0, len(envelope.Results)),
		NextPageToken: envelope.NextPageToken,
		Status:        envelope.Status,
	}
	for _, raw := range envelope.Results {
		var p Place
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, eris.Wrap(err, "google: unmarshal place")
		}
		p.Raw = raw
		resp.Results = append(resp.Results, p)
	}
	return resp, nil
}

func (c *httpClient) PlaceDetails(ctx context.Context, placeID string, fields []string) (*PlaceDetails, error) {
	if placeID == "" {
		return nil, eris.New("google: place id is required")
	}
	if len(fields) == 0 {
		fields = DefaultDetailFields
	}

	params := url.Values{}
	params.Set("place_id", placeID)
	params.Set("fields", strings.Join(fields, ","))

	body, err := c.get(ctx, "/details/json", params)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Result       PlaceDetails `json:"result"`
		Status       string       `json:"status"`
		ErrorMessage string       `json:"error_message"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, eris.Wrap(err, "google: unmarshal details response")
	}
	if envelope.Status == StatusZeroResults {
		return nil, eris.Errorf("google: details %s: %s", placeID, StatusNotFound)
	}
	if err := checkStatus(envelope.Status, envelope.ErrorMessage, false); err != nil {
		return nil, eris.Wrapf(err, "google: details %s", placeID)
	}
	if envelope.Result.PlaceID == "" {
		envelope.Result.PlaceID = placeID
	}
	return &envelope.Result, nil
}

func (c *httpClient) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "google: rate limit wait")
		}
	}

	params.Set("key", c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "google: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// Transport errors quote the request URL, which carries the key.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			uerr.URL = redactKey(uerr.URL)
		}
		return nil, eris.Wrap(err, "google: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "google: read response")
	}

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("google: unexpected status %d: %s", resp.StatusCode, string(body))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	return body, nil
}

func redactKey(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<unparseable url>"
	}
	q := u.Query()
	if q.Has("key") {
		q.Set("key", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// checkStatus maps the body-level status onto errors. withToken marks a
// continuation call, where INVALID_REQUEST means the token is not active yet.
func checkStatus(status, message string, withToken bool) error {
	switch status {
	case StatusOK, StatusZeroResults:
		return nil
	case StatusInvalidRequest:
		if withToken {
			return resilience.NewTransientStatus(ErrPageTokenNotReady, status)
		}
		return eris.Errorf("google: %s: %s", status, message)
	case StatusOverQueryLimit, StatusUnknownError:
		return resilience.NewTransientStatus(eris.Errorf("google: %s: %s", status, message), status)
	case "":
		return eris.New("google: response missing status")
	default:
		return eris.Errorf("google: %s: %s", status, message)
	}
}
