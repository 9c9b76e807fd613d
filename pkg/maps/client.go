package maps

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/localdrop/pkg/errors"
)

const (
	defaultBaseURL              = "https://places.googleapis.com/v1"
	suggestFieldMask            = "suggestions.placePrediction.placeId,suggestions.placePrediction.structuredFormat"
	resolveFieldMask            = "id,formattedAddress,location,addressComponents"
	defaultBiasRadiusMeters     = 5000.0
	responseBodyReadLimit int64 = 1024
)

var errAPIKeyRequired = errors.New("google maps api key is required")

// Client wraps the Places API calls used while picking a delivery address.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the configured Places base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(baseURL); trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// NewClient builds the Places client given an API key.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	trimmedKey := strings.TrimSpace(apiKey)
	if trimmedKey == "" {
		return nil, errAPIKeyRequired
	}

	client := &Client{
		apiKey:     trimmedKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// LatLng is a WGS84 coordinate pair.
type LatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// SuggestRequest is a partial address typed by the user.
type SuggestRequest struct {
	Input        string
	Near         *LatLng
	Language     string
	SessionToken string
}

// Suggestion is one autocomplete candidate.
type Suggestion struct {
	PlaceID   string
	Primary   string
	Secondary string
}

// Place is a resolved candidate with coordinates.
type Place struct {
	PlaceID          string
	FormattedAddress string
	Location         LatLng
	Locality         string
	PostalCode       string
}

type suggestBody struct {
	Input        string        `json:"input"`
	LanguageCode string        `json:"languageCode,omitempty"`
	SessionToken string        `json:"sessionToken,omitempty"`
	LocationBias *locationBias `json:"locationBias,omitempty"`
}

type locationBias struct {
	Circle struct {
		Center LatLng  `json:"center"`
		Radius float64 `json:"radius"`
	} `json:"circle"`
}

// Suggest returns autocomplete candidates, biased around Near when given.
func (c *Client) Suggest(ctx context.Context, req SuggestRequest) ([]Suggestion, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "google maps client not configured")
	}
	input := strings.TrimSpace(req.Input)
	if input == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "address input is required")
	}

	body := suggestBody{Input: input, LanguageCode: req.Language, SessionToken: req.SessionToken}
	if req.Near != nil {
		bias := &locationBias{}
		bias.Circle.Center = *req.Near
		bias.Circle.Radius = defaultBiasRadiusMeters
		body.LocationBias = bias
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal suggest request")
	}

	var apiResp struct {
		Suggestions []struct {
			Prediction struct {
				PlaceID string `json:"placeId"`
				Format  struct {
					Main struct {
						Text string `json:"text"`
					} `json:"mainText"`
					Secondary struct {
						Text string `json:"text"`
					} `json:"secondaryText"`
				} `json:"structuredFormat"`
			} `json:"placePrediction"`
		} `json:"suggestions"`
	}
	if err := c.do(ctx, http.MethodPost, c.buildURL("places:autocomplete"), suggestFieldMask, payload, &apiResp); err != nil {
		return nil, err
	}

	out := make([]Suggestion, 0, len(apiResp.Suggestions))
	for _, s := range apiResp.Suggestions {
		if s.Prediction.PlaceID == "" {
			continue
		}
		out = append(out, Suggestion{
			PlaceID:   s.Prediction.PlaceID,
			Primary:   s.Prediction.Format.Main.Text,
			Secondary: s.Prediction.Format.Secondary.Text,
		})
	}
	return out, nil
}

// Resolve fetches coordinates and a formatted address for a suggestion.
func (c *Client) Resolve(ctx context.Context, placeID, sessionToken string) (*Place, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "google maps client not configured")
	}
	trimmed := strings.TrimSpace(placeID)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "place ID is required")
	}

	endpoint := c.buildURL("places/" + url.PathEscape(trimmed))
	if sessionToken != "" {
		endpoint += "?sessionToken=" + url.QueryEscape(sessionToken)
	}

	var apiResp struct {
		ID                string `json:"id"`
		FormattedAddress  string `json:"formattedAddress"`
		Location          LatLng `json:"location"`
		AddressComponents []struct {
			LongText string   `json:"longText"`
			Types    []string `json:"types"`
		} `json:"addressComponents"`
	}
	if err := c.do(ctx, http.MethodGet, endpoint, resolveFieldMask, nil, &apiResp); err != nil {
		return nil, err
	}

	place := &Place{
		PlaceID:          apiResp.ID,
		FormattedAddress: apiResp.FormattedAddress,
		Location:         apiResp.Location,
	}
	for _, comp := range apiResp.AddressComponents {
		for _, t := range comp.Types {
			switch t {
			case "locality":
				place.Locality = comp.LongText
			case "postal_code":
				place.PostalCode = comp.LongText
			}
		}
	}
	return place, nil
}

func (c *Client) do(ctx context.Context, method, endpoint, fieldMask string, payload []byte, out any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build places request")
	}
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("X-Goog-Api-Key", c.apiKey)
	httpReq.Header.Set("X-Goog-FieldMask", fieldMask)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute places request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "places request failed")
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode places response")
	}
	return nil
}

func (c *Client) buildURL(path string) string {
	return fmt.Sprintf("%s/%s", strings.TrimRight(c.baseURL, "/"), strings.TrimLeft(path, "/"))
}
