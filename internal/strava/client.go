package strava

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"strava-effort/internal/apperr"
)

// BaseURL is the production API root.
const BaseURL = "https://www.strava.com/api/v3"

const maxErrorBody = 4 << 10

// TokenProvider supplies a currently valid access token.
type TokenProvider interface {
	ValidToken(ctx context.Context) (string, error)
}

// Client is a Strava API client. Every request carries a bearer token from
// the TokenProvider; failed requests are not retried.
type Client struct {
	tokens     TokenProvider
	httpClient *http.Client
	baseURL    string
	rateLimits *RateLimitTracker
}

// NewClient creates a new Strava API client. A nil httpClient means
// http.DefaultClient and an empty baseURL means BaseURL.
func NewClient(tokens TokenProvider, httpClient *http.Client, baseURL string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = BaseURL
	}
	return &Client{
		tokens:     tokens,
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		rateLimits: NewRateLimitTracker(),
	}
}

// GetAthlete fetches the authenticated athlete
func (c *Client) GetAthlete(ctx context.Context) (*Athlete, error) {
	var athlete Athlete
	if err := c.get(ctx, "fetching athlete", "/athlete", nil, &athlete); err != nil {
		return nil, err
	}
	return &athlete, nil
}

// GetActivities fetches one page of the athlete's activities, newest first
func (c *Client) GetActivities(ctx context.Context, page, perPage int) ([]Activity, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("per_page", strconv.Itoa(perPage))

	var activities []Activity
	if err := c.get(ctx, "listing activities", "/athlete/activities", params, &activities); err != nil {
		return nil, err
	}
	return activities, nil
}

// GetActivity fetches the detailed representation of one activity
func (c *Client) GetActivity(ctx context.Context, id int64) (*DetailedActivity, error) {
	var activity DetailedActivity
	op := fmt.Sprintf("fetching activity %d", id)
	if err := c.get(ctx, op, fmt.Sprintf("/activities/%d", id), nil, &activity); err != nil {
		return nil, err
	}
	return &activity, nil
}

// GetActivityStreams fetches the requested stream kinds for an activity
func (c *Client) GetActivityStreams(ctx context.Context, id int64, kinds []string) (*Streams, error) {
	params := url.Values{}
	params.Set("keys", strings.Join(kinds, ","))
	params.Set("key_by_type", "true")

	var streams Streams
	op := fmt.Sprintf("fetching streams for activity %d", id)
	if err := c.get(ctx, op, fmt.Sprintf("/activities/%d/streams", id), params, &streams); err != nil {
		return nil, err
	}
	return &streams, nil
}

// RateLimitStatus returns the rate-limit state reported by the last response
func (c *Client) RateLimitStatus() RateLimitStatus {
	return c.rateLimits.Status()
}

func (c *Client) get(ctx context.Context, op, path string, params url.Values, out any) error {
	token, err := c.tokens.ValidToken(ctx)
	if err != nil {
		return err
	}

	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &apperr.NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	c.rateLimits.UpdateFromHeaders(resp.Header)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &apperr.NetworkError{Op: op, StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decoding response: %w", op, err)
	}
	return nil
}
