// Package spotify provides the three Spotify Web API calls the jukebox proxies.
package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"
)

// DefaultBaseURL is the Spotify Web API root. It must end with a slash.
const DefaultBaseURL = "https://api.spotify.com/v1/"

// ErrUnauthorized is returned when Spotify rejects the access token (HTTP 401).
var ErrUnauthorized = errors.New("spotify: access token rejected")

// StatusError is a Web API failure unrelated to authorization.
type StatusError struct {
	Op      string
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("spotify: %s: HTTP %d: %s", e.Op, e.Status, e.Message)
}

// Client issues Web API requests on behalf of a caller-supplied access token.
// It holds no credential itself.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// New creates a Client. httpClient supplies the timeout and base transport;
// an empty baseURL selects DefaultBaseURL.
func New(httpClient *http.Client, baseURL string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{httpClient: httpClient, baseURL: baseURL}
}

// call is a single authenticated request.
type call struct {
	api     *spotify.Client
	http    *http.Client
	baseURL string
	rec     *statusRecorder
}

// begin builds an API client that sends accessToken as a bearer credential.
func (c *Client) begin(accessToken string) *call {
	base := c.httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	rec := &statusRecorder{base: base}

	hc := &http.Client{
		Timeout: c.httpClient.Timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{
				AccessToken: accessToken,
				TokenType:   "Bearer",
			}),
			Base: rec,
		},
	}

	return &call{
		api:     spotify.New(hc, spotify.WithBaseURL(c.baseURL)),
		http:    hc,
		baseURL: c.baseURL,
		rec:     rec,
	}
}

// fail classifies err. A 401 becomes ErrUnauthorized regardless of the body
// Spotify sent; other HTTP failures become *StatusError.
func (cl *call) fail(op string, err error) error {
	var apiErr spotify.Error
	hasAPIErr := errors.As(err, &apiErr)

	status := cl.rec.status
	if hasAPIErr && apiErr.Status != 0 {
		status = apiErr.Status
	}

	switch {
	case status == http.StatusUnauthorized:
		return fmt.Errorf("%s: %w", op, ErrUnauthorized)
	case hasAPIErr:
		return &StatusError{Op: op, Status: status, Message: apiErr.Message}
	case status >= http.StatusBadRequest:
		return &StatusError{Op: op, Status: status, Message: err.Error()}
	}
	return fmt.Errorf("spotify: %s: %w", op, err)
}

// getJSON decodes the body of GET path into v without going through the
// zmb3 response types, so fields they do not model are kept.
func (cl *call) getJSON(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cl.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := cl.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var body struct {
			Error spotify.Error `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Error.Message == "" {
			return fmt.Errorf("HTTP %d", resp.StatusCode)
		}
		return body.Error
	}
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// statusRecorder remembers the status code of the last response it carried.
type statusRecorder struct {
	base   http.RoundTripper
	status int
}

func (s *statusRecorder) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := s.base.RoundTrip(req)
	if resp != nil {
		s.status = resp.StatusCode
	}
	return resp, err
}
