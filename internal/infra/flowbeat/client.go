// Package flowbeat provides a client for the FlowBeat music API.
package flowbeat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/osa030/flowbeat/internal/domain/interaction"
	"github.com/osa030/flowbeat/internal/domain/track"
)

const (
	tokenPath        = "/auth/login/access-token"
	musicPath        = "/music/"
	interactionsPath = "/music/interactions"

	defaultPageSize = 100
	maxPageSize     = 500
)

// Config represents FlowBeat client configuration.
type Config struct {
	BaseURL  string        // e.g. "http://localhost:8000/api/v1"
	Username string        // Email or username; empty for anonymous access
	Password string
	Timeout  time.Duration // Per-request timeout; 10s when zero
}

// Client is a FlowBeat API client. Requests carry a bearer token obtained
// with the OAuth2 password grant when credentials are configured.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// APIError represents an error response from the FlowBeat API.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("flowbeat api error (status %d): %s", e.StatusCode, e.Detail)
}

type musicListResponse struct {
	Items []musicResponse `json:"items"`
	Total int             `json:"total"`
}

type musicResponse struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	Duration    int    `json:"duration"` // Seconds
	TrackNumber int    `json:"track_number"`
	FileURL     string `json:"file_url"`
	Album       *struct {
		Title    string `json:"title"`
		CoverURL string `json:"cover_url"`
		Artist   *struct {
			Name string `json:"name"`
		} `json:"artist"`
	} `json:"album"`
}

type interactionRequest struct {
	MusicID         int              `json:"music_id"`
	InteractionType interaction.Type `json:"interaction_type"`
}

// passwordTokenSource runs the password grant every time a token is needed.
type passwordTokenSource struct {
	ctx      context.Context
	config   *oauth2.Config
	username string
	password string
}

func (s *passwordTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.config.PasswordCredentialsToken(s.ctx, s.username, s.password)
	if err != nil {
		return nil, errors.Wrap(err, "flowbeat login failed")
	}
	zlog.Debug().Msgf("flowbeat: obtained access token: user=%s", s.username)
	return token, nil
}

// New creates a new FlowBeat client. No request is made until first use.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("flowbeat base URL is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, errors.Wrap(err, "invalid flowbeat base URL")
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, errors.Newf("flowbeat base URL must be absolute: %s", cfg.BaseURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	httpClient := &http.Client{Timeout: timeout}
	if cfg.Username != "" {
		source := &passwordTokenSource{
			ctx: context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Timeout: timeout}),
			config: &oauth2.Config{
				Endpoint: oauth2.Endpoint{
					TokenURL:  base.String() + tokenPath,
					AuthStyle: oauth2.AuthStyleInParams,
				},
			},
			username: cfg.Username,
			password: cfg.Password,
		}
		httpClient = oauth2.NewClient(ctx, oauth2.ReuseTokenSource(nil, source))
		httpClient.Timeout = timeout
	}

	return &Client{
		baseURL:    base,
		httpClient: httpClient,
	}, nil
}

// ListMusic fetches one page of the catalog. It returns the tracks on the
// page and the total number of tracks in the catalog.
func (c *Client) ListMusic(ctx context.Context, skip, limit int) ([]track.Track, int, error) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	params := url.Values{}
	params.Set("skip", strconv.Itoa(skip))
	params.Set("limit", strconv.Itoa(limit))

	var resp musicListResponse
	if err := c.do(ctx, http.MethodGet, musicPath+"?"+params.Encode(), nil, &resp); err != nil {
		return nil, 0, errors.Wrap(err, "failed to list music")
	}

	tracks := make([]track.Track, 0, len(resp.Items))
	for _, item := range resp.Items {
		tracks = append(tracks, c.toTrack(item))
	}
	return tracks, resp.Total, nil
}

// ListAllMusic pages through the catalog until limit tracks are collected or
// the catalog is exhausted. A zero limit fetches everything.
func (c *Client) ListAllMusic(ctx context.Context, limit int) ([]track.Track, error) {
	var all []track.Track
	for {
		pageSize := defaultPageSize
		if limit > 0 {
			pageSize = min(pageSize, limit-len(all))
		}

		page, total, err := c.ListMusic(ctx, len(all), pageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)

		if len(page) == 0 || len(all) >= total || (limit > 0 && len(all) >= limit) {
			return all, nil
		}
	}
}

// RecordInteraction reports a listener interaction with a catalog track.
func (c *Client) RecordInteraction(ctx context.Context, trackID string, kind interaction.Type) error {
	if !kind.Valid() {
		return errors.Newf("invalid interaction type: %s", kind)
	}
	musicID, err := strconv.Atoi(trackID)
	if err != nil {
		return errors.Wrapf(err, "track %q is not a flowbeat music id", trackID)
	}

	body := interactionRequest{MusicID: musicID, InteractionType: kind}
	if err := c.do(ctx, http.MethodPost, interactionsPath, body, nil); err != nil {
		return errors.Wrapf(err, "failed to record %s for music %d", kind, musicID)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "failed to encode request")
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Detail: readDetail(resp.Body)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "failed to decode response")
	}
	return nil
}

// readDetail extracts FastAPI's {"detail": ...} message, falling back to the
// raw body.
func readDetail(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, 4096))
	var payload struct {
		Detail any `json:"detail"`
	}
	if err := json.Unmarshal(data, &payload); err == nil && payload.Detail != nil {
		if s, ok := payload.Detail.(string); ok {
			return s
		}
		if b, err := json.Marshal(payload.Detail); err == nil {
			return string(b)
		}
	}
	return strings.TrimSpace(string(data))
}

func (c *Client) toTrack(item musicResponse) track.Track {
	t := track.Track{
		ID:       strconv.Itoa(item.ID),
		Title:    item.Title,
		Duration: time.Duration(item.Duration) * time.Second,
		MediaURL: c.resolve(item.FileURL),
		Source:   track.SourceFlowBeat,
	}
	if item.Album != nil {
		t.Album = item.Album.Title
		t.AlbumArtURL = c.resolve(item.Album.CoverURL)
		if item.Album.Artist != nil && item.Album.Artist.Name != "" {
			t.Artists = []string{item.Album.Artist.Name}
		}
	}
	return t
}

// resolve makes a server-relative URL absolute against the API host.
func (c *Client) resolve(raw string) string {
	if raw == "" {
		return ""
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return c.baseURL.ResolveReference(ref).String()
}
