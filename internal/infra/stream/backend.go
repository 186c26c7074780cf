// Package stream implements the transport backend over HTTP. Media is
// downloaded progressively and a wall clock paces the playback position
// against what has been buffered.
package stream

import (
	"net/http"
	"net/url"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/osa030/flowbeat/internal/app/transport"
)

// Config represents stream backend configuration.
type Config struct {
	Tick         time.Duration // Playback clock resolution
	ReadTimeout  time.Duration // Time to wait for response headers
	ChunkBytes   int           // Read size per progress step
	FallbackKbps int           // Bitrate assumed when no duration hint is given
	UserAgent    string
	HTTPClient   *http.Client // Optional; built from ReadTimeout when nil
}

func (c Config) withDefaults() Config {
	if c.Tick <= 0 {
		c.Tick = 250 * time.Millisecond
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.ChunkBytes <= 0 {
		c.ChunkBytes = 32 * 1024
	}
	if c.FallbackKbps <= 0 {
		c.FallbackKbps = 128
	}
	if c.UserAgent == "" {
		c.UserAgent = "flowbeat-player"
	}
	return c
}

// Backend opens HTTP stream resources.
type Backend struct {
	cfg    Config
	client *http.Client
}

// NewBackend creates a new Backend.
func NewBackend(cfg Config) *Backend {
	cfg = cfg.withDefaults()
	client := cfg.HTTPClient
	if client == nil {
		tr := http.DefaultTransport.(*http.Transport).Clone()
		tr.ResponseHeaderTimeout = cfg.ReadTimeout
		client = &http.Client{Transport: tr}
	}
	return &Backend{cfg: cfg, client: client}
}

// Open starts downloading rawURL and returns its resource. The URL must be
// an absolute http(s) URL.
func (b *Backend) Open(rawURL string, hint transport.Hint) (transport.Resource, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrap(err, "invalid media URL")
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, errors.Newf("unsupported media URL: %s", rawURL)
	}
	return newResource(b.client, b.cfg, rawURL, hint), nil
}
