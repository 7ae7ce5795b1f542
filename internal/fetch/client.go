// Package fetch downloads battle logs and runs them through the parse and
// identity pipeline with bounded concurrency.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// DefaultBaseURL is the public replay server.
const DefaultBaseURL = "https://replay.pokemonshowdown.com"

// DefaultTimeout bounds a single fetch.
const DefaultTimeout = 30 * time.Second

// maxPayload caps a decoded replay body.
const maxPayload = 32 << 20

// ErrEmptyLog is returned when a payload decodes but carries no log text.
var ErrEmptyLog = errors.New("replay has no log")

// StatusError is returned for non-200 responses.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: HTTP %d", e.URL, e.StatusCode)
}

// Replay is a fetched battle log with the metadata the server reports.
type Replay struct {
	ID         string
	Format     string
	Players    []string
	Log        string
	UploadedAt time.Time
}

// Fetcher retrieves the raw log for a reference.
type Fetcher interface {
	Fetch(ctx context.Context, ref string) (*Replay, error)
}

// replayJSON is the subset of the replay server's JSON document we use.
type replayJSON struct {
	ID         string   `json:"id"`
	Format     string   `json:"format"`
	FormatID   string   `json:"formatid"`
	Players    []string `json:"players"`
	Log        string   `json:"log"`
	UploadTime int64    `json:"uploadtime"`
}

// Client fetches replays over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a replay client. An empty baseURL uses DefaultBaseURL;
// a zero timeout uses DefaultTimeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type payloadKind int

const (
	payloadJSON payloadKind = iota
	payloadRaw
)

// resolve maps a reference (replay id, replay page URL, or direct .json/.log
// URL, optionally .gz/.zst compressed) to the URL to download.
func (c *Client) resolve(ref string) (string, payloadKind) {
	u := strings.TrimSpace(ref)
	if !strings.Contains(u, "://") {
		u = c.baseURL + "/" + strings.TrimPrefix(u, "/")
	}
	// Drop viewer query strings such as "?p2".
	if parsed, err := url.Parse(u); err == nil {
		parsed.RawQuery, parsed.Fragment = "", ""
		u = parsed.String()
	}
	u = strings.TrimRight(u, "/")

	switch inner := stripCompression(u); {
	case strings.HasSuffix(inner, ".log"):
		return u, payloadRaw
	case strings.HasSuffix(inner, ".json"):
		return u, payloadJSON
	default:
		return u + ".json", payloadJSON
	}
}

// Fetch downloads and decodes one replay.
func (c *Client) Fetch(ctx context.Context, ref string) (*Replay, error) {
	u, kind := c.resolve(ref)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{URL: u, StatusCode: resp.StatusCode}
	}

	body, err := readBody(resp.Body, u, resp.Header.Get("Content-Encoding"))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", u, err)
	}
	return decodePayload(body, kind, replayID(u))
}

// readBody reads r, decompressing by Content-Encoding or file suffix.
func readBody(r io.Reader, name, encoding string) ([]byte, error) {
	var src io.Reader = r
	switch {
	case strings.HasSuffix(name, ".zst") || strings.EqualFold(encoding, "zstd"):
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		defer dec.Close()
		src = dec
	case strings.HasSuffix(name, ".gz") || strings.EqualFold(encoding, "gzip"):
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer gz.Close()
		src = gz
	}
	return io.ReadAll(io.LimitReader(src, maxPayload))
}

func decodePayload(body []byte, kind payloadKind, fallbackID string) (*Replay, error) {
	if kind == payloadRaw {
		if len(bytes.TrimSpace(body)) == 0 {
			return nil, ErrEmptyLog
		}
		return &Replay{ID: fallbackID, Log: string(body)}, nil
	}

	var doc replayJSON
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode replay: %w", err)
	}
	if strings.TrimSpace(doc.Log) == "" {
		return nil, ErrEmptyLog
	}
	r := &Replay{
		ID:      doc.ID,
		Format:  doc.Format,
		Players: doc.Players,
		Log:     doc.Log,
	}
	if r.ID == "" {
		r.ID = fallbackID
	}
	if r.Format == "" {
		r.Format = doc.FormatID
	}
	if doc.UploadTime > 0 {
		r.UploadedAt = time.Unix(doc.UploadTime, 0).UTC()
	}
	return r, nil
}

func stripCompression(name string) string {
	return strings.TrimSuffix(strings.TrimSuffix(name, ".zst"), ".gz")
}

// replayID derives an id from the last path element, without extensions.
func replayID(u string) string {
	base := stripCompression(path.Base(u))
	base = strings.TrimSuffix(base, ".json")
	return strings.TrimSuffix(base, ".log")
}
