// Package postgrest writes face records to a PostgREST-compatible REST collection
// such as a Supabase table.
package postgrest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/kozaktomas/face-registry/internal/config"
	"github.com/kozaktomas/face-registry/internal/store"
)

const restPrefix = "rest/v1"

// Client is a store backend speaking the PostgREST protocol.
type Client struct {
	parsedURL  *url.URL
	table      string
	key        string
	httpClient *http.Client
}

// New creates a client for the collection table under baseURL. key is sent as
// both apikey and bearer token.
func New(baseURL, key, table string, timeout time.Duration) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("store URL is required (STORE_URL)")
	}
	if table == "" {
		return nil, errors.New("store table is required")
	}
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/") + "/" + restPrefix)
	if err != nil {
		return nil, fmt.Errorf("invalid store URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("invalid store URL scheme %q", parsed.Scheme)
	}
	return &Client{
		parsedURL:  parsed,
		table:      table,
		key:        key,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Open is the store.Factory for this backend.
func Open(_ context.Context, cfg *config.Config) (store.Backend, error) {
	if !cfg.Store.HasCredential() {
		log.Warn("STORE_KEY is empty, requests to the store are unauthenticated")
	}
	return New(cfg.Store.URL, cfg.Store.Key, cfg.Store.Table, cfg.Store.Timeout)
}

func (c *Client) Name() string {
	return "postgrest"
}

func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// resolveURL builds a full URL from the REST base and the given path. A query
// string in the last segment is preserved.
func (c *Client) resolveURL(pathSegments ...string) string {
	if len(pathSegments) == 0 {
		return c.parsedURL.String()
	}
	last := pathSegments[len(pathSegments)-1]
	if pathPart, query, ok := strings.Cut(last, "?"); ok {
		pathSegments[len(pathSegments)-1] = pathPart
		result := c.parsedURL.JoinPath(pathSegments...)
		result.RawQuery = query
		return result.String()
	}
	return c.parsedURL.JoinPath(pathSegments...).String()
}

func (c *Client) authorize(req *http.Request) {
	if c.key == "" {
		return
	}
	req.Header.Set("apikey", c.key)
	req.Header.Set("Authorization", "Bearer "+c.key)
}

// insertedRow is the representation returned for an insert; id may be numeric or text.
type insertedRow struct {
	ID        flexID `json:"id"`
	Label     string `json:"label"`
	Timestamp string `json:"timestamp"`
}

type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("unmarshal id: %w", err)
	}
	*f = flexID(n.String())
	return nil
}

// Submit inserts one row. It makes exactly one request and never retries.
func (c *Client) Submit(ctx context.Context, record store.FaceRecord) (store.Ack, error) {
	if err := record.Validate(); err != nil {
		return store.Ack{}, store.NewSubmitError("", err)
	}

	endpoint := c.table + "?" + url.Values{"select": {"id,label,timestamp"}}.Encode()
	rows, _, err := doRequestJSON[[]insertedRow](ctx, c, http.MethodPost, endpoint, record.Row(),
		map[string]string{"Prefer": "return=representation"},
		http.StatusCreated, http.StatusOK)
	if err != nil {
		log.WithFields(log.Fields{"backend": c.Name(), "table": c.table}).WithError(err).Warn("insert failed")
		return store.Ack{}, store.NewSubmitError(errorDetail(err), err)
	}

	ack := store.Ack{Label: record.Label, CapturedAt: record.CapturedAt}
	if rows != nil && len(*rows) > 0 {
		ack.ID = string((*rows)[0].ID)
	}
	return ack, nil
}

// List returns the most recent rows first.
func (c *Client) List(ctx context.Context, opts store.ListOptions) ([]store.Record, error) {
	opts = opts.Normalize()

	columns := "id,label,timestamp"
	if opts.IncludeImages {
		columns += ",image_data"
	}
	q := url.Values{
		"select": {columns},
		"order":  {"timestamp.desc"},
		"limit":  {strconv.Itoa(opts.Limit)},
	}

	rows, _, err := doRequestJSON[[]struct {
		ID        flexID `json:"id"`
		Label     string `json:"label"`
		Timestamp string `json:"timestamp"`
		ImageData string `json:"image_data"`
	}](ctx, c, http.MethodGet, c.table+"?"+q.Encode(), nil, nil, http.StatusOK)
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}

	records := make([]store.Record, 0, len(*rows))
	for _, r := range *rows {
		ts, err := store.ParseTimestamp(r.Timestamp)
		if err != nil {
			log.WithField("id", r.ID).WithError(err).Warn("skipping record with unreadable timestamp")
			continue
		}
		records = append(records, store.Record{
			ID:         string(r.ID),
			Label:      r.Label,
			CapturedAt: ts,
			ImageData:  r.ImageData,
		})
	}
	return records, nil
}

// Count returns the number of stored rows using an exact count.
func (c *Client) Count(ctx context.Context) (int, error) {
	endpoint := c.table + "?" + url.Values{"select": {"id"}, "limit": {"1"}}.Encode()
	_, header, err := doRequestJSON[[]json.RawMessage](ctx, c, http.MethodGet, endpoint, nil,
		map[string]string{"Prefer": "count=exact"},
		http.StatusOK, http.StatusPartialContent)
	if err != nil {
		return 0, fmt.Errorf("counting records: %w", err)
	}
	return parseContentRangeTotal(header.Get("Content-Range"))
}

// parseContentRangeTotal extracts the total from "0-0/42" or "*/0".
func parseContentRangeTotal(v string) (int, error) {
	_, total, ok := strings.Cut(v, "/")
	if !ok || total == "*" {
		return 0, fmt.Errorf("missing total in Content-Range %q", v)
	}
	n, err := strconv.Atoi(total)
	if err != nil {
		return 0, fmt.Errorf("invalid Content-Range total %q: %w", v, err)
	}
	return n, nil
}
