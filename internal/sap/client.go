package sap

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/zulandar/stopyard/internal/config"
	"golang.org/x/oauth2/clientcredentials"
)

const requestTimeout = 30 * time.Second

// Client calls the configured SAP endpoint. A Client built from a config
// without endpoints is valid; its calls return ErrNotConfigured.
type Client struct {
	cfg    config.SAPConfig
	base   string
	http   *http.Client
	cache  *Cache[[]map[string]any]
	logger *log.Logger
}

// ClientOpts holds optional Client dependencies.
type ClientOpts struct {
	HTTPClient *http.Client // overrides the oauth2 client, mainly for tests
	Logger     *log.Logger
}

// NewClient builds a client. When a token URL is configured, requests are
// authenticated with the OAuth2 client-credentials flow.
func NewClient(ctx context.Context, cfg config.SAPConfig, opts ClientOpts) *Client {
	c := &Client{
		cfg:    cfg,
		base:   strings.TrimRight(fallback(cfg.S4HanaEndpoint, cfg.CFAPIEndpoint), "/"),
		http:   opts.HTTPClient,
		cache:  NewCache[[]map[string]any](cfg.CacheTTL),
		logger: opts.Logger,
	}
	if c.logger == nil {
		c.logger = log.Default()
	}
	if c.http == nil {
		if cfg.TokenURL != "" {
			cc := clientcredentials.Config{
				ClientID:     cfg.ClientID,
				ClientSecret: cfg.ClientSecret,
				TokenURL:     cfg.TokenURL,
			}
			c.http = cc.Client(ctx)
			c.http.Timeout = requestTimeout
		} else {
			c.http = &http.Client{Timeout: requestTimeout}
		}
	}
	return c
}

// Enabled reports whether an endpoint is configured.
func (c *Client) Enabled() bool { return c.base != "" }

// Status is the outcome of a connectivity check.
type Status struct {
	Configured bool          `json:"configured"`
	Endpoint   string        `json:"endpoint,omitempty"`
	Reachable  bool          `json:"reachable"`
	Latency    time.Duration `json:"latency"`
	Error      string        `json:"error,omitempty"`
	Kind       Kind          `json:"kind,omitempty"`
}

// Status checks the endpoint's service document. Failures are reported in
// the result rather than as an error.
func (c *Client) Status(ctx context.Context) Status {
	st := Status{Configured: c.Enabled(), Endpoint: c.base}
	if !st.Configured {
		return st
	}
	start := time.Now()
	err := c.do(ctx, "status", http.MethodGet, c.base+"/", nil, nil)
	st.Latency = time.Since(start)
	if err != nil {
		st.Kind, st.Error = Classify(err)
		return st
	}
	st.Reachable = true
	return st
}

// ExportResult counts what an export did. Rejected holds the validation
// problems of records that were not sent, keyed by record id.
type ExportResult struct {
	Entity     EntityType          `json:"entity"`
	Successful int                 `json:"successful"`
	Failed     int                 `json:"failed"`
	Rejected   map[string][]string `json:"rejected,omitempty"`
	Message    string              `json:"message"`
}

// Export validates records and posts the valid ones in a single batch. All
// records must be of the same entity type.
func (c *Client) Export(ctx context.Context, records []Record) (ExportResult, error) {
	if !c.Enabled() {
		return ExportResult{}, ErrNotConfigured
	}
	var res ExportResult
	var ops []Operation
	for _, r := range records {
		if res.Entity == "" {
			res.Entity = r.Entity()
		}
		if r.Entity() != res.Entity {
			return ExportResult{}, fmt.Errorf("sap: export mixes %s and %s records", res.Entity, r.Entity())
		}
		if problems := Validate(r); len(problems) > 0 {
			if res.Rejected == nil {
				res.Rejected = make(map[string][]string)
			}
			res.Rejected[r.Key()] = problems
			res.Failed++
			continue
		}
		ops = append(ops, Operation{Method: http.MethodPost, URL: "/" + string(r.Entity()), Data: r})
	}

	if len(ops) > 0 {
		batch, err := NewBatch(c.cfg.Client, ops)
		if err != nil {
			return res, err
		}
		if err := c.do(ctx, "export", http.MethodPost, c.base+"/$batch", batch, nil); err != nil {
			res.Failed += len(ops)
			return res, err
		}
		res.Successful = len(ops)
	}
	res.Message = fmt.Sprintf("%d %s exported to SAP BTP", res.Successful, res.Entity)
	c.cache.Clear()
	return res, nil
}

// Fetch reads an entity set. Keys of the returned rows are camelCase.
// Results are cached per query for the configured TTL.
func (c *Client) Fetch(ctx context.Context, entity EntityType, q ODataQuery) ([]map[string]any, error) {
	if !c.Enabled() {
		return nil, ErrNotConfigured
	}
	url := c.base + "/" + string(entity)
	if enc := q.Encode(); enc != "" {
		url += "?" + enc
	}
	if rows, ok := c.cache.Get(url); ok {
		return rows, nil
	}

	var body struct {
		Value []map[string]any `json:"value"`
	}
	if err := c.do(ctx, "fetch "+string(entity), http.MethodGet, url, nil, &body); err != nil {
		return nil, err
	}
	rows := make([]map[string]any, len(body.Value))
	for i, v := range body.Value {
		rows[i] = Unformat(v)
	}
	c.cache.Set(url, rows)
	return rows, nil
}

// do sends one request and decodes a JSON response into out when non-nil.
// Non-2xx responses become *Error with the body's code and message.
func (c *Client) do(ctx context.Context, op, method, url string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("sap: %s: encode: %w", op, err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("sap: %s: %w", op, err)
	}
	for k, v := range Headers(c.cfg.Client) {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("sap request failed", "op", op, "duration", time.Since(start), "err", err)
		return fmt.Errorf("sap: %s: %w", op, err)
	}
	defer resp.Body.Close()
	c.logger.Debug("sap request", "op", op, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Code    string `json:"code"`
			Message string `json:"message"`
			Error   *struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&e)
		se := &Error{Op: op, StatusCode: resp.StatusCode, Code: e.Code, Message: e.Message}
		if e.Error != nil {
			se.Code, se.Message = e.Error.Code, e.Error.Message
		}
		return se
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("sap: %s: decode: %w", op, err)
	}
	return nil
}
