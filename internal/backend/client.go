// Package backend is a typed HTTP client for the repair-shop backend:
// client and device search/creation, job cards, technicians and login.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// Sentinel messages the search endpoints return with a 200 status.
const (
	ClientNotFoundMessage = "Client not found"
	DeviceNotFoundMessage = "Device not found"
)

// maxReplyBytes caps how much of a reply body is read.
const maxReplyBytes = 1 << 20

// Options holds parameters for creating a Client.
type Options struct {
	BaseURL     string
	AccessToken string        // sent as a bearer token when set
	Timeout     time.Duration // per request, 0 = no client timeout
	// LookupRateLimit bounds search requests per second; 0 disables the limiter.
	LookupRateLimit float64
	// HTTPClient replaces the default transport (tests).
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client talks to the backend REST API.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter // nil if unlimited
	log     *zap.Logger
}

// New creates a Client.
func New(opts Options) (*Client, error) {
	base := strings.TrimRight(opts.BaseURL, "/")
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("backend: base URL %q is not an absolute URL", opts.BaseURL)
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	if opts.AccessToken != "" {
		transport := hc.Transport
		if transport == nil {
			transport = http.DefaultTransport
		}
		hc = &http.Client{
			Timeout: hc.Timeout,
			Transport: &oauth2.Transport{
				Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.AccessToken, TokenType: "Bearer"}),
				Base:   transport,
			},
		}
	}

	c := &Client{
		baseURL: base,
		http:    hc,
		log:     opts.Logger,
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	if opts.LookupRateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.LookupRateLimit), 1)
	}
	return c, nil
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// clientSearchReply decodes both a record and the not-found sentinel.
type clientSearchReply struct {
	Message string `json:"message"`
	ClientRecord
}

type deviceSearchReply struct {
	Message string `json:"message"`
	DeviceRecord
}

// FindClientByPhone searches for a client by phone number. It returns
// ErrNotFound when the backend replies with the not-found sentinel.
func (c *Client) FindClientByPhone(ctx context.Context, phone string) (*ClientRecord, error) {
	if err := c.waitLookup(ctx); err != nil {
		return nil, err
	}
	var reply clientSearchReply
	q := url.Values{"phone_number": {phone}}
	status, err := c.do(ctx, "search client", http.MethodGet, "/clients/search", q, nil, &reply)
	if isSentinel(reply.Message, ClientNotFoundMessage) && (err == nil || status == http.StatusNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if reply.ID.IsZero() {
		return nil, fmt.Errorf("backend: search client: %w: record without id", ErrUnexpectedReply)
	}
	rec := reply.ClientRecord
	return &rec, nil
}

// FindDeviceBySerial searches for a device by serial number. It returns
// ErrNotFound when the backend replies with the not-found sentinel.
func (c *Client) FindDeviceBySerial(ctx context.Context, serial string) (*DeviceRecord, error) {
	if err := c.waitLookup(ctx); err != nil {
		return nil, err
	}
	var reply deviceSearchReply
	q := url.Values{"device_serial_number": {serial}}
	status, err := c.do(ctx, "search device", http.MethodGet, "/devices/search", q, nil, &reply)
	if isSentinel(reply.Message, DeviceNotFoundMessage) && (err == nil || status == http.StatusNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if reply.ID.IsZero() {
		return nil, fmt.Errorf("backend: search device: %w: record without id", ErrUnexpectedReply)
	}
	rec := reply.DeviceRecord
	return &rec, nil
}

// CreateClient issues POST /clients and returns the stored record.
func (c *Client) CreateClient(ctx context.Context, in NewClient) (*ClientRecord, error) {
	var rec ClientRecord
	if _, err := c.do(ctx, "create client", http.MethodPost, "/clients", nil, in, &rec); err != nil {
		return nil, err
	}
	if rec.ID.IsZero() {
		return nil, fmt.Errorf("backend: create client: %w: missing id", ErrUnexpectedReply)
	}
	return &rec, nil
}

// DeleteClient issues DELETE /clients/{id}.
func (c *Client) DeleteClient(ctx context.Context, id ID) error {
	_, err := c.do(ctx, "delete client", http.MethodDelete, "/clients/"+url.PathEscape(id.String()), nil, nil, nil)
	return err
}

// CreateDevice issues POST /devices and returns the stored record.
func (c *Client) CreateDevice(ctx context.Context, in NewDevice) (*DeviceRecord, error) {
	var rec DeviceRecord
	if _, err := c.do(ctx, "create device", http.MethodPost, "/devices", nil, in, &rec); err != nil {
		return nil, err
	}
	if rec.ID.IsZero() {
		return nil, fmt.Errorf("backend: create device: %w: missing id", ErrUnexpectedReply)
	}
	return &rec, nil
}

// CreateJobCard issues POST /jobcards. The reply's EmailSent reports whether
// the embedded notification went out.
func (c *Client) CreateJobCard(ctx context.Context, in NewJobCard) (*JobCard, error) {
	var card JobCard
	if _, err := c.do(ctx, "create job card", http.MethodPost, "/jobcards", nil, in, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

// ListJobCards issues GET /jobcards with the given filter.
func (c *Client) ListJobCards(ctx context.Context, f JobCardFilter) ([]JobCard, error) {
	q := url.Values{}
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	if !f.TechnicianID.IsZero() {
		q.Set("assigned_technician_id", f.TechnicianID.String())
	}
	var cards []JobCard
	if _, err := c.do(ctx, "list job cards", http.MethodGet, "/jobcards", q, nil, &cards); err != nil {
		return nil, err
	}
	return cards, nil
}

// ListTechnicians issues GET /users/technicians.
func (c *Client) ListTechnicians(ctx context.Context) ([]Technician, error) {
	var techs []Technician
	if _, err := c.do(ctx, "list technicians", http.MethodGet, "/users/technicians", nil, nil, &techs); err != nil {
		return nil, err
	}
	return techs, nil
}

// Login exchanges credentials for an access token and user identity.
func (c *Client) Login(ctx context.Context, username, password string) (*Login, error) {
	body := map[string]string{"username": username, "password": password}
	var out Login
	if _, err := c.do(ctx, "login", http.MethodPost, "/users/login", nil, body, &out); err != nil {
		return nil, err
	}
	if out.AccessToken == "" {
		return nil, fmt.Errorf("backend: login: %w: missing access_token", ErrUnexpectedReply)
	}
	return &out, nil
}

// waitLookup blocks until the lookup limiter allows a request.
func (c *Client) waitLookup(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("backend: rate limit: %w", err)
	}
	return nil
}

// do performs one request. A 2xx body is decoded into out (if non-nil); a
// non-2xx reply yields a *StatusError, but out is still decoded best effort
// so callers can inspect sentinel payloads. It returns the HTTP status.
func (c *Client) do(ctx context.Context, op, method, path string, q url.Values, in, out any) (int, error) {
	target := c.baseURL + path
	if len(q) > 0 {
		target += "?" + q.Encode()
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("backend: %s: encode body: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return 0, fmt.Errorf("backend: %s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("backend request failed",
			zap.String("op", op), zap.String("method", method), zap.String("path", path), zap.Error(err))
		return 0, fmt.Errorf("backend: %s: %w", op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("backend: %s: read reply: %w", op, err)
	}
	c.log.Debug("backend request",
		zap.String("op", op),
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	if !ok {
		if out != nil && len(bytes.TrimSpace(data)) > 0 {
			_ = json.Unmarshal(data, out)
		}
		return resp.StatusCode, &StatusError{Op: op, StatusCode: resp.StatusCode, Message: replyMessage(data)}
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return resp.StatusCode, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return resp.StatusCode, fmt.Errorf("backend: %s: %w: %v", op, ErrUnexpectedReply, err)
	}
	return resp.StatusCode, nil
}

// replyMessage extracts the "error" or "message" field of an error body.
func replyMessage(data []byte) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &body) != nil {
		return ""
	}
	if body.Error != "" {
		return body.Error
	}
	return body.Message
}

func isSentinel(got, want string) bool {
	return got != "" && strings.EqualFold(strings.TrimSpace(got), want)
}
