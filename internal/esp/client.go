package esp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	logx "shednotify/pkg/logx"
)

const (
	DefaultBaseURL = "https://developer.sepush.co.za/business/2.0"
	DefaultTimeout = 15 * time.Second

	tokenHeader = "Token"
)

// ErrTokenRequired is a configuration error: the client was built without a token.
var ErrTokenRequired = errors.New("esp token is required")

// Client talks to the ESP API. It is safe for concurrent use; the token
// is fixed at construction.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     logx.Logger
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u = strings.TrimSpace(u); u != "" {
			c.baseURL = strings.TrimSuffix(u, "/")
		}
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http = &http.Client{Timeout: d}
		}
	}
}

func WithLogger(log logx.Logger) Option {
	return func(c *Client) { c.log = log }
}

func New(token string, opts ...Option) (*Client, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrTokenRequired
	}
	c := &Client{
		baseURL: DefaultBaseURL,
		token:   token,
		http:    &http.Client{Timeout: DefaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	if c.log.IsZero() {
		c.log = logx.Nop()
	}
	return c, nil
}

// Status returns the current national and regional load-shedding status.
func (c *Client) Status(ctx context.Context) (StatusMap, error) {
	var body statusBody
	if err := c.get(ctx, "status", "/status", nil, &body); err != nil {
		return nil, err
	}
	m, err := body.toStatusMap()
	if err != nil {
		return nil, &Error{Kind: KindUnknownError, Operation: "status", Detail: "decode response", Err: err}
	}
	return m, nil
}

// Allowance returns the token's daily call budget. The call itself does
// not count against the allowance, so it doubles as a token check.
func (c *Client) Allowance(ctx context.Context) (Allowance, error) {
	var body allowanceBody
	if err := c.get(ctx, "allowance", "/api_allowance", nil, &body); err != nil {
		return Allowance{}, err
	}
	return body.Allowance, nil
}

// SearchAreas finds areas whose name matches text.
func (c *Client) SearchAreas(ctx context.Context, text string) ([]Area, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &Error{Kind: KindBadRequest, Operation: "areas_search", Detail: "search text is empty"}
	}
	var body areasBody
	if err := c.get(ctx, "areas_search", "/areas_search", url.Values{"text": {text}}, &body); err != nil {
		return nil, err
	}
	return body.Areas, nil
}

// AreaInfo returns events and schedule for one area. test may be
// "current" or "future" to request ESP's synthetic data; empty for live.
func (c *Client) AreaInfo(ctx context.Context, id AreaID, test string) (AreaInfo, error) {
	if strings.TrimSpace(string(id)) == "" {
		return AreaInfo{}, &Error{Kind: KindBadRequest, Operation: "area", Detail: "area id is empty"}
	}
	q := url.Values{"id": {string(id)}}
	if test != "" {
		q.Set("test", test)
	}
	var body areaInfoBody
	if err := c.get(ctx, "area", "/area", q, &body); err != nil {
		return AreaInfo{}, err
	}
	info, err := body.toAreaInfo()
	if err != nil {
		return AreaInfo{}, &Error{Kind: KindUnknownError, Operation: "area", Detail: "decode response", Err: err}
	}
	return info, nil
}

func (c *Client) get(ctx context.Context, op, path string, q url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return &Error{Kind: KindUnknownError, Operation: op, Detail: "build request", Err: err}
	}
	req.Header.Set(tokenHeader, c.token)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return classifyTransport(op, err)
	}
	defer resp.Body.Close()

	c.log.Debug("esp call", logx.String("op", op), logx.Int("status", resp.StatusCode), logx.Duration("took", time.Since(start)))

	if resp.StatusCode != http.StatusOK {
		var eb errorBody
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(b, &eb) != nil || eb.Error == "" {
			eb.Error = strings.TrimSpace(string(b))
		}
		return &Error{Kind: kindForStatus(resp.StatusCode), Operation: op, StatusCode: resp.StatusCode, Detail: eb.Error}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) && netErr.Timeout() {
			return &Error{Kind: KindTimeout, Operation: op, Err: err}
		}
		return &Error{Kind: KindUnknownError, Operation: op, Detail: fmt.Sprintf("decode %s response", op), Err: err}
	}
	return nil
}
