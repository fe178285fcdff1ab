package client

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"healthsync/internal/health"
	"healthsync/internal/summary"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// APIError is any failed call. StatusCode 0 means the request never got an
// HTTP response (dial, timeout, reset).
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return "network error: " + e.Message
	}
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	Retry   RetryPolicy // uploads only; zero value means a single try
}

// Client talks to the health API. Only ingest uploads are retried.
type Client struct {
	http   *resty.Client
	upload *resty.Client
	log    *zap.Logger
}

func New(cfg Config, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	base := func() *resty.Client {
		hc := resty.New().
			SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json").
			SetHeader("Accept", "application/json")
		if cfg.Token != "" {
			hc.SetAuthToken(cfg.Token)
		}
		return hc
	}

	return &Client{http: base(), upload: withRetry(base(), cfg.Retry), log: log}
}

type IngestResult struct {
	Inserted       int      `json:"inserted"`
	Deduped        int      `json:"deduped"`
	RecomputedDays []string `json:"recomputedDays"`
	ServerTimeMs   int64    `json:"serverTimeMs"`
}

type UpsertResult struct {
	Created bool               `json:"created"`
	Intent  health.WriteIntent `json:"intent"`
}

type errorBody struct {
	Error string `json:"error"`
}

type envelope[T any] struct {
	Data T              `json:"data"`
	Meta map[string]any `json:"meta"`
}

func (c *Client) Ingest(ctx context.Context, deviceID string, samples []health.Sample) (IngestResult, error) {
	var out IngestResult
	req := c.upload.R().
		SetContext(ctx).
		SetBody(map[string]any{"deviceId": deviceID, "samples": samples}).
		SetResult(&out)
	if err := c.do(req, http.MethodPost, "/health/ingest"); err != nil {
		return IngestResult{}, err
	}
	return out, nil
}

func (c *Client) ListPendingWriteIntents(ctx context.Context, limit int, cursor string) (health.WriteIntentPage, error) {
	var env envelope[health.WriteIntentPage]
	req := c.http.R().
		SetContext(ctx).
		SetQueryParam("limit", strconv.Itoa(limit)).
		SetResult(&env)
	if cursor != "" {
		req.SetQueryParam("cursor", cursor)
	}
	if err := c.do(req, http.MethodGet, "/health/write-intents/pending"); err != nil {
		return health.WriteIntentPage{}, err
	}
	return env.Data, nil
}

func (c *Client) AckWriteIntent(ctx context.Context, ack health.AckRequest) (health.WriteIntent, error) {
	var env envelope[struct {
		Intent health.WriteIntent `json:"intent"`
	}]
	req := c.http.R().SetContext(ctx).SetBody(ack).SetResult(&env)
	if err := c.do(req, http.MethodPost, "/health/write-intents/ack"); err != nil {
		return health.WriteIntent{}, err
	}
	return env.Data.Intent, nil
}

func (c *Client) UpsertWriteIntent(ctx context.Context, p health.WriteIntentPayload) (UpsertResult, error) {
	var env envelope[UpsertResult]
	req := c.http.R().SetContext(ctx).SetBody(p).SetResult(&env)
	if err := c.do(req, http.MethodPost, "/health/write-intents"); err != nil {
		return UpsertResult{}, err
	}
	return env.Data, nil
}

func (c *Client) DailySummary(ctx context.Context, day, timezone string) (summary.Daily, error) {
	var env envelope[summary.Daily]
	req := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"day": day, "timezone": timezone}).
		SetResult(&env)
	if err := c.do(req, http.MethodGet, "/health/summary/daily"); err != nil {
		return summary.Daily{}, err
	}
	return env.Data, nil
}

func (c *Client) RangeSummary(ctx context.Context, from, to, timezone string) (summary.Range, error) {
	var env envelope[summary.Range]
	req := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"from": from, "to": to, "timezone": timezone}).
		SetResult(&env)
	if err := c.do(req, http.MethodGet, "/health/summary/range"); err != nil {
		return summary.Range{}, err
	}
	return env.Data, nil
}

func (c *Client) YesterdaySummary(ctx context.Context, timezone string) (summary.Daily, error) {
	var env envelope[summary.Daily]
	req := c.http.R().
		SetContext(ctx).
		SetQueryParam("timezone", timezone).
		SetResult(&env)
	if err := c.do(req, http.MethodGet, "/health/summary/yesterday"); err != nil {
		return summary.Daily{}, err
	}
	return env.Data, nil
}

func (c *Client) do(req *resty.Request, method, path string) error {
	var eb errorBody
	req.SetError(&eb)

	resp, err := req.Execute(method, path)
	if err != nil {
		c.log.Warn("health api request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("attempts", req.Attempt),
			zap.Error(err),
		)
		return &APIError{StatusCode: 0, Message: err.Error()}
	}
	if resp.IsError() {
		msg := eb.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode())
		}
		c.log.Warn("health api returned error",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status_code", resp.StatusCode()),
			zap.Int("attempts", req.Attempt),
			zap.String("msg", msg),
		)
		return &APIError{StatusCode: resp.StatusCode(), Message: msg}
	}
	return nil
}
