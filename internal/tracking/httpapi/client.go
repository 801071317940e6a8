// Package httpapi implements the tracking service over the runboard
// HTTP/JSON API. Error payloads follow the google.rpc.Status JSON shape and
// are surfaced as gRPC status errors; transient transport failures are
// retried here so callers never need to.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	retryablehttp "github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/mansiachuthan/runboard/internal/tracking"
)

const (
	apiBasePath     = "/v1/"
	defaultPageSize = 100
	maxPageSize     = 1000
	userAgent       = "runboard-uploader"
)

// Config provides configuration details to the API client.
type Config struct {
	// URL of the runboard API server.
	URL string
	// Tokens supplies bearer tokens for each request.
	Tokens TokenSource
	// RetryRequests toggles retrying requests upon transient failures.
	RetryRequests bool
	// Transport overrides the default HTTP transport.
	Transport http.RoundTripper
	// PageSize bounds list page sizes. Zero uses the default; values above
	// the API maximum are clamped.
	PageSize int
}

// Client calls the runboard tracking API. It implements tracking.Service.
type Client struct {
	baseURL  *url.URL
	tokens   TokenSource
	http     *retryablehttp.Client
	tracer   trace.Tracer
	pageSize int
}

// NewClient creates a tracking API client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("server url is required")
	}
	if cfg.Tokens == nil {
		return nil, errors.New("token source is required")
	}
	baseURL, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid server url: %w", err)
	}
	if baseURL.Scheme != "http" && baseURL.Scheme != "https" {
		return nil, fmt.Errorf("invalid server url scheme %q", baseURL.Scheme)
	}
	if cfg.Transport == nil {
		cfg.Transport = http.DefaultTransport
	}

	client := &Client{
		baseURL:  baseURL,
		tokens:   cfg.Tokens,
		tracer:   otel.Tracer("runboard/httpapi"),
		pageSize: clampPageSize(cfg.PageSize),
	}
	client.http = &retryablehttp.Client{
		Backoff:      retryablehttp.DefaultBackoff,
		ErrorHandler: retryablehttp.PassthroughErrorHandler,
		HTTPClient:   &http.Client{Transport: cfg.Transport},
		RetryWaitMin: 500 * time.Millisecond,
		RetryWaitMax: 30 * time.Second,
		RetryMax:     5,
	}
	if cfg.RetryRequests {
		client.http.CheckRetry = retryablehttp.ErrorPropagatedRetryPolicy
	} else {
		client.http.CheckRetry = func(_ context.Context, _ *http.Response, err error) (bool, error) {
			return false, err
		}
	}
	return client, nil
}

func clampPageSize(value int) int {
	if value <= 0 {
		return defaultPageSize
	}
	if value > maxPageSize {
		return maxPageSize
	}
	return value
}

// CreateRun implements tracking.Service.
func (c *Client) CreateRun(ctx context.Context, parent, runID string, run *tracking.Run) (tracking.CreateResult[tracking.Run], error) {
	ctx, span := c.tracer.Start(ctx, "tracking.CreateRun",
		trace.WithAttributes(attribute.String("runboard.parent", parent)))
	defer span.End()

	query := url.Values{}
	query.Set("runId", runID)

	var created tracking.Run
	err := c.do(ctx, http.MethodPost, parent+"/runs", query, run, &created)
	if err != nil {
		// Run ids are fresh random tokens, so an existence conflict can only
		// be on the display name.
		if status.Code(err) == codes.AlreadyExists {
			return tracking.CreateResult[tracking.Run]{Conflict: true}, nil
		}
		return tracking.CreateResult[tracking.Run]{}, err
	}
	return tracking.CreateResult[tracking.Run]{Resource: &created}, nil
}

// ListRuns implements tracking.Service.
func (c *Client) ListRuns(ctx context.Context, parent, filter string) ([]*tracking.Run, error) {
	ctx, span := c.tracer.Start(ctx, "tracking.ListRuns",
		trace.WithAttributes(attribute.String("runboard.parent", parent)))
	defer span.End()

	var runs []*tracking.Run
	pageToken := ""
	for {
		query := url.Values{}
		if filter != "" {
			query.Set("filter", filter)
		}
		query.Set("pageSize", strconv.Itoa(c.pageSize))
		if pageToken != "" {
			query.Set("pageToken", pageToken)
		}

		var page struct {
			Runs          []*tracking.Run `json:"runs"`
			NextPageToken string          `json:"nextPageToken"`
		}
		if err := c.do(ctx, http.MethodGet, parent+"/runs", query, nil, &page); err != nil {
			return nil, err
		}
		runs = append(runs, page.Runs...)
		if page.NextPageToken == "" {
			return runs, nil
		}
		pageToken = page.NextPageToken
	}
}

// CreateTimeSeries implements tracking.Service.
func (c *Client) CreateTimeSeries(ctx context.Context, parent string, ts *tracking.TimeSeries) (tracking.CreateResult[tracking.TimeSeries], error) {
	ctx, span := c.tracer.Start(ctx, "tracking.CreateTimeSeries",
		trace.WithAttributes(attribute.String("runboard.parent", parent)))
	defer span.End()

	var created tracking.TimeSeries
	err := c.do(ctx, http.MethodPost, parent+"/timeSeries", nil, ts, &created)
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return tracking.CreateResult[tracking.TimeSeries]{Conflict: true}, nil
		}
		return tracking.CreateResult[tracking.TimeSeries]{}, err
	}
	return tracking.CreateResult[tracking.TimeSeries]{Resource: &created}, nil
}

// ListTimeSeries implements tracking.Service.
func (c *Client) ListTimeSeries(ctx context.Context, parent, filter string) ([]*tracking.TimeSeries, error) {
	ctx, span := c.tracer.Start(ctx, "tracking.ListTimeSeries",
		trace.WithAttributes(attribute.String("runboard.parent", parent)))
	defer span.End()

	var series []*tracking.TimeSeries
	pageToken := ""
	for {
		query := url.Values{}
		if filter != "" {
			query.Set("filter", filter)
		}
		query.Set("pageSize", strconv.Itoa(c.pageSize))
		if pageToken != "" {
			query.Set("pageToken", pageToken)
		}

		var page struct {
			TimeSeries    []*tracking.TimeSeries `json:"timeSeries"`
			NextPageToken string                 `json:"nextPageToken"`
		}
		if err := c.do(ctx, http.MethodGet, parent+"/timeSeries", query, nil, &page); err != nil {
			return nil, err
		}
		series = append(series, page.TimeSeries...)
		if page.NextPageToken == "" {
			return series, nil
		}
		pageToken = page.NextPageToken
	}
}

// WriteRunData implements tracking.Service. Request size and duration are
// logged so slow or oversized uploads are visible in operational logs.
func (c *Client) WriteRunData(ctx context.Context, req *tracking.WriteRunDataRequest) error {
	if req == nil || req.Run == "" {
		return status.Error(codes.InvalidArgument, "run resource name is required")
	}
	ctx, span := c.tracer.Start(ctx, "tracking.WriteRunData",
		trace.WithAttributes(
			attribute.String("runboard.run", req.Run),
			attribute.Int("runboard.points", req.PointCount()),
		))
	defer span.End()

	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode write request: %w", err)
	}

	start := time.Now()
	log.Printf("sending write request of %d bytes for %s", len(payload), req.Run)
	if err := c.doRaw(ctx, http.MethodPost, req.Run+":write", nil, payload, nil); err != nil {
		return err
	}
	log.Printf("write of %d bytes took %.3f seconds", len(payload), time.Since(start).Seconds())
	return nil
}

func (c *Client) do(ctx context.Context, method, resourcePath string, query url.Values, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}
	return c.doRaw(ctx, method, resourcePath, query, payload, out)
}

func (c *Client) doRaw(ctx context.Context, method, resourcePath string, query url.Values, payload []byte, out any) error {
	u := *c.baseURL
	u.Path = strings.TrimSuffix(u.Path, "/") + apiBasePath + resourcePath
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("obtain token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// If the context has been canceled, its error is more useful than
		// the transport's.
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			return err
		}
	}
	defer resp.Body.Close()

	if err := checkResponse(resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// errorBody mirrors the google.rpc.Status JSON error envelope.
type errorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func checkResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return nil
	}

	code := codeFromHTTP(resp.StatusCode)
	message := resp.Status

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err == nil {
		var body errorBody
		if json.Unmarshal(data, &body) == nil && body.Error.Message != "" {
			message = body.Error.Message
			if named, ok := codeFromStatusName(body.Error.Status); ok {
				code = named
			}
		}
	}
	return status.Error(code, message)
}

func codeFromStatusName(name string) (codes.Code, bool) {
	if name == "" {
		return codes.Unknown, false
	}
	var code codes.Code
	if err := code.UnmarshalJSON([]byte(strconv.Quote(name))); err != nil {
		return codes.Unknown, false
	}
	return code, true
}

func codeFromHTTP(statusCode int) codes.Code {
	switch statusCode {
	case http.StatusBadRequest:
		return codes.InvalidArgument
	case http.StatusUnauthorized:
		return codes.Unauthenticated
	case http.StatusForbidden:
		return codes.PermissionDenied
	case http.StatusNotFound:
		return codes.NotFound
	case http.StatusConflict:
		return codes.AlreadyExists
	case http.StatusTooManyRequests:
		return codes.ResourceExhausted
	case http.StatusNotImplemented:
		return codes.Unimplemented
	case http.StatusServiceUnavailable:
		return codes.Unavailable
	case http.StatusGatewayTimeout:
		return codes.DeadlineExceeded
	}
	if statusCode >= 500 {
		return codes.Internal
	}
	return codes.Unknown
}
