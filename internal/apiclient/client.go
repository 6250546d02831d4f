package apiclient

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

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"social-sync/internal/models"
	"social-sync/internal/observability"
	"social-sync/internal/session"
)

// Headers attached to every backend call.
const (
	HeaderTenant    = "X-Tenant-ID"
	HeaderRequestID = "X-Request-ID"
)

// TokenSource yields the current viewer session.
type TokenSource interface {
	Current() (session.Session, error)
}

// Client is a thin JSON-over-HTTP wrapper around the backend REST API. It
// attaches credentials, normalizes the response envelope and maps failures
// to APIError.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	tracer  trace.Tracer
}

// New constructs a Client. A nil httpClient gets a default with timeout.
func New(baseURL string, tokens TokenSource, httpClient *http.Client, timeout time.Duration) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		tokens:  tokens,
		tracer:  otel.Tracer("social-sync/apiclient"),
	}
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Session returns the session used for outgoing calls.
func (c *Client) Session() (session.Session, error) {
	s, err := c.tokens.Current()
	if err != nil {
		return session.Session{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return s, nil
}

// Envelope is the normalized backend response.
type Envelope struct {
	Data       json.RawMessage    `json:"data"`
	Pagination models.Pagination `json:"pagination"`
}

// Decode unmarshals the data payload into v.
func (e *Envelope) Decode(v any) error {
	if v == nil || len(e.Data) == 0 || string(e.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}

// Get issues a GET request.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Envelope, error) {
	return c.Do(ctx, http.MethodGet, path, query, nil)
}

// Post issues a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body any) (*Envelope, error) {
	return c.Do(ctx, http.MethodPost, path, nil, body)
}

// Do performs an authenticated request. Missing or expired credentials fail
// with ErrUnauthorized before any network traffic.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body any) (*Envelope, error) {
	s, err := c.Session()
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	ctx, span := c.tracer.Start(ctx, method+" "+path, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+s.Token)
	if s.Tenant != "" {
		req.Header.Set(HeaderTenant, s.Tenant)
	}
	req.Header.Set(HeaderRequestID, requestID)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
	span.SetAttributes(
		attribute.String("http.request.method", method),
		attribute.String("url.path", path),
		attribute.String("request.id", requestID),
	)

	resp, err := c.http.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		observability.IncUpstreamRequest(method, "error")
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	observability.IncUpstreamRequest(method, strconv.Itoa(resp.StatusCode))

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := newAPIError(resp.StatusCode, raw, requestID)
		span.SetStatus(codes.Error, apiErr.Error())
		return nil, apiErr
	}

	return parseEnvelope(raw)
}

// parseEnvelope accepts both {data, pagination} envelopes and bare JSON.
func parseEnvelope(raw []byte) (*Envelope, error) {
	env := &Envelope{}
	if len(bytes.TrimSpace(raw)) == 0 {
		return env, nil
	}

	if !json.Valid(raw) {
		return nil, fmt.Errorf("decode response: invalid json")
	}

	var envelope map[string]json.RawMessage
	if json.Unmarshal(raw, &envelope) == nil {
		if data, ok := envelope["data"]; ok {
			env.Data = data
			if p, ok := envelope["pagination"]; ok {
				if err := json.Unmarshal(p, &env.Pagination); err != nil {
					return nil, fmt.Errorf("decode pagination: %w", err)
				}
			}
			return env, nil
		}
	}

	env.Data = raw
	return env, nil
}
