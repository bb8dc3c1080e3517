// Package gateway is the single outbound pipeline to the catalog API.
//
// Every call carries the browser session's stored credential as HTTP Basic
// authorization. A 401 answer expires that session before the error is
// returned, so callers only have to redirect.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/catalog-console/catalog-console/internal/shared"
)

const tracerName = "github.com/catalog-console/catalog-console/internal/gateway"

// DefaultBaseURL is used when Config.BaseURL is empty.
const DefaultBaseURL = "http://localhost:8080/api"

// Session supplies the credential for outbound calls and is expired when the
// catalog API rejects it.
type Session interface {
	Credential(ctx context.Context) (string, bool)
	Expire(ctx context.Context)
}

// Config collects the dependencies of Client.
type Config struct {
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *slog.Logger
	Registerer     prometheus.Registerer
	TracerProvider trace.TracerProvider
}

// Client is the process-wide catalog API client. Bind it to a session with For.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *metrics
	lists   singleflight.Group
}

// New constructs a Client.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	provider := cfg.TracerProvider
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	m, err := newMetrics(cfg.Registerer)
	if err != nil {
		return nil, fmt.Errorf("gateway: register metrics: %w", err)
	}
	return &Client{
		baseURL: base,
		http:    httpClient,
		logger:  logger.With(slog.String("component", "catalog_gateway")),
		tracer:  provider.Tracer(tracerName),
		metrics: m,
	}, nil
}

// For binds the client to a session. A nil session sends unauthenticated requests.
func (c *Client) For(s Session) *Products {
	return &Products{client: c, session: s}
}

// call describes one request. route is the path template used for span names
// and metric labels.
type call struct {
	method string
	route  string
	path   string
	body   any
	out    any
}

func (c *Client) do(ctx context.Context, s Session, cl call) (err error) {
	ctx, span := c.tracer.Start(ctx, "catalog "+cl.method+" "+cl.route,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", cl.method),
			attribute.String("http.route", cl.route),
		))
	start := time.Now()
	code := "error"
	defer func() {
		c.metrics.observe(cl.method, cl.route, code, time.Since(start))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	var body io.Reader
	if cl.body != nil {
		payload, err := json.Marshal(cl.body)
		if err != nil {
			return &RequestError{Method: cl.method, Path: cl.path, Err: err}
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, cl.method, c.baseURL+cl.path, body)
	if err != nil {
		return &RequestError{Method: cl.method, Path: cl.path, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s != nil {
		if credential, ok := s.Credential(ctx); ok {
			req.Header.Set("Authorization", "Basic "+credential)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &RequestError{Method: cl.method, Path: cl.path, Err: err}
	}
	defer resp.Body.Close()
	code = strconv.Itoa(resp.StatusCode)
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		c.logger.Info("catalog api rejected credential", slog.String("method", cl.method), slog.String("path", cl.path))
		if s != nil {
			s.Expire(ctx)
		}
		return fmt.Errorf("gateway: %s %s: %w", cl.method, cl.path, shared.ErrAuthorization)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("gateway: %s %s: %w", cl.method, cl.path, shared.ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &RequestError{Method: cl.method, Path: cl.path, Status: resp.StatusCode, Message: serverMessage(resp.Body)}
	}

	if cl.out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(cl.out); err != nil {
		return &RequestError{Method: cl.method, Path: cl.path, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// serverMessage extracts a human readable message from an error body: the
// problem detail, a "message" or "error" field, or the plain text.
func serverMessage(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, 64<<10))
	if err != nil {
		return ""
	}
	var problem struct {
		Detail  string `json:"detail"`
		Message string `json:"message"`
		Error   string `json:"error"`
		Title   string `json:"title"`
	}
	if json.Unmarshal(raw, &problem) == nil {
		for _, candidate := range []string{problem.Detail, problem.Message, problem.Error, problem.Title} {
			if candidate != "" {
				return candidate
			}
		}
	}
	return strings.TrimSpace(string(raw))
}

// IsRequestError reports whether err carries a *RequestError and returns it.
func IsRequestError(err error) (*RequestError, bool) {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr, true
	}
	return nil, false
}
