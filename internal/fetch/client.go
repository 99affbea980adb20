// Package fetch retrieves ISS position, crew and reverse-geocoding data from
// public JSON APIs.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/star/isstracker/internal/metrics"
)

const (
	// maxBodyBytes caps how much of an upstream response is read.
	maxBodyBytes = 1 << 20

	userAgent = "isstracker/1.0 (+https://github.com/star/isstracker)"

	tracerName = "github.com/star/isstracker/internal/fetch"
)

var (
	// ErrStatus is returned when an upstream answers with a non-200 status.
	ErrStatus = errors.New("unexpected status code")

	// ErrMalformed is returned when an upstream payload cannot be used.
	ErrMalformed = errors.New("malformed payload")
)

// getJSON performs a traced, metered HTTP GET and decodes the JSON body into v.
// endpoint names the upstream in metrics and span names.
func getJSON(ctx context.Context, client *http.Client, endpoint, rawURL string, v any) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "fetch."+endpoint,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", http.MethodGet),
			attribute.String("url.full", rawURL),
		),
	)
	defer span.End()

	start := time.Now()
	status, err := doGet(ctx, client, rawURL, v)
	metrics.ObserveUpstream(endpoint, time.Since(start), err)

	if status != 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", status))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func doGet(ctx context.Context, client *http.Client, rawURL string, v any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, fmt.Errorf("%w %d from %s", ErrStatus, resp.StatusCode, rawURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("reading response body: %w", err)
	}
	if len(body) > maxBodyBytes {
		return resp.StatusCode, fmt.Errorf("response from %s exceeds %d byte limit", rawURL, maxBodyBytes)
	}

	if err := json.Unmarshal(body, v); err != nil {
		return resp.StatusCode, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return resp.StatusCode, nil
}
