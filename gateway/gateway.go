// Package gateway wraps the properties backend. Reads go over REST with a
// bounded retry policy; the write path is a GraphQL mutation.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/machinebox/graphql"

	"property-shell/models"
	"property-shell/storage"
)

const (
	requestTimeout = 10 * time.Second
	maxRetries     = 3
	retryWaitMin   = 500 * time.Millisecond
	retryWaitMax   = 8 * time.Second
)

// StatusError reports a non-success HTTP status from the backend.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend returned status %d: %s", e.Code, e.Body)
}

// ServerFault reports whether the status is in the 5xx class.
func (e *StatusError) ServerFault() bool { return e.Code >= 500 }

// ClientFault reports whether the status is in the 4xx class.
func (e *StatusError) ClientFault() bool { return e.Code >= 400 && e.Code < 500 }

// Gateway is the single outbound seam to the properties backend.
type Gateway struct {
	baseURL string
	retry   *retryablehttp.Client
	gql     *graphql.Client
	tokens  storage.Store
}

// New builds a Gateway for the given endpoints. tokens supplies the bearer
// token attached to requests when a session is stored.
func New(baseURL, graphqlURL string, tokens storage.Store) *Gateway {
	rc := retryablehttp.NewClient()
	rc.RetryMax = maxRetries
	rc.RetryWaitMin = retryWaitMin
	rc.RetryWaitMax = retryWaitMax
	rc.Logger = nil
	rc.HTTPClient.Timeout = requestTimeout
	rc.CheckRetry = retryOnServerFault
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Gateway{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		retry:   rc,
		gql: graphql.NewClient(graphqlURL,
			graphql.WithHTTPClient(&http.Client{Timeout: requestTimeout})),
		tokens: tokens,
	}
}

// retryOnServerFault re-attempts only when the backend answered with a 5xx.
// Client faults and transport errors, timeouts included, fail immediately.
func retryOnServerFault(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return false, err
	}
	if resp != nil && resp.StatusCode >= 500 {
		return true, nil
	}
	return false, nil
}

// ListProperties fetches the full collection.
func (g *Gateway) ListProperties(ctx context.Context) ([]models.Property, error) {
	return g.getProperties(ctx, g.baseURL+"/properties")
}

// SearchByLocation fetches the server-filtered collection for term. The
// caller cancels ctx to abandon a superseded request.
func (g *Gateway) SearchByLocation(ctx context.Context, term string) ([]models.Property, error) {
	return g.getProperties(ctx, g.baseURL+"/properties/location/"+url.PathEscape(term))
}

func (g *Gateway) getProperties(ctx context.Context, u string) ([]models.Property, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	g.decorate(req.Header)

	resp, err := g.retry.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var properties []models.Property
	if err := json.NewDecoder(resp.Body).Decode(&properties); err != nil {
		return nil, fmt.Errorf("decoding properties: %w", err)
	}
	return properties, nil
}

// decorate attaches the shared request headers: content type, the tunnel
// interstitial bypass, and the bearer token when one is stored.
func (g *Gateway) decorate(h http.Header) {
	h.Set("Content-Type", "application/json")
	h.Set("ngrok-skip-browser-warning", "true")

	if g.tokens == nil {
		return
	}
	// Requests proceed anonymously when no session is stored.
	sess, err := g.tokens.Load()
	if err != nil || sess.AccessToken == "" {
		return
	}
	h.Set("Authorization", "Bearer "+sess.AccessToken)
}
