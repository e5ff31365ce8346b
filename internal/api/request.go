package api

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/rickgao/tradier-stream/internal/ratelimit"
	"github.com/rickgao/tradier-stream/internal/version"
)

// HTTPError is a non-2xx response from the Tradier API.
type HTTPError struct {
	Status int
	Body   []byte
}

// maxErrorBody bounds how much of the response body Error includes.
const maxErrorBody = 256

func (e *HTTPError) Error() string {
	msg := fmt.Sprintf("tradier api error %d: %s", e.Status, fasthttp.StatusMessage(e.Status))
	body := strings.TrimSpace(string(e.Body))
	if body == "" {
		return msg
	}
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody] + "..."
	}
	return msg + ": " + body
}

// IsRetryable returns true if a later retry may succeed. The client itself
// never retries.
func (e *HTTPError) IsRetryable() bool {
	return e.Status >= 500 || e.Status == fasthttp.StatusTooManyRequests
}

// doRequest performs one HTTP request after checking the class budget. A
// non-nil form is sent form-encoded. The returned body is owned by the
// caller.
func (c *Client) doRequest(ctx context.Context, class ratelimit.Class, method, path string, query, form url.Values) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Allow(class); err != nil {
			c.metrics.RecordLimited(class.String())
			c.metrics.RecordRequest(class.String(), "limited", 0)
			return nil, err
		}
	}

	start := time.Now()
	body, err := c.send(ctx, method, path, query, form)
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.metrics.RecordRequest(class.String(), result, time.Since(start))
	return body, err
}

func (c *Client) send(ctx context.Context, method, path string, query, form url.Values) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fullURL := c.url(path)
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(fullURL)
	req.Header.SetMethod(method)
	req.Header.Set("Accept", "application/json")
	req.Header.SetUserAgent(version.UserAgent())
	if c.tokens != nil {
		token, err := c.tokens.Token()
		if err != nil {
			return nil, fmt.Errorf("get token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if form != nil {
		req.Header.SetContentType("application/x-www-form-urlencoded")
		req.SetBodyString(form.Encode())
	}

	var err error
	if deadline, ok := ctx.Deadline(); ok {
		err = c.httpClient.DoDeadline(req, resp, deadline)
	} else {
		err = c.httpClient.DoTimeout(req, resp, c.timeout)
	}
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}

	// resp is recycled on return.
	body := append([]byte(nil), resp.Body()...)

	status := resp.StatusCode()
	if status < 200 || status >= 300 {
		c.logger.Debug("tradier request failed",
			"method", method,
			"path", path,
			"status", status,
		)
		return nil, &HTTPError{Status: status, Body: body}
	}

	return body, nil
}

// url resolves path against the base URL. Paths under /beta replace the
// base URL's /v1 version segment.
func (c *Client) url(path string) string {
	if strings.HasPrefix(path, betaPrefix) {
		return strings.TrimSuffix(c.baseURL, "/v1") + path
	}
	return c.baseURL + path
}

const betaPrefix = "/beta/"

func (c *Client) get(ctx context.Context, class ratelimit.Class, path string, query url.Values) ([]byte, error) {
	return c.doRequest(ctx, class, fasthttp.MethodGet, path, query, nil)
}

func (c *Client) post(ctx context.Context, class ratelimit.Class, path string, form url.Values) ([]byte, error) {
	if form == nil {
		form = url.Values{}
	}
	return c.doRequest(ctx, class, fasthttp.MethodPost, path, nil, form)
}
