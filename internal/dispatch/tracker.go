package dispatch

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"leadcrm_backend/internal/brands"
	"leadcrm_backend/internal/leads/domain"
	"leadcrm_backend/platform/sanitize"
)

const (
	defaultTrackerTimeout = 5 * time.Second
	maxReadBody           = 64 << 10
)

// TrackerRequest is one delivery to a brand endpoint.
type TrackerRequest struct {
	URL          string
	Method       string
	Fields       map[string]string
	AuthType     string
	AuthToken    string
	APIKeyHeader string
	Timeout      time.Duration
}

// TrackerResponse is what came back, successful or not.
type TrackerResponse struct {
	StatusCode int
	Body       string
	Duration   time.Duration
}

// StatusError is returned for non-2xx tracker responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("tracker returned status %d", e.StatusCode)
}

// Sender delivers a request to a tracker.
type Sender interface {
	Send(ctx context.Context, req TrackerRequest) (TrackerResponse, error)
}

// TrackerClient is the HTTP Sender.
type TrackerClient struct {
	http *http.Client
}

var _ Sender = (*TrackerClient)(nil)

func NewTrackerClient(client *http.Client) *TrackerClient {
	if client == nil {
		client = &http.Client{}
	}
	return &TrackerClient{http: client}
}

// Send delivers the request. POST sends a JSON body; GET sends the fields as
// a query string. A POST answered with 405 is retried once as GET.
func (c *TrackerClient) Send(ctx context.Context, req TrackerRequest) (TrackerResponse, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = defaultTrackerTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	method := req.Method
	if method != http.MethodGet {
		method = http.MethodPost
	}

	resp, err := c.do(ctx, method, req)
	if err == nil && method == http.MethodPost && resp.StatusCode == http.StatusMethodNotAllowed {
		resp, err = c.do(ctx, http.MethodGet, req)
	}
	resp.Duration = time.Since(start)
	if err != nil {
		return resp, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, &StatusError{StatusCode: resp.StatusCode, Body: resp.Body}
	}
	return resp, nil
}

func (c *TrackerClient) do(ctx context.Context, method string, req TrackerRequest) (TrackerResponse, error) {
	httpReq, err := buildRequest(ctx, method, req)
	if err != nil {
		return TrackerResponse{}, err
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return TrackerResponse{}, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxReadBody))
	return TrackerResponse{
		StatusCode: resp.StatusCode,
		Body:       sanitize.Truncate(string(body), domain.MaxResponseBody),
	}, nil
}

func buildRequest(ctx context.Context, method string, req TrackerRequest) (*http.Request, error) {
	target, err := url.Parse(req.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid tracker url: %w", err)
	}

	var body io.Reader
	if method == http.MethodGet {
		q := target.Query()
		for k, v := range req.Fields {
			q.Set(k, v)
		}
		target.RawQuery = q.Encode()
	} else {
		data, err := json.Marshal(req.Fields)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	setAuth(httpReq.Header, req)
	return httpReq, nil
}

// setAuth applies the brand credential. A basic credential given as
// user:password is encoded; anything else is sent as already encoded.
func setAuth(h http.Header, req TrackerRequest) {
	if req.AuthToken == "" {
		return
	}
	switch req.AuthType {
	case brands.AuthBearer:
		h.Set("Authorization", "Bearer "+req.AuthToken)
	case brands.AuthBasic:
		value := req.AuthToken
		if strings.Contains(value, ":") {
			value = base64.StdEncoding.EncodeToString([]byte(value))
		}
		h.Set("Authorization", "Basic "+value)
	case brands.AuthAPIKeyHeader:
		if req.APIKeyHeader != "" {
			h.Set(req.APIKeyHeader, req.AuthToken)
		}
	}
}
