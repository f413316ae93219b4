package advisorclient

import (
	"context"
	"time"

	"github.com/dispatchcore/fleetengine/internal/adapters/httpclient"
	"github.com/dispatchcore/fleetengine/internal/domain/shared"
)

// HTTPClient calls a generic completion-style HTTP endpoint: POST
// {system, user} -> {text}. On any failure it returns an empty string and
// no error, matching the contract that the advisor integration tolerates
// rate-limit, auth, and connection failures by yielding empty text so
// callers fall through to their rule-based fallback.
type HTTPClient struct {
	requester *httpclient.Requester
	url       string
	timeout   time.Duration
}

func NewHTTPClient(url string, timeout time.Duration, clock shared.Clock) *HTTPClient {
	return &HTTPClient{
		requester: httpclient.NewRequester(timeout, 2, 2, 1, 500*time.Millisecond, 5, 60*time.Second, clock),
		url:       url,
		timeout:   timeout,
	}
}

type completionRequest struct {
	System string `json:"system"`
	User   string `json:"user"`
}

type completionResponse struct {
	Text string `json:"text"`
}

func (c *HTTPClient) Complete(ctx context.Context, system, user string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var resp completionResponse
	if err := c.requester.PostJSON(callCtx, c.url, completionRequest{System: system, User: user}, &resp); err != nil {
		return "", nil
	}
	return resp.Text, nil
}
