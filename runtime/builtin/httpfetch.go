package builtin

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"flowdag/runtime/schema"
)

// HTTPFetchInput is the input of the http_fetch action, grounded on the
// teacher's http plugin's Request task arguments.
type HTTPFetchInput struct {
	URL     string            `flow:"url" validate:"required"`
	Method  string            `flow:"method"`
	Headers map[string]string `flow:"headers"`
	Query   map[string]string `flow:"query"`
	Body    any               `flow:"body"`
}

// HTTPFetchAction issues one HTTP request per invocation through a shared
// resty client (§6 ambient stack: go-resty, the teacher's only HTTP
// client library).
type HTTPFetchAction struct {
	base
	client *resty.Client
}

// NewHTTPFetchAction builds the action with a client configured the way
// the teacher's plugin.Initialize does (timeout, retry count, retry wait).
func NewHTTPFetchAction(timeout time.Duration, maxRetries int, retryWait time.Duration) *HTTPFetchAction {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(maxRetries).
		SetRetryWaitTime(retryWait)
	return &HTTPFetchAction{base: base{name: "http_fetch", cache: false}, client: client}
}

func (h *HTTPFetchAction) NewInput() any { return &HTTPFetchInput{} }

func (h *HTTPFetchAction) Run(ctx context.Context, input any) (any, error) {
	in := input.(*HTTPFetchInput)
	method := in.Method
	if method == "" {
		method = "GET"
	}

	req := h.client.R().SetContext(ctx)
	if in.Headers != nil {
		req.SetHeaders(in.Headers)
	}
	if in.Query != nil {
		req.SetQueryParams(in.Query)
	}
	if in.Body != nil {
		req.SetBody(in.Body)
	}

	resp, err := req.Execute(method, in.URL)
	if err != nil {
		return nil, fmt.Errorf("http_fetch: %w", err)
	}

	out := schema.NewRecord(map[string]any{
		"status":      resp.Status(),
		"status_code": resp.StatusCode(),
		"body":        resp.String(),
		"is_error":    resp.IsError(),
	})
	out.SetDefaultOutput("body")
	return out, nil
}
