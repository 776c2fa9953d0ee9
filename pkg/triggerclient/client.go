package triggerclient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/imroc/req/v3"
	"github.com/truefoundry/idlefleet/pkg/capacity"
	"github.com/truefoundry/idlefleet/pkg/messages"
	"github.com/truefoundry/idlefleet/pkg/values"
)

// RemoteError is a failure reported by the switcher
type RemoteError struct {
	StatusCode int
	Response   messages.ErrorResponse
}

func (e *RemoteError) Error() string {
	msg := fmt.Sprintf("switcher returned %d (%s): %s", e.StatusCode, e.Response.Kind, e.Response.Error)
	if e.Response.Stage != "" {
		msg += fmt.Sprintf(", failed stage: %s", e.Response.Stage)
	}
	if len(e.Response.Applied) > 0 {
		msg += fmt.Sprintf(", already applied: %s", strings.Join(e.Response.Applied, ", "))
	}
	return msg
}

// Client sends actions to a running switcher
type Client struct {
	client *req.Client
}

// New returns a Client for the switcher at baseURL
func New(baseURL string, timeout time.Duration) *Client {
	client := req.C().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetCommonContentType("application/json").
		SetTimeout(timeout)
	return &Client{client: client}
}

// Invoke posts the action and returns the switcher's result
func (c *Client) Invoke(ctx context.Context, action string) (capacity.Result, error) {
	var result messages.StatusResponse
	var errResp messages.ErrorResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(&messages.ActionRequest{Action: action}).
		SetSuccessResult(&result).
		SetErrorResult(&errResp).
		Post(values.InvokePath)
	if err != nil {
		return capacity.Result{}, fmt.Errorf("Invoke: %w", err)
	}
	if resp.IsErrorState() {
		if errResp.Error == "" {
			errResp.Error = resp.String()
		}
		return capacity.Result{}, &RemoteError{StatusCode: resp.StatusCode, Response: errResp}
	}
	if !resp.IsSuccessState() {
		return capacity.Result{}, fmt.Errorf("Invoke: unexpected status code %d", resp.StatusCode)
	}
	return capacity.Result{Status: result.Status}, nil
}
