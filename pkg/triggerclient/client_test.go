package triggerclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/truefoundry/idlefleet/pkg/messages"
)

func newSwitcher(t *testing.T, status int, body interface{}) (*httptest.Server, *messages.ActionRequest) {
	t.Helper()
	received := &messages.ActionRequest{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/invoke", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(received))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		assert.NoError(t, json.NewEncoder(w).Encode(body))
	}))
	t.Cleanup(server.Close)
	return server, received
}

func TestInvoke(t *testing.T) {
	server, received := newSwitcher(t, http.StatusOK, messages.StatusResponse{Status: "scaled up"})

	result, err := New(server.URL+"/", 5*time.Second).Invoke(context.Background(), "scale_up")
	require.NoError(t, err)
	assert.Equal(t, "scaled up", result.Status)
	assert.Equal(t, "scale_up", received.Action)
}

func TestInvokeUpdateFailed(t *testing.T) {
	server, _ := newSwitcher(t, http.StatusBadGateway, messages.ErrorResponse{
		Error:   "update of service failed",
		Kind:    messages.ErrorKindUpdateFailed,
		Stage:   "service",
		Applied: []string{"scaling-group"},
	})

	_, err := New(server.URL, 5*time.Second).Invoke(context.Background(), "scale_down")
	require.Error(t, err)

	var remoteErr *RemoteError
	require.True(t, errors.As(err, &remoteErr))
	assert.Equal(t, http.StatusBadGateway, remoteErr.StatusCode)
	assert.Equal(t, "service", remoteErr.Response.Stage)
	assert.Equal(t, []string{"scaling-group"}, remoteErr.Response.Applied)
	assert.Contains(t, err.Error(), "already applied: scaling-group")
}

func TestInvokeUnreachable(t *testing.T) {
	server, _ := newSwitcher(t, http.StatusOK, messages.StatusResponse{})
	server.Close()

	_, err := New(server.URL, time.Second).Invoke(context.Background(), "scale_up")
	assert.Error(t, err)
}
