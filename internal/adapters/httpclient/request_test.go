package httpclient_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dispatchcore/fleetengine/internal/adapters/httpclient"
	"github.com/dispatchcore/fleetengine/internal/domain/shared"
)

type echoBody struct {
	Value string `json:"value"`
}

func TestPostJSON_DecodesSuccessfulResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req echoBody
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(echoBody{Value: req.Value + "-echo"})
	}))
	defer server.Close()

	requester := httpclient.NewRequester(time.Second, 100, 10, 2, time.Millisecond, 5, time.Minute, shared.NewRealClock())

	var resp echoBody
	err := requester.PostJSON(t.Context(), server.URL, echoBody{Value: "hi"}, &resp)
	require.NoError(t, err)
	assert.Equal(t, "hi-echo", resp.Value)
}

func TestPostJSON_RetriesOnServerErrorThenSucceeds(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&attempts, 1)
		if n < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(echoBody{Value: "ok"})
	}))
	defer server.Close()

	requester := httpclient.NewRequester(time.Second, 100, 10, 3, time.Millisecond, 5, time.Minute, shared.NewRealClock())

	var resp echoBody
	err := requester.PostJSON(t.Context(), server.URL, echoBody{Value: "hi"}, &resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Value)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&attempts), int32(2))
}

func TestPostJSON_NonRetryableStatusFailsImmediately(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	requester := httpclient.NewRequester(time.Second, 100, 10, 3, time.Millisecond, 5, time.Minute, shared.NewRealClock())

	err := requester.PostJSON(t.Context(), server.URL, echoBody{Value: "hi"}, nil)
	assert.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts), "a 400 must not be retried")
}
