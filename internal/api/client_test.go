package api_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"acta-go/internal/api"
	"acta-go/internal/fault"
)

func fastRetry() api.ClientOption {
	return api.WithRetryConfig(api.RetryConfig{BaseDelay: time.Millisecond, Multiplier: 2, MaxDelay: 5 * time.Millisecond})
}

func TestRequest_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "text/plain;charset=utf-8", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"action":"health"}`, string(body))
		w.Write([]byte(`{"ok":true,"data":{"status":"up"}}`))
	}))
	defer server.Close()

	client := api.NewClient()
	res, err := client.Request(context.Background(), server.URL, api.Options{
		Headers: map[string]string{"Content-Type": "text/plain;charset=utf-8"},
		Body:    []byte(`{"action":"health"}`),
		Action:  "health",
	}, api.DefaultRetries)

	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Equal(t, "up", res.Object("data").String("status"))
}

func TestRequest_NonJSONBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>Script output</html>"))
	}))
	defer server.Close()

	res, err := api.NewClient().Request(context.Background(), server.URL, api.Options{}, 0)

	require.NoError(t, err)
	assert.Equal(t, true, res["ok"])
	assert.Equal(t, "<html>Script output</html>", res["message"])
}

func TestRequest_NonObjectJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"depto":"101"}]`))
	}))
	defer server.Close()

	res, err := api.NewClient().Request(context.Background(), server.URL, api.Options{}, 0)

	require.NoError(t, err)
	rows, ok := res.Rows("data")
	require.True(t, ok)
	require.Len(t, rows, 1)
	assert.Equal(t, "101", rows[0]["depto"])
}

func TestRequest_ServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"message":"upstream down"}`))
	}))
	defer server.Close()

	_, err := api.NewClient(fastRetry()).Request(context.Background(), server.URL, api.Options{}, 2)

	require.Error(t, err)
	var fe *fault.Error
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, fault.Server, fe.Kind)
	assert.Equal(t, http.StatusBadGateway, fe.Status)
	assert.Equal(t, "upstream down", fe.Message)
	assert.Equal(t, int32(3), calls.Load(), "server errors are retried")
}

func TestRequest_LogicError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"ok":false,"error":"No se encontró agendamiento para estos criterios"}`))
	}))
	defer server.Close()

	_, err := api.NewClient(fastRetry()).Request(context.Background(), server.URL, api.Options{}, 1)

	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.Logic))
	assert.Equal(t, "No se encontró agendamiento para estos criterios", fault.Message(err))
	assert.Equal(t, int32(2), calls.Load())
}

func TestRequest_RetriesNetworkThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true,"data":"third time"}`))
	}))
	defer server.Close()

	transport := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		if calls.Add(1) <= 2 {
			return nil, errors.New("connection reset by peer")
		}
		return http.DefaultTransport.RoundTrip(r)
	})

	client := api.NewClient(fastRetry(), api.WithHTTPClient(&http.Client{Transport: transport}))
	res, err := client.Request(context.Background(), server.URL, api.Options{}, 2)

	require.NoError(t, err)
	assert.Equal(t, "third time", res.String("data"))
	assert.Equal(t, int32(3), calls.Load())
}

func TestRequest_NetworkErrorExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	transport := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		calls.Add(1)
		return nil, errors.New("dial tcp: connection refused")
	})

	client := api.NewClient(fastRetry(), api.WithHTTPClient(&http.Client{Transport: transport}))
	_, err := client.Request(context.Background(), "http://backend.invalid/exec", api.Options{}, 2)

	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.Network))
	assert.Equal(t, int32(3), calls.Load())
}

func TestRequest_TimeoutIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := api.NewClient(fastRetry(), api.WithTimeout(30*time.Millisecond))
	_, err := client.Request(context.Background(), server.URL, api.Options{}, 3)

	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.Timeout), "got %v", err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRequest_ParentCancelStopsRetries(t *testing.T) {
	transport := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})
	client := api.NewClient(
		api.WithRetryConfig(api.RetryConfig{BaseDelay: time.Hour, Multiplier: 1}),
		api.WithHTTPClient(&http.Client{Transport: transport}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := client.Request(ctx, "http://backend.invalid/exec", api.Options{}, 5)

	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.Network))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRequest_MissingURL(t *testing.T) {
	_, err := api.NewClient().Request(context.Background(), "", api.Options{}, 2)
	assert.True(t, fault.Is(err, fault.Configuration))
}

func TestRequest_DiagnosticsAndSink(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	sink := &recordingSink{}
	client := api.NewClient(api.WithCallSink(sink), api.WithRedaction("s3cret"))

	_, err := client.Request(context.Background(), server.URL, api.Options{
		Body:   []byte(`{"apiKey":"s3cret","action":"login"}`),
		Action: "login",
	}, 0)
	require.NoError(t, err)

	last, ok := client.Diagnostics().Last()
	require.True(t, ok)
	assert.Equal(t, server.URL, last.Endpoint)
	assert.Equal(t, "login", last.Action)
	assert.Equal(t, http.StatusOK, last.Status)
	assert.Equal(t, `{"ok":true}`, last.Response)
	assert.NotContains(t, last.Request, "s3cret")
	assert.False(t, last.At.IsZero())

	require.Len(t, sink.calls, 1)
	assert.Equal(t, "login", sink.calls[0].Action)
}

func TestRequest_Metrics(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	metrics := api.NewMetrics()
	client := api.NewClient(api.WithMetrics(metrics))
	_, err := client.Request(context.Background(), server.URL, api.Options{Action: "health"}, 0)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, metrics.WriteText(&buf))
	assert.Contains(t, buf.String(), `acta_api_requests_total{action="health",outcome="ok"} 1`)
}

func TestGetText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Write([]byte("a,b\n1,2\n"))
	}))
	defer server.Close()

	text, err := api.NewClient().GetText(context.Background(), server.URL, 0)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(text, "a,b"))
}

func TestGetText_ResponseSizeLimit(t *testing.T) {
	const limit = 10 << 20
	payload := func(n int) []byte {
		return append([]byte("%PDF-"), bytes.Repeat([]byte("x"), n-5)...)
	}

	t.Run("at limit", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write(payload(limit))
		}))
		defer server.Close()

		text, err := api.NewClient().GetText(context.Background(), server.URL, 0)
		require.NoError(t, err)
		assert.Len(t, text, limit)
	})

	t.Run("over limit", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write(payload(limit + 1<<20))
		}))
		defer server.Close()

		text, err := api.NewClient().GetText(context.Background(), server.URL, 0)
		require.Error(t, err)
		assert.True(t, fault.Is(err, fault.Server))
		assert.Contains(t, err.Error(), "response too large")
		assert.Empty(t, text)
	})

	t.Run("json over limit", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"ok":true,"message":"`))
			w.Write(bytes.Repeat([]byte("x"), limit))
			w.Write([]byte(`"}`))
		}))
		defer server.Close()

		_, err := api.NewClient().Request(context.Background(), server.URL, api.Options{}, 0)
		require.Error(t, err)
		assert.True(t, fault.Is(err, fault.Server))
	})
}

func TestRetryConfig_Backoff(t *testing.T) {
	cfg := api.RetryConfig{BaseDelay: 100 * time.Millisecond, Multiplier: 2, MaxDelay: 300 * time.Millisecond}
	assert.Equal(t, 100*time.Millisecond, cfg.Backoff(1))
	assert.Equal(t, 200*time.Millisecond, cfg.Backoff(2))
	assert.Equal(t, 300*time.Millisecond, cfg.Backoff(3))
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

type recordingSink struct {
	mu    sync.Mutex
	calls []api.Call
}

func (s *recordingSink) RecordCall(_ context.Context, call api.Call) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
	return nil
}
