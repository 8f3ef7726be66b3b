package riot

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, srv *httptest.Server, gate *Gate, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{
		WithBaseURLs(srv.URL, srv.URL),
		WithRetryAfterDefault(5 * time.Millisecond),
		WithTransportBackoff(5 * time.Millisecond),
	}, opts...)
	c, err := NewClient("RGAPI-test-key", gate, opts...)
	require.NoError(t, err)
	return c
}

func TestNewClient_EmptyKey(t *testing.T) {
	_, err := NewClient("", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfiguration))
}

func TestFetch_SetsTokenHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "RGAPI-test-key", r.Header.Get("X-Riot-Token"))
		w.Write([]byte(`ok`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, nil)
	body, err := c.Fetch(context.Background(), srv.URL+"/x")
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
}

func TestFetch_NeverExceedsGateLimit(t *testing.T) {
	var current, peak atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := current.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(40 * time.Millisecond)
		current.Add(-1)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	gate := NewGate(2)
	c := newTestClient(t, srv, gate)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Fetch(context.Background(), srv.URL+"/slow")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int64(2))
	assert.Equal(t, 0, gate.InFlight())
}

func TestFetch_RequestBudget(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, nil, WithRequestBudget(4, 0))

	start := time.Now()
	for i := 0; i < 6; i++ {
		_, err := c.Fetch(context.Background(), srv.URL+"/x")
		require.NoError(t, err)
	}

	// burst of 4, then one more every 250ms
	assert.GreaterOrEqual(t, time.Since(start), 450*time.Millisecond)
	assert.Equal(t, int64(6), hits.Load())
}

func TestFetch_RequestBudgetHonoursCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, nil, WithRequestBudget(0, 1))
	_, err := c.Fetch(context.Background(), srv.URL+"/x")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Fetch(ctx, srv.URL+"/x")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFetch_RetriesAfter429(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0.01")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"payload":true}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, NewGate(1))

	start := time.Now()
	body, err := c.Fetch(context.Background(), srv.URL+"/limited")
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, `{"payload":true}`, string(body))
	assert.Equal(t, int32(2), calls.Load())
	assert.GreaterOrEqual(t, elapsed, 10*time.Millisecond)
}

func TestFetch_HardFailureNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"status":{"message":"Data not found"}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, nil)
	_, err := c.Fetch(context.Background(), srv.URL+"/missing")

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrHardFailure))
	assert.Equal(t, http.StatusNotFound, StatusCode(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetch_ForbiddenIsAPIKeyError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, nil)
	_, err := c.Fetch(context.Background(), srv.URL+"/forbidden")

	require.Error(t, err)
	assert.True(t, IsAPIKeyError(err))
	assert.Contains(t, err.Error(), "403")
}

// flakyTransport fails the first n round trips with a connection error
type flakyTransport struct {
	failures atomic.Int32
	n        int32
	next     http.RoundTripper
}

func (f *flakyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if f.failures.Add(1) <= f.n {
		return nil, errors.New("connection reset by peer")
	}
	return f.next.RoundTrip(req)
}

func TestFetch_RetriesTransportFault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`recovered`))
	}))
	defer srv.Close()

	rt := &flakyTransport{n: 2, next: http.DefaultTransport}
	c := newTestClient(t, srv, nil, WithHTTPClient(&http.Client{Transport: rt}))

	body, err := c.Fetch(context.Background(), srv.URL+"/flaky")
	require.NoError(t, err)
	assert.Equal(t, "recovered", string(body))
	assert.Equal(t, int32(3), rt.failures.Load())
}

func TestFetch_ContextEndsRetryLoop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "10")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	gate := NewGate(1)
	c := newTestClient(t, srv, gate)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Fetch(ctx, srv.URL+"/always-limited")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, 0, gate.InFlight())
}

func TestGetMatch_DecodesDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/lol/match/v5/matches/KR_1", r.URL.Path)
		w.Write([]byte(`{"metadata":{"matchId":"KR_1"},"info":{"queueId":420,"gameDuration":1800,"gameEndTimestamp":1}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, nil)
	m, err := c.GetMatch(context.Background(), "KR_1")
	require.NoError(t, err)
	assert.Equal(t, "KR_1", m.MatchID())
	assert.True(t, m.IsRankedSolo())
	assert.Equal(t, int64(1800), m.DurationSeconds())
}

func TestGetMatch_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, nil)
	_, err := c.GetMatch(context.Background(), "KR_1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedDocument))
}

func TestGetMatchIDs_Query(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/lol/match/v5/matches/by-puuid/abc/ids", r.URL.Path)
		assert.Equal(t, "0", r.URL.Query().Get("start"))
		assert.Equal(t, "20", r.URL.Query().Get("count"))
		w.Write([]byte(`["KR_1","KR_2"]`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, nil)
	ids, err := c.GetMatchIDs(context.Background(), "abc", 20)
	require.NoError(t, err)
	assert.Equal(t, []string{"KR_1", "KR_2"}, ids)
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		header string
		want   time.Duration
	}{
		{"", time.Second},
		{"2", 2 * time.Second},
		{"0.5", 500 * time.Millisecond},
		{"-1", time.Second},
		{"soon", time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseRetryAfter(tt.header, time.Second), "header %q", tt.header)
	}
}

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "****", MaskKey("short"))
	assert.Equal(t, "RGAPI-ab...wxyz", MaskKey("RGAPI-abcdefghijklmnopqrstuvwxyz"))
}
