package collyfetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientGetStatuses(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var gotAgent, gotLang string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotAgent = r.UserAgent()
		gotLang = r.Header.Get("Accept-Language")
		mu.Unlock()
		switch r.URL.Path {
		case "/classic/item=1":
			_, _ = w.Write([]byte("<h1>Sword</h1>"))
		case "/classic/item=2":
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte("blocked"))
		default:
			w.WriteHeader(http.StatusGatewayTimeout)
			_, _ = w.Write([]byte("504 Gateway Timeout ERROR"))
		}
	}))
	t.Cleanup(srv.Close)

	client := New(Config{
		UserAgent: "gamedb-test",
		Timeout:   2 * time.Second,
		Headers:   http.Header{"Accept-Language": {"en-US"}},
	})
	ctx := context.Background()

	resp, err := client.Get(ctx, srv.URL+"/classic/item=1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "<h1>Sword</h1>", string(resp.Body))
	mu.Lock()
	assert.Equal(t, "gamedb-test", gotAgent)
	assert.Equal(t, "en-US", gotLang)
	mu.Unlock()

	resp, err = client.Get(ctx, srv.URL+"/classic/item=2")
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "blocked", string(resp.Body))

	// Revisiting the same URL is allowed.
	resp, err = client.Get(ctx, srv.URL+"/classic/item=2")
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, err = client.Get(ctx, srv.URL+"/classic/item=3")
	require.NoError(t, err)
	assert.Equal(t, http.StatusGatewayTimeout, resp.StatusCode)
	assert.Contains(t, string(resp.Body), "Gateway Timeout")
}

func TestClientGetTransportError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	_, err := New(Config{Timeout: time.Second}).Get(context.Background(), addr+"/classic/item=1")
	assert.Error(t, err)
}

func TestClientGetCanceled(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := New(Config{Timeout: 5 * time.Second}).Get(ctx, srv.URL)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	f := New(Config{Headers: http.Header{"X-Trace": {"yes"}}})
	var result Response
	var fetchErr error

	hooks := &stubHooks{}
	f.configureCollectorHooks(hooks, time.Unix(0, 0), &result, &fetchErr)
	require.NotNil(t, hooks.onRequest)
	require.NotNil(t, hooks.onResponse)
	require.NotNil(t, hooks.onError)

	collyReq := &colly.Request{Headers: &http.Header{}}
	hooks.onRequest(collyReq)
	assert.Equal(t, "yes", collyReq.Headers.Get("X-Trace"))

	hooks.onResponse(&colly.Response{
		StatusCode: http.StatusForbidden,
		Body:       []byte("body"),
		Request:    &colly.Request{URL: mustParseURL(t, "https://example.com/classic/item=9")},
	})
	assert.Equal(t, http.StatusForbidden, result.StatusCode)
	assert.Equal(t, "body", string(result.Body))
	assert.Equal(t, "https://example.com/classic/item=9", result.URL)

	hooks.onError(nil, errors.New("boom"))
	assert.EqualError(t, fetchErr, "boom")
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

type stubHooks struct {
	onRequest  colly.RequestCallback
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnRequest(cb colly.RequestCallback) {
	s.onRequest = cb
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) {
	s.onResponse = cb
}

func (s *stubHooks) OnError(cb colly.ErrorCallback) {
	s.onError = cb
}
