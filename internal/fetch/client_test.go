package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/harvester/internal/core/domain"
)

// fastOptions keeps retry schedules short enough for unit tests.
func fastOptions() Options {
	return Options{
		Rate:            1000,
		MinDelay:        time.Millisecond,
		MaxDelay:        2 * time.Millisecond,
		BlockedDelay:    time.Millisecond,
		NetworkDelay:    time.Millisecond,
		BlockedAttempts: 3,
		NetworkAttempts: 3,
	}
}

func TestFetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		assert.Contains(t, r.Header.Get("Accept"), "text/html")
		w.Write([]byte("<html>listing page</html>"))
	}))
	defer srv.Close()

	body, finalURL, err := New(fastOptions()).Fetch(context.Background(), srv.URL+"/page/1")
	require.NoError(t, err)
	assert.Equal(t, "<html>listing page</html>", body)
	assert.Equal(t, srv.URL+"/page/1", finalURL)
}

func TestFetchFollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("moved"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	body, finalURL, err := New(fastOptions()).Fetch(context.Background(), srv.URL+"/old")
	require.NoError(t, err)
	assert.Equal(t, "moved", body)
	assert.Equal(t, srv.URL+"/new", finalURL, "caller needs the post-redirect URL")
}

func TestFetchChallengeBodyExhaustsRetries(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`<html><div class="g-recaptcha"></div></html>`))
	}))
	defer srv.Close()

	_, _, err := New(fastOptions()).Fetch(context.Background(), srv.URL)
	require.Error(t, err)

	var blocked *domain.BlockedError
	require.ErrorAs(t, err, &blocked)
	assert.Equal(t, "g-recaptcha", blocked.Marker)
	assert.Equal(t, http.StatusOK, blocked.StatusCode)
	assert.Equal(t, int32(3), hits.Load())
}

func TestFetchJSONBodyWithMarkerPhrase(t *testing.T) {
	// Portal download endpoints return JSON whose free-text fields can
	// contain a challenge phrase. That is data, not a block.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"rows":[{"id":"T-1","note":"tenant access denied by landlord"}]}`))
	}))
	defer srv.Close()

	body, _, err := New(fastOptions()).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Contains(t, body, "access denied by landlord")
}

func TestFetchChallengeStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, _, err := New(fastOptions()).Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, domain.IsBlocked(err))
}

func TestFetchRecoversAfterChallenge(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("real content"))
	}))
	defer srv.Close()

	body, _, err := New(fastOptions()).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "real content", body)
}

func TestFetchNetworkErrorExhaustsRetries(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, _, err := New(fastOptions()).Fetch(context.Background(), srv.URL)
	require.Error(t, err)

	var netErr *domain.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, 3, netErr.Attempts)
	assert.Equal(t, int32(3), hits.Load())
}

func TestFetchContextCancelledDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	opts := fastOptions()
	opts.BlockedDelay = time.Minute
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, _, err := New(opts).Fetch(ctx, srv.URL)
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("fetch did not abort on cancellation")
	}
}

func TestPoliteness(t *testing.T) {
	c := New(fastOptions())
	start := time.Now()
	require.NoError(t, c.Politeness(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), time.Millisecond)
}

func TestDetectChallenge(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		contentType string
		body        string
		blocked     bool
	}{
		{"clean page", 200, "text/html; charset=utf-8", "<html>ok</html>", false},
		{"recaptcha widget", 200, "text/html", `<div class="G-ReCaptcha">`, true},
		{"forbidden", 403, "text/html", "", true},
		{"too many requests", 429, "", "", true},
		{"unavailable", 503, "", "", true},
		{"access denied text", 200, "text/html; charset=utf-8", "<h1>Access Denied</h1>", true},
		{"marker inside json data", 200, "application/json", `{"note":"access denied by landlord"}`, false},
		{"marker without content type", 200, "", "are you a human?", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, blocked := detectChallenge(tt.status, tt.contentType, tt.body)
			assert.Equal(t, tt.blocked, blocked)
		})
	}
}
