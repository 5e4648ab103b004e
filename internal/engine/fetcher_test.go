package engine_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tartampluch/go-enroll/internal/config"
	"github.com/tartampluch/go-enroll/internal/engine"
)

// TestHTTPFetcher_Fetch_Success verifies a complete successful download flow.
// It checks correct headers (User-Agent, Basic Auth) and response body integrity.
func TestHTTPFetcher_Fetch_Success(t *testing.T) {
	expectedUser := "testuser"
	expectedPass := "securepass"
	expectedBody := "BEGIN:VCARD\nVERSION:3.0\nFN:Test\nEND:VCARD"

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok, "Basic auth header should be present")
		assert.Equal(t, expectedUser, user)
		assert.Equal(t, expectedPass, pass)
		assert.Equal(t, config.UserAgent, r.Header.Get("User-Agent"))

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(expectedBody))
	}))
	defer ts.Close()

	// The test server listens on loopback, which the default client refuses.
	fetcher := &engine.HTTPFetcher{Client: ts.Client()}
	rc, err := fetcher.Fetch(context.Background(), ts.URL, expectedUser, expectedPass)
	require.NoError(t, err)
	defer func() { _ = rc.Close() }()

	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, expectedBody, string(body))
}

// TestHTTPFetcher_Fetch_Errors verifies proper error handling for non-200 statuses.
func TestHTTPFetcher_Fetch_Errors(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		wantErr    string
	}{
		{"Not Found", http.StatusNotFound, "404"},
		{"Unauthorized", http.StatusUnauthorized, "401"},
		{"Server Error", http.StatusInternalServerError, "500"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.statusCode)
			}))
			defer ts.Close()

			fetcher := &engine.HTTPFetcher{Client: ts.Client()}
			rc, err := fetcher.Fetch(context.Background(), ts.URL, "", "")
			assert.Nil(t, rc)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestHTTPFetcher_Fetch_InvalidURL(t *testing.T) {
	fetcher := engine.NewHTTPFetcher()

	_, err := fetcher.Fetch(context.Background(), "ftp://example.com/a.vcf", "", "")
	assert.ErrorContains(t, err, config.ErrProtocol)

	_, err = fetcher.Fetch(context.Background(), "http://[::1", "", "")
	assert.ErrorContains(t, err, config.ErrInvalidURL)
}

// TestHTTPFetcher_RefusesLoopback checks the SSRF guard of the default client.
func TestHTTPFetcher_RefusesLoopback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("request must not reach a loopback server")
	}))
	defer ts.Close()

	_, err := engine.NewHTTPFetcher().Fetch(context.Background(), ts.URL, "", "")
	assert.Error(t, err)
}

func TestHTTPFetcher_LimitsBody(t *testing.T) {
	big := strings.Repeat("x", config.MaxHTTPResponseSize+1024)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(big))
	}))
	defer ts.Close()

	rc, err := (&engine.HTTPFetcher{Client: ts.Client()}).Fetch(context.Background(), ts.URL, "", "")
	require.NoError(t, err)
	defer func() { _ = rc.Close() }()

	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Len(t, body, config.MaxHTTPResponseSize)
}

func TestHTTPFetcher_StatusError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("Accept"), "text/vcard")
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ts.Close()

	_, err := (&engine.HTTPFetcher{Client: ts.Client()}).Fetch(context.Background(), ts.URL+"/?token=abc", "u", "wrong")

	var statusErr *engine.FetchStatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusUnauthorized, statusErr.Code)
	assert.True(t, statusErr.Unauthorized())
	assert.NotContains(t, err.Error(), "abc")
}

func TestHTTPFetcher_RequiresHost(t *testing.T) {
	_, err := engine.NewHTTPFetcher().Fetch(context.Background(), "https:///contacts.vcf", "", "")
	assert.ErrorContains(t, err, config.ErrInvalidURL)
}
