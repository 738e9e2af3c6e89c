package acquire

import (
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianbeese/mietcheck/internal/antidetect"
	"github.com/julianbeese/mietcheck/internal/domain"
)

func TestHTTPFetcher_Fetch(t *testing.T) {
	var gotUA, gotLang string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotLang = r.Header.Get("Accept-Language")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><head><title>Expose</title><style>.x{}</style></head>
<body><h1>Altbau</h1><script>var rent = 1;</script><p>Kaltmiete:<b>650 €</b></p></body></html>`))
	}))
	defer server.Close()

	f := NewHTTPFetcher(0, nil, antidetect.NewUserAgentRotator([]string{"test-agent"}), nil)
	page, err := f.Fetch(context.Background(), server.URL)
	require.NoError(t, err)

	assert.Equal(t, "test-agent", gotUA)
	assert.Equal(t, "de-DE,de;q=0.9", gotLang)
	assert.Equal(t, domain.StrategyHTTP, page.Strategy)
	assert.Equal(t, "Expose Altbau Kaltmiete: 650 €", page.Text)
	assert.Contains(t, page.HTML, "<h1>Altbau</h1>")
}

func TestHTTPFetcher_GzipBody(t *testing.T) {
	var gotEncoding string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotEncoding = r.Header.Get("Accept-Encoding")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		gz.Write([]byte(`<html><body><p>Kaltmiete: 720 €</p></body></html>`))
		gz.Close()
	}))
	defer server.Close()

	f := NewHTTPFetcher(0, nil, antidetect.NewUserAgentRotator([]string{"test-agent"}), nil)
	page, err := f.Fetch(context.Background(), server.URL)
	require.NoError(t, err)

	assert.Equal(t, "gzip", gotEncoding)
	assert.Equal(t, "Kaltmiete: 720 €", page.Text)
}

func TestHTTPFetcher_StatusErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		target error
	}{
		{"not found", http.StatusNotFound, domain.ErrNotFound},
		{"forbidden", http.StatusForbidden, nil},
		{"rate limited", http.StatusTooManyRequests, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			f := NewHTTPFetcher(0, nil, nil, nil)
			_, err := f.Fetch(context.Background(), server.URL)
			require.Error(t, err)
			if tt.target != nil {
				assert.ErrorIs(t, err, tt.target)
			}
		})
	}
}

func TestHTTPFetcher_InvalidURL(t *testing.T) {
	f := NewHTTPFetcher(0, nil, nil, nil)
	_, err := f.Fetch(context.Background(), "not a url")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestHTMLToText_SeparatesAdjacentNodes(t *testing.T) {
	text, err := HTMLToText(`<table><tr><td>Zimmer</td><td>3</td></tr></table><noscript>enable js</noscript>`)
	require.NoError(t, err)
	assert.Equal(t, "Zimmer 3", text)
}
