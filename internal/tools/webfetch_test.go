package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fetchPage = `<html><head><title>T</title><style>body{}</style></head>
<body><script>var x=1;</script><h1>Heading</h1><p>Some <b>bold</b> text.</p></body></html>`

func fetchServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, fetchPage)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func fetch(t *testing.T, url, format string) *WebFetchOutput {
	t.Helper()
	tool := NewWebFetch(nil)
	args, err := json.Marshal(WebFetchInput{URL: url, Format: format})
	require.NoError(t, err)

	result, err := tool.Execute(context.Background(), args)
	require.NoError(t, err)
	out, ok := result.(*WebFetchOutput)
	require.True(t, ok)
	return out
}

func TestWebFetchText(t *testing.T) {
	srv := fetchServer(t)

	out := fetch(t, srv.URL, "text")
	assert.Contains(t, out.Content, "Heading")
	assert.Contains(t, out.Content, "bold")
	assert.NotContains(t, out.Content, "var x=1")
	assert.NotContains(t, out.Content, "<h1>")
}

func TestWebFetchMarkdown(t *testing.T) {
	srv := fetchServer(t)

	out := fetch(t, srv.URL, "markdown")
	assert.Contains(t, out.Content, "# Heading")
	assert.Contains(t, out.Content, "**bold**")
}

func TestWebFetchHTMLPassthrough(t *testing.T) {
	srv := fetchServer(t)

	out := fetch(t, srv.URL, "html")
	assert.Contains(t, out.Content, "<h1>Heading</h1>")
}

func TestWebFetchRejectsBadInput(t *testing.T) {
	tool := NewWebFetch(nil)

	_, err := tool.Execute(context.Background(), json.RawMessage(`{"url":"ftp://x","format":"text"}`))
	assert.Error(t, err)

	_, err = tool.Execute(context.Background(), json.RawMessage(`{"url":"https://example.com","format":"pdf"}`))
	assert.Error(t, err)
}

func TestWebFetchNon2xxFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	tool := NewWebFetch(nil)
	_, err := tool.Execute(context.Background(), json.RawMessage(`{"url":"`+srv.URL+`","format":"text"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "410")
}
