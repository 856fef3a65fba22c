package input

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// TestLoader_Stdin verifies stdin input is read and returned as string.
func TestLoader_Stdin(t *testing.T) {
	t.Parallel()

	l := NewLoader(http.DefaultClient, 1*time.Second)
	html, err := l.Load(context.Background(), Input{
		Stdin: bytes.NewBufferString("<table><tr><th>x</th></tr></table>"),
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if html != "<table><tr><th>x</th></tr></table>" {
		t.Fatalf("unexpected html: %q", html)
	}
}

// TestLoader_NilStdin verifies a missing stdin reads as empty input.
func TestLoader_NilStdin(t *testing.T) {
	t.Parallel()

	html, err := NewLoader(nil, time.Second).Load(context.Background(), Input{})
	if err != nil || html != "" {
		t.Fatalf("want empty html and nil error, got %q, %v", html, err)
	}
}

// TestLoader_URL_Non2xx verifies the error carries status code and a body
// snippet.
func TestLoader_URL_Non2xx(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)

	l := NewLoader(&http.Client{Timeout: 2 * time.Second}, 2*time.Second)
	_, err := l.Load(context.Background(), Input{URL: srv.URL})
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	msg := err.Error()
	if !strings.Contains(msg, "http status 403") || !strings.Contains(msg, "nope") {
		t.Fatalf("unexpected error: %v", err)
	}
}

// TestLoader_URL_DecodesCharset verifies a Latin-1 page declared in the
// Content-Type header is transcoded to UTF-8 and the User-Agent is sent.
func TestLoader_URL_DecodesCharset(t *testing.T) {
	t.Parallel()

	uaCh := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uaCh <- r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		// "Größe" in ISO-8859-1.
		_, _ = w.Write([]byte{'<', 'b', '>', 'G', 'r', 0xf6, 0xdf, 'e', '<', '/', 'b', '>'})
	}))
	t.Cleanup(srv.Close)

	html, err := NewLoader(srv.Client(), 2*time.Second).Load(context.Background(), Input{URL: srv.URL})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if html != "<b>Größe</b>" {
		t.Fatalf("unexpected html: %q", html)
	}
	if gotUA := <-uaCh; gotUA != DefaultUserAgent {
		t.Fatalf("User-Agent: want %q got %q", DefaultUserAgent, gotUA)
	}
}

// TestDecode_MetaCharset verifies the <meta charset> declaration is honored
// when no content type is known.
func TestDecode_MetaCharset(t *testing.T) {
	t.Parallel()

	raw := append([]byte(`<html><head><meta charset="windows-1252"></head><body>`), 0x80, '<', '/', 'b', 'o', 'd', 'y', '>')
	got, err := Decode(raw, "")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !strings.Contains(got, "€") {
		t.Fatalf("want euro sign in %q", got)
	}
}

// TestLoader_WithUserAgent verifies a configured User-Agent replaces the default.
func TestLoader_WithUserAgent(t *testing.T) {
	t.Parallel()

	uaCh := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uaCh <- r.Header.Get("User-Agent")
		_, _ = w.Write([]byte("<table></table>"))
	}))
	t.Cleanup(srv.Close)

	l := NewLoader(srv.Client(), 2*time.Second).WithUserAgent("prices-bot/2").WithUserAgent("")
	if _, err := l.Load(context.Background(), Input{URL: srv.URL}); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := <-uaCh; got != "prices-bot/2" {
		t.Fatalf("User-Agent=%q", got)
	}
}
