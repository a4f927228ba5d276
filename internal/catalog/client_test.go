package catalog

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/pauljones0/epic-free-games-bot/internal/models"
)

const twoElements = `{"data":{"Catalog":{"searchStore":{"elements":[{"title":"Alpha"},{"title":"Beta"}]}}}}`

func TestClient_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("locale") != "en-US" || q.Get("country") != "US" || q.Get("allowCountries") != "US" {
			t.Errorf("unexpected query %q", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, twoElements)
	}))
	defer server.Close()

	elements, err := New(server.URL, 5*time.Second).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(elements) != 2 {
		t.Fatalf("Expected 2 elements, got %d", len(elements))
	}
	if elements[0].Get("title").String() != "Alpha" || elements[1].Get("title").String() != "Beta" {
		t.Errorf("elements out of order: %v", elements)
	}
}

func TestClient_Fetch_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := New(server.URL, 5*time.Second).Fetch(context.Background())
	if !errors.Is(err, models.ErrUpstreamUnavailable) {
		t.Fatalf("Fetch() error = %v, want ErrUpstreamUnavailable", err)
	}
}

func TestClient_Fetch_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := New(url, time.Second).Fetch(context.Background())
	if !errors.Is(err, models.ErrUpstreamUnavailable) {
		t.Fatalf("Fetch() error = %v, want ErrUpstreamUnavailable", err)
	}
}

func TestClient_Fetch_MalformedIsEmpty(t *testing.T) {
	bodies := map[string]string{
		"not json":       `<html>oops</html>`,
		"missing path":   `{"data":{"Catalog":{}}}`,
		"not an array":   `{"data":{"Catalog":{"searchStore":{"elements":{"title":"x"}}}}}`,
		"null elements":  `{"data":{"Catalog":{"searchStore":{"elements":null}}}}`,
		"empty document": `{}`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, body)
			}))
			defer server.Close()

			elements, err := New(server.URL, 5*time.Second).Fetch(context.Background())
			if err != nil {
				t.Fatalf("Fetch() error = %v, want nil", err)
			}
			if elements == nil || len(elements) != 0 {
				t.Errorf("Expected empty non-nil list, got %v", elements)
			}
		})
	}
}

func TestClient_Fetch_CompressedBodies(t *testing.T) {
	var gz bytes.Buffer
	gw := gzip.NewWriter(&gz)
	gw.Write([]byte(twoElements))
	gw.Close()

	var br bytes.Buffer
	bw := brotli.NewWriter(&br)
	bw.Write([]byte(twoElements))
	bw.Close()

	tests := []struct {
		encoding string
		body     []byte
	}{
		{"gzip", gz.Bytes()},
		{"br", br.Bytes()},
	}

	for _, tt := range tests {
		t.Run(tt.encoding, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Encoding", tt.encoding)
				w.Write(tt.body)
			}))
			defer server.Close()

			elements, err := New(server.URL, 5*time.Second).Fetch(context.Background())
			if err != nil {
				t.Fatalf("Fetch() error = %v", err)
			}
			if len(elements) != 2 {
				t.Errorf("Expected 2 elements, got %d", len(elements))
			}
		})
	}
}

func TestParseElements(t *testing.T) {
	if _, err := parseElements([]byte(`{"data":1}`)); !errors.Is(err, models.ErrMalformedResponse) {
		t.Errorf("parseElements() error = %v, want ErrMalformedResponse", err)
	}
	got, err := parseElements([]byte(`{"data":{"Catalog":{"searchStore":{"elements":[]}}}}`))
	if err != nil {
		t.Fatalf("parseElements() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Expected 0 elements, got %d", len(got))
	}
}
