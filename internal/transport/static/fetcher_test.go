package static

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/law-makers/catalog/internal/transport"
)

func TestFetcher_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/en-gb":
			if r.Header.Get("X-Test") != "yes" {
				t.Errorf("expected extra header, got %q", r.Header.Get("X-Test"))
			}
			if r.Header.Get("User-Agent") != "CatalogTest/1.0" {
				t.Errorf("unexpected user agent %q", r.Header.Get("User-Agent"))
			}
			w.Write([]byte(`<html><head><title>World of Books</title></head><body><h1>Hello</h1></body></html>`))
		case "/moved":
			http.Redirect(w, r, "/en-gb", http.StatusFound)
		case "/gone":
			http.NotFound(w, r)
		case "/forbidden":
			w.WriteHeader(http.StatusForbidden)
		case "/challenge":
			w.Write([]byte(`<html><head><title>Just a moment...</title></head><body></body></html>`))
		case "/broken":
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer server.Close()

	f := New(Options{
		Timeout:   5 * time.Second,
		UserAgent: "CatalogTest/1.0",
		Headers:   map[string]string{"X-Test": "yes"},
	})

	t.Run("ok", func(t *testing.T) {
		page, err := f.Fetch(context.Background(), server.URL+"/en-gb", transport.RouteHome)
		if err != nil {
			t.Fatalf("Fetch failed: %v", err)
		}
		if page.StatusCode != http.StatusOK {
			t.Errorf("Expected status code 200, got %d", page.StatusCode)
		}
		if page.Route != transport.RouteHome {
			t.Errorf("Expected route home, got %s", page.Route)
		}
		if page.FinalURL != server.URL+"/en-gb" {
			t.Errorf("unexpected final URL %s", page.FinalURL)
		}
	})

	t.Run("redirect", func(t *testing.T) {
		page, err := f.Fetch(context.Background(), server.URL+"/moved", transport.RouteHome)
		if err != nil {
			t.Fatalf("Fetch failed: %v", err)
		}
		if page.FinalURL != server.URL+"/en-gb" {
			t.Errorf("Expected redirect to be followed, final URL %s", page.FinalURL)
		}
	})

	errorCases := []struct {
		path string
		want error
	}{
		{"/gone", transport.ErrNotFound},
		{"/forbidden", transport.ErrBlocked},
		{"/challenge", transport.ErrBlocked},
		{"/broken", transport.ErrTransient},
	}
	for _, tc := range errorCases {
		t.Run(tc.path, func(t *testing.T) {
			_, err := f.Fetch(context.Background(), server.URL+tc.path, transport.RouteProduct)
			if !errors.Is(err, tc.want) {
				t.Errorf("Expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestFetcher_Cancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := New(Options{}).Fetch(ctx, server.URL, transport.RouteHome)
	if !errors.Is(err, transport.ErrTimeout) {
		t.Errorf("Expected timeout, got %v", err)
	}
}
