package mgmtclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"jmxpoller/internal/model"
)

func TestFetchFiltersRequestedAttributes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/mbeans/java.lang:type=Memory" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(response{
			Attributes: map[string]any{
				"HeapMemoryUsage":    float64(123),
				"NonHeapMemoryUsage": float64(456),
			},
		})
	}))
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse test server URL: %v", err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatalf("parse test server port: %v", err)
	}

	c := New()
	server := &model.Server{Host: u.Hostname(), Port: port}
	query := &model.Query{ObjectName: "java.lang:type=Memory", Attributes: []string{"HeapMemoryUsage"}}

	results, err := c.Fetch(context.Background(), server, query)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1 (filtered to the requested attribute)", len(results))
	}
	if results[0].Attribute != "HeapMemoryUsage" {
		t.Fatalf("Attribute = %q, want HeapMemoryUsage", results[0].Attribute)
	}
	if results[0].ObjectName != "java.lang:type=Memory" {
		t.Fatalf("ObjectName = %q, want java.lang:type=Memory", results[0].ObjectName)
	}
}

func TestFetchReturnsErrorOnNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	u, _ := url.Parse(srv.URL)
	port, _ := strconv.Atoi(u.Port())

	c := New()
	server := &model.Server{Host: u.Hostname(), Port: port}
	query := &model.Query{ObjectName: "java.lang:type=Memory"}

	if _, err := c.Fetch(context.Background(), server, query); err == nil {
		t.Fatal("expected an error for a 500 response")
	}
}
