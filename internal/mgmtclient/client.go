// Package mgmtclient is the default management-protocol client: spec.md §1
// names this an external collaborator ("the management-protocol client that
// actually performs a query against a remote server") and leaves its wire
// protocol unspecified. This implementation speaks a minimal JSON-over-HTTP
// convention — GET http(s)://host:port/mbeans/<objectName> returning
// {"attributes": {"<name>": <value>, ...}} — so the engine has a concrete,
// swappable default. Any type satisfying job.Client can replace it.
package mgmtclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"jmxpoller/internal/model"
)

type response struct {
	Attributes map[string]any `json:"attributes"`
}

// Client fetches managed-bean attributes over HTTP.
type Client struct {
	httpClient *http.Client
	scheme     string
}

func New() *Client {
	return &Client{httpClient: &http.Client{Timeout: 30 * time.Second}, scheme: "http"}
}

// WithScheme overrides the URL scheme (e.g. "https" for TLS-fronted
// management endpoints).
func (c *Client) WithScheme(scheme string) *Client {
	c.scheme = scheme
	return c
}

// Fetch satisfies job.Client.
func (c *Client) Fetch(ctx context.Context, server *model.Server, query *model.Query) ([]model.Result, error) {
	u := url.URL{
		Scheme: c.scheme,
		Host:   fmt.Sprintf("%s:%d", server.Host, server.Port),
		Path:   "/mbeans/" + url.PathEscape(query.ObjectName),
	}
	if len(query.Attributes) > 0 {
		q := url.Values{}
		for _, a := range query.Attributes {
			q.Add("attr", a)
		}
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("mgmtclient: build request: %w", err)
	}
	if server.Username != "" {
		req.SetBasicAuth(server.Username, server.Password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mgmtclient: %s: %w", server.Key(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("mgmtclient: %s: unexpected status %d", server.Key(), resp.StatusCode)
	}

	var body response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("mgmtclient: %s: decode response: %w", server.Key(), err)
	}

	results := make([]model.Result, 0, len(body.Attributes))
	for attr, val := range body.Attributes {
		if !wanted(query.Attributes, attr) {
			continue
		}
		results = append(results, model.Result{
			ObjectName: query.ObjectName,
			Attribute:  attr,
			Value:      val,
			KeyTags:    query.KeyTags,
		})
	}
	return results, nil
}

func wanted(attrs []string, name string) bool {
	if len(attrs) == 0 {
		return true
	}
	for _, a := range attrs {
		if a == name {
			return true
		}
	}
	return false
}
