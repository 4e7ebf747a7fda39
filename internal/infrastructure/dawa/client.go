// Package dawa resolves Danish address identifiers to single-line labels.
package dawa

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"sdmox/internal/core/apperror"
	"sdmox/internal/domain/orgunit"
)

// Endpoints are tried in order; current addresses first, then history.
var Endpoints = []string{
	"adresser",
	"adgangsadresser",
	"historik/adresser",
	"historik/adgangsadresser",
}

// Config configures the client.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client implements orgunit.AddressLookup.
type Client struct {
	base string
	http *http.Client
}

var _ orgunit.AddressLookup = (*Client)(nil)

// New creates a DAWA client. httpClient may be nil.
func New(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{base: strings.TrimSuffix(cfg.BaseURL, "/") + "/", http: httpClient}
}

// Lookup returns the label of the first endpoint that knows addressID.
// A failing endpoint aborts the lookup; exhausting them all is NOT_FOUND.
func (c *Client) Lookup(ctx context.Context, addressID string) (string, error) {
	for _, endpoint := range Endpoints {
		label, err := c.query(ctx, endpoint, addressID)
		if err != nil {
			return "", apperror.NewAddressResolution(addressID, "lookup failed").WithCause(err)
		}
		if label != "" {
			return label, nil
		}
	}
	return "", apperror.NewNotFound("address", addressID)
}

func (c *Client) query(ctx context.Context, endpoint, addressID string) (string, error) {
	q := url.Values{"id": {addressID}, "noformat": {"1"}, "struktur": {"mini"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("GET %s: %s", endpoint, resp.Status)
	}

	var found []struct {
		Label string `json:"betegnelse"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&found); err != nil {
		return "", fmt.Errorf("decode %s: %w", endpoint, err)
	}
	if len(found) == 0 {
		return "", nil
	}
	return found[len(found)-1].Label, nil
}
