// Package directory reads organisation units, addresses and classes from
// the OS2MO REST service.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"sdmox/internal/core/apperror"
	"sdmox/internal/domain/orgunit"
)

const target = "directory"

// Config configures the client.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client implements orgunit.DirectoryReader and orgunit.ClassReader.
type Client struct {
	base  *url.URL
	token string
	http  *http.Client
}

var (
	_ orgunit.DirectoryReader = (*Client)(nil)
	_ orgunit.ClassReader     = (*Client)(nil)
)

// New creates a directory client. httpClient may be nil.
func New(cfg Config, httpClient *http.Client) (*Client, error) {
	base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("directory base url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{base: base, token: cfg.Token, http: httpClient}, nil
}

type classJSON struct {
	UUID    string `json:"uuid"`
	UserKey string `json:"user_key"`
	Name    string `json:"name"`
}

type unitJSON struct {
	UUID         string     `json:"uuid"`
	Name         string     `json:"name"`
	UserKey      string     `json:"user_key"`
	OrgUnitLevel *classJSON `json:"org_unit_level"`
	Parent       *classJSON `json:"parent"`
}

type addressJSON struct {
	Value       string `json:"value"`
	AddressType struct {
		Scope   string `json:"scope"`
		UserKey string `json:"user_key"`
	} `json:"address_type"`
}

// ReadUnit fetches a unit as of at.
func (c *Client) ReadUnit(ctx context.Context, unitUUID string, at time.Time) (*orgunit.Unit, error) {
	var u unitJSON
	path := "service/ou/" + unitUUID + "/"
	if err := c.get(ctx, path, atQuery(at), &u, "organisation unit", unitUUID); err != nil {
		return nil, err
	}

	unit := &orgunit.Unit{UUID: u.UUID, Name: u.Name, UserKey: u.UserKey}
	if u.OrgUnitLevel != nil {
		unit.Level = orgunit.ClassRef(*u.OrgUnitLevel)
	}
	if u.Parent != nil {
		parent := orgunit.ClassRef(*u.Parent)
		unit.Parent = &parent
	}
	return unit, nil
}

// ReadUnitAddresses fetches every address of a unit as of at, in directory order.
func (c *Client) ReadUnitAddresses(ctx context.Context, unitUUID string, at time.Time) ([]orgunit.AddressRecord, error) {
	var raw []addressJSON
	path := "service/ou/" + unitUUID + "/details/address"
	if err := c.get(ctx, path, atQuery(at), &raw, "organisation unit", unitUUID); err != nil {
		return nil, err
	}
	return toRecords(raw), nil
}

// toRecords flattens directory address JSON into address records.
func toRecords(raw []addressJSON) []orgunit.AddressRecord {
	out := make([]orgunit.AddressRecord, 0, len(raw))
	for _, a := range raw {
		out = append(out, orgunit.AddressRecord{
			Scope:     orgunit.Scope(a.AddressType.Scope),
			SourceKey: a.AddressType.UserKey,
			Value:     a.Value,
		})
	}
	return out
}

// ReadFacetClasses maps class user keys to uuids for the first organisation's facet.
func (c *Client) ReadFacetClasses(ctx context.Context, facet string) (map[string]string, error) {
	var orgs []struct {
		UUID string `json:"uuid"`
	}
	if err := c.get(ctx, "service/o/", nil, &orgs, "organisation", ""); err != nil {
		return nil, err
	}
	if len(orgs) == 0 {
		return nil, apperror.NewNotFound("organisation", "")
	}

	var resp struct {
		Data struct {
			Items []classJSON `json:"items"`
		} `json:"data"`
	}
	path := "service/o/" + orgs[0].UUID + "/f/" + facet + "/"
	if err := c.get(ctx, path, nil, &resp, "facet", facet); err != nil {
		return nil, err
	}

	classes := make(map[string]string, len(resp.Data.Items))
	for _, item := range resp.Data.Items {
		classes[item.UserKey] = item.UUID
	}
	return classes, nil
}

func atQuery(at time.Time) url.Values {
	return url.Values{"at": {at.Format("2006-01-02")}}
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any, entity, id string) error {
	u := c.base.ResolveReference(&url.URL{Path: path, RawQuery: query.Encode()})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return apperror.NewInternal(err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apperror.NewTransport(target, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return apperror.NewNotFound(entity, id)
	case resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return apperror.NewTransport(target, fmt.Errorf("GET %s: %s: %s", path, resp.Status, body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperror.NewTransport(target, fmt.Errorf("decode %s: %w", path, err))
	}
	return nil
}
