// Package registry reads departments back from the SD web service.
package registry

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"sdmox/internal/core/apperror"
	"sdmox/internal/domain/orgunit"
)

const (
	target = "registry"

	getDepartmentOp       = "GetDepartment20111201"
	getDepartmentParentOp = "GetDepartmentParent20190701"
)

// Config configures the client.
type Config struct {
	BaseURL     string
	Institution string
	Username    string
	Password    string
	Timeout     time.Duration
}

// Client implements orgunit.RegistryReader.
type Client struct {
	cfg  Config
	base string
	http *http.Client
}

var _ orgunit.RegistryReader = (*Client)(nil)

// New creates a registry client. httpClient may be nil.
func New(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{cfg: cfg, base: strings.TrimSuffix(cfg.BaseURL, "/") + "/", http: httpClient}
}

// GetDepartment looks a department up by uuid or code for the query's date range.
func (c *Client) GetDepartment(ctx context.Context, q orgunit.DepartmentQuery) (*orgunit.Department, error) {
	params := url.Values{
		"InstitutionIdentifier":         {c.cfg.Institution},
		"ActivationDate":                {orgunit.FormatRegistryDate(q.From)},
		"DeactivationDate":              {orgunit.FormatRegistryDate(q.To)},
		"ContactInformationIndicator":   {"true"},
		"DepartmentNameIndicator":       {"true"},
		"EmploymentDepartmentIndicator": {"false"},
		"PostalAddressIndicator":        {"true"},
		"ProductionUnitIndicator":       {"true"},
		"UUIDIndicator":                 {"true"},
	}
	if q.ByUUID {
		params.Set("DepartmentUUIDIdentifier", q.Identifier)
	} else {
		params.Set("DepartmentIdentifier", q.Identifier)
	}
	if q.Level != "" {
		params.Set("DepartmentLevelIdentifier", q.Level)
	}

	var resp getDepartmentResponse
	if err := c.call(ctx, getDepartmentOp, params, &resp); err != nil {
		return nil, err
	}
	switch len(resp.Departments) {
	case 0:
		return nil, nil
	case 1:
		return resp.Departments[0].toDomain(), nil
	default:
		return nil, apperror.NewNonUnique("department", q.Identifier, len(resp.Departments)).
			WithDetail("level", q.Level)
	}
}

// GetDepartmentParent returns the parent link effective at the given date.
func (c *Client) GetDepartmentParent(ctx context.Context, unitUUID string, at time.Time) (*orgunit.DepartmentParent, error) {
	params := url.Values{
		"EffectiveDate":            {orgunit.FormatRegistryDate(at)},
		"DepartmentUUIDIdentifier": {unitUUID},
	}
	var resp getDepartmentParentResponse
	if err := c.call(ctx, getDepartmentParentOp, params, &resp); err != nil {
		return nil, err
	}
	if resp.Parent == nil || resp.Parent.UUID == "" {
		return nil, nil
	}
	return &orgunit.DepartmentParent{UUID: resp.Parent.UUID}, nil
}

func (c *Client) call(ctx context.Context, op string, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+op+"?"+params.Encode(), nil)
	if err != nil {
		return apperror.NewInternal(err)
	}
	req.SetBasicAuth(c.cfg.Username, c.cfg.Password)

	resp, err := c.http.Do(req)
	if err != nil {
		return apperror.NewTransport(target, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperror.NewTransport(target, err)
	}
	if resp.StatusCode != http.StatusOK {
		return apperror.NewTransport(target, fmt.Errorf("%s: %s: %s", op, resp.Status, truncate(body, 512))).
			WithDetail("operation", op)
	}
	if err := xml.Unmarshal(body, out); err != nil {
		return apperror.NewTransport(target, fmt.Errorf("%s: decode: %w", op, err))
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}
