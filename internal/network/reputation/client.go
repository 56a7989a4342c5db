// Package reputation talks to the external geo/ISP/ASN collaborator. Lookups
// are best-effort: callers treat every failure as degraded data, never as a
// request failure.
package reputation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"termtrust/internal/network"
	"termtrust/pkg/platform/sentinel"
)

// Lookup resolves an IP to its network reputation.
type Lookup interface {
	Lookup(ctx context.Context, ip string) (network.Reputation, error)
}

// HTTPClient queries an ip-api style JSON endpoint. The short timeout is the
// only cancellation model; the resolver degrades on expiry.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type lookupResponse struct {
	Country string `json:"country"`
	City    string `json:"city"`
	ISP     string `json:"isp"`
	Org     string `json:"org"`
	ASN     string `json:"as"`
}

func (c *HTTPClient) Lookup(ctx context.Context, ip string) (network.Reputation, error) {
	if c.baseURL == "" || ip == "" {
		return network.Unknown(), sentinel.ErrUnavailable
	}

	endpoint := c.baseURL + "/" + url.PathEscape(ip)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return network.Unknown(), fmt.Errorf("build reputation request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return network.Unknown(), fmt.Errorf("reputation lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return network.Unknown(), fmt.Errorf("reputation lookup: unexpected status %d", resp.StatusCode)
	}

	var body lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return network.Unknown(), fmt.Errorf("decode reputation response: %w", err)
	}

	rep := network.Reputation{
		Country: body.Country,
		City:    body.City,
		ISP:     body.ISP,
		Org:     body.Org,
		ASN:     body.ASN,
	}
	if rep.Country == "" {
		rep.Country = "Unknown"
	}
	if rep.City == "" {
		rep.City = "Unknown"
	}
	return rep, nil
}
