package renew

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/loykin/renewd/internal/creds"
)

// HTTPRenewer talks to the ticket service's renewal endpoint. It is the
// production Renewer; the renewal protocol itself lives on the server side.
type HTTPRenewer struct {
	baseURL string
	client  *http.Client
}

// HTTPConfig holds ticket service client configuration.
type HTTPConfig struct {
	BaseURL string
	Timeout time.Duration
}

// NewHTTPRenewer creates a ticket service client. The renewal call is a
// bounded synchronous operation; Timeout defaults to 30 seconds.
func NewHTTPRenewer(cfg HTTPConfig) *HTTPRenewer {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &HTTPRenewer{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

type renewRequest struct {
	Principal  string           `json:"principal"`
	Credential creds.Credential `json:"credential"`
}

type renewResponse struct {
	Credential creds.Credential `json:"credential"`
}

type renewError struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

// Renew exchanges the current credential for a renewed one. A renewable
// window exhausted either locally or by the service maps to ErrNotRenewable;
// everything else is reported as-is for the engine to classify as transient.
func (r *HTTPRenewer) Renew(ctx context.Context, principal string, current creds.Credential) (creds.Credential, error) {
	if !current.RenewableUntil.After(time.Now()) {
		return creds.Credential{}, ErrNotRenewable
	}
	body, err := json.Marshal(renewRequest{Principal: principal, Credential: current})
	if err != nil {
		return creds.Credential{}, fmt.Errorf("encode renew request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/v1/renew", bytes.NewReader(body))
	if err != nil {
		return creds.Credential{}, fmt.Errorf("build renew request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return creds.Credential{}, fmt.Errorf("renewal request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		var re renewError
		if err := json.NewDecoder(resp.Body).Decode(&re); err == nil && re.Code == "not_renewable" {
			return creds.Credential{}, fmt.Errorf("%w: %s", ErrNotRenewable, re.Error)
		}
		if re.Error != "" {
			return creds.Credential{}, fmt.Errorf("ticket service returned %d: %s", resp.StatusCode, re.Error)
		}
		return creds.Credential{}, fmt.Errorf("ticket service returned %d", resp.StatusCode)
	}
	var rr renewResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return creds.Credential{}, fmt.Errorf("decode renew response: %w", err)
	}
	return rr.Credential, nil
}
