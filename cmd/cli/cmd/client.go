package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"jobtrack/pkg/api"
)

// TrackClient handles API calls to the jobtrack server.
type TrackClient struct {
	BaseURL    string
	Token      string
	ActorID    string
	HTTPClient *http.Client
}

// NewTrackClient creates a new client with the given base URL and credentials.
func NewTrackClient(baseURL, token, actorID string) *TrackClient {
	return &TrackClient{
		BaseURL: baseURL,
		Token:   token,
		ActorID: actorID,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError represents an error response from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

func (c *TrackClient) do(method, path string, reqBody, out interface{}) error {
	var body io.Reader
	if reqBody != nil {
		bodyBytes, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(bodyBytes)
	}

	httpReq, err := http.NewRequest(method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Add("Authorization", fmt.Sprintf("Bearer %s", c.Token))
	httpReq.Header.Add("Content-Type", "application/json")
	if c.ActorID != "" {
		httpReq.Header.Add("X-Actor-ID", c.ActorID)
	}

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}

// CreateTenant sends POST /tenants to provision a tenant.
func (c *TrackClient) CreateTenant(req api.CreateTenantRequest) (*api.CreateTenantResponse, error) {
	var result api.CreateTenantResponse
	if err := c.do(http.MethodPost, "/tenants", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Transition sends POST /jobs/{id}/transitions to move a job.
func (c *TrackClient) Transition(jobID string, req api.TransitionRequest) (*api.TransitionResponse, error) {
	var result api.TransitionResponse
	if err := c.do(http.MethodPost, fmt.Sprintf("/jobs/%s/transitions", jobID), req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListStages sends GET /stages to list the tenant's workflow stages.
func (c *TrackClient) ListStages(entityType string) ([]api.StageResponse, error) {
	var result []api.StageResponse
	if err := c.do(http.MethodGet, fmt.Sprintf("/stages?entity_type=%s", entityType), nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// History sends GET /jobs/{id}/history for one page of audit records.
func (c *TrackClient) History(jobID string, afterID int64, limit int) (*api.HistoryResponse, error) {
	var result api.HistoryResponse
	path := fmt.Sprintf("/jobs/%s/history?after=%d&limit=%d", jobID, afterID, limit)
	if err := c.do(http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Backfill sends POST /audit/backfill to write synthetic creation records.
func (c *TrackClient) Backfill() (*api.BackfillResponse, error) {
	var result api.BackfillResponse
	if err := c.do(http.MethodPost, "/audit/backfill", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
