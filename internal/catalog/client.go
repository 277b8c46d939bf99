// Package catalog is a thin HTTP client for the remote routine and
// exercise catalog. The catalog is plain CRUD over a managed backend;
// nothing here touches local storage.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Routine is a reusable workout template from the catalog.
type Routine struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Exercises   []Exercise `json:"exercises"`
}

// Exercise is a catalog exercise definition. Session records snapshot
// its name at save time rather than referencing it live.
type Exercise struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MuscleGroup string `json:"muscleGroup,omitempty"`
	Equipment   string `json:"equipment,omitempty"`
	TargetSets  int    `json:"targetSets,omitempty"`
	TargetReps  string `json:"targetReps,omitempty"`
}

// Client talks to the catalog service over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a catalog client for baseURL. The API key is sent as
// X-API-Key on every request.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// RoutineByID fetches one routine. An unknown id returns (nil, nil).
func (c *Client) RoutineByID(ctx context.Context, id string) (*Routine, error) {
	var routine Routine
	found, err := c.do(ctx, http.MethodGet, "/api/v1/routines/"+id, nil, &routine)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &routine, nil
}

// Routines lists every routine in the catalog.
func (c *Client) Routines(ctx context.Context) ([]Routine, error) {
	var routines []Routine
	if _, err := c.do(ctx, http.MethodGet, "/api/v1/routines", nil, &routines); err != nil {
		return nil, err
	}
	return routines, nil
}

// CreateRoutine stores a new routine and returns it with the id the
// catalog assigned.
func (c *Client) CreateRoutine(ctx context.Context, routine *Routine) (*Routine, error) {
	var created Routine
	if _, err := c.do(ctx, http.MethodPost, "/api/v1/routines", routine, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateRoutine replaces an existing routine.
func (c *Client) UpdateRoutine(ctx context.Context, routine *Routine) error {
	found, err := c.do(ctx, http.MethodPut, "/api/v1/routines/"+routine.ID, routine, nil)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("routine %s not found", routine.ID)
	}
	return nil
}

// DeleteRoutine removes a routine. Deleting an unknown id is not an
// error, matching the store's delete semantics.
func (c *Client) DeleteRoutine(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, "/api/v1/routines/"+id, nil, nil)
	return err
}

// do performs one request. Returns found=false on 404; decodes the body
// into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) (found bool, err error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return false, fmt.Errorf("marshaling request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return false, fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("calling catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(resp.Body)
		return false, fmt.Errorf("catalog request failed (status %d): %s", resp.StatusCode, data)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return false, fmt.Errorf("decoding catalog response: %w", err)
		}
	}
	return true, nil
}
