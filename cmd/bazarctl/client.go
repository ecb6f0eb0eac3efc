package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// BazarClient talks to the bazar HTTP API.
type BazarClient struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

func NewBazarClient(baseURL, token string) *BazarClient {
	return &BazarClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// do sends a request with an optional JSON body and decodes the JSON
// response into a generic map.
func (c *BazarClient) do(method, path string, query url.Values, body any) (map[string]any, error) {
	full := c.BaseURL + path
	if len(query) > 0 {
		full += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, full, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp ErrorResponse
		if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error != "" {
			return nil, fmt.Errorf("server error: %s - %s", errResp.Error, errResp.Message)
		}
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	result := map[string]any{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &result); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return result, nil
}

func (c *BazarClient) RegisterUser(username, userType, email string) (map[string]any, error) {
	payload := map[string]any{"username": username}
	if userType != "" {
		payload["type"] = userType
	}
	if email != "" {
		payload["email"] = email
	}
	return c.do(http.MethodPost, "/users", nil, payload)
}

func (c *BazarClient) GetUser(id string) (map[string]any, error) {
	return c.do(http.MethodGet, "/users/"+id, nil, nil)
}

func (c *BazarClient) UserStats(id string) (map[string]any, error) {
	return c.do(http.MethodGet, "/users/"+id+"/stats", nil, nil)
}

func (c *BazarClient) SuspendUser(id, reason string) (map[string]any, error) {
	return c.do(http.MethodPost, "/users/"+id+"/suspend", nil, map[string]any{"reason": reason})
}

func (c *BazarClient) ActivateUser(id string) (map[string]any, error) {
	return c.do(http.MethodPost, "/users/"+id+"/activate", nil, nil)
}

func (c *BazarClient) DeleteUser(id string) (map[string]any, error) {
	return c.do(http.MethodDelete, "/users/"+id, nil, nil)
}

func (c *BazarClient) CreateListing(payload map[string]any) (map[string]any, error) {
	return c.do(http.MethodPost, "/listings", nil, payload)
}

func (c *BazarClient) GetListing(id string) (map[string]any, error) {
	return c.do(http.MethodGet, "/listings/"+id, nil, nil)
}

func (c *BazarClient) DeleteListing(id, actorID string) (map[string]any, error) {
	query := url.Values{}
	if actorID != "" {
		query.Set("actor_id", actorID)
	}
	return c.do(http.MethodDelete, "/listings/"+id, query, nil)
}

func (c *BazarClient) SearchListings(query url.Values) (map[string]any, error) {
	return c.do(http.MethodGet, "/listings", query, nil)
}

func (c *BazarClient) NearbyListings(query url.Values) (map[string]any, error) {
	return c.do(http.MethodGet, "/listings/nearby", query, nil)
}

func (c *BazarClient) CreateOrder(payload map[string]any) (map[string]any, error) {
	return c.do(http.MethodPost, "/orders", nil, payload)
}

func (c *BazarClient) GetOrder(id string) (map[string]any, error) {
	return c.do(http.MethodGet, "/orders/"+id, nil, nil)
}

func (c *BazarClient) UpdateOrderStatus(id, actorID, status, notes string) (map[string]any, error) {
	query := url.Values{}
	if actorID != "" {
		query.Set("actor_id", actorID)
	}
	return c.do(http.MethodPut, "/orders/"+id+"/status", query, map[string]any{
		"status": status,
		"notes":  notes,
	})
}

func (c *BazarClient) CancelOrder(id, actorID, reason string) (map[string]any, error) {
	query := url.Values{}
	if actorID != "" {
		query.Set("actor_id", actorID)
	}
	return c.do(http.MethodPost, "/orders/"+id+"/cancel", query, map[string]any{"reason": reason})
}

func (c *BazarClient) ListOrders(query url.Values) (map[string]any, error) {
	return c.do(http.MethodGet, "/orders", query, nil)
}

// printJSON renders an API response with indentation.
func printJSON(cli *CLI, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		cli.ExitError("Error rendering response: %v\n", err)
		return
	}
	cli.Println(string(data))
}
