package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"fleetwatch/internal/models"
)

// APIClient talks to the engine's HTTP API.
type APIClient struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string) *APIClient {
	return &APIClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *APIClient) doRequest(method, path string, body interface{}) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}

// AlertFilters narrow the alert listing, mirroring the API query params.
type AlertFilters struct {
	Status   string
	Severity string
	Location string
	Device   string
	Search   string
}

func (f AlertFilters) query() string {
	v := url.Values{}
	if f.Status != "" {
		v.Set("status", f.Status)
	}
	if f.Severity != "" {
		v.Set("severity", f.Severity)
	}
	if f.Location != "" {
		v.Set("location", f.Location)
	}
	if f.Device != "" {
		v.Set("device", f.Device)
	}
	if f.Search != "" {
		v.Set("search", f.Search)
	}
	if len(v) == 0 {
		return ""
	}
	return "?" + v.Encode()
}

func (c *APIClient) ListAlerts(f AlertFilters) ([]models.AlertInstance, error) {
	resp, err := c.doRequest("GET", "/api/v1/alerts"+f.query(), nil)
	if err != nil {
		return nil, err
	}
	var instances []models.AlertInstance
	if err := json.Unmarshal(resp, &instances); err != nil {
		return nil, err
	}
	return instances, nil
}

func (c *APIClient) AcknowledgeAlert(id, by string) error {
	_, err := c.doRequest("PUT", "/api/v1/alerts/"+id+"/acknowledge", map[string]string{"by": by})
	return err
}

func (c *APIClient) ResolveAlert(id string) error {
	_, err := c.doRequest("PUT", "/api/v1/alerts/"+id+"/resolve", nil)
	return err
}

func (c *APIClient) SuppressAlert(id string) error {
	_, err := c.doRequest("PUT", "/api/v1/alerts/"+id+"/suppress", nil)
	return err
}

func (c *APIClient) ExportAlerts(f AlertFilters) ([]byte, error) {
	return c.doRequest("GET", "/api/v1/alerts/export"+f.query(), nil)
}

func (c *APIClient) ListRules(enabled *bool) ([]models.AlertRule, error) {
	path := "/api/v1/rules"
	if enabled != nil {
		path += fmt.Sprintf("?enabled=%t", *enabled)
	}
	resp, err := c.doRequest("GET", path, nil)
	if err != nil {
		return nil, err
	}
	var rules []models.AlertRule
	if err := json.Unmarshal(resp, &rules); err != nil {
		return nil, err
	}
	return rules, nil
}

func (c *APIClient) GetRule(id string) (*models.AlertRule, error) {
	resp, err := c.doRequest("GET", "/api/v1/rules/"+id, nil)
	if err != nil {
		return nil, err
	}
	var rule models.AlertRule
	if err := json.Unmarshal(resp, &rule); err != nil {
		return nil, err
	}
	return &rule, nil
}

func (c *APIClient) CreateRule(rule *models.AlertRule) error {
	_, err := c.doRequest("POST", "/api/v1/rules", rule)
	return err
}

func (c *APIClient) ValidateRule(rule *models.AlertRule) error {
	_, err := c.doRequest("POST", "/api/v1/rules/validate", rule)
	return err
}
