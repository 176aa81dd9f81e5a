package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/framecast/framecast-agent/internal/api"
	"github.com/framecast/framecast-agent/internal/config"
)

// agentClient talks to a running framecastd over its loopback API.
type agentClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func newAgentClient(addrFlag, tokenFlag string) (*agentClient, error) {
	addr := addrFlag
	if addr == "" {
		cfg, err := config.New()
		if err != nil {
			return nil, err
		}
		addr = fmt.Sprintf("http://127.0.0.1:%d", cfg.Port())
	}

	token := tokenFlag
	if token == "" {
		token = os.Getenv("FRAMECAST_TOKEN")
	}
	if token == "" {
		return nil, fmt.Errorf("no auth token; pass --token or set FRAMECAST_TOKEN")
	}

	return &agentClient{
		baseURL: addr,
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (c *agentClient) do(method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("agent unreachable at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr api.ErrorResponse
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("agent: %s", apiErr.Error)
		}
		return fmt.Errorf("agent: %s", resp.Status)
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *agentClient) submit(req api.CreateExportRequest) (string, error) {
	var resp api.CreateExportResponse
	if err := c.do(http.MethodPost, "/exports", req, &resp); err != nil {
		return "", err
	}
	return resp.JobID, nil
}

func (c *agentClient) listJobs() ([]api.JobResponse, error) {
	var resp api.JobsResponse
	if err := c.do(http.MethodGet, "/exports", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

func (c *agentClient) getJob(id string) (*api.JobResponse, error) {
	var resp api.JobResponse
	if err := c.do(http.MethodGet, "/exports/"+id, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *agentClient) cancelJob(id string) error {
	return c.do(http.MethodPost, "/exports/"+id+"/cancel", nil, nil)
}
