package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/legio/legio/internal/config"
)

// apiClient is a thin client for the orchestrator process's own HTTP API
// (spec §4.N). The autopilot commands use it to control the autopilot
// daemon held by the already-running `up` process over loopback HTTP
// rather than constructing a second in-process instance, since only one
// process holds that singleton at a time.
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(cfg config.Config) *apiClient {
	host := cfg.Server.Host
	if host == "" {
		host = "127.0.0.1"
	}
	return &apiClient{
		baseURL: fmt.Sprintf("http://%s:%d/api", host, cfg.Server.Port),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *apiClient) get(path string, out interface{}) error {
	resp, err := c.http.Get(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("legio orchestrator not reachable at %s: %w (is `legio up` running?)", c.baseURL, err)
	}
	defer resp.Body.Close()
	return decodeAPIResponse(resp, out)
}

func (c *apiClient) post(path string, body, out interface{}) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	resp, err := c.http.Post(c.baseURL+path, "application/json", &buf)
	if err != nil {
		return fmt.Errorf("legio orchestrator not reachable at %s: %w (is `legio up` running?)", c.baseURL, err)
	}
	defer resp.Body.Close()
	return decodeAPIResponse(resp, out)
}

func decodeAPIResponse(resp *http.Response, out interface{}) error {
	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("orchestrator returned %s: %s", resp.Status, bytes.TrimSpace(b))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
