// internal/api/client.go
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/tamzrod/hv-supervisor/internal/supervisor"
)

// Client talks to a running supervisor daemon.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient targets the daemon's listen address.
func NewClient(addr string) *Client {
	return &Client{
		baseURL:    "http://" + addr,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Devices fetches the latest snapshot of every device.
func (c *Client) Devices() ([]supervisor.Snapshot, error) {
	var out []supervisor.Snapshot
	if err := c.get("/devices", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Device fetches one device snapshot.
func (c *Client) Device(id string) (supervisor.Snapshot, error) {
	var out supervisor.Snapshot
	err := c.get("/devices/"+id, &out)
	return out, err
}

// SetVoltage requests a new target voltage, in volts.
func (c *Client) SetVoltage(id string, volts float64) error {
	return c.put(fmt.Sprintf("/devices/%s/voltage", id), volts)
}

// SetCurrentLimit requests a new current limit, in uA.
func (c *Client) SetCurrentLimit(id string, limit float64) error {
	return c.put(fmt.Sprintf("/devices/%s/current-limit", id), limit)
}

// SetPower requests the output on or off.
func (c *Client) SetPower(id string, on bool) error {
	return c.put(fmt.Sprintf("/devices/%s/power", id), on)
}

func (c *Client) get(path string, out interface{}) error {
	resp, err := c.httpClient.Get(c.baseURL + path)
	if err != nil {
		return errors.Wrap(err, "api: is the daemon running?")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("api: %s: %s", path, readError(resp))
	}
	return errors.Wrap(json.NewDecoder(resp.Body).Decode(out), "api: decode")
}

func (c *Client) put(path string, body interface{}) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "api: encode")
	}

	req, err := http.NewRequest(http.MethodPut, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return errors.Wrap(err, "api: request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "api: is the daemon running?")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return errors.Errorf("api: %s: %s", path, readError(resp))
	}
	return nil
}

func readError(resp *http.Response) string {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil || len(raw) == 0 {
		return resp.Status
	}

	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
		return payload.Error
	}
	return resp.Status
}
