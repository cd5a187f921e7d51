package optimizer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/resumeforge/ResumeForge/internal/pkg/env"
)

// Client calls the optimization engine service. The engine runs the actual
// resume matching; this service only owns credits and job bookkeeping.
type Client struct {
	BaseURL string

	HTTPClient *http.Client
}

type optimizeRequest struct {
	OptimizationUUID string `json:"optimization_uuid"`
	UserID           uint   `json:"user_id"`
}

// NewClientFromEnv builds a client from OPTIMIZER_ENGINE_URL.
func NewClientFromEnv() *Client {
	return &Client{
		BaseURL: strings.TrimRight(strings.TrimSpace(env.GetEnv("OPTIMIZER_ENGINE_URL", "")), "/"),
		HTTPClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// Optimize runs one optimization to completion on the engine. The call is
// synchronous; the queue worker owning this job is the one waiting.
func (c *Client) Optimize(ctx context.Context, optimizationUUID string, userID uint) error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return errors.New("OPTIMIZER_ENGINE_URL is not configured")
	}

	payload, err := json.Marshal(optimizeRequest{OptimizationUUID: optimizationUUID, UserID: userID})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/optimize", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("engine optimize failed: status=%d body=%s", resp.StatusCode, string(body))
	}
	return nil
}
