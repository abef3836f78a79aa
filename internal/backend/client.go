// Package backend is a thin HTTP adapter for the external compute backend that
// actually runs training and inference jobs on GPUs. The backend is the
// authoritative source of job status; this client only submits, polls and
// cancels. There is no retry logic here on purpose: callers decide what a
// failed call means for the local record.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// SubmitResponse is the wire shape of POST /api/train and /api/infer replies.
type SubmitResponse struct {
	Request      *SubmitRequestInfo `json:"request"`
	GPUAllocated []int              `json:"gpu_allocated,omitempty"`
	Message      string             `json:"message,omitempty"`
}

// SubmitRequestInfo echoes back the accepted request, including the id the
// backend assigned to the job.
type SubmitRequestInfo struct {
	TaskID string `json:"task_id"`
}

// TaskStatusInfo is the per-job entry in GET /api/tasks replies.
type TaskStatusInfo struct {
	Status     string                 `json:"status"`
	ReturnCode *int                   `json:"return_code,omitempty"`
	Message    string                 `json:"message,omitempty"`
	UpdateTime string                 `json:"update_time,omitempty"`
	Request    map[string]interface{} `json:"request,omitempty"`
}

// Client is an HTTP client for the external compute backend.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *zap.Logger
}

// NewClient creates a new compute backend client. The base URL and timeout
// come from configuration; there is no service discovery for the backend.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		logger:     logger,
	}
}

// SubmitJob submits a job config to the backend. jobKind is "train" or
// "infer". It returns the backend-assigned task id; a response without one is
// treated as a failed submission.
func (c *Client) SubmitJob(ctx context.Context, jobKind string, config map[string]interface{}) (string, error) {
	requestURL := fmt.Sprintf("%s/api/%s", c.baseURL, jobKind)

	body, err := json.Marshal(config)
	if err != nil {
		return "", fmt.Errorf("marshalling job config: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, strings.NewReader(string(body)))
	if err != nil {
		return "", fmt.Errorf("creating submit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("Submitting job to compute backend",
		zap.String("url", requestURL),
		zap.String("job_kind", jobKind),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Failed to submit job to compute backend", zap.String("url", requestURL), zap.Error(err))
		return "", fmt.Errorf("submitting job: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("Compute backend returned non-success status for job submission",
			zap.Int("status_code", resp.StatusCode),
			zap.String("url", requestURL),
		)
		return "", fmt.Errorf("compute backend returned status %d for job submission", resp.StatusCode)
	}

	var submitResp SubmitResponse
	if err := json.NewDecoder(resp.Body).Decode(&submitResp); err != nil {
		return "", fmt.Errorf("decoding submit response: %w", err)
	}
	if submitResp.Request == nil || submitResp.Request.TaskID == "" {
		return "", fmt.Errorf("compute backend response is missing a task id")
	}

	c.logger.Info("Job submitted to compute backend",
		zap.String("external_task_id", submitResp.Request.TaskID),
		zap.String("job_kind", jobKind),
	)
	return submitResp.Request.TaskID, nil
}

// QueryTasks polls the backend for the given external task id. The backend
// replies with a map keyed by job id; the queried id being absent from the map
// means "no new information".
func (c *Client) QueryTasks(ctx context.Context, externalTaskID string) (map[string]TaskStatusInfo, error) {
	requestURL := fmt.Sprintf("%s/api/tasks?task_id=%s", c.baseURL, url.QueryEscape(externalTaskID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating status request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("querying task status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("compute backend returned status %d for task status query", resp.StatusCode)
	}

	var statuses map[string]TaskStatusInfo
	if err := json.NewDecoder(resp.Body).Decode(&statuses); err != nil {
		return nil, fmt.Errorf("decoding task status response: %w", err)
	}
	return statuses, nil
}

// CancelTask asks the backend to cancel a job. Any non-2xx response is a
// cancellation failure.
func (c *Client) CancelTask(ctx context.Context, externalTaskID string) error {
	requestURL := fmt.Sprintf("%s/api/tasks/cancel?task_id=%s", c.baseURL, url.QueryEscape(externalTaskID))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, nil)
	if err != nil {
		return fmt.Errorf("creating cancel request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Failed to send cancel request to compute backend",
			zap.String("external_task_id", externalTaskID),
			zap.Error(err),
		)
		return fmt.Errorf("cancelling task: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("Compute backend returned non-success status for cancellation",
			zap.Int("status_code", resp.StatusCode),
			zap.String("external_task_id", externalTaskID),
		)
		return fmt.Errorf("compute backend returned status %d for cancellation", resp.StatusCode)
	}

	c.logger.Info("Task cancelled at compute backend", zap.String("external_task_id", externalTaskID))
	return nil
}

// ChartURL builds the display URL for a job's training chart. The URL is
// handed to clients as-is; this service never fetches it.
func (c *Client) ChartURL(externalTaskID string) string {
	return fmt.Sprintf("%s/api/chart?task_id=%s", c.baseURL, url.QueryEscape(externalTaskID))
}
