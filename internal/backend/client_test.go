package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 5*time.Second, zap.NewNop())
}

func TestSubmitJob(t *testing.T) {
	var gotPath string
	var gotBody map[string]interface{}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(SubmitResponse{
			Request:      &SubmitRequestInfo{TaskID: "job-42"},
			GPUAllocated: []int{0, 1},
		})
	})

	taskID, err := client.SubmitJob(context.Background(), "train", map[string]interface{}{"epochs": 5})
	require.NoError(t, err)
	assert.Equal(t, "job-42", taskID)
	assert.Equal(t, "/api/train", gotPath)
	assert.Equal(t, float64(5), gotBody["epochs"])
}

func TestSubmitJobInferPath(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/infer", r.URL.Path)
		json.NewEncoder(w).Encode(SubmitResponse{Request: &SubmitRequestInfo{TaskID: "job-7"}})
	})

	taskID, err := client.SubmitJob(context.Background(), "infer", nil)
	require.NoError(t, err)
	assert.Equal(t, "job-7", taskID)
}

func TestSubmitJobMissingTaskID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(SubmitResponse{Message: "accepted"})
	})

	_, err := client.SubmitJob(context.Background(), "train", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing a task id")
}

func TestSubmitJobBackendError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no gpus available", http.StatusServiceUnavailable)
	})

	_, err := client.SubmitJob(context.Background(), "train", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestQueryTasks(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tasks", r.URL.Path)
		assert.Equal(t, "job-42", r.URL.Query().Get("task_id"))
		json.NewEncoder(w).Encode(map[string]TaskStatusInfo{
			"job-42": {Status: "running", Message: "epoch 3/10"},
		})
	})

	statuses, err := client.QueryTasks(context.Background(), "job-42")
	require.NoError(t, err)
	require.Contains(t, statuses, "job-42")
	assert.Equal(t, "running", statuses["job-42"].Status)
}

func TestQueryTasksNonOK(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.QueryTasks(context.Background(), "job-42")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestCancelTask(t *testing.T) {
	var gotMethod, gotPath, gotID string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotID = r.URL.Query().Get("task_id")
		w.WriteHeader(http.StatusOK)
	})

	err := client.CancelTask(context.Background(), "job-42")
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/api/tasks/cancel", gotPath)
	assert.Equal(t, "job-42", gotID)
}

func TestCancelTaskNonSuccess(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unknown task", http.StatusNotFound)
	})

	err := client.CancelTask(context.Background(), "job-42")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestChartURL(t *testing.T) {
	client := NewClient("http://backend.local/", time.Second, zap.NewNop())
	assert.Equal(t, "http://backend.local/api/chart?task_id=job+42", client.ChartURL("job 42"))
}
