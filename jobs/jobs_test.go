package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/huiui/hello-antd-role/internal/jobs"
	"github.com/huiui/hello-antd-role/internal/platform/httpx"
)

type stubSyncer struct {
	n     int
	err   error
	calls int
}

func (s *stubSyncer) SyncCatalog(context.Context) (int, error) {
	s.calls++
	return s.n, s.err
}

func TestCatalogSyncTaskPayload(t *testing.T) {
	task, err := NewCatalogSyncTask("startup")
	require.NoError(t, err)
	assert.Equal(t, TaskCatalogSync, task.Type())

	var payload CatalogSyncPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, "startup", payload.Reason)
}

func TestCatalogSyncJobHandle(t *testing.T) {
	syncer := &stubSyncer{n: 18}
	job := NewCatalogSyncJob(syncer, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	task, err := NewCatalogSyncTask("cron")
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, 1, syncer.calls)

	syncer.err = errors.New("db down")
	assert.ErrorIs(t, job.Handle(context.Background(), task), syncer.err)
}

func TestCatalogSyncJobSkipsBadPayload(t *testing.T) {
	job := NewCatalogSyncJob(&stubSyncer{}, nil, nil)
	err := job.Handle(context.Background(), asynq.NewTask(TaskCatalogSync, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) {
	return s.info, s.err
}

func serveHealth(t *testing.T, h *Handler) (*httptest.ResponseRecorder, httpx.Envelope) {
	t.Helper()
	r := chi.NewRouter()
	r.Route("/jobs", h.MountRoutes)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	var env httpx.Envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	return rr, env
}

func TestHealthReportsQueue(t *testing.T) {
	rr, env := serveHealth(t, NewHandler(stubInspector{info: &asynq.QueueInfo{Queue: QueueDefault, Pending: 3}}, nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	data := env.Data.(map[string]any)
	assert.Equal(t, 3.0, data["pending"])
}

func TestHealthUnavailable(t *testing.T) {
	rr, env := serveHealth(t, NewHandler(stubInspector{err: errors.New("redis down")}, nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.False(t, env.Success)
}

func TestHealthWithoutInspector(t *testing.T) {
	rr, _ := serveHealth(t, NewHandler(nil, nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestNewWorkerRejectsIncompleteRegistrations(t *testing.T) {
	opts := asynq.RedisClientOpt{Addr: "127.0.0.1:0"}

	_, err := NewWorker(WorkerConfig{RedisOpts: opts, Handlers: []TaskHandler{{Type: TaskCatalogSync}}})
	require.ErrorContains(t, err, "handler registration")

	_, err = NewWorker(WorkerConfig{RedisOpts: opts, Cron: []CronRegistration{{Spec: "0 3 * * *"}}})
	require.ErrorContains(t, err, "cron registration")

	task, err := NewCatalogSyncTask("cron")
	require.NoError(t, err)
	_, err = NewWorker(WorkerConfig{RedisOpts: opts, Cron: []CronRegistration{{Spec: "not a cron", Task: task}}})
	require.ErrorContains(t, err, TaskCatalogSync)
}
