package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/odyssey-erp/odyssey-desk/internal/jobs"
)

type stubWarmer struct {
	names       []string
	warmed      int
	err         error
	invalidated int
}

func (s *stubWarmer) Warm(_ context.Context, names ...string) (int, error) {
	s.names = names
	return s.warmed, s.err
}

func (s *stubWarmer) Invalidate(context.Context) error {
	s.invalidated++
	return nil
}

func TestViewsWarmupHandlesPayload(t *testing.T) {
	warmer := &stubWarmer{warmed: 2}
	job := NewViewsWarmupJob(warmer, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	task, err := NewViewsWarmupTask(ViewsWarmupPayload{Views: []string{"products", "accounts"}})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, []string{"products", "accounts"}, warmer.names)

	require.NoError(t, job.Handle(context.Background(), asynq.NewTask(TaskViewsWarmup, nil)))
	assert.Empty(t, warmer.names)
}

func TestViewsWarmupRejectsBadPayload(t *testing.T) {
	job := NewViewsWarmupJob(&stubWarmer{}, nil, nil)
	err := job.Handle(context.Background(), asynq.NewTask(TaskViewsWarmup, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestViewsWarmupReturnsFailure(t *testing.T) {
	boom := errors.New("backend down")
	job := NewViewsWarmupJob(&stubWarmer{warmed: 1, err: boom}, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	warmed, err := job.Run(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, warmed)
}

func TestInvalidateHandler(t *testing.T) {
	warmer := &stubWarmer{}
	job := NewViewsWarmupJob(warmer, nil, nil)
	handlers := job.Handlers()
	require.Len(t, handlers, 2)
	require.NoError(t, handlers[1].Handler(context.Background(), NewViewsInvalidateTask()))
	assert.Equal(t, 1, warmer.invalidated)
}

func TestUnconfiguredJobFails(t *testing.T) {
	var job *ViewsWarmupJob
	assert.Error(t, job.Handle(context.Background(), asynq.NewTask(TaskViewsWarmup, nil)))
}

type stubEnqueuer struct {
	views       []string
	err         error
	invalidates int
}

func (s *stubEnqueuer) EnqueueViewsWarmup(_ context.Context, views ...string) (*asynq.TaskInfo, error) {
	s.views = views
	if s.err != nil {
		return nil, s.err
	}
	return &asynq.TaskInfo{ID: "task-1", Queue: QueueDefault}, nil
}

func (s *stubEnqueuer) EnqueueViewsInvalidate(context.Context) (*asynq.TaskInfo, error) {
	s.invalidates++
	if s.invalidates > 1 {
		return nil, asynq.ErrDuplicateTask
	}
	return &asynq.TaskInfo{ID: "task-2", Queue: QueueCritical}, nil
}

func newJobsRouter(enq Enqueuer) http.Handler {
	r := chi.NewRouter()
	r.Route("/jobs", NewHandler(nil, enq, nil).MountRoutes)
	return r
}

func TestHandlerHealthWithoutInspector(t *testing.T) {
	rr := httptest.NewRecorder()
	newJobsRouter(nil).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"queues":[
		{"queue":"critical","pending":0,"active":0,"failed":0},
		{"queue":"default","pending":0,"active":0,"failed":0}
	]}`, rr.Body.String())
}

func TestHandlerWarmEnqueues(t *testing.T) {
	enq := &stubEnqueuer{}
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/jobs/warm", strings.NewReader(`{"views":["products"]}`))
	req.Header.Set("Content-Type", "application/json")
	newJobsRouter(enq).ServeHTTP(rr, req)

	require.Equal(t, http.StatusAccepted, rr.Code)
	var res taskResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
	assert.Equal(t, "task-1", res.TaskID)
	assert.Equal(t, []string{"products"}, enq.views)
}

func TestHandlerWarmFailures(t *testing.T) {
	rr := httptest.NewRecorder()
	newJobsRouter(nil).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/jobs/warm", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	rr = httptest.NewRecorder()
	newJobsRouter(&stubEnqueuer{err: errors.New("redis down")}).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/jobs/warm", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	rr = httptest.NewRecorder()
	newJobsRouter(&stubEnqueuer{}).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/jobs/warm", strings.NewReader(`{"unknown":1}`)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandlerInvalidateCollapsesDuplicates(t *testing.T) {
	enq := &stubEnqueuer{}
	router := newJobsRouter(enq)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/jobs/invalidate", nil))
	require.Equal(t, http.StatusAccepted, rr.Code)
	assert.JSONEq(t, `{"task_id":"task-2","queue":"critical"}`, rr.Body.String())

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/jobs/invalidate", nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, 2, enq.invalidates)
}

func TestNewWorkerRejectsBadCron(t *testing.T) {
	_, err := NewWorker(WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: "127.0.0.1:0"},
		Cron:      []CronRegistration{{Spec: "not a cron", Task: NewViewsInvalidateTask()}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), TaskViewsInvalidate)
}
