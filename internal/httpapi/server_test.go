package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilobster/pilobster/internal/commands"
	"github.com/pilobster/pilobster/internal/logger"
	"github.com/pilobster/pilobster/internal/metrics"
	"github.com/pilobster/pilobster/internal/storage"
	"github.com/pilobster/pilobster/internal/store"
)

type apiEnv struct {
	srv   *httptest.Server
	store *store.Store
	reg   *prometheus.Registry
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	db, err := storage.Open(context.Background(), filepath.Join(t.TempDir(), "pilobster.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	st := store.New(db, logger.Nop())
	svc := commands.NewService(commands.ServiceConfig{Model: "tinyllama", Host: "http://localhost:11434"},
		commands.ServiceDeps{Store: st})

	reg := prometheus.NewRegistry()
	m := metrics.New("pilobster", reg)
	m.RecordFire("success")

	api := New("127.0.0.1:0", svc, reg, logger.Nop())
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)
	return &apiEnv{srv: srv, store: st, reg: reg}
}

func (e *apiEnv) do(t *testing.T, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, e.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestHealth(t *testing.T) {
	env := newAPIEnv(t)
	resp, body := env.do(t, http.MethodGet, "/api/v1/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestJobsLifecycle(t *testing.T) {
	env := newAPIEnv(t)

	resp, body := env.do(t, http.MethodPost, "/api/v1/jobs",
		`{"schedule":"*/5 * * * *","message":"Tell me a joke","scope":"telegram"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var created JobResponse
	require.NoError(t, json.Unmarshal(body, &created))
	assert.Equal(t, "*/5 * * * *", created.Schedule)
	assert.Equal(t, "telegram", created.Scope)
	assert.Equal(t, "api", created.Creator)
	assert.NotZero(t, created.ID)

	resp, body = env.do(t, http.MethodGet, "/api/v1/jobs", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var jobs []JobResponse
	require.NoError(t, json.Unmarshal(body, &jobs))
	require.Len(t, jobs, 1)
	assert.Equal(t, created.ID, jobs[0].ID)

	resp, _ = env.do(t, http.MethodDelete, "/api/v1/jobs/"+strconv.FormatInt(created.ID, 10), "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = env.do(t, http.MethodDelete, "/api/v1/jobs/"+strconv.FormatInt(created.ID+100, 10), "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(body), "not found")

	resp, body = env.do(t, http.MethodGet, "/api/v1/jobs", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(body))
}

func TestCreateJob_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"malformed json", `{"schedule":`, ""},
		{"unknown field", `{"schedule":"* * * * *","message":"x","extra":1}`, "unknown field"},
		{"invalid cron", `{"schedule":"61 * * * *","message":"x"}`, ""},
		{"bad scope", `{"schedule":"* * * * *","message":"x","scope":"email"}`, "unknown scope"},
		{"empty message", `{"schedule":"* * * * *","message":"  "}`, "empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newAPIEnv(t)
			resp, body := env.do(t, http.MethodPost, "/api/v1/jobs", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Contains(t, string(body), tt.want)

			n, err := env.store.CountActive(context.Background())
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}

func TestStatus(t *testing.T) {
	env := newAPIEnv(t)
	_, err := env.store.Create(context.Background(), store.NewJob{Schedule: "0 9 * * *", Message: "Good morning"})
	require.NoError(t, err)

	resp, body := env.do(t, http.MethodGet, "/api/v1/status", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var st StatusResponse
	require.NoError(t, json.Unmarshal(body, &st))
	assert.Equal(t, "tinyllama", st.Model)
	assert.Equal(t, 1, st.ActiveJobs)
	assert.Nil(t, st.LastTick)
	assert.NotNil(t, st.RecentFires)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newAPIEnv(t)
	resp, body := env.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `pilobster_job_fires_total{outcome="success"} 1`)
}

func TestRoutes_MethodAndPath(t *testing.T) {
	env := newAPIEnv(t)

	resp, _ := env.do(t, http.MethodPut, "/api/v1/jobs", "")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, _ = env.do(t, http.MethodDelete, "/api/v1/jobs/abc", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

type failingService struct{ Service }

func (failingService) Status(context.Context) (commands.Status, error) {
	return commands.Status{}, errors.New("database is locked")
}

func TestStatus_Error(t *testing.T) {
	api := New("127.0.0.1:0", failingService{}, nil, logger.Nop())
	rr := httptest.NewRecorder()
	api.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"error":"database is locked"}`, rr.Body.String())

	rr = httptest.NewRecorder()
	api.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestServer_StartShutdown(t *testing.T) {
	api := New("127.0.0.1:0", failingService{}, nil, logger.Nop())
	require.NoError(t, api.Start())

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get("http://" + api.Addr() + "/api/v1/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, api.Shutdown(context.Background()))
	_, err = client.Get("http://" + api.Addr() + "/api/v1/health")
	assert.Error(t, err)
}
