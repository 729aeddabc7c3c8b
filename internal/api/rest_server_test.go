package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/gridworld/internal/world"
)

type fakeSource struct {
	reg *world.Registry
}

func (f *fakeSource) StreamStats() StreamStats {
	return StreamStats{Tick: 7, Clusters: f.reg.Len(), ObserverCluster: "[0,0]"}
}

func (f *fakeSource) ClusterFromPosition(pos world.ClusterPos) *world.Cluster {
	return f.reg.ClusterFromPosition(pos)
}

func newTestServer(t *testing.T) (*StatusServer, *world.Registry) {
	t.Helper()
	reg := world.NewRegistry(nil)
	srv := NewStatusServer(Config{
		Source:   &fakeSource{reg: reg},
		Registry: prometheus.NewRegistry(),
	})
	return srv, reg
}

func get(t *testing.T, srv *StatusServer, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestStatusServer_Health(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := get(t, srv, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.NotEmpty(t, rec.Header().Get("X-Trace-Id"), "Каждый запрос получает trace-ID")
}

func TestStatusServer_Stats(t *testing.T) {
	srv, reg := newTestServer(t)
	reg.Add(reg.NewCluster(world.ClusterPos{H: 1, V: 1}))

	rec := get(t, srv, "/api/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			Stream StreamStats `json:"stream"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, uint64(7), resp.Data.Stream.Tick)
	assert.Equal(t, 1, resp.Data.Stream.Clusters)
}

func TestStatusServer_Cluster(t *testing.T) {
	srv, reg := newTestServer(t)

	c := reg.Add(reg.NewCluster(world.ClusterPos{H: -2, V: 3}))
	require.True(t, c.FinalizeGeneration())
	c.Touch(5 * time.Second)

	rec := get(t, srv, "/api/clusters/-2/3")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data ClusterInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(-2), resp.Data.H)
	assert.Equal(t, int64(3), resp.Data.V)
	assert.Equal(t, "Generated", resp.Data.Status)
	assert.InDelta(t, 5.0, resp.Data.AliveSeconds, 1e-9)

	assert.Equal(t, http.StatusNotFound, get(t, srv, "/api/clusters/9/9").Code, "Незагруженный кластер")
	assert.Equal(t, http.StatusBadRequest, get(t, srv, "/api/clusters/a/1").Code, "Некорректные координаты")
}

func TestStatusServer_Metrics(t *testing.T) {
	srv, _ := newTestServer(t)

	get(t, srv, "/health")
	get(t, srv, "/missing")

	rec := get(t, srv, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "status_api_http_request_duration_seconds"), "Длительность запросов экспортируется")
	assert.Contains(t, body, `path="unmatched"`, "Неизвестные маршруты сводятся в одну метку")
	assert.Contains(t, body, "status_api_http_request_errors_total")
}

func TestFormatUptime(t *testing.T) {
	assert.Equal(t, "42с", formatUptime(42*time.Second))
	assert.Equal(t, "2м 5с", formatUptime(125*time.Second))
	assert.Equal(t, "1ч 0м 1с", formatUptime(time.Hour+time.Second))
	assert.Equal(t, "1д 1ч 0м 0с", formatUptime(25*time.Hour))
}
