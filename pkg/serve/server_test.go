package serve

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/covercash2/green/pkg/deploy"
	"github.com/covercash2/green/pkg/store"
	"github.com/covercash2/green/pkg/types"
	"github.com/covercash2/green/pkg/webhook"
)

const pingPayload = `{"zen":"Keep it logically awesome.","hook_id":42,"hook":{"url":"https://api.github.com/hooks/42"}}`

type fakeHooks struct {
	deliveries []*webhook.Delivery
	result     *deploy.Result
	err        error
}

func (f *fakeHooks) Handle(_ context.Context, d *webhook.Delivery) (*deploy.Result, error) {
	f.deliveries = append(f.deliveries, d)
	if f.result != nil {
		return f.result, f.err
	}
	return &deploy.Result{}, f.err
}

type testEnv struct {
	server *Server
	hooks  *fakeHooks
	store  *store.MemoryStore
	assets string
}

func newTestServer(t *testing.T, mutate func(cfg *Config)) *testEnv {
	t.Helper()
	dir := t.TempDir()

	assets := filepath.Join(dir, "assets")
	require.NoError(t, os.MkdirAll(assets, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(assets, "style.css"), []byte("body { color: green; }"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(assets, "notes.swp"), []byte("scratch"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(assets, ".env"), []byte("SECRET=1"), 0o644))

	certs, err := NewCertWatcher(writeCert(t, dir, testCert), nil)
	require.NoError(t, err)

	cfg := Config{
		Routes: types.Routes{
			"grafana": {URL: "https://grafana.lan", Description: "dashboards"},
			"adguard": {URL: "https://adguard.lan", Description: "dns"},
		},
		AssetsPath:    assets,
		AssetsIgnore:  []string{".*", "*.swp"},
		WebhookSecret: []byte("hunter2"),
	}
	if mutate != nil {
		mutate(&cfg)
	}

	env := &testEnv{hooks: &fakeHooks{}, store: store.NewMemory(), assets: assets}
	env.server, err = NewServer(cfg, certs, env.hooks, env.store, zaptest.NewLogger(t))
	require.NoError(t, err)
	return env
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func webhookRequest(event, delivery, payload string, secret []byte) *http.Request {
	req := httptest.NewRequest(http.MethodPost, RouteWebhook, bytes.NewReader([]byte(payload)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Event", event)
	req.Header.Set("X-GitHub-Delivery", delivery)
	if secret != nil {
		req.Header.Set("X-Hub-Signature-256", webhook.Sign([]byte(payload), secret))
	}
	return req
}

func TestServer_Index(t *testing.T) {
	env := newTestServer(t, nil)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")

	body := rec.Body.String()
	assert.Contains(t, body, `<a href="https://grafana.lan">grafana</a>: dashboards`)
	assert.Contains(t, body, `<a href="https://adguard.lan">adguard</a>: dns`)
	assert.Less(t, bytes.Index(rec.Body.Bytes(), []byte("adguard")), bytes.Index(rec.Body.Bytes(), []byte("grafana")))
}

func TestServer_UnknownRoute(t *testing.T) {
	env := newTestServer(t, nil)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_HealthCheck(t *testing.T) {
	env := newTestServer(t, nil)

	rec := env.do(httptest.NewRequest(http.MethodGet, RouteHealthCheck, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "SYSTEM STATUS: ONLINE")
	assert.Equal(t, healthBanner, rec.Body.String())
}

func TestServer_Certificate(t *testing.T) {
	env := newTestServer(t, nil)

	rec := env.do(httptest.NewRequest(http.MethodGet, RouteCertificates, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "H3R3'5 Y0UR C3RT1F1C4T3:\n"+testCert)
}

func TestServer_Assets(t *testing.T) {
	env := newTestServer(t, nil)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/assets/style.css", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "body { color: green; }", rec.Body.String())

	for _, path := range []string{"/assets/notes.swp", "/assets/.env", "/assets/missing.css"} {
		rec := env.do(httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestServer_AssetsWithoutIgnore(t *testing.T) {
	env := newTestServer(t, func(cfg *Config) { cfg.AssetsIgnore = nil })

	rec := env.do(httptest.NewRequest(http.MethodGet, "/assets/notes.swp", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_WebhookPing(t *testing.T) {
	env := newTestServer(t, nil)

	rec := env.do(webhookRequest("ping", "d-1", pingPayload, []byte("hunter2")))
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeResponse(t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, "webhook", resp.Type)

	var data WebhookData
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.Equal(t, "d-1", data.Delivery)
	assert.Equal(t, "ping", data.Event)

	require.Len(t, env.hooks.deliveries, 1)
	ping, ok := env.hooks.deliveries[0].Ping()
	require.True(t, ok)
	assert.Equal(t, int64(42), ping.GetHookID())
}

func TestServer_WebhookBadSignature(t *testing.T) {
	env := newTestServer(t, nil)

	rec := env.do(webhookRequest("ping", "d-1", pingPayload, []byte("wrong")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, decodeResponse(t, rec).Success)
	assert.Empty(t, env.hooks.deliveries)
}

func TestServer_WebhookUnsigned(t *testing.T) {
	env := newTestServer(t, nil)

	rec := env.do(webhookRequest("ping", "d-1", pingPayload, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_WebhookIgnoredEvent(t *testing.T) {
	env := newTestServer(t, nil)

	rec := env.do(webhookRequest("issues", "d-1", `{"action":"opened"}`, []byte("hunter2")))
	require.Equal(t, http.StatusAccepted, rec.Code)

	var data WebhookData
	require.NoError(t, json.Unmarshal(decodeResponse(t, rec).Data, &data))
	assert.True(t, data.Ignored)
	assert.Equal(t, "issues", data.Event)
	assert.Empty(t, env.hooks.deliveries)
}

func TestServer_WebhookNotificationFailure(t *testing.T) {
	env := newTestServer(t, nil)
	env.hooks.err = errors.New("ultron down")

	rec := env.do(webhookRequest("ping", "d-1", pingPayload, []byte("hunter2")))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	resp := decodeResponse(t, rec)
	assert.Equal(t, "failed to send deployment notification to Ultron", resp.Error)
}

func TestServer_WebhookMethod(t *testing.T) {
	env := newTestServer(t, nil)

	rec := env.do(httptest.NewRequest(http.MethodGet, RouteWebhook, nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServer_Deployments(t *testing.T) {
	env := newTestServer(t, nil)
	base := time.Date(2025, 1, 12, 20, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, env.store.AddDeployment(&types.Deployment{
			ID:        id,
			Repo:      "covercash2/ultron",
			Ref:       "refs/heads/main",
			Rev:       "9f2c1e4b7a3d5c6e8f0a1b2c3d4e5f6a7b8c9d0e",
			Status:    types.DeploymentSuccess,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	rec := env.do(httptest.NewRequest(http.MethodGet, RouteDeployments+"?limit=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeResponse(t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, "deployments", resp.Type)

	var data DeploymentsData
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	require.Len(t, data.Deployments, 2)
	assert.Equal(t, "c", data.Deployments[0].ID)
	assert.Equal(t, "b", data.Deployments[1].ID)

	rec = env.do(httptest.NewRequest(http.MethodGet, RouteDeployments+"/a", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var d types.Deployment
	require.NoError(t, json.Unmarshal(decodeResponse(t, rec).Data, &d))
	assert.Equal(t, "a", d.ID)
}

func TestServer_DeploymentsEmpty(t *testing.T) {
	env := newTestServer(t, nil)

	rec := env.do(httptest.NewRequest(http.MethodGet, RouteDeployments, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"type":"deployments","data":{"deployments":[]}}`, rec.Body.String())
}

func TestServer_DeploymentErrors(t *testing.T) {
	env := newTestServer(t, nil)

	for _, limit := range []string{"many", "0", "-1"} {
		rec := env.do(httptest.NewRequest(http.MethodGet, RouteDeployments+"?limit="+limit, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, "limit=%s", limit)
	}

	rec := env.do(httptest.NewRequest(http.MethodGet, RouteDeployments+"/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, store.ErrNotFound.Error(), decodeResponse(t, rec).Error)
}

// limitStore records the limit passed to ListDeployments.
type limitStore struct {
	*store.MemoryStore
	limits []int
}

func (s *limitStore) ListDeployments(limit int) ([]*types.Deployment, error) {
	s.limits = append(s.limits, limit)
	return s.MemoryStore.ListDeployments(limit)
}

func TestServer_DeploymentsLimit(t *testing.T) {
	certs, err := NewCertWatcher(writeCert(t, t.TempDir(), testCert), nil)
	require.NoError(t, err)
	st := &limitStore{MemoryStore: store.NewMemory()}
	s, err := NewServer(Config{}, certs, nil, st, zaptest.NewLogger(t))
	require.NoError(t, err)

	for _, query := range []string{"", "?limit=5", "?limit=100000"} {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, RouteDeployments+query, nil))
		require.Equal(t, http.StatusOK, rec.Code, query)
	}
	assert.Equal(t, []int{DefaultDeploymentsLimit, 5, MaxDeploymentsLimit}, st.limits)
}

func TestServer_OptionalRoutes(t *testing.T) {
	certs, err := NewCertWatcher(writeCert(t, t.TempDir(), testCert), nil)
	require.NoError(t, err)

	s, err := NewServer(Config{}, certs, nil, nil, nil)
	require.NoError(t, err)

	for _, path := range []string{RouteDeployments, "/assets/style.css"} {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}

	_, err = NewServer(Config{}, nil, nil, nil, nil)
	assert.Error(t, err)
}

func TestServer_Serve(t *testing.T) {
	env := newTestServer(t, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.server.Serve(ctx, ln) }()

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://" + ln.Addr().String() + RouteHealthCheck)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "SYSTEM STATUS: ONLINE")
	client.CloseIdleConnections()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("server did not shut down")
	}
}
