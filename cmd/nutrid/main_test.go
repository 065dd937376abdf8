package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/nutrid/internal/config"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func artifactPath(t *testing.T, rel string) string {
	t.Helper()
	p, err := filepath.Abs(filepath.Join("..", "..", rel))
	require.NoError(t, err)
	return p
}

func writeConfig(t *testing.T, port int, modelPath, extra string) string {
	t.Helper()
	content := fmt.Sprintf(`server:
  http_host: 127.0.0.1
  http_port: %d
  shutdown_timeout: 2s
data:
  food_table: %s
  model_bundle: %s
logging:
  level: error
%s`, port, artifactPath(t, "data/data_baby_food.csv"), modelPath, extra)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// startRun runs the server in the background and waits until /health
// answers. The returned function stops it and returns run's error.
func startRun(t *testing.T, configPath string, port int) func() error {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- run(ctx, configPath) }()

	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", port)
	require.Eventually(t, func() bool {
		resp, err := http.Get(healthURL)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	return func() error {
		cancel()
		select {
		case err := <-errCh:
			return err
		case <-time.After(5 * time.Second):
			t.Fatal("server did not shut down in time")
			return nil
		}
	}
}

func postJSON(t *testing.T, url string, body any) map[string]any {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

var profile = map[string]any{
	"usia_bulan":      9,
	"gender":          "L",
	"berat_kg":        9.0,
	"tinggi_cm":       70.0,
	"aktivitas_level": "Sedang",
	"status_asi":      "ASI+MPASI",
}

func TestRun_ServesAPI(t *testing.T) {
	port := freePort(t)
	stop := startRun(t, writeConfig(t, port, artifactPath(t, "models/model.toml"), ""), port)

	base := fmt.Sprintf("http://127.0.0.1:%d", port)

	resp, err := http.Get(base + "/health")
	require.NoError(t, err)
	var health map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	resp.Body.Close()
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, "baby_nutrition_model", health["model"])
	assert.Greater(t, health["foods"], 0.0)

	out := postJSON(t, base+"/api/prediction/predict_nutrition", profile)
	require.Equal(t, "success", out["status"])
	data := out["data"].(map[string]any)
	assert.InDelta(t, 860.0, data["calories"], 1e-6)
	assert.InDelta(t, 17.0, data["proteins"], 1e-6)

	assert.NoError(t, stop())
}

func TestRun_MissingModel(t *testing.T) {
	path := writeConfig(t, freePort(t), filepath.Join(t.TempDir(), "missing.toml"), "")

	err := run(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load model bundle")
}

func TestRun_InvalidConfig(t *testing.T) {
	path := writeConfig(t, 70000, artifactPath(t, "models/model.toml"), "")

	err := run(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load configuration")
}

func TestRun_PublishesEvents(t *testing.T) {
	ns, err := natsserver.NewServer(&natsserver.Options{Host: "127.0.0.1", Port: -1, NoLog: true, NoSigs: true})
	require.NoError(t, err)
	go ns.Start()
	require.True(t, ns.ReadyForConnections(5*time.Second))
	t.Cleanup(func() {
		ns.Shutdown()
		ns.WaitForShutdown()
	})

	nc, err := nats.Connect(ns.ClientURL())
	require.NoError(t, err)
	t.Cleanup(nc.Close)
	msgs := make(chan *nats.Msg, 4)
	_, err = nc.ChanSubscribe("nutrid.tracking.>", msgs)
	require.NoError(t, err)
	require.NoError(t, nc.Flush())

	port := freePort(t)
	extra := fmt.Sprintf("events:\n  enabled: true\n  nats_url: %s\n", ns.ClientURL())
	stop := startRun(t, writeConfig(t, port, artifactPath(t, "models/model.toml"), extra), port)

	body := map[string]any{"user_id": "u1", "date": "2024-01-01"}
	for k, v := range profile {
		body[k] = v
	}
	out := postJSON(t, fmt.Sprintf("http://127.0.0.1:%d/api/tracking/initialize-tracking", port), body)
	require.Equal(t, "success", out["status"])

	select {
	case msg := <-msgs:
		assert.Equal(t, "nutrid.tracking.initialized", msg.Subject)
		var ev map[string]any
		require.NoError(t, json.Unmarshal(msg.Data, &ev))
		assert.Equal(t, "u1", ev["user_id"])
	case <-time.After(3 * time.Second):
		t.Fatal("no tracking event received")
	}

	assert.NoError(t, stop())
}

func TestConfigMapping(t *testing.T) {
	cfg := config.Default()
	cfg.Server.RateLimit = 5
	cfg.Telemetry.Protocol = "http"
	cfg.Telemetry.SamplingRate = 0.25

	hc := httpConfig(cfg)
	assert.Equal(t, "0.0.0.0:8080", hc.Addr())
	assert.Equal(t, "/api", hc.APIPrefix)
	assert.Equal(t, 5.0, hc.RateLimit)
	assert.Equal(t, 10*time.Second, hc.ShutdownTimeout)

	tc := telemetryConfig(cfg)
	assert.False(t, tc.Enabled)
	assert.Equal(t, "http", tc.Protocol)
	assert.Equal(t, 0.25, tc.SamplingRate)
	assert.Equal(t, "nutrid", tc.ServiceName)
	assert.NoError(t, tc.Validate())
}
