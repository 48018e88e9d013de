package application

import (
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/danmu-online-go/internal/json"
	"github.com/lk2023060901/danmu-online-go/pkg/util/merr"
	"github.com/lk2023060901/danmu-online-go/pkg/util/paramtable"
)

func quietConfig() *paramtable.Config {
	cfg := paramtable.Default()
	cfg.Log.Stdout = false
	return cfg
}

func startApp(t *testing.T, opts ...Option) (*Application, context.CancelFunc, <-chan error) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	app := New(append([]Option{WithListener(lis)}, opts...)...)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Run(ctx)
	}()

	select {
	case <-app.Ready():
	case err := <-errCh:
		cancel()
		t.Fatalf("application exited early: %v", err)
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("application not ready")
	}
	return app, cancel, errCh
}

func waitStopped(t *testing.T, errCh <-chan error) error {
	select {
	case err := <-errCh:
		return err
	case <-time.After(10 * time.Second):
		t.Fatal("application did not stop")
		return nil
	}
}

func post(t *testing.T, url, body string) map[string]any {
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestRunServesAndShutsDown(t *testing.T) {
	app, cancel, errCh := startApp(t, WithConfig(quietConfig()))
	base := "http://" + app.Addr().String()

	health, err := http.Get(base + "/api/health")
	require.NoError(t, err)
	health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)
	assert.True(t, app.Serving())

	login := post(t, base+"/api/online/login", `{"user_id":"alice"}`)
	assert.EqualValues(t, 0, login["code"])
	data := login["data"].(map[string]any)
	assert.EqualValues(t, 1, data["online_count"])
	sessionID := data["session_id"].(string)
	assert.True(t, app.Registry().IsValidSession(sessionID))

	heartbeat := post(t, base+"/api/online/heartbeat", `{"session_id":"`+sessionID+`"}`)
	assert.Equal(t, "heartbeat success", heartbeat["message"])

	resp, err := http.Get(base + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "online_registry_online_users")

	cancel()
	assert.NoError(t, waitStopped(t, errCh))
	assert.False(t, app.Serving())

	_, err = http.Get(base + "/api/health")
	assert.Error(t, err)

	_, err = app.Registry().Login("bob")
	assert.ErrorIs(t, err, merr.ErrServiceStopped)
}

func TestRunWithConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
online:
  session-ttl: 2m
  sweep-interval: 10s
metrics:
  enable: false
log:
  stdout: false
logging:
  registry:
    level: info
    file:
      rootpath: `+dir+`
      filename: registry.log
`), 0o600))

	app, cancel, errCh := startApp(t, WithConfigPath(path))
	assert.Equal(t, 2*time.Minute, app.Registry().SessionTTL())
	assert.Equal(t, 10*time.Second, app.Registry().SweepInterval())
	assert.NotNil(t, app.Logger(RegistryLoggerName))

	resp, err := http.Get("http://" + app.Addr().String() + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	cancel()
	assert.NoError(t, waitStopped(t, errCh))
	assert.FileExists(t, filepath.Join(dir, "registry.log"))
}

func TestRunMissingConfig(t *testing.T) {
	app := New(WithConfigPath(filepath.Join(t.TempDir(), "absent.yaml")))
	err := app.Run(context.Background())
	assert.Error(t, err)
	assert.Nil(t, app.Addr())
}

func TestRunInvalidConfig(t *testing.T) {
	cfg := quietConfig()
	cfg.Online.SessionTTL = -time.Second
	err := New(WithConfig(cfg)).Run(context.Background())
	assert.ErrorIs(t, err, merr.ErrParameterInvalid)
}

func TestLoggerFallback(t *testing.T) {
	app := New()
	assert.NotNil(t, app.Logger("unknown"))
}
