package monitor_test

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/USA-RedDragon/configulator"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/abyssnet/flochub/internal/config"
	"github.com/abyssnet/flochub/internal/monitor"
	"github.com/abyssnet/flochub/internal/pubsub"
)

func startTestServer(t *testing.T, port int, actionsTopic, nestTopic string) (addr string, ps pubsub.PubSub) {
	t.Helper()
	cfg, err := configulator.New[config.Config]().Default()
	require.NoError(t, err)
	cfg.Monitor.Bind = "127.0.0.1"
	cfg.Monitor.Port = port

	ps, err = pubsub.MakePubSub(context.Background(), &cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ps.Close() })

	s := monitor.New(&cfg, ps, actionsTopic, nestTopic, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = s.Start(ctx) }()
	t.Cleanup(func() { _ = s.Stop(context.Background()) })

	addr = fmt.Sprintf("127.0.0.1:%d", port)
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	return addr, ps
}

func TestHealthzReportsOK(t *testing.T) {
	addr, _ := startTestServer(t, 18420, "device-actions-1", "nest-in-1")
	resp, err := http.Get("http://" + addr + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetricsEndpointServesPrometheusFormat(t *testing.T) {
	addr, _ := startTestServer(t, 18421, "device-actions-2", "nest-in-2")
	resp, err := http.Get("http://" + addr + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "# HELP")
}

func TestNestInjectRejectsInvalidHex(t *testing.T) {
	addr, _ := startTestServer(t, 18422, "device-actions-3", "nest-in-3")
	resp, err := http.Post("http://"+addr+"/nest/inject", "application/json", strings.NewReader(`{"frame_hex":"zz"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestNestInjectPublishesValidFrame(t *testing.T) {
	addr, ps := startTestServer(t, 18423, "device-actions-4", "nest-in-4")

	sub := ps.Subscribe("nest-in-4")
	defer sub.Close()

	body, err := json.Marshal(map[string]string{"frame_hex": hex.EncodeToString([]byte{0x01, 0x02, 0x03})})
	require.NoError(t, err)

	resp, err := http.Post("http://"+addr+"/nest/inject", "application/json", strings.NewReader(string(body)))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	select {
	case msg := <-sub.Channel():
		require.Equal(t, []byte{0x01, 0x02, 0x03}, msg)
	case <-time.After(time.Second):
		t.Fatal("did not receive published frame")
	}
}

func TestWebsocketFeedDeliversPublishedAction(t *testing.T) {
	addr, ps := startTestServer(t, 18424, "device-actions-5", "nest-in-5")

	ws, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws", nil)
	require.NoError(t, err)
	defer ws.Close()

	require.Eventually(t, func() bool {
		return ps.Publish("device-actions-5", []byte(`{"src_addr":3}`)) == nil
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := ws.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, `{"src_addr":3}`, string(msg))
}
