package gateway

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"smsbridge/pkg/activity"
	"smsbridge/pkg/bus"
	"smsbridge/pkg/carrier"
	"smsbridge/pkg/channel/nexmo"
	"smsbridge/pkg/config"
	"smsbridge/pkg/webhook"
)

func TestGatewayServiceRunE2EReceiveAndSend(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"message-count":"1","messages":[{"to":"15557654321","message-id":"abc123","status":"0"}]}`)
	}))
	t.Cleanup(api.Close)

	mb := bus.NewMessageBus(8)
	t.Cleanup(mb.Close)

	listener, err := webhook.NewServer(config.WebhookConfig{Host: "127.0.0.1", Port: 0, Path: "/inbound"}, mb, logger)
	require.NoError(t, err)

	adapter, err := nexmo.NewAdapter(nexmo.Options{
		ID:        "svc-gw",
		APIKey:    "key",
		APISecret: "secret",
		Listener:  listener,
		Bus:       mb,
		Logger:    logger,
		ClientFactory: func(apiKey, apiSecret string) (nexmo.Client, error) {
			return carrier.NewClient(apiKey, apiSecret, carrier.WithBaseURL(api.URL))
		},
	})
	require.NoError(t, err)

	inbound := make(chan activity.Activity, 1)
	handler := func(_ context.Context, doc activity.Activity) error {
		inbound <- doc
		return nil
	}

	gatewayCfg := config.GatewayConfig{Host: "127.0.0.1", Port: freeTCPPort(t)}
	svc, err := NewService(gatewayCfg, adapter, mb, handler, logger)
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		errCh <- svc.Run(ctx)
	}()

	baseURL := "http://" + net.JoinHostPort(gatewayCfg.Host, strconv.Itoa(gatewayCfg.Port))
	require.Equal(t, http.StatusOK, waitHTTPStatus(t, baseURL+"/readyz", 3*time.Second))

	form := `msisdn=15551234567&to=15557654321&messageId=m-1&text=hi&type=text`
	resp, err := http.Post("http://"+listener.Addr()+"/inbound", "application/x-www-form-urlencoded", strings.NewReader(form))
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusOK, resp.StatusCode)

	select {
	case doc := <-inbound:
		require.Equal(t, "hi", doc.Object.Content)
		require.Equal(t, "15551234567", doc.Actor.ID)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for inbound activity")
	}

	body := `{"type":"Note","object":{"content":"hello"},"to":{"id":"15557654321"}}`
	resp, err = http.Post(baseURL+"/v1/send", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var conf activity.Confirmation
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&conf))
	require.Equal(t, activity.Confirmation{Type: activity.ConfirmationSent, ServiceID: "svc-gw", IDs: []string{"abc123"}}, conf)

	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for service run to exit")
	}
	require.False(t, adapter.Connected())
}

func TestGatewayServiceRunFailsWithoutCredentials(t *testing.T) {
	adapter, err := nexmo.NewAdapter(nexmo.Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	require.NoError(t, err)

	svc, err := NewService(config.GatewayConfig{Host: "127.0.0.1", Port: freeTCPPort(t)}, adapter, nil, nil, nil)
	require.NoError(t, err)

	err = svc.Run(context.Background())
	require.ErrorIs(t, err, nexmo.ErrTokenMissing)
}

func waitHTTPStatus(t *testing.T, url string, timeout time.Duration) int {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for {
		response, err := http.Get(url)
		if err == nil {
			statusCode := response.StatusCode
			require.NoError(t, response.Body.Close())
			return statusCode
		}

		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s: %v", url, err)
		}

		time.Sleep(25 * time.Millisecond)
	}
}

func freeTCPPort(t *testing.T) int {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	addr, ok := listener.Addr().(*net.TCPAddr)
	require.True(t, ok)
	return addr.Port
}
