package nexmo

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"smsbridge/pkg/activity"
	"smsbridge/pkg/bus"
	"smsbridge/pkg/carrier"
	"smsbridge/pkg/config"
	"smsbridge/pkg/webhook"
)

func TestAdapterE2EReceiveThroughWebhook(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mb := bus.NewMessageBus(8)
	t.Cleanup(mb.Close)

	listener, err := webhook.NewServer(config.WebhookConfig{Host: "127.0.0.1", Port: 0, Path: "/inbound"}, mb, logger)
	require.NoError(t, err)

	adapter, err := NewAdapter(Options{
		ID:        "svc-e2e",
		APIKey:    "key",
		APISecret: "secret",
		Listener:  listener,
		Bus:       mb,
		Logger:    logger,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = adapter.Connect(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = adapter.Disconnect(context.Background()) })

	stream, err := adapter.Receive(ctx)
	require.NoError(t, err)

	body := `{"msisdn":"15551234567","to":"15557654321","messageId":"0A0000000123ABCD1","text":"hi","type":"text","keyword":"HI","message-timestamp":"2020-01-01 12:00:00"}`
	resp, err := http.Post("http://"+listener.Addr()+"/inbound", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusOK, resp.StatusCode)

	select {
	case doc := <-stream:
		require.Equal(t, activity.TypeNote, doc.Type)
		require.NotNil(t, doc.Actor)
		require.Equal(t, "15551234567", doc.Actor.ID)
		require.NotNil(t, doc.To)
		require.Equal(t, "15557654321", doc.To.ID)
		require.NotNil(t, doc.Object)
		require.Equal(t, "hi", doc.Object.Content)
		require.Equal(t, "0A0000000123ABCD1", doc.Object.ID)
		require.Equal(t, "HI", doc.Object.Keyword)
		require.Equal(t, "2020-01-01 12:00:00", doc.Object.Published)
		require.Equal(t, &activity.Generator{Name: ServiceName, ID: "svc-e2e"}, doc.Generator)
	case <-ctx.Done():
		t.Fatal("timed out waiting for inbound activity")
	}
}

func TestAdapterE2ESendThroughCarrier(t *testing.T) {
	forms := make(chan map[string]string, 1)
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		forms <- map[string]string{
			"api_key":    r.PostForm.Get("api_key"),
			"api_secret": r.PostForm.Get("api_secret"),
			"from":       r.PostForm.Get("from"),
			"to":         r.PostForm.Get("to"),
			"text":       r.PostForm.Get("text"),
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message-count": "1",
			"messages": []map[string]string{
				{"to": r.PostForm.Get("to"), "message-id": "abc123", "status": "0"},
			},
		})
	}))
	t.Cleanup(api.Close)

	adapter, err := NewAdapter(Options{
		ID:        "svc-e2e",
		APIKey:    "key",
		APISecret: "secret",
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		ClientFactory: func(apiKey, apiSecret string) (Client, error) {
			return carrier.NewClient(apiKey, apiSecret, carrier.WithBaseURL(api.URL))
		},
	})
	require.NoError(t, err)

	ctx := context.Background()
	_, err = adapter.Connect(ctx)
	require.NoError(t, err)

	conf, err := adapter.Send(ctx, activity.Activity{
		Type:   activity.TypeNote,
		Object: &activity.Object{Content: "hello"},
		To:     &activity.Entity{ID: "15557654321"},
	})
	require.NoError(t, err)
	require.Equal(t, activity.ConfirmationSent, conf.Type)
	require.Equal(t, []string{"abc123"}, conf.IDs)

	require.Equal(t, map[string]string{
		"api_key":    "key",
		"api_secret": "secret",
		"from":       ServiceName,
		"to":         "15557654321",
		"text":       "hello",
	}, <-forms)
}
