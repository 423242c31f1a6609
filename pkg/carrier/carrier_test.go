package carrier

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewClientRequiresCredentials(t *testing.T) {
	t.Parallel()

	if _, err := NewClient("", "secret"); err == nil {
		t.Fatal("expected error when api key is missing")
	}
	if _, err := NewClient("key", " "); err == nil {
		t.Fatal("expected error when api secret is missing")
	}
}

func TestSendSMSEncodesFormAndDecodesSegments(t *testing.T) {
	t.Parallel()

	var gotForm map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/sms/json" {
			t.Errorf("request = %s %s, want POST /sms/json", r.Method, r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotForm = map[string]string{}
		for key := range r.PostForm {
			gotForm[key] = r.PostForm.Get(key)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message-count":"2","messages":[
			{"to":"15551234567","message-id":"seg-1","status":"0","network":"310260"},
			{"to":"15551234567","message-id":"seg-2","status":"0"}]}`))
	}))
	defer server.Close()

	client, err := NewClient("key", "secret", WithBaseURL(server.URL+"/"))
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}

	resp, err := client.SendSMS(context.Background(), SendParams{
		From:    "Acme",
		To:      "15551234567",
		Text:    "hi",
		Options: map[string]string{"type": "unicode", "api_key": "spoofed"},
	})
	if err != nil {
		t.Fatalf("SendSMS error: %v", err)
	}

	want := map[string]string{
		"api_key":    "key",
		"api_secret": "secret",
		"from":       "Acme",
		"to":         "15551234567",
		"text":       "hi",
		"type":       "unicode",
	}
	for key, value := range want {
		if gotForm[key] != value {
			t.Fatalf("form[%s] = %q, want %q", key, gotForm[key], value)
		}
	}

	if len(resp.Messages) != 2 {
		t.Fatalf("segments = %d, want 2", len(resp.Messages))
	}
	if resp.Messages[0].MessageID != "seg-1" || resp.Messages[1].MessageID != "seg-2" {
		t.Fatalf("message ids = %q,%q, want seg-1,seg-2", resp.Messages[0].MessageID, resp.Messages[1].MessageID)
	}
}

func TestSendSMSRejectedSegment(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"message-count":"1","messages":[{"status":"4","error-text":"Bad Credentials"}]}`))
	}))
	defer server.Close()

	client, err := NewClient("key", "secret", WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}

	_, err = client.SendSMS(context.Background(), SendParams{To: "1", Text: "hi"})
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("SendSMS error = %v, want ErrRejected", err)
	}

	var rejected *RejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("error type = %T, want *RejectedError", err)
	}
	if rejected.Status != "4" || rejected.ErrorText != "Bad Credentials" {
		t.Fatalf("rejected = %+v, want status 4 / Bad Credentials", rejected)
	}
}

func TestSendSMSHTTPFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, strings.Repeat("x", 2*maxErrorBody), http.StatusBadGateway)
	}))
	defer server.Close()

	client, err := NewClient("key", "secret", WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}

	_, err = client.SendSMS(context.Background(), SendParams{To: "1", Text: "hi"})
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("SendSMS error = %v, want ErrTransport", err)
	}
	if !strings.Contains(err.Error(), "502") {
		t.Fatalf("SendSMS error = %v, want status code in message", err)
	}
}

func TestSendSMSOversizedResponse(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message-count":"1","messages":[{"message-id":"seg-1","status":"0","error-text":"`))
		_, _ = w.Write([]byte(strings.Repeat("x", 2*maxResponseBody)))
		_, _ = w.Write([]byte(`"}]}`))
	}))
	defer server.Close()

	client, err := NewClient("key", "secret", WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}

	_, err = client.SendSMS(context.Background(), SendParams{To: "1", Text: "hi"})
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("SendSMS error = %v, want ErrTransport", err)
	}
	if !strings.Contains(err.Error(), "exceeds") {
		t.Fatalf("SendSMS error = %v, want size limit in message", err)
	}
}

func TestSendSMSUnreachable(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	baseURL := server.URL
	server.Close()

	client, err := NewClient("key", "secret", WithBaseURL(baseURL))
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}

	if _, err := client.SendSMS(context.Background(), SendParams{To: "1", Text: "hi"}); !errors.Is(err, ErrTransport) {
		t.Fatalf("SendSMS error = %v, want ErrTransport", err)
	}
}
