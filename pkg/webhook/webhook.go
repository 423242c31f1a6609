// Package webhook receives carrier callbacks over HTTP and queues them as raw
// records for the adapter.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"smsbridge/pkg/activity"
	"smsbridge/pkg/bus"
	"smsbridge/pkg/config"
)

const (
	defaultPath    = "/webhooks/inbound"
	publishTimeout = 5 * time.Second
	maxBodyBytes   = 1 << 20
)

// Carrier field names, as sent in query strings and bodies.
const (
	fieldKeyword   = "keyword"
	fieldMessageID = "messageId"
	fieldMSISDN    = "msisdn"
	fieldText      = "text"
	fieldTimestamp = "message-timestamp"
	fieldTo        = "to"
)

// Server is the inbound listener. Every invocation of the configured path is
// acknowledged with 200 regardless of what happens downstream.
type Server struct {
	addr string
	path string
	bus  *bus.MessageBus
	log  *slog.Logger

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// NewServer builds a listener publishing into mb.
func NewServer(cfg config.WebhookConfig, mb *bus.MessageBus, log *slog.Logger) (*Server, error) {
	if mb == nil {
		return nil, errors.New("webhook: message bus is required")
	}
	if log == nil {
		log = slog.Default()
	}

	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		path = defaultPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	return &Server{
		addr: net.JoinHostPort(strings.TrimSpace(cfg.Host), strconv.Itoa(cfg.Port)),
		path: path,
		bus:  mb,
		log:  log.With("component", "webhook"),
	}, nil
}

// Handler returns the router serving the webhook path and /healthz.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get(s.path, s.handleInbound)
	r.Post(s.path, s.handleInbound)

	return r
}

// Start binds the listen address and serves in the background. Calling Start
// on a running server is a no-op.
func (s *Server) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return nil
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}

	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.server = server
	s.listener = listener

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("Webhook listener stopped", "error", err)
		}
	}()

	s.log.Info("Webhook listener started", "address", listener.Addr().String(), "path", s.path)
	return nil
}

// Stop shuts the server down gracefully. Stopping a stopped server is a no-op.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	server := s.server
	s.server = nil
	s.listener = nil
	s.mu.Unlock()

	if server == nil {
		return nil
	}

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown webhook listener: %w", err)
	}
	s.log.Info("Webhook listener stopped")
	return nil
}

// Addr reports the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Path reports the callback path.
func (s *Server) Path() string {
	return s.path
}

func (s *Server) handleInbound(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	s.enqueue(r)
	w.WriteHeader(http.StatusOK)
}

// enqueue publishes the request's record, logging instead of failing so the
// carrier always sees an acknowledgement.
func (s *Server) enqueue(r *http.Request) {
	values, err := requestValues(r)
	if err != nil {
		s.log.Warn("Ignoring unreadable webhook request", "method", r.Method, "error", err)
		return
	}

	rec := recordFromValues(values)

	ctx, cancel := context.WithTimeout(r.Context(), publishTimeout)
	defer cancel()

	if !s.bus.PublishRecord(ctx, rec) {
		s.log.Warn("Inbound queue unavailable, record discarded", "message_id", rec.MessageID)
		return
	}
	s.log.Debug("Inbound record queued", "message_id", rec.MessageID, "pending", s.bus.Pending())
}

// requestValues reads query parameters for GET and the form or JSON body for POST.
func requestValues(r *http.Request) (url.Values, error) {
	if r.Method == http.MethodGet {
		return r.URL.Query(), nil
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		return jsonValues(r)
	}

	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("parse form: %w", err)
	}
	return r.PostForm, nil
}

func jsonValues(r *http.Request) (url.Values, error) {
	decoder := json.NewDecoder(r.Body)
	decoder.UseNumber()

	var body map[string]any
	if err := decoder.Decode(&body); err != nil {
		return nil, fmt.Errorf("decode json body: %w", err)
	}

	values := url.Values{}
	for key, raw := range body {
		switch v := raw.(type) {
		case string:
			values.Set(key, v)
		case json.Number:
			values.Set(key, v.String())
		case bool:
			values.Set(key, strconv.FormatBool(v))
		}
	}
	return values, nil
}

func recordFromValues(values url.Values) activity.RawRecord {
	return activity.RawRecord{
		Keyword:   values.Get(fieldKeyword),
		MessageID: values.Get(fieldMessageID),
		MSISDN:    values.Get(fieldMSISDN),
		Text:      values.Get(fieldText),
		Timestamp: values.Get(fieldTimestamp),
		To:        values.Get(fieldTo),
	}
}
