package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"smsbridge/pkg/activity"
	"smsbridge/pkg/bus"
	"smsbridge/pkg/channel"
	"smsbridge/pkg/channel/nexmo"
	"smsbridge/pkg/config"
)

const (
	defaultHost     = "0.0.0.0"
	defaultPort     = 18790
	maxSendBody     = 64 << 10
	shutdownTimeout = 5 * time.Second
)

// Handler consumes one inbound activity from the adapter stream.
type Handler func(ctx context.Context, doc activity.Activity) error

// Service hosts a single adapter: it connects it, drains its receive stream
// into a Handler and serves the status and send API.
type Service struct {
	cfg     config.GatewayConfig
	adapter channel.Adapter
	bus     *bus.MessageBus
	handler Handler
	log     *slog.Logger

	mu        sync.RWMutex
	startedAt time.Time
	receiving bool
	counters  counters
}

type counters struct {
	Received   int64 `json:"received"`
	Dropped    int64 `json:"dropped"`
	Sent       int64 `json:"sent"`
	SendFailed int64 `json:"send_failed"`
}

type statusResponse struct {
	Status        string   `json:"status"`
	UptimeSeconds int64    `json:"uptime_seconds"`
	Service       string   `json:"service"`
	ServiceID     string   `json:"service_id"`
	Connected     bool     `json:"connected"`
	Receiving     bool     `json:"receiving"`
	Counters      counters `json:"counters"`
}

// NewService wires adapter into a gateway. mb may be nil when the adapter has
// no event bus; handler may be nil to discard inbound activities.
func NewService(cfg config.GatewayConfig, adapter channel.Adapter, mb *bus.MessageBus, handler Handler, log *slog.Logger) (*Service, error) {
	if adapter == nil {
		return nil, errors.New("channel adapter is required")
	}
	if log == nil {
		log = slog.Default()
	}
	if handler == nil {
		handler = func(context.Context, activity.Activity) error { return nil }
	}

	return &Service{
		cfg:     cfg,
		adapter: adapter,
		bus:     mb,
		handler: handler,
		log:     log.With("component", "gateway.service"),
	}, nil
}

// Run connects the adapter and blocks until ctx ends or the HTTP server fails.
// The adapter is disconnected before Run returns.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	// Ends the receive stream and event counter when Run returns early.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	s.startedAt = time.Now().UTC()
	s.mu.Unlock()

	if s.bus != nil {
		events := s.bus.Subscribe(ctx, 0)
		defer events.Close()
		go s.countEvents(events.C)
	}

	if _, err := s.adapter.Connect(ctx); err != nil {
		return fmt.Errorf("connect %s adapter: %w", s.adapter.ServiceName(), err)
	}
	defer s.disconnect()

	stream, err := s.adapter.Receive(ctx)
	switch {
	case errors.Is(err, nexmo.ErrNoListener):
		s.log.Info("Inbound listener disabled, running send-only")
	case err != nil:
		return fmt.Errorf("start receive stream: %w", err)
	default:
		s.setReceiving(true)
		go s.drain(ctx, stream)
	}

	serverErrors := make(chan error, 1)
	go s.runHTTPServer(ctx, serverErrors)

	select {
	case <-ctx.Done():
		return nil
	case err := <-serverErrors:
		return err
	}
}

// Handler returns the router for the status probes and the /v1 API.
func (s *Service) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Group(func(r chi.Router) {
		r.Use(s.requireToken)
		r.Post("/v1/send", s.handleSend)
		r.Get("/v1/events", s.handleEvents)
	})

	return r
}

func (s *Service) drain(ctx context.Context, stream <-chan activity.Activity) {
	defer s.setReceiving(false)

	for doc := range stream {
		if err := s.handler(ctx, doc); err != nil {
			s.log.Warn("Inbound handler failed", "message_id", objectID(doc), "error", err)
		}
	}
	s.log.Debug("Receive stream closed")
}

func (s *Service) countEvents(events <-chan bus.Event) {
	for event := range events {
		s.mu.Lock()
		switch event.Type {
		case bus.EventReceived:
			s.counters.Received++
		case bus.EventDropped:
			s.counters.Dropped++
		case bus.EventSent:
			s.counters.Sent++
		case bus.EventSendFailed:
			s.counters.SendFailed++
		}
		s.mu.Unlock()
	}
}

func (s *Service) disconnect() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.adapter.Disconnect(ctx); err != nil {
		s.log.Warn("Adapter disconnect failed", "error", err)
	}
}

func (s *Service) runHTTPServer(ctx context.Context, errCh chan<- error) {
	host := strings.TrimSpace(s.cfg.Host)
	if host == "" {
		host = defaultHost
	}

	port := s.cfg.Port
	if port <= 0 {
		port = defaultPort
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.log.Info("Gateway API server started", "address", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		errCh <- fmt.Errorf("start api server: %w", err)
	}
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondStatus(w, http.StatusOK, "ok")
}

func (s *Service) handleReady(w http.ResponseWriter, _ *http.Request) {
	if !s.adapter.Connected() {
		s.respondStatus(w, http.StatusServiceUnavailable, "not_ready")
		return
	}
	s.respondStatus(w, http.StatusOK, "ready")
}

func (s *Service) handleSend(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSendBody)

	var doc activity.Activity
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		s.writeError(w, badRequest(fmt.Sprintf("decode activity: %v", err)))
		return
	}

	conf, err := s.adapter.Send(r.Context(), doc)
	if err != nil {
		s.writeError(w, sendError(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(conf); err != nil {
		s.log.Error("Failed to write send response", "error", err)
	}
}

func (s *Service) respondStatus(w http.ResponseWriter, statusCode int, status string) {
	payload := s.currentStatus(status)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("Failed to write status response", "error", err)
	}
}

func (s *Service) currentStatus(status string) statusResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	uptime := int64(0)
	if !s.startedAt.IsZero() {
		uptime = int64(time.Since(s.startedAt).Seconds())
	}

	return statusResponse{
		Status:        status,
		UptimeSeconds: uptime,
		Service:       s.adapter.ServiceName(),
		ServiceID:     s.adapter.ServiceID(),
		Connected:     s.adapter.Connected(),
		Receiving:     s.receiving,
		Counters:      s.counters,
	}
}

func (s *Service) setReceiving(receiving bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.receiving = receiving
}

func objectID(doc activity.Activity) string {
	if doc.Object == nil {
		return ""
	}
	return doc.Object.ID
}
