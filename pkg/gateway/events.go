package gateway

import (
	"net/http"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/gorilla/websocket"
)

const (
	ErrorEventsUnavailable = "SMS_EVENTS_UNAVAILABLE"

	eventBuffer     = 64
	eventWriteWait  = 5 * time.Second
	eventPingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// handleEvents streams adapter events to a websocket client as JSON frames
// until the client goes away or the bus closes.
func (s *Service) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.bus == nil {
		s.writeError(w, goerrors.New("event stream is not available", goerrors.CategoryOperation).
			WithCode(http.StatusServiceUnavailable).
			WithTextCode(ErrorEventsUnavailable))
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("Event stream upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	events := s.bus.Subscribe(ctx, eventBuffer)
	defer events.Close()

	// The read side only exists to notice the client closing the socket.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(eventPingPeriod)
	defer ping.Stop()

	s.log.Debug("Event stream client attached", "remote", r.RemoteAddr)
	for {
		select {
		case <-closed:
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(eventWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case event, ok := <-events.C:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "bus closed"),
					time.Now().Add(eventWriteWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(eventWriteWait))
			if err := conn.WriteJSON(event); err != nil {
				s.log.Debug("Event stream write failed", "error", err)
				return
			}
		}
	}
}
