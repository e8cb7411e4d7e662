package http

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

const keepAliveInterval = 15 * time.Second

// handleStream relays broadcast messages as server-sent events, one event per
// message named after its routing key.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.deps.Stream == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("realtime relay disabled"))
		return
	}

	rc := http.NewResponseController(w)
	// Streams outlive the server write timeout.
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		s.logger.Warn("clear stream write deadline failed", "error", err)
	}

	id, ch := s.deps.Stream.Subscribe()
	defer s.deps.Stream.Unsubscribe(id)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		s.logger.Warn("stream flush unsupported", "error", err)
		return
	}
	s.logger.Debug("stream subscriber connected", "subscriber_id", id)

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("stream subscriber disconnected", "subscriber_id", id)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.RoutingKey, msg.Payload); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}
