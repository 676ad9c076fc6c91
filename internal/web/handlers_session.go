package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/JonMunkholm/txnimport/internal/logging"
)

// sseHeartbeat keeps idle event streams open through proxies.
const sseHeartbeat = 15 * time.Second

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.manager.Create(r.Context())
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	logging.WithFields(r.Context(), "session_id", sess.ID()).Info("import session created")

	w.Header().Set("Location", "/api/imports/"+sess.ID())
	writeJSON(w, http.StatusCreated, sess.Snapshot())
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	if err := s.manager.Remove(sess.ID()); err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleEvents streams session views via Server-Sent Events.
// Each event carries the view version as its id; the stream ends with a
// "closed" event when the session is removed.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondError(w, r, fmt.Errorf("streaming not supported"), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	views := sess.Subscribe(r.Context())
	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	var last uint64
	for {
		select {
		case v, ok := <-views:
			if !ok {
				fmt.Fprint(w, "event: closed\ndata: {}\n\n")
				flusher.Flush()
				return
			}
			// Views may arrive out of order when the subscriber lags.
			if v.Version <= last && last != 0 {
				continue
			}
			last = v.Version

			data, err := json.Marshal(v)
			if err != nil {
				logging.FromContext(r.Context()).Error("encode view", "error", err)
				continue
			}
			fmt.Fprintf(w, "id: %d\nevent: state\ndata: %s\n\n", v.Version, data)
			flusher.Flush()

		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.manager.Count(),
		"parser":   s.manager.Limiter().Status(),
	})
}
