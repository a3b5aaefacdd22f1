// Package web serves the latest telemetry to browsers, as JSON and as a
// websocket stream.
package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	juicer "github.com/jd3nn1s/forzajuicer"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	defaultPollInterval = 50 * time.Millisecond
	writeTimeout        = time.Second
	shutdownTimeout     = 5 * time.Second
)

// Source is anything holding the latest record, normally a *juicer.Holder.
type Source interface {
	Get() (juicer.Telemetry, bool)
}

type Server struct {
	source   Source
	interval time.Duration
	upgrader websocket.Upgrader
}

func NewServer(source Source, interval time.Duration) *Server {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Server{
		source:   source,
		interval: interval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// dashboards are usually served from elsewhere
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/telemetry", s.handleTelemetry)
	mux.HandleFunc("/api/telemetry/ws", s.handleWebsocket)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// ListenAndServe runs until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errChan := make(chan error, 1)
	go func() {
		log.WithField("address", addr).Info("web server listening")
		errChan <- srv.ListenAndServe()
	}()

	select {
	case err := <-errChan:
		return errors.Wrap(err, "web server stopped")
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "unable to shut down web server")
	}
	return ctx.Err()
}

func (s *Server) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	t, ok := s.source.Get()
	if !ok {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	payload, err := json.Marshal(t)
	if err != nil {
		log.WithError(err).Warn("json encode error")
		http.Error(w, "unable to encode telemetry", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(payload); err != nil {
		log.WithError(err).Debug("unable to write response")
	}
}

// handleWebsocket pushes a record whenever the held one changes. Nothing is
// sent before the first record arrives.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	// the read loop only notices the client going away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// compared as encoded bytes since NaN never equals itself
	var last []byte
	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
		t, ok := s.source.Get()
		if !ok {
			continue
		}
		payload, err := json.Marshal(t)
		if err != nil {
			log.WithError(err).Warn("json encode error, skipping frame")
			continue
		}
		if bytes.Equal(payload, last) {
			continue
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.WithError(err).Debug("websocket client gone")
			return
		}
		last = payload
	}
}
