package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/bryanchriswhite/nativeshot/internal/config"
	"github.com/bryanchriswhite/nativeshot/internal/engine"
	"github.com/bryanchriswhite/nativeshot/internal/logger"
	"github.com/bryanchriswhite/nativeshot/internal/nativeshot"
	"github.com/bryanchriswhite/nativeshot/internal/sink"
)

// defaultLoopTimeout bounds how long a handler waits for the tick loop to
// run its closure
const defaultLoopTimeout = 5 * time.Second

// States of a closure queued by onLoop
const (
	loopPending int32 = iota
	loopStarted
	loopAbandoned
)

var errLoopBusy = errors.New("tick loop did not respond")

// WindowInfo is a window entity as listed by /api/windows
type WindowInfo struct {
	Entity uint64 `json:"entity"`
	Title  string `json:"title"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Handle string `json:"handle,omitempty"`
}

type screenshot struct {
	png        []byte
	width      uint32
	height     uint32
	capturedAt time.Time
}

// Server represents the HTTP API server
type Server struct {
	router    *mux.Router
	app       *engine.App
	plugin    *nativeshot.Plugin
	configMgr *config.Manager
	upgrader  websocket.Upgrader
	events    *hub

	loopTimeout time.Duration

	mu    sync.RWMutex
	shots map[engine.Entity]screenshot
}

// NewServer creates a new API server. app must be driven by App.Run on
// another goroutine; handlers reach the world only through App.Send.
func NewServer(app *engine.App, plugin *nativeshot.Plugin, configMgr *config.Manager) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		app:       app,
		plugin:    plugin,
		configMgr: configMgr,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		events:      newHub(),
		loopTimeout: defaultLoopTimeout,
		shots:       make(map[engine.Entity]screenshot),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", s.handleHealth).Methods("GET")
	api.HandleFunc("/windows", s.handleGetWindows).Methods("GET")
	api.HandleFunc("/windows/{entity:[0-9]+}/screenshots", s.handleRequestScreenshot).Methods("POST")
	api.HandleFunc("/screenshots/{entity:[0-9]+}", s.handleGetScreenshot).Methods("GET")
	api.HandleFunc("/stats", s.handleStats).Methods("GET")
	api.HandleFunc("/config", s.handleGetConfig).Methods("GET")
	api.HandleFunc("/events", s.handleEvents)
}

// Handler returns the router wrapped with CORS headers
func (s *Server) Handler() http.Handler {
	return s.enableCORS(s.router)
}

// Start serves on port until ctx is cancelled
func (s *Server) Start(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithComponent("api").Info().
			Int("port", port).
			Msgf("Starting server on http://localhost%s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.events.closeAll()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// enableCORS adds CORS headers
func (s *Server) enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// onLoop runs fn on the tick goroutine and waits for it to finish. When
// the wait ends first (timeout or cancelled request) fn is abandoned and
// never runs; once fn has started the handler waits for it regardless.
func (s *Server) onLoop(ctx context.Context, fn func(*engine.App)) error {
	var state atomic.Int32
	done := make(chan struct{})
	s.app.Send(func(app *engine.App) {
		defer close(done)
		if !state.CompareAndSwap(loopPending, loopStarted) {
			return
		}
		fn(app)
	})

	timer := time.NewTimer(s.loopTimeout)
	defer timer.Stop()

	var err error
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		err = ctx.Err()
	case <-timer.C:
		err = errLoopBusy
	}

	if state.CompareAndSwap(loopPending, loopAbandoned) {
		return err
	}
	<-done
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func parseEntity(r *http.Request) (engine.Entity, error) {
	id, err := strconv.ParseUint(mux.Vars(r)["entity"], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid entity: %w", err)
	}
	return engine.Entity(id), nil
}

// HTTP Handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}

func (s *Server) handleGetWindows(w http.ResponseWriter, r *http.Request) {
	var windows []WindowInfo
	err := s.onLoop(r.Context(), func(app *engine.App) {
		windows = make([]WindowInfo, 0, app.World.Windows.Len())
		for _, e := range app.World.Windows.Entities() {
			win, _ := app.World.Windows.Get(e)
			info := WindowInfo{Entity: uint64(e), Title: win.Title, Width: win.Width, Height: win.Height}
			if h, ok := app.World.Handles.Get(e); ok {
				info.Handle = h.String()
			}
			windows = append(windows, info)
		}
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, windows)
}

func (s *Server) handleRequestScreenshot(w http.ResponseWriter, r *http.Request) {
	target, err := parseEntity(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var (
		request engine.Entity
		found   bool
	)
	err = s.onLoop(r.Context(), func(app *engine.App) {
		if !app.World.Windows.Has(target) {
			return
		}
		found = true
		request = nativeshot.Request(app, target, s.store(target))
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	if !found {
		http.Error(w, fmt.Sprintf("window %d not found", target), http.StatusNotFound)
		return
	}

	logger.WithComponent("api").Debug().
		Stringer("target", target).
		Stringer("request", request).
		Msg("Screenshot requested")

	writeJSON(w, http.StatusAccepted, map[string]any{
		"request": uint64(request),
		"target":  uint64(target),
		"url":     fmt.Sprintf("/api/screenshots/%d", target),
	})
}

// store returns the observer that keeps the latest PNG for target and
// announces it to event subscribers
func (s *Server) store(target engine.Entity) nativeshot.Observer {
	return func(_ *engine.App, ev nativeshot.NativeScreenshotCaptured) {
		var buf bytes.Buffer
		if err := sink.Encode(&buf, ev, sink.PNG); err != nil {
			logger.WithComponent("api").Error().Err(err).Msg("Failed to encode screenshot")
			return
		}

		shot := screenshot{png: buf.Bytes(), width: ev.Width, height: ev.Height, capturedAt: time.Now()}
		s.mu.Lock()
		s.shots[target] = shot
		s.mu.Unlock()

		s.events.broadcast(Event{
			Type:       "screenshot",
			Target:     uint64(target),
			Request:    uint64(ev.Entity),
			Width:      ev.Width,
			Height:     ev.Height,
			URL:        fmt.Sprintf("/api/screenshots/%d", target),
			CapturedAt: shot.capturedAt,
		})
	}
}

func (s *Server) handleGetScreenshot(w http.ResponseWriter, r *http.Request) {
	target, err := parseEntity(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.RLock()
	shot, ok := s.shots[target]
	s.mu.RUnlock()
	if !ok {
		http.Error(w, fmt.Sprintf("no screenshot for window %d", target), http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", sink.PNG.ContentType())
	w.Header().Set("Content-Length", strconv.Itoa(len(shot.png)))
	w.Header().Set("Last-Modified", shot.capturedAt.UTC().Format(http.TimeFormat))
	w.Write(shot.png)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.plugin.Stats())
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	if s.configMgr == nil {
		http.Error(w, "no configuration loaded", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, s.configMgr.Get())
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	log := logger.WithComponent("api")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Msg("WebSocket upgrade error")
		return
	}
	defer conn.Close()

	updates := s.events.subscribe()
	defer s.events.unsubscribe(updates)

	// Reader goroutine notices the client going away
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				log.Debug().Err(err).Msg("WebSocket write error")
				return
			}
		case <-gone:
			return
		}
	}
}
