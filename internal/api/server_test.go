package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bryanchriswhite/nativeshot/internal/config"
	"github.com/bryanchriswhite/nativeshot/internal/engine"
	"github.com/bryanchriswhite/nativeshot/internal/nativeshot"
	"github.com/bryanchriswhite/nativeshot/internal/scene"
	"github.com/bryanchriswhite/nativeshot/internal/xcap"
)

type fixture struct {
	server *Server
	http   *httptest.Server
	scene  *scene.Virtual
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	facility := xcap.NewVirtual()
	plugin := nativeshot.NewPlugin(facility)
	sc := scene.NewVirtual(facility, config.WindowConfig{Title: "api test", Width: 320, Height: 200})
	app := engine.NewApp().AddPlugin(plugin).AddPlugin(sc)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx, 2*time.Millisecond) }()

	s := NewServer(app, plugin, nil)
	ts := httptest.NewServer(s.Handler())

	t.Cleanup(func() {
		ts.Close()
		cancel()
		<-done
		plugin.Wait()
		app.Close()
	})

	return &fixture{server: s, http: ts, scene: sc}
}

func (f *fixture) url(path string) string {
	return f.http.URL + path
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.url("/api/health"))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("missing CORS header")
	}
}

func TestListWindows(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.url("/api/windows"))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var windows []WindowInfo
	if err := json.NewDecoder(resp.Body).Decode(&windows); err != nil {
		t.Fatal(err)
	}
	if len(windows) != 1 {
		t.Fatalf("got %d windows, want 1", len(windows))
	}
	w := windows[0]
	if w.Entity != uint64(f.scene.Entity()) || w.Title != "api test" || w.Width != 320 {
		t.Fatalf("unexpected window %+v", w)
	}
	if !strings.HasPrefix(w.Handle, "xcb(") {
		t.Fatalf("handle = %q", w.Handle)
	}
}

func TestScreenshotRoundTrip(t *testing.T) {
	f := newFixture(t)
	target := uint64(f.scene.Entity())

	wsURL := "ws" + strings.TrimPrefix(f.url("/api/events"), "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial events: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for f.server.events.len() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("websocket never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	resp, err := http.Post(f.url("/api/windows/"+strconv.FormatUint(target, 10)+"/screenshots"), "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("POST status = %d", resp.StatusCode)
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var ev Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if ev.Type != "screenshot" || ev.Target != target || ev.Width != 320 || ev.Height != 200 {
		t.Fatalf("unexpected event %+v", ev)
	}

	resp, err = http.Get(f.url(ev.URL))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/png" {
		t.Fatalf("GET screenshot status=%d type=%q", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	var body bytes.Buffer
	body.ReadFrom(resp.Body)
	cfg, err := png.DecodeConfig(&body)
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if cfg.Width != 320 || cfg.Height != 200 {
		t.Fatalf("png size = %dx%d", cfg.Width, cfg.Height)
	}

	resp, err = http.Get(f.url("/api/stats"))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var stats nativeshot.Stats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatal(err)
	}
	if stats.Dispatched != 1 || stats.Completed != 1 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestNotFound(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Post(f.url("/api/windows/999/screenshots"), "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("POST unknown window status = %d", resp.StatusCode)
	}

	resp, err = http.Get(f.url("/api/screenshots/999"))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("GET missing screenshot status = %d", resp.StatusCode)
	}

	resp, err = http.Get(f.url("/api/config"))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("GET config without manager status = %d", resp.StatusCode)
	}
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	h := newHub()
	ch := h.subscribe()
	for i := 0; i < 20; i++ {
		h.broadcast(Event{Type: "screenshot"})
	}
	if len(ch) != cap(ch) {
		t.Fatalf("buffered %d events, want %d", len(ch), cap(ch))
	}
	h.unsubscribe(ch)
	h.unsubscribe(ch)
	if h.len() != 0 {
		t.Fatalf("subscriber not removed")
	}
}

func TestTimedOutRequestIsNotScheduled(t *testing.T) {
	facility := xcap.NewVirtual()
	plugin := nativeshot.NewPlugin(facility)
	sc := scene.NewVirtual(facility, config.WindowConfig{Title: "stalled", Width: 64, Height: 64})
	app := engine.NewApp().AddPlugin(plugin).AddPlugin(sc)
	t.Cleanup(func() { app.Close() })

	// No loop is running, so every handler waiting on it times out
	s := NewServer(app, plugin, nil)
	s.loopTimeout = 20 * time.Millisecond

	path := "/api/windows/" + strconv.FormatUint(uint64(sc.Entity()), 10) + "/screenshots"
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("POST status = %d, want 503", rec.Code)
	}

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/windows", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("GET windows status = %d, want 503", rec.Code)
	}

	// The loop catches up; the abandoned closures must not spawn a request
	for i := 0; i < 3; i++ {
		app.Tick()
	}
	if pending := nativeshot.Pending(app); len(pending) != 0 {
		t.Fatalf("pending requests = %v, want none", pending)
	}
	if got := plugin.Stats().Dispatched; got != 0 {
		t.Fatalf("dispatched = %d, want 0", got)
	}
	if app.World.Len() != 1 {
		t.Fatalf("world has %d entities, want only the window", app.World.Len())
	}
}
