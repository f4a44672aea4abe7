package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ayusman/solfa/internal/app"
	"github.com/ayusman/solfa/internal/capture"
	"github.com/ayusman/solfa/internal/detector"
	"github.com/ayusman/solfa/internal/hand"
	"github.com/ayusman/solfa/internal/server"
	"github.com/ayusman/solfa/internal/store"
	"github.com/gorilla/websocket"
	"gocv.io/x/gocv"
)

// scriptedDetector returns one preset hand per call, then the last one forever.
type scriptedDetector struct {
	mu    sync.Mutex
	hands []hand.Hand
	calls int
}

func (d *scriptedDetector) Detect(frame *gocv.Mat) ([]hand.Hand, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	i := d.calls
	if i >= len(d.hands) {
		i = len(d.hands) - 1
	}
	d.calls++
	return []hand.Hand{d.hands[i]}, nil
}

func (d *scriptedDetector) Close() error { return nil }

func newStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "data.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func blankFrames(t *testing.T, n int) []*gocv.Mat {
	t.Helper()
	frames := make([]*gocv.Mat, n)
	for i := range frames {
		m := gocv.NewMatWithSize(capture.DefaultHeight, capture.DefaultWidth, gocv.MatTypeCV8UC3)
		frames[i] = &m
		t.Cleanup(func() { m.Close() })
	}
	return frames
}

// writeRecorderPlugin installs a plugin that saves its request to received.json.
func writeRecorderPlugin(t *testing.T, root string) string {
	t.Helper()
	dir := filepath.Join(root, "recorder")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	manifest := `{"name":"recorder","executable":"run.sh","actions":["press"]}`
	if err := os.WriteFile(filepath.Join(dir, "plugin.json"), []byte(manifest), 0644); err != nil {
		t.Fatal(err)
	}
	script := "#!/bin/sh\ncat > received.json\necho '{\"success\":true}'\n"
	if err := os.WriteFile(filepath.Join(dir, "run.sh"), []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
	return filepath.Join(dir, "received.json")
}

func TestE2E_ReplaySession(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}
	if runtime.GOOS == "windows" {
		t.Skip("shell plugin not supported on Windows")
	}

	s := newStore(t)
	pluginRoot := t.TempDir()
	received := writeRecorderPlugin(t, pluginRoot)

	open := detector.OpenHandLandmarks()
	do := detector.PinchLandmarks(hand.NumLandmarks)
	sol := detector.PinchLandmarks(hand.RingTip)

	application, err := app.New(app.Config{
		Store:     s,
		PluginDir: pluginRoot,
		Camera:    capture.NewMockCamera(blankFrames(t, 5), false),
		Detector:  &scriptedDetector{hands: []hand.Hand{open, do, do, open, sol}},
		Source:    "e2e",
	})
	if err != nil {
		t.Fatalf("app.New() error = %v", err)
	}
	defer application.Close()

	if err := application.DiscoverPlugins(); err != nil {
		t.Fatalf("DiscoverPlugins() error = %v", err)
	}

	srv := server.New(server.Config{
		Store:    s,
		Pipeline: application,
		Plugins:  application.PluginManager(),
	})
	defer srv.Close()
	ts := httptest.NewServer(srv)
	defer ts.Close()

	client := ts.Client()

	t.Run("BindNote", func(t *testing.T) {
		resp, err := client.Post(
			ts.URL+"/api/bindings",
			"application/json",
			strings.NewReader(`{"note": "sol", "plugin_name": "recorder", "action_name": "press", "config": {"key": "g"}}`),
		)
		if err != nil {
			t.Fatalf("create binding error = %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
		}
	})

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/notes", nil)
	if err != nil {
		t.Fatalf("dial /api/notes error = %v", err)
	}
	defer conn.Close()

	waitFor(t, "notes client", func() bool {
		resp, err := client.Get(ts.URL + "/api/status")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var status struct {
			Clients int `json:"clients"`
		}
		json.NewDecoder(resp.Body).Decode(&status)
		return status.Clients == 1
	})

	frames, err := application.Replay(context.Background())
	if err != nil {
		t.Fatalf("Replay() error = %v", err)
	}
	if frames != 5 {
		t.Fatalf("Replay() frames = %d, want 5", frames)
	}

	t.Run("StreamsResults", func(t *testing.T) {
		var active [][]string
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		for i := 0; i < 5; i++ {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				t.Fatalf("ReadMessage() error = %v", err)
			}
			var r struct {
				Notes []string `json:"notes"`
			}
			json.Unmarshal(msg, &r)
			active = append(active, r.Notes)
		}

		want := [][]string{nil, {"do"}, {"do"}, nil, {"sol"}}
		for i := range want {
			if strings.Join(active[i], ",") != strings.Join(want[i], ",") {
				t.Errorf("frame %d notes = %v, want %v", i+1, active[i], want[i])
			}
		}
	})

	var sessionID string
	t.Run("ListsSession", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/api/sessions")
		if err != nil {
			t.Fatalf("list sessions error = %v", err)
		}
		defer resp.Body.Close()

		var list struct {
			Sessions []struct {
				ID     string         `json:"id"`
				Source string         `json:"source"`
				Frames int            `json:"frames"`
				Played map[string]int `json:"played"`
			} `json:"sessions"`
		}
		json.NewDecoder(resp.Body).Decode(&list)

		if len(list.Sessions) != 1 {
			t.Fatalf("expected 1 session, got %d", len(list.Sessions))
		}
		sess := list.Sessions[0]
		sessionID = sess.ID
		if sess.Source != "e2e" || sess.Frames != 5 {
			t.Errorf("unexpected session: %+v", sess)
		}
		if sess.Played["do"] != 1 || sess.Played["sol"] != 1 {
			t.Errorf("played = %v, want do and sol once", sess.Played)
		}
	})

	t.Run("ListsEvents", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/api/sessions/" + sessionID + "/events")
		if err != nil {
			t.Fatalf("list events error = %v", err)
		}
		defer resp.Body.Close()

		var list struct {
			Events []struct {
				Note  string `json:"note"`
				State string `json:"state"`
				Frame int    `json:"frame"`
			} `json:"events"`
		}
		json.NewDecoder(resp.Body).Decode(&list)

		want := []string{"do on 2", "do off 4", "sol on 5"}
		if len(list.Events) != len(want) {
			t.Fatalf("got %d events, want %d: %+v", len(list.Events), len(want), list.Events)
		}
		for i, e := range list.Events {
			got := e.Note + " " + e.State + " " + strconv.Itoa(e.Frame)
			if got != want[i] {
				t.Errorf("event %d = %q, want %q", i, got, want[i])
			}
		}
	})

	t.Run("RunsBoundPlugin", func(t *testing.T) {
		var data []byte
		waitFor(t, "plugin output", func() bool {
			data, _ = os.ReadFile(received)
			return len(data) > 0
		})

		var req struct {
			Note  string `json:"note"`
			Event string `json:"event"`
		}
		if err := json.Unmarshal(data, &req); err != nil {
			t.Fatalf("plugin received invalid JSON %q: %v", data, err)
		}
		if req.Note != "sol" || req.Event != "note-on" {
			t.Errorf("plugin received %+v", req)
		}
	})
}

func TestE2E_LiveSettings(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	s := newStore(t)
	application, err := app.New(app.Config{
		Store:     s,
		PluginDir: t.TempDir(),
		Camera:    capture.NewMockCamera(blankFrames(t, 1), true),
		Detector:  detector.NewMockDetector(),
	})
	if err != nil {
		t.Fatalf("app.New() error = %v", err)
	}
	defer application.Close()

	srv := server.New(server.Config{Store: s, Pipeline: application})
	defer srv.Close()
	ts := httptest.NewServer(srv)
	defer ts.Close()

	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/api/settings", bytes.NewBufferString(`{"epsilon": 8}`))
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("PUT /api/settings error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	if application.Epsilon() != 8 {
		t.Errorf("Epsilon() = %v, want 8", application.Epsilon())
	}
	if v, err := s.Settings().GetFloat(store.SettingEpsilon, 0); err != nil || v != 8 {
		t.Errorf("stored epsilon = %v, %v", v, err)
	}

	req, _ = http.NewRequest(http.MethodPut, ts.URL+"/api/status", bytes.NewBufferString(`{"enabled": true}`))
	resp, err = ts.Client().Do(req)
	if err != nil {
		t.Fatalf("PUT /api/status error = %v", err)
	}
	resp.Body.Close()

	if !application.IsEnabled() {
		t.Error("expected detection to be enabled")
	}

	resp, _ = ts.Client().Get(ts.URL + "/api/health")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health check failed after settings changes")
	}
	resp.Body.Close()
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(20 * time.Millisecond)
	}
}
